package zstream

import (
	"io"
	"sync"
	"sync/atomic"
)

// CompressorParams configure a Compressor. The zero value selects the engine
// defaults.
type CompressorParams struct {
	// Level is the compression level. Zero selects the engine default
	// (currently 3); negative levels trade ratio for speed.
	Level int

	// WindowLog pins the match window to 2^WindowLog bytes. Zero keeps
	// the window the engine derives from the level. Values above the
	// default decoder limit require the decompressing side to raise its
	// max window size.
	WindowLog int

	// Checksum appends a 32-bit content checksum to every frame.
	Checksum bool

	// Dict compresses every frame against the given digested dictionary.
	// The dictionary is pinned until the compressor and all its streams
	// are released.
	Dict *CDict
}

// Compressor binds compression parameters to a codec context. All frames it
// produces share that context: one-shot Compress calls, Writer streams and
// CopyStream runs may be interleaved, but only one of them can be in flight
// at a time.
//
// A Compressor is not safe for concurrent use.
type Compressor struct {
	cw       *cctxWrapper
	params   CompressorParams
	released int32 // atomic
}

// NewCompressor creates a compressor with the given parameters. A nil params
// selects all defaults.
//
// Call Release when the compressor is no longer used.
func NewCompressor(params *CompressorParams) (*Compressor, error) {
	var p CompressorParams
	if params != nil {
		p = *params
	}

	cw, err := newCCtxWrapper()
	if err != nil {
		return nil, err
	}
	if err := cw.setParameter(ZSTD_c_compressionLevel, p.Level); err != nil {
		cw.unref()
		return nil, err
	}
	if p.WindowLog != 0 {
		if err := cw.setParameter(ZSTD_c_windowLog, p.WindowLog); err != nil {
			cw.unref()
			return nil, err
		}
	}
	if p.Checksum {
		if err := cw.setParameter(ZSTD_c_checksumFlag, 1); err != nil {
			cw.unref()
			return nil, err
		}
	}
	if p.Dict != nil {
		if !p.Dict.acquireRef() {
			cw.unref()
			return nil, &DictionaryError{&ZstdError{
				Operation: "create compressor",
				Message:   "dictionary is already released",
			}}
		}
		cw.dict = p.Dict
		if err := cw.refCDict(p.Dict); err != nil {
			cw.unref()
			return nil, err
		}
	}

	return &Compressor{cw: cw, params: p}, nil
}

// Compress appends src compressed as a single frame to dst and returns the
// result. The frame header records the exact content size.
func (c *Compressor) Compress(dst, src []byte) ([]byte, error) {
	if err := c.cw.acquire("compress"); err != nil {
		return dst, err
	}
	defer c.cw.release()

	if err := c.cw.reset(ZSTD_reset_session_only); err != nil {
		return dst, err
	}

	dstLen := len(dst)
	result, err := c.cw.compressAppend(dst, src)
	GlobalMetrics.RecordCompression(len(src), len(result)-dstLen, err)
	if err == nil {
		GlobalMetrics.RecordFrameCompleted()
	}
	return result, err
}

// CopyStreamParams tune the pump loops of the CopyStream operations.
type CopyStreamParams struct {
	// SourceSize pledges the total uncompressed input size for
	// Compressor.CopyStream, so the frame header can record it. Zero
	// means unknown. Decompression ignores this field.
	SourceSize uint64

	// ReadSize overrides the chunk size used to read from the source.
	ReadSize int

	// WriteSize overrides the size of the staging buffer handed to the
	// destination.
	WriteSize int
}

// CopyStream reads src until end of input, compresses everything as a single
// frame and writes the result to dst. It returns the number of bytes read
// from src and written to dst.
//
// A read of zero bytes signals end of input, so sources that return
// (0, nil) terminate the copy.
func (c *Compressor) CopyStream(dst io.Writer, src io.Reader, params *CopyStreamParams) (read, written int64, err error) {
	if dst == nil {
		return 0, 0, newParameterError("copy stream", "destination must not be nil")
	}
	if src == nil {
		return 0, 0, newParameterError("copy stream", "source must not be nil")
	}

	var p CopyStreamParams
	if params != nil {
		p = *params
	}
	readSize := p.ReadSize
	if readSize <= 0 {
		readSize = CStreamInSize()
	}
	writeSize := p.WriteSize
	if writeSize <= 0 {
		writeSize = CStreamOutSize()
	}

	if err := c.cw.acquire("copy stream"); err != nil {
		return 0, 0, err
	}
	defer c.cw.release()

	if err := c.cw.reset(ZSTD_reset_session_only); err != nil {
		return 0, 0, err
	}
	pledged := p.SourceSize
	if pledged == 0 {
		pledged = contentSizeUnknown
	}
	if err := c.cw.setPledgedSrcSize(pledged); err != nil {
		return 0, 0, err
	}

	srcRaw := GetBuffer(readSize)
	dstRaw := GetBuffer(writeSize)
	defer PutBuffer(srcRaw)
	defer PutBuffer(dstRaw)
	srcBuf := srcRaw[:readSize]
	// Pool buffers round the capacity up; restrict it so the destination
	// never sees chunks larger than the configured write size.
	dstBuf := dstRaw[:0:writeSize]

	defer func() {
		GlobalMetrics.RecordCompression(int(read), int(written), err)
	}()

	step := func(dst []byte, dstPos *int, src []byte, srcPos *int) (uint64, error) {
		return c.cw.compressStream2("copy stream", dst, dstPos, src, srcPos, ZSTD_e_continue)
	}
	finish := func(dst []byte, dstPos *int, src []byte, srcPos *int) (uint64, error) {
		return c.cw.compressStream2("copy stream", dst, dstPos, src, srcPos, ZSTD_e_end)
	}
	forward := func(p []byte) (int, error) {
		n, werr := dst.Write(p)
		written += int64(n)
		return n, werr
	}

	for {
		n, rerr := src.Read(srcBuf)
		if n > 0 {
			read += int64(n)
			if _, _, perr := pump(step, dstBuf, srcBuf[:n], false, forward); perr != nil {
				return read, written, perr
			}
		}
		if rerr != nil && rerr != io.EOF {
			return read, written, rerr
		}
		if n == 0 || rerr == io.EOF {
			break
		}
	}

	if _, _, perr := pump(finish, dstBuf, nil, true, forward); perr != nil {
		return read, written, perr
	}
	GlobalMetrics.RecordFrameCompleted()

	return read, written, nil
}

// MemorySize returns the current memory footprint of the underlying context
// in bytes.
func (c *Compressor) MemorySize() int {
	return c.cw.sizeOf()
}

// Release drops the compressor's reference to its context. The context is
// freed once every stream spawned from the compressor has closed as well.
// The compressor must not be used after Release.
func (c *Compressor) Release() {
	if c == nil {
		return
	}
	if !atomic.CompareAndSwapInt32(&c.released, 0, 1) {
		return
	}
	c.cw.unref()
}

// Compress appends compressed src to dst and returns the result.
func Compress(dst, src []byte) []byte {
	return CompressDictLevel(dst, src, nil, DefaultCompressionLevel)
}

// CompressLevel appends compressed src to dst and returns the result.
//
// The given compressionLevel is used for the compression.
func CompressLevel(dst, src []byte, compressionLevel int) []byte {
	return CompressDictLevel(dst, src, nil, compressionLevel)
}

// CompressDict appends compressed src to dst and returns the result.
//
// The given dictionary is used for the compression.
func CompressDict(dst, src []byte, cd *CDict) []byte {
	return CompressDictLevel(dst, src, cd, 0)
}

// CompressDictLevel appends compressed src to dst using the given dictionary
// and compression level. Contexts come from internal pools, so concurrent
// calls do not contend on a shared context.
func CompressDictLevel(dst, src []byte, cd *CDict, compressionLevel int) []byte {
	if cd != nil {
		if !cd.acquireRef() {
			panic("BUG: cannot compress using a released CDict")
		}
		defer cd.releaseRef()
	}

	var pool *sync.Pool
	if cd == nil {
		pool = cctxPool
	} else {
		pool = cctxDictPool
	}
	cw, err := getPooledCCtx(pool)
	if err != nil {
		panic(err)
	}

	dstLen := len(dst)
	dst = compressAppendDictLevel(cw, dst, src, cd, compressionLevel)
	pool.Put(cw)

	GlobalMetrics.RecordCompression(len(src), len(dst)-dstLen, nil)
	GlobalMetrics.RecordFrameCompleted()
	return dst
}
