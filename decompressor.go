package zstream

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

const maxInt = int(^uint(0) >> 1)

// DecompressorParams configure a Decompressor. The zero value selects the
// engine defaults.
type DecompressorParams struct {
	// MaxWindowSize rejects frames requiring a decode window larger than
	// the given number of bytes. Zero keeps the engine default limit.
	MaxWindowSize uint64

	// Format selects the frame encoding to expect. The zero value is the
	// standard zstd frame format.
	Format FrameFormat

	// Dict decompresses frames against the given digested dictionary.
	// The dictionary is pinned until the decompressor and all its streams
	// are released.
	Dict *DDict
}

// Decompressor binds decompression parameters to a codec context. One-shot
// calls, streams and CopyStream runs share that context; only one of them
// can be in flight at a time.
//
// A Decompressor is not safe for concurrent use.
type Decompressor struct {
	dw       *dctxWrapper
	params   DecompressorParams
	released int32 // atomic
}

// NewDecompressor creates a decompressor with the given parameters. A nil
// params selects all defaults.
//
// Call Release when the decompressor is no longer used.
func NewDecompressor(params *DecompressorParams) (*Decompressor, error) {
	var p DecompressorParams
	if params != nil {
		p = *params
	}
	if !p.Format.valid() {
		return nil, newParameterError("create decompressor", "invalid format value")
	}

	dw, err := newDCtxWrapper()
	if err != nil {
		return nil, err
	}
	if p.Dict != nil {
		if !p.Dict.acquireRef() {
			dw.unref()
			return nil, &DictionaryError{&ZstdError{
				Operation: "create decompressor",
				Message:   "dictionary is already released",
			}}
		}
		dw.dict = p.Dict
	}

	return &Decompressor{dw: dw, params: p}, nil
}

// setupDCtx prepares the context for a fresh operation: it drops any decode
// state from a previous session, reapplies the window and format settings,
// and explicitly sets or clears the dictionary association. The explicit
// clear matters because dictionary references survive session resets.
func (d *Decompressor) setupDCtx(loadDict bool) error {
	if err := d.dw.reset(ZSTD_reset_session_only); err != nil {
		return err
	}
	if d.params.MaxWindowSize != 0 {
		if err := d.dw.setMaxWindowSize(d.params.MaxWindowSize); err != nil {
			return err
		}
	}
	if err := d.dw.setFormat(d.params.Format); err != nil {
		return err
	}
	if loadDict && d.params.Dict != nil {
		return d.dw.refDDict(d.params.Dict)
	}
	return d.dw.refDDict(nil)
}

// DecompressFrame decompresses a buffer holding a single frame in one engine
// call.
//
// The output size comes from the frame header. When the header does not
// declare it, maxOutputSize bounds the allocation instead and the decode
// fails unless the frame fits; passing no bound for such a frame is an
// error. A frame declaring zero content returns an empty result without
// touching the engine.
func (d *Decompressor) DecompressFrame(src []byte, maxOutputSize int) ([]byte, error) {
	if err := d.dw.acquire("decompress"); err != nil {
		return nil, err
	}
	defer d.dw.release()

	if err := d.setupDCtx(true); err != nil {
		return nil, err
	}

	declared, known, err := frameContentSize(src)
	if err != nil {
		return nil, err
	}
	var bufSize uint64
	switch {
	case known && declared == 0:
		return nil, nil
	case known:
		bufSize = declared
	case maxOutputSize == 0:
		return nil, newParameterError("decompress", "could not determine content size in frame header")
	default:
		bufSize = uint64(maxOutputSize)
	}
	if bufSize > uint64(maxInt) {
		return nil, newMemoryError("decompress", fmt.Sprintf("cannot allocate %d byte output buffer", bufSize))
	}

	dst := make([]byte, 0, int(bufSize))
	dstPos := 0
	srcPos := 0
	remaining, err := d.dw.decompressStream("decompress", dst, &dstPos, src, &srcPos)
	if err == nil && remaining != 0 {
		err = &IncompleteFrameError{
			Operation: "decompress",
			Index:     -1,
			Message:   "did not decompress full frame",
		}
	}
	if err == nil && known && uint64(dstPos) != declared {
		err = &SizeMismatchError{
			Operation: "decompress",
			Index:     -1,
			Got:       uint64(dstPos),
			Want:      declared,
		}
	}
	GlobalMetrics.RecordDecompression(srcPos, dstPos, err)
	if err != nil {
		return nil, err
	}
	return dst[:dstPos], nil
}

// CopyStream reads compressed data from src until end of input and writes
// the decompressed output to dst. It returns the number of bytes read from
// src and written to dst.
//
// A read of zero bytes signals end of input and terminates the copy even in
// the middle of a frame; a truncated trailing frame is not reported as an
// error by this operation.
func (d *Decompressor) CopyStream(dst io.Writer, src io.Reader, params *CopyStreamParams) (read, written int64, err error) {
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
		readSize = DStreamInSize()
	}
	writeSize := p.WriteSize
	if writeSize <= 0 {
		writeSize = DStreamOutSize()
	}

	if err := d.dw.acquire("copy stream"); err != nil {
		return 0, 0, err
	}
	defer d.dw.release()

	if err := d.setupDCtx(true); err != nil {
		return 0, 0, err
	}

	srcRaw := GetBuffer(readSize)
	dstRaw := GetBuffer(writeSize)
	defer PutBuffer(srcRaw)
	defer PutBuffer(dstRaw)
	srcBuf := srcRaw[:readSize]
	dstBuf := dstRaw[:0:writeSize]

	defer func() {
		GlobalMetrics.RecordDecompression(int(read), int(written), err)
	}()

	step := func(dst []byte, dstPos *int, src []byte, srcPos *int) (uint64, error) {
		return d.dw.decompressStream("copy stream", dst, dstPos, src, srcPos)
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

	return read, written, nil
}

// MemorySize returns the current memory footprint of the underlying context
// in bytes.
func (d *Decompressor) MemorySize() int {
	return d.dw.sizeOf()
}

// Release drops the decompressor's reference to its context. The context is
// freed once every stream spawned from the decompressor has closed as well.
// The decompressor must not be used after Release.
func (d *Decompressor) Release() {
	if d == nil {
		return
	}
	if !atomic.CompareAndSwapInt32(&d.released, 0, 1) {
		return
	}
	d.dw.unref()
}

// Decompress appends decompressed src to dst and returns the result. src may
// hold multiple concatenated frames.
func Decompress(dst, src []byte) ([]byte, error) {
	return DecompressDict(dst, src, nil)
}

// DecompressDict appends decompressed src to dst using the given dictionary
// and returns the result.
func DecompressDict(dst, src []byte, dd *DDict) ([]byte, error) {
	if dd != nil {
		if !dd.acquireRef() {
			return dst, &DictionaryError{&ZstdError{
				Operation: "decompression",
				Message:   "dictionary is already released",
			}}
		}
		defer dd.releaseRef()
	}

	total := findDecompressedSize(src)
	switch total {
	case contentSizeUnknown, contentSizeError:
		return streamDecompress(dst, src, dd)
	case 0:
		return dst, nil
	}
	if total > uint64(maxInt) {
		return dst, newMemoryError("decompression", fmt.Sprintf("cannot allocate %d byte output buffer", total))
	}

	var pool *sync.Pool
	if dd == nil {
		pool = dctxPool
	} else {
		pool = dctxDictPool
	}
	dw, err := getPooledDCtx(pool)
	if err != nil {
		return dst, err
	}

	dstLen := len(dst)
	if cap(dst)-dstLen < int(total) {
		newBuf := GetBuffer(dstLen + int(total))
		newBuf = newBuf[:dstLen]
		copy(newBuf, dst[:dstLen])
		dst = newBuf
	}
	result := decompressInternal(dw, dst[dstLen:dstLen+int(total)], src, dd)
	pool.Put(dw)
	if zstdIsError(result) {
		return dst[:dstLen], mapZstdError(result, "decompression", ErrorContext{
			InputSize:  len(src),
			OutputSize: int(total),
		})
	}
	GlobalMetrics.RecordDecompression(len(src), int(result), nil)
	return dst[:dstLen+int(result)], nil
}

// streamDecompress handles buffers whose frames do not declare their content
// size: the output is produced incrementally through a reader instead of a
// single sized allocation.
func streamDecompress(dst, src []byte, dd *DDict) ([]byte, error) {
	d, err := NewDecompressor(&DecompressorParams{Dict: dd})
	if err != nil {
		return dst, err
	}
	defer d.Release()

	r, err := d.NewReader(bytes.NewReader(src), &ReaderParams{ReadAcrossFrames: true})
	if err != nil {
		return dst, err
	}
	defer r.Close()

	sink := &appendWriter{buf: dst}
	if _, err := r.WriteTo(sink); err != nil {
		return sink.buf, err
	}
	return sink.buf, nil
}

type appendWriter struct {
	buf []byte
}

func (w *appendWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}
