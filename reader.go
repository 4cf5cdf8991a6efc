package zstream

import (
	"fmt"
	"io"
)

// ReaderParams configure a decompressing Reader.
type ReaderParams struct {
	// ReadSize is the chunk size used to read compressed data from the
	// source. Zero selects the engine's recommended streaming input size.
	ReadSize int

	// ReadAcrossFrames makes the reader continue into a concatenated next
	// frame when one frame ends. When unset, the first frame boundary is
	// reported as end of stream.
	ReadAcrossFrames bool

	// CloseSource makes Close also close the source when it implements
	// io.Closer.
	CloseSource bool
}

// Reader decompresses data pulled from a source. It claims its parent
// decompressor's context for the whole life of the stream; other operations
// on the decompressor fail until the Reader is closed.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	dw     *dctxWrapper
	source io.Reader
	state  streamState
	params ReaderParams

	srcBuf []byte
	srcPos int
	srcLen int
	srcErr error

	frameInProgress bool
	finishedInput   bool
	finishedOutput  bool
	bytesOut        int64

	closer io.Closer
}

// NewReader starts a decompression stream pulling from source. The stream
// claims the decompressor's context until Close.
func (d *Decompressor) NewReader(source io.Reader, params *ReaderParams) (*Reader, error) {
	if source == nil {
		return nil, newParameterError("new reader", "source must not be nil")
	}
	var p ReaderParams
	if params != nil {
		p = *params
	}
	readSize := p.ReadSize
	if readSize <= 0 {
		readSize = DStreamInSize()
	}

	if err := d.dw.acquire("new reader"); err != nil {
		return nil, err
	}
	if err := d.setupDCtx(true); err != nil {
		d.dw.release()
		return nil, err
	}
	d.dw.ref()

	r := &Reader{
		dw:     d.dw,
		source: source,
		state:  stateEntered,
		params: p,
		srcBuf: GetBuffer(readSize)[:readSize],
	}
	r.closer, _ = source.(io.Closer)
	GlobalMetrics.RecordStreamOpened()
	return r, nil
}

// fill reads the next compressed chunk from the source. An empty read marks
// the input as exhausted; a non-EOF read error alongside data is held back
// until the buffered bytes are consumed.
func (r *Reader) fill() error {
	if r.srcErr != nil {
		err := r.srcErr
		r.srcErr = nil
		return err
	}
	n, err := r.source.Read(r.srcBuf)
	r.srcPos, r.srcLen = 0, n
	if n == 0 {
		if err != nil && err != io.EOF {
			return err
		}
		r.finishedInput = true
		return nil
	}
	if err != nil && err != io.EOF {
		r.srcErr = err
	}
	return nil
}

// Read decompresses into p. It returns as much as a single pass over the
// available input produces, reading more from the source only when the
// engine cannot make progress otherwise. When a frame ends and
// ReadAcrossFrames is unset, the remaining bytes of that frame are returned
// and subsequent calls report io.EOF. A source that runs dry in the middle
// of a frame surfaces an IncompleteFrameError.
func (r *Reader) Read(p []byte) (n int, err error) {
	if r.state == stateClosed {
		return 0, errStreamClosed("read")
	}
	if r.finishedOutput {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	inBytes := 0
	defer func() {
		r.bytesOut += int64(n)
		rerr := err
		if rerr == io.EOF {
			rerr = nil
		}
		GlobalMetrics.RecordDecompression(inBytes, n, rerr)
	}()

	dst := p[0:len(p):len(p)]
	dstPos := 0
	for {
		// Step the engine whenever input is buffered or a frame is mid
		// flight, so buffered output is delivered before the next
		// blocking source read.
		if r.srcPos < r.srcLen || r.frameInProgress {
			before := dstPos
			srcBefore := r.srcPos
			remaining, serr := r.dw.decompressStream("read", dst, &dstPos, r.srcBuf[:r.srcLen], &r.srcPos)
			inBytes += r.srcPos - srcBefore
			if serr != nil {
				return dstPos, serr
			}
			r.frameInProgress = remaining != 0

			if remaining == 0 && !r.params.ReadAcrossFrames {
				r.finishedOutput = true
				break
			}
			if dstPos == len(dst) {
				break
			}
			if dstPos > before || r.srcPos < r.srcLen {
				continue
			}
			if r.finishedInput {
				if r.frameInProgress {
					return dstPos, &IncompleteFrameError{
						Operation: "read",
						Index:     -1,
						Message:   "source exhausted in the middle of a frame",
					}
				}
				r.finishedOutput = true
				break
			}
		} else if r.finishedInput {
			r.finishedOutput = true
			break
		}

		if ferr := r.fill(); ferr != nil {
			return dstPos, ferr
		}
	}

	if dstPos == 0 && r.finishedOutput {
		return 0, io.EOF
	}
	return dstPos, nil
}

// WriteTo decompresses the rest of the stream into w, using an internal
// staging buffer so memory stays bounded.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	size := DStreamOutSize()
	raw := GetBuffer(size)
	defer PutBuffer(raw)
	buf := raw[:size]

	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
			if wn < n {
				return total, io.ErrShortWrite
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Seek repositions the stream by decoding forward and discarding. Only
// forward seeks relative to the start or the current position are possible;
// anything else fails without touching the stream.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	if r.state == stateClosed {
		return 0, errStreamClosed("seek")
	}

	var target int64
	switch whence {
	case io.SeekStart:
		if offset < r.bytesOut {
			return r.bytesOut, newUnsupportedError("seek", "cannot seek backward on a decompression stream")
		}
		target = offset
	case io.SeekCurrent:
		if offset < 0 {
			return r.bytesOut, newUnsupportedError("seek", "cannot seek backward on a decompression stream")
		}
		target = r.bytesOut + offset
	case io.SeekEnd:
		return r.bytesOut, newUnsupportedError("seek", "cannot seek relative to the end of a decompression stream")
	default:
		return r.bytesOut, newParameterError("seek", fmt.Sprintf("invalid whence value: %d", whence))
	}

	size := DStreamOutSize()
	raw := GetBuffer(size)
	defer PutBuffer(raw)
	buf := raw[:size]

	for r.bytesOut < target {
		chunk := target - r.bytesOut
		if chunk > int64(len(buf)) {
			chunk = int64(len(buf))
		}
		n, err := r.Read(buf[:chunk])
		if err == io.EOF {
			break
		}
		if err != nil {
			return r.bytesOut, err
		}
		if n == 0 {
			break
		}
	}
	return r.bytesOut, nil
}

// Write always fails: the stream is read-only.
func (r *Reader) Write(p []byte) (int, error) {
	return 0, newUnsupportedError("write", "stream is read-only")
}

// Tell returns the cumulative number of decompressed bytes returned by Read.
func (r *Reader) Tell() int64 {
	return r.bytesOut
}

// Close releases the decompressor's context and returns the input buffer to
// the pool. When CloseSource is set the source is closed as well. Closing an
// already closed stream is a no-op.
func (r *Reader) Close() error {
	if r.state == stateClosed {
		return nil
	}
	r.state = stateClosed

	r.dw.release()
	r.dw.unref()
	PutBuffer(r.srcBuf)
	r.srcBuf = nil
	GlobalMetrics.RecordStreamClosed()

	if r.params.CloseSource && r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// MemorySize returns the current memory footprint of the underlying context
// in bytes.
func (r *Reader) MemorySize() int {
	return r.dw.sizeOf()
}
