package zstream

import (
	"fmt"
	"io"

	"go.uber.org/multierr"
)

// WriterParams configure a compressing Writer.
type WriterParams struct {
	// SourceSize pledges the total number of bytes that will be written
	// before Close, so the frame header can record it. The pledge is
	// verified when the frame ends; writing a different amount fails the
	// final flush. Zero means unknown.
	SourceSize uint64

	// WriteSize bounds the size of compressed chunks handed to the sink.
	// Zero selects the engine's recommended streaming output size.
	WriteSize int

	// WriteReturnWritten makes Write return the number of compressed
	// bytes forwarded to the sink instead of the number of input bytes
	// consumed. Forwarded counts break the io.Writer contract, which
	// expects n == len(p) on success; leave this unset when the writer is
	// driven through io.Copy or similar.
	WriteReturnWritten bool

	// CloseSink makes Close also close the sink when it implements
	// io.Closer.
	CloseSink bool
}

// Writer compresses everything written to it and forwards the compressed
// stream to a sink. Output is buffered inside the engine; data is not
// guaranteed to reach the sink until Flush or Close.
//
// The Writer claims its parent compressor's context for the whole life of
// the stream. Other operations on the compressor fail until the Writer is
// closed.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	cw     *cctxWrapper
	sink   io.Writer
	state  streamState
	params WriterParams

	dstBuf   []byte
	bytesOut int64

	closer  io.Closer
	flusher interface{ Flush() error }
	fder    interface{ Fd() uintptr }
}

// NewWriter starts a compression stream writing to sink. Construction fails
// when the compressor's context is already driving another stream, or when
// the pledged source size is rejected.
func (c *Compressor) NewWriter(sink io.Writer, params *WriterParams) (*Writer, error) {
	if sink == nil {
		return nil, newParameterError("new writer", "sink must not be nil")
	}
	var p WriterParams
	if params != nil {
		p = *params
	}
	writeSize := p.WriteSize
	if writeSize <= 0 {
		writeSize = CStreamOutSize()
	}

	if err := c.cw.acquire("new writer"); err != nil {
		return nil, err
	}
	if err := c.cw.reset(ZSTD_reset_session_only); err != nil {
		c.cw.release()
		return nil, err
	}
	pledged := p.SourceSize
	if pledged == 0 {
		pledged = contentSizeUnknown
	}
	if err := c.cw.setPledgedSrcSize(pledged); err != nil {
		c.cw.release()
		return nil, err
	}
	c.cw.ref()

	w := &Writer{
		cw:     c.cw,
		sink:   sink,
		state:  stateEntered,
		params: p,
		dstBuf: GetBuffer(writeSize)[:0:writeSize],
	}
	w.closer, _ = sink.(io.Closer)
	w.flusher, _ = sink.(interface{ Flush() error })
	w.fder, _ = sink.(interface{ Fd() uintptr })
	GlobalMetrics.RecordStreamOpened()
	return w, nil
}

func (w *Writer) step(op string, directive ZSTD_EndDirective) stepFunc {
	return func(dst []byte, dstPos *int, src []byte, srcPos *int) (uint64, error) {
		return w.cw.compressStream2(op, dst, dstPos, src, srcPos, directive)
	}
}

func (w *Writer) forward(p []byte) (int, error) {
	n, err := w.sink.Write(p)
	w.bytesOut += int64(n)
	return n, err
}

// Write compresses p and forwards any produced output to the sink as it
// appears. The return value counts input bytes consumed, or compressed
// bytes forwarded to the sink when WriteReturnWritten is set.
func (w *Writer) Write(p []byte) (int, error) {
	if w.state == stateClosed {
		return 0, errStreamClosed("write")
	}

	consumed, written, err := pump(w.step("write", ZSTD_e_continue), w.dstBuf, p, false, w.forward)
	GlobalMetrics.RecordCompression(consumed, written, err)
	if w.params.WriteReturnWritten {
		return written, err
	}
	return consumed, err
}

// Flush pushes buffered data out of the engine into the sink.
//
// FlushBlock emits everything buffered so far without ending the frame, so
// the sink's bytes up to this point decompress to the input written so far.
// FlushFrame additionally ends the frame; a later Write starts a new frame
// with an unknown pledged size.
//
// When the sink exposes its own Flush method it is flushed as well.
func (w *Writer) Flush(mode FlushMode) error {
	var directive ZSTD_EndDirective
	switch mode {
	case FlushBlock:
		directive = ZSTD_e_flush
	case FlushFrame:
		directive = ZSTD_e_end
	default:
		return newParameterError("flush", fmt.Sprintf("unknown flush mode: %d", mode))
	}
	if w.state == stateClosed {
		return errStreamClosed("flush")
	}

	_, written, err := pump(w.step("flush", directive), w.dstBuf, nil, true, w.forward)
	GlobalMetrics.RecordCompression(0, written, err)
	if err != nil {
		return err
	}

	if mode == FlushFrame {
		GlobalMetrics.RecordFrameCompleted()
	}
	if w.flusher != nil && w.state != stateClosing {
		return w.flusher.Flush()
	}
	return nil
}

// Close ends the current frame, releases the compressor's context and
// returns the stream's buffer to the pool. The writer is marked closed even
// when the final flush fails, so a failed Close cannot be retried; the
// failure is surfaced once. When CloseSink is set the sink is closed as
// well, even after a failed flush. Closing an already closed stream is a
// no-op.
func (w *Writer) Close() error {
	if w.state == stateClosed {
		return nil
	}
	w.state = stateClosing
	err := w.Flush(FlushFrame)
	w.state = stateClosed

	w.cw.release()
	w.cw.unref()
	PutBuffer(w.dstBuf)
	w.dstBuf = nil
	GlobalMetrics.RecordStreamClosed()

	if w.params.CloseSink && w.closer != nil {
		err = multierr.Append(err, w.closer.Close())
	}
	return err
}

// Tell returns the cumulative number of compressed bytes forwarded to the
// sink.
func (w *Writer) Tell() int64 {
	return w.bytesOut
}

// Fd returns the file descriptor of the sink when it has one.
func (w *Writer) Fd() (uintptr, error) {
	if w.fder == nil {
		return 0, newUnsupportedError("fileno", "fileno not available on underlying writer")
	}
	return w.fder.Fd(), nil
}

// Read always fails: the stream is write-only.
func (w *Writer) Read(p []byte) (int, error) {
	return 0, newUnsupportedError("read", "stream is write-only")
}

// Seek always fails: compressed output cannot be repositioned.
func (w *Writer) Seek(offset int64, whence int) (int64, error) {
	return 0, newUnsupportedError("seek", "stream is not seekable")
}

// MemorySize returns the current memory footprint of the underlying context
// in bytes.
func (w *Writer) MemorySize() int {
	return w.cw.sizeOf()
}
