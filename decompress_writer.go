package zstream

import (
	"io"

	"go.uber.org/multierr"
)

// DecompressWriterParams configure a decompressing DecompressWriter.
type DecompressWriterParams struct {
	// WriteSize bounds the size of decompressed chunks handed to the
	// sink. Zero selects the engine's recommended streaming output size.
	WriteSize int

	// WriteReturnWritten makes Write return the number of decompressed
	// bytes forwarded to the sink instead of the number of compressed
	// input bytes consumed. Forwarded counts break the io.Writer
	// contract; leave this unset when the writer is driven through
	// io.Copy or similar.
	WriteReturnWritten bool

	// CloseSink makes Close also close the sink when it implements
	// io.Closer.
	CloseSink bool
}

// DecompressWriter decompresses everything written to it and forwards the
// output to a sink. Unlike the compressing Writer there is nothing to flush
// out of the engine: every Write forwards all output the consumed input can
// produce, except a tail that did not fit the staging buffer, which the next
// Write delivers first.
//
// The DecompressWriter claims its parent decompressor's context for the
// whole life of the stream.
type DecompressWriter struct {
	dw     *dctxWrapper
	sink   io.Writer
	state  streamState
	params DecompressWriterParams

	dstBuf   []byte
	bytesOut int64

	closer  io.Closer
	flusher interface{ Flush() error }
	fder    interface{ Fd() uintptr }
}

// NewWriter starts a decompression stream writing decoded output to sink.
// The stream claims the decompressor's context until Close.
func (d *Decompressor) NewWriter(sink io.Writer, params *DecompressWriterParams) (*DecompressWriter, error) {
	if sink == nil {
		return nil, newParameterError("new writer", "sink must not be nil")
	}
	var p DecompressWriterParams
	if params != nil {
		p = *params
	}
	writeSize := p.WriteSize
	if writeSize <= 0 {
		writeSize = DStreamOutSize()
	}

	if err := d.dw.acquire("new writer"); err != nil {
		return nil, err
	}
	if err := d.setupDCtx(true); err != nil {
		d.dw.release()
		return nil, err
	}
	d.dw.ref()

	w := &DecompressWriter{
		dw:     d.dw,
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

func (w *DecompressWriter) step(dst []byte, dstPos *int, src []byte, srcPos *int) (uint64, error) {
	return w.dw.decompressStream("write", dst, dstPos, src, srcPos)
}

func (w *DecompressWriter) forward(p []byte) (int, error) {
	n, err := w.sink.Write(p)
	w.bytesOut += int64(n)
	return n, err
}

// Write decompresses p and forwards any produced output to the sink as it
// appears. The return value counts compressed input bytes consumed, or
// decompressed bytes forwarded to the sink when WriteReturnWritten is set.
func (w *DecompressWriter) Write(p []byte) (int, error) {
	if w.state == stateClosed {
		return 0, errStreamClosed("write")
	}

	consumed, written, err := pump(w.step, w.dstBuf, p, false, w.forward)
	GlobalMetrics.RecordDecompression(consumed, written, err)
	if w.params.WriteReturnWritten {
		return written, err
	}
	return consumed, err
}

// Flush forwards to the sink's own Flush when it has one. The engine itself
// holds no flushable state on the decompression side.
func (w *DecompressWriter) Flush() error {
	if w.state == stateClosed {
		return errStreamClosed("flush")
	}
	if w.flusher != nil && w.state != stateClosing {
		return w.flusher.Flush()
	}
	return nil
}

// Close releases the decompressor's context and returns the stream's buffer
// to the pool. When CloseSink is set the sink is closed as well. Closing an
// already closed stream is a no-op.
func (w *DecompressWriter) Close() error {
	if w.state == stateClosed {
		return nil
	}
	w.state = stateClosing
	err := w.Flush()
	w.state = stateClosed

	w.dw.release()
	w.dw.unref()
	PutBuffer(w.dstBuf)
	w.dstBuf = nil
	GlobalMetrics.RecordStreamClosed()

	if w.params.CloseSink && w.closer != nil {
		err = multierr.Append(err, w.closer.Close())
	}
	return err
}

// Tell returns the cumulative number of decompressed bytes forwarded to the
// sink.
func (w *DecompressWriter) Tell() int64 {
	return w.bytesOut
}

// Fd returns the file descriptor of the sink when it has one.
func (w *DecompressWriter) Fd() (uintptr, error) {
	if w.fder == nil {
		return 0, newUnsupportedError("fileno", "fileno not available on underlying writer")
	}
	return w.fder.Fd(), nil
}

// Read always fails: the stream is write-only.
func (w *DecompressWriter) Read(p []byte) (int, error) {
	return 0, newUnsupportedError("read", "stream is write-only")
}

// Seek always fails: the stream is not seekable.
func (w *DecompressWriter) Seek(offset int64, whence int) (int64, error) {
	return 0, newUnsupportedError("seek", "stream is not seekable")
}

// MemorySize returns the current memory footprint of the underlying context
// in bytes.
func (w *DecompressWriter) MemorySize() int {
	return w.dw.sizeOf()
}
