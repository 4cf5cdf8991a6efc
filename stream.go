package zstream

import "io"

// streamState tracks where a stream is in its lifecycle. Streams returned by
// the constructors start out entered; the zero value marks a stream that was
// never properly constructed.
type streamState int32

const (
	stateFresh streamState = iota
	stateEntered
	stateClosing
	stateClosed
)

// stepFunc advances the engine by one call over a cursor pair: it consumes
// src from *srcPos and produces into dst from *dstPos, writing both positions
// back, and returns the engine's remaining-work hint.
type stepFunc func(dst []byte, dstPos *int, src []byte, srcPos *int) (uint64, error)

// forwardFunc hands a produced chunk to a sink and reports how much of it the
// sink accepted.
type forwardFunc func(p []byte) (int, error)

// pump is the engine-driving loop shared by the streams and the copy
// operations. It repeatedly invokes step, forwarding every produced chunk
// before the next call so memory stays bounded by the destination buffer.
//
// With drain unset the loop runs until src is fully consumed and performs no
// engine call for empty input. With drain set it keeps stepping until the
// engine reports no remaining work, which is how flush directives are driven
// to completion. Produced bytes are discarded when the step itself fails;
// bytes already forwarded stay forwarded.
func pump(step stepFunc, dstBuf, src []byte, drain bool, forward forwardFunc) (consumed, written int, err error) {
	srcPos := 0
	for drain || srcPos < len(src) {
		dstPos := 0
		remaining, err := step(dstBuf, &dstPos, src, &srcPos)
		if err != nil {
			return srcPos, written, err
		}
		if dstPos > 0 {
			n, werr := forward(dstBuf[:dstPos])
			written += n
			if werr != nil {
				return srcPos, written, werr
			}
			if n < dstPos {
				return srcPos, written, io.ErrShortWrite
			}
		}
		if drain && remaining == 0 {
			break
		}
	}
	return srcPos, written, nil
}
