package zstream

import (
	"errors"
	"fmt"
	"runtime"
)

const chainOp = "decompress content dict chain"

// DecompressContentDictChain decodes an ordered sequence of frames where
// each frame after the first was compressed using the previous frame's
// decompressed bytes as its reference data. The chain carries no explicit
// dictionary: before each element after the first, the previous element's
// output is referenced as a single-use content prefix, standing in for the
// decode window the engine discards at every frame boundary. The context is
// never reset between elements. The result is the last frame's decompressed
// content.
//
// Every frame must declare its exact content size in its header. Failures
// name the offending chunk index. A chain of length 1 decodes its single
// frame the same way DecompressFrame would.
func (d *Decompressor) DecompressContentDictChain(frames [][]byte) ([]byte, error) {
	if len(frames) == 0 {
		return nil, newParameterError(chainOp, "empty input chain")
	}

	if err := d.dw.acquire(chainOp); err != nil {
		return nil, err
	}
	defer d.dw.release()

	// The configured dictionary is deliberately not loaded: each element's
	// reference data is the previous element's output.
	if err := d.setupDCtx(false); err != nil {
		return nil, err
	}

	var last []byte
	for i, frame := range frames {
		out, err := d.decodeChainElement(i, frame, last)
		if err != nil {
			return nil, err
		}
		last = out
	}
	return last, nil
}

// decodeChainElement decodes one chain element. prev is the previous
// element's output and becomes the reference data for every element but the
// first.
func (d *Decompressor) decodeChainElement(index int, frame, prev []byte) ([]byte, error) {
	hdr, err := ParseFrameHeader(frame)
	if err != nil {
		var incomplete *IncompleteFrameError
		if errors.As(err, &incomplete) {
			return nil, &IncompleteFrameError{
				Operation: chainOp,
				Index:     index,
				Message:   "is too small to contain a zstd frame",
			}
		}
		return nil, newFrameError(chainOp, fmt.Sprintf("chunk %d is not a valid zstd frame", index))
	}
	if !hdr.HasContentSize {
		return nil, newParameterError(chainOp, fmt.Sprintf("chunk %d missing content size in frame", index))
	}
	if hdr.ContentSize > uint64(maxInt) {
		return nil, newMemoryError(chainOp, fmt.Sprintf("cannot allocate %d byte output buffer for chunk %d", hdr.ContentSize, index))
	}

	if index > 0 {
		if err := d.dw.refPrefix(prev); err != nil {
			return nil, err
		}
	}

	dst := make([]byte, 0, int(hdr.ContentSize))
	dstPos := 0
	srcPos := 0
	stepOp := fmt.Sprintf("%s: chunk %d", chainOp, index)
	remaining, err := d.dw.decompressStream(stepOp, dst, &dstPos, frame, &srcPos)
	// The engine references prev until the frame above completes.
	runtime.KeepAlive(prev)
	if err == nil && remaining != 0 {
		err = &IncompleteFrameError{
			Operation: chainOp,
			Index:     index,
			Message:   "did not decompress full frame",
		}
	}
	if err == nil && uint64(dstPos) != hdr.ContentSize {
		err = &SizeMismatchError{
			Operation: chainOp,
			Index:     index,
			Got:       uint64(dstPos),
			Want:      hdr.ContentSize,
		}
	}
	GlobalMetrics.RecordDecompression(srcPos, dstPos, err)
	if err != nil {
		return nil, err
	}
	return dst[:dstPos], nil
}
