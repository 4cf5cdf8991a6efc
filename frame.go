package zstream

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>
#include <zstd_errors.h>

// Wrapper functions for frame inspection

static unsigned long long ZSTD_getFrameContentSize_wrapper(void *src, size_t srcSize) {
    return ZSTD_getFrameContentSize((const void*)src, srcSize);
}

static size_t ZSTD_findFrameCompressedSize_wrapper(void *src, size_t srcSize) {
    return ZSTD_findFrameCompressedSize((const void*)src, srcSize);
}

static size_t ZSTD_getFrameHeader_wrapper(void *src, size_t srcSize,
	unsigned long long *contentSize, unsigned long long *windowSize,
	unsigned *blockSizeMax, unsigned *headerSize, unsigned *dictID,
	unsigned *checksumFlag, unsigned *frameType) {
	ZSTD_frameHeader fh;
	size_t result = ZSTD_getFrameHeader(&fh, (const void*)src, srcSize);
	if (result == 0) {
		*contentSize = fh.frameContentSize;
		*windowSize = fh.windowSize;
		*blockSizeMax = fh.blockSizeMax;
		*headerSize = fh.headerSize;
		*dictID = fh.dictID;
		*checksumFlag = fh.checksumFlag;
		*frameType = (unsigned)fh.frameType;
	}
	return result;
}
*/
import "C"

import (
	"reflect"
	"runtime"
	"unsafe"
)

// FrameHeader describes the header of a zstd frame.
type FrameHeader struct {
	ContentSize    uint64 // declared content size, meaningful only when HasContentSize is set
	WindowSize     uint64 // window size a decoder must provision for this frame
	BlockSizeMax   uint32 // maximum block size within the frame
	HeaderSize     uint32 // size of the frame header itself in bytes
	DictID         uint32 // dictionary ID, 0 if none
	HasContentSize bool   // whether the header declares the content size
	HasChecksum    bool   // whether the frame carries a content checksum
	Skippable      bool   // whether this is a skippable frame
}

// ParseFrameHeader parses the header of the frame starting at src.
//
// It fails with an IncompleteFrameError when src ends before the header is
// complete, and with a FrameError (or another mapped engine error) when the
// bytes do not form a valid frame.
func ParseFrameHeader(src []byte) (*FrameHeader, error) {
	var (
		contentSize  C.ulonglong
		windowSize   C.ulonglong
		blockSizeMax C.uint
		headerSize   C.uint
		dictID       C.uint
		checksumFlag C.uint
		frameType    C.uint
	)

	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	result := C.ZSTD_getFrameHeader_wrapper(
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)),
		&contentSize, &windowSize,
		&blockSizeMax, &headerSize, &dictID,
		&checksumFlag, &frameType)
	runtime.KeepAlive(src)

	if zstdIsError(result) {
		return nil, mapZstdError(result, "parse frame header", ErrorContext{InputSize: len(src)})
	}
	if result > 0 {
		// The engine reports how many bytes it would need to finish parsing.
		return nil, &IncompleteFrameError{
			Operation: "parse frame header",
			Index:     -1,
			Message:   "is too small to contain a zstd frame",
		}
	}

	fh := &FrameHeader{
		WindowSize:   uint64(windowSize),
		BlockSizeMax: uint32(blockSizeMax),
		HeaderSize:   uint32(headerSize),
		DictID:       uint32(dictID),
		HasChecksum:  checksumFlag != 0,
		Skippable:    frameType == 1, // ZSTD_skippableFrame
	}
	if uint64(contentSize) != contentSizeUnknown {
		fh.HasContentSize = true
		fh.ContentSize = uint64(contentSize)
	}
	return fh, nil
}

// frameContentSize probes the content size declared by the frame header of
// src. It reports known=false for frames that do not declare their size and
// fails only when the header cannot be read at all.
func frameContentSize(src []byte) (size uint64, known bool, err error) {
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	result := uint64(C.ZSTD_getFrameContentSize_wrapper(
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src))))
	runtime.KeepAlive(src)

	switch result {
	case contentSizeError:
		return 0, false, newFrameError("determine content size", "error determining content size from frame header")
	case contentSizeUnknown:
		return 0, false, nil
	default:
		return result, true, nil
	}
}

// GetFrameContentSize returns the uncompressed content size declared in the
// frame header of src. It fails if the frame is invalid or does not declare
// its content size.
func GetFrameContentSize(src []byte) (uint64, error) {
	size, known, err := frameContentSize(src)
	if err != nil {
		return 0, err
	}
	if !known {
		return 0, newFrameError("determine content size", "content size unknown (not stored in frame header)")
	}
	return size, nil
}

// GetFrameCompressedSize returns the compressed size of the first frame in
// src, which must contain at least one complete frame. This is useful when
// processing concatenated frames or streams.
func GetFrameCompressedSize(src []byte) (uint64, error) {
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	result := C.ZSTD_findFrameCompressedSize_wrapper(
		unsafe.Pointer(srcHdr.Data), C.size_t(len(src)))
	runtime.KeepAlive(src)

	if zstdIsError(result) {
		return 0, mapZstdError(result, "frame compressed size detection", ErrorContext{InputSize: len(src)})
	}
	return uint64(result), nil
}

// IsZstdFrame reports whether src starts with a standard zstd frame. This is
// a lightweight check that only examines the magic number.
func IsZstdFrame(src []byte) bool {
	if len(src) < 4 {
		return false
	}
	magic := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
	return magic == 0xFD2FB528 // Standard ZSTD magic number
}
