package zstream

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>
#include <zstd_errors.h>

// The following *_wrapper functions allow avoiding memory allocations
// during calls from Go.
// See https://github.com/golang/go/issues/24450 .

static size_t ZSTD_decompressStream_wrapper(void *ctx,
	void *dst, size_t dstCapacity, size_t *dstPos,
	const void *src, size_t srcSize, size_t *srcPos) {
	ZSTD_outBuffer outBuf = { dst, dstCapacity, *dstPos };
	ZSTD_inBuffer inBuf = { src, srcSize, *srcPos };
	size_t result = ZSTD_decompressStream((ZSTD_DCtx*)ctx, &outBuf, &inBuf);
	*dstPos = outBuf.pos;
	*srcPos = inBuf.pos;
	return result;
}

static size_t ZSTD_decompressDCtx_wrapper(void *ctx, void *dst, size_t dstCapacity, const void *src, size_t srcSize) {
	return ZSTD_decompressDCtx((ZSTD_DCtx*)ctx, dst, dstCapacity, src, srcSize);
}

static size_t ZSTD_decompress_usingDDict_wrapper(void *ctx, void *dst, size_t dstCapacity, const void *src, size_t srcSize, void *ddict) {
	return ZSTD_decompress_usingDDict((ZSTD_DCtx*)ctx, dst, dstCapacity, src, srcSize, (const ZSTD_DDict*)ddict);
}

static size_t ZSTD_DCtx_setFormat_wrapper(void *ctx, int format) {
	return ZSTD_DCtx_setParameter((ZSTD_DCtx*)ctx, ZSTD_d_format, format);
}

static size_t ZSTD_DCtx_refDDict_wrapper(void *ctx, void *ddict) {
	return ZSTD_DCtx_refDDict((ZSTD_DCtx*)ctx, (const ZSTD_DDict*)ddict);
}

static size_t ZSTD_DCtx_refPrefix_wrapper(void *ctx, const void *prefix, size_t prefixSize) {
	return ZSTD_DCtx_refPrefix((ZSTD_DCtx*)ctx, prefix, prefixSize);
}

static unsigned long long ZSTD_findDecompressedSize_wrapper(const void *src, size_t srcSize) {
	return ZSTD_findDecompressedSize(src, srcSize);
}
*/
import "C"

import (
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// dctxWrapper owns a raw decompression context. Sharing and lifetime rules
// are identical to cctxWrapper: the context survives until its last holder
// drops its reference, and a single driver at a time may step it.
type dctxWrapper struct {
	dctx *C.ZSTD_DCtx
	dict *DDict // pinned until the context is freed
	refs int64  // atomic
	held int32  // atomic, nonzero while a stream or one-shot call drives the context
}

func newDCtxWrapper() (*dctxWrapper, error) {
	dctx := C.ZSTD_createDCtx()
	if dctx == nil {
		return nil, newMemoryError("create decompression context", "unable to allocate decompression context")
	}
	dw := &dctxWrapper{
		dctx: dctx,
		refs: 1,
	}
	runtime.SetFinalizer(dw, freeDCtxWrapper)
	return dw, nil
}

func freeDCtxWrapper(dw *dctxWrapper) {
	if dw.dctx != nil {
		C.ZSTD_freeDCtx(dw.dctx)
		dw.dctx = nil
	}
	if dw.dict != nil {
		dw.dict.releaseRef()
		dw.dict = nil
	}
}

func (dw *dctxWrapper) ref() {
	atomic.AddInt64(&dw.refs, 1)
}

func (dw *dctxWrapper) unref() {
	refs := atomic.AddInt64(&dw.refs, -1)
	if refs == 0 {
		runtime.SetFinalizer(dw, nil)
		freeDCtxWrapper(dw)
	} else if refs < 0 {
		panic("BUG: decompression context released more times than acquired")
	}
}

func (dw *dctxWrapper) acquire(op string) error {
	if !atomic.CompareAndSwapInt32(&dw.held, 0, 1) {
		return newStreamStateError(op, "decompression context is already driving another stream")
	}
	return nil
}

func (dw *dctxWrapper) release() {
	atomic.StoreInt32(&dw.held, 0)
}

func (dw *dctxWrapper) reset(directive ZSTD_ResetDirective) error {
	result := C.ZSTD_DCtx_reset(dw.dctx, C.ZSTD_ResetDirective(directive))
	return mapZstdError(result, "reset decompression context", ErrorContext{})
}

func (dw *dctxWrapper) setMaxWindowSize(maxWindowSize uint64) error {
	result := C.ZSTD_DCtx_setMaxWindowSize(dw.dctx, C.size_t(maxWindowSize))
	return mapZstdError(result, "set max window size", ErrorContext{})
}

func (dw *dctxWrapper) setFormat(format FrameFormat) error {
	result := C.ZSTD_DCtx_setFormat_wrapper(unsafe.Pointer(dw.dctx), C.int(format))
	return mapZstdError(result, "set decoding format", ErrorContext{})
}

// refDDict associates dd with the context for all subsequent frames, or
// clears any prior association when dd is nil. Clearing matters: dictionary
// references are sticky across session resets, and callers that rely on the
// retained window alone must not inherit a dictionary from an earlier
// operation on the same context.
func (dw *dctxWrapper) refDDict(dd *DDict) error {
	var p unsafe.Pointer
	if dd != nil {
		p = unsafe.Pointer(dd.p)
	}
	result := C.ZSTD_DCtx_refDDict_wrapper(unsafe.Pointer(dw.dctx), p)
	runtime.KeepAlive(dd)
	return mapZstdError(result, "reference decompression dictionary", ErrorContext{})
}

// refPrefix references prefix as a single-use raw-content dictionary for the
// next frame only; the engine drops the reference when that frame completes.
// The buffer is held by reference, so the caller must keep it alive and
// unmodified until the frame has been decoded. An empty prefix clears any
// prior dictionary association instead.
func (dw *dctxWrapper) refPrefix(prefix []byte) error {
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&prefix))
	result := C.ZSTD_DCtx_refPrefix_wrapper(
		unsafe.Pointer(dw.dctx),
		unsafe.Pointer(hdr.Data),
		C.size_t(len(prefix)))
	runtime.KeepAlive(prefix)
	return mapZstdError(result, "reference content prefix", ErrorContext{})
}

func (dw *dctxWrapper) sizeOf() int {
	return int(C.ZSTD_sizeof_DCtx(dw.dctx))
}

// decompressStream advances the engine by one step over a cursor pair,
// consuming src from *srcPos and producing into the spare capacity of dst
// from *dstPos. Both positions are written back from what the engine reports
// before the result is inspected. The returned value is the engine's
// remaining-work hint: zero means a frame was fully decoded and flushed,
// nonzero means the frame needs more input or more output room. op names
// the calling operation in any returned error.
func (dw *dctxWrapper) decompressStream(op string, dst []byte, dstPos *int, src []byte, srcPos *int) (uint64, error) {
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))

	cDstPos := C.size_t(*dstPos)
	cSrcPos := C.size_t(*srcPos)
	result := C.ZSTD_decompressStream_wrapper(
		unsafe.Pointer(dw.dctx),
		unsafe.Pointer(dstHdr.Data),
		C.size_t(cap(dst)),
		&cDstPos,
		unsafe.Pointer(srcHdr.Data),
		C.size_t(len(src)),
		&cSrcPos)
	// Prevent from GC'ing of dst and src during CGO call above.
	runtime.KeepAlive(dst)
	runtime.KeepAlive(src)

	*dstPos = int(cDstPos)
	*srcPos = int(cSrcPos)
	if zstdIsError(result) {
		return 0, mapZstdError(result, op, ErrorContext{
			InputSize:  len(src),
			OutputSize: cap(dst),
		})
	}
	return uint64(result), nil
}

func decompressInternal(dw *dctxWrapper, dst, src []byte, dd *DDict) C.size_t {
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))

	var result C.size_t
	if dd != nil {
		result = C.ZSTD_decompress_usingDDict_wrapper(
			unsafe.Pointer(dw.dctx),
			unsafe.Pointer(dstHdr.Data),
			C.size_t(cap(dst)),
			unsafe.Pointer(srcHdr.Data),
			C.size_t(len(src)),
			unsafe.Pointer(dd.p))
	} else {
		result = C.ZSTD_decompressDCtx_wrapper(
			unsafe.Pointer(dw.dctx),
			unsafe.Pointer(dstHdr.Data),
			C.size_t(cap(dst)),
			unsafe.Pointer(srcHdr.Data),
			C.size_t(len(src)))
	}
	// Prevent from GC'ing of dst and src during CGO call above.
	runtime.KeepAlive(dst)
	runtime.KeepAlive(src)
	runtime.KeepAlive(dd)
	return result
}

// findDecompressedSize returns the total decompressed size of all frames in
// src, or the unknown/error sentinels when any frame does not declare its
// size or the data is malformed.
func findDecompressedSize(src []byte) uint64 {
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))
	result := C.ZSTD_findDecompressedSize_wrapper(
		unsafe.Pointer(srcHdr.Data),
		C.size_t(len(src)))
	runtime.KeepAlive(src)
	return uint64(result)
}

// dctxPool recycles contexts for the package-level one-shot helpers.
var dctxPool = &sync.Pool{
	New: func() interface{} {
		dw, _ := newDCtxWrapper()
		return dw
	},
}

var dctxDictPool = &sync.Pool{
	New: func() interface{} {
		dw, _ := newDCtxWrapper()
		return dw
	},
}

func getPooledDCtx(pool *sync.Pool) (*dctxWrapper, error) {
	dw, _ := pool.Get().(*dctxWrapper)
	if dw == nil || dw.dctx == nil {
		return newDCtxWrapper()
	}
	return dw, nil
}

// DStreamInSize returns the recommended input buffer size for streaming
// decompression.
func DStreamInSize() int {
	return int(C.ZSTD_DStreamInSize())
}

// DStreamOutSize returns the recommended output buffer size for streaming
// decompression. An output buffer of at least this size guarantees the
// engine can always flush a complete block.
func DStreamOutSize() int {
	return int(C.ZSTD_DStreamOutSize())
}

// EstimateDCtxSize estimates the memory needed by a decompression context.
func EstimateDCtxSize() int {
	return int(C.ZSTD_estimateDCtxSize())
}
