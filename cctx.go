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

static size_t ZSTD_compressStream2_wrapper(void *ctx,
	void *dst, size_t dstCapacity, size_t *dstPos,
	const void *src, size_t srcSize, size_t *srcPos,
	int endOp) {
	ZSTD_outBuffer outBuf = { dst, dstCapacity, *dstPos };
	ZSTD_inBuffer inBuf = { src, srcSize, *srcPos };
	size_t result = ZSTD_compressStream2((ZSTD_CCtx*)ctx, &outBuf, &inBuf, (ZSTD_EndDirective)endOp);
	*dstPos = outBuf.pos;
	*srcPos = inBuf.pos;
	return result;
}

static size_t ZSTD_compress2_wrapper(void *ctx, void *dst, size_t dstCapacity, const void *src, size_t srcSize) {
	return ZSTD_compress2((ZSTD_CCtx*)ctx, dst, dstCapacity, src, srcSize);
}

static size_t ZSTD_compressCCtx_wrapper(void *ctx, void *dst, size_t dstCapacity, const void *src, size_t srcSize, int compressionLevel) {
	return ZSTD_compressCCtx((ZSTD_CCtx*)ctx, dst, dstCapacity, src, srcSize, compressionLevel);
}

static size_t ZSTD_compress_usingCDict_wrapper(void *ctx, void *dst, size_t dstCapacity, const void *src, size_t srcSize, void *cdict) {
	return ZSTD_compress_usingCDict((ZSTD_CCtx*)ctx, dst, dstCapacity, src, srcSize, (const ZSTD_CDict*)cdict);
}

static size_t ZSTD_CCtx_refCDict_wrapper(void *ctx, void *cdict) {
	return ZSTD_CCtx_refCDict((ZSTD_CCtx*)ctx, (const ZSTD_CDict*)cdict);
}
*/
import "C"

import (
	"fmt"
	"math"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// DefaultCompressionLevel is the default compression level.
const DefaultCompressionLevel = 3 // Obtained from ZSTD_CLEVEL_DEFAULT.

// Engine sentinels for frame content sizes. Defined on the Go side because
// cgo cannot evaluate the (0ULL - 1) macros from the header.
const (
	contentSizeUnknown = uint64(math.MaxUint64)     // ZSTD_CONTENTSIZE_UNKNOWN
	contentSizeError   = uint64(math.MaxUint64 - 1) // ZSTD_CONTENTSIZE_ERROR
)

// cctxWrapper owns a raw compression context. The wrapper is shared between
// a Compressor and any stream spawned from it, so the underlying context
// stays alive until the last holder drops its reference. A finalizer
// backstops contexts whose owners never call Release.
type cctxWrapper struct {
	cctx *C.ZSTD_CCtx
	dict *CDict // pinned until the context is freed
	refs int64  // atomic
	held int32  // atomic, nonzero while a stream or one-shot call drives the context
}

func newCCtxWrapper() (*cctxWrapper, error) {
	cctx := C.ZSTD_createCCtx()
	if cctx == nil {
		return nil, newMemoryError("create compression context", "unable to allocate compression context")
	}
	cw := &cctxWrapper{
		cctx: cctx,
		refs: 1,
	}
	runtime.SetFinalizer(cw, freeCCtxWrapper)
	return cw, nil
}

func freeCCtxWrapper(cw *cctxWrapper) {
	if cw.cctx != nil {
		C.ZSTD_freeCCtx(cw.cctx)
		cw.cctx = nil
	}
	if cw.dict != nil {
		cw.dict.releaseRef()
		cw.dict = nil
	}
}

func (cw *cctxWrapper) ref() {
	atomic.AddInt64(&cw.refs, 1)
}

func (cw *cctxWrapper) unref() {
	refs := atomic.AddInt64(&cw.refs, -1)
	if refs == 0 {
		runtime.SetFinalizer(cw, nil)
		freeCCtxWrapper(cw)
	} else if refs < 0 {
		panic("BUG: compression context released more times than acquired")
	}
}

// acquire claims the context for a single logical driver. The engine must
// never see interleaved step calls from two streams, so opening a second
// stream before the first one is closed fails with a StreamStateError.
func (cw *cctxWrapper) acquire(op string) error {
	if !atomic.CompareAndSwapInt32(&cw.held, 0, 1) {
		return newStreamStateError(op, "compression context is already driving another stream")
	}
	return nil
}

func (cw *cctxWrapper) release() {
	atomic.StoreInt32(&cw.held, 0)
}

func (cw *cctxWrapper) reset(directive ZSTD_ResetDirective) error {
	result := C.ZSTD_CCtx_reset(cw.cctx, C.ZSTD_ResetDirective(directive))
	return mapZstdError(result, "reset compression context", ErrorContext{})
}

func (cw *cctxWrapper) setParameter(param CParameter, value int) error {
	result := C.ZSTD_CCtx_setParameter(cw.cctx, C.ZSTD_cParameter(param), C.int(value))
	return mapZstdError(result, "set parameter", ErrorContext{})
}

/*
*  Total input data size to be compressed as a single frame.
*  Value will be written in frame header, unless if explicitly forbidden using ZSTD_c_contentSizeFlag.
*  This value will also be controlled at end of frame, and trigger an error if not respected.
*  Note 1 : pledgedSrcSize==0 actually means zero, aka an empty frame.
*           In order to mean "unknown content size", pass constant ZSTD_CONTENTSIZE_UNKNOWN.
*           ZSTD_CONTENTSIZE_UNKNOWN is default value for any new frame.
*  Note 2 : pledgedSrcSize is only valid once, for the next frame.
*           It's discarded at the end of the frame, and replaced by ZSTD_CONTENTSIZE_UNKNOWN.
 */
func (cw *cctxWrapper) setPledgedSrcSize(pledgedSrcSize uint64) error {
	result := C.ZSTD_CCtx_setPledgedSrcSize(cw.cctx, C.ulonglong(pledgedSrcSize))
	if zstdIsError(result) {
		return mapZstdError(result, "set pledged source size", ErrorContext{InputSize: int(pledgedSrcSize)})
	}
	return nil
}

func (cw *cctxWrapper) refCDict(cd *CDict) error {
	result := C.ZSTD_CCtx_refCDict_wrapper(unsafe.Pointer(cw.cctx), unsafe.Pointer(cd.p))
	runtime.KeepAlive(cd)
	return mapZstdError(result, "reference compression dictionary", ErrorContext{})
}

func (cw *cctxWrapper) sizeOf() int {
	return int(C.ZSTD_sizeof_CCtx(cw.cctx))
}

// compressStream2 advances the engine by one step over a cursor pair: it
// consumes src from *srcPos and produces into the spare capacity of dst from
// *dstPos. Both positions are written back from what the engine reports
// before the result is inspected; the caller must trust them over its own
// bookkeeping. The returned value is the engine's remaining-work hint for
// the requested directive, where zero means the directive completed. op
// names the calling operation in any returned error.
func (cw *cctxWrapper) compressStream2(op string, dst []byte, dstPos *int, src []byte, srcPos *int, directive ZSTD_EndDirective) (uint64, error) {
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))

	cDstPos := C.size_t(*dstPos)
	cSrcPos := C.size_t(*srcPos)
	result := C.ZSTD_compressStream2_wrapper(
		unsafe.Pointer(cw.cctx),
		unsafe.Pointer(dstHdr.Data),
		C.size_t(cap(dst)),
		&cDstPos,
		unsafe.Pointer(srcHdr.Data),
		C.size_t(len(src)),
		&cSrcPos,
		C.int(directive))
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

// compressAppend compresses src as a single frame with the parameters bound
// to the context and appends the result to dst. The fast path tries the
// spare capacity of dst; the engine is called again with a compressBound
// sized buffer only when that capacity was reported too small.
func (cw *cctxWrapper) compressAppend(dst, src []byte) ([]byte, error) {
	dstLen := len(dst)
	ctx := ErrorContext{
		InputSize:  len(src),
		OutputSize: cap(dst) - dstLen,
	}

	if cap(dst) > dstLen {
		// Fast path - try compressing without dst resize.
		result := compress2Internal(cw, dst[dstLen:cap(dst)], src)
		if int(result) >= 0 {
			// All OK.
			return dst[:dstLen+int(result)], nil
		}
		if C.ZSTD_getErrorCode(result) != C.ZSTD_error_dstSize_tooSmall {
			return dst, mapZstdError(result, "compression", ctx)
		}
	}

	// Slow path - resize dst to fit compressed data.
	compressBound := int(C.ZSTD_compressBound(C.size_t(len(src)))) + 1
	requiredTotal := dstLen + compressBound
	if cap(dst) < requiredTotal {
		newBuf := GetBuffer(requiredTotal)
		newBuf = newBuf[:dstLen]
		copy(newBuf, dst[:dstLen])
		dst = newBuf
	}

	result := compress2Internal(cw, dst[dstLen:dstLen+compressBound], src)
	if zstdIsError(result) {
		return dst[:dstLen], mapZstdError(result, "compression", ctx)
	}
	return dst[:dstLen+int(result)], nil
}

func compress2Internal(cw *cctxWrapper, dst, src []byte) C.size_t {
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))

	result := C.ZSTD_compress2_wrapper(
		unsafe.Pointer(cw.cctx),
		unsafe.Pointer(dstHdr.Data),
		C.size_t(cap(dst)),
		unsafe.Pointer(srcHdr.Data),
		C.size_t(len(src)))
	// Prevent from GC'ing of dst and src during CGO call above.
	runtime.KeepAlive(dst)
	runtime.KeepAlive(src)
	return result
}

func compressLevelInternal(cw *cctxWrapper, dst, src []byte, compressionLevel int, mustSucceed bool) C.size_t {
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))

	result := C.ZSTD_compressCCtx_wrapper(
		unsafe.Pointer(cw.cctx),
		unsafe.Pointer(dstHdr.Data),
		C.size_t(cap(dst)),
		unsafe.Pointer(srcHdr.Data),
		C.size_t(len(src)),
		C.int(compressionLevel))
	// Prevent from GC'ing of dst and src during CGO call above.
	runtime.KeepAlive(dst)
	runtime.KeepAlive(src)
	if mustSucceed {
		ensureNoError("ZSTD_compressCCtx", result)
	}
	return result
}

func compressDictInternal(cw *cctxWrapper, dst, src []byte, cd *CDict, mustSucceed bool) C.size_t {
	dstHdr := (*reflect.SliceHeader)(unsafe.Pointer(&dst))
	srcHdr := (*reflect.SliceHeader)(unsafe.Pointer(&src))

	result := C.ZSTD_compress_usingCDict_wrapper(
		unsafe.Pointer(cw.cctx),
		unsafe.Pointer(dstHdr.Data),
		C.size_t(cap(dst)),
		unsafe.Pointer(srcHdr.Data),
		C.size_t(len(src)),
		unsafe.Pointer(cd.p))
	// Prevent from GC'ing of dst and src during CGO call above.
	runtime.KeepAlive(dst)
	runtime.KeepAlive(src)
	runtime.KeepAlive(cd)
	if mustSucceed {
		ensureNoError("ZSTD_compress_usingCDict", result)
	}
	return result
}

// isDstSizeTooSmall reports whether an engine result is specifically the
// destination-too-small error that triggers the append slow path.
func isDstSizeTooSmall(result C.size_t) bool {
	return C.ZSTD_getErrorCode(result) == C.ZSTD_error_dstSize_tooSmall
}

// compressAppendDictLevel is the engine half of the package-level one-shot
// helpers: dictionary compression when cd is set, plain level-based
// compression otherwise. It appends to dst. Since one-shot compression into
// a compressBound sized buffer cannot fail, anything except the
// destination-too-small probe result is treated as a bug.
func compressAppendDictLevel(cw *cctxWrapper, dst, src []byte, cd *CDict, compressionLevel int) []byte {
	dstLen := len(dst)
	if cap(dst) > dstLen {
		// Fast path - try compressing without dst resize.
		var result C.size_t
		if cd != nil {
			result = compressDictInternal(cw, dst[dstLen:cap(dst)], src, cd, false)
		} else {
			result = compressLevelInternal(cw, dst[dstLen:cap(dst)], src, compressionLevel, false)
		}
		if int(result) >= 0 {
			// All OK.
			return dst[:dstLen+int(result)]
		}
		if !isDstSizeTooSmall(result) {
			err := mapZstdError(result, "compression", ErrorContext{
				InputSize:  len(src),
				OutputSize: cap(dst) - dstLen,
			})
			panic(fmt.Errorf("BUG: unexpected error during one-shot compression: %w", err))
		}
	}

	// Slow path - resize dst to fit compressed data.
	compressBound := int(C.ZSTD_compressBound(C.size_t(len(src)))) + 1
	requiredTotal := dstLen + compressBound
	if cap(dst) < requiredTotal {
		newBuf := GetBuffer(requiredTotal)
		newBuf = newBuf[:dstLen]
		copy(newBuf, dst[:dstLen])
		dst = newBuf
	}

	var result C.size_t
	if cd != nil {
		result = compressDictInternal(cw, dst[dstLen:dstLen+compressBound], src, cd, true)
	} else {
		result = compressLevelInternal(cw, dst[dstLen:dstLen+compressBound], src, compressionLevel, true)
	}
	return dst[:dstLen+int(result)]
}

// cctxPool recycles contexts for the package-level one-shot helpers. The
// dictionary-based one-shot entry points use a dedicated pool so contexts
// never mix bare and dictionary compression state.
var cctxPool = &sync.Pool{
	New: func() interface{} {
		cw, _ := newCCtxWrapper()
		return cw
	},
}

var cctxDictPool = &sync.Pool{
	New: func() interface{} {
		cw, _ := newCCtxWrapper()
		return cw
	},
}

func getPooledCCtx(pool *sync.Pool) (*cctxWrapper, error) {
	cw, _ := pool.Get().(*cctxWrapper)
	if cw == nil || cw.cctx == nil {
		return newCCtxWrapper()
	}
	return cw, nil
}

// CompressBound returns the worst-case compressed size for a source of the
// given size.
func CompressBound(srcSize int) int {
	return int(C.ZSTD_compressBound(C.size_t(srcSize)))
}

// CStreamInSize returns the recommended input buffer size for streaming
// compression.
func CStreamInSize() int {
	return int(C.ZSTD_CStreamInSize())
}

// CStreamOutSize returns the recommended output buffer size for streaming
// compression. An output buffer of at least this size guarantees that a
// flush always makes forward progress.
func CStreamOutSize() int {
	return int(C.ZSTD_CStreamOutSize())
}

// EstimateCCtxSize estimates the memory needed by a compression context for
// one-shot compression at the given level.
func EstimateCCtxSize(compressionLevel int) int {
	return int(C.ZSTD_estimateCCtxSize(C.int(compressionLevel)))
}
