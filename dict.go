package zstream

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>

// The following *_wrapper functions allow avoiding memory allocations
// during calls from Go.
// See https://github.com/golang/go/issues/24450 .

static ZSTD_CDict* ZSTD_createCDict_wrapper(void *dictBuffer, size_t dictSize, int compressionLevel) {
	return ZSTD_createCDict((const void *)dictBuffer, dictSize, compressionLevel);
}

static ZSTD_DDict* ZSTD_createDDict_wrapper(void *dictBuffer, size_t dictSize) {
	return ZSTD_createDDict((const void *)dictBuffer, dictSize);
}

static unsigned ZSTD_getDictID_fromDict_wrapper(void *dictBuffer, size_t dictSize) {
	return ZSTD_getDictID_fromDict((const void *)dictBuffer, dictSize);
}
*/
import "C"

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// CDict is a digested dictionary used for compression. Content without the
// dictionary magic number is treated as a raw-content dictionary, which is
// how content-dictionary chains are produced.
//
// A single CDict may be re-used in concurrently running goroutines.
type CDict struct {
	p                *C.ZSTD_CDict
	dictID           uint32
	compressionLevel int
	refCount         int64 // atomic reference counter
	released         int64 // atomic flag indicating if dictionary is released
	generation       int64 // atomic generation counter to prevent ABA problem
}

// NewCDict creates new CDict from the given dict.
//
// Call Release when the returned dict is no longer used.
func NewCDict(dict []byte) (*CDict, error) {
	return NewCDictLevel(dict, DefaultCompressionLevel)
}

// NewCDictLevel creates new CDict from the given dict
// using the given compressionLevel.
//
// Call Release when the returned dict is no longer used.
func NewCDictLevel(dict []byte, compressionLevel int) (*CDict, error) {
	if len(dict) == 0 {
		return nil, newParameterError("create compression dictionary", "dictionary content cannot be empty")
	}

	p := C.ZSTD_createCDict_wrapper(
		unsafe.Pointer(&dict[0]),
		C.size_t(len(dict)),
		C.int(compressionLevel))
	dictID := uint32(C.ZSTD_getDictID_fromDict_wrapper(
		unsafe.Pointer(&dict[0]),
		C.size_t(len(dict))))
	// Prevent from GC'ing of dict during CGO calls above.
	runtime.KeepAlive(dict)
	if p == nil {
		return nil, &DictionaryError{&ZstdError{
			Operation: "create compression dictionary",
			Message:   "unable to digest dictionary content",
		}}
	}

	cd := &CDict{
		p:                p,
		dictID:           dictID,
		compressionLevel: compressionLevel,
		refCount:         1, // Start with 1 reference
	}
	runtime.SetFinalizer(cd, freeCDict)
	return cd, nil
}

// ID returns the dictionary ID, or 0 for raw-content dictionaries.
func (cd *CDict) ID() uint32 {
	return cd.dictID
}

// acquireRef safely acquires a reference to the dictionary.
// Returns true if successful, false if dictionary is already released.
// Uses generation counter to prevent ABA problem where dictionary is freed and reallocated.
func (cd *CDict) acquireRef() bool {
	for {
		// Read generation first to establish ordering
		generation := atomic.LoadInt64(&cd.generation)

		if atomic.LoadInt64(&cd.released) != 0 {
			return false // Dictionary already released
		}

		oldCount := atomic.LoadInt64(&cd.refCount)
		if oldCount <= 0 {
			return false // Invalid reference count
		}

		if atomic.CompareAndSwapInt64(&cd.refCount, oldCount, oldCount+1) {
			// Verify generation hasn't changed (prevents ABA problem)
			if atomic.LoadInt64(&cd.generation) != generation {
				// Dictionary was released and possibly reallocated, undo
				atomic.AddInt64(&cd.refCount, -1)
				return false
			}

			// Double-check released flag after incrementing
			if atomic.LoadInt64(&cd.released) != 0 {
				// Dictionary was released after we incremented, undo
				atomic.AddInt64(&cd.refCount, -1)
				return false
			}
			return true
		}
	}
}

// releaseRef safely releases a reference to the dictionary.
// Frees the dictionary if this was the last reference.
func (cd *CDict) releaseRef() {
	newCount := atomic.AddInt64(&cd.refCount, -1)
	if newCount == 0 {
		// Last reference - free the dictionary
		if cd.p != nil {
			result := C.ZSTD_freeCDict(cd.p)
			ensureNoError("ZSTD_freeCDict", result)
			cd.p = nil
		}
	} else if newCount < 0 {
		panic("BUG: CDict reference count went negative")
	}
}

// Release releases resources occupied by cd.
//
// cd cannot be used after the release.
func (cd *CDict) Release() {
	if cd == nil {
		return
	}
	// Mark as released to prevent new references
	if !atomic.CompareAndSwapInt64(&cd.released, 0, 1) {
		return // Already released
	}
	// Increment generation to prevent ABA problem
	atomic.AddInt64(&cd.generation, 1)
	// Release our initial reference
	cd.releaseRef()
}

func freeCDict(v interface{}) {
	v.(*CDict).Release()
}

// DDict is a digested dictionary used for decompression.
//
// A single DDict may be re-used in concurrently running goroutines.
type DDict struct {
	p          *C.ZSTD_DDict
	refCount   int64 // atomic reference counter
	released   int64 // atomic flag indicating if dictionary is released
	generation int64 // atomic generation counter to prevent ABA problem
}

// NewDDict creates new DDict from the given dict.
//
// Call Release when the returned dict is no longer needed.
func NewDDict(dict []byte) (*DDict, error) {
	if len(dict) == 0 {
		return nil, newParameterError("create decompression dictionary", "dictionary content cannot be empty")
	}

	p := C.ZSTD_createDDict_wrapper(
		unsafe.Pointer(&dict[0]),
		C.size_t(len(dict)))
	// Prevent from GC'ing of dict during CGO call above.
	runtime.KeepAlive(dict)
	if p == nil {
		return nil, &DictionaryError{&ZstdError{
			Operation: "create decompression dictionary",
			Message:   "unable to digest dictionary content",
		}}
	}

	dd := &DDict{
		p:        p,
		refCount: 1, // Start with 1 reference
	}
	runtime.SetFinalizer(dd, freeDDict)
	return dd, nil
}

// ID returns the dictionary ID, or 0 for raw-content dictionaries.
func (dd *DDict) ID() uint32 {
	return uint32(C.ZSTD_getDictID_fromDDict(dd.p))
}

// acquireRef safely acquires a reference to the dictionary.
// Returns true if successful, false if dictionary is already released.
// Uses generation counter to prevent ABA problem where dictionary is freed and reallocated.
func (dd *DDict) acquireRef() bool {
	for {
		// Read generation first to establish ordering
		generation := atomic.LoadInt64(&dd.generation)

		if atomic.LoadInt64(&dd.released) != 0 {
			return false // Dictionary already released
		}

		oldCount := atomic.LoadInt64(&dd.refCount)
		if oldCount <= 0 {
			return false // Invalid reference count
		}

		if atomic.CompareAndSwapInt64(&dd.refCount, oldCount, oldCount+1) {
			// Verify generation hasn't changed (prevents ABA problem)
			if atomic.LoadInt64(&dd.generation) != generation {
				// Dictionary was released and possibly reallocated, undo
				atomic.AddInt64(&dd.refCount, -1)
				return false
			}

			// Double-check released flag after incrementing
			if atomic.LoadInt64(&dd.released) != 0 {
				// Dictionary was released after we incremented, undo
				atomic.AddInt64(&dd.refCount, -1)
				return false
			}
			return true
		}
	}
}

// releaseRef safely releases a reference to the dictionary.
// Frees the dictionary if this was the last reference.
func (dd *DDict) releaseRef() {
	newCount := atomic.AddInt64(&dd.refCount, -1)
	if newCount == 0 {
		// Last reference - free the dictionary
		if dd.p != nil {
			result := C.ZSTD_freeDDict(dd.p)
			ensureNoError("ZSTD_freeDDict", result)
			dd.p = nil
		}
	} else if newCount < 0 {
		panic("BUG: DDict reference count went negative")
	}
}

// Release releases resources occupied by dd.
//
// dd cannot be used after the release.
func (dd *DDict) Release() {
	if dd == nil {
		return
	}
	// Mark as released to prevent new references
	if !atomic.CompareAndSwapInt64(&dd.released, 0, 1) {
		return // Already released
	}
	// Increment generation to prevent ABA problem
	atomic.AddInt64(&dd.generation, 1)
	// Release our initial reference
	dd.releaseRef()
}

func freeDDict(v interface{}) {
	v.(*DDict).Release()
}
