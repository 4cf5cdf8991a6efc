package zstream

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lzstd

#define ZSTD_STATIC_LINKING_ONLY
#include <zstd.h>
#include <zstd_errors.h>
*/
import "C"

import (
	"errors"
	"fmt"
)

// ZstdError represents an error reported by the zstd engine, together with
// the operation that triggered it and whatever context was available.
type ZstdError struct {
	Code      int          // zstd error code, 0 for errors raised on the Go side
	Operation string       // what operation failed
	Message   string       // human-readable message
	Context   ErrorContext // additional context information
}

// ErrorContext provides additional context for codec errors.
type ErrorContext struct {
	InputSize    int    // size of input data
	OutputSize   int    // size of output buffer
	DictionaryID uint32 // dictionary ID if applicable
}

// Error implements the error interface.
func (e *ZstdError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("zstd: %s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("zstd: %s: %s (code %d)", e.Operation, e.Message, e.Code)
}

// Specific error types for each category.
type (
	// CorruptionError indicates the input data is damaged or was tampered
	// with (bad blocks, failed content checksum).
	CorruptionError struct{ *ZstdError }
	// MemoryError indicates an allocation failure, either reported by the
	// engine or raised by the output-size guard before allocating.
	MemoryError struct{ *ZstdError }
	// BufferError indicates a source or destination buffer problem.
	BufferError struct{ *ZstdError }
	// ParameterError indicates an invalid parameter or configuration, such
	// as an unknown flush mode or a missing output-size bound.
	ParameterError struct{ *ZstdError }
	// DictionaryError indicates a missing, wrong or corrupted dictionary.
	DictionaryError struct{ *ZstdError }
	// StreamStateError indicates an operation against a stream or context
	// whose lifecycle state forbids it (closed stream, busy context).
	StreamStateError struct{ *ZstdError }
	// VersionError indicates data produced by an unsupported zstd version.
	VersionError struct{ *ZstdError }
	// FrameError indicates malformed frame structure or headers.
	FrameError struct{ *ZstdError }
)

// Unwrap exposes the underlying ZstdError, so errors.As reaches the base
// type through any of the typed wrappers.

func (e *CorruptionError) Unwrap() error  { return e.ZstdError }
func (e *MemoryError) Unwrap() error      { return e.ZstdError }
func (e *BufferError) Unwrap() error      { return e.ZstdError }
func (e *ParameterError) Unwrap() error   { return e.ZstdError }
func (e *DictionaryError) Unwrap() error  { return e.ZstdError }
func (e *StreamStateError) Unwrap() error { return e.ZstdError }
func (e *VersionError) Unwrap() error     { return e.ZstdError }
func (e *FrameError) Unwrap() error       { return e.ZstdError }

// IncompleteFrameError indicates that a frame could not be fully resolved:
// the engine signaled that more input or output space was required, but the
// operation had none left to give.
type IncompleteFrameError struct {
	Operation string
	Index     int    // frame index within a chain, -1 when not chain-scoped
	Message   string // what was incomplete, phrased to follow the chunk index
}

func (e *IncompleteFrameError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("zstd: %s: chunk %d %s", e.Operation, e.Index, e.Message)
	}
	return fmt.Sprintf("zstd: %s: %s", e.Operation, e.Message)
}

// SizeMismatchError indicates that the number of decompressed bytes disagrees
// with the exact content size declared in the frame header.
type SizeMismatchError struct {
	Operation string
	Index     int // frame index within a chain, -1 when not chain-scoped
	Got       uint64
	Want      uint64
}

func (e *SizeMismatchError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("zstd: %s: chunk %d decompressed %d bytes; expected %d",
			e.Operation, e.Index, e.Got, e.Want)
	}
	return fmt.Sprintf("zstd: %s: decompressed %d bytes; expected %d", e.Operation, e.Got, e.Want)
}

// UnsupportedError indicates a structurally disallowed operation, such as
// reading from a forward-only compression sink, or a sink that lacks an
// optional capability like a file descriptor. It unwraps to
// errors.ErrUnsupported so callers can test with errors.Is.
type UnsupportedError struct {
	Operation string
	Message   string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("zstd: %s: %s", e.Operation, e.Message)
}

func (e *UnsupportedError) Unwrap() error { return errors.ErrUnsupported }

// Constructors for errors raised on the Go side of the adapter, without an
// engine error code.

func newParameterError(op, msg string) error {
	return &ParameterError{&ZstdError{Operation: op, Message: msg}}
}

func newStreamStateError(op, msg string) error {
	return &StreamStateError{&ZstdError{Operation: op, Message: msg}}
}

func newMemoryError(op, msg string) error {
	return &MemoryError{&ZstdError{Operation: op, Message: msg}}
}

func newFrameError(op, msg string) error {
	return &FrameError{&ZstdError{Operation: op, Message: msg}}
}

func newUnsupportedError(op, msg string) error {
	return &UnsupportedError{Operation: op, Message: msg}
}

// errStreamClosed is the StreamStateError returned by every operation on a
// closed stream.
func errStreamClosed(op string) error {
	return newStreamStateError(op, "stream is closed")
}

// mapZstdError converts an engine result code to a typed Go error. It returns
// nil if result does not carry an error.
func mapZstdError(result C.size_t, operation string, ctx ErrorContext) error {
	if !zstdIsError(result) {
		return nil
	}

	code := int(C.ZSTD_getErrorCode(result))
	message := C.GoString(C.ZSTD_getErrorString(C.ZSTD_getErrorCode(result)))

	baseError := &ZstdError{
		Code:      code,
		Operation: operation,
		Message:   message,
		Context:   ctx,
	}

	switch code {
	// Buffer and size errors
	case C.ZSTD_error_dstSize_tooSmall,
		C.ZSTD_error_srcSize_wrong,
		C.ZSTD_error_dstBuffer_null:
		return &BufferError{baseError}

	// Memory allocation errors
	case C.ZSTD_error_memory_allocation,
		C.ZSTD_error_workSpace_tooSmall:
		return &MemoryError{baseError}

	// Corruption and integrity errors
	case C.ZSTD_error_corruption_detected,
		C.ZSTD_error_checksum_wrong,
		C.ZSTD_error_literals_headerWrong:
		return &CorruptionError{baseError}

	// Dictionary errors
	case C.ZSTD_error_dictionary_corrupted,
		C.ZSTD_error_dictionary_wrong,
		C.ZSTD_error_dictionaryCreation_failed:
		return &DictionaryError{baseError}

	// Parameter validation errors
	case C.ZSTD_error_parameter_unsupported,
		C.ZSTD_error_parameter_combination_unsupported,
		C.ZSTD_error_parameter_outOfBound,
		C.ZSTD_error_tableLog_tooLarge,
		C.ZSTD_error_maxSymbolValue_tooLarge,
		C.ZSTD_error_maxSymbolValue_tooSmall:
		return &ParameterError{baseError}

	// Frame and format errors
	case C.ZSTD_error_prefix_unknown,
		C.ZSTD_error_frameParameter_unsupported,
		C.ZSTD_error_frameParameter_windowTooLarge,
		C.ZSTD_error_frameIndex_tooLarge:
		return &FrameError{baseError}

	// Stream state errors
	case C.ZSTD_error_stage_wrong,
		C.ZSTD_error_init_missing,
		C.ZSTD_error_noForwardProgress_destFull,
		C.ZSTD_error_noForwardProgress_inputEmpty:
		return &StreamStateError{baseError}

	// Version compatibility errors
	case C.ZSTD_error_version_unsupported:
		return &VersionError{baseError}

	default:
		return baseError
	}
}

// Convenience functions for error type checking. They follow wrapped error
// chains, so they also match errors combined on Close paths.

func IsCorruptionError(err error) bool  { var e *CorruptionError; return errors.As(err, &e) }
func IsMemoryError(err error) bool      { var e *MemoryError; return errors.As(err, &e) }
func IsBufferError(err error) bool      { var e *BufferError; return errors.As(err, &e) }
func IsParameterError(err error) bool   { var e *ParameterError; return errors.As(err, &e) }
func IsDictionaryError(err error) bool  { var e *DictionaryError; return errors.As(err, &e) }
func IsStreamStateError(err error) bool { var e *StreamStateError; return errors.As(err, &e) }
func IsVersionError(err error) bool     { var e *VersionError; return errors.As(err, &e) }
func IsFrameError(err error) bool       { var e *FrameError; return errors.As(err, &e) }

func IsIncompleteFrameError(err error) bool { var e *IncompleteFrameError; return errors.As(err, &e) }
func IsSizeMismatchError(err error) bool    { var e *SizeMismatchError; return errors.As(err, &e) }
func IsUnsupportedError(err error) bool     { var e *UnsupportedError; return errors.As(err, &e) }

func zstdIsError(result C.size_t) bool {
	if int(result) >= 0 {
		// Fast path - avoid calling a C function.
		return false
	}
	return C.ZSTD_isError(result) != 0
}

func ensureNoError(funcName string, result C.size_t) {
	if zstdIsError(result) {
		err := mapZstdError(result, funcName, ErrorContext{})
		panic(fmt.Errorf("BUG: unexpected error in %s: %w", funcName, err))
	}
}
