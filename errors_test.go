package zstream

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	t.Run("ParameterError", func(t *testing.T) {
		d, err := NewDecompressor(nil)
		if err != nil {
			t.Fatalf("cannot create decompressor: %s", err)
		}
		defer d.Release()

		// A frame without a declared content size needs an output bound.
		c, err := NewCompressor(nil)
		if err != nil {
			t.Fatalf("cannot create compressor: %s", err)
		}
		defer c.Release()
		var sink bytes.Buffer
		w, err := c.NewWriter(&sink, nil)
		if err != nil {
			t.Fatalf("cannot create writer: %s", err)
		}
		if _, err := w.Write([]byte("unsized frame payload")); err != nil {
			t.Fatalf("cannot write: %s", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("cannot close writer: %s", err)
		}

		_, err = d.DecompressFrame(sink.Bytes(), 0)
		if err == nil {
			t.Fatal("expected error for unknown content size without a bound")
		}
		if !IsParameterError(err) {
			t.Fatalf("expected ParameterError; got %T: %s", err, err)
		}
	})

	t.Run("StreamStateError", func(t *testing.T) {
		c, err := NewCompressor(nil)
		if err != nil {
			t.Fatalf("cannot create compressor: %s", err)
		}
		defer c.Release()
		var sink bytes.Buffer
		w, err := c.NewWriter(&sink, nil)
		if err != nil {
			t.Fatalf("cannot create writer: %s", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("cannot close writer: %s", err)
		}

		_, err = w.Write([]byte("data"))
		if !IsStreamStateError(err) {
			t.Fatalf("expected StreamStateError; got %T: %s", err, err)
		}
		if !strings.Contains(err.Error(), "stream is closed") {
			t.Fatalf("unexpected message: %s", err)
		}
	})

	t.Run("UnsupportedError", func(t *testing.T) {
		c, err := NewCompressor(nil)
		if err != nil {
			t.Fatalf("cannot create compressor: %s", err)
		}
		defer c.Release()
		var sink bytes.Buffer
		w, err := c.NewWriter(&sink, nil)
		if err != nil {
			t.Fatalf("cannot create writer: %s", err)
		}
		defer w.Close()

		_, err = w.Seek(0, 0)
		if !IsUnsupportedError(err) {
			t.Fatalf("expected UnsupportedError; got %T: %s", err, err)
		}
		// The taxonomy plugs into the stdlib sentinel.
		if !errors.Is(err, errors.ErrUnsupported) {
			t.Fatalf("UnsupportedError does not unwrap to errors.ErrUnsupported: %s", err)
		}
	})

	t.Run("CorruptionError", func(t *testing.T) {
		compressed := Compress(nil, []byte(newTestString(4096, 5)))

		// Damage block content past the header.
		corrupted := append([]byte(nil), compressed...)
		for i := len(corrupted) / 2; i < len(corrupted); i++ {
			corrupted[i] ^= 0xa5
		}

		_, err := Decompress(nil, corrupted)
		if err == nil {
			t.Fatal("expected error when decompressing corrupted data")
		}
		var ze *ZstdError
		if !errors.As(err, &ze) {
			t.Fatalf("expected a ZstdError-backed error; got %T: %s", err, err)
		}
		if ze.Code == 0 {
			t.Fatalf("engine error lost its code: %s", err)
		}
	})

	t.Run("FrameError", func(t *testing.T) {
		_, err := Decompress(nil, []byte("not a zstd frame at all"))
		if err == nil {
			t.Fatal("expected error for garbage input")
		}
		if !IsFrameError(err) && !IsCorruptionError(err) {
			t.Fatalf("expected a frame or corruption error; got %T: %s", err, err)
		}
	})
}

func TestIncompleteFrameErrorMessage(t *testing.T) {
	err := &IncompleteFrameError{
		Operation: "decompress",
		Index:     -1,
		Message:   "did not decompress full frame",
	}
	if got := err.Error(); got != "zstd: decompress: did not decompress full frame" {
		t.Fatalf("unexpected message: %q", got)
	}

	chainErr := &IncompleteFrameError{
		Operation: "decompress content dict chain",
		Index:     2,
		Message:   "did not decompress full frame",
	}
	if got := chainErr.Error(); !strings.Contains(got, "chunk 2") {
		t.Fatalf("chain-scoped message does not name the index: %q", got)
	}
	if !IsIncompleteFrameError(chainErr) {
		t.Fatal("IsIncompleteFrameError does not match")
	}
}

func TestSizeMismatchErrorMessage(t *testing.T) {
	err := &SizeMismatchError{Operation: "decompress", Index: -1, Got: 10, Want: 20}
	if got := err.Error(); got != "zstd: decompress: decompressed 10 bytes; expected 20" {
		t.Fatalf("unexpected message: %q", got)
	}
	if !IsSizeMismatchError(err) {
		t.Fatal("IsSizeMismatchError does not match")
	}

	chainErr := &SizeMismatchError{Operation: "decompress content dict chain", Index: 1, Got: 3, Want: 4}
	if got := chainErr.Error(); !strings.Contains(got, "chunk 1") {
		t.Fatalf("chain-scoped message does not name the index: %q", got)
	}
}

func TestErrorWrappersExposeBase(t *testing.T) {
	base := &ZstdError{Code: 20, Operation: "decompression", Message: "Data corruption detected"}
	wrappers := map[string]error{
		"corruption":   &CorruptionError{base},
		"memory":       &MemoryError{base},
		"buffer":       &BufferError{base},
		"parameter":    &ParameterError{base},
		"dictionary":   &DictionaryError{base},
		"stream-state": &StreamStateError{base},
		"version":      &VersionError{base},
		"frame":        &FrameError{base},
	}
	for name, err := range wrappers {
		t.Run(name, func(t *testing.T) {
			var ze *ZstdError
			if !errors.As(err, &ze) {
				t.Fatalf("errors.As does not reach the base through %T", err)
			}
			if ze != base {
				t.Fatalf("unexpected base error: %v", ze)
			}
		})
	}

	// The same holds for errors produced by the engine mapping.
	compressed := Compress(nil, []byte(newTestString(4096, 5)))
	corrupted := corruptCopy(compressed, 20)
	_, err := Decompress(nil, corrupted)
	if err == nil {
		t.Fatal("expected error when decompressing corrupted data")
	}
	var ze *ZstdError
	if !errors.As(err, &ze) {
		t.Fatalf("engine error does not expose its base; got %T: %s", err, err)
	}
	if ze.Code == 0 {
		t.Fatalf("engine error lost its code: %s", err)
	}
}

func TestErrorHelpersFollowWrappedChains(t *testing.T) {
	inner := newStreamStateError("close", "stream is closed")
	wrapped := errors.Join(errors.New("outer"), inner)
	if !IsStreamStateError(wrapped) {
		t.Fatal("IsStreamStateError does not follow wrapped chains")
	}
	if IsParameterError(wrapped) {
		t.Fatal("IsParameterError matched an unrelated error")
	}
}

func TestZstdErrorString(t *testing.T) {
	goSide := &ZstdError{Operation: "flush", Message: "unknown flush mode: 7"}
	if got := goSide.Error(); got != "zstd: flush: unknown flush mode: 7" {
		t.Fatalf("unexpected Go-side message: %q", got)
	}

	engine := &ZstdError{Code: 20, Operation: "decompression", Message: "Corrupted block detected"}
	if got := engine.Error(); !strings.Contains(got, "(code 20)") {
		t.Fatalf("engine message does not carry its code: %q", got)
	}
}
