package zstream

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// newChainContents builds a sequence of contents where each element shares a
// large block with its predecessor, so that compressing element i against
// element i-1 as a dictionary produces back-references into it.
func newChainContents(n int) [][]byte {
	blob := newDictSample(1234)[:4096]
	contents := make([][]byte, n)
	for i := range contents {
		contents[i] = append([]byte(fmt.Sprintf("chain element %d: ", i)), blob...)
	}
	return contents
}

// newChainFrames compresses contents into a content-dictionary chain: the
// first element stands alone, every later element uses its predecessor's
// plain content as a dictionary.
func newChainFrames(t *testing.T, contents [][]byte) [][]byte {
	t.Helper()
	frames := make([][]byte, len(contents))
	for i, content := range contents {
		if i == 0 {
			frames[i] = Compress(nil, content)
			continue
		}
		cd, err := NewCDict(contents[i-1])
		if err != nil {
			t.Fatalf("cannot create chain dict %d: %s", i, err)
		}
		frames[i] = CompressDict(nil, content, cd)
		cd.Release()
	}
	return frames
}

func TestDecompressContentDictChain(t *testing.T) {
	contents := newChainContents(3)
	frames := newChainFrames(t, contents)

	d, err := NewDecompressor(nil)
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	// The chained elements really depend on their predecessors.
	if _, err := d.DecompressFrame(frames[1], 0); err == nil {
		t.Fatalf("expecting error when decoding a chained frame on its own")
	}

	last, err := d.DecompressContentDictChain(frames)
	if err != nil {
		t.Fatalf("cannot decompress chain: %s", err)
	}
	if !bytes.Equal(last, contents[len(contents)-1]) {
		t.Fatalf("unexpected chain result; got\n%q; want\n%q", last, contents[len(contents)-1])
	}

	// The context is free again afterwards.
	plainData, err := d.DecompressFrame(frames[0], 0)
	if err != nil {
		t.Fatalf("cannot decompress after a chain: %s", err)
	}
	if !bytes.Equal(plainData, contents[0]) {
		t.Fatalf("unexpected data decompressed after a chain")
	}
}

func TestDecompressContentDictChainSingleElement(t *testing.T) {
	content := []byte(newTestString(10000, 20))
	frames := [][]byte{Compress(nil, content)}

	d, err := NewDecompressor(nil)
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	last, err := d.DecompressContentDictChain(frames)
	if err != nil {
		t.Fatalf("cannot decompress single element chain: %s", err)
	}
	if !bytes.Equal(last, content) {
		t.Fatalf("unexpected single element chain result")
	}
}

func TestDecompressContentDictChainEmpty(t *testing.T) {
	d, err := NewDecompressor(nil)
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	if _, err := d.DecompressContentDictChain(nil); !IsParameterError(err) {
		t.Fatalf("expecting ParameterError for an empty chain; got %v", err)
	}
}

func TestDecompressContentDictChainBadElements(t *testing.T) {
	contents := newChainContents(3)
	frames := newChainFrames(t, contents)

	d, err := NewDecompressor(nil)
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	t.Run("not-a-frame", func(t *testing.T) {
		chain := [][]byte{frames[0], []byte("definitely not zstd")}
		_, err := d.DecompressContentDictChain(chain)
		if !IsFrameError(err) {
			t.Fatalf("expecting FrameError for a garbage element; got %v", err)
		}
		if !strings.Contains(err.Error(), "chunk 1") {
			t.Fatalf("error does not name the offending chunk: %s", err)
		}
	})

	t.Run("truncated-header", func(t *testing.T) {
		chain := [][]byte{frames[0], frames[1][:3]}
		_, err := d.DecompressContentDictChain(chain)
		var incomplete *IncompleteFrameError
		if !errors.As(err, &incomplete) {
			t.Fatalf("expecting IncompleteFrameError for a truncated element; got %v", err)
		}
		if incomplete.Index != 1 {
			t.Fatalf("unexpected chunk index; got %d; want 1", incomplete.Index)
		}
	})

	t.Run("missing-content-size", func(t *testing.T) {
		noSize := compressUnknownSize(t, []byte("sizeless frame"))
		chain := [][]byte{frames[0], noSize}
		_, err := d.DecompressContentDictChain(chain)
		if !IsParameterError(err) {
			t.Fatalf("expecting ParameterError for a sizeless element; got %v", err)
		}
		if !strings.Contains(err.Error(), "chunk 1") {
			t.Fatalf("error does not name the offending chunk: %s", err)
		}
	})

	t.Run("huge-declared-size", func(t *testing.T) {
		chain := [][]byte{frames[0], hugeFrameHeader}
		_, err := d.DecompressContentDictChain(chain)
		if !IsMemoryError(err) {
			t.Fatalf("expecting MemoryError for a huge declared size; got %v", err)
		}
		if !strings.Contains(err.Error(), "chunk 1") {
			t.Fatalf("error does not name the offending chunk: %s", err)
		}
	})
}

func TestDecompressContentDictChainIgnoresConfiguredDict(t *testing.T) {
	contents := newChainContents(2)
	frames := newChainFrames(t, contents)

	// The decompressor's own dictionary plays no role in chain decoding.
	dd, err := NewDDict(newDictSample(99))
	if err != nil {
		t.Fatalf("cannot create DDict: %s", err)
	}
	defer dd.Release()
	d, err := NewDecompressor(&DecompressorParams{Dict: dd})
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	last, err := d.DecompressContentDictChain(frames)
	if err != nil {
		t.Fatalf("cannot decompress chain: %s", err)
	}
	if !bytes.Equal(last, contents[1]) {
		t.Fatalf("unexpected chain result with a configured dict")
	}
}

func TestDecompressContentDictChainBusyContext(t *testing.T) {
	contents := newChainContents(2)
	frames := newChainFrames(t, contents)

	d, err := NewDecompressor(nil)
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()
	r, err := d.NewReader(bytes.NewReader(frames[0]), nil)
	if err != nil {
		t.Fatalf("cannot create reader: %s", err)
	}
	defer r.Close()

	if _, err := d.DecompressContentDictChain(frames); !IsStreamStateError(err) {
		t.Fatalf("expecting StreamStateError while a stream is open; got %v", err)
	}
}
