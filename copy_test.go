package zstream

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"
)

func TestCompressorCopyStream(t *testing.T) {
	c, err := NewCompressor(nil)
	if err != nil {
		t.Fatalf("cannot create compressor: %s", err)
	}
	defer c.Release()

	data := []byte(newTestString(300000, 20))
	var sink bytes.Buffer
	read, written, err := c.CopyStream(&sink, bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("cannot copy: %s", err)
	}
	if read != int64(len(data)) {
		t.Fatalf("unexpected number of bytes read; got %d; want %d", read, len(data))
	}
	if written != int64(sink.Len()) {
		t.Fatalf("unexpected number of bytes written; got %d; want %d", written, sink.Len())
	}

	plainData, err := Decompress(nil, sink.Bytes())
	if err != nil {
		t.Fatalf("cannot decompress copied stream: %s", err)
	}
	if !bytes.Equal(plainData, data) {
		t.Fatalf("unexpected data decompressed; got %d bytes; want %d bytes", len(plainData), len(data))
	}
}

func TestCompressorCopyStreamSourceSize(t *testing.T) {
	c, err := NewCompressor(nil)
	if err != nil {
		t.Fatalf("cannot create compressor: %s", err)
	}
	defer c.Release()

	data := []byte(newTestString(100000, 20))
	var sink bytes.Buffer
	_, _, err = c.CopyStream(&sink, bytes.NewReader(data), &CopyStreamParams{SourceSize: uint64(len(data))})
	if err != nil {
		t.Fatalf("cannot copy with a pledged size: %s", err)
	}

	// The pledge ends up in the frame header.
	size, err := GetFrameContentSize(sink.Bytes())
	if err != nil {
		t.Fatalf("cannot get frame content size: %s", err)
	}
	if size != uint64(len(data)) {
		t.Fatalf("unexpected content size; got %d; want %d", size, len(data))
	}

	// A wrong pledge fails the copy.
	sink.Reset()
	_, _, err = c.CopyStream(&sink, bytes.NewReader(data), &CopyStreamParams{SourceSize: uint64(len(data)) - 1})
	if !IsBufferError(err) {
		t.Fatalf("expecting BufferError for a wrong pledge; got %v", err)
	}
}

func TestCompressorCopyStreamEmptySource(t *testing.T) {
	c, err := NewCompressor(nil)
	if err != nil {
		t.Fatalf("cannot create compressor: %s", err)
	}
	defer c.Release()

	var sink bytes.Buffer
	read, written, err := c.CopyStream(&sink, bytes.NewReader(nil), nil)
	if err != nil {
		t.Fatalf("cannot copy empty source: %s", err)
	}
	if read != 0 {
		t.Fatalf("unexpected number of bytes read; got %d; want 0", read)
	}
	// An empty source still produces an empty frame.
	if written == 0 || written != int64(sink.Len()) {
		t.Fatalf("unexpected number of bytes written; got %d; sink has %d", written, sink.Len())
	}
	plainData, err := Decompress(nil, sink.Bytes())
	if err != nil {
		t.Fatalf("cannot decompress empty frame: %s", err)
	}
	if len(plainData) != 0 {
		t.Fatalf("unexpected data decompressed from an empty frame; got %d bytes", len(plainData))
	}
}

func TestDecompressorCopyStream(t *testing.T) {
	data := []byte(newTestString(300000, 20))
	cs := Compress(nil, data)

	d, err := NewDecompressor(nil)
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	var sink bytes.Buffer
	read, written, err := d.CopyStream(&sink, bytes.NewReader(cs), nil)
	if err != nil {
		t.Fatalf("cannot copy: %s", err)
	}
	if read != int64(len(cs)) {
		t.Fatalf("unexpected number of bytes read; got %d; want %d", read, len(cs))
	}
	if written != int64(len(data)) {
		t.Fatalf("unexpected number of bytes written; got %d; want %d", written, len(data))
	}
	if !bytes.Equal(sink.Bytes(), data) {
		t.Fatalf("unexpected data decompressed")
	}
}

func TestDecompressorCopyStreamMultipleFrames(t *testing.T) {
	first := []byte(newTestString(5000, 20))
	second := []byte(newTestString(6000, 20))
	stream := Compress(nil, first)
	stream = Compress(stream, second)

	d, err := NewDecompressor(nil)
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	var sink bytes.Buffer
	_, written, err := d.CopyStream(&sink, bytes.NewReader(stream), nil)
	if err != nil {
		t.Fatalf("cannot copy concatenated frames: %s", err)
	}
	want := append(append([]byte{}, first...), second...)
	if written != int64(len(want)) {
		t.Fatalf("unexpected number of bytes written; got %d; want %d", written, len(want))
	}
	if !bytes.Equal(sink.Bytes(), want) {
		t.Fatalf("unexpected data decompressed from concatenated frames")
	}
}

func TestDecompressorCopyStreamEmptySource(t *testing.T) {
	d, err := NewDecompressor(nil)
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	var sink bytes.Buffer
	read, written, err := d.CopyStream(&sink, bytes.NewReader(nil), nil)
	if err != nil {
		t.Fatalf("cannot copy empty source: %s", err)
	}
	if read != 0 || written != 0 {
		t.Fatalf("unexpected copy counts for an empty source; got (%d, %d); want (0, 0)", read, written)
	}
}

func TestDecompressorCopyStreamTruncatedTail(t *testing.T) {
	data := []byte(newTestString(100000, 20))
	cs := Compress(nil, data)

	d, err := NewDecompressor(nil)
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	// End of input in the middle of a frame ends the copy without error.
	var sink bytes.Buffer
	read, written, err := d.CopyStream(&sink, bytes.NewReader(cs[:len(cs)-5]), nil)
	if err != nil {
		t.Fatalf("unexpected error for a truncated tail: %s", err)
	}
	if read != int64(len(cs)-5) {
		t.Fatalf("unexpected number of bytes read; got %d; want %d", read, len(cs)-5)
	}
	if written > int64(len(data)) {
		t.Fatalf("wrote more than the original content; got %d; want at most %d", written, len(data))
	}
}

func TestCopyStreamChunkSizes(t *testing.T) {
	data := []byte(newTestString(200000, 3))
	cs := Compress(nil, data)

	d, err := NewDecompressor(nil)
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	sink := &recordingSink{}
	_, written, err := d.CopyStream(sink, bytes.NewReader(cs), &CopyStreamParams{ReadSize: 123, WriteSize: 64})
	if err != nil {
		t.Fatalf("cannot copy with custom chunk sizes: %s", err)
	}
	if written != int64(len(data)) {
		t.Fatalf("unexpected number of bytes written; got %d; want %d", written, len(data))
	}
	if sink.writes < len(data)/64 {
		t.Fatalf("expecting the write size to bound the chunks; got %d writes", sink.writes)
	}
	if !bytes.Equal(sink.Bytes(), data) {
		t.Fatalf("unexpected data decompressed")
	}
}

func TestCopyStreamDict(t *testing.T) {
	dict := newDictSample(21)
	cd, err := NewCDict(dict)
	if err != nil {
		t.Fatalf("cannot create CDict: %s", err)
	}
	defer cd.Release()
	dd, err := NewDDict(dict)
	if err != nil {
		t.Fatalf("cannot create DDict: %s", err)
	}
	defer dd.Release()

	c, err := NewCompressor(&CompressorParams{Dict: cd})
	if err != nil {
		t.Fatalf("cannot create compressor: %s", err)
	}
	defer c.Release()
	data := append([]byte("copied with dict: "), dict[:4096]...)
	var compressed bytes.Buffer
	if _, _, err := c.CopyStream(&compressed, bytes.NewReader(data), nil); err != nil {
		t.Fatalf("cannot compress with dict: %s", err)
	}

	d, err := NewDecompressor(&DecompressorParams{Dict: dd})
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()
	var plain bytes.Buffer
	if _, _, err := d.CopyStream(&plain, bytes.NewReader(compressed.Bytes()), nil); err != nil {
		t.Fatalf("cannot decompress with dict: %s", err)
	}
	if !bytes.Equal(plain.Bytes(), data) {
		t.Fatalf("unexpected data decompressed with dict")
	}
}

func TestCopyStreamErrors(t *testing.T) {
	c, err := NewCompressor(nil)
	if err != nil {
		t.Fatalf("cannot create compressor: %s", err)
	}
	defer c.Release()
	d, err := NewDecompressor(nil)
	if err != nil {
		t.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	var sink bytes.Buffer
	if _, _, err := c.CopyStream(nil, bytes.NewReader(nil), nil); !IsParameterError(err) {
		t.Fatalf("expecting ParameterError for a nil destination; got %v", err)
	}
	if _, _, err := c.CopyStream(&sink, nil, nil); !IsParameterError(err) {
		t.Fatalf("expecting ParameterError for a nil source; got %v", err)
	}
	if _, _, err := d.CopyStream(nil, bytes.NewReader(nil), nil); !IsParameterError(err) {
		t.Fatalf("expecting ParameterError for a nil destination; got %v", err)
	}
	if _, _, err := d.CopyStream(&sink, nil, nil); !IsParameterError(err) {
		t.Fatalf("expecting ParameterError for a nil source; got %v", err)
	}

	// Source errors surface as-is.
	if _, _, err := c.CopyStream(&sink, iotest.ErrReader(errSourceBroken), nil); !errors.Is(err, errSourceBroken) {
		t.Fatalf("expecting the source error from the compressing copy; got %v", err)
	}
	cs := Compress(nil, []byte(newTestString(10000, 20)))
	src := io.MultiReader(bytes.NewReader(cs[:10]), iotest.ErrReader(errSourceBroken))
	if _, _, err := d.CopyStream(&sink, src, nil); !errors.Is(err, errSourceBroken) {
		t.Fatalf("expecting the source error from the decompressing copy; got %v", err)
	}

	// Destination errors surface as-is.
	data := []byte(newTestString(1<<20, 20))
	if _, _, err := c.CopyStream(failingWriter{}, bytes.NewReader(data), nil); !errors.Is(err, errSinkBroken) {
		t.Fatalf("expecting the sink error from the compressing copy; got %v", err)
	}
	if _, _, err := d.CopyStream(failingWriter{}, bytes.NewReader(Compress(nil, data)), nil); !errors.Is(err, errSinkBroken) {
		t.Fatalf("expecting the sink error from the decompressing copy; got %v", err)
	}

	// A claimed context rejects the copy.
	var streamSink bytes.Buffer
	w, err := c.NewWriter(&streamSink, nil)
	if err != nil {
		t.Fatalf("cannot create writer: %s", err)
	}
	defer w.Close()
	if _, _, err := c.CopyStream(&sink, bytes.NewReader(nil), nil); !IsStreamStateError(err) {
		t.Fatalf("expecting StreamStateError while a stream is open; got %v", err)
	}
}
