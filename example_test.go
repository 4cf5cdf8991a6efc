package zstream

import (
	"bytes"
	"fmt"
	"io"
	"log"
)

func ExampleCompress() {
	data := []byte("foo bar baz")

	compressedData := Compress(nil, data)
	decompressedData, err := Decompress(nil, compressedData)
	if err != nil {
		log.Fatalf("cannot decompress data: %s", err)
	}

	fmt.Printf("%s", decompressedData)
	// Output:
	// foo bar baz
}

func ExampleDecompress_multipleFrames() {
	data := []byte("foo bar baz")

	// Concatenated frames decompress to concatenated content.
	compressedData := Compress(nil, data)
	decompressedData, err := Decompress(nil, append(compressedData, compressedData...))
	if err != nil {
		log.Fatalf("cannot decompress data: %s", err)
	}

	fmt.Printf("%s", decompressedData)
	// Output:
	// foo bar bazfoo bar baz
}

func ExampleCompressor_NewWriter() {
	c, err := NewCompressor(nil)
	if err != nil {
		log.Fatalf("cannot create compressor: %s", err)
	}
	defer c.Release()

	var compressed bytes.Buffer
	w, err := c.NewWriter(&compressed, nil)
	if err != nil {
		log.Fatalf("cannot create writer: %s", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := fmt.Fprintf(w, "line %d\n", i); err != nil {
			log.Fatalf("cannot write: %s", err)
		}
	}
	// Close ends the frame; without it the sink holds an incomplete stream.
	if err := w.Close(); err != nil {
		log.Fatalf("cannot close writer: %s", err)
	}

	decompressed, err := Decompress(nil, compressed.Bytes())
	if err != nil {
		log.Fatalf("cannot decompress: %s", err)
	}
	fmt.Printf("%s", decompressed)
	// Output:
	// line 0
	// line 1
	// line 2
}

func ExampleWriter_Flush() {
	c, err := NewCompressor(nil)
	if err != nil {
		log.Fatalf("cannot create compressor: %s", err)
	}
	defer c.Release()

	var compressed bytes.Buffer
	w, err := c.NewWriter(&compressed, nil)
	if err != nil {
		log.Fatalf("cannot create writer: %s", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("first part")); err != nil {
		log.Fatalf("cannot write: %s", err)
	}
	// After a block flush everything written so far is in the sink and can
	// be decoded, while the frame stays open for further writes.
	if err := w.Flush(FlushBlock); err != nil {
		log.Fatalf("cannot flush: %s", err)
	}
	fmt.Printf("sink holds decodable data: %v\n", w.Tell() > 0)

	if _, err := w.Write([]byte(" and the rest")); err != nil {
		log.Fatalf("cannot write: %s", err)
	}
	// Output:
	// sink holds decodable data: true
}

func ExampleDecompressor_NewReader() {
	compressed := Compress(nil, []byte("streamed content"))

	d, err := NewDecompressor(nil)
	if err != nil {
		log.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	r, err := d.NewReader(bytes.NewReader(compressed), nil)
	if err != nil {
		log.Fatalf("cannot create reader: %s", err)
	}
	defer r.Close()

	decompressed, err := io.ReadAll(r)
	if err != nil {
		log.Fatalf("cannot read: %s", err)
	}
	fmt.Printf("%s", decompressed)
	// Output:
	// streamed content
}

func ExampleDecompressor_CopyStream() {
	compressed := Compress(nil, []byte("copied through a pipe"))

	d, err := NewDecompressor(nil)
	if err != nil {
		log.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	var out bytes.Buffer
	read, written, err := d.CopyStream(&out, bytes.NewReader(compressed), nil)
	if err != nil {
		log.Fatalf("cannot copy: %s", err)
	}
	fmt.Printf("read %v, written %d: %s", read == int64(len(compressed)), written, out.Bytes())
	// Output:
	// read true, written 21: copied through a pipe
}

func ExampleDecompressor_DecompressContentDictChain() {
	// Successive revisions of the same document compress well against the
	// previous revision. Each frame after the first uses the prior frame's
	// content as its reference data.
	revisions := [][]byte{
		[]byte("the quick brown fox"),
		[]byte("the quick brown fox jumps"),
		[]byte("the quick brown fox jumps over the lazy dog"),
	}

	var chain [][]byte
	for i, rev := range revisions {
		if i == 0 {
			chain = append(chain, Compress(nil, rev))
			continue
		}
		cd, err := NewCDict(revisions[i-1])
		if err != nil {
			log.Fatalf("cannot build chain dictionary %d: %s", i, err)
		}
		chain = append(chain, CompressDict(nil, rev, cd))
		cd.Release()
	}

	d, err := NewDecompressor(nil)
	if err != nil {
		log.Fatalf("cannot create decompressor: %s", err)
	}
	defer d.Release()

	final, err := d.DecompressContentDictChain(chain)
	if err != nil {
		log.Fatalf("cannot decompress chain: %s", err)
	}
	fmt.Printf("%s", final)
	// Output:
	// the quick brown fox jumps over the lazy dog
}
