package main

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"github.com/zstreamio/zstream"
)

func main() {
	// Large data to compress in streaming fashion
	data := bytes.Repeat([]byte("This is a test of streaming compression. "), 1000)
	fmt.Printf("Original size: %d bytes\n", len(data))

	c, err := zstream.NewCompressor(&zstream.CompressorParams{Checksum: true})
	if err != nil {
		log.Fatalf("Compressor creation failed: %v", err)
	}
	defer c.Release()

	// Compress using streaming, pledging the total size up front so it
	// lands in the frame header.
	var compressed bytes.Buffer
	writer, err := c.NewWriter(&compressed, &zstream.WriterParams{
		SourceSize: uint64(len(data)),
	})
	if err != nil {
		log.Fatalf("Writer creation failed: %v", err)
	}

	// Write data in chunks
	chunkSize := 1024
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[i:end]

		n, err := writer.Write(chunk)
		if err != nil {
			log.Fatalf("Write failed: %v", err)
		}
		if n != len(chunk) {
			log.Fatalf("Short write: %d != %d", n, len(chunk))
		}
	}

	// Synchronize mid-stream without ending the frame.
	if err := writer.Flush(zstream.FlushBlock); err != nil {
		log.Fatalf("Flush failed: %v", err)
	}
	fmt.Printf("Compressed after block flush: %d bytes\n", writer.Tell())

	// Close the writer to end the frame
	if err := writer.Close(); err != nil {
		log.Fatalf("Close failed: %v", err)
	}
	fmt.Printf("Compressed size: %d bytes\n", compressed.Len())

	// Decompress using streaming
	d, err := zstream.NewDecompressor(nil)
	if err != nil {
		log.Fatalf("Decompressor creation failed: %v", err)
	}
	defer d.Release()

	reader, err := d.NewReader(&compressed, nil)
	if err != nil {
		log.Fatalf("Reader creation failed: %v", err)
	}
	defer reader.Close()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		log.Fatalf("Read failed: %v", err)
	}
	fmt.Printf("Decompressed size: %d bytes\n", len(decompressed))

	if bytes.Equal(decompressed, data) {
		fmt.Println("\n✓ Success: Streaming round trip matches")
	} else {
		fmt.Println("\n✗ Error: Streaming round trip mismatch")
	}
}
