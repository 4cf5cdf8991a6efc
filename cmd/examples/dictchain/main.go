package main

import (
	"bytes"
	"fmt"
	"log"

	"github.com/zstreamio/zstream"
)

func main() {
	// Successive revisions of the same document. Each revision shares most
	// of its content with the previous one, so compressing it against that
	// revision avoids transmitting the shared part again.
	base := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 200)
	revisions := [][]byte{
		base,
		append(append([]byte{}, base...), []byte("revision two adds this tail. ")...),
		append(append([]byte{}, base...), []byte("revision three replaces the tail entirely. ")...),
	}

	// Build the chain: frame 0 stands alone, every later frame uses its
	// predecessor's plain content as its dictionary.
	var chain [][]byte
	var plainTotal, chainTotal int
	for i, rev := range revisions {
		var frame []byte
		if i == 0 {
			frame = zstream.Compress(nil, rev)
		} else {
			cd, err := zstream.NewCDict(revisions[i-1])
			if err != nil {
				log.Fatalf("Dictionary creation failed for revision %d: %v", i, err)
			}
			frame = zstream.CompressDict(nil, rev, cd)
			cd.Release()
		}
		chain = append(chain, frame)
		plainTotal += len(zstream.Compress(nil, rev))
		chainTotal += len(frame)
		fmt.Printf("revision %d: %d bytes -> %d bytes chained\n", i, len(rev), len(frame))
	}
	fmt.Printf("\nTotal: %d bytes standalone vs %d bytes chained\n\n", plainTotal, chainTotal)

	// Decompress the whole chain back to the final revision.
	d, err := zstream.NewDecompressor(nil)
	if err != nil {
		log.Fatalf("Decompressor creation failed: %v", err)
	}
	defer d.Release()

	final, err := d.DecompressContentDictChain(chain)
	if err != nil {
		log.Fatalf("Chain decompression failed: %v", err)
	}

	if bytes.Equal(final, revisions[len(revisions)-1]) {
		fmt.Println("✓ Success: Chain decodes to the final revision")
	} else {
		fmt.Println("✗ Error: Chain result mismatch")
	}
}
