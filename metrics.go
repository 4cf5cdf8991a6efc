package zstream

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Metrics tracks package-wide compression and decompression counters. All
// fields are updated atomically; read them through GetSnapshot.
type Metrics struct {
	// Compression metrics
	CompressionCount   int64
	CompressionBytes   int64 // uncompressed bytes consumed
	CompressedBytes    int64 // compressed bytes produced
	CompressionErrors  int64
	FramesCompleted    int64 // frames finished by an end-of-frame flush

	// Decompression metrics
	DecompressionCount  int64
	DecompressionBytes  int64 // compressed bytes consumed
	DecompressedBytes   int64 // uncompressed bytes produced
	DecompressionErrors int64

	// Stream metrics
	ActiveStreams int64
	StreamsOpened int64
	StreamsClosed int64
}

// GlobalMetrics is the global metrics instance.
var GlobalMetrics = &Metrics{}

// RecordCompression records one compression step or operation.
func (m *Metrics) RecordCompression(originalSize, compressedSize int, err error) {
	atomic.AddInt64(&m.CompressionCount, 1)
	atomic.AddInt64(&m.CompressionBytes, int64(originalSize))
	atomic.AddInt64(&m.CompressedBytes, int64(compressedSize))
	if err != nil {
		atomic.AddInt64(&m.CompressionErrors, 1)
	}
}

// RecordDecompression records one decompression step or operation.
func (m *Metrics) RecordDecompression(compressedSize, decompressedSize int, err error) {
	atomic.AddInt64(&m.DecompressionCount, 1)
	atomic.AddInt64(&m.DecompressionBytes, int64(compressedSize))
	atomic.AddInt64(&m.DecompressedBytes, int64(decompressedSize))
	if err != nil {
		atomic.AddInt64(&m.DecompressionErrors, 1)
	}
}

// RecordFrameCompleted records a frame finished by an end-of-frame flush.
func (m *Metrics) RecordFrameCompleted() {
	atomic.AddInt64(&m.FramesCompleted, 1)
}

// RecordStreamOpened records a stream entering service.
func (m *Metrics) RecordStreamOpened() {
	atomic.AddInt64(&m.ActiveStreams, 1)
	atomic.AddInt64(&m.StreamsOpened, 1)
}

// RecordStreamClosed records a stream leaving service.
func (m *Metrics) RecordStreamClosed() {
	atomic.AddInt64(&m.ActiveStreams, -1)
	atomic.AddInt64(&m.StreamsClosed, 1)
}

// GetSnapshot returns a point-in-time copy of the metrics.
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		CompressionCount:  atomic.LoadInt64(&m.CompressionCount),
		CompressionBytes:  atomic.LoadInt64(&m.CompressionBytes),
		CompressedBytes:   atomic.LoadInt64(&m.CompressedBytes),
		CompressionErrors: atomic.LoadInt64(&m.CompressionErrors),
		FramesCompleted:   atomic.LoadInt64(&m.FramesCompleted),

		DecompressionCount:  atomic.LoadInt64(&m.DecompressionCount),
		DecompressionBytes:  atomic.LoadInt64(&m.DecompressionBytes),
		DecompressedBytes:   atomic.LoadInt64(&m.DecompressedBytes),
		DecompressionErrors: atomic.LoadInt64(&m.DecompressionErrors),

		ActiveStreams: atomic.LoadInt64(&m.ActiveStreams),
		StreamsOpened: atomic.LoadInt64(&m.StreamsOpened),
		StreamsClosed: atomic.LoadInt64(&m.StreamsClosed),

		Timestamp: time.Now(),
	}
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	atomic.StoreInt64(&m.CompressionCount, 0)
	atomic.StoreInt64(&m.CompressionBytes, 0)
	atomic.StoreInt64(&m.CompressedBytes, 0)
	atomic.StoreInt64(&m.CompressionErrors, 0)
	atomic.StoreInt64(&m.FramesCompleted, 0)

	atomic.StoreInt64(&m.DecompressionCount, 0)
	atomic.StoreInt64(&m.DecompressionBytes, 0)
	atomic.StoreInt64(&m.DecompressedBytes, 0)
	atomic.StoreInt64(&m.DecompressionErrors, 0)

	atomic.StoreInt64(&m.ActiveStreams, 0)
	atomic.StoreInt64(&m.StreamsOpened, 0)
	atomic.StoreInt64(&m.StreamsClosed, 0)
}

// MetricsSnapshot is a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	CompressionCount  int64
	CompressionBytes  int64
	CompressedBytes   int64
	CompressionErrors int64
	FramesCompleted   int64

	DecompressionCount  int64
	DecompressionBytes  int64
	DecompressedBytes   int64
	DecompressionErrors int64

	ActiveStreams int64
	StreamsOpened int64
	StreamsClosed int64

	Timestamp time.Time
}

// CompressionRatio returns the average compression ratio.
func (ms *MetricsSnapshot) CompressionRatio() float64 {
	if ms.CompressedBytes == 0 {
		return 0
	}
	return float64(ms.CompressionBytes) / float64(ms.CompressedBytes)
}

// String returns a human-readable representation.
func (ms *MetricsSnapshot) String() string {
	return fmt.Sprintf(`Compression:
  Count: %d, Errors: %d
  Total: %d bytes -> %d bytes (ratio: %.2fx)
  Frames completed: %d

Decompression:
  Count: %d, Errors: %d
  Total: %d bytes -> %d bytes

Streams:
  Active: %d, Opened: %d, Closed: %d`,
		ms.CompressionCount, ms.CompressionErrors,
		ms.CompressionBytes, ms.CompressedBytes, ms.CompressionRatio(),
		ms.FramesCompleted,

		ms.DecompressionCount, ms.DecompressionErrors,
		ms.DecompressionBytes, ms.DecompressedBytes,

		ms.ActiveStreams, ms.StreamsOpened, ms.StreamsClosed,
	)
}

// JSON returns metrics as JSON.
func (ms *MetricsSnapshot) JSON() ([]byte, error) {
	return json.MarshalIndent(ms, "", "  ")
}
