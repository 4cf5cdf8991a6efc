package zstream

type CParameter int

// The right way to make these enums is by importing the zstd.h header and assigning
//   their values from the cgo interface. However, I cannot for the life of me figure
//   out how to actually get cgo to do this.

const (
	/* compression parameters
	 * Note: When compressing with a ZSTD_CDict these parameters are superseded
	 * by the parameters used to construct the ZSTD_CDict.
	 * See ZSTD_CCtx_refCDict() for more info (superseded-by-cdict). */
	/* Set compression parameters according to pre-defined cLevel table.
	 * Note that exact compression parameters are dynamically determined,
	 * depending on both compression level and srcSize (when known).
	 * Default level is ZSTD_CLEVEL_DEFAULT==3.
	 * Special: value 0 means default, which is controlled by ZSTD_CLEVEL_DEFAULT.
	 * Note 1 : it's possible to pass a negative compression level.
	 * Note 2 : setting a level resets all other compression parameters to default */
	ZSTD_c_compressionLevel CParameter = 100

	/* Maximum allowed back-reference distance, expressed as power of 2.
	 * This will set a memory budget for streaming decompression,
	 * with larger values requiring more memory
	 * and typically compressing more.
	 * Must be clamped between ZSTD_WINDOWLOG_MIN and ZSTD_WINDOWLOG_MAX.
	 * Special: value 0 means "use default windowLog".
	 * Note: Using a windowLog greater than ZSTD_WINDOWLOG_LIMIT_DEFAULT
	 *       requires explicitly allowing such size at streaming decompression stage. */
	ZSTD_c_windowLog CParameter = 101

	/* frame parameters */

	/* Content size will be written into frame header _whenever known_ (default:1)
	 * Content size must be known at the beginning of compression.
	 * This is automatically the case when using ZSTD_compress2(),
	 * For streaming scenarios, content size must be provided with ZSTD_CCtx_setPledgedSrcSize() */
	ZSTD_c_contentSizeFlag CParameter = 200

	/* A 32-bits checksum of content is written at end of frame (default:0) */
	ZSTD_c_checksumFlag CParameter = 201

	/* When applicable, dictionary's ID is written into frame header (default:1) */
	ZSTD_c_dictIDFlag CParameter = 202
)

type ZSTD_ResetDirective int

const (
	ZSTD_reset_session_only           ZSTD_ResetDirective = 1
	ZSTD_reset_parameters             ZSTD_ResetDirective = 2
	ZSTD_reset_session_and_parameters ZSTD_ResetDirective = 3
)

// ZSTD_EndDirective selects how much work a streaming compression step
// performs beyond consuming input.
type ZSTD_EndDirective int

const (
	// Collect more data; the encoder decides when to output compressed
	// results, for optimal compression ratio.
	ZSTD_e_continue ZSTD_EndDirective = 0
	// Flush any data provided so far. Frame continues and future data can
	// still reference previous data, improving compression.
	ZSTD_e_flush ZSTD_EndDirective = 1
	// Flush any remaining data _and_ close the current frame.
	// Should the pipeline stall because the output cursor filled up, the
	// operation must be repeated with the same directive until it reports
	// that no work remains.
	ZSTD_e_end ZSTD_EndDirective = 2
)

// FrameFormat selects the frame layout a decompressor accepts.
type FrameFormat int

const (
	// FormatZstd1 accepts standard zstd frames carrying the 4-byte magic
	// number. This is the default.
	FormatZstd1 FrameFormat = 0
	// FormatZstd1Magicless accepts frames whose magic number was elided
	// to save 4 bytes. All other frame rules are unchanged.
	FormatZstd1Magicless FrameFormat = 1
)

func (f FrameFormat) valid() bool {
	return f == FormatZstd1 || f == FormatZstd1Magicless
}

// FlushMode selects how much buffered state Writer.Flush forces out of the
// engine.
type FlushMode int

const (
	// FlushBlock flushes all data buffered so far, ending the current
	// block. The frame stays open and later writes extend it; already
	// emitted ranges remain referenceable, so compression ratio does not
	// suffer the way it would across a frame boundary.
	FlushBlock FlushMode = 0
	// FlushFrame flushes all data buffered so far and ends the frame.
	// The next write starts a new frame.
	FlushFrame FlushMode = 1
)
