package tiff

import (
	"fmt"
	"strings"
)

// Tags used by the frame decoder and encoder.
const (
	tagNewSubfileType            = 254
	tagImageWidth                = 256
	tagImageLength               = 257
	tagBitsPerSample             = 258
	tagCompression               = 259
	tagPhotometricInterpretation = 262
	tagImageDescription          = 270
	tagStripOffsets              = 273
	tagSamplesPerPixel           = 277
	tagRowsPerStrip              = 278
	tagStripByteCounts           = 279
	tagMinSampleValue            = 280
	tagMaxSampleValue            = 281
	tagXResolution               = 282
	tagYResolution               = 283
	tagPlanarConfiguration       = 284
	tagResolutionUnit            = 296
	tagSoftware                  = 305
	tagPredictor                 = 317
	tagTileWidth                 = 322
	tagTileLength                = 323
	tagTileOffsets               = 324
	tagTileByteCounts            = 325
	tagSampleFormat              = 339
	tagSMinSampleValue           = 340
	tagSMaxSampleValue           = 341
)

// Field types of an IFD entry.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
	dtLong8     = 16
	dtSLong8    = 17
	dtIFD8      = 18
)

var lengths = map[uint16]int{
	dtByte:      1,
	dtASCII:     1,
	dtShort:     2,
	dtLong:      4,
	dtRational:  8,
	dtSByte:     1,
	dtUndefined: 1,
	dtSShort:    2,
	dtSLong:     4,
	dtSRational: 8,
	dtFloat:     4,
	dtDouble:    8,
	dtLong8:     8,
	dtSLong8:    8,
	dtIFD8:      8,
}

// Compression schemes.
const (
	CompressionNone       uint16 = 1
	CompressionLZW        uint16 = 5
	CompressionDeflate    uint16 = 8
	CompressionPackBits   uint16 = 32773
	CompressionOldDeflate uint16 = 32946
	CompressionZstd       uint16 = 50000
)

var compressionNames = map[uint16]string{
	CompressionNone:       "none",
	CompressionLZW:        "lzw",
	CompressionDeflate:    "deflate",
	CompressionPackBits:   "packbits",
	CompressionOldDeflate: "adobe-deflate",
	CompressionZstd:       "zstd",
}

// CompressionName returns a short name for a compression scheme.
func CompressionName(c uint16) string {
	if name, found := compressionNames[c]; found {
		return name
	}
	return fmt.Sprintf("compression %d", c)
}

// ParseCompression returns the compression scheme with the given short name.  An
// empty name is no compression.
func ParseCompression(name string) (uint16, error) {
	if name == "" {
		return CompressionNone, nil
	}
	for c, n := range compressionNames {
		if strings.EqualFold(n, name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compression %q", name)
}

// Photometric interpretations.
const (
	PhotometricWhiteIsZero uint16 = 0
	PhotometricBlackIsZero uint16 = 1
	PhotometricRGB         uint16 = 2
	PhotometricPalette     uint16 = 3
	PhotometricMask        uint16 = 4
	PhotometricSeparated   uint16 = 5
	PhotometricLogL        uint16 = 32844
	PhotometricLogLuv      uint16 = 32845
)

// Sample formats.
const (
	SampleFormatUint  uint16 = 1
	SampleFormatInt   uint16 = 2
	SampleFormatFloat uint16 = 3
	SampleFormatVoid  uint16 = 4
)

// Predictors.
const (
	PredictorNone          uint16 = 1
	PredictorHorizontal    uint16 = 2
	PredictorFloatingPoint uint16 = 3
)

// Resolution units.
const (
	ResUnitNone       uint16 = 1
	ResUnitInch       uint16 = 2
	ResUnitCentimeter uint16 = 3
)

const (
	PlanarContiguous uint16 = 1
	PlanarSeparate   uint16 = 2
)
