package tiff

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/tiff/lzw"
)

// ErrShortStrip is returned when a strip decodes to fewer bytes than its rows need.
var ErrShortStrip = errors.New("strip data too short")

var zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

var zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

func supportedCompression(c uint16) bool {
	switch c {
	case CompressionNone, CompressionLZW, CompressionDeflate, CompressionOldDeflate,
		CompressionPackBits, CompressionZstd:
		return true
	}
	return false
}

// decompress returns the decoded bytes of one strip.  At most expected bytes are
// returned.
func decompress(compression uint16, src []byte, expected int) ([]byte, error) {
	var rc io.ReadCloser
	var err error
	switch compression {
	case CompressionNone:
		if len(src) > expected {
			src = src[:expected]
		}
		return src, nil
	case CompressionPackBits:
		return unpackBits(src, expected)
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(src, make([]byte, 0, expected))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if len(out) > expected {
			out = out[:expected]
		}
		return out, nil
	case CompressionLZW:
		rc = lzw.NewReader(bytes.NewReader(src), lzw.MSB, 8)
	case CompressionDeflate, CompressionOldDeflate:
		if rc, err = zlib.NewReader(bytes.NewReader(src)); err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported compression %d", compression)
	}
	defer rc.Close()
	out := make([]byte, expected)
	n, err := io.ReadFull(rc, out)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return out[:n], nil
}

// compress encodes one strip for writing.
func compress(compression uint16, src []byte) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return src, nil
	case CompressionPackBits:
		return packBits(src), nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(src, nil), nil
	case CompressionDeflate, CompressionOldDeflate:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(src); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("cannot write compression %d", compression)
}

// unpackBits decodes Apple PackBits run-length data.
func unpackBits(src []byte, expected int) ([]byte, error) {
	out := make([]byte, 0, expected)
	for i := 0; i < len(src) && len(out) < expected; {
		n := int(int8(src[i]))
		i++
		switch {
		case n >= 0:
			end := i + n + 1
			if end > len(src) {
				return nil, fmt.Errorf("packbits: literal run past end of data")
			}
			out = append(out, src[i:end]...)
			i = end
		case n != -128:
			if i >= len(src) {
				return nil, fmt.Errorf("packbits: repeat run past end of data")
			}
			for j := 0; j < 1-n; j++ {
				out = append(out, src[i])
			}
			i++
		}
	}
	if len(out) > expected {
		out = out[:expected]
	}
	return out, nil
}

// packBits encodes data with PackBits, using repeat runs for 3 or more equal bytes.
func packBits(src []byte) []byte {
	var out []byte
	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && run < 128 && src[i+run] == src[i] {
			run++
		}
		if run >= 3 {
			out = append(out, byte(int8(1-run)), src[i])
			i += run
			continue
		}
		start := i
		for i < len(src) && i-start < 128 {
			if i+2 < len(src) && src[i] == src[i+1] && src[i] == src[i+2] {
				break
			}
			i++
		}
		out = append(out, byte(i-start-1))
		out = append(out, src[start:i]...)
	}
	return out
}
