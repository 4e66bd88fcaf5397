// Package codec maps ZIP compression methods to the decoders that can reconstruct an entry's uncompressed bytes.
package codec

import (
	"errors"
	"fmt"
	"io"
)

// Compression methods as recorded in the ZIP local and central directory file headers.
const (
	MethodStored  uint16 = 0
	MethodDeflate uint16 = 8
)

// ErrUnsupportedMethod is returned by ForMethod if there is no Codec for the requested compression method.
var ErrUnsupportedMethod = errors.New("unsupported compression method")

// Codec has methods to create decompressor/decoder for one ZIP compression method.
type Codec interface {
	// Method returns the compression method that this Codec decodes.
	Method() uint16
	// NewDecoder creates a decoder to decompress contents from the given io.Reader.
	NewDecoder(src io.Reader) (io.ReadCloser, error)
}

// ForMethod returns the Codec for the given compression method.
//
// Only MethodStored and MethodDeflate are supported; every other method returns an error wrapping
// ErrUnsupportedMethod.
func ForMethod(method uint16) (Codec, error) {
	switch method {
	case MethodStored:
		return StoredCodec{}, nil
	case MethodDeflate:
		return DeflateCodec{}, nil
	default:
		return nil, fmt.Errorf("method %d (%s): %w", method, MethodName(method), ErrUnsupportedMethod)
	}
}

// methodNames are from section 4.4.5 of APPNOTE.TXT.
var methodNames = map[uint16]string{
	0:  "store",
	1:  "shrink",
	2:  "reduce-1",
	3:  "reduce-2",
	4:  "reduce-3",
	5:  "reduce-4",
	6:  "implode",
	8:  "deflate",
	9:  "deflate64",
	10: "pkware-implode",
	12: "bzip2",
	14: "lzma",
	18: "terse",
	19: "lz77",
	93: "zstd",
	95: "xz",
	96: "jpeg",
	97: "wavpack",
	98: "ppmd",
	99: "aes",
}

// MethodName returns a human-readable name for the given compression method.
func MethodName(method uint16) string {
	if name, ok := methodNames[method]; ok {
		return name
	}

	return fmt.Sprintf("unknown-%d", method)
}
