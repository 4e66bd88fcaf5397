package codec

import (
	"io"

	"github.com/klauspost/compress/flate"
)

// DeflateCodec implements Codec for raw DEFLATE streams (RFC 1951) without zlib or gzip framing.
type DeflateCodec struct{}

var _ Codec = DeflateCodec{}

func (c DeflateCodec) Method() uint16 {
	return MethodDeflate
}

func (c DeflateCodec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	return flate.NewReader(src), nil
}
