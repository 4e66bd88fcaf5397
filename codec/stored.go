package codec

import (
	"io"
)

// StoredCodec implements Codec for entries that are stored without compression.
type StoredCodec struct{}

var _ Codec = StoredCodec{}

func (c StoredCodec) Method() uint16 {
	return MethodStored
}

// NewDecoder returns src as is.
func (c StoredCodec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(src), nil
}
