package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// DataDescriptor models the record that follows a file's compressed data when bit 3 of the general purpose flags is
// set in its local file header.
//
// The leading signature is optional; HasSignature reports whether it was present.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#Data_descriptor.
type DataDescriptor struct {
	HasSignature     bool
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
}

// Size returns the number of bytes the descriptor occupied.
func (d DataDescriptor) Size() int {
	if d.HasSignature {
		return DataDescriptorFixedSize + 4
	}

	return DataDescriptorFixedSize
}

// DecodeDataDescriptor decodes a data descriptor from b starting at offset off.
//
// Returns the offset immediately after the descriptor.
func DecodeDataDescriptor(b []byte, off int) (d DataDescriptor, next int, err error) {
	if off < 0 || off+4 > len(b) {
		return d, off, fmt.Errorf("decode data descriptor at offset %d: %w", off, ErrShortBuffer)
	}

	if d.HasSignature = binary.LittleEndian.Uint32(b[off:]) == DataDescriptorSignature; d.HasSignature {
		off += 4
	}

	if off+DataDescriptorFixedSize > len(b) {
		return d, off, fmt.Errorf("decode data descriptor at offset %d: need %d bytes, have %d: %w", off, DataDescriptorFixedSize, len(b)-off, ErrShortBuffer)
	}

	data := &struct {
		CRC32            uint32
		CompressedSize   uint32
		UncompressedSize uint32
	}{}

	if err = binary.Read(bytes.NewReader(b[off:off+DataDescriptorFixedSize]), binary.LittleEndian, data); err != nil {
		return d, off, fmt.Errorf("unmarshal data descriptor error: %w", err)
	}

	d.CRC32, d.CompressedSize, d.UncompressedSize = data.CRC32, data.CompressedSize, data.UncompressedSize
	return d, off + DataDescriptorFixedSize, nil
}

// ReadDataDescriptor reads a data descriptor from r, skipping its signature if present.
//
// Exactly 12 or 16 bytes are consumed on success.
func ReadDataDescriptor(r io.Reader) (d DataDescriptor, err error) {
	b := make([]byte, DataDescriptorFixedSize+4)
	if _, err = io.ReadFull(r, b[:4]); err != nil {
		return d, fmt.Errorf("read data descriptor error: %w", err)
	}

	n := DataDescriptorFixedSize
	if binary.LittleEndian.Uint32(b[:4]) == DataDescriptorSignature {
		n += 4
	}

	if _, err = io.ReadFull(r, b[4:n]); err != nil {
		return d, fmt.Errorf("read data descriptor error: %w", err)
	}

	d, _, err = DecodeDataDescriptor(b[:n], 0)
	return d, err
}
