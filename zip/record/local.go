package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// LocalFileHeader models the local file header that immediately precedes a file's compressed data.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#Local_file_header.
type LocalFileHeader struct {
	Signature        uint32
	ReaderVersion    uint16
	Flags            uint16
	Method           uint16
	ModifiedTime     uint16
	ModifiedDate     uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	FileNameLength   uint16
	ExtraFieldLength uint16

	// Name is the decoded file name.
	Name string
	// Extra is the opaque extra field.
	Extra []byte
}

var _ Record = &LocalFileHeader{}

func (h *LocalFileHeader) FixedSize() int {
	return LocalFileHeaderFixedSize
}

func (h *LocalFileHeader) UnmarshalFixed(b []byte) error {
	if err := checkLen(b, LocalFileHeaderFixedSize); err != nil {
		return err
	}

	data := &struct {
		Signature        uint32
		ReaderVersion    uint16
		Flags            uint16
		Method           uint16
		ModifiedTime     uint16
		ModifiedDate     uint16
		CRC32            uint32
		CompressedSize   uint32
		UncompressedSize uint32
		FileNameLength   uint16
		ExtraFieldLength uint16
	}{}

	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, data); err != nil {
		return fmt.Errorf("unmarshal local file header error: %w", err)
	}

	*h = LocalFileHeader{
		Signature:        data.Signature,
		ReaderVersion:    data.ReaderVersion,
		Flags:            data.Flags,
		Method:           data.Method,
		ModifiedTime:     data.ModifiedTime,
		ModifiedDate:     data.ModifiedDate,
		CRC32:            data.CRC32,
		CompressedSize:   data.CompressedSize,
		UncompressedSize: data.UncompressedSize,
		FileNameLength:   data.FileNameLength,
		ExtraFieldLength: data.ExtraFieldLength,
	}
	return nil
}

func (h *LocalFileHeader) VariableSize() int {
	return int(h.FileNameLength) + int(h.ExtraFieldLength)
}

func (h *LocalFileHeader) UnmarshalVariable(b []byte) error {
	if err := checkLen(b, h.VariableSize()); err != nil {
		return err
	}

	n := int(h.FileNameLength)
	h.Name, h.Extra = decodeText(b[:n]), bytes.Clone(b[n:])
	return nil
}

func (h *LocalFileHeader) HasValidSignature() bool {
	return h.Signature == LocalFileHeaderSignature
}

// HasDataDescriptor returns true if bit 3 of the general purpose flags is set, meaning the CRC-32 and sizes were
// written in a data descriptor after the compressed data.
func (h *LocalFileHeader) HasDataDescriptor() bool {
	return h.Flags&0x8 != 0
}

// Modified returns the last modification time in UTC.
func (h *LocalFileHeader) Modified() time.Time {
	return msDosTimeToTime(h.ModifiedDate, h.ModifiedTime)
}
