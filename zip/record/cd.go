package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// CDFileHeader models the central directory file header; there is one per archived file.
//
// Offset is the only link between the directory and where the file's data physically lives.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#Central_directory_file_header_(CDFH).
type CDFileHeader struct {
	Signature         uint32
	CreatorVersion    uint16
	ReaderVersion     uint16
	Flags             uint16
	Method            uint16
	ModifiedTime      uint16
	ModifiedDate      uint16
	CRC32             uint32
	CompressedSize    uint32
	UncompressedSize  uint32
	FileNameLength    uint16
	ExtraFieldLength  uint16
	FileCommentLength uint16
	// DiskNumber is the disk number where file starts.
	//
	// Since floppy disks aren't a thing anymore, this field is most likely unused.
	DiskNumber    uint16
	InternalAttrs uint16
	ExternalAttrs uint32
	// Offset is the relative offset of local file header from the start of the archive.
	Offset uint32

	// Name is the decoded file name.
	Name string
	// Extra is the opaque extra field.
	Extra []byte
	// Comment is the decoded file comment.
	Comment string
}

var _ Record = &CDFileHeader{}

func (h *CDFileHeader) FixedSize() int {
	return CDFileHeaderFixedSize
}

func (h *CDFileHeader) UnmarshalFixed(b []byte) error {
	if err := checkLen(b, CDFileHeaderFixedSize); err != nil {
		return err
	}

	data := &struct {
		Signature         uint32
		CreatorVersion    uint16
		ReaderVersion     uint16
		Flags             uint16
		Method            uint16
		ModifiedTime      uint16
		ModifiedDate      uint16
		CRC32             uint32
		CompressedSize    uint32
		UncompressedSize  uint32
		FileNameLength    uint16
		ExtraFieldLength  uint16
		FileCommentLength uint16
		DiskNumber        uint16
		InternalAttrs     uint16
		ExternalAttrs     uint32
		Offset            uint32
	}{}

	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, data); err != nil {
		return fmt.Errorf("unmarshal CD file header error: %w", err)
	}

	*h = CDFileHeader{
		Signature:         data.Signature,
		CreatorVersion:    data.CreatorVersion,
		ReaderVersion:     data.ReaderVersion,
		Flags:             data.Flags,
		Method:            data.Method,
		ModifiedTime:      data.ModifiedTime,
		ModifiedDate:      data.ModifiedDate,
		CRC32:             data.CRC32,
		CompressedSize:    data.CompressedSize,
		UncompressedSize:  data.UncompressedSize,
		FileNameLength:    data.FileNameLength,
		ExtraFieldLength:  data.ExtraFieldLength,
		FileCommentLength: data.FileCommentLength,
		DiskNumber:        data.DiskNumber,
		InternalAttrs:     data.InternalAttrs,
		ExternalAttrs:     data.ExternalAttrs,
		Offset:            data.Offset,
	}
	return nil
}

func (h *CDFileHeader) VariableSize() int {
	return int(h.FileNameLength) + int(h.ExtraFieldLength) + int(h.FileCommentLength)
}

func (h *CDFileHeader) UnmarshalVariable(b []byte) error {
	if err := checkLen(b, h.VariableSize()); err != nil {
		return err
	}

	n, m := int(h.FileNameLength), int(h.FileNameLength)+int(h.ExtraFieldLength)
	h.Name, h.Extra, h.Comment = decodeText(b[:n]), bytes.Clone(b[n:m]), decodeText(b[m:])
	return nil
}

func (h *CDFileHeader) HasValidSignature() bool {
	return h.Signature == CDFileHeaderSignature
}

// HasDataDescriptor returns true if bit 3 of the general purpose flags is set.
func (h *CDFileHeader) HasDataDescriptor() bool {
	return h.Flags&0x8 != 0
}

// IsDir returns true if the entry names a directory, which by convention ends with a slash.
func (h *CDFileHeader) IsDir() bool {
	return strings.HasSuffix(h.Name, "/")
}

// Modified returns the last modification time in UTC.
func (h *CDFileHeader) Modified() time.Time {
	return msDosTimeToTime(h.ModifiedDate, h.ModifiedTime)
}
