package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EOCDRecord models the end of central directory record of a ZIP file.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#End_of_central_directory_record_(EOCD).
type EOCDRecord struct {
	Signature uint32
	// DiskNumber is number of this disk.
	DiskNumber uint16
	// CDDiskNumber is disk where central directory starts.
	CDDiskNumber uint16
	// CDCountOnDisk is the number of central directory records on this disk.
	CDCountOnDisk uint16
	// CDCount is the total number of central directory records.
	CDCount uint16
	// CDSize is size of central directory in bytes.
	CDSize uint32
	// CDOffset is offset of start of central directory, relative to start of archive.
	CDOffset uint32
	// CommentLength is the length of Comment in bytes.
	CommentLength uint16

	// Comment is the decoded archive comment.
	Comment string
}

var _ Record = &EOCDRecord{}

func (r *EOCDRecord) FixedSize() int {
	return EOCDFixedSize
}

func (r *EOCDRecord) UnmarshalFixed(b []byte) error {
	if err := checkLen(b, EOCDFixedSize); err != nil {
		return err
	}

	data := &struct {
		Signature     uint32
		DiskNumber    uint16
		CDDiskNumber  uint16
		CDCountOnDisk uint16
		CDCount       uint16
		CDSize        uint32
		CDOffset      uint32
		CommentLength uint16
	}{}

	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, data); err != nil {
		return fmt.Errorf("unmarshal EOCD error: %w", err)
	}

	*r = EOCDRecord{
		Signature:     data.Signature,
		DiskNumber:    data.DiskNumber,
		CDDiskNumber:  data.CDDiskNumber,
		CDCountOnDisk: data.CDCountOnDisk,
		CDCount:       data.CDCount,
		CDSize:        data.CDSize,
		CDOffset:      data.CDOffset,
		CommentLength: data.CommentLength,
	}
	return nil
}

func (r *EOCDRecord) VariableSize() int {
	return int(r.CommentLength)
}

func (r *EOCDRecord) UnmarshalVariable(b []byte) error {
	if err := checkLen(b, r.VariableSize()); err != nil {
		return err
	}

	r.Comment = decodeText(b)
	return nil
}

func (r *EOCDRecord) HasValidSignature() bool {
	return r.Signature == EOCDSignature
}
