// Package record decodes the fixed-size and variable-size parts of the ZIP records needed to read an archive.
//
// Every record is split into a fixed-size prefix and a variable-size suffix whose length is given by fields inside the
// prefix. Decoding never performs I/O on its own: [Record.UnmarshalFixed] and [Record.UnmarshalVariable] work on byte
// slices, [Decode] walks an in-memory cursor, and [Read] pulls exactly the right number of bytes from an io.Reader.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#Structure.
package record

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
)

const (
	// LocalFileHeaderSignature is the magic number of a local file header.
	LocalFileHeaderSignature uint32 = 0x04034b50
	// DataDescriptorSignature is the optional magic number of a data descriptor.
	DataDescriptorSignature uint32 = 0x08074b50
	// CDFileHeaderSignature is the magic number of a central directory file header.
	CDFileHeaderSignature uint32 = 0x02014b50
	// EOCDSignature is the magic number of the end of central directory record.
	EOCDSignature uint32 = 0x06054b50
)

const (
	// LocalFileHeaderFixedSize is the size of the fixed-size part of a local file header.
	LocalFileHeaderFixedSize = 30
	// DataDescriptorFixedSize is the size of a data descriptor without its optional signature.
	DataDescriptorFixedSize = 12
	// CDFileHeaderFixedSize is the size of the fixed-size part of a central directory file header.
	CDFileHeaderFixedSize = 46
	// EOCDFixedSize is the size of the fixed-size part of the end of central directory record.
	EOCDFixedSize = 22
)

// ErrShortBuffer is returned when a byte slice is too small to hold the part of the record being decoded.
var ErrShortBuffer = errors.New("insufficient data")

// Record is implemented by the pointer types of every ZIP record that has a fixed-size and a variable-size part.
type Record interface {
	// FixedSize returns the constant size of the fixed-size part.
	FixedSize() int
	// UnmarshalFixed decodes the fixed-size part from exactly FixedSize bytes.
	//
	// The signature is decoded but not validated; use HasValidSignature.
	UnmarshalFixed(b []byte) error
	// VariableSize returns the size of the variable-size part, computed from the fixed-size part.
	VariableSize() int
	// UnmarshalVariable decodes the variable-size part from exactly VariableSize bytes.
	UnmarshalVariable(b []byte) error
	// HasValidSignature returns true if the decoded signature matches the record's magic number.
	HasValidSignature() bool
}

// Decode decodes both parts of rec from b starting at offset off.
//
// Returns the offset immediately after the variable-size part. ErrShortBuffer is returned if either part does not fit
// inside b, in which case the returned offset is the one at which decoding failed.
func Decode(b []byte, off int, rec Record) (int, error) {
	n := rec.FixedSize()
	if off < 0 || off+n > len(b) {
		return off, fmt.Errorf("decode fixed-size part at offset %d: need %d bytes, have %d: %w", off, n, max(0, len(b)-off), ErrShortBuffer)
	}
	if err := rec.UnmarshalFixed(b[off : off+n]); err != nil {
		return off, err
	}

	off += n
	m := rec.VariableSize()
	if off+m > len(b) {
		return off, fmt.Errorf("decode variable-size part at offset %d: need %d bytes, have %d: %w", off, m, len(b)-off, ErrShortBuffer)
	}
	if err := rec.UnmarshalVariable(b[off : off+m]); err != nil {
		return off, err
	}

	return off + m, nil
}

// ReadFixed reads exactly rec.FixedSize bytes from r and decodes them as the fixed-size part.
//
// Short reads are returned as io.EOF or io.ErrUnexpectedEOF.
func ReadFixed(r io.Reader, rec Record) error {
	b := make([]byte, rec.FixedSize())
	if _, err := io.ReadFull(r, b); err != nil {
		return fmt.Errorf("read fixed-size part error: %w", err)
	}

	return rec.UnmarshalFixed(b)
}

// ReadVariable reads exactly rec.VariableSize bytes from r and decodes them as the variable-size part.
//
// ReadFixed or UnmarshalFixed must have been called on rec first.
func ReadVariable(r io.Reader, rec Record) error {
	b := make([]byte, rec.VariableSize())
	if _, err := io.ReadFull(r, b); err != nil {
		return fmt.Errorf("read variable-size part error: %w", err)
	}

	return rec.UnmarshalVariable(b)
}

// Read is a convenient method to call ReadFixed and then ReadVariable.
func Read(r io.Reader, rec Record) error {
	if err := ReadFixed(r, rec); err != nil {
		return err
	}

	return ReadVariable(r, rec)
}

func checkLen(b []byte, n int) error {
	if len(b) != n {
		return fmt.Errorf("need exactly %d bytes, got %d: %w", n, len(b), ErrShortBuffer)
	}

	return nil
}

// decodeText decodes filenames and comments as UTF-8 regardless of the general purpose flag; invalid sequences are
// replaced with U+FFFD.
func decodeText(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	s, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}

	return string(s)
}
