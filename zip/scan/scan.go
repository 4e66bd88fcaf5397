// Package scan locates the end of central directory record of a ZIP archive and iterates over its central directory.
package scan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/nguyengg/zipreader/zip/record"
)

var (
	// ErrDirectoryBounds is returned if the central directory described by the EOCD extends past end of archive.
	ErrDirectoryBounds = errors.New("central directory extends past end of archive")

	// ErrInvalidSignature is returned if a record in the central directory does not start with the CD file header
	// signature.
	ErrInvalidSignature = errors.New("mismatched CD file header signature")

	// ErrRecordOverrun is returned if a record's declared length would read past end of the central directory.
	ErrRecordOverrun = errors.New("CD file header overruns central directory")
)

// RecordError is returned by CentralDirectory when a specific record cannot be read.
type RecordError struct {
	// Index is the zero-based index of the record in the central directory.
	Index int
	// Offset is the offset of the record relative to start of archive.
	Offset int64
	Err    error
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("read CD file header #%d at offset %d error: %v", e.Index, e.Offset, e.Err)
}

// CentralDirectory returns an iterator over the central directory file headers described by the given EOCD record.
//
// size must be the total number of bytes in src. The iterator reads records sequentially from r.CDOffset until it
// reaches r.CDOffset+r.CDSize exactly. Every record's fixed-size and variable-size parts are checked against that bound
// before they are read so a corrupt length never reads into adjacent data.
//
// The first error stops the iteration: ErrDirectoryBounds if the central directory extends past size, or a
// *RecordError wrapping ErrInvalidSignature, ErrRecordOverrun, or the underlying read error.
//
// The iterator moves src's read offset so src must not be used by anything else until the iteration is done.
func CentralDirectory(src io.ReadSeeker, size int64, r record.EOCDRecord) iter.Seq2[record.CDFileHeader, error] {
	return func(yield func(record.CDFileHeader, error) bool) {
		start, end := int64(r.CDOffset), int64(r.CDOffset)+int64(r.CDSize)
		if end > size {
			yield(record.CDFileHeader{}, fmt.Errorf("central directory spans [%d, %d) but archive has %d bytes: %w", start, end, size, ErrDirectoryBounds))
			return
		}

		if start == end {
			return
		}

		if _, err := src.Seek(start, io.SeekStart); err != nil {
			yield(record.CDFileHeader{}, fmt.Errorf("set read offset to start of central directory (0x%x) error: %w", start, err))
			return
		}

		// the LimitReader guarantees bufio never reads past the central directory.
		cr := &countingReader{Reader: bufio.NewReaderSize(io.LimitReader(src, end-start), bufferSize)}

		for i := 0; start+cr.n < end; i++ {
			pos := start + cr.n
			if pos+record.CDFileHeaderFixedSize > end {
				yield(record.CDFileHeader{}, &RecordError{Index: i, Offset: pos, Err: fmt.Errorf("fixed-size part needs %d bytes, only %d left: %w", record.CDFileHeaderFixedSize, end-pos, ErrRecordOverrun)})
				return
			}

			var fh record.CDFileHeader
			if err := record.ReadFixed(cr, &fh); err != nil {
				yield(fh, &RecordError{Index: i, Offset: pos, Err: err})
				return
			}

			if !fh.HasValidSignature() {
				yield(fh, &RecordError{Index: i, Offset: pos, Err: fmt.Errorf("got 0x%08x, expected 0x%08x: %w", fh.Signature, record.CDFileHeaderSignature, ErrInvalidSignature)})
				return
			}

			if n := int64(fh.VariableSize()); start+cr.n+n > end {
				yield(fh, &RecordError{Index: i, Offset: pos, Err: fmt.Errorf("variable-size part needs %d bytes, only %d left: %w", n, end-start-cr.n, ErrRecordOverrun)})
				return
			}

			if err := record.ReadVariable(cr, &fh); err != nil {
				yield(fh, &RecordError{Index: i, Offset: pos, Err: err})
				return
			}

			if !yield(fh, nil) {
				return
			}
		}
	}
}
