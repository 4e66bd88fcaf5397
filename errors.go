package zipreader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nguyengg/zipreader/codec"
	"github.com/nguyengg/zipreader/zip/record"
	"github.com/nguyengg/zipreader/zip/scan"
)

var (
	// ErrMalformedArchive is the kind of every error caused by the archive's content: no valid EOCD, a central
	// directory or record that does not fit, a mismatched signature, or a payload that cannot be decoded.
	ErrMalformedArchive = errors.New("malformed archive")

	// ErrUnsupportedCompressionMethod is the kind of error returned when extracting an entry whose compression method
	// is neither stored (0) nor deflate (8).
	ErrUnsupportedCompressionMethod = errors.New("unsupported compression method")

	// ErrEntryNotFound is the kind of error returned when no entry matches the requested name.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrIO is the kind of every error caused by the underlying source failing to open, seek, or read, including
	// reads that end before the requested number of bytes.
	ErrIO = errors.New("i/o failure")
)

var (
	// ErrClosed is the cause of the ErrIO *Error returned by operations that need the underlying source after
	// Archive.Close has been called.
	ErrClosed = errors.New("archive already closed")

	// ErrConcurrentReadNotSupported is the cause of the ErrIO *Error returned if an extraction is started while another
	// one is still in progress on the same Archive.
	ErrConcurrentReadNotSupported = errors.New("archive is being read by another extraction")

	// ErrIndexOutOfRange is returned by Archive.Entry if the index is not in [0, Archive.EntryCount()).
	ErrIndexOutOfRange = errors.New("entry index out of range")
)

// Error is returned by Open, OpenReader, OpenS3, and the extraction methods of Archive.
//
// Use errors.Is with one of ErrMalformedArchive, ErrUnsupportedCompressionMethod, ErrEntryNotFound, or ErrIO to
// inspect the kind of error. errors.Is and errors.As also work against the cause, such as scan.ErrNoEOCDFound or
// *scan.RecordError.
type Error struct {
	// Kind is one of ErrMalformedArchive, ErrUnsupportedCompressionMethod, ErrEntryNotFound, or ErrIO.
	Kind error
	// Op is the operation that failed such as "open" or "extract".
	Op string
	// Archive is the name of the archive.
	Archive string
	// Entry is the name of the entry if applicable.
	Entry string
	// Index is the zero-based index of the offending central directory record, or -1 if not applicable.
	Index int
	// Method is the compression method of the entry; only meaningful if Entry is not empty.
	Method uint16
	// Err is the underlying cause, may be nil.
	Err error
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

func (e *Error) Error() string {
	attrs := []string{"archive=" + e.Archive}
	if e.Entry != "" {
		attrs = append(attrs, "entry="+e.Entry)
	}
	if e.Index >= 0 {
		attrs = append(attrs, fmt.Sprintf("index=%d", e.Index))
	}
	if errors.Is(e.Kind, ErrUnsupportedCompressionMethod) {
		attrs = append(attrs, fmt.Sprintf("method=%d", e.Method))
	}

	msg := fmt.Sprintf("%s (%s) error: %v", e.Op, strings.Join(attrs, ", "), e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// classify returns the kind of error for a cause that came from the scan, record, or codec packages, or from the
// underlying source.
func classify(err error) error {
	switch {
	case errors.Is(err, scan.ErrNoEOCDFound),
		errors.Is(err, scan.ErrDirectoryBounds),
		errors.Is(err, scan.ErrInvalidSignature),
		errors.Is(err, scan.ErrRecordOverrun),
		errors.Is(err, record.ErrShortBuffer):
		return ErrMalformedArchive
	case errors.Is(err, codec.ErrUnsupportedMethod):
		return ErrUnsupportedCompressionMethod
	default:
		// short reads, seek failures, and context cancellation all end up here.
		return ErrIO
	}
}

// newError creates an archive-level *Error, taking the record index from *scan.RecordError if there is one.
func (a *Archive) newError(kind error, op string, err error) *Error {
	e := &Error{Kind: kind, Op: op, Archive: a.name, Index: -1, Err: err}

	var re *scan.RecordError
	if errors.As(err, &re) {
		e.Index = re.Index
	}

	return e
}

// entryError creates an entry-level *Error.
func (a *Archive) entryError(kind error, op string, fh *record.CDFileHeader, err error) *Error {
	e := a.newError(kind, op, err)
	e.Entry = fh.Name
	e.Method = fh.Method
	return e
}
