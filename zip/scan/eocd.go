package scan

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nguyengg/zipreader/zip/record"
)

// bufferSize is the size of each window read from the end of the source while looking for the EOCD.
const bufferSize = 16 * 1024

// ErrNoEOCDFound is returned if no EOCD signature was found.
var ErrNoEOCDFound = errors.New("end of central directory not found; most likely not a ZIP file")

// Options customises how the EOCD is searched for.
type Options struct {
	// Ctx can be given to cancel the scanning after some time.
	//
	// By default, context.Background is used.
	Ctx context.Context

	// MaxBytes can be given to limit the number of bytes scanned from end of source.
	//
	// By default, the zero value scans the entire source.
	MaxBytes int64
}

// FindEOCD searches src backwards for the end of central directory (EOCD) record.
//
// size must be the total number of bytes in src. Every offset from size-22 down to 0 is a candidate, probed one byte at
// a time starting from the highest. A candidate is accepted if it carries the EOCD signature and its comment fits
// inside src; the latter rejects bytes inside a trailing comment that happen to look like another EOCD. The worst case
// when src is not a ZIP file is O(size) probes. Reads are done in windows of 16 KiB so the number of Seek and Read
// calls is O(size / 16 KiB).
//
// Returns the record and its offset from start of src. ErrNoEOCDFound is returned if no candidate qualifies, which
// includes the case where src is smaller than the fixed-size part of the EOCD. Short reads are treated as "no record
// here"; any other read or seek error is returned as is.
func FindEOCD(src io.ReadSeeker, size int64, optFns ...func(*Options)) (r record.EOCDRecord, offset int64, err error) {
	opts := &Options{
		Ctx: context.Background(),
	}
	for _, fn := range optFns {
		fn(opts)
	}

	lowest := int64(0)
	if opts.MaxBytes > 0 {
		lowest = max(0, size-opts.MaxBytes)
	}

	buf := make([]byte, bufferSize)
	for offset = size - record.EOCDFixedSize; offset >= lowest; {
		if err = opts.Ctx.Err(); err != nil {
			return record.EOCDRecord{}, -1, fmt.Errorf("find EOCD: %w", err)
		}

		// the window [start, offset+22) contains every candidate from offset down to start.
		start := max(lowest, offset+record.EOCDFixedSize-bufferSize)
		window := buf[:offset+record.EOCDFixedSize-start]
		if _, err = src.Seek(start, io.SeekStart); err != nil {
			return record.EOCDRecord{}, -1, fmt.Errorf("find EOCD: set read offset at %d from start error: %w", start, err)
		}

		switch _, err = io.ReadFull(src, window); {
		case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
			// src is shorter than size so none of these candidates can be read in full.
			offset = start - 1
			continue
		case err != nil:
			return record.EOCDRecord{}, -1, fmt.Errorf("find EOCD: read error: %w", err)
		}

		for ; offset >= start; offset-- {
			i := offset - start
			if err = r.UnmarshalFixed(window[i : i+record.EOCDFixedSize]); err != nil || !r.HasValidSignature() {
				continue
			}

			if offset+record.EOCDFixedSize+int64(r.CommentLength) > size {
				continue
			}

			switch err = readComment(src, offset, &r); {
			case err == nil:
				return r, offset, nil
			case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
				continue
			default:
				return record.EOCDRecord{}, -1, fmt.Errorf("find EOCD: %w", err)
			}
		}
	}

	return record.EOCDRecord{}, -1, ErrNoEOCDFound
}

// readComment reads the variable-size part of the EOCD found at the given offset.
func readComment(src io.ReadSeeker, offset int64, r *record.EOCDRecord) error {
	if r.CommentLength == 0 {
		return r.UnmarshalVariable(nil)
	}

	if _, err := src.Seek(offset+record.EOCDFixedSize, io.SeekStart); err != nil {
		return fmt.Errorf("set read offset to EOCD comment error: %w", err)
	}

	return record.ReadVariable(src, r)
}
