// Package zipreader reads ZIP archives from any random-access source.
//
// Opening an archive locates the end of central directory record, then parses the whole central directory into an
// in-memory index that maps case-folded names to entries. Extraction seeks to an entry's local file header and decodes
// its payload with the codec for the entry's compression method; only stored (0) and deflate (8) are supported.
//
// An Archive owns its source and has a single read cursor, so it must not be used for more than one extraction at a
// time. Callers needing concurrent extractions should open the archive once per goroutine.
package zipreader

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	"github.com/nguyengg/zipreader/s3readseeker"
	"github.com/nguyengg/zipreader/zip/record"
	"github.com/nguyengg/zipreader/zip/scan"
	"golang.org/x/exp/mmap"
	"golang.org/x/text/cases"
)

// Options customises Open, OpenReader, and OpenS3.
type Options struct {
	// Logger is used to log the discovery of the end of central directory record and the central directory.
	//
	// By default, log messages are discarded.
	Logger *log.Logger

	// Mmap makes Open memory-map the file instead of reading it with os.File.
	//
	// Only used by Open.
	Mmap bool

	// Ctx can be given to abandon the search for the end of central directory record, which reads backwards from
	// end of source and may have to go through the entire source if it is not a ZIP archive.
	//
	// By default, context.Background is used. OpenS3 uses its own context argument instead.
	Ctx context.Context

	// S3ReadSeekerOptions are passed to s3readseeker.New.
	//
	// Only used by OpenS3.
	S3ReadSeekerOptions []func(*s3readseeker.Options)
}

// Archive is an open ZIP archive.
//
// The directory index is built once by Open and never changes afterwards so Files, HasFile, Entry, EntryCount, Name,
// Size, and EOCD remain usable even after Close. Extract, ExtractEntry, Open, and OpenEntry need the source.
type Archive struct {
	name   string
	size   int64
	src    io.ReadSeeker
	closer io.Closer
	logger *log.Logger

	eocd    record.EOCDRecord
	headers []record.CDFileHeader
	index   map[string]int

	busy   atomic.Bool
	closed atomic.Bool
}

func newOptions(optFns []func(*Options)) *Options {
	opts := &Options{
		Logger: log.New(io.Discard, "", 0),
		Ctx:    context.Background(),
	}
	for _, fn := range optFns {
		fn(opts)
	}

	return opts
}

// Open opens the named ZIP file.
//
// The file is closed on every failure path. On success, it stays open until Archive.Close.
func Open(name string, optFns ...func(*Options)) (*Archive, error) {
	opts := newOptions(optFns)

	a := &Archive{name: name, logger: opts.Logger}

	if opts.Mmap {
		ra, err := mmap.Open(name)
		if err != nil {
			return nil, a.newError(ErrIO, "open", fmt.Errorf("mmap file error: %w", err))
		}

		a.size = int64(ra.Len())
		a.src = io.NewSectionReader(ra, 0, a.size)
		a.closer = ra
	} else {
		f, err := os.Open(name)
		if err != nil {
			return nil, a.newError(ErrIO, "open", fmt.Errorf("open file error: %w", err))
		}

		fi, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, a.newError(ErrIO, "open", fmt.Errorf("stat file error: %w", err))
		}

		a.size = fi.Size()
		a.src = f
		a.closer = f
	}

	return a.load(opts.Ctx)
}

// OpenReader opens a ZIP archive from the given source.
//
// size must be the total number of bytes in src, and name is only used in log and error messages. If src also
// implements io.Closer, the Archive takes ownership of src: it is closed on every failure path and by Archive.Close.
func OpenReader(src io.ReadSeeker, size int64, name string, optFns ...func(*Options)) (*Archive, error) {
	opts := newOptions(optFns)

	a := &Archive{name: name, size: size, src: src, logger: opts.Logger}
	if c, ok := src.(io.Closer); ok {
		a.closer = c
	}

	return a.load(opts.Ctx)
}

// OpenS3 opens a ZIP archive stored in S3.
//
// The object's size is determined with HeadObject, then every read is served by a ranged GetObject using the given
// context. Only the end of the object, its central directory, and the entries being extracted are downloaded.
func OpenS3(ctx context.Context, client s3readseeker.ReadSeekerClient, bucket, key string, optFns ...func(*Options)) (*Archive, error) {
	opts := newOptions(append([]func(*Options){func(opts *Options) {
		opts.Ctx = ctx
	}}, optFns...))

	a := &Archive{name: fmt.Sprintf("s3://%s/%s", bucket, key), logger: opts.Logger}

	rs, err := s3readseeker.New(client, bucket, key, append([]func(*s3readseeker.Options){func(rsOpts *s3readseeker.Options) {
		rsOpts.CtxFn = func() context.Context {
			return ctx
		}
	}}, opts.S3ReadSeekerOptions...)...)
	if err != nil {
		return nil, a.newError(ErrIO, "open", err)
	}

	a.src = rs
	a.size = rs.Size()
	return a.load(opts.Ctx)
}

// load finds the EOCD and builds the directory index. The source is closed if load fails.
func (a *Archive) load(ctx context.Context) (_ *Archive, err error) {
	defer func() {
		if err != nil && a.closer != nil {
			_ = a.closer.Close()
		}
	}()

	eocd, offset, err := scan.FindEOCD(a.src, a.size, func(opts *scan.Options) {
		opts.Ctx = ctx
	})
	if err != nil {
		return nil, a.newError(classify(err), "open", err)
	}

	a.logger.Printf("found EOCD at offset %d; central directory has %d entries in %d bytes at offset %d", offset, eocd.CDCount, eocd.CDSize, eocd.CDOffset)

	headers := make([]record.CDFileHeader, 0, eocd.CDCount)
	index := make(map[string]int, eocd.CDCount)
	for fh, err := range scan.CentralDirectory(a.src, a.size, eocd) {
		if err != nil {
			return nil, a.newError(classify(err), "open", err)
		}

		// duplicates are not an error; the last one wins.
		index[fold(fh.Name)] = len(headers)
		headers = append(headers, fh)
	}

	if n := len(headers); n != int(eocd.CDCount) {
		a.logger.Printf("EOCD declares %d entries but central directory has %d", eocd.CDCount, n)
	}
	if n := len(headers); n != len(index) {
		a.logger.Printf("central directory has %d entries but only %d distinct names", n, len(index))
	}

	a.eocd, a.headers, a.index = eocd, headers, index
	return a, nil
}

// fold returns the key of name in the directory index.
func fold(name string) string {
	return cases.Fold().String(name)
}

// Name returns the name of the archive.
func (a *Archive) Name() string {
	return a.name
}

// Size returns the size of the archive in bytes.
func (a *Archive) Size() int64 {
	return a.size
}

// EOCD returns the end of central directory record.
func (a *Archive) EOCD() record.EOCDRecord {
	return a.eocd
}

// Files returns the names of the entries in the archive.
//
// Names that differ only in case are returned once using the spelling of the entry that wins the lookup, which is the
// last one in the central directory. The names are ordered by the position of that entry in the central directory.
func (a *Archive) Files() []string {
	names := make([]string, 0, len(a.index))
	for i := range a.headers {
		if name := a.headers[i].Name; a.index[fold(name)] == i {
			names = append(names, name)
		}
	}

	return names
}

// HasFile returns true if the archive has an entry with the given name, compared case-insensitively.
func (a *Archive) HasFile(name string) bool {
	_, ok := a.index[fold(name)]
	return ok
}

// Lookup returns the central directory file header of the entry that Extract would use for the given name.
func (a *Archive) Lookup(name string) (record.CDFileHeader, bool) {
	i, ok := a.index[fold(name)]
	if !ok {
		return record.CDFileHeader{}, false
	}

	return a.headers[i], true
}

// Entry returns the central directory file header at the given zero-based index.
//
// Entries are ordered as they appear in the central directory, including entries whose name is shadowed by a later
// duplicate.
func (a *Archive) Entry(i int) (record.CDFileHeader, error) {
	if i < 0 || i >= len(a.headers) {
		return record.CDFileHeader{}, fmt.Errorf("get entry %d of %d: %w", i, len(a.headers), ErrIndexOutOfRange)
	}

	return a.headers[i], nil
}

// EntryCount returns the number of records in the central directory.
func (a *Archive) EntryCount() int {
	return len(a.headers)
}

// Close releases the underlying source.
//
// Close is idempotent; only the first call closes the source and returns its error.
func (a *Archive) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}

	if a.closer == nil {
		return nil
	}

	if err := a.closer.Close(); err != nil {
		return a.newError(ErrIO, "close", err)
	}

	return nil
}
