package zipreader

import (
	"errors"
	"fmt"
	"io"

	"github.com/nguyengg/zipreader/codec"
	"github.com/nguyengg/zipreader/zip/record"
	"github.com/valyala/bytebufferpool"
)

// Extract returns the uncompressed content of the entry with the given name, compared case-insensitively.
//
// If the archive has several entries with the same name, the last one in the central directory is used.
func (a *Archive) Extract(name string) ([]byte, error) {
	rc, err := a.Open(name)
	if err != nil {
		return nil, err
	}

	return readAll(rc)
}

// ExtractEntry returns the uncompressed content of the given entry.
//
// fh is usually obtained from Archive.Entry but can be any central directory file header; its Offset, Method, and
// sizes are trusted only as far as they are consistent with the archive's size.
func (a *Archive) ExtractEntry(fh record.CDFileHeader) ([]byte, error) {
	rc, err := a.OpenEntry(fh)
	if err != nil {
		return nil, err
	}

	return readAll(rc)
}

func readAll(rc io.ReadCloser) ([]byte, error) {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	_, err := bb.ReadFrom(rc)
	if err2 := rc.Close(); err == nil {
		err = err2
	}
	if err != nil {
		return nil, err
	}

	data := make([]byte, bb.Len())
	copy(data, bb.B)
	return data, nil
}

// Open returns an io.ReadCloser that streams the uncompressed content of the entry with the given name, compared
// case-insensitively.
//
// The Archive cannot be used for another extraction until the returned io.ReadCloser is closed.
func (a *Archive) Open(name string) (io.ReadCloser, error) {
	fh, ok := a.Lookup(name)
	if !ok {
		return nil, &Error{Kind: ErrEntryNotFound, Op: "extract", Archive: a.name, Entry: name, Index: -1}
	}

	return a.OpenEntry(fh)
}

// OpenEntry returns an io.ReadCloser that streams the uncompressed content of the given entry.
//
// The Archive cannot be used for another extraction until the returned io.ReadCloser is closed. Starting one anyway, or
// extracting after Archive.Close, fails with an *Error of kind ErrIO wrapping ErrConcurrentReadNotSupported or
// ErrClosed.
func (a *Archive) OpenEntry(fh record.CDFileHeader) (io.ReadCloser, error) {
	if a.closed.Load() {
		return nil, a.entryError(ErrIO, "extract", &fh, ErrClosed)
	}
	if !a.busy.CompareAndSwap(false, true) {
		return nil, a.entryError(ErrIO, "extract", &fh, ErrConcurrentReadNotSupported)
	}

	r, err := a.openEntry(&fh)
	if err != nil {
		a.busy.Store(false)
		return nil, err
	}

	return r, nil
}

func (a *Archive) openEntry(fh *record.CDFileHeader) (*entryReader, error) {
	offset := int64(fh.Offset)
	if offset+record.LocalFileHeaderFixedSize > a.size {
		return nil, a.entryError(ErrMalformedArchive, "extract", fh, fmt.Errorf("local file header at offset %d extends past end of archive (%d bytes)", offset, a.size))
	}

	if _, err := a.src.Seek(offset, io.SeekStart); err != nil {
		return nil, a.entryError(ErrIO, "extract", fh, fmt.Errorf("set read offset to local file header (0x%x) error: %w", offset, err))
	}

	var lh record.LocalFileHeader
	if err := record.ReadFixed(a.src, &lh); err != nil {
		return nil, a.entryError(ErrIO, "extract", fh, fmt.Errorf("read local file header error: %w", err))
	}
	if !lh.HasValidSignature() {
		return nil, a.entryError(ErrMalformedArchive, "extract", fh, fmt.Errorf("mismatched local file header signature at offset %d: got 0x%08x, expected 0x%08x", offset, lh.Signature, record.LocalFileHeaderSignature))
	}

	start := offset + record.LocalFileHeaderFixedSize + int64(lh.VariableSize())
	end := start + int64(fh.CompressedSize)
	if end > a.size {
		return nil, a.entryError(ErrMalformedArchive, "extract", fh, fmt.Errorf("payload spans [%d, %d) but archive has %d bytes", start, end, a.size))
	}

	if err := record.ReadVariable(a.src, &lh); err != nil {
		return nil, a.entryError(ErrIO, "extract", fh, fmt.Errorf("read local file header error: %w", err))
	}

	c, err := codec.ForMethod(fh.Method)
	if err != nil {
		return nil, a.entryError(ErrUnsupportedCompressionMethod, "extract", fh, err)
	}

	src := &payloadReader{r: a.src, n: int64(fh.CompressedSize)}
	dec, err := c.NewDecoder(src)
	if err != nil {
		return nil, a.entryError(ErrMalformedArchive, "extract", fh, fmt.Errorf("create %s decoder error: %w", codec.MethodName(fh.Method), err))
	}

	// stored entries are returned as is so the compressed size is authoritative.
	want := int64(fh.UncompressedSize)
	if fh.Method == codec.MethodStored {
		want = int64(fh.CompressedSize)
	}

	return &entryReader{
		a:    a,
		fh:   fh,
		src:  src,
		dec:  dec,
		r:    io.LimitReader(dec, want),
		want: want,
	}, nil
}

// payloadReader reads exactly n bytes from r, turning a premature io.EOF into io.ErrUnexpectedEOF.
//
// The first error from r other than the final io.EOF is kept in err so entryReader can tell an I/O failure apart from
// a decoding failure.
type payloadReader struct {
	r   io.Reader
	n   int64
	err error
}

func (p *payloadReader) Read(b []byte) (n int, err error) {
	if p.n <= 0 {
		return 0, io.EOF
	}

	if int64(len(b)) > p.n {
		b = b[:p.n]
	}

	n, err = p.r.Read(b)
	p.n -= int64(n)

	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && p.n == 0:
	case errors.Is(err, io.EOF):
		err = io.ErrUnexpectedEOF
		fallthrough
	default:
		if p.err == nil {
			p.err = err
		}
	}

	return
}

// entryReader decodes one entry and releases the Archive for the next extraction once closed.
type entryReader struct {
	a    *Archive
	fh   *record.CDFileHeader
	src  *payloadReader
	dec  io.ReadCloser
	r    io.Reader
	n    int64
	want int64
	err  error
	done bool
}

func (e *entryReader) Read(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}

	n, err := e.r.Read(p)
	e.n += int64(n)

	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF) && e.n < e.want:
		e.err = e.a.entryError(ErrMalformedArchive, "extract", e.fh, fmt.Errorf("decoded %d bytes, expected %d", e.n, e.want))
	case errors.Is(err, io.EOF):
		return n, io.EOF
	case e.src.err != nil:
		e.err = e.a.entryError(ErrIO, "extract", e.fh, fmt.Errorf("read payload error: %w", e.src.err))
	default:
		e.err = e.a.entryError(ErrMalformedArchive, "extract", e.fh, fmt.Errorf("decode %s payload error: %w", codec.MethodName(e.fh.Method), err))
	}

	return n, e.err
}

// Close releases the Archive; it does not close the Archive's source.
func (e *entryReader) Close() error {
	if e.done {
		return nil
	}

	e.done = true
	err := e.dec.Close()
	e.a.busy.Store(false)
	return err
}
