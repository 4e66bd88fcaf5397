package zipreader

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/zipreader/zip/record"
	"github.com/nguyengg/zipreader/zip/scan"
	"github.com/stretchr/testify/assert"
)

type testFile struct {
	name    string
	method  uint16
	content string
}

// newArchive creates an in-memory ZIP archive with the given files.
func newArchive(t *testing.T, files ...testFile) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	zw.RegisterCompressor(12, func(w io.Writer) (io.WriteCloser, error) {
		return &nopWriteCloser{w}, nil
	})

	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.name, Method: f.method})
		assert.NoErrorf(t, err, "CreateHeader(%s) error = %v", f.name, err)
		_, err = w.Write([]byte(f.content))
		assert.NoErrorf(t, err, "Write(%s) error = %v", f.name, err)
	}

	err := zw.Close()
	assert.NoErrorf(t, err, "Close() error = %v", err)

	return buf.Bytes()
}

type nopWriteCloser struct {
	io.Writer
}

func (w *nopWriteCloser) Close() error {
	return nil
}

// trackingReader counts the number of Close calls, and can be told to fail every Read.
type trackingReader struct {
	*bytes.Reader
	closed    int
	failReads error
}

func (r *trackingReader) Read(p []byte) (int, error) {
	if r.failReads != nil {
		return 0, r.failReads
	}

	return r.Reader.Read(p)
}

func (r *trackingReader) Close() error {
	r.closed++
	return nil
}

func openBytes(t *testing.T, b []byte, optFns ...func(*Options)) *Archive {
	t.Helper()

	a, err := OpenReader(bytes.NewReader(b), int64(len(b)), "test.zip", optFns...)
	if !assert.NoErrorf(t, err, "OpenReader() error = %v", err) {
		t.FailNow()
	}

	return a
}

// cdOffsets returns the offset of every CD file header in an archive without comment.
func cdOffsets(t *testing.T, b []byte) []int {
	t.Helper()

	var eocd record.EOCDRecord
	_, err := record.Decode(b, len(b)-record.EOCDFixedSize, &eocd)
	assert.NoErrorf(t, err, "Decode() error = %v", err)

	offsets := make([]int, 0)
	for off := int(eocd.CDOffset); off < int(eocd.CDOffset+eocd.CDSize); {
		offsets = append(offsets, off)

		var fh record.CDFileHeader
		off, err = record.Decode(b, off, &fh)
		assert.NoErrorf(t, err, "Decode() error = %v", err)
	}

	return offsets
}

var (
	readme = testFile{name: "readme.txt", method: zip.Store, content: "hello world"}
	data   = testFile{name: "data.bin", method: zip.Deflate, content: "aaaaaaaaaaaaaaaaaaaa"}
)

func TestOpenReader(t *testing.T) {
	a := openBytes(t, newArchive(t, readme, data))
	defer a.Close()

	assert.Equal(t, 2, a.EntryCount())
	assert.Equal(t, []string{"readme.txt", "data.bin"}, a.Files())
	assert.Equal(t, "test.zip", a.Name())
	assert.Equal(t, uint16(2), a.EOCD().CDCount)

	got, err := a.Extract("README.TXT")
	assert.NoErrorf(t, err, "Extract(README.TXT) error = %v", err)
	assert.Equal(t, []byte("hello world"), got)

	got, err = a.Extract("data.bin")
	assert.NoErrorf(t, err, "Extract(data.bin) error = %v", err)
	assert.Len(t, got, 20)
	assert.Equal(t, data.content, string(got))

	fh, err := a.Entry(1)
	assert.NoError(t, err)
	assert.Equal(t, "data.bin", fh.Name)
	assert.Equal(t, uint16(zip.Deflate), fh.Method)
	assert.Equal(t, uint32(20), fh.UncompressedSize)
	assert.Less(t, fh.CompressedSize, fh.UncompressedSize)

	got, err = a.ExtractEntry(fh)
	assert.NoError(t, err)
	assert.Equal(t, data.content, string(got))
}

func TestArchive_HasFile(t *testing.T) {
	a := openBytes(t, newArchive(t, readme, data, testFile{name: "Straße/ÄBC.txt", method: zip.Store}))
	defer a.Close()

	for _, name := range []string{"readme.txt", "README.TXT", "ReadMe.Txt", "DATA.BIN", "straße/äbc.TXT"} {
		assert.Truef(t, a.HasFile(name), "HasFile(%s) should be true", name)
	}

	for _, name := range []string{"readme", "readme.txt/", "", "data.bin.bak"} {
		assert.Falsef(t, a.HasFile(name), "HasFile(%s) should be false", name)
	}
}

func TestArchive_Duplicates(t *testing.T) {
	a := openBytes(t, newArchive(t,
		testFile{name: "a.txt", method: zip.Store, content: "first"},
		testFile{name: "b.txt", method: zip.Store, content: "b"},
		testFile{name: "A.TXT", method: zip.Deflate, content: "second"}))
	defer a.Close()

	assert.Equal(t, 3, a.EntryCount())
	assert.Equal(t, []string{"b.txt", "A.TXT"}, a.Files())

	got, err := a.Extract("a.txt")
	assert.NoError(t, err)
	assert.Equal(t, "second", string(got))

	fh, ok := a.Lookup("a.TXT")
	assert.True(t, ok)
	assert.Equal(t, "A.TXT", fh.Name)
	assert.Equal(t, uint16(zip.Deflate), fh.Method)

	_, ok = a.Lookup("c.txt")
	assert.False(t, ok)

	// the shadowed entry is still reachable by index.
	fh, err = a.Entry(0)
	assert.NoError(t, err)
	assert.Equal(t, "a.txt", fh.Name)

	got, err = a.ExtractEntry(fh)
	assert.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestArchive_Empty(t *testing.T) {
	a := openBytes(t, newArchive(t))
	defer a.Close()

	assert.Equal(t, 0, a.EntryCount())
	assert.Empty(t, a.Files())

	got, err := a.Extract("")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.Nil(t, got)
}

func TestArchive_EmptyEntry(t *testing.T) {
	a := openBytes(t, newArchive(t, testFile{name: "empty.txt", method: zip.Deflate}, testFile{name: "dir/", method: zip.Store}))
	defer a.Close()

	for _, name := range []string{"empty.txt", "dir/"} {
		got, err := a.Extract(name)
		assert.NoErrorf(t, err, "Extract(%s) error = %v", name, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestArchive_Entry(t *testing.T) {
	a := openBytes(t, newArchive(t, readme, data))
	defer a.Close()

	for _, i := range []int{-1, 2, 100} {
		_, err := a.Entry(i)
		assert.ErrorIsf(t, err, ErrIndexOutOfRange, "Entry(%d) error = %v", i, err)
	}
}

func TestArchive_EntryNotFound(t *testing.T) {
	a := openBytes(t, newArchive(t, readme, data))
	defer a.Close()

	_, err := a.Extract("missing.txt")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	var e *Error
	if assert.ErrorAs(t, err, &e) {
		assert.Equal(t, "test.zip", e.Archive)
		assert.Equal(t, "missing.txt", e.Entry)
		assert.Equal(t, -1, e.Index)
	}
	assert.ErrorContains(t, err, "archive=test.zip, entry=missing.txt")
}

func TestArchive_UnsupportedCompressionMethod(t *testing.T) {
	a := openBytes(t, newArchive(t, readme, testFile{name: "data.bz2", method: 12, content: "not really bzip2"}))
	defer a.Close()

	_, err := a.Extract("data.bz2")
	assert.ErrorIs(t, err, ErrUnsupportedCompressionMethod)
	assert.NotErrorIs(t, err, ErrMalformedArchive)

	var e *Error
	if assert.ErrorAs(t, err, &e) {
		assert.Equal(t, uint16(12), e.Method)
		assert.Equal(t, "data.bz2", e.Entry)
	}
	assert.ErrorContains(t, err, "archive=test.zip, entry=data.bz2, method=12")

	// the archive is still usable.
	got, err := a.Extract("readme.txt")
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestArchive_UnsupportedCompressionMethod_BadLocalHeader(t *testing.T) {
	b := newArchive(t, testFile{name: "data.bz2", method: 12, content: "not really bzip2"})
	a := openBytes(t, b)
	defer a.Close()

	fh, err := a.Entry(0)
	assert.NoError(t, err)
	binary.LittleEndian.PutUint32(b[fh.Offset:], 0xdeadbeef)

	// the local file header is validated before the compression method.
	_, err = a.ExtractEntry(fh)
	assert.ErrorIs(t, err, ErrMalformedArchive)
	assert.NotErrorIs(t, err, ErrUnsupportedCompressionMethod)
}

func TestOpenReader_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		b         func(t *testing.T) []byte
		wantErr   error
		wantIndex int
	}{
		{
			name: "shorter than EOCD",
			b: func(t *testing.T) []byte {
				return []byte("PK\x05\x06 too short")
			},
			wantErr:   scan.ErrNoEOCDFound,
			wantIndex: -1,
		},
		{
			name: "not a zip file",
			b: func(t *testing.T) []byte {
				return bytes.Repeat([]byte("hello world"), 1000)
			},
			wantErr:   scan.ErrNoEOCDFound,
			wantIndex: -1,
		},
		{
			name: "central directory past end",
			b: func(t *testing.T) []byte {
				b := newArchive(t, readme, data)
				binary.LittleEndian.PutUint32(b[len(b)-6:], uint32(len(b)))
				return b
			},
			wantErr:   scan.ErrDirectoryBounds,
			wantIndex: -1,
		},
		{
			name: "last record overruns central directory",
			b: func(t *testing.T) []byte {
				b := newArchive(t, readme, data)
				offsets := cdOffsets(t, b)
				binary.LittleEndian.PutUint16(b[offsets[1]+28:], 0xff)
				return b
			},
			wantErr:   scan.ErrRecordOverrun,
			wantIndex: 1,
		},
		{
			name: "first record has bad signature",
			b: func(t *testing.T) []byte {
				b := newArchive(t, readme, data)
				offsets := cdOffsets(t, b)
				binary.LittleEndian.PutUint32(b[offsets[0]:], 0xdeadbeef)
				return b
			},
			wantErr:   scan.ErrInvalidSignature,
			wantIndex: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.b(t)
			src := &trackingReader{Reader: bytes.NewReader(b)}

			a, err := OpenReader(src, int64(len(b)), "bad.zip")
			assert.Nil(t, a)
			assert.ErrorIs(t, err, ErrMalformedArchive)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equalf(t, 1, src.closed, "source should have been closed once; got %d", src.closed)

			var e *Error
			if assert.ErrorAs(t, err, &e) {
				assert.Equal(t, "bad.zip", e.Archive)
				assert.Equal(t, tt.wantIndex, e.Index)
			}
		})
	}
}

func TestArchive_ExtractMalformed(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(b []byte, fh *record.CDFileHeader)
		wantErr error
	}{
		{
			name: "bad local file header signature",
			modify: func(b []byte, fh *record.CDFileHeader) {
				binary.LittleEndian.PutUint32(b[fh.Offset:], 0xdeadbeef)
			},
		},
		{
			name: "local file header past end",
			modify: func(b []byte, fh *record.CDFileHeader) {
				fh.Offset = uint32(len(b) - 10)
			},
		},
		{
			name: "payload past end",
			modify: func(b []byte, fh *record.CDFileHeader) {
				fh.CompressedSize = uint32(len(b))
			},
		},
		{
			name: "deflate output shorter than uncompressed size",
			modify: func(b []byte, fh *record.CDFileHeader) {
				fh.UncompressedSize += 10
			},
		},
		{
			name: "deflate payload truncated",
			modify: func(b []byte, fh *record.CDFileHeader) {
				fh.CompressedSize = 1
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newArchive(t, data, readme)
			a := openBytes(t, b)
			defer a.Close()

			fh, err := a.Entry(0)
			assert.NoError(t, err)
			tt.modify(b, &fh)

			_, err = a.ExtractEntry(fh)
			assert.ErrorIs(t, err, ErrMalformedArchive)

			var e *Error
			if assert.ErrorAs(t, err, &e) {
				assert.Equal(t, "data.bin", e.Entry)
			}

			// the failure releases the archive for the next extraction.
			got, err := a.Extract("readme.txt")
			assert.NoError(t, err)
			assert.Equal(t, "hello world", string(got))
		})
	}
}

func TestArchive_ExtractStoredAsDeflate(t *testing.T) {
	a := openBytes(t, newArchive(t, readme))
	defer a.Close()

	fh, err := a.Entry(0)
	assert.NoError(t, err)

	// "hello world" is not a valid deflate stream.
	fh.Method = 8
	_, err = a.ExtractEntry(fh)
	assert.ErrorIs(t, err, ErrMalformedArchive)
}

func TestArchive_ExtractStoredIgnoresUncompressedSize(t *testing.T) {
	a := openBytes(t, newArchive(t, readme))
	defer a.Close()

	fh, err := a.Entry(0)
	assert.NoError(t, err)

	fh.UncompressedSize = 5
	got, err := a.ExtractEntry(fh)
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestArchive_ExtractIOFailure(t *testing.T) {
	b := newArchive(t, readme, data)
	src := &trackingReader{Reader: bytes.NewReader(b)}

	a, err := OpenReader(src, int64(len(b)), "test.zip")
	assert.NoError(t, err)
	defer a.Close()

	diskErr := errors.New("disk on fire")
	src.failReads = diskErr

	_, err = a.Extract("data.bin")
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, diskErr)
	assert.NotErrorIs(t, err, ErrMalformedArchive)
}

func TestArchive_Close(t *testing.T) {
	b := newArchive(t, readme, data)
	src := &trackingReader{Reader: bytes.NewReader(b)}

	a, err := OpenReader(src, int64(len(b)), "test.zip")
	assert.NoError(t, err)

	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
	assert.Equal(t, 1, src.closed)

	_, err = a.Extract("readme.txt")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, ErrIO)

	var e *Error
	if assert.ErrorAs(t, err, &e) {
		assert.Equal(t, "test.zip", e.Archive)
		assert.Equal(t, "readme.txt", e.Entry)
	}

	// metadata is still available.
	assert.Equal(t, 2, a.EntryCount())
	assert.True(t, a.HasFile("data.bin"))
}

func TestArchive_ConcurrentRead(t *testing.T) {
	a := openBytes(t, newArchive(t, readme, data))
	defer a.Close()

	rc, err := a.Open("data.bin")
	assert.NoError(t, err)

	_, err = a.Extract("readme.txt")
	assert.ErrorIs(t, err, ErrConcurrentReadNotSupported)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorContains(t, err, "archive=test.zip, entry=readme.txt")

	got, err := io.ReadAll(rc)
	assert.NoError(t, err)
	assert.Equal(t, data.content, string(got))
	assert.NoError(t, rc.Close())
	assert.NoError(t, rc.Close())

	got, err = a.Extract("readme.txt")
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestOpen(t *testing.T) {
	name := filepath.Join(t.TempDir(), "test.zip")
	err := os.WriteFile(name, newArchive(t, readme, data), 0644)
	assert.NoError(t, err)

	for _, useMmap := range []bool{false, true} {
		buf := &bytes.Buffer{}
		a, err := Open(name, func(opts *Options) {
			opts.Mmap = useMmap
			opts.Logger = log.New(buf, "", 0)
		})
		assert.NoErrorf(t, err, "Open(mmap=%t) error = %v", useMmap, err)
		assert.Equal(t, name, a.Name())
		assert.Equal(t, 2, a.EntryCount())
		assert.Contains(t, buf.String(), "found EOCD at offset")

		got, err := a.Extract("Data.Bin")
		assert.NoError(t, err)
		assert.Equal(t, data.content, string(got))

		assert.NoError(t, a.Close())
	}
}

func TestOpen_FileNotFound(t *testing.T) {
	for _, useMmap := range []bool{false, true} {
		_, err := Open(filepath.Join(t.TempDir(), "missing.zip"), func(opts *Options) {
			opts.Mmap = useMmap
		})
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	}
}
