package scan

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/nguyengg/zipreader/zip/record"
	"github.com/stretchr/testify/assert"
)

// newArchive creates an in-memory ZIP archive. files are given as name and content pairs and are stored uncompressed.
func newArchive(t *testing.T, comment string, files ...string) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for i := 0; i+1 < len(files); i += 2 {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: files[i], Method: zip.Store})
		assert.NoErrorf(t, err, "CreateHeader(%s) error = %v", files[i], err)
		_, err = w.Write([]byte(files[i+1]))
		assert.NoErrorf(t, err, "Write(%s) error = %v", files[i], err)
	}

	err := zw.SetComment(comment)
	assert.NoErrorf(t, err, "SetComment(...) error = %v", err)

	err = zw.Close()
	assert.NoErrorf(t, err, "Close() error = %v", err)

	return buf.Bytes()
}

func TestFindEOCD(t *testing.T) {
	b := newArchive(t, "", "a.txt", "hello", "b.txt", "world")

	r, offset, err := FindEOCD(bytes.NewReader(b), int64(len(b)))
	assert.NoErrorf(t, err, "FindEOCD() error = %v", err)
	assert.Equal(t, int64(len(b)-22), offset)
	assert.Equal(t, uint16(2), r.CDCount)
	assert.Equal(t, uint16(2), r.CDCountOnDisk)
	assert.Equal(t, "", r.Comment)
	assert.Equal(t, offset, int64(r.CDOffset)+int64(r.CDSize))
}

func TestFindEOCD_WithComment(t *testing.T) {
	alphabet := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	tests := []struct {
		commentLength int
	}{
		{
			commentLength: 8 * 1024,
		},
		{
			commentLength: 16 * 1024,
		},
		{
			commentLength: 32 * 1024,
		},
		{
			commentLength: 48 * 1024,
		},
	}

	for _, tt := range tests {
		for _, delta := range []int{-4, -3, -2, -1, 0, 1, 2, 3, 4} {
			t.Run(fmt.Sprintf("%d with delta=%d", tt.commentLength, delta), func(t *testing.T) {
				n := tt.commentLength + delta
				comment := make([]byte, n)
				for i := range n {
					comment[i] = alphabet[rand.IntN(len(alphabet))]
				}

				b := newArchive(t, string(comment))
				assert.Equalf(t, tt.commentLength+22+delta, len(b), "Mismatched buffer size; got = %d, want = %d", len(b), tt.commentLength+22+delta)

				r, offset, err := FindEOCD(bytes.NewReader(b), int64(len(b)))
				assert.NoErrorf(t, err, "FindEOCD() error = %v", err)
				assert.Equal(t, int64(0), offset)
				assert.Equal(t, string(comment), r.Comment)
			})
		}
	}
}

func TestFindEOCD_FalseSignatureInComment(t *testing.T) {
	// the comment starts with what looks like an EOCD whose own comment would run past end of file.
	fake := binary.LittleEndian.AppendUint32(nil, record.EOCDSignature)
	fake = append(fake, make([]byte, 16)...)
	fake = binary.LittleEndian.AppendUint16(fake, 0xffff)
	comment := string(fake) + strings.Repeat("x", 100)

	b := newArchive(t, comment, "a.txt", "hello")
	want := int64(len(b) - 22 - len(comment))

	r, offset, err := FindEOCD(bytes.NewReader(b), int64(len(b)))
	assert.NoErrorf(t, err, "FindEOCD() error = %v", err)
	assert.Equal(t, want, offset)
	assert.Equal(t, uint16(1), r.CDCount)
	assert.Equal(t, uint16(len(comment)), r.CommentLength)

	// the fake's 0xffff comment length is not valid UTF-8 so each byte decodes to a replacement character.
	assert.Equal(t, strings.Replace(comment, "\xff\xff", "\uFFFD\uFFFD", 1), r.Comment)
}

func TestFindEOCD_NotFound(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
		opts func(*Options)
	}{
		{
			name: "empty",
			b:    []byte{},
		},
		{
			name: "smaller than EOCD",
			b:    newArchive(t, "")[:21],
		},
		{
			name: "EOCD signature only",
			b:    binary.LittleEndian.AppendUint32(nil, record.EOCDSignature),
		},
		{
			name: "not a zip file",
			b:    []byte(strings.Repeat("not a zip file; ", 4096)),
		},
		{
			name: "comment longer than MaxBytes",
			b:    newArchive(t, strings.Repeat("x", 1024)),
			opts: func(options *Options) {
				options.MaxBytes = 512
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var optFns []func(*Options)
			if tt.opts != nil {
				optFns = append(optFns, tt.opts)
			}

			_, offset, err := FindEOCD(bytes.NewReader(tt.b), int64(len(tt.b)), optFns...)
			assert.ErrorIs(t, err, ErrNoEOCDFound)
			assert.Equal(t, int64(-1), offset)
		})
	}
}

func TestFindEOCD_SourceShorterThanSize(t *testing.T) {
	b := newArchive(t, "", "a.txt", "hello")

	_, _, err := FindEOCD(bytes.NewReader(b), int64(len(b)+10))
	assert.ErrorIs(t, err, ErrNoEOCDFound)
}

func TestFindEOCD_Canceled(t *testing.T) {
	b := newArchive(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := FindEOCD(bytes.NewReader(b), int64(len(b)), func(options *Options) {
		options.Ctx = ctx
	})
	assert.ErrorIs(t, err, context.Canceled)
}
