// Package s3readseeker implements io.ReadSeeker and io.ReaderAt over an S3 object using ranged GetObject calls.
package s3readseeker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ReadSeeker uses ranged GetObject to implement io.ReadSeeker and io.ReaderAt.
type ReadSeeker interface {
	io.ReadSeeker
	io.ReaderAt

	// Size returns the size of the S3 object that was determined from the initial HeadObject.
	Size() int64
}

// ReadSeekerClient abstracts the S3 APIs that are needed to implement ReadSeeker.
type ReadSeekerClient interface {
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// DefaultBufferSize is the default value for Options.BufferSize.
const DefaultBufferSize = 64 * 1024

// Options customises New.
type Options struct {
	// BufferSize is used to provide buffered read-ahead for every Read call.
	//
	// By default, DefaultBufferSize is used so that consecutive small Reads, such as the ones made while parsing the
	// central directory of a ZIP archive, don't end up with one GetObject call each.
	//
	// Pass zero or a negative value to disable this feature.
	BufferSize int

	// CtxFn returns a context.Context to be used with every GetObject or HeadObject call.
	//
	// By default, context.Background is used.
	CtxFn func() context.Context

	// ModifyGetObjectInput can be used to modify the GetObject input parameters such as adding ExpectedBucketOwner.
	//
	// Its return value will be used to make the GetObject call.
	ModifyGetObjectInput func(*s3.GetObjectInput) *s3.GetObjectInput

	// ModifyHeadObjectInput can be used to modify the HeadObject input parameters such as adding
	// ExpectedBucketOwner.
	//
	// Its return value will be used to make the HeadObject call. Used only by New.
	ModifyHeadObjectInput func(*s3.HeadObjectInput) *s3.HeadObjectInput
}

// WithExpectedBucketOwner adds the expected bucket owner to every HeadObject and GetObject call.
func WithExpectedBucketOwner(expectedBucketOwner string) func(*Options) {
	return func(opts *Options) {
		getFn, headFn := opts.ModifyGetObjectInput, opts.ModifyHeadObjectInput
		opts.ModifyGetObjectInput = func(input *s3.GetObjectInput) *s3.GetObjectInput {
			input = getFn(input)
			input.ExpectedBucketOwner = aws.String(expectedBucketOwner)
			return input
		}
		opts.ModifyHeadObjectInput = func(input *s3.HeadObjectInput) *s3.HeadObjectInput {
			input = headFn(input)
			input.ExpectedBucketOwner = aws.String(expectedBucketOwner)
			return input
		}
	}
}

// New returns a ReadSeeker with the given bucket and key.
//
// The client will be used to determine a valid size for the file.
func New(client ReadSeekerClient, bucket, key string, optFns ...func(*Options)) (ReadSeeker, error) {
	opts := &Options{
		BufferSize: DefaultBufferSize,
		CtxFn:      context.Background,
		ModifyGetObjectInput: func(input *s3.GetObjectInput) *s3.GetObjectInput {
			return input
		},
		ModifyHeadObjectInput: func(input *s3.HeadObjectInput) *s3.HeadObjectInput {
			return input
		},
	}
	for _, fn := range optFns {
		fn(opts)
	}

	headObjectOutput, err := client.HeadObject(opts.CtxFn(), opts.ModifyHeadObjectInput(&s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}))
	if err != nil {
		return nil, fmt.Errorf("determine file size error: %w", err)
	}

	return &readSeeker{
		client:     client,
		bucket:     bucket,
		key:        key,
		ctxFn:      opts.CtxFn,
		goiFn:      opts.ModifyGetObjectInput,
		size:       aws.ToInt64(headObjectOutput.ContentLength),
		bufferSize: opts.BufferSize,
	}, nil
}

// readSeeker keeps bytes [off, off+buf.Len()) of the object in buf.
type readSeeker struct {
	client      ReadSeekerClient
	bucket, key string
	ctxFn       func() context.Context
	goiFn       func(*s3.GetObjectInput) *s3.GetObjectInput
	off, size   int64
	buf         bytes.Buffer
	bufferSize  int
}

func (r *readSeeker) Size() int64 {
	return r.size
}

func (r *readSeeker) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	if r.buf.Len() == 0 {
		if r.off >= r.size {
			return 0, io.EOF
		}

		if err = r.fill(max(len(p), r.bufferSize)); err != nil {
			return 0, err
		}
	}

	n, _ = r.buf.Read(p)
	r.off += int64(n)
	return n, nil
}

// fill downloads up to m bytes starting at r.off into the empty r.buf.
func (r *readSeeker) fill(m int) error {
	rangeStart, rangeEnd := r.off, min(r.size, r.off+int64(m))-1

	getObjectOutput, err := r.client.GetObject(r.ctxFn(), r.goiFn(&s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", rangeStart, rangeEnd)),
	}))
	if err != nil {
		return fmt.Errorf("get range bytes=%d-%d error: %w", rangeStart, rangeEnd, err)
	}

	_, err = r.buf.ReadFrom(getObjectOutput.Body)
	if _ = getObjectOutput.Body.Close(); err != nil {
		r.buf.Reset()
		return fmt.Errorf("read range bytes=%d-%d error: %w", rangeStart, rangeEnd, err)
	}

	if r.buf.Len() == 0 {
		return io.ErrUnexpectedEOF
	}

	return nil
}

func (r *readSeeker) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, ErrSeekBeforeFirstByte
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= r.size {
		return 0, io.EOF
	}

	rangeEnd := min(r.size, off+int64(len(p))) - 1
	getObjectOutput, err := r.client.GetObject(r.ctxFn(), r.goiFn(&s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, rangeEnd)),
	}))
	if err != nil {
		return 0, fmt.Errorf("get range bytes=%d-%d error: %w", off, rangeEnd, err)
	}

	n, err = io.ReadFull(getObjectOutput.Body, p[:rangeEnd-off+1])
	_ = getObjectOutput.Body.Close()
	if err == nil && n < len(p) {
		err = io.EOF
	}

	return
}

var (
	// ErrSeekBeforeFirstByte is returned if Seek would move the read offset before the first byte.
	ErrSeekBeforeFirstByte = errors.New("seek ends up before first byte")

	// ErrInvalidWhence is returned if Seek is given an unknown whence.
	ErrInvalidWhence = errors.New("invalid whence")
)

// Seek implements io.Seeker.
//
// Seeking past the last byte is allowed; subsequent Read calls return io.EOF. Buffered bytes are kept if the new
// offset is still inside the buffer.
func (r *readSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.off + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return r.off, ErrInvalidWhence
	}

	if abs < 0 {
		return r.off, ErrSeekBeforeFirstByte
	}

	if d := abs - r.off; d >= 0 && d <= int64(r.buf.Len()) {
		r.buf.Next(int(d))
	} else {
		r.buf.Reset()
	}

	r.off = abs
	return abs, nil
}
