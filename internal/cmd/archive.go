package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nguyengg/zipreader"
	"github.com/nguyengg/zipreader/internal"
	"github.com/nguyengg/zipreader/internal/config"
	"github.com/nguyengg/zipreader/s3readseeker"
)

// ArchiveOpenerMixin adds the flags for opening local or S3 archives to a command.
type ArchiveOpenerMixin struct {
	Mmap    bool `long:"mmap" description:"memory-map local archives instead of reading them as regular files"`
	Verbose bool `short:"v" long:"verbose" description:"log the discovery of the end of central directory record"`
}

// open opens either a local archive or an S3 archive (s3://bucket/key).
func (m *ArchiveOpenerMixin) open(ctx context.Context, name string, logger *log.Logger) (*zipreader.Archive, error) {
	optFn := func(opts *zipreader.Options) {
		opts.Ctx = ctx
		opts.Mmap = m.Mmap || config.ForDefault().Mmap
		if m.Verbose {
			opts.Logger = logger
		}
	}

	if !internal.IsS3URI(name) {
		return zipreader.Open(name, optFn)
	}

	bucket, key, err := internal.ParseS3URI(name)
	if err != nil {
		return nil, fmt.Errorf(`invalid s3 uri "%s": %w`, name, err)
	}

	client, err := config.NewS3ClientForBucket(ctx, bucket, func(options *s3.Options) {
		// without this, getting a bunch of WARN message below:
		// WARN Response has no supported checksum. Not validating response payload.
		options.DisableLogOutputChecksumValidationSkipped = true
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client error: %w", err)
	}

	cfg := config.ForBucket(bucket)
	return zipreader.OpenS3(ctx, client, bucket, key, optFn, func(opts *zipreader.Options) {
		if cfg.ExpectedBucketOwner != nil {
			opts.S3ReadSeekerOptions = append(opts.S3ReadSeekerOptions, s3readseeker.WithExpectedBucketOwner(*cfg.ExpectedBucketOwner))
		}
	})
}
