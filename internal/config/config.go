package config

import (
	"github.com/aws/aws-sdk-go-v2/aws"
)

// DefaultConfig contains the settings in the [default] section.
type DefaultConfig struct {
	// Mmap is true if local archives should be memory-mapped instead of read with os.File.
	Mmap bool
	// AWSProfile is the AWS profile to use for buckets that don't have their own section.
	AWSProfile string
}

// ForDefault returns the settings in the [default] section.
func (l *Loader) ForDefault() (c DefaultConfig) {
	sec, err := l.cfg.GetSection("default")
	if err != nil {
		return c
	}

	c.Mmap = sec.Key("mmap").MustBool(false)
	c.AWSProfile = sec.Key("aws-profile").Value()

	return
}

// ForDefault calls Loader.ForDefault on the DefaultLoader instance.
func ForDefault() DefaultConfig {
	return DefaultLoader.ForDefault()
}

// BucketConfig contains configuration settings for a specific bucket from the [s3://bucket] section.
type BucketConfig struct {
	Bucket              string
	AWSProfile          string
	ExpectedBucketOwner *string
}

// ForBucket returns configuration for a specific bucket.
func (l *Loader) ForBucket(bucket string) (c BucketConfig) {
	c.Bucket = bucket

	sec, err := l.cfg.GetSection("s3://" + bucket)
	if err != nil {
		return c
	}

	c.AWSProfile = sec.Key("aws-profile").Value()

	if sec.HasKey("expected-bucket-owner") {
		c.ExpectedBucketOwner = aws.String(sec.Key("expected-bucket-owner").Value())
	}

	return
}

// ForBucket calls Loader.ForBucket on the DefaultLoader instance.
func ForBucket(bucket string) BucketConfig {
	return DefaultLoader.ForBucket(bucket)
}

// profileForBucket returns the AWS profile to use with the given bucket in order of precedence: Loader.Profile, the
// bucket's section, then the [default] section.
func (l *Loader) profileForBucket(bucket string) string {
	if l.Profile != "" {
		return l.Profile
	}

	if p := l.ForBucket(bucket).AWSProfile; p != "" {
		return p
	}

	return l.ForDefault().AWSProfile
}
