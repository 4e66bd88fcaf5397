package internal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotS3URI is returned by ParseS3URI if the text does not start with s3://.
var ErrNotS3URI = errors.New("text does not start with s3://")

// IsS3URI returns true if text starts with s3://.
func IsS3URI(text string) bool {
	return strings.HasPrefix(text, "s3://")
}

// ParseS3URI parses S3 URIs in format s3://bucket/key.
//
// Bucket names are not validated beyond being non-empty. The key is required since it must identify an archive.
func ParseS3URI(text string) (bucket, key string, err error) {
	if !IsS3URI(text) {
		return "", "", ErrNotS3URI
	}

	bucket, key, _ = strings.Cut(strings.TrimPrefix(text, "s3://"), "/")
	switch {
	case bucket == "":
		return "", "", fmt.Errorf(`"%s" has no bucket`, text)
	case key == "":
		return "", "", fmt.Errorf(`"%s" has no key`, text)
	}

	return bucket, key, nil
}
