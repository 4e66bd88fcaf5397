package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		text       string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{text: "s3://bucket/key.zip", wantBucket: "bucket", wantKey: "key.zip"},
		{text: "s3://bucket/path/to/key.zip", wantBucket: "bucket", wantKey: "path/to/key.zip"},
		{text: "s3://bucket", wantErr: true},
		{text: "s3://bucket/", wantErr: true},
		{text: "s3:///key.zip", wantErr: true},
		{text: "key.zip", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.text)
			if tt.wantErr {
				assert.Errorf(t, err, "ParseS3URI(%s) should have failed", tt.text)
				return
			}

			assert.NoErrorf(t, err, "ParseS3URI(%s) error = %v", tt.text, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}
