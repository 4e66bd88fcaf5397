package scan

import (
	"io"
)

// countingReader delegates io.Reader calls to a proxy while keeping track of the number of bytes read.
// to be used by CentralDirectory.
type countingReader struct {
	io.Reader
	n int64
}

func (r *countingReader) Read(p []byte) (n int, err error) {
	n, err = r.Reader.Read(p)
	r.n += int64(n)
	return
}
