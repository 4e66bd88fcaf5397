package zipreader

import (
	"context"
	"io"
)

// ExtractTo writes the uncompressed content of the entry with the given name to dst.
//
// Unlike Extract, the content is never held in memory in its entirety. The context is checked after every write so
// that extracting a large entry can be cancelled. Returns the number of bytes written.
func (a *Archive) ExtractTo(ctx context.Context, name string, dst io.Writer) (int64, error) {
	rc, err := a.Open(name)
	if err != nil {
		return 0, err
	}

	n, err := copyBufferWithContext(ctx, dst, rc, nil)
	if err2 := rc.Close(); err == nil {
		err = err2
	}

	return n, err
}

// copyBufferWithContext is a custom implementation of io.CopyBuffer that is cancellable via context.
//
// Similar to io.CopyBuffer, if buf is nil, a new buffer of size 32*1024 is created.
func copyBufferWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (written int64, err error) {
	if buf == nil {
		buf = make([]byte, 32*1024)
	}

	for {
		nr, er := src.Read(buf)

		if nr > 0 {
			nw, ew := dst.Write(buf[0:nr])
			written += int64(nw)

			switch {
			case ew != nil:
				return written, ew
			case nw != nr:
				return written, io.ErrShortWrite
			}

			if err = ctx.Err(); err != nil {
				return written, err
			}
		}

		if er == io.EOF {
			return written, nil
		}
		if er != nil {
			return written, er
		}
	}
}
