package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/zipreader/codec"
	"github.com/nguyengg/zipreader/internal"
	"github.com/nguyengg/zipreader/internal/config"
)

type Info struct {
	ArchiveOpenerMixin
	Args struct {
		Archives []string `positional-arg-name:"archive" description:"local paths or S3 URIs (s3://bucket/key) of the archives" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Info) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	if _, err := config.Load(ctx); err != nil {
		return fmt.Errorf("load config error: %w", err)
	}

	success := 0
	n := len(c.Args.Archives)
	for i, name := range c.Args.Archives {
		logger := internal.NewLogger(i, n, name)

		if err := c.info(ctx, name, logger); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}

			logger.Printf("info error: %v", err)
			continue
		}

		success++
	}

	if success != n {
		return fmt.Errorf("failed to inspect %d/%d archives", n-success, n)
	}

	return nil
}

func (c *Info) info(ctx context.Context, name string, logger *log.Logger) error {
	a, err := c.open(ctx, name, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var uncompressed, compressed uint64
	methods := make(map[string]int)
	for i := range a.EntryCount() {
		fh, _ := a.Entry(i)
		uncompressed += uint64(fh.UncompressedSize)
		compressed += uint64(fh.CompressedSize)
		methods[codec.MethodName(fh.Method)]++
	}

	counts := make([]string, 0, len(methods))
	for m, count := range methods {
		counts = append(counts, fmt.Sprintf("%s=%d", m, count))
	}
	slices.Sort(counts)

	eocd := a.EOCD()
	_, _ = fmt.Fprintf(stdout, "archive:           %s\n", a.Name())
	_, _ = fmt.Fprintf(stdout, "size:              %s (%s bytes)\n", humanize.Bytes(uint64(a.Size())), humanize.Comma(a.Size()))
	_, _ = fmt.Fprintf(stdout, "entries:           %d (%d distinct names)\n", a.EntryCount(), len(a.Files()))
	_, _ = fmt.Fprintf(stdout, "central directory: %s at offset %d\n", humanize.Bytes(uint64(eocd.CDSize)), eocd.CDOffset)
	_, _ = fmt.Fprintf(stdout, "methods:           %s\n", strings.Join(counts, ", "))
	_, _ = fmt.Fprintf(stdout, "uncompressed:      %s\n", humanize.Bytes(uncompressed))
	_, _ = fmt.Fprintf(stdout, "compressed:        %s\n", humanize.Bytes(compressed))
	if eocd.Comment != "" {
		_, _ = fmt.Fprintf(stdout, "comment:           %s\n", eocd.Comment)
	}

	return nil
}
