package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/zipreader"
	"github.com/nguyengg/zipreader/codec"
	"github.com/nguyengg/zipreader/internal"
	"github.com/nguyengg/zipreader/internal/config"
	"github.com/nguyengg/zipreader/zip/record"
)

type List struct {
	Long bool `short:"l" long:"long" description:"show sizes, compression method, and modification time of every entry"`
	All  bool `short:"a" long:"all" description:"include entries that are shadowed by a later entry with the same name"`
	ArchiveOpenerMixin
	Args struct {
		Archives []string `positional-arg-name:"archive" description:"local paths or S3 URIs (s3://bucket/key) of the archives" required:"yes"`
	} `positional-args:"yes"`
}

func (c *List) Execute(args []string) error {
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

		if err := c.list(ctx, name, n > 1, logger); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}

			logger.Printf("list error: %v", err)
			continue
		}

		success++
	}

	if n > 1 {
		log.Printf("successfully listed %d/%d archives", success, n)
	}
	if success != n {
		return fmt.Errorf("failed to list %d/%d archives", n-success, n)
	}

	return nil
}

func (c *List) list(ctx context.Context, name string, header bool, logger *log.Logger) error {
	a, err := c.open(ctx, name, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if header {
		_, _ = fmt.Fprintf(stdout, "%s:\n", a.Name())
	}

	for _, fh := range c.entries(a) {
		if !c.Long {
			_, _ = fmt.Fprintln(stdout, fh.Name)
			continue
		}

		_, _ = fmt.Fprintf(stdout, "%10s %10s %-8s %s %s\n",
			humanize.Bytes(uint64(fh.UncompressedSize)),
			humanize.Bytes(uint64(fh.CompressedSize)),
			codec.MethodName(fh.Method),
			fh.Modified().Format(time.DateTime),
			fh.Name)
	}

	return nil
}

// entries returns the headers to list in central directory order.
func (c *List) entries(a *zipreader.Archive) []record.CDFileHeader {
	headers := make([]record.CDFileHeader, 0, a.EntryCount())

	if c.All {
		for i := range a.EntryCount() {
			fh, _ := a.Entry(i)
			headers = append(headers, fh)
		}

		return headers
	}

	for _, name := range a.Files() {
		fh, _ := a.Lookup(name)
		headers = append(headers, fh)
	}

	return headers
}
