package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/nguyengg/zipreader/internal"
	"github.com/nguyengg/zipreader/internal/config"
)

type Cat struct {
	ArchiveOpenerMixin
	Args struct {
		Archive string   `positional-arg-name:"archive" description:"local path or S3 URI (s3://bucket/key) of the archive" required:"yes"`
		Names   []string `positional-arg-name:"name" description:"names of the entries to write to stdout, compared case-insensitively" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Cat) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	if _, err := config.Load(ctx); err != nil {
		return fmt.Errorf("load config error: %w", err)
	}

	logger := internal.NewLogger(0, 1, c.Args.Archive)

	a, err := c.open(ctx, c.Args.Archive, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var errs []error
	for _, name := range c.Args.Names {
		if _, err = a.ExtractTo(ctx, name, stdout); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}

			logger.Printf(`extract "%s" error: %v`, name, err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
