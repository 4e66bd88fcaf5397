package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nguyengg/zipreader"
	"github.com/nguyengg/zipreader/internal"
	"github.com/nguyengg/zipreader/internal/config"
)

// Extract extracts archives into new directories.
//
// For example, if the archive ("default.zip") has files like this:
//
//	test/a.txt
//	test/path/b.txt
//
// Using "my-dir" as the --dir argument, if "my-dir/default" didn't exist, the extracted directory looks like this:
//
//	my-dir/default/a.txt
//	my-dir/default/path/b.txt
//
// If "my-dir/default" already exists, "my-dir/default-1", "my-dir/default-2", etc. will be created. The common root
// directory ("test") is removed unless --no-unwrap-root is given. With --use-given-dir, files are extracted directly
// into "my-dir".
type Extract struct {
	Dir               string `short:"d" long:"dir" description:"parent directory of the extracted directories" default:"."`
	UseGivenDirectory bool   `long:"use-given-dir" description:"extract files directly into --dir instead of creating a new directory per archive"`
	NoUnwrapRoot      bool   `long:"no-unwrap-root" description:"keep the top-level directory that all entries in the archive share"`
	NoOverwrite       bool   `long:"no-overwrite" description:"skip files that already exist instead of overwriting them"`
	NoProgress        bool   `long:"no-progress" description:"do not show progress bar"`
	ArchiveOpenerMixin
	Args struct {
		Archives []string `positional-arg-name:"archive" description:"local paths or S3 URIs (s3://bucket/key) of the archives" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Extract) Execute(args []string) error {
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
		logger.Printf("start extracting")

		dir, err := c.extract(ctx, name, logger)
		if err == nil {
			logger.Printf(`done extracting to "%s"`, dir)
			success++
			continue
		}

		if errors.Is(err, context.Canceled) {
			break
		}

		logger.Printf("extract error: %v", err)
	}

	log.Printf("successfully extracted %d/%d archives", success, n)
	if success != n {
		return fmt.Errorf("failed to extract %d/%d archives", n-success, n)
	}

	return nil
}

// extract extracts one archive and returns the output directory.
func (c *Extract) extract(ctx context.Context, name string, logger *log.Logger) (dir string, err error) {
	a, err := c.open(ctx, name, logger)
	if err != nil {
		return "", err
	}
	defer a.Close()

	if dir, err = c.mkdir(name); err != nil {
		return "", err
	}

	names := a.Files()

	var root string
	if !c.NoUnwrapRoot {
		root = internal.FindRoot(names)
	}

	for _, entryName := range names {
		if err = ctx.Err(); err != nil {
			return dir, err
		}

		path, err := internal.OutputPath(dir, root, entryName)
		if err != nil {
			return dir, err
		}
		if path == "" {
			continue
		}

		if err = c.extractEntry(ctx, a, entryName, path, logger); err != nil {
			return dir, err
		}
	}

	return dir, nil
}

// mkdir creates the output directory for the named archive.
func (c *Extract) mkdir(name string) (string, error) {
	if c.UseGivenDirectory {
		if err := os.MkdirAll(c.Dir, 0755); err != nil {
			return "", fmt.Errorf("create output directory error: %w", err)
		}

		return c.Dir, nil
	}

	base := filepath.Base(filepath.FromSlash(name))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	path := filepath.Join(c.Dir, stem)
	for i := 0; ; {
		switch err := os.Mkdir(path, 0755); {
		case err == nil:
			return path, nil
		case errors.Is(err, fs.ErrExist):
			i++
			path = filepath.Join(c.Dir, stem+"-"+strconv.Itoa(i))
		default:
			return "", fmt.Errorf("create output directory error: %w", err)
		}
	}
}

func (c *Extract) extractEntry(ctx context.Context, a *zipreader.Archive, name, path string, logger *log.Logger) error {
	fh, _ := a.Lookup(name)
	if fh.IsDir() {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("create directory (path=%s) error: %w", path, err)
		}

		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create parent directories to file (path=%s) error: %w", path, err)
	}

	flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if !c.NoOverwrite {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	dst, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		if c.NoOverwrite && errors.Is(err, fs.ErrExist) {
			logger.Printf(`skipping existing file "%s"`, path)
			return nil
		}

		return fmt.Errorf("create file (path=%s) error: %w", path, err)
	}

	var w io.Writer = dst
	if !c.NoProgress {
		bar := internal.DefaultBytes(os.Stderr, int64(fh.UncompressedSize), logger.Prefix()+internal.TruncateRightWithSuffix(name, 40, "..."))
		defer bar.Close()
		w = io.MultiWriter(dst, bar)
	}

	_, err = a.ExtractTo(ctx, name, w)
	if err2 := dst.Close(); err == nil && err2 != nil {
		err = fmt.Errorf("close file (path=%s) error: %w", path, err2)
	}
	if err != nil {
		return err
	}

	if mtime := fh.Modified(); !mtime.IsZero() {
		_ = os.Chtimes(path, mtime, mtime)
	}

	return nil
}
