package cmd

import (
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/zipreader/internal/config"
)

// ZipReader contains the global options and every command.
type ZipReader struct {
	Profile string  `short:"p" long:"profile" description:"override the AWS profile used for s3:// archives"`
	List    List    `command:"ls" alias:"list" description:"list entries of archives"`
	Cat     Cat     `command:"cat" description:"write entries of an archive to stdout"`
	Extract Extract `command:"extract" alias:"x" description:"extract archives"`
	Info    Info    `command:"info" description:"show the end of central directory record and statistics of archives"`
}

// stdout is where commands write their output; replaced in tests.
var stdout io.Writer = os.Stdout

// NewParser returns the parser for all commands.
func NewParser() *flags.Parser {
	opts := &ZipReader{}

	p := flags.NewParser(opts, flags.Default)
	p.Name = "zipreader"
	p.CommandHandler = func(command flags.Commander, args []string) error {
		if command == nil {
			return nil
		}

		if opts.Profile != "" {
			config.DefaultLoader.Profile = opts.Profile
		}

		return command.Execute(args)
	}

	return p
}
