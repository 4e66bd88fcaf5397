//go:build windows

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"
)

func exit(err error) {
	failed := err != nil && !flags.WroteHelp(err)

	// a console opened by double-clicking the executable closes as soon as the process exits.
	if term.IsTerminal(int(os.Stdin.Fd())) {
		_, _ = fmt.Fprintf(os.Stderr, "Press Enter to close console\n")
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
	}

	if failed {
		os.Exit(1)
	}
}
