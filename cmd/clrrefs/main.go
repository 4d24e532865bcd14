package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/skdltmxn/clrrefs/clr"
	"github.com/skdltmxn/clrrefs/internal/filter"
)

// Exit codes
const (
	exitOK         = 0
	exitUsage      = 1
	exitArgs       = 2
	exitMalformed  = 3
	exitBadPattern = -1
	exitOpen       = -2
)

// exitError carries the process exit code for a failure.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the exit code. Results are
// written to stdout only on success.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "clrrefs: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var ee *exitError
	switch {
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, filter.ErrInvalidPattern):
		return exitBadPattern
	case errors.Is(err, clr.ErrOpen):
		return exitOpen
	default:
		return exitMalformed
	}
}
