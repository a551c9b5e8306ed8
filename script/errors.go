package script

import (
	"errors"
	"fmt"
)

// ErrEmptyCommand is returned by RunCommand for a blank command line.
var ErrEmptyCommand = errors.New("empty command")

// ExitError reports a command that started but exited unsuccessfully.
type ExitError struct {
	Package  string
	Command  string
	ExitCode int
	// Stderr holds what the command wrote to standard error.
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %q exited with code %d", e.Package, e.Command, e.ExitCode)
}

func (e *ExitError) Unwrap() error { return e.Err }

// StartError reports a command that could not be started at all.
type StartError struct {
	Package string
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("%s: start %q: %v", e.Package, e.Command, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }
