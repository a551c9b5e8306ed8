// Package script runs shell commands and package scripts inside a package's
// directory.
package script

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/utkarsh5026/pkgiter/internal/logging"
	"github.com/utkarsh5026/pkgiter/workspace"
)

// DefaultClient is the package manager used by RunScript when Client is empty.
const DefaultClient = "npm"

// Runner executes commands for packages. The zero value runs silently with
// npm as the client. A Runner may be shared by concurrently running packages.
type Runner struct {
	// Client is the package manager invoked by RunScript.
	Client string
	// Silent captures output instead of streaming it.
	Silent bool
	// Stdout and Stderr receive streamed output, one prefixed line at a
	// time. They default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
	Log    *slog.Logger

	mu sync.Mutex
}

// RunCommand splits command on whitespace and runs it in pkg's directory,
// returning its standard output. No shell is involved.
func (r *Runner) RunCommand(ctx context.Context, pkg workspace.Package, command string) (string, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", ErrEmptyCommand
	}
	return r.run(ctx, pkg, fields[0], fields[1:])
}

// RunScript runs a script from pkg's manifest through the client, passing
// args after "--". A package without the script yields "" and no error.
func (r *Runner) RunScript(ctx context.Context, pkg workspace.Package, name string, args ...string) (string, error) {
	if !pkg.HasScript(name) {
		r.logger().Debug("script not defined, skipping",
			slog.String("package", pkg.Name),
			slog.String("script", name),
		)
		return "", nil
	}

	cmdArgs := []string{"run", name}
	if len(args) > 0 {
		cmdArgs = append(cmdArgs, "--")
		cmdArgs = append(cmdArgs, args...)
	}
	return r.run(ctx, pkg, r.client(), cmdArgs)
}

func (r *Runner) run(ctx context.Context, pkg workspace.Package, name string, args []string) (string, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	r.logger().Debug("running command",
		slog.String("package", pkg.Name),
		slog.String("command", line),
		slog.String("dir", pkg.Location),
		slog.Bool("silent", r.Silent),
	)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = pkg.Location

	var stdout, stderr bytes.Buffer
	var flushers []*prefixWriter
	if r.Silent {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	} else {
		out := newPrefixWriter(&r.mu, r.stdout(), pkg.Name)
		errOut := newPrefixWriter(&r.mu, r.stderr(), pkg.Name)
		flushers = append(flushers, out, errOut)
		cmd.Stdout = io.MultiWriter(&stdout, out)
		cmd.Stderr = io.MultiWriter(&stderr, errOut)
	}

	err := cmd.Run()
	for _, f := range flushers {
		_ = f.Flush()
	}
	if err == nil {
		return stdout.String(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "", &ExitError{
			Package:  pkg.Name,
			Command:  line,
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return "", &StartError{Package: pkg.Name, Command: line, Err: err}
}

func (r *Runner) client() string {
	if r.Client == "" {
		return DefaultClient
	}
	return r.Client
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout == nil {
		return os.Stdout
	}
	return r.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr == nil {
		return os.Stderr
	}
	return r.Stderr
}

func (r *Runner) logger() *slog.Logger {
	if r.Log == nil {
		return logging.Discard()
	}
	return r.Log
}
