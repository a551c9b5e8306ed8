package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/utkarsh5026/pkgiter/script"
	"github.com/utkarsh5026/pkgiter/workspace"
)

var (
	statusOK      = color.New(color.FgGreen).SprintFunc()
	statusFailed  = color.New(color.FgRed, color.Bold).SprintFunc()
	statusNotRun  = color.New(color.FgYellow).SprintFunc()
	summaryHeader = color.New(color.Bold)
)

// renderSummary prints one row per package. Packages with no recorded
// outcome were filtered out as built or never started after a failure.
func renderSummary(w io.Writer, pkgs []workspace.Package, rec *recorder, label string) error {
	var ok, failed, notRun int

	table := tablewriter.NewWriter(w)
	table.Header("Package", "Status", "Took", "Detail")

	for _, p := range pkgs {
		o, ran := rec.lookup(p.Name)
		var status, took, detail string
		switch {
		case !ran:
			notRun++
			status = statusNotRun("not run")
			if label != "" {
				detail = fmt.Sprintf("built under %q or stopped early", label)
			}
		case o.err != nil:
			failed++
			status = statusFailed("failed")
			took = o.took.Round(time.Millisecond).String()
			detail = describeError(o.err)
		default:
			ok++
			status = statusOK("ok")
			took = o.took.Round(time.Millisecond).String()
		}
		if err := table.Append(p.Name, status, took, detail); err != nil {
			return err
		}
	}

	if _, err := summaryHeader.Fprintf(w, "\n%d ok, %d failed, %d not run\n", ok, failed, notRun); err != nil {
		return err
	}
	return table.Render()
}

func describeError(err error) string {
	var exitErr *script.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("exit code %d", exitErr.ExitCode)
	}
	var startErr *script.StartError
	if errors.As(err, &startErr) {
		return fmt.Sprintf("could not start: %v", startErr.Err)
	}
	return err.Error()
}
