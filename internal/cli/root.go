// Package cli implements the pkgiter command line.
package cli

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	root string
}

// NewRootCmd builds the pkgiter command tree on the real filesystem.
func NewRootCmd() *cobra.Command {
	return newRootCmd(afero.NewOsFs())
}

func newRootCmd(fsys afero.Fs) *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "pkgiter",
		Short: "Run scripts and commands across the packages of a workspace",
		Long: `pkgiter discovers the packages of a multi-package workspace and runs a
package script or an arbitrary command in each of them.

Packages can run one at a time, in parallel up to a concurrency limit, or in
dependency levels so that a package only starts once everything it depends
on has finished. With --built <label>, packages that already succeeded under
the label and have not changed since are skipped.

Settings are read from .pkgiter.yaml in the workspace root and from
PKGITER_* environment variables; flags take precedence over both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.root, "root", "C", ".", "workspace root directory")
	root.PersistentFlags().String("log-level", "", "log level (debug/info/warn/error)")
	root.PersistentFlags().String("log-format", "", "log format (text/json)")

	root.AddCommand(
		newListCmd(fsys, g),
		newRunCmd(fsys, g),
		newExecCmd(fsys, g),
	)
	return root
}
