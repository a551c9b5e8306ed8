package cli

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/pkgiter/workspace"
)

func newRunCmd(fsys afero.Fs, g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script> [-- args...]",
		Short: "Run a package script in every package that defines it",
		Long: `Run a script from package.json in every package that defines it, using
the configured npm client. Arguments after -- are passed to the script.

Examples:
  # Build everything, dependencies first
  pkgiter run build --strategy batched

  # Test at most 8 packages at once, skipping packages already tested
  pkgiter run test -j 8 --built test -- --coverage`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, fsys, g)
			if err != nil {
				return err
			}
			defer s.Close()

			name, scriptArgs := args[0], args[1:]
			scope, _ := cmd.Flags().GetStringSlice("scope")

			var pkgs []workspace.Package
			for _, p := range workspace.Filter(s.pkgs, scope...) {
				if p.HasScript(name) {
					pkgs = append(pkgs, p)
				}
			}
			s.log.Info("running script",
				slog.String("script", name),
				slog.Int("packages", len(pkgs)),
			)

			runner := s.newRunner(cmd)
			return s.iterate(cmd, pkgs, func(ctx context.Context, pkg workspace.Package) (string, error) {
				return runner.RunScript(ctx, pkg, name, scriptArgs...)
			})
		},
	}
	addStrategyFlags(cmd)
	return cmd
}

func newExecCmd(fsys afero.Fs, g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec -- <command> [args...]",
		Short: "Run a command in every package directory",
		Long: `Run a command in the directory of every package. The command is executed
directly, not through a shell.

Examples:
  pkgiter exec -- git status --short
  pkgiter exec --strategy sequential --silent -- ls dist`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, fsys, g)
			if err != nil {
				return err
			}
			defer s.Close()

			scope, _ := cmd.Flags().GetStringSlice("scope")
			pkgs := workspace.Filter(s.pkgs, scope...)
			command := strings.Join(args, " ")

			runner := s.newRunner(cmd)
			return s.iterate(cmd, pkgs, func(ctx context.Context, pkg workspace.Package) (string, error) {
				return runner.RunCommand(ctx, pkg, command)
			})
		},
	}
	addStrategyFlags(cmd)
	return cmd
}
