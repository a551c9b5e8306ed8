package cli

import (
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/pkgiter/batch"
	"github.com/utkarsh5026/pkgiter/workspace"
)

func newListCmd(fsys afero.Fs, g *globalOptions) *cobra.Command {
	var levels bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the packages of the workspace",
		Long: `List the packages of the workspace with their workspace dependencies.

With --levels, each package is shown with the dependency level the batched
strategy would run it in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, fsys, g)
			if err != nil {
				return err
			}
			defer s.Close()

			scope, _ := cmd.Flags().GetStringSlice("scope")
			pkgs := workspace.Filter(s.pkgs, scope...)

			levelOf := map[string]int{}
			if levels {
				lv, err := batch.Levels(pkgs)
				if err != nil {
					return err
				}
				for i, level := range lv {
					for _, p := range level {
						levelOf[p.Name] = i
					}
				}
			}

			return renderPackages(cmd, s, pkgs, levels, levelOf)
		},
	}

	cmd.Flags().BoolVar(&levels, "levels", false, "show the dependency level of each package")
	cmd.Flags().StringSlice("scope", nil, "only list the named packages")
	return cmd
}

func renderPackages(cmd *cobra.Command, s *session, pkgs []workspace.Package, levels bool, levelOf map[string]int) error {
	table := tablewriter.NewWriter(cmd.OutOrStdout())

	header := []any{"Name", "Version", "Location", "Dependencies"}
	if levels {
		header = append(header, "Level")
	}
	table.Header(header...)

	for _, p := range pkgs {
		row := []any{p.Name, p.Version, s.relative(p.Location), strings.Join(p.Dependencies, ", ")}
		if levels {
			row = append(row, strconv.Itoa(levelOf[p.Name]))
		}
		if err := table.Append(row...); err != nil {
			return err
		}
	}
	return table.Render()
}
