package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/waypack/waypack/pkg/dpaths"
	"github.com/waypack/waypack/pkg/pkgmgr"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packages visible to this project",
		Long: `list scans every search root resolved for --root (project,
user, system, and any WAYPACKPATH entries) and prints each indexed
package's installed versions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			mgr := pkgmgr.New(dpaths.Default(rootDir))
			if err := mgr.Scan(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range mgr.Names() {
				pkgs := mgr.Packages(name)
				versions := make([]string, 0, len(pkgs))
				for _, pkg := range pkgs {
					versions = append(versions, pkg.EffectiveVersion().String())
				}
				sort.Strings(versions)
				fmt.Fprintf(out, "%s: %s\n", name, versions)
			}
			return nil
		},
	}
}
