package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waypack/waypack/pkg/dpaths"
	"github.com/waypack/waypack/pkg/pkgmgr"
	"github.com/waypack/waypack/pkg/wproject"
)

func newDepsCmd() *cobra.Command {
	var rootConfig string
	var allowNonLibrary bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Resolve per-package configurations and print the dependency graph",
		Long: `deps loads the project rooted at --root, assigns each reachable
package exactly one configuration, and prints them in topological order
(dependencies before the packages that need them).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			platform := parsePlatform(platformStr)

			mgr := pkgmgr.New(dpaths.Default(rootDir))
			if err := mgr.Scan(ctx); err != nil {
				return err
			}

			proj, err := wproject.Load(ctx, rootDir, mgr, platform)
			if err != nil {
				return err
			}
			for _, w := range proj.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}

			configs, err := proj.GetPackageConfigs(platform, rootConfig, allowNonLibrary)
			if err != nil {
				return err
			}

			for _, pkg := range proj.GetTopologicalPackageList(true, proj.Root, configs) {
				name := pkg.QualifiedName()
				fmt.Printf("%s (%s)\n", name, configs[name])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rootConfig, "root-config", "", "force this configuration for the root package")
	cmd.Flags().BoolVar(&allowNonLibrary, "allow-non-library", true, "allow the root package to resolve to a non-library configuration")
	return cmd
}
