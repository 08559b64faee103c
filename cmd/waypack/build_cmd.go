package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waypack/waypack/pkg/dpaths"
	"github.com/waypack/waypack/pkg/pkgmgr"
	"github.com/waypack/waypack/pkg/recipe"
	"github.com/waypack/waypack/pkg/registry"
	"github.com/waypack/waypack/pkg/wproject"
)

func newBuildCmd() *cobra.Command {
	var rootConfig string
	var shallow bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compute the resolved build plan for the project",
		Long: `build assigns configurations, accumulates every reachable
package's build settings into a single plan, and prints it along with the
equivalent compiler flags for --platform's compiler. It never invokes the
compiler itself.`,
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

			configs, err := proj.GetPackageConfigs(platform, rootConfig, true)
			if err != nil {
				return err
			}

			var settings recipe.Settings
			if err := proj.AddBuildSettings(ctx, &settings, platform, configs, nil, shallow); err != nil {
				return err
			}

			printSettings(cmd, settings)

			if platform.Compiler != "" {
				backend, err := registry.LookupCompiler(platform.Compiler)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", backend.Executable, translateFlags(backend, settings))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&rootConfig, "root-config", "", "force this configuration for the root package")
	cmd.Flags().BoolVar(&shallow, "shallow", false, "skip non-root source files, the way a single-file build would")
	return cmd
}

func printSettings(cmd *cobra.Command, s recipe.Settings) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "target: %s (%s)\n", s.TargetName, s.TargetType)
	if s.TargetPath != "" {
		fmt.Fprintf(out, "targetPath: %s\n", s.TargetPath)
	}
	for _, p := range s.SourcePaths {
		fmt.Fprintf(out, "sourcePath: %s\n", p)
	}
	for _, f := range s.SourceFiles {
		fmt.Fprintf(out, "sourceFile: %s\n", f)
	}
	for _, p := range s.ImportPaths {
		fmt.Fprintf(out, "importPath: %s\n", p)
	}
	for _, v := range s.Versions {
		fmt.Fprintf(out, "version: %s\n", v)
	}
	for _, l := range s.Libs {
		fmt.Fprintf(out, "lib: %s\n", l)
	}
}

// translateFlags renders settings as the flags backend would accept, the
// translation spec.md §1 calls out as an external collaborator this
// module only describes rather than invokes.
func translateFlags(backend registry.CompilerBackend, s recipe.Settings) string {
	var flags []string
	for _, p := range s.ImportPaths {
		flags = append(flags, "-I"+p)
	}
	for _, v := range s.Versions {
		flags = append(flags, backend.VersionFlag+v)
	}
	if s.TargetType == recipe.TargetNone {
		flags = append(flags, backend.ObjectFlag)
	}
	if s.TargetName != "" {
		flags = append(flags, backend.OutputFlag+s.TargetName)
	}
	flags = append(flags, s.DFlags...)
	out := ""
	for i, f := range flags {
		if i > 0 {
			out += " "
		}
		out += f
	}
	return out
}
