package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/waypack/waypack/pkg/dpackage"
	"github.com/waypack/waypack/pkg/dpaths"
	"github.com/waypack/waypack/pkg/pkgmgr"
	"github.com/waypack/waypack/pkg/resolver"
	"github.com/waypack/waypack/pkg/selections"
	"github.com/waypack/waypack/pkg/version"
)

func newUpgradeCmd() *cobra.Command {
	var upgrade bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Resolve dependency versions and update the selections file",
		Long: `upgrade runs the resolver against the project's installed
packages, preferring pinned selections unless --upgrade is given, then
persists the result to waypack.selections.json.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			platform := parsePlatform(platformStr)

			mgr := pkgmgr.New(dpaths.Default(rootDir))
			if err := mgr.Scan(ctx); err != nil {
				return err
			}

			root, err := dpackage.Load(ctx, rootDir, "", nil, nil)
			if err != nil {
				return err
			}

			sel, warnings, err := selections.Load(rootDir)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}

			r := resolver.New(root, platform, mgr, nil, sel, resolver.Options{Upgrade: upgrade})
			result, err := r.Resolve(ctx)
			if err != nil {
				return err
			}
			for _, w := range result.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}

			out := cmd.OutOrStdout()
			for _, name := range sortedNames(result.Versions) {
				fmt.Fprintf(out, "%s %s\n", name, result.Versions[name].String())
			}
			fmt.Fprintf(out, "\nresolved %d, pinned %d, upgraded %d\n",
				result.Summary.Resolved, result.Summary.Pinned, result.Summary.Upgraded)

			if dryRun {
				return nil
			}

			for name, dep := range result.Versions {
				sel.Set(name, dep)
			}
			return sel.Save(rootDir, false)
		},
	}

	cmd.Flags().BoolVar(&upgrade, "upgrade", false, "ignore pinned selections and re-search every name")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the resolution without writing selections")
	return cmd
}

func sortedNames(m map[string]version.Dependency) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
