package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/waypack/waypack/internal/version"
	"github.com/waypack/waypack/pkg/derrors"
	"github.com/waypack/waypack/pkg/dlog"
	"github.com/waypack/waypack/pkg/recipe"
)

var (
	verbosity   int
	rootDir     string
	platformStr string
)

var rootCmd = &cobra.Command{
	Use:   "waypack",
	Short: "A package manager and build driver for compiled systems projects",
	Long: `waypack resolves a project's dependency graph, selects a
configuration per package, and computes the resulting build plan without
invoking a compiler itself.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		dlog.Setup(verbosity)
		logger := dlog.Get("cli")
		logger.Debug().Str("command", cmd.Name()).Msg("command started")
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	DisableAutoGenTag: true,
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVar(&platformStr, "platform", "", "target platform as os[-arch[-compiler]]")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newDepsCmd())
	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newUpgradeCmd())
	rootCmd.AddCommand(newListCmd())
}

// Execute runs the root command, rendering any *derrors.Error with its
// code and details before returning the error to main for the exit code.
func Execute() error {
	err := rootCmd.Execute()
	if err == nil {
		return nil
	}

	if derr, ok := err.(*derrors.Error); ok {
		fmt.Fprintf(os.Stderr, "waypack: %s [%s]\n", derr.Message, derr.Code)
		for k, v := range derr.Details {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", k, v)
		}
		return err
	}

	fmt.Fprintf(os.Stderr, "waypack: %s\n", err)
	return err
}

// parsePlatform turns "os[-arch[-compiler]]" into a recipe.Platform. An
// empty string yields the zero Platform, under which only a recipe's
// unfiltered declarations apply; the host platform is not detected.
func parsePlatform(s string) recipe.Platform {
	var p recipe.Platform
	if s == "" {
		return p
	}
	parts := strings.SplitN(s, "-", 3)
	if len(parts) > 0 {
		p.OS = parts[0]
	}
	if len(parts) > 1 {
		p.Arch = parts[1]
	}
	if len(parts) > 2 {
		p.Compiler = parts[2]
	}
	return p
}
