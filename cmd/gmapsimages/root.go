package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"gmapsimages/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	noColor    bool
)

// errReported is returned once the failure has already been shown to the user
var errReported = errors.New("run failed")

// rootCmd scrapes when given a location and no subcommand
var rootCmd = &cobra.Command{
	Use:   "gmapsimages [flags] <location>",
	Short: "Download the photo gallery of a Google Maps place",
	Long: `gmapsimages searches Google Maps for a place, walks its photo gallery in
an automated Chrome and downloads every image at full resolution.

Images are written to <download-dir>/<location>/<location>_<n>.<ext> together
with a CSV ledger of the discovered URLs. Re-running skips files that already
exist.`,
	Example: `  gmapsimages "Eiffel Tower"
  gmapsimages scrape "Louvre Museum" --max-images 50 -o ./photos
  gmapsimages "Colosseum" --only-csv`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetColor(!noColor && ui.IsInteractive())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runScrape(cmd, args)
	},
}

// Execute runs the CLI and exits non-zero on failure or interrupt
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	interrupted := ctx.Err() != nil
	stop()

	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
	if interrupted {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .gmapsimages.yaml or $HOME/.config/gmapsimages/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.SetVersionTemplate(`gmapsimages {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
