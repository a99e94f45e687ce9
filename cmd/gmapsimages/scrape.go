package main

import (
	"strings"

	"github.com/spf13/cobra"

	"gmapsimages/pkg/config"
	"gmapsimages/pkg/logger"
	"gmapsimages/pkg/normalize"
	"gmapsimages/pkg/scraper"
	"gmapsimages/pkg/ui"
)

var (
	// Scrape command flags
	headless      bool
	noHeadless    bool
	downloadDir   string
	maxImages     int
	maxWorkers    int
	waitTimeout   int
	retryAttempts int
	chromePath    string
	debug         bool
	noCSV         bool
	onlyCSV       bool
	notify        bool
)

// scrapeCmd downloads the gallery of one location
var scrapeCmd = &cobra.Command{
	Use:   "scrape <location>",
	Short: "Download the photos of a place",
	Long: `Search Google Maps for <location>, open its photos and download every image.

The whole pipeline is retried up to --retry-attempts times. Finding the place
without any photos is reported but is not a failure.`,
	Example: `  gmapsimages scrape "Eiffel Tower"
  gmapsimages scrape "Sagrada Familia" --no-headless --debug
  gmapsimages scrape "Tower Bridge" --max-workers 8 --max-images 100
  gmapsimages scrape "Big Ben" --only-csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	addScrapeFlags(scrapeCmd)
	addScrapeFlags(rootCmd)
}

func addScrapeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&headless, "headless", true, "run Chrome without a window")
	flags.BoolVar(&noHeadless, "no-headless", false, "show the Chrome window")
	flags.StringVarP(&downloadDir, "download-dir", "o", "", "root directory for downloads (default downloaded_images)")
	flags.IntVar(&maxImages, "max-images", 0, "stop after this many images (0 = no limit)")
	flags.IntVar(&maxWorkers, "max-workers", 5, "concurrent downloads (0 records URLs only)")
	flags.IntVar(&waitTimeout, "timeout", 5, "seconds to wait for each page element")
	flags.IntVar(&retryAttempts, "retry-attempts", 3, "whole-pipeline attempts")
	flags.StringVar(&chromePath, "chrome-path", "", "Chrome executable (default: auto-detect)")
	flags.BoolVar(&debug, "debug", false, "verbose logging")
	flags.BoolVar(&noCSV, "no-csv", false, "do not write the URL ledger")
	flags.BoolVar(&onlyCSV, "only-csv", false, "record URLs in the ledger without downloading")
	flags.BoolVar(&notify, "notify", false, "send a desktop notification when done")
}

// commandLineFlags returns the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects
func commandLineFlags(cmd *cobra.Command) map[string]interface{} {
	set := cmd.Flags().Changed
	flags := make(map[string]interface{})

	if set("headless") {
		flags["headless"] = headless
	}
	if noHeadless {
		flags["headless"] = false
	}
	if set("download-dir") {
		flags["download-dir"] = downloadDir
	}
	if set("max-images") {
		flags["max-images"] = maxImages
	}
	if set("max-workers") {
		flags["max-workers"] = maxWorkers
	}
	if set("timeout") {
		flags["timeout"] = waitTimeout
	}
	if set("retry-attempts") {
		flags["retry-attempts"] = retryAttempts
	}
	if set("chrome-path") {
		flags["chrome-path"] = chromePath
	}
	if set("notify") {
		flags["notify"] = notify
	}
	flags["debug"] = debug
	flags["no-csv"] = noCSV
	flags["only-csv"] = onlyCSV
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	return flags
}

func runScrape(cmd *cobra.Command, args []string) error {
	location := strings.TrimSpace(strings.Join(args, " "))

	cfg, err := config.Load(configFile, commandLineFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return errReported
	}
	cfg.Logging.NoColor = cfg.Logging.NoColor || noColor

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logging", err.Error())
		return errReported
	}
	log := logger.GetLogger()
	log.WithFields(map[string]interface{}{
		"version":  version,
		"location": location,
	}).Info("gmapsimages starting")

	interactive := ui.IsInteractive()
	if interactive {
		ui.PrintBanner()
	}
	ui.PrintInfo("Location", location)
	ui.PrintInfo("Output", cfg.Output.BaseDirectory)

	opts := []scraper.Option{scraper.WithLogger(log)}
	var progress *ui.ProgressDisplay
	if interactive && cfg.EffectiveConcurrency() > 0 {
		progress = ui.NewProgressDisplay(normalize.SanitizeFilename(location), cfg.Logging.Level == "debug")
		opts = append(opts, scraper.WithObserver(progress))
	}

	s, err := scraper.New(cfg, opts...)
	if err != nil {
		ui.PrintError("Failed to initialize scraper", err.Error())
		return errReported
	}

	result, err := s.Run(cmd.Context(), location)
	if progress != nil {
		progress.Complete()
	}

	if err != nil {
		log.WithError(err).WithField("location", location).Error("Run failed")
	} else {
		log.WithFields(map[string]interface{}{
			"discovered": result.ImagesDiscovered,
			"downloaded": result.ImagesDownloaded,
			"attempts":   result.Attempts,
		}).Info("Run completed")
	}

	ui.PrintOutcome(location, result, err)
	if cfg.Output.Notify {
		ui.NewNotifier().NotifyOutcome(location, result, err)
	}

	if err != nil {
		return errReported
	}
	return nil
}
