package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gmapsimages/pkg/config"
	"gmapsimages/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage gmapsimages configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (GMAPS_*)
  - .env files
  - Configuration file
  - Default values`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to .gmapsimages.yaml in the current directory unless a
different path is given with --config.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from every source and check value ranges,
the output directory and the log file location.`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# gmapsimages configuration
#
# Every option can also be set through GMAPS_* environment variables,
# for example GMAPS_OUTPUT_DIR or GMAPS_CONCURRENT_DOWNLOADS.

browser:
  # Run Chrome without a window
  headless: true
  window_width: 1920
  window_height: 1080
  # Chrome executable; empty means auto-detect
  exec_path: ""
  maps_url: "https://www.google.com/maps"
  # Pause after page loads and clicks
  settle_delay: 3s
  action_delay: 1s

navigation:
  # How long to wait for each page element
  wait_timeout: 5s
  page_load_timeout: 30s

extraction:
  # Stop after this many images; 0 means no limit
  max_images: 0
  # Give up after this many failed gallery steps in a row
  max_consecutive_errors: 5
  # Give up after this many steps without a new image
  stagnation_limit: 30
  stale_retries: 3
  stale_backoff: 1s
  gallery_entry_attempts: 3
  # The direct page scan adds CSS and HTML sources below this count
  min_direct_results: 5
  step_delay: 2s
  asset_host: "googleusercontent.com"

download:
  # Worker count; 0 records URLs only
  concurrent_downloads: 5
  timeout: 30s
  retry_attempts: 3
  retry_delay: 2s
  referer: "https://www.google.com/maps"
  only_urls: false

output:
  base_directory: "downloaded_images"
  # Write <location>_urls_<timestamp>.csv next to the images
  ledger_enabled: true
  # Write run_<timestamp>.json with per-attempt details
  save_metadata: true
  notify: false

retry:
  # Whole-pipeline attempts and the pause between them
  pipeline_attempts: 3
  pipeline_delay: 3s

logging:
  # debug, info, warn, error
  level: "info"
  # Also write JSON logs to this file
  file: ""
  no_color: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".gmapsimages.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		return errReported
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ui.PrintError("Failed to create configuration directory", err.Error())
			return errReported
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		return errReported
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Edit the file to adjust limits and output paths")
	fmt.Fprintln(ui.Output, "2. Run 'gmapsimages config validate' to check it")
	fmt.Fprintln(ui.Output, "3. Start with 'gmapsimages \"<location>\"'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return errReported
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		return errReported
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	source := configFile
	if source == "" {
		source = "(defaults and environment)"
	}
	ui.PrintInfo("Validating configuration", source)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return errReported
	}

	var problems []string
	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(ui.Output, "  - %s\n", p)
		}
		return errReported
	}

	if cfg.EffectiveConcurrency() == 0 {
		ui.PrintWarning("Downloads are disabled; only the URL ledger will be written")
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Fprintf(ui.Output, "  Concurrent downloads: %d\n", cfg.EffectiveConcurrency())
	fmt.Fprintf(ui.Output, "  Pipeline attempts: %d\n", cfg.Retry.PipelineAttempts)
	fmt.Fprintf(ui.Output, "  Element wait: %s\n", cfg.Navigation.WaitTimeout)
	fmt.Fprintf(ui.Output, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
