package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is the desktop browser identity sent by the browser and the image fetcher
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// MaxConcurrentDownloads bounds the download worker pool
const MaxConcurrentDownloads = 32

// Config holds all configuration options for a scrape run
type Config struct {
	// Browser automation settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Search and place-page navigation
	Navigation NavigationConfig `yaml:"navigation" json:"navigation"`

	// Gallery harvesting
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Whole-pipeline retry
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BrowserConfig holds settings for the automated Chrome instance
type BrowserConfig struct {
	Headless     bool          `yaml:"headless" json:"headless"`
	WindowWidth  int           `yaml:"window_width" json:"window_width"`
	WindowHeight int           `yaml:"window_height" json:"window_height"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	MapsURL      string        `yaml:"maps_url" json:"maps_url"`
	ExecPath     string        `yaml:"exec_path" json:"exec_path"`
	SettleDelay  time.Duration `yaml:"settle_delay" json:"settle_delay"`
	ActionDelay  time.Duration `yaml:"action_delay" json:"action_delay"`
}

// NavigationConfig holds wait bounds for locating the place and its photos
type NavigationConfig struct {
	WaitTimeout     time.Duration `yaml:"wait_timeout" json:"wait_timeout"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout" json:"page_load_timeout"`
}

// ExtractionConfig holds gallery loop limits
type ExtractionConfig struct {
	MaxImages            int           `yaml:"max_images" json:"max_images"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors" json:"max_consecutive_errors"`
	StagnationLimit      int           `yaml:"stagnation_limit" json:"stagnation_limit"`
	StaleRetries         int           `yaml:"stale_retries" json:"stale_retries"`
	StaleBackoff         time.Duration `yaml:"stale_backoff" json:"stale_backoff"`
	GalleryEntryAttempts int           `yaml:"gallery_entry_attempts" json:"gallery_entry_attempts"`
	MinDirectResults     int           `yaml:"min_direct_results" json:"min_direct_results"`
	StepDelay            time.Duration `yaml:"step_delay" json:"step_delay"`
	AssetHost            string        `yaml:"asset_host" json:"asset_host"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	RetryAttempts       int           `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay          time.Duration `yaml:"retry_delay" json:"retry_delay"`
	Referer             string        `yaml:"referer" json:"referer"`
	OnlyURLs            bool          `yaml:"only_urls" json:"only_urls"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	LedgerEnabled bool   `yaml:"ledger_enabled" json:"ledger_enabled"`
	SaveMetadata  bool   `yaml:"save_metadata" json:"save_metadata"`
	// Notify sends a desktop notification when a run finishes
	Notify bool `yaml:"notify" json:"notify"`
}

// RetryConfig holds the outer pipeline retry bound
type RetryConfig struct {
	PipelineAttempts int           `yaml:"pipeline_attempts" json:"pipeline_attempts"`
	PipelineDelay    time.Duration `yaml:"pipeline_delay" json:"pipeline_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:     true,
			WindowWidth:  1920,
			WindowHeight: 1080,
			UserAgent:    DefaultUserAgent,
			MapsURL:      "https://www.google.com/maps",
			SettleDelay:  3 * time.Second,
			ActionDelay:  1 * time.Second,
		},
		Navigation: NavigationConfig{
			WaitTimeout:     5 * time.Second,
			PageLoadTimeout: 30 * time.Second,
		},
		Extraction: ExtractionConfig{
			MaxImages:            0, // 0 means no limit
			MaxConsecutiveErrors: 5,
			StagnationLimit:      30,
			StaleRetries:         3,
			StaleBackoff:         1 * time.Second,
			GalleryEntryAttempts: 3,
			MinDirectResults:     5,
			StepDelay:            2 * time.Second,
			AssetHost:            "googleusercontent.com",
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 5,
			Timeout:             30 * time.Second,
			RetryAttempts:       3,
			RetryDelay:          2 * time.Second,
			Referer:             "https://www.google.com/maps",
		},
		Output: OutputConfig{
			BaseDirectory: "downloaded_images",
			LedgerEnabled: true,
			SaveMetadata:  true,
		},
		Retry: RetryConfig{
			PipelineAttempts: 3,
			PipelineDelay:    3 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// EffectiveConcurrency returns the download worker count. Zero means the run
// records URLs only and downloads nothing.
func (c *Config) EffectiveConcurrency() int {
	if c.Download.OnlyURLs {
		return 0
	}
	return c.Download.ConcurrentDownloads
}

// LoadFromEnv loads configuration from GMAPS_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("GMAPS_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GMAPS_HEADLESS: %w", err))
		} else {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("GMAPS_CHROME_PATH"); v != "" {
		c.Browser.ExecPath = v
	}
	if v := os.Getenv("GMAPS_USER_AGENT"); v != "" {
		c.Browser.UserAgent = v
	}
	if v := os.Getenv("GMAPS_OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv("GMAPS_MAX_IMAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GMAPS_MAX_IMAGES: %w", err))
		} else {
			c.Extraction.MaxImages = n
		}
	}
	if v := os.Getenv("GMAPS_CONCURRENT_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GMAPS_CONCURRENT_DOWNLOADS: %w", err))
		} else {
			c.Download.ConcurrentDownloads = n
		}
	}
	if v := os.Getenv("GMAPS_WAIT_TIMEOUT"); v != "" {
		d, err := parseSecondsOrDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GMAPS_WAIT_TIMEOUT: %w", err))
		} else {
			c.Navigation.WaitTimeout = d
		}
	}
	if v := os.Getenv("GMAPS_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GMAPS_RETRY_ATTEMPTS: %w", err))
		} else {
			c.Retry.PipelineAttempts = n
		}
	}
	if v := os.Getenv("GMAPS_ONLY_URLS"); v != "" {
		c.Download.OnlyURLs = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("GMAPS_NO_LEDGER"); v != "" {
		c.Output.LedgerEnabled = !(strings.EqualFold(v, "true") || v == "1")
	}
	if v := os.Getenv("GMAPS_NOTIFY"); v != "" {
		c.Output.Notify = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("GMAPS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GMAPS_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// parseSecondsOrDuration accepts "30" (seconds) or a Go duration such as "1m30s"
func parseSecondsOrDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".gmapsimages.yaml",
		".gmapsimages.yml",
		filepath.Join(home, ".config", "gmapsimages", "config.yaml"),
		filepath.Join(home, ".config", "gmapsimages", "config.yml"),
		filepath.Join(home, ".gmapsimages.yaml"),
		filepath.Join(home, ".gmapsimages.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		errs = append(errs, errors.New("browser window size must be positive"))
	}
	if c.Browser.MapsURL == "" {
		errs = append(errs, errors.New("maps URL is required"))
	}

	if c.Navigation.WaitTimeout <= 0 {
		errs = append(errs, errors.New("wait timeout must be positive"))
	}

	if c.Extraction.MaxImages < 0 {
		errs = append(errs, errors.New("max images cannot be negative"))
	}
	if c.Extraction.MaxConsecutiveErrors <= 0 {
		errs = append(errs, errors.New("max consecutive errors must be positive"))
	}
	if c.Extraction.StagnationLimit <= 0 {
		errs = append(errs, errors.New("stagnation limit must be positive"))
	}
	if c.Extraction.StaleRetries <= 0 {
		errs = append(errs, errors.New("stale retries must be positive"))
	}
	if c.Extraction.AssetHost == "" {
		errs = append(errs, errors.New("asset host is required"))
	}

	if c.Download.ConcurrentDownloads < 0 {
		errs = append(errs, errors.New("concurrent downloads cannot be negative"))
	}
	if c.Download.ConcurrentDownloads > MaxConcurrentDownloads {
		errs = append(errs, fmt.Errorf("concurrent downloads should not exceed %d", MaxConcurrentDownloads))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RetryAttempts <= 0 {
		errs = append(errs, errors.New("download retry attempts must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.Retry.PipelineAttempts <= 0 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}
	if c.Retry.PipelineDelay < 0 {
		errs = append(errs, errors.New("retry delay cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if execPath, ok := flags["chrome-path"].(string); ok && execPath != "" {
		c.Browser.ExecPath = execPath
	}
	if outputDir, ok := flags["download-dir"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if maxImages, ok := flags["max-images"].(int); ok && maxImages >= 0 {
		c.Extraction.MaxImages = maxImages
	}
	if workers, ok := flags["max-workers"].(int); ok {
		c.Download.ConcurrentDownloads = workers
	}
	if timeout, ok := flags["timeout"].(int); ok && timeout > 0 {
		c.Navigation.WaitTimeout = time.Duration(timeout) * time.Second
	}
	if attempts, ok := flags["retry-attempts"].(int); ok {
		c.Retry.PipelineAttempts = attempts
	}
	if noCSV, ok := flags["no-csv"].(bool); ok && noCSV {
		c.Output.LedgerEnabled = false
	}
	if onlyCSV, ok := flags["only-csv"].(bool); ok && onlyCSV {
		c.Download.OnlyURLs = true
	}
	if notify, ok := flags["notify"].(bool); ok {
		c.Output.Notify = notify
	}
	if debug, ok := flags["debug"].(bool); ok && debug {
		c.Logging.Level = "debug"
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".gmapsimages.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
