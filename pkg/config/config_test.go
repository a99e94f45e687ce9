package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.True(t, config.Browser.Headless)
	assert.Equal(t, 1920, config.Browser.WindowWidth)
	assert.Equal(t, 5*time.Second, config.Navigation.WaitTimeout)
	assert.Equal(t, 5, config.Extraction.MaxConsecutiveErrors)
	assert.Equal(t, 30, config.Extraction.StagnationLimit)
	assert.Equal(t, 3, config.Extraction.StaleRetries)
	assert.Equal(t, 5, config.Download.ConcurrentDownloads)
	assert.Equal(t, 30*time.Second, config.Download.Timeout)
	assert.Equal(t, 2*time.Second, config.Download.RetryDelay)
	assert.Equal(t, "downloaded_images", config.Output.BaseDirectory)
	assert.True(t, config.Output.LedgerEnabled)
	assert.Equal(t, 3, config.Retry.PipelineAttempts)
	assert.Equal(t, 3*time.Second, config.Retry.PipelineDelay)

	require.NoError(t, config.Validate())
}

func TestEffectiveConcurrency(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 5, config.EffectiveConcurrency())

	config.Download.OnlyURLs = true
	assert.Equal(t, 0, config.EffectiveConcurrency())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GMAPS_HEADLESS", "false")
	t.Setenv("GMAPS_OUTPUT_DIR", "/tmp/test-downloads")
	t.Setenv("GMAPS_MAX_IMAGES", "25")
	t.Setenv("GMAPS_CONCURRENT_DOWNLOADS", "8")
	t.Setenv("GMAPS_WAIT_TIMEOUT", "12")
	t.Setenv("GMAPS_RETRY_ATTEMPTS", "2")
	t.Setenv("GMAPS_ONLY_URLS", "true")
	t.Setenv("GMAPS_NO_LEDGER", "1")
	t.Setenv("GMAPS_LOG_LEVEL", "debug")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnv())

	assert.False(t, config.Browser.Headless)
	assert.Equal(t, "/tmp/test-downloads", config.Output.BaseDirectory)
	assert.Equal(t, 25, config.Extraction.MaxImages)
	assert.Equal(t, 8, config.Download.ConcurrentDownloads)
	assert.Equal(t, 12*time.Second, config.Navigation.WaitTimeout)
	assert.Equal(t, 2, config.Retry.PipelineAttempts)
	assert.True(t, config.Download.OnlyURLs)
	assert.False(t, config.Output.LedgerEnabled)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("GMAPS_MAX_IMAGES", "many")
	t.Setenv("GMAPS_HEADLESS", "sometimes")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GMAPS_MAX_IMAGES")
	assert.Contains(t, err.Error(), "GMAPS_HEADLESS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"url only mode allows zero workers", func(c *Config) { c.Download.ConcurrentDownloads = 0 }, ""},
		{"negative workers", func(c *Config) { c.Download.ConcurrentDownloads = -1 }, "cannot be negative"},
		{"too many workers", func(c *Config) { c.Download.ConcurrentDownloads = 64 }, "should not exceed"},
		{"zero retry attempts", func(c *Config) { c.Retry.PipelineAttempts = 0 }, "at least 1"},
		{"zero wait timeout", func(c *Config) { c.Navigation.WaitTimeout = 0 }, "wait timeout"},
		{"negative max images", func(c *Config) { c.Extraction.MaxImages = -3 }, "max images"},
		{"empty output", func(c *Config) { c.Output.BaseDirectory = "" }, "output directory"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	config := DefaultConfig()
	config.Retry.PipelineAttempts = 0
	config.Output.BaseDirectory = ""

	err := config.Validate()
	require.Error(t, err)
	assert.Len(t, strings.Split(err.Error(), "\n"), 2)
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"headless":       false,
		"download-dir":   "out",
		"max-images":     10,
		"max-workers":    2,
		"timeout":        9,
		"retry-attempts": 4,
		"no-csv":         true,
		"only-csv":       true,
		"debug":          true,
	})

	assert.False(t, config.Browser.Headless)
	assert.Equal(t, "out", config.Output.BaseDirectory)
	assert.Equal(t, 10, config.Extraction.MaxImages)
	assert.Equal(t, 2, config.Download.ConcurrentDownloads)
	assert.Equal(t, 9*time.Second, config.Navigation.WaitTimeout)
	assert.Equal(t, 4, config.Retry.PipelineAttempts)
	assert.False(t, config.Output.LedgerEnabled)
	assert.True(t, config.Download.OnlyURLs)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestMergeCommandLineFlagsAbsentKeys(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{})

	assert.Equal(t, DefaultConfig(), config)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.Download.ConcurrentDownloads = 8
	config.Extraction.StepDelay = 1500 * time.Millisecond
	require.NoError(t, config.Save(configPath))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(configPath))

	assert.Equal(t, 8, loaded.Download.ConcurrentDownloads)
	assert.Equal(t, 1500*time.Millisecond, loaded.Extraction.StepDelay)
}

func TestLoadFromFileDurations(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
navigation:
  wait_timeout: 8s
retry:
  pipeline_attempts: 5
  pipeline_delay: 500ms
output:
  base_directory: photos
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	config := DefaultConfig()
	require.NoError(t, config.LoadFromFile(configPath))

	assert.Equal(t, 8*time.Second, config.Navigation.WaitTimeout)
	assert.Equal(t, 5, config.Retry.PipelineAttempts)
	assert.Equal(t, 500*time.Millisecond, config.Retry.PipelineDelay)
	assert.Equal(t, "photos", config.Output.BaseDirectory)
	// Untouched sections keep defaults
	assert.Equal(t, 5, config.Download.ConcurrentDownloads)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("download:\n  concurrent_downloads: 3\n"), 0644))

	t.Setenv("HOME", dir)
	t.Setenv("GMAPS_CONCURRENT_DOWNLOADS", "4")

	config, err := Load(configPath, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, 4, config.Download.ConcurrentDownloads)

	config, err = Load(configPath, map[string]interface{}{"max-workers": 6})
	require.NoError(t, err)
	assert.Equal(t, 6, config.Download.ConcurrentDownloads)

	_, err = Load(configPath, map[string]interface{}{"retry-attempts": 0})
	require.Error(t, err)
}
