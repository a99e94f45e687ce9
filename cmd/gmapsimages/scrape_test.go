package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmapsimages/pkg/config"
)

func TestCommandLineFlagsKeepsOnlyChangedValues(t *testing.T) {
	cmd := &cobra.Command{Use: "scrape"}
	addScrapeFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--no-headless", "-o", "photos", "--max-workers", "0", "--timeout", "12"}))

	flags := commandLineFlags(cmd)

	assert.Equal(t, false, flags["headless"])
	assert.Equal(t, "photos", flags["download-dir"])
	assert.Equal(t, 0, flags["max-workers"])
	assert.NotContains(t, flags, "retry-attempts")
	assert.NotContains(t, flags, "max-images")

	cfg := config.DefaultConfig()
	cfg.MergeCommandLineFlags(flags)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "photos", cfg.Output.BaseDirectory)
	assert.Equal(t, 0, cfg.EffectiveConcurrency())
	assert.Equal(t, 12*time.Second, cfg.Navigation.WaitTimeout)
	assert.Equal(t, 3, cfg.Retry.PipelineAttempts)
}

func TestExampleConfigIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.yaml")
	cfg := config.DefaultConfig()
	require.NoError(t, os.WriteFile(path, []byte(exampleConfig), 0644))
	require.NoError(t, cfg.LoadFromFile(path))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, config.DefaultConfig(), cfg)
}
