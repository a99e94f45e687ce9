package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmapsimages/pkg/models"
)

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2024, 5, 17, 14, 30, 5, 0, time.Local)

	report := &RunReport{
		RunID:          "7b0f8f4e-9a4b-4c3e-8f59-0c2e5d0f7a11",
		Location:       "Eiffel Tower",
		SanitizedLabel: "Eiffel_Tower",
		StartedAt:      started,
		FinishedAt:     started.Add(42 * time.Second),
		Attempts: []AttemptRecord{
			{ID: "a1", Number: 1, Error: "location_not_found error: no place matched"},
			{ID: "a2", Number: 2, Termination: models.TerminationNoNextControl, Discovered: 7, Downloaded: 7},
		},
	}
	report.Apply(models.RunResult{
		LocationFound:    true,
		ImagesDiscovered: 7,
		ImagesDownloaded: 6,
		Termination:      models.TerminationNoNextControl,
		LedgerPath:       filepath.Join(dir, "Eiffel_Tower_urls_20240517_143005.csv"),
		OutputDir:        dir,
	})

	path, err := report.Save(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run_20240517_143005.json"), path)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeDownload, loaded.Mode)
	assert.Equal(t, 6, loaded.ImagesDownloaded)
	assert.Equal(t, models.TerminationNoNextControl, loaded.Termination)
	require.Len(t, loaded.Attempts, 2)
	assert.Equal(t, 7, loaded.Attempts[1].Discovered)
	assert.Equal(t, 42*time.Second, loaded.Duration())
}

func TestApplyURLOnly(t *testing.T) {
	report := &RunReport{OutputDir: "downloaded_images/Louvre"}
	report.Apply(models.RunResult{LocationFound: true, ImagesDiscovered: 3, URLOnly: true})

	assert.Equal(t, ModeURLOnly, report.Mode)
	assert.Equal(t, "downloaded_images/Louvre", report.OutputDir)
	assert.Zero(t, report.Duration())
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "run_missing.json"))
	assert.Error(t, err)
}
