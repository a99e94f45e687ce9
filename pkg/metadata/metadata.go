// Package metadata writes a JSON report for each pipeline run next to the
// ledger and assets it produced.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gmapsimages/pkg/models"
)

const (
	ModeDownload = "download"
	ModeURLOnly  = "url_only"
)

// AttemptRecord describes one pipeline attempt
type AttemptRecord struct {
	ID          string             `json:"id"`
	Number      int                `json:"number"`
	StartedAt   time.Time          `json:"started_at"`
	Duration    time.Duration      `json:"duration_ns"`
	Navigator   string             `json:"navigator_state,omitempty"`
	Termination models.Termination `json:"termination,omitempty"`
	Discovered  int                `json:"discovered"`
	Downloaded  int                `json:"downloaded"`
	Error       string             `json:"error,omitempty"`
}

// RunReport summarizes one invocation for one location
type RunReport struct {
	RunID            string                  `json:"run_id"`
	Location         string                  `json:"location"`
	SanitizedLabel   string                  `json:"sanitized_label"`
	StartedAt        time.Time               `json:"started_at"`
	FinishedAt       time.Time               `json:"finished_at"`
	Mode             string                  `json:"mode"`
	LocationFound    bool                    `json:"location_found"`
	ImagesDiscovered int                     `json:"images_discovered"`
	ImagesDownloaded int                     `json:"images_downloaded"`
	Termination      models.Termination      `json:"termination,omitempty"`
	LedgerPath       string                  `json:"ledger_path,omitempty"`
	OutputDir        string                  `json:"output_dir"`
	Downloads        *models.DownloadSummary `json:"downloads,omitempty"`
	Attempts         []AttemptRecord         `json:"attempts"`
	Error            string                  `json:"error,omitempty"`
}

// Apply copies the final result into the report
func (r *RunReport) Apply(result models.RunResult) {
	r.LocationFound = result.LocationFound
	r.ImagesDiscovered = result.ImagesDiscovered
	r.ImagesDownloaded = result.ImagesDownloaded
	r.Termination = result.Termination
	r.LedgerPath = result.LedgerPath
	if result.OutputDir != "" {
		r.OutputDir = result.OutputDir
	}
	r.Mode = ModeDownload
	if result.URLOnly {
		r.Mode = ModeURLOnly
	}
}

// FileName returns the report name for a run started at t
func FileName(t time.Time) string {
	return fmt.Sprintf("run_%s.json", t.Format("20060102_150405"))
}

// Save writes the report into dir through a temporary file and returns the
// final path
func (r *RunReport) Save(dir string) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, FileName(r.StartedAt))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to rename report file: %w", err)
	}

	return path, nil
}

// Load reads a report from a JSON file
func Load(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}

// Duration returns the wall time of the run
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
