package models

import "time"

// ImageReference is a discovered image URL. CanonicalURL is the
// high-resolution form and DedupKey is unique within one run.
type ImageReference struct {
	RawURL       string `json:"raw_url"`
	CanonicalURL string `json:"canonical_url"`
	DedupKey     string `json:"dedup_key"`
}

// LedgerEntry is one persisted row of the provenance ledger
type LedgerEntry struct {
	Index      int       `json:"index"`
	URL        string    `json:"image_url"`
	ObservedAt time.Time `json:"timestamp"`
}

// GalleryState tracks where the extractor is within the photo gallery
type GalleryState int

const (
	GalleryNotEntered GalleryState = iota
	GalleryEntered
	GalleryExhausted
)

func (s GalleryState) String() string {
	switch s {
	case GalleryNotEntered:
		return "not_entered"
	case GalleryEntered:
		return "entered"
	case GalleryExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Termination names the reason an extraction stopped
type Termination string

const (
	TerminationNone          Termination = ""
	TerminationMaxImages     Termination = "max_images"
	TerminationNoNextControl Termination = "no_next_control"
	TerminationStagnation    Termination = "stagnation"
	TerminationErrorBudget   Termination = "error_budget"
	TerminationDirectScan    Termination = "direct_scan"
	TerminationCancelled     Termination = "cancelled"
)

// DownloadStatus is the outcome class of a single download
type DownloadStatus int

const (
	DownloadSuccess DownloadStatus = iota
	DownloadSkipped
	DownloadFailed
)

func (s DownloadStatus) String() string {
	switch s {
	case DownloadSuccess:
		return "success"
	case DownloadSkipped:
		return "skipped"
	case DownloadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DownloadOutcome is the result for one asset
type DownloadOutcome struct {
	Index    int
	URL      string
	Path     string
	Status   DownloadStatus
	Reason   string
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Succeeded reports whether the asset is present on disk after the attempt
func (o DownloadOutcome) Succeeded() bool {
	return o.Status == DownloadSuccess || o.Status == DownloadSkipped
}

// DownloadSummary aggregates the outcomes of one batch
type DownloadSummary struct {
	Total     int   `json:"total"`
	Succeeded int   `json:"succeeded"`
	Skipped   int   `json:"skipped"`
	Failed    int   `json:"failed"`
	Bytes     int64 `json:"bytes"`
}

// Add records one outcome
func (s *DownloadSummary) Add(o DownloadOutcome) {
	s.Total++
	switch o.Status {
	case DownloadSuccess:
		s.Succeeded++
		s.Bytes += o.Bytes
	case DownloadSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Successes counts files that exist on disk, including ones already present
func (s DownloadSummary) Successes() int {
	return s.Succeeded + s.Skipped
}

// RunResult is the final outcome of a pipeline run
type RunResult struct {
	LocationFound    bool        `json:"location_found"`
	ImagesDiscovered int         `json:"images_discovered"`
	ImagesDownloaded int         `json:"images_downloaded"`
	Termination      Termination `json:"termination,omitempty"`
	Attempts         int         `json:"attempts"`
	LedgerPath       string      `json:"ledger_path,omitempty"`
	OutputDir        string      `json:"output_dir,omitempty"`
	URLOnly          bool        `json:"url_only"`
}
