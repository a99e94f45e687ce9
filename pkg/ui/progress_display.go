package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gmapsimages/pkg/models"
)

// ProgressDisplay renders a single progress line for a download batch. It
// satisfies the download manager's observer hook.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	label      string
	total      int
	done       int
	skipped    int
	failed     int
	bytes      int64
	lastAsset  string
	startTime  time.Time
	now        func() time.Time
	verbose    bool
	lineLength int
}

// NewProgressDisplay creates a display for the given location label. In
// verbose mode every outcome gets its own line instead of the redrawn bar.
func NewProgressDisplay(label string, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:     Output,
		label:   label,
		now:     time.Now,
		verbose: verbose,
	}
}

// OnStart resets the display for a batch of total assets
func (p *ProgressDisplay) OnStart(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.done, p.skipped, p.failed, p.bytes = 0, 0, 0, 0
	p.startTime = p.now()
	p.printProgress()
}

// OnOutcome records one finished asset
func (p *ProgressDisplay) OnOutcome(outcome models.DownloadOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.lastAsset = fmt.Sprintf("#%d", outcome.Index)
	switch outcome.Status {
	case models.DownloadSkipped:
		p.skipped++
	case models.DownloadFailed:
		p.failed++
	default:
		p.bytes += outcome.Bytes
	}

	if p.verbose {
		p.printOutcome(outcome)
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) printOutcome(outcome models.DownloadOutcome) {
	switch outcome.Status {
	case models.DownloadFailed:
		fmt.Fprintf(p.out, "%s #%d %s\n", Red("✗"), outcome.Index, Dim(outcome.Reason))
	case models.DownloadSkipped:
		fmt.Fprintf(p.out, "%s #%d %s\n", Dim("="), outcome.Index, Dim("already stored"))
	default:
		fmt.Fprintf(p.out, "%s #%d • %s\n", Green("✓"), outcome.Index, formatBytes(outcome.Bytes))
	}
}

// printProgress redraws the progress line
func (p *ProgressDisplay) printProgress() {
	elapsed := p.now().Sub(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.done) / elapsed.Minutes()
	}

	barWidth := 20
	filled := 0
	if p.total > 0 {
		filled = p.done * barWidth / p.total
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %.1f/min • %s",
		Cyan(p.label),
		bar,
		p.done,
		p.total,
		rate,
		formatBytes(p.bytes),
	)
	if p.lastAsset != "" {
		line += " • " + p.lastAsset
	}
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.failed))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", p.lineLength), line)
	p.lineLength = len(line)
}

// Complete prints the batch summary. It prints nothing if no batch started.
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startTime.IsZero() {
		return
	}

	elapsed := p.now().Sub(p.startTime)
	fmt.Fprintf(p.out, "\n%s %d/%d assets for %s\n", Green("✓"), p.done-p.failed, p.total, p.label)
	fmt.Fprintf(p.out, "  %s %s in %s\n", Dim("•"), formatBytes(p.bytes), formatDuration(elapsed))
	if p.skipped > 0 {
		fmt.Fprintf(p.out, "  %s %d already stored\n", Dim("•"), p.skipped)
	}
	if p.failed > 0 {
		fmt.Fprintf(p.out, "  %s %d downloads failed\n", Dim("•"), p.failed)
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
