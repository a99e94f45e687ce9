// Package downloader fetches discovered assets with a fixed-size worker pool.
package downloader

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"gmapsimages/pkg/logger"
	"gmapsimages/pkg/models"
)

// Observer is notified as a batch progresses. Calls come from a single
// goroutine.
type Observer interface {
	OnStart(total int)
	OnOutcome(outcome models.DownloadOutcome)
}

// Manager runs download batches
type Manager struct {
	fetcher  ByteFetcher
	storage  AssetStorage
	observer Observer
	logger   logger.Logger
}

// NewManager creates a download manager. observer may be nil.
func NewManager(fetcher ByteFetcher, storage AssetStorage, observer Observer, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		fetcher:  fetcher,
		storage:  storage,
		observer: observer,
		logger:   log.WithField("component", "downloader"),
	}
}

// DownloadAll downloads urls with up to concurrency fetches in flight. The
// asset index is the 1-based position in urls. It returns once every
// submitted job has finished; a failed item never stops the batch.
//
// Cancelling ctx stops submission of the remaining URLs. Jobs already
// submitted still run to completion and the summary covers them, returned
// together with ctx.Err().
func (m *Manager) DownloadAll(ctx context.Context, urls []string, concurrency int) (models.DownloadSummary, error) {
	var summary models.DownloadSummary
	if concurrency <= 0 {
		return summary, fmt.Errorf("download concurrency must be positive, got %d", concurrency)
	}

	batch := make([]string, len(urls))
	copy(batch, urls)
	if len(batch) == 0 {
		return summary, nil
	}

	if m.observer != nil {
		m.observer.OnStart(len(batch))
	}

	pool := NewWorkerPool(min(concurrency, len(batch)), m.fetcher, m.storage, m.logger)
	pool.Start()

	// The collector drains results while the submitter feeds the pool; the
	// group joins both. Only the submitter can fail, and only on interrupt.
	var g errgroup.Group
	g.Go(func() error {
		for outcome := range pool.Results() {
			summary.Add(outcome)
			logger.LogDownload(m.logger, outcome.Index, outcome.URL, outcome.Status.String(), outcome.Err)
			if m.observer != nil {
				m.observer.OnOutcome(outcome)
			}
		}
		return nil
	})
	g.Go(func() error {
		defer pool.Stop()
		for i, url := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			job := DownloadJob{Index: i + 1, URL: url, Path: m.storage.PathFor(i+1, url)}
			if err := pool.Submit(ctx, job); err != nil {
				return err
			}
		}
		return nil
	})
	interrupted := g.Wait()

	m.logger.WithFields(map[string]interface{}{
		"total":     len(batch),
		"attempted": summary.Total,
		"succeeded": summary.Succeeded,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	}).Info("Download batch finished")

	if interrupted != nil {
		m.logger.WithField("unsubmitted", len(batch)-summary.Total).Warn("Download batch interrupted")
		return summary, fmt.Errorf("download interrupted: %w", interrupted)
	}
	return summary, nil
}
