package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"gmapsimages/pkg/logger"
	"gmapsimages/pkg/models"
)

// DownloadJob is a single asset to fetch
type DownloadJob struct {
	Index int
	URL   string
	Path  string
}

// ByteFetcher fetches asset bytes, retrying transport failures itself
type ByteFetcher interface {
	FetchWithRetry(ctx context.Context, url string) ([]byte, error)
}

// AssetStorage decides where assets live and persists them
type AssetStorage interface {
	PathFor(index int, url string) string
	IsStored(path string) bool
	Save(path string, r io.Reader) (int64, error)
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan DownloadJob
	resultQueue chan models.DownloadOutcome
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     ByteFetcher
	storage     AssetStorage
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool. Jobs run under the
// pool's own context, so cancelling a caller never aborts a fetch that has
// already started.
func NewWorkerPool(numWorkers int, fetcher ByteFetcher, storage AssetStorage, log logger.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan DownloadJob, numWorkers*2),
		resultQueue: make(chan models.DownloadOutcome, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		storage:     storage,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	logger.LogComponentStart(wp.logger, "worker_pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue and waits for queued and in-flight jobs to
// finish. Results must be drained concurrently.
func (wp *WorkerPool) Stop() {
	wp.logger.Debug("Stopping worker pool")

	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	logger.LogComponentStop(wp.logger, "worker_pool", "queue drained")
}

// Submit queues a job. It gives up when ctx is done, leaving the job
// unsubmitted.
func (wp *WorkerPool) Submit(ctx context.Context, job DownloadJob) error {
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"index": job.Index,
		})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the outcome channel; it is closed by Stop
func (wp *WorkerPool) Results() <-chan models.DownloadOutcome {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		wp.resultQueue <- wp.processJob(job, id)
	}

	wp.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

// processJob skips assets already on disk, otherwise fetches and saves
func (wp *WorkerPool) processJob(job DownloadJob, workerID int) models.DownloadOutcome {
	start := time.Now()
	outcome := models.DownloadOutcome{
		Index: job.Index,
		URL:   job.URL,
		Path:  job.Path,
	}

	if wp.storage.IsStored(job.Path) {
		outcome.Status = models.DownloadSkipped
		outcome.Reason = "already exists"
		outcome.Duration = time.Since(start)
		return outcome
	}

	data, err := wp.fetcher.FetchWithRetry(wp.ctx, job.URL)
	if err != nil {
		outcome.Status = models.DownloadFailed
		outcome.Err = fmt.Errorf("download failed: %w", err)
		outcome.Reason = outcome.Err.Error()
		outcome.Duration = time.Since(start)
		return outcome
	}

	n, err := wp.storage.Save(job.Path, bytes.NewReader(data))
	if err != nil {
		outcome.Status = models.DownloadFailed
		outcome.Err = fmt.Errorf("save failed: %w", err)
		outcome.Reason = outcome.Err.Error()
		outcome.Duration = time.Since(start)
		return outcome
	}

	outcome.Status = models.DownloadSuccess
	outcome.Bytes = n
	outcome.Duration = time.Since(start)

	wp.logger.DebugWithFields("Worker completed job", map[string]interface{}{
		"worker_id": workerID,
		"index":     job.Index,
		"size":      n,
		"duration":  outcome.Duration,
	})

	return outcome
}

// GetQueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}
