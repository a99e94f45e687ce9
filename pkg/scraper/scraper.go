package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"gmapsimages/internal/downloader"
	"gmapsimages/pkg/browser"
	"gmapsimages/pkg/config"
	errs "gmapsimages/pkg/errors"
	"gmapsimages/pkg/extractor"
	"gmapsimages/pkg/fetch"
	"gmapsimages/pkg/ledger"
	"gmapsimages/pkg/logger"
	"gmapsimages/pkg/metadata"
	"gmapsimages/pkg/models"
	"gmapsimages/pkg/navigator"
	"gmapsimages/pkg/normalize"
	"gmapsimages/pkg/retry"
	"gmapsimages/pkg/storage"
)

// errNoDownloads marks an attempt that found the place but produced nothing
// on disk. It is retried like any failure.
var errNoDownloads = errors.New("attempt finished without downloading any image")

// Scraper runs the navigate, extract and download pipeline for one location
// with a bounded number of whole-pipeline attempts.
type Scraper struct {
	cfg        *config.Config
	newSurface browser.SurfaceFactory
	fetcher    downloader.ByteFetcher
	observer   downloader.Observer
	logger     logger.Logger
	now        func() time.Time
	runID      string
}

// New creates a Scraper. Without options it launches Chrome for each attempt
// and fetches assets over HTTP.
func New(cfg *config.Config, opts ...Option) (*Scraper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	s := &Scraper{
		cfg:   cfg,
		now:   time.Now,
		runID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.GetLogger()
	}
	s.logger = s.logger.WithField("run_id", s.runID)

	if s.newSurface == nil {
		s.newSurface = browser.ChromeFactory(browser.ChromeOptions{
			Headless:        cfg.Browser.Headless,
			WindowWidth:     cfg.Browser.WindowWidth,
			WindowHeight:    cfg.Browser.WindowHeight,
			UserAgent:       cfg.Browser.UserAgent,
			ExecPath:        cfg.Browser.ExecPath,
			PageLoadTimeout: cfg.Navigation.PageLoadTimeout,
			Logger:          s.logger,
		})
	}
	if s.fetcher == nil {
		s.fetcher = fetch.NewClient(fetch.Options{
			Timeout:       cfg.Download.Timeout,
			UserAgent:     cfg.Browser.UserAgent,
			Referer:       cfg.Download.Referer,
			RetryAttempts: cfg.Download.RetryAttempts,
			RetryDelay:    cfg.Download.RetryDelay,
		}, s.logger)
	}

	return s, nil
}

// RunID identifies this scraper's runs in logs and reports
func (s *Scraper) RunID() string {
	return s.runID
}

// Run executes the pipeline for location. An attempt qualifies when it
// downloaded at least one image, or always in URL-only mode. When no
// attempt qualifies but one completed, the last completed result is
// returned without error. Otherwise the error wraps the last attempt's
// failure.
func (s *Scraper) Run(ctx context.Context, location string) (models.RunResult, error) {
	label := normalize.SanitizeFilename(location)
	if label == "" {
		return models.RunResult{}, errs.Newf(errs.ErrorTypeIO, "location %q has no usable file name", location)
	}

	report := &metadata.RunReport{
		RunID:          s.runID,
		Location:       location,
		SanitizedLabel: label,
		StartedAt:      s.now(),
		OutputDir:      filepath.Join(s.cfg.Output.BaseDirectory, label),
	}

	stop := context.AfterFunc(ctx, func() {
		s.logger.Warn("Interrupt received, letting in-flight downloads finish")
	})
	result, runErr := s.runAttempts(ctx, location, report)
	stop()

	report.FinishedAt = s.now()
	report.Apply(result)
	if runErr != nil {
		report.Error = runErr.Error()
	}
	if s.cfg.Output.SaveMetadata {
		if path, err := report.Save(report.OutputDir); err != nil {
			s.logger.WithError(err).Warn("Failed to write run report")
		} else {
			s.logger.WithField("path", path).Debug("Run report written")
		}
	}

	return result, runErr
}

func (s *Scraper) runAttempts(ctx context.Context, location string, report *metadata.RunReport) (models.RunResult, error) {
	attempts := max(s.cfg.Retry.PipelineAttempts, 1)
	policy := retry.Constant("pipeline", attempts, s.cfg.Retry.PipelineDelay).
		WithRetryIf(retry.RetryAny).
		WithLogger(s.logger)

	var (
		qualified   models.RunResult
		lastSuccess *models.RunResult
		last        models.RunResult
	)

	err := retry.Do(ctx, policy, func(ctx context.Context, n int) error {
		logger.LogAttempt(s.logger, n, attempts)

		record := metadata.AttemptRecord{ID: uuid.NewString(), Number: n, StartedAt: s.now()}
		result, state, err := s.attempt(ctx, location, record.ID)
		result.Attempts = n
		last = result

		record.Duration = s.now().Sub(record.StartedAt)
		record.Navigator = state.String()
		record.Termination = result.Termination
		record.Discovered = result.ImagesDiscovered
		record.Downloaded = result.ImagesDownloaded
		if err != nil {
			record.Error = err.Error()
		}
		report.Attempts = append(report.Attempts, record)

		if err != nil {
			return err
		}
		if result.ImagesDownloaded > 0 || result.URLOnly {
			qualified = result
			return nil
		}

		lastSuccess = &result
		return errNoDownloads
	})

	switch {
	case err == nil:
		return qualified, nil
	case lastSuccess != nil && ctx.Err() == nil:
		s.logger.WithField("attempts", attempts).Info("Location found but no images were downloaded")
		lastSuccess.Attempts = last.Attempts
		return *lastSuccess, nil
	default:
		return last, err
	}
}

// attempt runs one full pipeline against a fresh surface and ledger
func (s *Scraper) attempt(ctx context.Context, location, attemptID string) (models.RunResult, navigator.State, error) {
	log := s.logger.WithFields(map[string]interface{}{
		"attempt_id": attemptID,
		"location":   location,
	})
	result := models.RunResult{}

	store, err := storage.NewManager(s.cfg.Output.BaseDirectory, location)
	if err != nil {
		return result, navigator.Searching, err
	}
	result.OutputDir = store.Dir()

	surface, err := s.newSurface(ctx)
	if err != nil {
		return result, navigator.Searching, fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := surface.Close(); err != nil {
			log.WithError(err).Debug("Failed to close browser")
		}
	}()

	var recorder extractor.Recorder
	if s.cfg.Output.LedgerEnabled {
		led, err := ledger.Open(store.Dir(), store.Label(), ledger.WithClock(s.now))
		if err != nil {
			return result, navigator.Searching, err
		}
		defer led.Close()
		recorder = led
		result.LedgerPath = led.Path()
	}

	nav := navigator.New(surface, navigator.Options{
		MapsURL:     s.cfg.Browser.MapsURL,
		WaitTimeout: s.cfg.Navigation.WaitTimeout,
		SettleDelay: s.cfg.Browser.SettleDelay,
		ActionDelay: s.cfg.Browser.ActionDelay,
		Strategies:  navigator.DefaultStrategies(),
	}, log)

	state, err := nav.Run(ctx, location)
	if err != nil && state != navigator.PhotosFailed {
		return result, state, err
	}
	result.LocationFound = true

	ext := extractor.New(surface, s.extractorOptions(location), recorder, log)
	extracted, err := ext.Run(ctx, state)
	result.ImagesDiscovered = len(extracted.References)
	result.Termination = extracted.Termination
	if err != nil {
		return result, state, err
	}
	logger.LogExtractionProgress(log, location, result.ImagesDiscovered, extracted.Steps)

	concurrency := s.cfg.EffectiveConcurrency()
	if concurrency == 0 {
		result.URLOnly = true
		return result, state, nil
	}
	if result.ImagesDiscovered == 0 {
		return result, state, nil
	}

	manager := downloader.NewManager(s.fetcher, store, s.observer, log)
	summary, err := manager.DownloadAll(ctx, extracted.URLs(), concurrency)
	result.ImagesDownloaded = summary.Successes()
	return result, state, err
}

func (s *Scraper) extractorOptions(location string) extractor.Options {
	ex := s.cfg.Extraction
	return extractor.Options{
		Location:             location,
		MaxImages:            ex.MaxImages,
		MaxConsecutiveErrors: ex.MaxConsecutiveErrors,
		StagnationLimit:      ex.StagnationLimit,
		StaleRetries:         ex.StaleRetries,
		StaleBackoff:         ex.StaleBackoff,
		GalleryEntryAttempts: ex.GalleryEntryAttempts,
		MinDirectResults:     ex.MinDirectResults,
		StepDelay:            ex.StepDelay,
		SettleDelay:          s.cfg.Browser.SettleDelay,
		WaitTimeout:          s.cfg.Navigation.WaitTimeout,
		AssetHost:            ex.AssetHost,
		Strategies:           extractor.DefaultStrategies(),
	}
}

// IsLocationNotFound reports whether the run never matched a place
func IsLocationNotFound(err error) bool {
	return errs.Is(err, errs.ErrorTypeLocationNotFound)
}

// IsRetriesExhausted reports whether every pipeline attempt failed
func IsRetriesExhausted(err error) bool {
	return retry.IsExhausted(err)
}
