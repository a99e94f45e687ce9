package scraper

import (
	"time"

	"gmapsimages/internal/downloader"
	"gmapsimages/pkg/browser"
	"gmapsimages/pkg/logger"
)

// Option customizes a Scraper
type Option func(*Scraper)

// WithSurfaceFactory replaces the Chrome launcher
func WithSurfaceFactory(factory browser.SurfaceFactory) Option {
	return func(s *Scraper) {
		s.newSurface = factory
	}
}

// WithFetcher replaces the HTTP byte fetcher
func WithFetcher(fetcher downloader.ByteFetcher) Option {
	return func(s *Scraper) {
		s.fetcher = fetcher
	}
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Scraper) {
		s.logger = l
	}
}

// WithClock sets the time source used for ledger names and the run report
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) {
		s.now = now
	}
}

// WithObserver receives download progress
func WithObserver(observer downloader.Observer) Option {
	return func(s *Scraper) {
		s.observer = observer
	}
}
