// Package extractor harvests image references from the photo view of a
// place, either by stepping through the gallery or by scanning the page
// once when the gallery cannot be entered.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gmapsimages/pkg/browser"
	errs "gmapsimages/pkg/errors"
	"gmapsimages/pkg/logger"
	"gmapsimages/pkg/models"
	"gmapsimages/pkg/navigator"
	"gmapsimages/pkg/normalize"
	"gmapsimages/pkg/retry"
)

var errNoAsset = errors.New("element has no asset source")

// Options configures extraction limits and timing
type Options struct {
	// Location labels log output
	Location string
	// MaxImages stops extraction once reached; 0 means unlimited
	MaxImages            int
	MaxConsecutiveErrors int
	StagnationLimit      int
	StaleRetries         int
	StaleBackoff         time.Duration
	GalleryEntryAttempts int
	MinDirectResults     int
	// StepDelay is waited after each gallery advance
	StepDelay   time.Duration
	SettleDelay time.Duration
	WaitTimeout time.Duration
	AssetHost   string
	Strategies  Strategies
}

// DefaultOptions returns the standard limits
func DefaultOptions() Options {
	return Options{
		MaxConsecutiveErrors: 5,
		StagnationLimit:      30,
		StaleRetries:         3,
		StaleBackoff:         time.Second,
		GalleryEntryAttempts: 3,
		MinDirectResults:     5,
		StepDelay:            2 * time.Second,
		SettleDelay:          3 * time.Second,
		WaitTimeout:          5 * time.Second,
		AssetHost:            "googleusercontent.com",
		Strategies:           DefaultStrategies(),
	}
}

// Result is the outcome of one extraction
type Result struct {
	References  []models.ImageReference
	Termination models.Termination
	State       models.GalleryState
	// Degraded is set when the error budget ended the loop
	Degraded bool
	Steps    int
}

// URLs returns the canonical URLs in discovery order
func (r Result) URLs() []string {
	out := make([]string, len(r.References))
	for i, ref := range r.References {
		out[i] = ref.CanonicalURL
	}
	return out
}

// Extractor reads image references from a single surface
type Extractor struct {
	surface  browser.Surface
	opts     Options
	recorder Recorder
	log      logger.Logger
	stale    retry.Policy
}

// New creates an extractor. recorder may be nil when no ledger is kept.
func New(surface browser.Surface, opts Options, recorder Recorder, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("component", "extractor")

	stale := retry.Policy{
		Name:        "stale read",
		MaxAttempts: max(opts.StaleRetries, 1),
		Backoff:     &retry.ExponentialBackoff{BaseDelay: opts.StaleBackoff, MaxDelay: 4 * opts.StaleBackoff, Multiplier: 2},
		RetryIf: func(err error) bool {
			return errors.Is(err, browser.ErrStale)
		},
	}

	return &Extractor{
		surface:  surface,
		opts:     opts,
		recorder: recorder,
		log:      log,
		stale:    stale.WithLogger(log),
	}
}

// Run harvests references given the navigator's final state. Anything
// other than PhotosOpen goes straight to the direct scan, as does a gallery
// that cannot be entered.
func (e *Extractor) Run(ctx context.Context, state navigator.State) (Result, error) {
	if state != navigator.PhotosOpen {
		e.log.WithField("state", state.String()).Info("Photos not open, scanning page directly")
		return e.DirectScan(ctx)
	}

	if err := e.EnterGallery(ctx); err != nil {
		if ctx.Err() != nil {
			return Result{Termination: models.TerminationCancelled}, ctx.Err()
		}
		e.log.WithError(err).Warn("Could not enter gallery view, scanning page directly")
		return e.DirectScan(ctx)
	}

	e.log.Info("Entered gallery view")
	return e.harvestGallery(ctx, NewHarvest())
}

// EnterGallery opens the single image view by clicking a thumbnail. Between
// failed attempts it clicks the Photos link and reloads the page.
func (e *Extractor) EnterGallery(ctx context.Context) error {
	policy := retry.Constant("gallery entry", max(e.opts.GalleryEntryAttempts, 1), e.opts.SettleDelay).
		WithRetryIf(retry.RetryAny).
		WithLogger(e.log)
	policy.OnRetry = func(attempt int, err error, _ time.Duration) {
		e.recoverGallery(ctx)
	}

	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		if e.inGallery(ctx) {
			return nil
		}
		e.log.WithField("attempt", attempt).Debug("Attempting to enter gallery view")

		match, err := browser.FirstVisible(ctx, e.surface, e.opts.Strategies.GalleryEntry, e.opts.WaitTimeout)
		if err != nil {
			return err
		}
		if _, err := browser.ClickWithFallback(ctx, e.surface, match.Element); err != nil {
			return err
		}
		if err := retry.Wait(ctx, e.opts.SettleDelay); err != nil {
			return err
		}
		if !e.inGallery(ctx) {
			return fmt.Errorf("clicked %s but gallery did not open", match.Locator)
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.ErrorTypeGalleryUnavailable, err, "enter gallery")
	}
	return nil
}

// recoverGallery is best effort: a failed click or reload is only logged
func (e *Extractor) recoverGallery(ctx context.Context) {
	if match, err := browser.FirstVisible(ctx, e.surface, e.opts.Strategies.PhotosLink, e.opts.WaitTimeout); err == nil {
		if err := e.surface.ScriptClick(ctx, match.Element); err != nil {
			e.log.WithError(err).Debug("Photos link click failed")
		}
	}
	if err := e.surface.Reload(ctx); err != nil {
		e.log.WithError(err).Debug("Reload failed")
	}
}

func (e *Extractor) inGallery(ctx context.Context) bool {
	return browser.AnyPresent(ctx, e.surface, e.opts.Strategies.GalleryIndicators)
}

func (e *Extractor) harvestGallery(ctx context.Context, h *Harvest) (Result, error) {
	result := Result{State: models.GalleryEntered}
	consecutiveErrors := 0
	stagnant := 0
	lastCount := h.Len()

	finish := func(t models.Termination) (Result, error) {
		result.References = h.References()
		result.Termination = t
		if t != models.TerminationCancelled {
			result.State = models.GalleryExhausted
		}
		e.log.WithFields(map[string]interface{}{
			"termination": string(t),
			"discovered":  h.Len(),
			"steps":       result.Steps,
			"degraded":    result.Degraded,
		}).Info("Gallery extraction finished")
		return result, nil
	}

	for {
		if ctx.Err() != nil {
			r, _ := finish(models.TerminationCancelled)
			return r, ctx.Err()
		}
		result.Steps++

		found, err := e.readCurrent(ctx, h)
		if err != nil && ctx.Err() == nil {
			e.log.WithError(err).Debug("Gallery step failed")
		}
		if found {
			consecutiveErrors = 0
		} else {
			consecutiveErrors++
			e.log.WithFields(map[string]interface{}{
				"consecutive_errors": consecutiveErrors,
				"budget":             e.opts.MaxConsecutiveErrors,
			}).Warn("No image found on this step")
			if consecutiveErrors >= e.opts.MaxConsecutiveErrors {
				result.Degraded = true
				return finish(models.TerminationErrorBudget)
			}
		}

		if e.reachedMax(h) {
			return finish(models.TerminationMaxImages)
		}

		if !e.advance(ctx) {
			if ctx.Err() != nil {
				continue
			}
			return finish(models.TerminationNoNextControl)
		}

		if h.Len() == lastCount {
			stagnant++
		} else {
			stagnant = 0
		}
		lastCount = h.Len()
		if stagnant >= e.opts.StagnationLimit {
			return finish(models.TerminationStagnation)
		}

		if result.Steps%10 == 0 {
			logger.LogExtractionProgress(e.log, e.opts.Location, h.Len(), result.Steps)
		}

		// cancellation is picked up at the top of the loop
		_ = retry.Wait(ctx, e.opts.StepDelay)
	}
}

// readCurrent records the image shown in the gallery. When no targeted
// locator yields an asset it falls back to a bulk script query.
func (e *Extractor) readCurrent(ctx context.Context, h *Harvest) (bool, error) {
	src, loc, err := browser.TryInOrder(ctx, e.opts.Strategies.CurrentImage, func(ctx context.Context, loc browser.Locator) (string, error) {
		match, err := browser.FirstVisible(ctx, e.surface, []browser.Locator{loc}, e.opts.WaitTimeout)
		if err != nil {
			return "", err
		}
		return e.readSource(ctx, loc, match.Element)
	})
	if err == nil {
		e.log.WithField("locator", loc.String()).Debug("Read current image")
		e.record(h, src)
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	var urls []string
	if evalErr := e.surface.Evaluate(ctx, imageSourcesScript(e.opts.AssetHost), &urls); evalErr != nil {
		return false, errors.Join(err, evalErr)
	}
	found := false
	for _, u := range urls {
		if normalize.IsAssetURL(u, e.opts.AssetHost) {
			e.record(h, u)
			found = true
		}
	}
	return found, nil
}

// readSource reads the src attribute of el, re-locating it through loc when
// the handle has gone stale.
func (e *Extractor) readSource(ctx context.Context, loc browser.Locator, el browser.Element) (string, error) {
	return retry.DoWithResult(ctx, e.stale, func(ctx context.Context, attempt int) (string, error) {
		if attempt > 1 {
			match, err := browser.FirstPresent(ctx, e.surface, []browser.Locator{loc})
			if err != nil {
				return "", err
			}
			el = match.Element
		}

		src, ok, err := e.surface.Attribute(ctx, el, "src")
		if err != nil {
			return "", err
		}
		if !ok || !normalize.IsAssetURL(src, e.opts.AssetHost) {
			return "", errNoAsset
		}
		return src, nil
	})
}

// advance clicks the first engageable next control
func (e *Extractor) advance(ctx context.Context) bool {
	_, loc, err := browser.TryInOrder(ctx, e.opts.Strategies.Next, func(ctx context.Context, loc browser.Locator) (bool, error) {
		match, err := browser.FirstVisible(ctx, e.surface, []browser.Locator{loc}, e.opts.WaitTimeout)
		if err != nil {
			return false, err
		}
		if _, err := browser.ClickWithFallback(ctx, e.surface, match.Element); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		e.log.WithError(err).Debug("No next control could be engaged")
		return false
	}
	e.log.WithField("locator", loc.String()).Debug("Advanced gallery")
	return true
}

func (e *Extractor) reachedMax(h *Harvest) bool {
	return e.opts.MaxImages > 0 && h.Len() >= e.opts.MaxImages
}

// record normalizes raw and appends it to the ledger when it is new. A
// failed append is logged and extraction continues.
func (e *Extractor) record(h *Harvest, raw string) {
	if e.reachedMax(h) {
		return
	}
	ref := normalize.Reference(raw)
	idx, isNew := h.Add(ref)
	if !isNew {
		return
	}
	e.log.WithFields(map[string]interface{}{
		"index": idx,
		"url":   ref.CanonicalURL,
	}).Debug("Discovered image")

	if e.recorder == nil {
		return
	}
	if err := e.recorder.Append(ref.CanonicalURL, idx); err != nil {
		e.log.WithError(err).WithField("index", idx).Warn("Ledger append failed")
	}
}
