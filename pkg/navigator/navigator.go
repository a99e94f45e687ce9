// Package navigator drives the browser from the maps home page to the photo
// view of a named place.
package navigator

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gmapsimages/pkg/browser"
	errs "gmapsimages/pkg/errors"
	"gmapsimages/pkg/logger"
	"gmapsimages/pkg/retry"
)

// State is a navigator lifecycle state
type State int

const (
	Searching State = iota
	Located
	PhotosOpening
	PhotosOpen
	SearchFailed
	PhotosFailed
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Located:
		return "located"
	case PhotosOpening:
		return "photos_opening"
	case PhotosOpen:
		return "photos_open"
	case SearchFailed:
		return "search_failed"
	case PhotosFailed:
		return "photos_failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == PhotosOpen || s == SearchFailed || s == PhotosFailed
}

// Options controls navigation timing and locators
type Options struct {
	MapsURL     string
	WaitTimeout time.Duration
	SettleDelay time.Duration
	ActionDelay time.Duration
	Strategies  Strategies
}

// Navigator moves a single surface through the search and photo states. It
// performs no retries of its own.
type Navigator struct {
	surface browser.Surface
	opts    Options
	log     logger.Logger
	state   State
}

// New creates a navigator in the Searching state
func New(surface browser.Surface, opts Options, log logger.Logger) *Navigator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Navigator{
		surface: surface,
		opts:    opts,
		log:     log.WithField("component", "navigator"),
		state:   Searching,
	}
}

// State returns the current state
func (n *Navigator) State() State {
	return n.state
}

func (n *Navigator) transition(to State) {
	n.log.WithFields(map[string]interface{}{
		"from": n.state.String(),
		"to":   to.String(),
	}).Debug("State transition")
	n.state = to
}

// Run searches for location and opens its photos
func (n *Navigator) Run(ctx context.Context, location string) (State, error) {
	if state, err := n.Search(ctx, location); err != nil {
		return state, err
	}
	return n.OpenPhotos(ctx)
}

// Search submits the location query and waits for a place page, either
// directly or by choosing the first matching result.
func (n *Navigator) Search(ctx context.Context, location string) (State, error) {
	n.state = Searching
	n.log.WithField("location", location).Info("Searching for location")

	if err := n.surface.Navigate(ctx, n.opts.MapsURL); err != nil {
		n.transition(SearchFailed)
		return n.state, errs.Wrap(errs.ErrorTypeTransientUI, err, "open maps")
	}
	if err := retry.Wait(ctx, n.opts.SettleDelay); err != nil {
		return n.state, err
	}

	if err := n.submitQuery(ctx, location); err != nil {
		n.transition(SearchFailed)
		return n.state, err
	}
	if err := retry.Wait(ctx, n.opts.SettleDelay); err != nil {
		return n.state, err
	}

	_, err := browser.FirstVisible(ctx, n.surface, n.opts.Strategies.PlaceHeading, n.opts.WaitTimeout)
	if err == nil {
		n.log.Debug("Landed directly on place page")
		n.transition(Located)
		return n.state, nil
	}
	if ctx.Err() != nil {
		return n.state, ctx.Err()
	}

	match, err := browser.FirstVisible(ctx, n.surface, n.opts.Strategies.ResultsFor(location), n.opts.WaitTimeout)
	if err == nil {
		_, clickErr := browser.ClickWithFallback(ctx, n.surface, match.Element)
		if clickErr == nil {
			n.log.WithField("locator", match.Locator.String()).Debug("Selected search result")
			if err := retry.Wait(ctx, n.opts.SettleDelay); err != nil {
				return n.state, err
			}
			n.transition(Located)
			return n.state, nil
		}
		n.log.WithError(clickErr).Debug("Search result click failed")
	}
	if ctx.Err() != nil {
		return n.state, ctx.Err()
	}

	if browser.AnyPresent(ctx, n.surface, n.opts.Strategies.PlaceIndicators) {
		n.log.Debug("Place indicators present")
		n.transition(Located)
		return n.state, nil
	}

	n.transition(SearchFailed)
	return n.state, errs.Newf(errs.ErrorTypeLocationNotFound, "no place matched %q", location)
}

// submitQuery types into the search box, or navigates to the search URL
// when no box can be found
func (n *Navigator) submitQuery(ctx context.Context, location string) error {
	match, err := browser.FirstVisible(ctx, n.surface, n.opts.Strategies.SearchBox, n.opts.WaitTimeout)
	if err == nil {
		if err = n.surface.Type(ctx, match.Element, location, true); err == nil {
			return nil
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	searchURL := strings.TrimRight(n.opts.MapsURL, "/") + "/search/" + url.PathEscape(location)
	n.log.WithError(err).WithField("url", searchURL).Warn("Search box unavailable, using search URL")
	if navErr := n.surface.Navigate(ctx, searchURL); navErr != nil {
		return errs.Wrap(errs.ErrorTypeTransientUI, navErr, "open search URL")
	}
	return nil
}

// OpenPhotos activates the first displayed photos control. A page that
// already shows the gallery counts as open.
func (n *Navigator) OpenPhotos(ctx context.Context) (State, error) {
	if n.state != Located {
		return n.state, fmt.Errorf("open photos from state %s", n.state)
	}
	n.transition(PhotosOpening)

	if err := retry.Wait(ctx, n.opts.ActionDelay); err != nil {
		return n.state, err
	}

	_, loc, err := browser.TryInOrder(ctx, n.opts.Strategies.PhotoControls, func(ctx context.Context, loc browser.Locator) (bool, error) {
		elements, err := n.surface.FindElements(ctx, loc)
		if err != nil {
			return false, err
		}
		el, ok := browser.FirstDisplayed(ctx, n.surface, elements)
		if !ok {
			return false, browser.ErrNotFound
		}
		if _, err := browser.ClickWithFallback(ctx, n.surface, el); err != nil {
			return false, err
		}
		return true, nil
	})
	if err == nil {
		n.log.WithField("locator", loc.String()).Info("Opened photos")
		if err := retry.Wait(ctx, n.opts.SettleDelay); err != nil {
			return n.state, err
		}
		n.transition(PhotosOpen)
		return n.state, nil
	}
	if ctx.Err() != nil {
		return n.state, ctx.Err()
	}

	if n.InGallery(ctx) {
		n.log.Info("Photo gallery already open")
		n.transition(PhotosOpen)
		return n.state, nil
	}

	n.transition(PhotosFailed)
	return n.state, errs.Wrap(errs.ErrorTypeGalleryUnavailable, err, "no photos control")
}

// InGallery reports whether any gallery indicator is on the page
func (n *Navigator) InGallery(ctx context.Context) bool {
	return browser.AnyPresent(ctx, n.surface, n.opts.Strategies.GalleryIndicators)
}
