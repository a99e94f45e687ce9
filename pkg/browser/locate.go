package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gmapsimages/pkg/retry"
)

// PollInterval is how often a waiting locator re-queries the page
var PollInterval = 250 * time.Millisecond

// Match is an element together with the strategy that found it
type Match struct {
	Element Element
	Locator Locator
}

// TryInOrder runs attempt for each strategy in order and returns the first
// success. Failures are collected and returned joined under ErrNotFound.
// Context cancellation stops the walk immediately.
func TryInOrder[S, T any](ctx context.Context, strategies []S, attempt func(context.Context, S) (T, error)) (T, S, error) {
	var zero T
	var failures []error

	for _, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			return zero, strategy, err
		}

		result, err := attempt(ctx, strategy)
		if err == nil {
			return result, strategy, nil
		}
		if ctx.Err() != nil {
			return zero, strategy, ctx.Err()
		}
		failures = append(failures, fmt.Errorf("%v: %w", strategy, err))
	}

	var none S
	return zero, none, fmt.Errorf("%w: %w", ErrNotFound, errors.Join(failures...))
}

// FirstVisible gives each locator up to wait to produce a displayed element
// and returns the first one found.
func FirstVisible(ctx context.Context, s Surface, locators []Locator, wait time.Duration) (Match, error) {
	el, loc, err := TryInOrder(ctx, locators, func(ctx context.Context, loc Locator) (Element, error) {
		return waitVisible(ctx, s, loc, wait)
	})
	if err != nil {
		return Match{}, err
	}
	return Match{Element: el, Locator: loc}, nil
}

// FirstPresent returns the first element any locator currently matches,
// displayed or not.
func FirstPresent(ctx context.Context, s Surface, locators []Locator) (Match, error) {
	el, loc, err := TryInOrder(ctx, locators, func(ctx context.Context, loc Locator) (Element, error) {
		elements, err := s.FindElements(ctx, loc)
		if err != nil {
			return nil, err
		}
		if len(elements) == 0 {
			return nil, ErrNotFound
		}
		return elements[0], nil
	})
	if err != nil {
		return Match{}, err
	}
	return Match{Element: el, Locator: loc}, nil
}

// AnyPresent reports whether any locator currently matches at least one element
func AnyPresent(ctx context.Context, s Surface, locators []Locator) bool {
	_, err := FirstPresent(ctx, s, locators)
	return err == nil
}

// FirstDisplayed returns the first displayed element among elements
func FirstDisplayed(ctx context.Context, s Surface, elements []Element) (Element, bool) {
	for _, el := range elements {
		if shown, err := s.IsDisplayed(ctx, el); err == nil && shown {
			return el, true
		}
	}
	return nil, false
}

func waitVisible(ctx context.Context, s Surface, loc Locator, wait time.Duration) (Element, error) {
	deadline := time.Now().Add(wait)
	for {
		elements, err := s.FindElements(ctx, loc)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if el, ok := FirstDisplayed(ctx, s, elements); ok {
			return el, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if err != nil {
				return nil, err
			}
			return nil, ErrNotFound
		}
		if err := retry.Wait(ctx, min(PollInterval, remaining)); err != nil {
			return nil, err
		}
	}
}

// ClickWithFallback scrolls el into view and clicks it, falling back to a
// script click when the native click fails. It reports whether the fallback
// was used.
func ClickWithFallback(ctx context.Context, s Surface, el Element) (bool, error) {
	_ = s.ScrollIntoView(ctx, el)

	err := s.Click(ctx, el)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, ErrStale) || ctx.Err() != nil {
		return false, err
	}

	if scriptErr := s.ScriptClick(ctx, el); scriptErr != nil {
		return true, fmt.Errorf("script click after %v: %w", err, scriptErr)
	}
	return true, nil
}
