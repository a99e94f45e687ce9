package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmapsimages/pkg/browser"
	"gmapsimages/pkg/browser/browsertest"
)

func TestTryInOrderReturnsFirstSuccess(t *testing.T) {
	var tried []string
	result, winner, err := browser.TryInOrder(context.Background(), []string{"a", "b", "c"},
		func(ctx context.Context, s string) (int, error) {
			tried = append(tried, s)
			if s == "b" {
				return 2, nil
			}
			return 0, errors.New("miss")
		})

	require.NoError(t, err)
	assert.Equal(t, 2, result)
	assert.Equal(t, "b", winner)
	assert.Equal(t, []string{"a", "b"}, tried, "later strategies are not tried")
}

func TestTryInOrderAllFail(t *testing.T) {
	_, _, err := browser.TryInOrder(context.Background(), []string{"a", "b"},
		func(ctx context.Context, s string) (int, error) {
			return 0, errors.New("miss " + s)
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrNotFound)
	assert.Contains(t, err.Error(), "miss a")
	assert.Contains(t, err.Error(), "miss b")
}

func TestTryInOrderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, _, err := browser.TryInOrder(ctx, []int{1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		calls++
		cancel()
		return 0, errors.New("miss")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestFirstVisibleSkipsHiddenAndWaitsPerLocator(t *testing.T) {
	s := browsertest.New()
	s.Set("button.hidden", &browsertest.Element{Name: "hidden", Hidden: true})
	shown := &browsertest.Element{Name: "photos"}
	s.Set("button.photos", shown)

	locators := []browser.Locator{
		browser.CSS("button.missing"),
		browser.CSS("button.hidden"),
		browser.CSS("button.photos"),
	}

	start := time.Now()
	match, err := browser.FirstVisible(context.Background(), s, locators, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Same(t, shown, match.Element)
	assert.Equal(t, browser.CSS("button.photos"), match.Locator)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "each failing locator gets its own wait")
}

func TestFirstVisibleNotFound(t *testing.T) {
	s := browsertest.New()
	_, err := browser.FirstVisible(context.Background(), s, []browser.Locator{browser.CSS("x")}, 5*time.Millisecond)
	assert.ErrorIs(t, err, browser.ErrNotFound)
}

func TestFirstVisibleFindsLateElement(t *testing.T) {
	s := browsertest.New()
	calls := 0
	late := &browsertest.Element{Name: "late"}
	s.Finder = func(loc browser.Locator) []*browsertest.Element {
		calls++
		if calls < 3 {
			return nil
		}
		return []*browsertest.Element{late}
	}

	old := browser.PollInterval
	browser.PollInterval = 5 * time.Millisecond
	defer func() { browser.PollInterval = old }()

	match, err := browser.FirstVisible(context.Background(), s, []browser.Locator{browser.CSS("img")}, time.Second)
	require.NoError(t, err)
	assert.Same(t, late, match.Element)
}

func TestAnyPresentIgnoresVisibility(t *testing.T) {
	s := browsertest.New()
	s.Set("div.U7izfe", &browsertest.Element{Hidden: true})

	assert.True(t, browser.AnyPresent(context.Background(), s, []browser.Locator{browser.CSS("div.none"), browser.CSS("div.U7izfe")}))
	assert.False(t, browser.AnyPresent(context.Background(), s, []browser.Locator{browser.CSS("div.none")}))
}

func TestClickWithFallback(t *testing.T) {
	s := browsertest.New()

	plain := &browsertest.Element{}
	scripted, err := browser.ClickWithFallback(context.Background(), s, plain)
	require.NoError(t, err)
	assert.False(t, scripted)
	assert.Equal(t, 1, plain.Clicks)

	covered := &browsertest.Element{Intercepted: true}
	scripted, err = browser.ClickWithFallback(context.Background(), s, covered)
	require.NoError(t, err)
	assert.True(t, scripted)
	assert.Equal(t, 0, covered.Clicks)
	assert.Equal(t, 1, covered.ScriptClicks)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, browser.IsTransient(browser.ErrStale))
	assert.True(t, browser.IsTransient(errors.Join(errors.New("x"), browser.ErrIntercepted)))
	assert.False(t, browser.IsTransient(errors.New("boom")))
}
