package extractor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmapsimages/pkg/browser/browsertest"
	errs "gmapsimages/pkg/errors"
	"gmapsimages/pkg/ledger"
	"gmapsimages/pkg/logger"
	"gmapsimages/pkg/models"
	"gmapsimages/pkg/navigator"
)

const (
	currentQ   = `img.aIMqZ, div.OhtVzd img`
	nextQ      = `button[aria-label='Next photo'], button[aria-label='Next']`
	galleryQ   = `div.U7izfe`
	thumbnailQ = `div[role='img'], img.qaFoQ`
)

// mockRecorder records ledger appends
type mockRecorder struct {
	mu      sync.Mutex
	urls    []string
	indices []int
	err     error
}

func (m *mockRecorder) Append(url string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, url)
	m.indices = append(m.indices, index)
	return m.err
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Location = "Test Place"
	opts.WaitTimeout = time.Millisecond
	opts.StepDelay = 0
	opts.SettleDelay = 0
	opts.StaleBackoff = 0
	return opts
}

func photoURL(i int) string {
	return fmt.Sprintf("https://lh5.googleusercontent.com/p/AF1QipPhoto%d=w400-h300-k-no", i)
}

func canonicalURL(i int) string {
	return fmt.Sprintf("https://lh5.googleusercontent.com/p/AF1QipPhoto%d=w0-h0-k-no", i)
}

// newGallery builds a surface showing items one at a time. The next control
// disappears on the last item.
func newGallery(items ...string) *browsertest.Surface {
	s := browsertest.New()
	s.Set(galleryQ, &browsertest.Element{Name: "gallery"})
	s.Set(currentQ, browsertest.NewImage("current", items[0]))

	if len(items) > 1 {
		pos := 0
		next := &browsertest.Element{Name: "next"}
		next.OnClick = func() error {
			pos++
			s.Set(currentQ, browsertest.NewImage("current", items[pos]))
			if pos == len(items)-1 {
				s.Clear(nextQ)
			}
			return nil
		}
		s.Set(nextQ, next)
	}
	return s
}

func TestExtractSevenItemsEndsOnMissingNextControl(t *testing.T) {
	items := make([]string, 7)
	for i := range items {
		items[i] = photoURL(i + 1)
	}
	s := newGallery(items...)
	rec := &mockRecorder{}

	result, err := New(s, testOptions(), rec, logger.NewNopLogger()).Run(context.Background(), navigator.PhotosOpen)

	require.NoError(t, err)
	assert.Len(t, result.References, 7)
	assert.Equal(t, models.TerminationNoNextControl, result.Termination)
	assert.Equal(t, models.GalleryExhausted, result.State)
	assert.False(t, result.Degraded)
	assert.Equal(t, 7, result.Steps)
	for i, ref := range result.References {
		assert.Equal(t, canonicalURL(i+1), ref.CanonicalURL)
		assert.Equal(t, items[i], ref.RawURL)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, rec.indices)
}

func TestExtractLedgerIndicesAreContiguous(t *testing.T) {
	items := []string{
		photoURL(1),
		"https://lh5.googleusercontent.com/p/AF1QipPhoto1=w999-h999-k-no",
		photoURL(2),
		photoURL(2),
		photoURL(3),
	}
	s := newGallery(items...)
	l, err := ledger.Open(t.TempDir(), "Test Place")
	require.NoError(t, err)

	result, err := New(s, testOptions(), l, logger.NewNopLogger()).Run(context.Background(), navigator.PhotosOpen)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	entries, err := ledger.ReadFile(l.Path())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, i+1, entry.Index)
		assert.Equal(t, result.References[i].CanonicalURL, entry.URL)
	}
	assert.Equal(t, []string{canonicalURL(1), canonicalURL(2), canonicalURL(3)}, result.URLs())
}

func TestExtractStopsAtMaxImages(t *testing.T) {
	items := make([]string, 7)
	for i := range items {
		items[i] = photoURL(i + 1)
	}
	opts := testOptions()
	opts.MaxImages = 3

	result, err := New(newGallery(items...), opts, nil, logger.NewNopLogger()).Run(context.Background(), navigator.PhotosOpen)

	require.NoError(t, err)
	assert.Len(t, result.References, 3)
	assert.Equal(t, models.TerminationMaxImages, result.Termination)
}

func TestExtractStopsOnStagnation(t *testing.T) {
	s := browsertest.New()
	s.Set(galleryQ, &browsertest.Element{})
	s.Set(currentQ, browsertest.NewImage("current", photoURL(1)))
	next := &browsertest.Element{Name: "next"}
	s.Set(nextQ, next)

	result, err := New(s, testOptions(), nil, logger.NewNopLogger()).Run(context.Background(), navigator.PhotosOpen)

	require.NoError(t, err)
	assert.Equal(t, models.TerminationStagnation, result.Termination)
	assert.Len(t, result.References, 1)
	assert.Equal(t, 31, result.Steps)
	assert.Equal(t, 31, next.Clicks)
}

func TestExtractErrorBudgetKeepsPartialResults(t *testing.T) {
	s := browsertest.New()
	s.Set(galleryQ, &browsertest.Element{})
	s.Set(currentQ, browsertest.NewImage("current", photoURL(1)))
	next := &browsertest.Element{Name: "next"}
	next.OnClick = func() error {
		s.Clear(currentQ)
		return nil
	}
	s.Set(nextQ, next)

	result, err := New(s, testOptions(), nil, logger.NewNopLogger()).Run(context.Background(), navigator.PhotosOpen)

	require.NoError(t, err)
	assert.Equal(t, models.TerminationErrorBudget, result.Termination)
	assert.True(t, result.Degraded)
	assert.Equal(t, 6, result.Steps)
	assert.Equal(t, []string{canonicalURL(1)}, result.URLs())
}

func TestExtractRetriesStaleReads(t *testing.T) {
	s := newGallery(photoURL(1))
	current := browsertest.NewImage("current", photoURL(1))
	current.StaleReads = 2
	s.Set(currentQ, current)

	result, err := New(s, testOptions(), nil, logger.NewNopLogger()).Run(context.Background(), navigator.PhotosOpen)

	require.NoError(t, err)
	assert.Equal(t, 0, current.StaleReads)
	assert.Equal(t, []string{canonicalURL(1)}, result.URLs())
	assert.Equal(t, models.TerminationNoNextControl, result.Termination)
}

func TestExtractFallsBackToScriptQueryAfterStaleRetries(t *testing.T) {
	s := newGallery(photoURL(1))
	current := browsertest.NewImage("current", photoURL(1))
	current.StaleReads = 3
	s.Set(currentQ, current)
	s.EvalFunc = func(script string) (interface{}, error) {
		return []string{photoURL(2), "https://maps.gstatic.com/icon.png"}, nil
	}

	result, err := New(s, testOptions(), nil, logger.NewNopLogger()).Run(context.Background(), navigator.PhotosOpen)

	require.NoError(t, err)
	assert.Equal(t, []string{canonicalURL(2)}, result.URLs())
}

func TestExtractContinuesWhenLedgerFails(t *testing.T) {
	rec := &mockRecorder{err: errs.New(errs.ErrorTypeIO, "disk full")}
	testLog := logger.NewTestLogger()

	result, err := New(newGallery(photoURL(1), photoURL(2)), testOptions(), rec, testLog).Run(context.Background(), navigator.PhotosOpen)

	require.NoError(t, err)
	assert.Len(t, result.References, 2)
	assert.Equal(t, []int{1, 2}, rec.indices)
	assert.True(t, testLog.HasMessage("Ledger append failed"))
}

func TestEnterGalleryClicksThumbnail(t *testing.T) {
	s := browsertest.New()
	thumb := &browsertest.Element{Name: "thumb", Intercepted: true}
	thumb.OnClick = func() error {
		s.Set(galleryQ, &browsertest.Element{})
		s.Set(currentQ, browsertest.NewImage("current", photoURL(1)))
		return nil
	}
	s.Set(thumbnailQ, thumb)

	result, err := New(s, testOptions(), nil, logger.NewNopLogger()).Run(context.Background(), navigator.PhotosOpen)

	require.NoError(t, err)
	assert.Equal(t, 1, thumb.ScriptClicks)
	assert.Equal(t, 0, s.Reloads)
	assert.Equal(t, models.TerminationNoNextControl, result.Termination)
	assert.Equal(t, []string{canonicalURL(1)}, result.URLs())
}

func TestRunFallsBackToDirectScanWhenGalleryUnavailable(t *testing.T) {
	s := browsertest.New()
	s.EvalFunc = func(script string) (interface{}, error) {
		return []string{photoURL(1), photoURL(2)}, nil
	}
	s.Set(`img.qaFoQ`, browsertest.NewImage("thumb", photoURL(3)), browsertest.NewImage("dup", photoURL(1)))
	s.PageHTML = `<html><body>
		<img src="` + photoURL(2) + `">
		<img data-src="` + photoURL(4) + `">
		<div style="background-image: url('` + photoURL(5) + `')"></div>
		<img src="https://maps.gstatic.com/logo.png">
	</body></html>`

	rec := &mockRecorder{}
	result, err := New(s, testOptions(), rec, logger.NewNopLogger()).Run(context.Background(), navigator.PhotosOpen)

	require.NoError(t, err)
	assert.Equal(t, 2, s.Reloads, "reload between each failed entry attempt")
	assert.Equal(t, models.TerminationDirectScan, result.Termination)
	assert.Equal(t, models.GalleryNotEntered, result.State)
	assert.Equal(t, []string{
		canonicalURL(1), canonicalURL(2), canonicalURL(3), canonicalURL(4), canonicalURL(5),
	}, result.URLs())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, rec.indices)
}

func TestDirectScanSkipsSupplementWhenScriptFindsEnough(t *testing.T) {
	s := browsertest.New()
	s.EvalFunc = func(script string) (interface{}, error) {
		return []string{photoURL(1), photoURL(2), photoURL(3), photoURL(4), photoURL(5)}, nil
	}
	s.Set(`img.qaFoQ`, browsertest.NewImage("extra", photoURL(6)))

	result, err := New(s, testOptions(), nil, logger.NewNopLogger()).Run(context.Background(), navigator.PhotosFailed)

	require.NoError(t, err)
	assert.Len(t, result.References, 5)
	assert.Empty(t, s.Navigations)
}

func TestDirectScanFailsWhenEverySourceFails(t *testing.T) {
	s := browsertest.New()
	s.EvalFunc = func(script string) (interface{}, error) {
		return nil, errors.New("script error")
	}
	s.FindErr = errors.New("session lost")
	s.HTMLErr = errors.New("session lost")

	_, err := New(s, testOptions(), nil, logger.NewNopLogger()).DirectScan(context.Background())

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeGalleryUnavailable))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(newGallery(photoURL(1)), testOptions(), nil, logger.NewNopLogger()).Run(ctx, navigator.PhotosOpen)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.TerminationCancelled, result.Termination)
}

func TestHarvestDeduplicates(t *testing.T) {
	h := NewHarvest()

	idx, isNew := h.Add(models.ImageReference{DedupKey: "a"})
	assert.Equal(t, 1, idx)
	assert.True(t, isNew)

	idx, isNew = h.Add(models.ImageReference{DedupKey: "b"})
	assert.Equal(t, 2, idx)
	assert.True(t, isNew)

	idx, isNew = h.Add(models.ImageReference{DedupKey: "a"})
	assert.Equal(t, 1, idx)
	assert.False(t, isNew)

	assert.Equal(t, 2, h.Len())
	assert.True(t, h.Contains("b"))

	refs := h.References()
	refs[0].DedupKey = "changed"
	assert.True(t, h.Contains("a"))
	assert.Equal(t, "a", h.References()[0].DedupKey)
}

func TestHTMLSources(t *testing.T) {
	page := `<div>
		<img src="https://lh3.googleusercontent.com/a=w10-h10">
		<span style="background-image:url(&quot;https://lh3.googleusercontent.com/b&quot;)"></span>
		<img src="/static/x.png" data-src="https://lh3.googleusercontent.com/c">
	</div>`

	urls, err := htmlSources(page, "googleusercontent.com")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://lh3.googleusercontent.com/a=w10-h10",
		"https://lh3.googleusercontent.com/c",
		"https://lh3.googleusercontent.com/b",
	}, urls)
}

func TestImageSourcesScriptFiltersHost(t *testing.T) {
	script := imageSourcesScript("googleusercontent.com")
	assert.Contains(t, script, `includes("googleusercontent.com")`)
	assert.NotContains(t, script, "return", "evaluated as an expression")
}
