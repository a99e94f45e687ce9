package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "gmapsimages/pkg/errors"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 17, 14, 30, 5, 0, time.Local)
}

func TestLedgerGolden(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "Eiffel Tower", WithClock(fixedClock))
	require.NoError(t, err)

	require.NoError(t, l.Append("https://lh5.googleusercontent.com/p/AF1QipOne=w0-h0-k-no", 1))
	require.NoError(t, l.Append("https://lh5.googleusercontent.com/p/AF1QipTwo=w0-h0-k-no", 2))
	require.NoError(t, l.Append("https://lh3.googleusercontent.com/gps-cs-s/AB,cd=w0-h0", 3))
	require.NoError(t, l.Close())

	assert.Equal(t, filepath.Join(dir, "Eiffel_Tower_urls_20240517_143005.csv"), l.Path())

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "ledger_basic", data)
}

func TestAppendIsVisibleImmediately(t *testing.T) {
	l, err := Open(t.TempDir(), "Louvre", WithClock(fixedClock))
	require.NoError(t, err)
	defer l.Close()

	entries, err := ReadFile(l.Path())
	require.NoError(t, err)
	assert.Empty(t, entries, "a fresh ledger holds only the header")

	require.NoError(t, l.Append("https://lh5.googleusercontent.com/p/a=w0-h0", 1))

	entries, err = ReadFile(l.Path())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, "https://lh5.googleusercontent.com/p/a=w0-h0", entries[0].URL)
	assert.True(t, entries[0].ObservedAt.Equal(fixedClock()))
}

func TestConcurrentAppends(t *testing.T) {
	l, err := Open(t.TempDir(), "Colosseum")
	require.NoError(t, err)
	defer l.Close()

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				index := w*perWriter + i + 1
				if err := l.Append(fmt.Sprintf("https://lh3.googleusercontent.com/p/%d", index), index); err != nil {
					t.Errorf("Append(%d) failed: %v", index, err)
				}
			}
		}(w)
	}
	wg.Wait()

	entries, err := ReadFile(l.Path())
	require.NoError(t, err)
	require.Len(t, entries, writers*perWriter)

	indices := make([]int, 0, len(entries))
	for _, e := range entries {
		assert.Equal(t, fmt.Sprintf("https://lh3.googleusercontent.com/p/%d", e.Index), e.URL, "row fields must not interleave")
		indices = append(indices, e.Index)
	}
	sort.Ints(indices)
	for i, idx := range indices {
		assert.Equal(t, i+1, idx)
	}
	assert.Equal(t, writers*perWriter, l.Count())
}

func TestOpenSameSecondCreatesDistinctFiles(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir, "Big Ben", WithClock(fixedClock))
	require.NoError(t, err)
	defer first.Close()

	second, err := Open(dir, "Big Ben", WithClock(fixedClock))
	require.NoError(t, err)
	defer second.Close()

	assert.NotEqual(t, first.Path(), second.Path())
	assert.Equal(t, "Big_Ben_urls_20240517_143005_2.csv", filepath.Base(second.Path()))
}

func TestOpenFailureIsIOError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := Open(filepath.Join(blocker, "sub"), "Acropolis")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeIO))
}

func TestAppendAfterClose(t *testing.T) {
	l, err := Open(t.TempDir(), "Alhambra")
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	err = l.Append("https://lh3.googleusercontent.com/p/a", 1)
	assert.True(t, errs.Is(err, errs.ErrorTypeIO))
}

func TestEntriesReturnsCopy(t *testing.T) {
	l, err := Open(t.TempDir(), "Sagrada Familia", WithClock(fixedClock))
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Append("https://lh3.googleusercontent.com/p/a", 1))
	entries := l.Entries()
	entries[0].URL = "mutated"

	assert.Equal(t, "https://lh3.googleusercontent.com/p/a", l.Entries()[0].URL)
}
