// Package ledger persists discovered image URLs to a CSV provenance file.
//
// Every append is flushed and synced before it returns so that an external
// reader, or a crash, never observes a partially recorded entry.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	errs "gmapsimages/pkg/errors"
	"gmapsimages/pkg/models"
	"gmapsimages/pkg/normalize"
)

// Header is the first row of every ledger file
var Header = []string{"index", "image_url", "timestamp"}

const (
	// TimestampLayout formats the observation time of each row in local time
	TimestampLayout = "2006-01-02 15:04:05"
	fileStampLayout = "20060102_150405"
)

// Ledger is an append-only CSV file of discovered URLs. It is safe for
// concurrent use.
type Ledger struct {
	mu      sync.Mutex
	file    *os.File
	writer  *csv.Writer
	path    string
	entries []models.LedgerEntry
	now     func() time.Time
	closed  bool
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock overrides the time source for file names and row timestamps
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// FileName returns the ledger file name for a label at time t
func FileName(label string, t time.Time) string {
	return fmt.Sprintf("%s_urls_%s.csv", normalize.SanitizeFilename(label), t.Format(fileStampLayout))
}

// Open creates dir if needed and a new ledger file inside it with the header
// row written. Two runs started in the same second get distinct files.
func Open(dir, label string, opts ...Option) (*Ledger, error) {
	l := &Ledger{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "create ledger directory")
	}

	file, path, err := createUnique(dir, FileName(label, l.now()))
	if err != nil {
		return nil, err
	}

	l.file = file
	l.path = path
	l.writer = csv.NewWriter(file)

	if err := l.writeRow(Header); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}

	return l, nil
}

// createUnique opens name exclusively, adding _2, _3, ... on collision
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]

	for n := 1; n <= 100; n++ {
		candidate := name
		if n > 1 {
			candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
		}
		path := filepath.Join(dir, candidate)

		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			return file, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", errs.Wrap(errs.ErrorTypeIO, err, "create ledger file")
		}
	}
	return nil, "", errs.New(errs.ErrorTypeIO, "too many ledger files for "+name)
}

// writeRow writes, flushes and syncs one record. Callers hold l.mu or own l exclusively.
func (l *Ledger) writeRow(record []string) error {
	if err := l.writer.Write(record); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "write ledger row")
	}
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "flush ledger")
	}
	if err := l.file.Sync(); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "sync ledger")
	}
	return nil
}

// Append durably records url under index. The caller owns index allocation;
// the ledger does not check that indices are contiguous.
func (l *Ledger) Append(url string, index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errs.New(errs.ErrorTypeIO, "ledger is closed")
	}

	observed := l.now()
	if err := l.writeRow([]string{strconv.Itoa(index), url, observed.Format(TimestampLayout)}); err != nil {
		return err
	}

	l.entries = append(l.entries, models.LedgerEntry{Index: index, URL: url, ObservedAt: observed})
	return nil
}

// Entries returns a copy of the rows appended so far
func (l *Ledger) Entries() []models.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]models.LedgerEntry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// Count returns the number of rows appended so far
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Path returns the ledger file path
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the underlying file. Further appends fail.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// ReadFile parses a ledger file back into entries
func ReadFile(path string) ([]models.LedgerEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "open ledger")
	}
	defer file.Close()

	return Read(file)
}

// Read parses ledger rows from r, validating the header
func Read(r io.Reader) ([]models.LedgerEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	for i, name := range Header {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected ledger header %v", header)
		}
	}

	var entries []models.LedgerEntry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger row: %w", err)
		}

		index, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("parse ledger index %q: %w", record[0], err)
		}
		observed, err := time.ParseInLocation(TimestampLayout, record[2], time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse ledger timestamp %q: %w", record[2], err)
		}

		entries = append(entries, models.LedgerEntry{Index: index, URL: record[1], ObservedAt: observed})
	}
	return entries, nil
}
