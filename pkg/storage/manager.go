package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	errs "gmapsimages/pkg/errors"
	"gmapsimages/pkg/normalize"
)

// Manager owns the per-location output directory
type Manager struct {
	dir    string
	label  string
	stored map[string]bool
	mu     sync.RWMutex
}

// NewManager creates baseDir/<sanitized location>/ and indexes the assets
// already present there
func NewManager(baseDir, location string) (*Manager, error) {
	label := normalize.SanitizeFilename(location)
	if label == "" {
		return nil, errs.Newf(errs.ErrorTypeIO, "location %q has no usable file name", location)
	}

	dir := filepath.Join(baseDir, label)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "create output directory")
	}

	manager := &Manager{
		dir:    dir,
		label:  label,
		stored: make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles records non-empty assets from earlier runs
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	prefix := m.label + "_"
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, ".tmp") || filepath.Ext(name) == ".csv" {
			continue
		}
		path := filepath.Join(m.dir, name)
		if Exists(path) {
			m.stored[path] = true
		}
	}

	return nil
}

// Dir returns the location directory
func (m *Manager) Dir() string {
	return m.dir
}

// Label returns the sanitized location label
func (m *Manager) Label() string {
	return m.label
}

// PathFor returns the deterministic asset path for the 1-based index
func (m *Manager) PathFor(index int, url string) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s_%d%s", m.label, index, normalize.Extension(url)))
}

// Exists reports whether path is a non-empty regular file
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// IsStored checks whether path already holds an asset
func (m *Manager) IsStored(path string) bool {
	m.mu.RLock()
	cached := m.stored[path]
	m.mu.RUnlock()
	if cached {
		return true
	}

	if Exists(path) {
		m.mu.Lock()
		m.stored[path] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// Save writes r to path through a temporary file and verifies the result
// is non-empty. An empty result is removed and reported as an io error.
func (m *Manager) Save(path string, r io.Reader) (int64, error) {
	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeIO, err, "create temporary file")
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return 0, errs.Wrap(errs.ErrorTypeIO, err, "write asset")
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return 0, errs.Wrap(errs.ErrorTypeIO, closeErr, "close asset")
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return 0, errs.Wrap(errs.ErrorTypeIO, err, "rename temporary file")
	}

	if !Exists(path) {
		os.Remove(path)
		return 0, errs.Newf(errs.ErrorTypeIO, "asset %s is empty after write", filepath.Base(path))
	}

	m.mu.Lock()
	m.stored[path] = true
	m.mu.Unlock()

	return n, nil
}

// StoredCount returns the number of assets known to be on disk
func (m *Manager) StoredCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stored)
}
