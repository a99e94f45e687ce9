package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	errs "gmapsimages/pkg/errors"
)

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir, "Café: Déjà Vu?")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.Label() != "Café__Déjà_Vu_" {
		t.Errorf("Unexpected label %q", manager.Label())
	}
	if manager.Dir() != filepath.Join(tempDir, manager.Label()) {
		t.Errorf("Unexpected dir %q", manager.Dir())
	}
	if manager.StoredCount() != 0 {
		t.Error("Expected initial stored count to be 0")
	}

	path := manager.PathFor(3, "https://lh5.googleusercontent.com/p/AF1Qip=w0-h0-k-no")
	if filepath.Base(path) != "Café__Déjà_Vu__3.jpg" {
		t.Errorf("Unexpected asset name %q", filepath.Base(path))
	}
	if manager.IsStored(path) {
		t.Error("Expected IsStored to return false for non-existent file")
	}

	testData := []byte("test photo data")
	n, err := manager.Save(path, bytes.NewReader(testData))
	if err != nil {
		t.Fatalf("Failed to save asset: %v", err)
	}
	if n != int64(len(testData)) {
		t.Errorf("Expected %d bytes written, got %d", len(testData), n)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}

	if !manager.IsStored(path) {
		t.Error("Expected IsStored to return true for existing file")
	}
	if manager.StoredCount() != 1 {
		t.Errorf("Expected stored count 1, got %d", manager.StoredCount())
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected temporary file to be removed")
	}
}

func TestManagerScansExistingAssets(t *testing.T) {
	tempDir := t.TempDir()
	dir := filepath.Join(tempDir, "Big_Ben")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	files := map[string]string{
		"Big_Ben_1.jpg":                    "data",
		"Big_Ben_2.png":                    "data",
		"Big_Ben_3.jpg":                    "",
		"Big_Ben_urls_20240517_143005.csv": "index,image_url,timestamp\n",
		"unrelated.jpg":                    "data",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	manager, err := NewManager(tempDir, "Big Ben")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.StoredCount() != 2 {
		t.Errorf("Expected 2 stored assets, got %d", manager.StoredCount())
	}
	if manager.IsStored(filepath.Join(dir, "Big_Ben_3.jpg")) {
		t.Error("Empty file must not count as stored")
	}
}

func TestSaveRejectsEmptyContent(t *testing.T) {
	manager, err := NewManager(t.TempDir(), "Louvre")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	path := manager.PathFor(1, "https://lh5.googleusercontent.com/p/x.png")
	_, err = manager.Save(path, strings.NewReader(""))
	if err == nil {
		t.Fatal("Expected error for empty content")
	}
	if !errs.Is(err, errs.ErrorTypeIO) {
		t.Errorf("Expected io error, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("Expected empty file to be removed")
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestSaveCleansUpOnReadError(t *testing.T) {
	manager, err := NewManager(t.TempDir(), "Louvre")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	path := manager.PathFor(2, "https://lh5.googleusercontent.com/p/x")
	if _, err := manager.Save(path, failingReader{}); err == nil {
		t.Fatal("Expected error from failing reader")
	}

	entries, _ := os.ReadDir(manager.Dir())
	if len(entries) != 0 {
		t.Errorf("Expected no files left behind, found %d", len(entries))
	}
}

func TestNewManagerRejectsEmptyLabel(t *testing.T) {
	if _, err := NewManager(t.TempDir(), " .. "); err == nil {
		t.Error("Expected error for a label that sanitizes to nothing")
	}
}
