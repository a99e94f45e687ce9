// Package storage manages the per-location output directory.
//
// Assets are named <label>_<index><ext> inside destinationRoot/<label>/,
// where label is the sanitized location name. Writes go through a temporary
// file and an atomic rename, and a file only counts as stored when it is
// non-empty, so an interrupted run never leaves a zero-byte asset that a
// later run would skip.
//
// Usage:
//
//	manager, err := storage.NewManager("downloaded_images", "Eiffel Tower")
//	if err != nil {
//	    return err
//	}
//
//	path := manager.PathFor(1, url)
//	if !manager.IsStored(path) {
//	    _, err = manager.Save(path, bytes.NewReader(data))
//	}
package storage
