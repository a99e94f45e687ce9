// Package logger provides the structured logging interface used across the
// scraper. It wraps zerolog with colored console output on stderr and an
// optional append-only log file.
//
// Basic usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//		return err
//	}
//	log := logger.GetLogger().WithField("location", "Eiffel Tower")
//	log.Info("Searching")
//
// Components receive a Logger explicitly; tests pass NewNopLogger or a
// TestLogger to capture output.
package logger
