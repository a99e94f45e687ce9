package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogDownload logs the outcome of a single asset download
func LogDownload(l Logger, index int, url, status string, err error) {
	entry := l.WithFields(map[string]interface{}{
		"index":  index,
		"url":    url,
		"status": status,
	})

	switch {
	case err != nil:
		entry.WithError(err).Warn("Download failed")
	case status == "skipped":
		entry.Debug("Download skipped, file exists")
	default:
		entry.Debug("Download completed")
	}
}

// LogExtractionProgress logs how many unique references a run has collected
func LogExtractionProgress(l Logger, location string, discovered, step int) {
	l.WithFields(map[string]interface{}{
		"location":   location,
		"discovered": discovered,
		"step":       step,
	}).Info("Extraction progress")
}

// LogAttempt logs the start of one pipeline attempt
func LogAttempt(l Logger, attempt, max int) {
	l.WithFields(map[string]interface{}{
		"attempt":      attempt,
		"max_attempts": max,
	}).Info("Pipeline attempt started")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	entry := l.WithField("component", component)
	if len(config) > 0 {
		entry = entry.WithFields(config)
	}
	entry.Debug("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Debug("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
