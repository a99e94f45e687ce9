package ui

import (
	"fmt"

	errs "gmapsimages/pkg/errors"
	"gmapsimages/pkg/models"
	"gmapsimages/pkg/retry"
)

// OutcomeKind classifies how a run ended for the user
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeURLsOnly
	OutcomeNoImages
	OutcomeLocationNotFound
	OutcomeRetriesExhausted
	OutcomeInterrupted
	OutcomeFailed
)

// ClassifyOutcome maps a run result and error to the message the user sees.
// A missing location wins over retry exhaustion because every attempt failed
// the same way.
func ClassifyOutcome(result models.RunResult, err error) OutcomeKind {
	if err != nil {
		switch {
		case errs.Is(err, errs.ErrorTypeLocationNotFound):
			return OutcomeLocationNotFound
		case errs.IsCancellation(err):
			return OutcomeInterrupted
		case retry.IsExhausted(err):
			return OutcomeRetriesExhausted
		default:
			return OutcomeFailed
		}
	}
	switch {
	case result.ImagesDiscovered == 0:
		return OutcomeNoImages
	case result.URLOnly:
		return OutcomeURLsOnly
	default:
		return OutcomeSuccess
	}
}

// OutcomeLine returns the single-line summary for a run
func OutcomeLine(location string, result models.RunResult, err error) string {
	switch ClassifyOutcome(result, err) {
	case OutcomeLocationNotFound:
		return fmt.Sprintf("No matching location for %q", location)
	case OutcomeInterrupted:
		return fmt.Sprintf("Interrupted: %d discovered, %d downloaded", result.ImagesDiscovered, result.ImagesDownloaded)
	case OutcomeRetriesExhausted:
		return fmt.Sprintf("Retries exhausted after %d attempts: %v", result.Attempts, err)
	case OutcomeFailed:
		return fmt.Sprintf("Run failed: %v", err)
	case OutcomeNoImages:
		return fmt.Sprintf("Location %q found but no images were discovered", location)
	case OutcomeURLsOnly:
		return fmt.Sprintf("Discovered %d images, URLs recorded in %s", result.ImagesDiscovered, result.LedgerPath)
	default:
		line := fmt.Sprintf("Discovered %d images, downloaded %d to %s", result.ImagesDiscovered, result.ImagesDownloaded, result.OutputDir)
		if result.LedgerPath != "" {
			line += fmt.Sprintf(" (ledger %s)", result.LedgerPath)
		}
		return line
	}
}

// PrintOutcome prints the outcome summary in the color matching its kind
func PrintOutcome(location string, result models.RunResult, err error) {
	line := OutcomeLine(location, result, err)
	switch ClassifyOutcome(result, err) {
	case OutcomeSuccess, OutcomeURLsOnly:
		PrintSuccess(line)
	case OutcomeNoImages, OutcomeInterrupted:
		PrintWarning(line)
	default:
		PrintError(line)
	}
}
