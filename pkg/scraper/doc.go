// Package scraper drives one location through the whole pipeline.
//
// Each attempt starts from nothing: a new browser surface, a new ledger
// file and a new navigator. The navigator searches for the place and opens
// its photos, the extractor walks the gallery (or scans the page directly
// when the gallery cannot be entered) and the download manager stores every
// discovered image under <base>/<label>/<label>_<index><ext>.
//
// Attempts are repeated with a constant delay until one downloads at least
// one image, or until the configured attempt count is used up. Finding the
// place but no images is not a failure: the last such result is returned.
//
// Usage:
//
//	s, err := scraper.New(cfg, scraper.WithObserver(progress))
//	if err != nil {
//	    return err
//	}
//	result, err := s.Run(ctx, "Eiffel Tower")
//	switch {
//	case scraper.IsLocationNotFound(err):
//	    // no place matched
//	case scraper.IsRetriesExhausted(err):
//	    // every attempt failed
//	}
package scraper
