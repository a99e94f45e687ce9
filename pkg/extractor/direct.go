package extractor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "gmapsimages/pkg/errors"
	"gmapsimages/pkg/models"
	"gmapsimages/pkg/normalize"
)

var backgroundURL = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)

// DirectScan collects every asset image on the current page in a single
// pass. The script query is supplemented by CSS locators and a parse of the
// page HTML when it yields fewer than MinDirectResults references.
func (e *Extractor) DirectScan(ctx context.Context) (Result, error) {
	h := NewHarvest()
	result := Result{State: models.GalleryNotEntered, Termination: models.TerminationDirectScan, Steps: 1}

	var urls []string
	scriptErr := e.surface.Evaluate(ctx, imageSourcesScript(e.opts.AssetHost), &urls)
	if scriptErr != nil {
		e.log.WithError(scriptErr).Debug("Image script query failed")
	}
	for _, u := range urls {
		if normalize.IsAssetURL(u, e.opts.AssetHost) {
			e.record(h, u)
		}
	}
	e.log.WithField("count", h.Len()).Info("Script query finished")

	if ctx.Err() != nil {
		result.References = h.References()
		result.Termination = models.TerminationCancelled
		return result, ctx.Err()
	}

	if h.Len() < e.opts.MinDirectResults {
		cssErr := e.scanLocators(ctx, h)
		htmlErr := e.scanHTML(ctx, h)

		if scriptErr != nil && cssErr != nil && htmlErr != nil {
			result.References = h.References()
			return result, errs.Wrap(errs.ErrorTypeGalleryUnavailable,
				errors.Join(scriptErr, cssErr, htmlErr), "direct scan")
		}
	}

	result.References = h.References()
	e.log.WithField("count", len(result.References)).Info("Extracted image URLs directly from page")
	return result, nil
}

// scanLocators reads displayed images matched by the direct scan locators.
// It fails only when every locator query failed.
func (e *Extractor) scanLocators(ctx context.Context, h *Harvest) error {
	var failures []error
	for _, loc := range e.opts.Strategies.DirectImages {
		elements, err := e.surface.FindElements(ctx, loc)
		if err != nil {
			failures = append(failures, fmt.Errorf("%v: %w", loc, err))
			continue
		}
		for _, el := range elements {
			if shown, err := e.surface.IsDisplayed(ctx, el); err != nil || !shown {
				continue
			}
			src, ok, err := e.surface.Attribute(ctx, el, "src")
			if err != nil || !ok {
				continue
			}
			if normalize.IsAssetURL(src, e.opts.AssetHost) {
				e.record(h, src)
			}
		}
	}
	if len(failures) > 0 && len(failures) == len(e.opts.Strategies.DirectImages) {
		return errors.Join(failures...)
	}
	return nil
}

func (e *Extractor) scanHTML(ctx context.Context, h *Harvest) error {
	page, err := e.surface.HTML(ctx)
	if err != nil {
		return fmt.Errorf("page html: %w", err)
	}
	urls, err := htmlSources(page, e.opts.AssetHost)
	if err != nil {
		return err
	}
	for _, u := range urls {
		e.record(h, u)
	}
	return nil
}

// htmlSources returns asset URLs from img src and data-src attributes and
// inline background images, in document order.
func htmlSources(page, host string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}

	var urls []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"src", "data-src"} {
			if v, ok := s.Attr(attr); ok && normalize.IsAssetURL(v, host) {
				urls = append(urls, v)
			}
		}
	})
	doc.Find("[style*='background-image']").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		for _, m := range backgroundURL.FindAllStringSubmatch(style, -1) {
			if normalize.IsAssetURL(m[1], host) {
				urls = append(urls, m[1])
			}
		}
	})
	return urls, nil
}
