package navigator

import (
	"fmt"
	"strings"

	"gmapsimages/pkg/browser"
)

// Strategies holds the ordered locator lists the navigator tries. Earlier
// entries are preferred.
type Strategies struct {
	SearchBox         []browser.Locator
	PlaceHeading      []browser.Locator
	ResultItems       []browser.Locator
	PlaceIndicators   []browser.Locator
	PhotoControls     []browser.Locator
	GalleryIndicators []browser.Locator
}

// DefaultStrategies returns locators for the current Google Maps markup
func DefaultStrategies() Strategies {
	return Strategies{
		SearchBox: []browser.Locator{
			browser.CSS(`input#searchboxinput`),
			browser.CSS(`input[name='q']`),
			browser.CSS(`input[aria-label*='Search']`),
		},
		PlaceHeading: []browser.Locator{
			browser.CSS(`h1.DUwDvf, div.fontHeadlineLarge, div[role='heading']`),
		},
		ResultItems: []browser.Locator{
			browser.CSS(`div.Nv2PK, div.hfpxzc, a.hfpxzc, div[jsaction*='placecard.card']`),
			browser.CSS(`div[role='article'], a[jsaction*='placepage'], div.section-result-content`),
		},
		PlaceIndicators: []browser.Locator{
			browser.CSS(`button[jsaction*='pane.rating.category']`),
			browser.CSS(`button[data-item-id='photos'], button[aria-label*='photo']`),
			browser.CSS(`div.RcCsl`),
		},
		PhotoControls: []browser.Locator{
			browser.CSS(`button[aria-label*='photo' i], button[data-item-id*='photo' i]`),
			browser.CSS(`a[aria-label*='photo' i], a[data-item-id*='photo' i]`),
			browser.CSS(`a[data-tab='images'], a[data-tab='photos']`),
			browser.XPath(`//button[.//div[contains(translate(text(),'PHOTOS','photos'),'photos')]]`),
			browser.XPath(`//a[.//div[contains(translate(text(),'PHOTOS','photos'),'photos')]]`),
			browser.CSS(`button[jsaction*='photo'], button[jsaction*='image']`),
			browser.CSS(`span.YbCJSd, div.bJP2oh, div.Yr7JMd`),
			browser.CSS(`div.U39Pmb img, div.AdyRSe`),
		},
		GalleryIndicators: []browser.Locator{
			browser.CSS(`div.loaded-media-item-container, img.qaFoQ, div.gallery-image-high-res`),
			browser.CSS(`button[aria-label='Next photo'], button[aria-label='Next']`),
			browser.CSS(`div.m6QErb.DxyBCb.kA9KIf.dS8AEf`),
			browser.CSS(`div.aomaEc, button.aomaEc`),
			browser.CSS(`div.U7izfe`),
			browser.CSS(`div.YbQ5dc`),
			browser.Script(`document.querySelector("div[role='dialog'][aria-label*='photo' i]")`),
		},
	}
}

// ResultsFor returns the result item locators followed by text matches on
// the location name.
func (s Strategies) ResultsFor(location string) []browser.Locator {
	needle := xpathLiteral(strings.ToLower(location))
	lower := `translate(., 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz')`

	locators := make([]browser.Locator, 0, len(s.ResultItems)+2)
	locators = append(locators, s.ResultItems...)
	locators = append(locators,
		browser.XPath(fmt.Sprintf(`//a[contains(%s, %s)]`, lower, needle)),
		browser.XPath(fmt.Sprintf(`//div[@role='article' and contains(%s, %s)]`, lower, needle)),
	)
	return locators
}

// xpathLiteral quotes s for use in an XPath 1.0 expression
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
