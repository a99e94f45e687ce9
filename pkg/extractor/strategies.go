package extractor

import (
	"fmt"

	"gmapsimages/pkg/browser"
	"gmapsimages/pkg/navigator"
)

// Strategies holds the ordered locator lists used inside the photo view
type Strategies struct {
	// GalleryEntry finds a thumbnail that opens the single image view
	GalleryEntry []browser.Locator
	// PhotosLink is clicked between failed gallery entry attempts
	PhotosLink []browser.Locator
	// GalleryIndicators detect the single image view
	GalleryIndicators []browser.Locator
	// CurrentImage finds the image currently shown in the gallery
	CurrentImage []browser.Locator
	// Next finds the control that advances the gallery
	Next []browser.Locator
	// DirectImages supplements the direct scan script query
	DirectImages []browser.Locator
}

// DefaultStrategies returns locators for the current Google Maps photo view
func DefaultStrategies() Strategies {
	return Strategies{
		GalleryEntry: []browser.Locator{
			browser.CSS(`div[role='img'], img.qaFoQ`),
			browser.CSS(`div.loaded-media-item-container img`),
			browser.CSS(`div.gallery-image-container img`),
			browser.CSS(`img.qTegM, img.r7MLu, img.OVwCQd`),
			browser.CSS(`div.AdyRSe, div.U39Pmb`),
			browser.CSS(`div.photos-album-container img`),
			browser.CSS(`img[src*='googleusercontent']`),
		},
		PhotosLink: []browser.Locator{
			browser.XPath(`//a[contains(text(), 'Photos')] | //span[contains(text(), 'Photos')]`),
		},
		GalleryIndicators: navigator.DefaultStrategies().GalleryIndicators,
		CurrentImage: []browser.Locator{
			browser.CSS(`img.aIMqZ, div.OhtVzd img`),
			browser.CSS(`div.YmEk1d img, img.tK6ULc`),
			browser.CSS(`div[role='main'] img[src*='googleusercontent']`),
			browser.CSS(`div.gallery-image-high-res img`),
			browser.CSS(`img[style*='transform']`),
			browser.CSS(`div.gallery-image-container img`),
		},
		Next: []browser.Locator{
			browser.CSS(`button[aria-label='Next photo'], button[aria-label='Next']`),
			browser.CSS(`[jsaction*='pane.nextbatch']`),
			browser.CSS(`button.mL3Fgc, button[aria-label*='next']`),
			browser.CSS(`button.tit8B, button.aomaEc`),
			browser.XPath(`//button[contains(@aria-label, 'Next')]`),
			browser.CSS(`[aria-label*='next' i]`),
		},
		DirectImages: []browser.Locator{
			browser.CSS(`img[src*='googleusercontent']`),
			browser.CSS(`div.section-image-container img`),
			browser.CSS(`div.photos-album-container img`),
			browser.CSS(`img.qaFoQ`),
		},
	}
}

// imageSourcesScript evaluates to the src of every img whose source
// contains host
func imageSourcesScript(host string) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll('img'))
	.filter(img => img.src && img.src.includes(%q))
	.map(img => img.src)`, host)
}
