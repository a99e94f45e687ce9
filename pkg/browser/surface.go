// Package browser defines the page-automation capability the scraper drives
// and a Chrome implementation of it built on chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStale is returned when an element handle no longer refers to a node in the document
	ErrStale = errors.New("element is no longer attached to the page")
	// ErrIntercepted is returned when another element would receive a click
	ErrIntercepted = errors.New("click intercepted by another element")
	// ErrNotFound is returned when no locator strategy produced a usable element
	ErrNotFound = errors.New("no matching element")
)

// LocatorKind selects how a Locator query is evaluated
type LocatorKind int

const (
	// KindCSS matches with document.querySelectorAll
	KindCSS LocatorKind = iota
	// KindXPath matches with an XPath expression
	KindXPath
	// KindScript evaluates a JavaScript expression yielding one element or null
	KindScript
)

func (k LocatorKind) String() string {
	switch k {
	case KindCSS:
		return "css"
	case KindXPath:
		return "xpath"
	case KindScript:
		return "script"
	default:
		return "unknown"
	}
}

// Locator is one strategy for finding page elements
type Locator struct {
	Kind  LocatorKind
	Query string
}

// CSS returns a CSS selector locator
func CSS(query string) Locator {
	return Locator{Kind: KindCSS, Query: query}
}

// XPath returns an XPath locator
func XPath(query string) Locator {
	return Locator{Kind: KindXPath, Query: query}
}

// Script returns a JavaScript expression locator
func Script(expr string) Locator {
	return Locator{Kind: KindScript, Query: expr}
}

func (l Locator) String() string {
	return fmt.Sprintf("%s(%s)", l.Kind, l.Query)
}

// Element is an opaque handle to a node on the page. Handles are only valid
// for the Surface that returned them.
type Element interface {
	Describe() string
}

// Surface is the page-automation capability: navigate, locate, inspect and
// interact. Implementations are used from a single goroutine.
type Surface interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error

	// FindElements returns all current matches without waiting
	FindElements(ctx context.Context, loc Locator) ([]Element, error)
	IsDisplayed(ctx context.Context, el Element) (bool, error)

	// Click performs a native click and may return ErrIntercepted
	Click(ctx context.Context, el Element) error
	// ScriptClick dispatches the click from page script
	ScriptClick(ctx context.Context, el Element) error
	ScrollIntoView(ctx context.Context, el Element) error

	// Attribute reads an attribute or property; it may return ErrStale
	Attribute(ctx context.Context, el Element, name string) (string, bool, error)
	Text(ctx context.Context, el Element) (string, error)
	// Type replaces the element's value with text, pressing Enter if submit is set
	Type(ctx context.Context, el Element, text string, submit bool) error

	// Evaluate runs script in the page and decodes the result into out
	Evaluate(ctx context.Context, script string, out interface{}) error
	HTML(ctx context.Context) (string, error)

	Close() error
}

// SurfaceFactory acquires a fresh Surface. The orchestrator calls it once per attempt.
type SurfaceFactory func(ctx context.Context) (Surface, error)

// IsTransient reports whether err is a recoverable page interaction failure
func IsTransient(err error) bool {
	return errors.Is(err, ErrStale) || errors.Is(err, ErrIntercepted) || errors.Is(err, ErrNotFound)
}
