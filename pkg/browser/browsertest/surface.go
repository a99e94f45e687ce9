// Package browsertest provides a scriptable in-memory browser.Surface for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gmapsimages/pkg/browser"
)

// Element is a fake page node
type Element struct {
	Name   string
	Attrs  map[string]string
	Text   string
	Hidden bool

	// StaleReads makes the next n Attribute calls fail with browser.ErrStale
	StaleReads int
	// Intercepted makes native clicks fail with browser.ErrIntercepted
	Intercepted bool
	// OnClick runs after any successful click, native or scripted
	OnClick func() error

	Clicks       int
	ScriptClicks int
	Typed        []string
}

// Describe implements browser.Element
func (e *Element) Describe() string {
	return "<fake " + e.Name + ">"
}

// NewImage returns a displayed element whose src is url
func NewImage(name, url string) *Element {
	return &Element{Name: name, Attrs: map[string]string{"src": url}}
}

// Surface is a fake browser.Surface. Elements are looked up by locator query.
type Surface struct {
	mu sync.Mutex

	elements map[string][]*Element

	// Finder overrides the static element table when set
	Finder func(loc browser.Locator) []*Element
	// EvalFunc answers Evaluate calls; the returned value is JSON-decoded into out
	EvalFunc func(script string) (interface{}, error)
	// NavigateFunc runs on every Navigate
	NavigateFunc func(url string) error
	// PageHTML is returned by HTML
	PageHTML string
	// FindErr and HTMLErr force FindElements and HTML to fail
	FindErr error
	HTMLErr error

	Navigations []string
	Reloads     int
	Closed      bool
}

// New creates an empty fake surface
func New() *Surface {
	return &Surface{elements: make(map[string][]*Element)}
}

// Set registers the elements a locator query should return
func (s *Surface) Set(query string, elements ...*Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[query] = elements
}

// Clear removes all elements for a query
func (s *Surface) Clear(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.elements, query)
}

func (s *Surface) element(el browser.Element) (*Element, error) {
	fe, ok := el.(*Element)
	if !ok {
		return nil, fmt.Errorf("foreign element %v", el)
	}
	return fe, nil
}

func (s *Surface) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.Navigations = append(s.Navigations, url)
	fn := s.NavigateFunc
	s.mu.Unlock()

	if fn != nil {
		return fn(url)
	}
	return nil
}

func (s *Surface) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reloads++
	return ctx.Err()
}

func (s *Surface) FindElements(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.FindErr != nil {
		return nil, s.FindErr
	}

	var found []*Element
	if s.Finder != nil {
		found = s.Finder(loc)
	} else {
		s.mu.Lock()
		found = s.elements[loc.Query]
		s.mu.Unlock()
	}

	out := make([]browser.Element, 0, len(found))
	for _, e := range found {
		out = append(out, e)
	}
	return out, nil
}

func (s *Surface) IsDisplayed(ctx context.Context, el browser.Element) (bool, error) {
	fe, err := s.element(el)
	if err != nil {
		return false, err
	}
	return !fe.Hidden, nil
}

func (s *Surface) Click(ctx context.Context, el browser.Element) error {
	fe, err := s.element(el)
	if err != nil {
		return err
	}
	if fe.Intercepted {
		return browser.ErrIntercepted
	}
	fe.Clicks++
	if fe.OnClick != nil {
		return fe.OnClick()
	}
	return nil
}

func (s *Surface) ScriptClick(ctx context.Context, el browser.Element) error {
	fe, err := s.element(el)
	if err != nil {
		return err
	}
	fe.ScriptClicks++
	if fe.OnClick != nil {
		return fe.OnClick()
	}
	return nil
}

func (s *Surface) ScrollIntoView(ctx context.Context, el browser.Element) error {
	_, err := s.element(el)
	return err
}

func (s *Surface) Attribute(ctx context.Context, el browser.Element, name string) (string, bool, error) {
	fe, err := s.element(el)
	if err != nil {
		return "", false, err
	}
	if fe.StaleReads > 0 {
		fe.StaleReads--
		return "", false, browser.ErrStale
	}
	v, ok := fe.Attrs[name]
	return v, ok && v != "", nil
}

func (s *Surface) Text(ctx context.Context, el browser.Element) (string, error) {
	fe, err := s.element(el)
	if err != nil {
		return "", err
	}
	return fe.Text, nil
}

func (s *Surface) Type(ctx context.Context, el browser.Element, text string, submit bool) error {
	fe, err := s.element(el)
	if err != nil {
		return err
	}
	if submit {
		text += "\n"
	}
	fe.Typed = append(fe.Typed, text)
	return nil
}

func (s *Surface) Evaluate(ctx context.Context, script string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.EvalFunc == nil {
		return nil
	}
	v, err := s.EvalFunc(script)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *Surface) HTML(ctx context.Context) (string, error) {
	if s.HTMLErr != nil {
		return "", s.HTMLErr
	}
	return s.PageHTML, ctx.Err()
}

func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

var _ browser.Surface = (*Surface)(nil)
