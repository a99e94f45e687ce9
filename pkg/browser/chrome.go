package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"gmapsimages/pkg/logger"
)

// ChromeOptions configures the automated Chrome instance
type ChromeOptions struct {
	Headless        bool
	WindowWidth     int
	WindowHeight    int
	UserAgent       string
	ExecPath        string
	PageLoadTimeout time.Duration
	Logger          logger.Logger
}

// Chrome is a Surface backed by a dedicated Chrome process
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        ChromeOptions
	log         logger.Logger
}

type chromeElement struct {
	node *cdp.Node
}

func (e *chromeElement) Describe() string {
	if e.node == nil {
		return "<nil>"
	}
	return fmt.Sprintf("<%s #%d>", strings.ToLower(e.node.NodeName), e.node.NodeID)
}

// ChromeFactory returns a SurfaceFactory that launches a new Chrome per call
func ChromeFactory(opts ChromeOptions) SurfaceFactory {
	return func(ctx context.Context) (Surface, error) {
		return NewChrome(ctx, opts)
	}
}

// NewChrome launches Chrome and opens a blank tab. The process lives until
// Close is called or parent is cancelled.
func NewChrome(parent context.Context, opts ChromeOptions) (*Chrome, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// The first Run starts the browser
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"headless": opts.Headless,
		"window":   fmt.Sprintf("%dx%d", opts.WindowWidth, opts.WindowHeight),
	}).Debug("Browser started")

	return &Chrome{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opts:        opts,
		log:         log,
	}, nil
}

// scope derives a chromedp context bounded by the caller's deadline and cancellation
func (c *Chrome) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(c.ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(c.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := c.scope(ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url, bounded by the page load timeout
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if c.opts.PageLoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.PageLoadTimeout)
		defer cancel()
	}
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Reload reloads the current page
func (c *Chrome) Reload(ctx context.Context) error {
	if err := c.run(ctx, chromedp.Reload()); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// FindElements returns the nodes matching loc at this moment
func (c *Chrome) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	var by chromedp.QueryOption
	switch loc.Kind {
	case KindCSS:
		by = chromedp.ByQueryAll
	case KindXPath:
		by = chromedp.BySearch
	case KindScript:
		by = chromedp.ByJSPath
	default:
		return nil, fmt.Errorf("unsupported locator kind %v", loc.Kind)
	}

	var nodes []*cdp.Node
	if err := c.run(ctx, chromedp.Nodes(loc.Query, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %v: %w", loc, err)
	}

	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromeElement{node: n})
	}
	return elements, nil
}

const (
	jsIsDisplayed = `function() {
		if (!this.isConnected) return false;
		const r = this.getBoundingClientRect();
		const s = window.getComputedStyle(this);
		return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
	}`
	jsScrollIntoView = `function() {
		if (!this.isConnected) return false;
		this.scrollIntoView({block: 'center', inline: 'center'});
		return true;
	}`
	// jsClickTarget reports whether a click at the element centre would reach it
	jsClickTarget = `function() {
		if (!this.isConnected) return 'stale';
		const r = this.getBoundingClientRect();
		const top = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
		return (top && (top === this || this.contains(top))) ? 'ok' : 'intercepted';
	}`
	jsScriptClick = `function() {
		if (!this.isConnected) return false;
		this.click();
		return true;
	}`
	jsAttribute = `function(name) {
		if (!this.isConnected) return {stale: true};
		let v = null;
		if (name in this && typeof this[name] === 'string') {
			v = this[name];
		} else {
			v = this.getAttribute(name);
		}
		return {stale: false, ok: v !== null && v !== undefined && v !== '', value: v || ''};
	}`
	jsText = `function() {
		if (!this.isConnected) return null;
		return this.innerText || this.textContent || '';
	}`
)

func (c *Chrome) node(el Element) (*cdp.Node, error) {
	ce, ok := el.(*chromeElement)
	if !ok || ce.node == nil {
		return nil, fmt.Errorf("element %v does not belong to this browser", el)
	}
	return ce.node, nil
}

// callOn runs fn with the element bound to this. A node the page has dropped
// surfaces as ErrStale.
func (c *Chrome) callOn(ctx context.Context, el Element, fn string, res interface{}, args ...interface{}) error {
	n, err := c.node(el)
	if err != nil {
		return err
	}
	err = c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return callFunctionOnNode(ctx, n, fn, res, args...)
	}))
	if err != nil && isDetached(err) {
		return fmt.Errorf("%w: %v", ErrStale, err)
	}
	return err
}

// callFunctionOnNode resolves n to a remote object, calls fn with it as this
// and decodes the by-value result into res. res may be nil.
func callFunctionOnNode(ctx context.Context, n *cdp.Node, fn string, res interface{}, args ...interface{}) error {
	obj, err := dom.ResolveNode().WithNodeID(n.NodeID).Do(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = runtime.ReleaseObject(obj.ObjectID).Do(ctx)
	}()

	callArgs, err := callArguments(args)
	if err != nil {
		return err
	}

	result, exception, err := runtime.CallFunctionOn(fn).
		WithObjectID(obj.ObjectID).
		WithArguments(callArgs).
		WithReturnByValue(true).
		WithAwaitPromise(true).
		Do(ctx)
	if err != nil {
		return err
	}
	return decodeCallResult(result, exception, res)
}

func callArguments(args []interface{}) ([]*runtime.CallArgument, error) {
	callArgs := make([]*runtime.CallArgument, len(args))
	for i, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d: %w", i, err)
		}
		callArgs[i] = &runtime.CallArgument{Value: raw}
	}
	return callArgs, nil
}

// decodeCallResult unmarshals a by-value result into res. An undefined
// result leaves res untouched.
func decodeCallResult(result *runtime.RemoteObject, exception *runtime.ExceptionDetails, res interface{}) error {
	if exception != nil {
		return fmt.Errorf("script exception: %s", exception.Text)
	}
	if res == nil || result == nil || len(result.Value) == 0 {
		return nil
	}
	return json.Unmarshal(result.Value, res)
}

func isDetached(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "No node with given id") ||
		strings.Contains(msg, "Could not find node") ||
		strings.Contains(msg, "Node is detached") ||
		strings.Contains(msg, "Cannot find context with specified id")
}

// IsDisplayed reports whether the element is attached and has a visible box
func (c *Chrome) IsDisplayed(ctx context.Context, el Element) (bool, error) {
	var shown bool
	if err := c.callOn(ctx, el, jsIsDisplayed, &shown); err != nil {
		return false, err
	}
	return shown, nil
}

// ScrollIntoView centres the element in the viewport
func (c *Chrome) ScrollIntoView(ctx context.Context, el Element) error {
	var ok bool
	if err := c.callOn(ctx, el, jsScrollIntoView, &ok); err != nil {
		return err
	}
	if !ok {
		return ErrStale
	}
	return nil
}

// Click dispatches a mouse click at the element centre
func (c *Chrome) Click(ctx context.Context, el Element) error {
	var target string
	if err := c.callOn(ctx, el, jsClickTarget, &target); err != nil {
		return err
	}
	switch target {
	case "stale":
		return ErrStale
	case "intercepted":
		return ErrIntercepted
	}

	n, err := c.node(el)
	if err != nil {
		return err
	}
	if err := c.run(ctx, chromedp.MouseClickNode(n)); err != nil {
		if isDetached(err) {
			return fmt.Errorf("%w: %v", ErrStale, err)
		}
		return fmt.Errorf("%w: %v", ErrIntercepted, err)
	}
	return nil
}

// ScriptClick calls element.click() from page script
func (c *Chrome) ScriptClick(ctx context.Context, el Element) error {
	var ok bool
	if err := c.callOn(ctx, el, jsScriptClick, &ok); err != nil {
		return err
	}
	if !ok {
		return ErrStale
	}
	return nil
}

type attributeResult struct {
	Stale bool   `json:"stale"`
	OK    bool   `json:"ok"`
	Value string `json:"value"`
}

// Attribute reads a property such as src, or the named attribute
func (c *Chrome) Attribute(ctx context.Context, el Element, name string) (string, bool, error) {
	var res attributeResult
	if err := c.callOn(ctx, el, jsAttribute, &res, name); err != nil {
		return "", false, err
	}
	if res.Stale {
		return "", false, ErrStale
	}
	return res.Value, res.OK, nil
}

// Text returns the rendered text of the element
func (c *Chrome) Text(ctx context.Context, el Element) (string, error) {
	var text *string
	if err := c.callOn(ctx, el, jsText, &text); err != nil {
		return "", err
	}
	if text == nil {
		return "", ErrStale
	}
	return *text, nil
}

// Type clears the element and types text into it
func (c *Chrome) Type(ctx context.Context, el Element, text string, submit bool) error {
	n, err := c.node(el)
	if err != nil {
		return err
	}
	if submit {
		text += kb.Enter
	}
	ids := []cdp.NodeID{n.NodeID}
	err = c.run(ctx,
		chromedp.Clear(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, text, chromedp.ByNodeID),
	)
	if err != nil {
		if isDetached(err) {
			return fmt.Errorf("%w: %v", ErrStale, err)
		}
		return fmt.Errorf("type into %s: %w", el.Describe(), err)
	}
	return nil
}

// Evaluate runs script and decodes its JSON result into out
func (c *Chrome) Evaluate(ctx context.Context, script string, out interface{}) error {
	if err := c.run(ctx, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// HTML returns the serialized document
func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// Close shuts down the tab and the browser process
func (c *Chrome) Close() error {
	err := chromedp.Cancel(c.ctx)
	c.cancel()
	c.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	c.log.Debug("Browser closed")
	return nil
}
