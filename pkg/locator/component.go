package locator

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/imagematch"
	"github.com/devicelab-dev/uiscout/pkg/query"
	"github.com/devicelab-dev/uiscout/pkg/selector"
)

// DefaultLongPress is the hold duration used when a caller passes zero.
const DefaultLongPress = 2 * time.Second

// Component is a resolved element handle. It binds either a hierarchy node
// or a single image match, plus the window and language it was resolved
// under. Node-backed components support attribute access and scoped
// re-querying; image-backed components carry geometry only.
type Component struct {
	loc    *Locator
	node   *xmlquery.Node
	match  *imagematch.Match
	lang   core.Language
	window core.Window
	bounds core.Bounds
}

func newNodeComponent(loc *Locator, node *xmlquery.Node, lang core.Language, window core.Window) (*Component, error) {
	raw := node.SelectAttr("bounds")
	if raw == "" {
		raw = "0,0,0,0"
	}
	bounds, err := core.ParseBounds(raw)
	if err != nil {
		return nil, core.ErrTreeParse.
			WithMessagef("node carries malformed bounds %q", raw).
			WithCause(err)
	}
	return &Component{loc: loc, node: node, lang: lang, window: window, bounds: bounds}, nil
}

func newImageComponent(loc *Locator, match imagematch.Match, lang core.Language, window core.Window) *Component {
	m := match
	return &Component{loc: loc, match: &m, lang: lang, window: window, bounds: m.Bounds}
}

// Window returns the display surface the component was resolved on.
func (c *Component) Window() core.Window {
	return c.window
}

// Language returns the language the component was resolved under.
func (c *Component) Language() core.Language {
	return c.lang
}

// Bounds returns the component's rectangle on the display.
func (c *Component) Bounds() core.Bounds {
	return c.bounds
}

// Center returns the component's center point.
func (c *Component) Center() core.Point {
	return c.bounds.Center()
}

// Size returns the component's width and height.
func (c *Component) Size() core.Size {
	return c.bounds.Size()
}

// Match returns the image match the component was resolved from, or nil for
// node-backed components.
func (c *Component) Match() *imagematch.Match {
	return c.match
}

// Text returns the node's text attribute, or "" for image-backed components.
func (c *Component) Text() string {
	if c.node == nil {
		return ""
	}
	return c.node.SelectAttr("text")
}

// Description returns the node's content description, or "" for image-backed
// components.
func (c *Component) Description() string {
	if c.node == nil {
		return ""
	}
	return c.node.SelectAttr("content-desc")
}

// Attribute looks up a node attribute by name.
func (c *Component) Attribute(name string) (string, bool) {
	if c.node == nil {
		return "", false
	}
	for _, attr := range c.node.Attr {
		if attr.Name.Local == name {
			return attr.Value, true
		}
	}
	return "", false
}

func (c *Component) flag(name string) bool {
	v, _ := c.Attribute(name)
	return v == "true"
}

// IsVisible reports the node's visible attribute.
func (c *Component) IsVisible() bool {
	return c.flag("visible")
}

// IsSelected reports the node's selected attribute.
func (c *Component) IsSelected() bool {
	return c.flag("selected")
}

// IsEnabled reports the node's enabled attribute.
func (c *Component) IsEnabled() bool {
	return c.flag("enabled")
}

// IsChecked reports the node's checked attribute.
func (c *Component) IsChecked() bool {
	return c.flag("checked")
}

// Tap taps the component's center.
func (c *Component) Tap(ctx context.Context) error {
	center := c.Center()
	return c.loc.source.Tap(ctx, c.Window().DisplayID, center.X, center.Y)
}

// LongPress presses and holds the component's center. A zero duration selects
// DefaultLongPress.
func (c *Component) LongPress(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		duration = DefaultLongPress
	}
	center := c.Center()
	return c.loc.source.LongPress(ctx, c.Window().DisplayID, center.X, center.Y, duration)
}

// InputText types into the component's display. The component should be
// focused first, usually by tapping it.
func (c *Component) InputText(ctx context.Context, text string) error {
	return c.loc.source.InputText(ctx, c.Window().DisplayID, text)
}

// ClearText clears the focused element's text on the component's display.
func (c *Component) ClearText(ctx context.Context) error {
	return c.loc.source.ClearText(ctx, c.Window().DisplayID)
}

// Find resolves a selector inside this component's subtree and returns the
// first match. Scoped lookups evaluate the already-fetched snapshot once;
// the Absent and Timeout options do not apply.
func (c *Component) Find(sel *selector.Selector, opts FindOptions) (*Component, error) {
	found, err := c.FindAll(sel, opts)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, core.ErrElementNotFound.
			WithMessagef("no descendant matches %s", sel.Describe(c.scopedLanguage(opts)))
	}
	return found[0], nil
}

// FindAll resolves a selector against every descendant of this component's
// node, in document order.
func (c *Component) FindAll(sel *selector.Selector, opts FindOptions) ([]*Component, error) {
	return c.scopedQuery(sel, opts, scopeDescendant)
}

// Child resolves a selector against the component's direct children only.
func (c *Component) Child(sel *selector.Selector, opts FindOptions) ([]*Component, error) {
	return c.scopedQuery(sel, opts, scopeChild)
}

func (c *Component) scopedLanguage(opts FindOptions) core.Language {
	if opts.Language != "" {
		return opts.Language
	}
	return c.lang
}

func (c *Component) scopedQuery(sel *selector.Selector, opts FindOptions, scope func(string) string) ([]*Component, error) {
	if c.node == nil {
		return nil, core.ErrMethodMismatch.
			WithMessage("scoped lookup requires a hierarchy node, not an image match")
	}
	lang := c.scopedLanguage(opts)
	q, err := c.loc.compiler.Compile(sel, query.Options{
		Language:    lang,
		Combination: opts.Combination,
	})
	if err != nil {
		return nil, err
	}
	if q.Method != query.MethodQuery {
		return nil, core.ErrMethodMismatch.
			WithMessage("scoped lookup requires a query method selector, not an image")
	}

	nodes, err := query.EvaluateXPath(c.node, scope(q.Syntax))
	if err != nil {
		return nil, err
	}
	return wrapNodes(c.loc, nodes, lang, c.window)
}

// scopeDescendant rebases an absolute //-query onto the context node's
// subtree.
func scopeDescendant(expr string) string {
	if strings.HasPrefix(expr, "//") {
		return "." + expr
	}
	return expr
}

// scopeChild rebases an absolute //-query onto the context node's direct
// children.
func scopeChild(expr string) string {
	if strings.HasPrefix(expr, "//") {
		return "./" + strings.TrimPrefix(expr, "//")
	}
	return expr
}

func wrapNodes(loc *Locator, nodes []*xmlquery.Node, lang core.Language, window core.Window) ([]*Component, error) {
	out := make([]*Component, 0, len(nodes))
	for _, node := range nodes {
		comp, err := newNodeComponent(loc, node, lang, window)
		if err != nil {
			return nil, err
		}
		out = append(out, comp)
	}
	return out, nil
}

// Screenshot captures the display and writes the component's cropped region
// to path as PNG.
func (c *Component) Screenshot(ctx context.Context, path string) error {
	data, err := c.loc.source.Capture(ctx, c.Window().DisplayID)
	if err != nil {
		return err
	}
	frame, err := imagematch.Decode(data)
	if err != nil {
		return err
	}

	b := c.bounds
	crop := image.Rect(b.Left, b.Top, b.Right, b.Bottom).Intersect(frame.Bounds())
	if crop.Empty() {
		return fmt.Errorf("component bounds %s are outside the captured frame", b)
	}
	out := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(out, out.Bounds(), frame, crop.Min, draw.Src)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create screenshot file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, out); err != nil {
		return fmt.Errorf("encode screenshot: %w", err)
	}
	return nil
}
