// Package locator unifies selector compilation, UI-state synchronization,
// node resolution, and image matching behind one element lookup facade. A
// lookup compiles the selector once, then polls the target display until the
// requested visibility holds, materializing component handles bound to the
// matched nodes or image regions.
package locator

import (
	"context"
	"sync"
	"time"

	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/imagematch"
	"github.com/devicelab-dev/uiscout/pkg/logger"
	"github.com/devicelab-dev/uiscout/pkg/query"
	"github.com/devicelab-dev/uiscout/pkg/selector"
	"github.com/devicelab-dev/uiscout/pkg/uistate"
)

// DefaultFindTimeout bounds lookups whose context carries no deadline.
const DefaultFindTimeout = 15 * time.Second

// Source is everything the facade needs from the device portal: state
// synchronization, frame capture, and input passthroughs. portal.Client
// implements it.
type Source interface {
	uistate.Source
	Capture(ctx context.Context, displayID int) ([]byte, error)
	Tap(ctx context.Context, displayID, x, y int) error
	LongPress(ctx context.Context, displayID, x, y int, duration time.Duration) error
	InputText(ctx context.Context, displayID int, text string) error
	ClearText(ctx context.Context, displayID int) error
}

// Config carries the facade's defaults. Zero values select the default
// window, english, and DefaultFindTimeout.
type Config struct {
	// Window is the display surface lookups target unless a selector or
	// per-call option overrides it.
	Window core.Window

	// Language selects which translation of multi-language selector values
	// to compile.
	Language core.Language

	// Sync paces state synchronization. One synchronizer runs per display.
	Sync uistate.Config

	// PollInterval adds a delay between resolution spins. Zero spins as
	// fast as state synchronization and capture round trips allow.
	PollInterval time.Duration

	// FindTimeout is the per-lookup deadline applied when neither the
	// context nor the call options carry one.
	FindTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Window == (core.Window{}) {
		c.Window = core.DefaultWindow()
	}
	if c.Language == "" {
		c.Language = core.LanguageEnglish
	}
	if c.FindTimeout <= 0 {
		c.FindTimeout = DefaultFindTimeout
	}
	return c
}

// FindOptions adjusts one lookup. The zero value waits for the element to be
// visible, using the locator's language and window.
type FindOptions struct {
	// Absent inverts the visibility condition: the lookup succeeds once no
	// element matches, returning no components.
	Absent bool

	// Combination lists the criteria to AND together, overriding default
	// single-criterion resolution.
	Combination []selector.Key

	// Language overrides the locator's language for this lookup.
	Language core.Language

	// Window overrides the target display for this lookup.
	Window *core.Window

	// Timeout overrides the lookup deadline. Zero falls back to the
	// context's deadline, then to the configured FindTimeout.
	Timeout time.Duration
}

func (o FindOptions) language(def core.Language) core.Language {
	if o.Language != "" {
		return o.Language
	}
	return def
}

// Locator resolves selectors into component handles against a live device
// surface.
type Locator struct {
	source   Source
	cfg      Config
	compiler query.Compiler

	mu    sync.Mutex
	syncs map[int]*uistate.Synchronizer
}

// New creates a Locator over the given portal source.
func New(source Source, cfg Config) *Locator {
	return &Locator{
		source:   source,
		cfg:      cfg.withDefaults(),
		compiler: query.NewXPathCompiler(),
		syncs:    make(map[int]*uistate.Synchronizer),
	}
}

// Close stops every display's synchronization task. The locator must not be
// used afterwards.
func (l *Locator) Close() {
	l.mu.Lock()
	syncs := l.syncs
	l.syncs = make(map[int]*uistate.Synchronizer)
	l.mu.Unlock()

	for _, s := range syncs {
		s.Close()
	}
}

// Find resolves the selector and returns the primary (first, in document
// order) matching component. In absent mode a nil component with a nil error
// means the element is confirmed gone.
func (l *Locator) Find(ctx context.Context, sel *selector.Selector, opts FindOptions) (*Component, error) {
	comps, err := l.resolve(ctx, sel, opts)
	if err != nil {
		return nil, err
	}
	if len(comps) == 0 {
		return nil, nil
	}
	return comps[0], nil
}

// FindAll resolves the selector and returns every matching component in
// document order. In absent mode success returns an empty slice.
func (l *Locator) FindAll(ctx context.Context, sel *selector.Selector, opts FindOptions) ([]*Component, error) {
	return l.resolve(ctx, sel, opts)
}

func (l *Locator) resolve(ctx context.Context, sel *selector.Selector, opts FindOptions) ([]*Component, error) {
	lang := opts.language(l.cfg.Language)
	window := l.targetWindow(sel, opts)

	q, err := l.compiler.Compile(sel, query.Options{
		Language:    lang,
		Combination: opts.Combination,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := l.withDeadline(ctx, opts.Timeout)
	defer cancel()
	visible := !opts.Absent

	if q.Method == query.MethodImage {
		matches, err := l.resolveImage(ctx, q, window, visible)
		if err != nil {
			return nil, err
		}
		comps := make([]*Component, 0, len(matches))
		for _, m := range matches {
			comps = append(comps, newImageComponent(l, m, lang, window))
		}
		return comps, nil
	}

	resolver := NewResolver(l.syncFor(window), l.cfg.PollInterval)
	nodes, err := resolver.Resolve(ctx, q, visible)
	if err != nil {
		return nil, err
	}
	return wrapNodes(l, nodes, lang, window)
}

// resolveImage captures frames and matches the reference image against them
// until the visibility condition holds, mirroring the node resolution state
// machine.
func (l *Locator) resolveImage(ctx context.Context, q query.Compiled, window core.Window, visible bool) ([]imagematch.Match, error) {
	tpl, err := imagematch.Load(q.ImagePath)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	state := StatePolling
	spins := 0
	var matches []imagematch.Match

	for state == StatePolling {
		select {
		case <-ctx.Done():
			state = StateTimedOut
			continue
		default:
		}

		data, err := l.source.Capture(ctx, window.DisplayID)
		if err != nil {
			if isDeadline(err) {
				state = StateTimedOut
				continue
			}
			return nil, err
		}
		frame, err := imagematch.Decode(data)
		if err != nil {
			return nil, err
		}
		found := imagematch.FindAll(frame, tpl, q.Threshold)
		spins++

		switch {
		case visible && len(found) > 0:
			matches = found
			state = StateSatisfied
		case !visible && len(found) == 0:
			state = StateSatisfied
		case l.cfg.PollInterval > 0:
			select {
			case <-ctx.Done():
				state = StateTimedOut
			case <-time.After(l.cfg.PollInterval):
			}
		}
	}

	logger.Debug("image resolve %q visible=%t: %s, %d matches, %d spins [%v]",
		q.ImagePath, visible, state, len(matches), spins, time.Since(start))
	if state == StateTimedOut {
		return nil, waitTimeout(visible, map[string]interface{}{
			"image":   q.ImagePath,
			"visible": visible,
		})
	}
	return matches, nil
}

// syncFor returns the display's synchronizer, starting one on first use.
func (l *Locator) syncFor(window core.Window) *uistate.Synchronizer {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s, ok := l.syncs[window.DisplayID]; ok {
		return s
	}
	s := uistate.New(l.source, window, l.cfg.Sync)
	l.syncs[window.DisplayID] = s
	return s
}

func (l *Locator) targetWindow(sel *selector.Selector, opts FindOptions) core.Window {
	if opts.Window != nil {
		return *opts.Window
	}
	if sel.Window != nil {
		return *sel.Window
	}
	return l.cfg.Window
}

func (l *Locator) withDeadline(ctx context.Context, override time.Duration) (context.Context, context.CancelFunc) {
	if override > 0 {
		return context.WithTimeout(ctx, override)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.cfg.FindTimeout)
}
