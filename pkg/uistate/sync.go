// Package uistate keeps compiled queries consistent with a live, changing UI
// surface. A Synchronizer polls the portal's state identifier, caches parsed
// hierarchy snapshots keyed by it, and evicts stale snapshots in the
// background.
package uistate

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/logger"
)

// StateUnknown is the sentinel before any state identifier has been observed.
const StateUnknown = -1

const hierarchyFormatXML = "xml"

// Default pacing constants. The sweep interval is ten stability ticks.
const (
	DefaultStableDelay   = 100 * time.Millisecond
	DefaultSweepInterval = 10 * time.Second
)

// Source fetches state identifiers and hierarchy snapshots from the device.
// portal.Client implements it.
type Source interface {
	StateID(ctx context.Context) (int, error)
	Hierarchy(ctx context.Context, displayID int, format string) ([]byte, error)
}

// Config carries the Synchronizer's pacing knobs. Zero values select the
// defaults.
type Config struct {
	// StableDelay is the pause between state-id polls while the surface is
	// still changing.
	StableDelay time.Duration

	// SweepInterval is the period of the background cache eviction task.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.StableDelay <= 0 {
		c.StableDelay = DefaultStableDelay
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

// Synchronizer tracks the latest observed state identifier and caches one
// parsed tree per identifier. Cache mutation by the eviction task and by
// fetch/insert is serialized through one mutex.
type Synchronizer struct {
	source Source
	window core.Window
	cfg    Config

	mu     sync.Mutex
	latest int
	cache  map[int]*xmlquery.Node

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New starts a Synchronizer and its background eviction task.
func New(source Source, window core.Window, cfg Config) *Synchronizer {
	s := &Synchronizer{
		source: source,
		window: window,
		cfg:    cfg.withDefaults(),
		latest: StateUnknown,
		cache:  make(map[int]*xmlquery.Node),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

// Latest returns the most recently observed state identifier, or
// StateUnknown before the first observation.
func (s *Synchronizer) Latest() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *Synchronizer) setLatest(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = id
}

// WaitStable polls the state identifier until two consecutive observations
// agree, then returns the stable identifier. Reaching the context deadline is
// not an error; the last observed identifier is returned and the caller
// proceeds with it.
func (s *Synchronizer) WaitStable(ctx context.Context) (int, error) {
	for {
		id, err := s.source.StateID(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return s.Latest(), nil
			}
			return s.Latest(), err
		}
		if id == s.Latest() {
			return id, nil
		}
		logger.Debug("ui state changed: %d -> %d", s.Latest(), id)
		s.setLatest(id)

		select {
		case <-ctx.Done():
			return id, nil
		case <-time.After(s.cfg.StableDelay):
		}
	}
}

// Tree returns the parsed hierarchy snapshot for the given state identifier,
// fetching and caching it on first use.
func (s *Synchronizer) Tree(ctx context.Context, id int) (*xmlquery.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tree, ok := s.cache[id]; ok {
		return tree, nil
	}

	raw, err := s.source.Hierarchy(ctx, s.window.DisplayID, hierarchyFormatXML)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, core.ErrInvalidResponse.WithMessage("empty hierarchy snapshot")
	}
	tree, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, core.ErrTreeParse.WithCause(err)
	}
	s.cache[id] = tree
	return tree, nil
}

// Close cancels the eviction task and waits for it to stop. Snapshots are no
// longer cached afterwards; the Synchronizer must not be reused.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

func (s *Synchronizer) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep deletes every cached snapshot except the one for the latest state.
func (s *Synchronizer) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.cache {
		if id != s.latest {
			delete(s.cache, id)
			logger.Debug("evicted stale ui snapshot %d", id)
		}
	}
}

// cacheSize reports the number of cached snapshots.
func (s *Synchronizer) cacheSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}
