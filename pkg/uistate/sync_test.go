package uistate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

const fakeHierarchy = `<?xml version='1.0' encoding='UTF-8'?>
<hierarchy rotation="0">
  <android.widget.Button resource-id="btn" text="Click Me" bounds="0,0,10,10" visible="true"/>
</hierarchy>`

// fakeSource serves a scripted sequence of state ids and counts hierarchy
// fetches.
type fakeSource struct {
	mu        sync.Mutex
	stateIDs  []int
	stateIdx  int
	stateErr  error
	hierarchy []byte
	fetches   int
}

func newFakeSource(stateIDs ...int) *fakeSource {
	return &fakeSource{stateIDs: stateIDs, hierarchy: []byte(fakeHierarchy)}
}

func (f *fakeSource) StateID(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return 0, f.stateErr
	}
	if len(f.stateIDs) == 0 {
		return 0, nil
	}
	id := f.stateIDs[f.stateIdx]
	if f.stateIdx < len(f.stateIDs)-1 {
		f.stateIdx++
	}
	return id, nil
}

func (f *fakeSource) Hierarchy(ctx context.Context, displayID int, format string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.hierarchy, nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func testConfig() Config {
	return Config{StableDelay: time.Millisecond, SweepInterval: time.Hour}
}

func TestSynchronizer_WaitStable(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(1, 2, 3, 3)
	s := New(src, core.DefaultWindow(), testConfig())
	defer s.Close()

	if got := s.Latest(); got != StateUnknown {
		t.Fatalf("Latest() before first wait = %d, want %d", got, StateUnknown)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := s.WaitStable(ctx)
	if err != nil {
		t.Fatalf("WaitStable() error: %v", err)
	}
	if id != 3 {
		t.Errorf("WaitStable() = %d, want 3", id)
	}
	if got := s.Latest(); got != 3 {
		t.Errorf("Latest() = %d, want 3", got)
	}
}

func TestSynchronizer_WaitStable_AlreadyStable(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(7)
	s := New(src, core.DefaultWindow(), testConfig())
	defer s.Close()

	ctx := context.Background()
	if _, err := s.WaitStable(ctx); err != nil {
		t.Fatalf("first WaitStable() error: %v", err)
	}

	// The surface has not changed, so the second wait returns immediately.
	start := time.Now()
	id, err := s.WaitStable(ctx)
	if err != nil {
		t.Fatalf("second WaitStable() error: %v", err)
	}
	if id != 7 {
		t.Errorf("WaitStable() = %d, want 7", id)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("stable wait took %v, expected immediate return", elapsed)
	}
}

func TestSynchronizer_WaitStable_DeadlineIsNotAnError(t *testing.T) {
	defer goleak.VerifyNone(t)

	// The state id changes on every poll, so the surface never stabilizes.
	next := 0
	unstable := &unstableSource{next: &next, hierarchy: []byte(fakeHierarchy)}

	s := New(unstable, core.DefaultWindow(), Config{StableDelay: time.Millisecond, SweepInterval: time.Hour})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	id, err := s.WaitStable(ctx)
	if err != nil {
		t.Fatalf("WaitStable() at deadline should not error, got %v", err)
	}
	if id == StateUnknown {
		t.Error("WaitStable() should report the last observed id")
	}
}

type unstableSource struct {
	mu        sync.Mutex
	next      *int
	hierarchy []byte
}

func (u *unstableSource) StateID(ctx context.Context) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	*u.next++
	return *u.next, nil
}

func (u *unstableSource) Hierarchy(ctx context.Context, displayID int, format string) ([]byte, error) {
	return u.hierarchy, nil
}

func TestSynchronizer_WaitStable_SourceError(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(1)
	src.mu.Lock()
	src.stateErr = errors.New("portal down")
	src.mu.Unlock()

	s := New(src, core.DefaultWindow(), testConfig())
	defer s.Close()

	if _, err := s.WaitStable(context.Background()); err == nil {
		t.Error("WaitStable() should surface non-deadline source errors")
	}
}

func TestSynchronizer_TreeCaching(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(1)
	s := New(src, core.DefaultWindow(), testConfig())
	defer s.Close()

	ctx := context.Background()
	tree, err := s.Tree(ctx, 1)
	if err != nil {
		t.Fatalf("Tree() error: %v", err)
	}
	if tree == nil {
		t.Fatal("Tree() returned nil snapshot")
	}
	if got := src.fetchCount(); got != 1 {
		t.Fatalf("fetch count = %d, want 1", got)
	}

	again, err := s.Tree(ctx, 1)
	if err != nil {
		t.Fatalf("cached Tree() error: %v", err)
	}
	if again != tree {
		t.Error("cached Tree() should return the same snapshot instance")
	}
	if got := src.fetchCount(); got != 1 {
		t.Errorf("fetch count after cache hit = %d, want 1", got)
	}

	if _, err := s.Tree(ctx, 2); err != nil {
		t.Fatalf("Tree(2) error: %v", err)
	}
	if got := src.fetchCount(); got != 2 {
		t.Errorf("fetch count for new state = %d, want 2", got)
	}
}

func TestSynchronizer_TreeEmptyResponse(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(1)
	src.mu.Lock()
	src.hierarchy = nil
	src.mu.Unlock()

	s := New(src, core.DefaultWindow(), testConfig())
	defer s.Close()

	_, err := s.Tree(context.Background(), 1)
	if err == nil {
		t.Fatal("Tree() should reject an empty snapshot")
	}
	var execErr *core.ExecutionError
	if !errors.As(err, &execErr) || execErr.Category != core.ErrCategoryTransport {
		t.Errorf("error = %v, want a transport-category ExecutionError", err)
	}
}

func TestSynchronizer_TreeParseError(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(1)
	src.mu.Lock()
	src.hierarchy = []byte("<hierarchy><unclosed>")
	src.mu.Unlock()

	s := New(src, core.DefaultWindow(), testConfig())
	defer s.Close()

	_, err := s.Tree(context.Background(), 1)
	if err == nil {
		t.Fatal("Tree() should reject a malformed snapshot")
	}
	if !errors.Is(err, core.ErrTreeParse) {
		var execErr *core.ExecutionError
		if !errors.As(err, &execErr) || execErr.Code != core.ErrTreeParse.Code {
			t.Errorf("error = %v, want tree_parse", err)
		}
	}
}

func TestSynchronizer_SweepRetainsLatestOnly(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(1)
	s := New(src, core.DefaultWindow(), testConfig())
	defer s.Close()

	ctx := context.Background()
	for id := 1; id <= 4; id++ {
		if _, err := s.Tree(ctx, id); err != nil {
			t.Fatalf("Tree(%d) error: %v", id, err)
		}
	}
	s.setLatest(3)

	if got := s.cacheSize(); got != 4 {
		t.Fatalf("cache size before sweep = %d, want 4", got)
	}

	s.sweep()

	if got := s.cacheSize(); got != 1 {
		t.Fatalf("cache size after sweep = %d, want 1", got)
	}
	s.mu.Lock()
	_, ok := s.cache[3]
	s.mu.Unlock()
	if !ok {
		t.Error("sweep should retain the latest state's snapshot")
	}
}

func TestSynchronizer_BackgroundSweepRuns(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(1)
	s := New(src, core.DefaultWindow(), Config{StableDelay: time.Millisecond, SweepInterval: 10 * time.Millisecond})
	defer s.Close()

	ctx := context.Background()
	for id := 1; id <= 3; id++ {
		if _, err := s.Tree(ctx, id); err != nil {
			t.Fatalf("Tree(%d) error: %v", id, err)
		}
	}
	s.setLatest(3)

	deadline := time.Now().Add(2 * time.Second)
	for s.cacheSize() > 1 {
		if time.Now().After(deadline) {
			t.Fatalf("background sweep did not run, cache size = %d", s.cacheSize())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSynchronizer_CloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(1)
	s := New(src, core.DefaultWindow(), testConfig())

	s.Close()
	s.Close()
}

func TestSynchronizer_DefaultConfig(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.StableDelay != DefaultStableDelay {
		t.Errorf("StableDelay = %v, want %v", cfg.StableDelay, DefaultStableDelay)
	}
	if cfg.SweepInterval != DefaultSweepInterval {
		t.Errorf("SweepInterval = %v, want %v", cfg.SweepInterval, DefaultSweepInterval)
	}
	if cfg.SweepInterval != 10*time.Second {
		t.Errorf("sweep interval should be ten one-second ticks, got %v", cfg.SweepInterval)
	}
}

// Exercise a realistic fetch pattern to make sure nothing races.
func TestSynchronizer_ConcurrentSweepAndFetch(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(1)
	s := New(src, core.DefaultWindow(), Config{StableDelay: time.Millisecond, SweepInterval: time.Millisecond})
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		id := i % 5
		if _, err := s.Tree(ctx, id); err != nil {
			t.Fatalf("Tree(%d) error: %v", id, err)
		}
		s.setLatest(id)
	}
}
