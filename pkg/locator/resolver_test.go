package locator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antchfx/xmlquery"
	"go.uber.org/goleak"

	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/query"
)

const emptyTree = `<?xml version='1.0' encoding='UTF-8'?>
<hierarchy rotation="0">
  <android.widget.FrameLayout resource-id="root" bounds="0,0,100,100"/>
</hierarchy>`

const readyTree = `<?xml version='1.0' encoding='UTF-8'?>
<hierarchy rotation="0">
  <android.widget.FrameLayout resource-id="root" bounds="0,0,100,100">
    <android.widget.TextView text="Ready" bounds="0,0,50,20" visible="true"/>
  </android.widget.FrameLayout>
</hierarchy>`

// fakeTrees hands out one snapshot per stability wait, sticking on the last
// document once the script runs out.
type fakeTrees struct {
	mu      sync.Mutex
	docs    []string
	treeErr error
	spins   int
}

func (f *fakeTrees) WaitStable(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spins++
	if f.spins > len(f.docs) {
		return len(f.docs), nil
	}
	return f.spins, nil
}

func (f *fakeTrees) Tree(ctx context.Context, id int) (*xmlquery.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.treeErr != nil {
		return nil, f.treeErr
	}
	return xmlquery.Parse(strings.NewReader(f.docs[id-1]))
}

func readyQuery() query.Compiled {
	return query.Compiled{
		Kind:   query.KindXPath,
		Method: query.MethodQuery,
		Syntax: `//*[@text="Ready"]`,
	}
}

func TestResolver_MethodMismatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewResolver(nil, 0)

	q := query.Compiled{Kind: query.KindXPath, Method: query.MethodImage}
	if _, err := r.Resolve(context.Background(), q, true); !errors.Is(err, core.ErrMethodMismatch) {
		t.Errorf("Resolve(image query) error = %v, want ErrMethodMismatch", err)
	}

	q = query.Compiled{Kind: query.KindJSONPath, Method: query.MethodQuery, Syntax: "$.nodes"}
	if _, err := r.Resolve(context.Background(), q, true); !errors.Is(err, core.ErrMethodMismatch) {
		t.Errorf("Resolve(jsonpath query) error = %v, want ErrMethodMismatch", err)
	}
}

func TestResolver_WaitsForAppearance(t *testing.T) {
	defer goleak.VerifyNone(t)

	trees := &fakeTrees{docs: []string{emptyTree, readyTree}}
	r := NewResolver(trees, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	nodes, err := r.Resolve(ctx, readyQuery(), true)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("Resolve() returned %d nodes, want 1", len(nodes))
	}
	if text := nodes[0].SelectAttr("text"); text != "Ready" {
		t.Errorf("resolved node text = %q, want Ready", text)
	}

	trees.mu.Lock()
	spins := trees.spins
	trees.mu.Unlock()
	if spins < 2 {
		t.Errorf("resolver spun %d times, want at least 2 before the node appeared", spins)
	}
}

func TestResolver_WaitsForDisappearance(t *testing.T) {
	defer goleak.VerifyNone(t)

	trees := &fakeTrees{docs: []string{readyTree, emptyTree}}
	r := NewResolver(trees, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	nodes, err := r.Resolve(ctx, readyQuery(), false)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("Resolve(absent) returned %d nodes, want 0", len(nodes))
	}
}

func TestResolver_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	trees := &fakeTrees{docs: []string{emptyTree}}
	r := NewResolver(trees, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.Resolve(ctx, readyQuery(), true)
	if !errors.Is(err, core.ErrWaitTimeout) {
		t.Errorf("Resolve() error = %v, want ErrWaitTimeout", err)
	}
}

func TestResolver_TreeErrorSurfaces(t *testing.T) {
	defer goleak.VerifyNone(t)

	trees := &fakeTrees{docs: []string{readyTree}, treeErr: errors.New("malformed payload")}
	r := NewResolver(trees, 0)

	_, err := r.Resolve(context.Background(), readyQuery(), true)
	if err == nil {
		t.Fatal("Resolve() should surface tree fetch errors")
	}
	if errors.Is(err, core.ErrWaitTimeout) {
		t.Errorf("tree error should not be reported as a timeout, got %v", err)
	}
}

func TestResolveState_String(t *testing.T) {
	tests := []struct {
		state    ResolveState
		want     string
		terminal bool
	}{
		{StatePolling, "polling", false},
		{StateSatisfied, "satisfied", true},
		{StateTimedOut, "timed_out", true},
		{ResolveState(42), "unknown", false},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ResolveState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("ResolveState(%d).IsTerminal() = %t, want %t", tt.state, got, tt.terminal)
		}
	}
}
