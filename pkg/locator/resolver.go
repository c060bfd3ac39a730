package locator

import (
	"context"
	"errors"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/logger"
	"github.com/devicelab-dev/uiscout/pkg/query"
)

// TreeSource supplies stable hierarchy snapshots. uistate.Synchronizer
// implements it.
type TreeSource interface {
	WaitStable(ctx context.Context) (int, error)
	Tree(ctx context.Context, id int) (*xmlquery.Node, error)
}

// Resolver executes compiled structural queries against live snapshots,
// polling under the caller's deadline until the requested visibility holds.
type Resolver struct {
	trees TreeSource

	// pollInterval paces the spin loop. Zero means no extra delay, leaving
	// the state-sync round trip as the only rate limit.
	pollInterval time.Duration
}

// NewResolver returns a Resolver over the given snapshot source.
func NewResolver(trees TreeSource, pollInterval time.Duration) *Resolver {
	return &Resolver{trees: trees, pollInterval: pollInterval}
}

// Resolve evaluates the query until the visibility condition is satisfied or
// the context deadline elapses. With visible=true a non-empty result set
// satisfies and is returned in document order; with visible=false an empty
// result set satisfies and nil is returned. Reaching the deadline fails with
// a wait timeout.
func (r *Resolver) Resolve(ctx context.Context, q query.Compiled, visible bool) ([]*xmlquery.Node, error) {
	if q.Method != query.MethodQuery {
		return nil, core.ErrMethodMismatch.
			WithMessagef("node resolution needs a query method selector, got %s", q.Method)
	}
	if q.Kind != query.KindXPath {
		return nil, core.ErrMethodMismatch.
			WithMessagef("node resolution evaluates %s queries, got %s", query.KindXPath, q.Kind)
	}

	start := time.Now()
	state := StatePolling
	spins := 0
	var nodes []*xmlquery.Node

	for state == StatePolling {
		select {
		case <-ctx.Done():
			state = StateTimedOut
			continue
		default:
		}

		id, err := r.trees.WaitStable(ctx)
		if err != nil {
			return nil, err
		}
		tree, err := r.trees.Tree(ctx, id)
		if err != nil {
			if isDeadline(err) {
				state = StateTimedOut
				continue
			}
			return nil, err
		}
		out, err := query.EvaluateXPath(tree, q.Syntax)
		if err != nil {
			return nil, err
		}
		spins++

		switch {
		case visible && len(out) > 0:
			nodes = out
			state = StateSatisfied
		case !visible && len(out) == 0:
			state = StateSatisfied
		case r.pollInterval > 0:
			select {
			case <-ctx.Done():
				state = StateTimedOut
			case <-time.After(r.pollInterval):
			}
		}
	}

	logger.Debug("resolve %q visible=%t: %s, %d nodes, %d spins [%v]",
		q.Syntax, visible, state, len(nodes), spins, time.Since(start))
	if state == StateTimedOut {
		return nil, waitTimeout(visible, map[string]interface{}{
			"query":   q.Syntax,
			"visible": visible,
		})
	}
	return nodes, nil
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func waitTimeout(visible bool, details map[string]interface{}) error {
	cond := "appear"
	if !visible {
		cond = "disappear"
	}
	return core.ErrWaitTimeout.
		WithMessagef("element did not %s before the deadline", cond).
		WithDetails(details)
}
