// File: internal/expander/expander.go
// Description: Tree expansion engine. Repeatedly reveals collapsed navigation
// nodes until no expand affordances remain, memoizing visited labels so the
// loop terminates even while the host UI keeps re-rendering.
package expander

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Affordance is one visible expand control: its position in the current
// enumeration and the label of the tree node it belongs to. Label is the node
// identity for memoization and for the click itself; the UI exposes no stable
// numeric ID, and enumeration positions go stale as soon as an expansion
// mutates the tree, so Index is ordering metadata only.
type Affordance struct {
	Index int
	Label string
}

// Driver is the narrow browser surface expansion needs. The production
// implementation lives in internal/browser; tests supply mocks.
type Driver interface {
	// WaitForAffordance waits, bounded, for at least one expand affordance to
	// exist. Returns false when none appeared within the wait; that is the
	// terminal "fully expanded" case, not an error.
	WaitForAffordance(ctx context.Context, wait time.Duration) (bool, error)
	// Affordances enumerates all currently visible expand affordances in DOM
	// document order.
	Affordances(ctx context.Context) ([]Affordance, error)
	// ExpandAffordance clicks the given affordance and waits for its subtree
	// to load.
	ExpandAffordance(ctx context.Context, a Affordance) error
}

// Stats summarizes one engine's work, for logging and tests.
type Stats struct {
	Passes   int
	Expanded int
	Failed   int
	Skipped  int
}

// Engine expands one workspace tree to fixpoint. An Engine is scoped to a
// single run: the memo set must not leak expansion history across workspaces.
type Engine struct {
	driver Driver
	logger *zap.Logger
	wait   time.Duration
	// pace spaces expand clicks by the configured settle interval, giving the
	// DOM time to re-render between mutations.
	pace *rate.Limiter
	// seen records labels already processed this run. Two sibling nodes with
	// identical labels collapse into one entry; the second is treated as
	// already handled. Known imprecision, inherent to label-keyed identity.
	seen map[string]struct{}
	// skipped records which labels have already been reported as skipped, so
	// an affordance that stays visible across passes is counted once.
	skipped map[string]struct{}
	stats   Stats
}

// New creates an expansion engine. settleInterval is the pause between expand
// clicks; affordanceWait bounds the wait for the first affordance of a pass.
func New(driver Driver, logger *zap.Logger, settleInterval, affordanceWait time.Duration) *Engine {
	return &Engine{
		driver:  driver,
		logger:  logger.Named("expander"),
		wait:    affordanceWait,
		pace:    rate.NewLimiter(rate.Every(settleInterval), 1),
		seen:    make(map[string]struct{}),
		skipped: make(map[string]struct{}),
	}
}

// Expand reveals every reachable tree node, looping until a pass makes no
// progress. It is idempotent: a second call on a fully expanded tree performs
// zero clicks. Only context errors are returned; per-node click failures are
// logged, memoized as visited, and never retried.
func (e *Engine) Expand(ctx context.Context) error {
	for {
		e.stats.Passes++

		found, err := e.driver.WaitForAffordance(ctx, e.wait)
		if err != nil {
			return err
		}
		if !found {
			e.logger.Info("No expand affordances present; tree fully expanded.",
				zap.Int("passes", e.stats.Passes), zap.Int("expanded", e.stats.Expanded))
			return nil
		}

		affordances, err := e.driver.Affordances(ctx)
		if err != nil {
			return err
		}

		progressed := false
		for _, a := range affordances {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, ok := e.seen[a.Label]; ok {
				if _, counted := e.skipped[a.Label]; !counted {
					e.skipped[a.Label] = struct{}{}
					e.stats.Skipped++
					e.logger.Warn("Skipping affordance whose label was already processed.",
						zap.String("label", a.Label))
				}
				continue
			}
			// Mark before clicking so a node that keeps failing is never
			// retried forever.
			e.seen[a.Label] = struct{}{}
			progressed = true

			if err := e.pace.Wait(ctx); err != nil {
				return err
			}
			if err := e.driver.ExpandAffordance(ctx, a); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.stats.Failed++
				e.logger.Warn("Could not expand node; marked visited and moving on.",
					zap.String("label", a.Label), zap.Error(err))
				continue
			}
			e.stats.Expanded++
			e.logger.Debug("Expanded node.", zap.String("label", a.Label))
		}

		if !progressed {
			// Fixpoint: everything visible has been handled this run.
			e.logger.Info("Expansion reached fixpoint.",
				zap.Int("passes", e.stats.Passes),
				zap.Int("expanded", e.stats.Expanded),
				zap.Int("failed", e.stats.Failed))
			return nil
		}
	}
}

// Stats reports the engine's counters.
func (e *Engine) Stats() Stats {
	return e.stats
}
