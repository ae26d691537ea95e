// File: internal/browser/session.go
// Description: Owns the browser process and the single automation tab the
// export run drives. All page interaction funnels through the run, evaluate,
// and poll helpers so every operation is bounded by both the session
// lifecycle and the caller's context.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mgrotte/treexport/internal/config"
)

// launchCheckTimeout bounds the initial responsiveness probe after the
// browser process starts.
const launchCheckTimeout = 30 * time.Second

// Session is a live browser process with one automation tab attached. It is
// not safe for concurrent use; the run controller drives it sequentially.
type Session struct {
	cfg    *config.Config
	logger *zap.Logger

	// allocCtx manages the browser process; tabCtx is the automation tab
	// derived from it. Cancelling allocCtx terminates the process.
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewSession launches the browser against the configured profile and verifies
// it is responsive before returning. The caller must Close the session.
func NewSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	opts, err := buildAllocatorOptions(&cfg.Browser)
	if err != nil {
		return nil, err
	}

	log := logger.Named("browser")
	log.Info("Launching browser.",
		zap.Bool("headless", cfg.Browser.Headless),
		zap.String("profile", cfg.Browser.ProfileName))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:         cfg,
		logger:      log,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}

	// Confirm the process started and the tab answers before handing the
	// session out.
	checkCtx, cancel := context.WithTimeout(tabCtx, launchCheckTimeout)
	defer cancel()
	if err := chromedp.Run(checkCtx, chromedp.Navigate("about:blank")); err != nil {
		allocCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	log.Info("Browser launched and responsive.")
	return s, nil
}

// Close terminates the tab and the browser process. Idempotent; waits for the
// process to exit, bounded by the caller's context.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.logger.Info("Closing browser session.")
	s.tabCancel()
	s.allocCancel()

	select {
	case <-s.allocCtx.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser did not terminate in time: %w", ctx.Err())
	}
}

// combineContext derives a context from the session tab context that is also
// cancelled when the caller's context ends. chromedp actions must run on a
// descendant of the tab context, so the caller's context cannot be used
// directly.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

// run executes chromedp actions on the session tab, bounded by timeout and by
// the caller's context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := combineContext(s.tabCtx, ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		opCtx, tcancel = context.WithTimeout(opCtx, timeout)
		defer tcancel()
	}
	return chromedp.Run(opCtx, actions...)
}

// evaluate runs a script in the page and unmarshals its result into out.
func (s *Session) evaluate(ctx context.Context, timeout time.Duration, script string, out any) error {
	return s.run(ctx, timeout, chromedp.Evaluate(script, out))
}

// poll re-evaluates a boolean script until it yields true or the wait
// elapses. A false return with a nil error means the condition never held;
// transient evaluation failures (mid-navigation, detaching nodes) are
// swallowed and retried on the next tick.
func (s *Session) poll(ctx context.Context, wait time.Duration, script string) (bool, error) {
	interval := s.cfg.Timeouts.PollInterval
	deadline := time.Now().Add(wait)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var ok bool
		if err := s.evaluate(ctx, interval*2, script, &ok); err == nil && ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-s.tabCtx.Done():
			return false, fmt.Errorf("browser session ended: %w", s.tabCtx.Err())
		case <-ticker.C:
		}
	}
}
