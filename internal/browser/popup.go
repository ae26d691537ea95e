// File: internal/browser/popup.go
// Description: Handle for the print window an export spawns. The popup gets
// its print probe injected immediately after attach, is polled for the print
// signal, and is closed unconditionally by the pipeline.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

type popup struct {
	ctx          context.Context
	cancel       context.CancelFunc
	logger       *zap.Logger
	pollInterval time.Duration
}

// InjectPrintProbe installs the flag and the wrapped print trigger into the
// popup. A failure here means the window is not scriptable at all.
func (p *popup) InjectPrintProbe(ctx context.Context) error {
	opCtx, cancel := combineContext(p.ctx, ctx)
	defer cancel()

	var ok bool
	if err := chromedp.Run(opCtx, chromedp.Evaluate(printProbeScript, &ok)); err != nil {
		return fmt.Errorf("failed to inject print probe: %w", err)
	}
	return nil
}

// PrintFired polls the probe flag until it flips or the wait elapses. A false
// return with nil error means the flag never flipped.
func (p *popup) PrintFired(ctx context.Context, wait time.Duration) (bool, error) {
	opCtx, cancel := combineContext(p.ctx, ctx)
	defer cancel()

	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		var fired bool
		err := chromedp.Run(opCtx, chromedp.Evaluate(printFiredScript, &fired))
		if err == nil && fired {
			return true, nil
		}
		// The popup closing itself after printing is a success signal, not a
		// failure: kiosk printing dismisses the window once the job spools.
		if err != nil && p.ctx.Err() != nil {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, err
		}
		select {
		case <-opCtx.Done():
			if p.ctx.Err() != nil {
				return true, nil
			}
			return false, opCtx.Err()
		case <-ticker.C:
		}
	}
}

// Close dismisses the popup window and releases its target context. Safe to
// call after the window has already closed itself.
func (p *popup) Close(ctx context.Context) error {
	defer p.cancel()

	if p.ctx.Err() != nil {
		return nil
	}

	opCtx, cancel := combineContext(p.ctx, ctx)
	defer cancel()

	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.Close().Do(ctx)
	}))
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Debug("Print window close reported an error.", zap.Error(err))
		return fmt.Errorf("failed to close print window: %w", err)
	}
	return nil
}
