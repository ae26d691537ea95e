// File: internal/exporter/exporter.go
// Description: Per-item export pipeline. Takes one discovered tree item and
// drives the host UI's export-to-PDF flow, classifying the result as exported
// or skipped. Failures never escape the item boundary; one broken item must
// not abort the batch.
package exporter

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Skip reasons surfaced to the operator. These strings are the audit trail
// for diagnosing why an item produced no PDF.
const (
	ReasonNotSelectable  = "item not selectable"
	ReasonMenuNotReady   = "options menu not ready"
	ReasonOptionNotFound = "export option not found"
	ReasonPopupNotOpened = "print window did not open"
	ReasonPopupBroken    = "print window not scriptable"
	ReasonInternal       = "internal pipeline failure"
)

// Status classifies the outcome of one item's export attempt.
type Status int

const (
	StatusExported Status = iota
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusExported:
		return "exported"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is the immutable result of one export attempt.
type Outcome struct {
	Status Status
	Reason string
}

// Exported marks a completed export.
func Exported() Outcome { return Outcome{Status: StatusExported} }

// Skipped marks a short-circuited export with a human-readable reason.
func Skipped(reason string) Outcome { return Outcome{Status: StatusSkipped, Reason: reason} }

// Driver is the narrow browser surface the pipeline needs. The production
// implementation lives in internal/browser; tests supply mocks.
type Driver interface {
	// SelectItem clicks the item at the given index; selection is a
	// precondition for the contextual menu existing.
	SelectItem(ctx context.Context, index int) error
	// OpenItemMenu invokes the item's "more options" affordance and waits,
	// bounded, for the menu entry list to render.
	OpenItemMenu(ctx context.Context, index int, wait time.Duration) error
	// MenuEntries returns the visible text of every rendered menu entry.
	MenuEntries(ctx context.Context) ([]string, error)
	// OpenExportPopup clicks the menu entry at the given position while
	// concurrently awaiting the popup it is expected to spawn. Both must
	// resolve within the wait bound.
	OpenExportPopup(ctx context.Context, entry int, wait time.Duration) (PrintTarget, error)
}

// PrintTarget is the popup window hosting the native print dialog.
type PrintTarget interface {
	// InjectPrintProbe installs the print-fired flag and the wrapped print
	// trigger into the popup's execution context. Must run before any wait so
	// no print invocation can race the observer.
	InjectPrintProbe(ctx context.Context) error
	// PrintFired polls, bounded, for the flag to flip true.
	PrintFired(ctx context.Context, wait time.Duration) (bool, error)
	// Close tears the popup down. Always attempted, best effort.
	Close(ctx context.Context) error
}

// Config bounds the pipeline's individual waits and names the menu token that
// identifies the PDF export entry.
type Config struct {
	MenuWait  time.Duration
	PopupWait time.Duration
	PrintWait time.Duration
	PDFToken  string
}

// Pipeline drives the export state machine over single items.
type Pipeline struct {
	driver Driver
	logger *zap.Logger
	cfg    Config
}

// New creates an export pipeline over the given driver.
func New(driver Driver, logger *zap.Logger, cfg Config) *Pipeline {
	return &Pipeline{
		driver: driver,
		logger: logger.Named("exporter"),
		cfg:    cfg,
	}
}

// ExportItem attempts to export one item. It never returns an error and never
// panics past this boundary: every internal failure resolves to a Skipped
// outcome carrying a diagnostic reason.
func (p *Pipeline) ExportItem(ctx context.Context, label string, index int) (out Outcome) {
	log := p.logger.With(zap.Int("index", index), zap.String("label", label))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Export pipeline panicked; item skipped.", zap.Any("panic", r))
			out = Skipped(ReasonInternal)
		}
	}()

	log.Info("Exporting item.")

	// Selected -> MenuOpening
	if err := p.driver.SelectItem(ctx, index); err != nil {
		log.Warn("Could not select item.", zap.Error(err))
		return Skipped(ReasonNotSelectable)
	}

	// MenuOpening -> MenuOpen
	if err := p.driver.OpenItemMenu(ctx, index, p.cfg.MenuWait); err != nil {
		log.Warn("Options menu did not open.", zap.Error(err))
		return Skipped(ReasonMenuNotReady)
	}

	// MenuOpen -> OptionSearch
	entries, err := p.driver.MenuEntries(ctx)
	if err != nil {
		log.Warn("Could not read options menu entries.", zap.Error(err))
		return Skipped(ReasonMenuNotReady)
	}
	entry := p.findExportEntry(entries)
	if entry < 0 {
		log.Warn("No PDF entry in options menu.", zap.Strings("entries", entries))
		return Skipped(ReasonOptionNotFound)
	}

	// OptionSearch -> PopupAwait
	popup, err := p.driver.OpenExportPopup(ctx, entry, p.cfg.PopupWait)
	if err != nil {
		log.Warn("Print window did not open.", zap.Error(err))
		return Skipped(ReasonPopupNotOpened)
	}
	// Close regardless of print confirmation so windows never leak across
	// iterations.
	defer func() {
		if err := popup.Close(ctx); err != nil {
			log.Warn("Could not close print window.", zap.Error(err))
		}
	}()

	// PopupAwait -> Printing
	if err := popup.InjectPrintProbe(ctx); err != nil {
		log.Warn("Could not instrument print window.", zap.Error(err))
		return Skipped(ReasonPopupBroken)
	}

	fired, err := popup.PrintFired(ctx, p.cfg.PrintWait)
	switch {
	case err != nil:
		// Observation failure only: the print may have completed through a
		// path that does not route through the wrapped trigger.
		log.Warn("Print confirmation wait failed; assuming the print fired.", zap.Error(err))
	case !fired:
		log.Warn("Print not confirmed within the wait bound; assuming the print fired.",
			zap.Duration("wait", p.cfg.PrintWait))
	default:
		log.Debug("Print confirmed.")
	}

	// Printing -> Closed (the deferred popup close).
	log.Info("Item exported.")
	return Exported()
}

// findExportEntry returns the position of the first menu entry containing the
// configured PDF token (case sensitive), or -1. The export menu is expected to
// contain exactly one PDF-labelled entry, so first match wins.
func (p *Pipeline) findExportEntry(entries []string) int {
	for i, text := range entries {
		if strings.Contains(text, p.cfg.PDFToken) {
			return i
		}
	}
	return -1
}
