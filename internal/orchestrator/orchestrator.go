// File: internal/orchestrator/orchestrator.go
// Description: Run controller. Sequences one export run end to end: open the
// workspace, expand its tree, enumerate items, drive the export pipeline over
// each item strictly in order, and guarantee session teardown on every exit
// path.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mgrotte/treexport/internal/config"
	"github.com/mgrotte/treexport/internal/exporter"
)

// Driver is the session surface the controller needs. The production
// implementation lives in internal/browser; tests supply mocks.
type Driver interface {
	// OpenDirectory navigates to the workspace directory endpoint.
	OpenDirectory(ctx context.Context) error
	// OpenWorkspace locates the entry whose label contains name (substring,
	// first match) within the wait bound and opens it.
	OpenWorkspace(ctx context.Context, name string, wait time.Duration) error
	// Items enumerates the labels of all tree items in DOM document order,
	// the only externally meaningful order the host UI offers.
	Items(ctx context.Context) ([]string, error)
	// Close tears the browser session down. Idempotent.
	Close(ctx context.Context) error
}

// Expander expands the workspace tree to fixpoint.
type Expander interface {
	Expand(ctx context.Context) error
}

// Exporter drives the per-item export pipeline.
type Exporter interface {
	ExportItem(ctx context.Context, label string, index int) exporter.Outcome
}

// Summary aggregates the per-item outcomes of one run.
type Summary struct {
	Exported int
	Skipped  int
}

// closeTimeout bounds session teardown so a wedged browser cannot hang the
// process on exit.
const closeTimeout = 15 * time.Second

// Controller owns the browser session for the lifetime of one run. The
// expansion engine and export pipeline borrow it per call and never retain it.
type Controller struct {
	cfg      *config.Config
	logger   *zap.Logger
	driver   Driver
	expander Expander
	exporter Exporter
	dryRun   bool
}

// New creates a run controller. All dependencies are required.
func New(cfg *config.Config, logger *zap.Logger, driver Driver, exp Expander, pipe Exporter) (*Controller, error) {
	if cfg == nil || logger == nil || driver == nil || exp == nil || pipe == nil {
		return nil, fmt.Errorf("cannot initialize run controller with nil dependencies")
	}
	return &Controller{
		cfg:      cfg,
		logger:   logger.Named("run"),
		driver:   driver,
		expander: exp,
		exporter: pipe,
	}, nil
}

// SetDryRun makes Run stop after enumeration, reporting what would be
// exported without driving the pipeline.
func (c *Controller) SetDryRun(enabled bool) {
	c.dryRun = enabled
}

// Run executes one export run against the named workspace. The session is
// closed on every exit path; item-level failures are absorbed as skips, and
// only workspace location, navigation, or unexpected errors abort the run.
func (c *Controller) Run(ctx context.Context, workspaceName string) (Summary, error) {
	runID := uuid.New().String()
	log := c.logger.With(zap.String("run_id", runID), zap.String("workspace", workspaceName))

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := c.driver.Close(closeCtx); err != nil {
			log.Warn("Error during session teardown.", zap.Error(err))
		}
	}()

	log.Info("Starting export run.", zap.String("directory_url", c.cfg.Workspace.DirectoryURL))

	if err := c.driver.OpenDirectory(ctx); err != nil {
		return Summary{}, fmt.Errorf("failed to open workspace directory: %w", err)
	}

	log.Info("Locating workspace.", zap.Duration("wait", c.cfg.Timeouts.WorkspaceFind))
	if err := c.driver.OpenWorkspace(ctx, workspaceName, c.cfg.Timeouts.WorkspaceFind); err != nil {
		return Summary{}, fmt.Errorf("workspace %q: %w", workspaceName, err)
	}

	log.Info("Expanding navigation tree.")
	if err := c.expander.Expand(ctx); err != nil {
		return Summary{}, fmt.Errorf("tree expansion aborted: %w", err)
	}

	items, err := c.driver.Items(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to enumerate tree items: %w", err)
	}
	log.Info("Enumerated tree items.", zap.Int("count", len(items)))

	if c.dryRun {
		for i, label := range items {
			log.Info("Would export item.", zap.Int("index", i), zap.String("label", label))
		}
		log.Info("Dry run complete; no exports attempted.", zap.Int("count", len(items)))
		return Summary{}, nil
	}

	var summary Summary
	for i, label := range items {
		outcome := c.exporter.ExportItem(ctx, label, i)
		switch outcome.Status {
		case exporter.StatusExported:
			summary.Exported++
		default:
			summary.Skipped++
			log.Warn("Item skipped.",
				zap.Int("index", i),
				zap.String("label", label),
				zap.String("reason", outcome.Reason))
		}
	}

	log.Info("Export run finished.",
		zap.Int("exported", summary.Exported),
		zap.Int("skipped", summary.Skipped),
		zap.Int("total", len(items)))

	return summary, nil
}
