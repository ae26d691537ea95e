// File: internal/browser/workspace.go
// Description: Workspace-facing operations on the session: directory
// navigation, workspace lookup, tree enumeration and expansion, item
// selection, and the menu-to-popup handoff that starts a print export.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mgrotte/treexport/internal/expander"
	"github.com/mgrotte/treexport/internal/exporter"
)

// OpenDirectory navigates to the workspace directory endpoint and waits for
// the document to be ready.
func (s *Session) OpenDirectory(ctx context.Context) error {
	url := s.cfg.Workspace.DirectoryURL
	s.logger.Info("Opening workspace directory.", zap.String("url", url))
	err := s.run(ctx, s.cfg.Timeouts.Navigation,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to open directory %s: %w", url, err)
	}
	return nil
}

// OpenWorkspace clicks the first directory entry whose label contains name
// and waits for the workspace tree to render. The directory may populate
// asynchronously, so the lookup polls within the wait bound.
func (s *Session) OpenWorkspace(ctx context.Context, name string, wait time.Duration) error {
	script := workspaceLinkScript(s.cfg.Workspace.LinkSelector, name)
	found, err := s.poll(ctx, wait, script)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("not found in directory")
	}

	// The click navigates into the workspace; the run is usable once at
	// least one tree item exists.
	rendered, err := s.poll(ctx, s.cfg.Timeouts.Navigation,
		countPositiveScript(roleCountScript(s.cfg.Workspace.TreeItemRole)))
	if err != nil {
		return err
	}
	if !rendered {
		return fmt.Errorf("workspace tree did not render")
	}
	s.logger.Info("Workspace opened.", zap.String("name", name))
	return nil
}

// Items enumerates the labels of all tree items in document order.
func (s *Session) Items(ctx context.Context) ([]string, error) {
	var labels []string
	err := s.evaluate(ctx, s.cfg.Timeouts.Navigation,
		treeItemsScript(s.cfg.Workspace.TreeItemRole), &labels)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate tree items: %w", err)
	}
	return labels, nil
}

// WaitForAffordance waits for at least one expand affordance to appear. A
// false return means none appeared within the wait, the terminal state of a
// fully expanded tree.
func (s *Session) WaitForAffordance(ctx context.Context, wait time.Duration) (bool, error) {
	return s.poll(ctx, wait,
		countPositiveScript(affordanceCountScript(s.cfg.Workspace.ExpandSelector)))
}

// Affordances enumerates the visible expand affordances in document order.
func (s *Session) Affordances(ctx context.Context) ([]expander.Affordance, error) {
	var out []expander.Affordance
	err := s.evaluate(ctx, s.cfg.Timeouts.Navigation,
		affordancesScript(s.cfg.Workspace.ExpandSelector, s.cfg.Workspace.TreeItemRole), &out)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate expand affordances: %w", err)
	}
	return out, nil
}

// ExpandAffordance clicks the affordance and waits for its subtree to finish
// loading. The click resolves the affordance by its item label at click time;
// earlier expansions in the same pass shift enumeration positions, so the
// Index field is ordering metadata only.
func (s *Session) ExpandAffordance(ctx context.Context, a expander.Affordance) error {
	var clicked bool
	err := s.evaluate(ctx, s.cfg.Timeouts.AffordanceWait,
		expandAffordanceScript(s.cfg.Workspace.ExpandSelector, s.cfg.Workspace.TreeItemRole, a.Label), &clicked)
	if err != nil {
		return fmt.Errorf("failed to click expand affordance: %w", err)
	}
	if !clicked {
		return fmt.Errorf("expand affordance for %q detached before click", a.Label)
	}

	loaded, err := s.poll(ctx, s.cfg.Timeouts.AffordanceWait,
		loadedProbeScript(s.cfg.Workspace.TreeItemRole, s.cfg.Workspace.LoadedAttrPrefix, a.Label))
	if err != nil {
		return err
	}
	if !loaded {
		return fmt.Errorf("subtree did not finish loading")
	}
	return nil
}

// SelectItem clicks the tree item at the given index.
func (s *Session) SelectItem(ctx context.Context, index int) error {
	var clicked bool
	err := s.evaluate(ctx, s.cfg.Timeouts.AffordanceWait,
		selectItemScript(s.cfg.Workspace.TreeItemRole, index), &clicked)
	if err != nil {
		return fmt.Errorf("failed to select item: %w", err)
	}
	if !clicked {
		return fmt.Errorf("tree item %d no longer present", index)
	}
	return nil
}

// OpenItemMenu invokes the item's "more options" affordance and waits for the
// menu entries to render.
func (s *Session) OpenItemMenu(ctx context.Context, index int, wait time.Duration) error {
	var clicked bool
	err := s.evaluate(ctx, wait,
		openItemMenuScript(s.cfg.Workspace.TreeItemRole, s.cfg.Workspace.MoreOptionsLabel, index), &clicked)
	if err != nil {
		return fmt.Errorf("failed to open item menu: %w", err)
	}
	if !clicked {
		return fmt.Errorf("options affordance not found on item %d", index)
	}

	rendered, err := s.poll(ctx, wait,
		countPositiveScript(roleCountScript(s.cfg.Workspace.MenuItemRole)))
	if err != nil {
		return err
	}
	if !rendered {
		return fmt.Errorf("menu entries did not render")
	}
	return nil
}

// MenuEntries returns the visible text of every rendered menu entry.
func (s *Session) MenuEntries(ctx context.Context) ([]string, error) {
	var entries []string
	err := s.evaluate(ctx, s.cfg.Timeouts.MenuWait,
		menuEntriesScript(s.cfg.Workspace.MenuItemRole), &entries)
	if err != nil {
		return nil, fmt.Errorf("failed to read menu entries: %w", err)
	}
	return entries, nil
}

// OpenExportPopup clicks the menu entry at the given position while awaiting
// the popup it spawns. The target watch is registered before the click so the
// popup cannot slip by unobserved; both the click and the popup must resolve
// within the wait bound.
func (s *Session) OpenExportPopup(ctx context.Context, entry int, wait time.Duration) (exporter.PrintTarget, error) {
	watchCtx, cancelWatch := context.WithCancel(s.tabCtx)
	defer cancelWatch()

	popupIDs := chromedp.WaitNewTarget(watchCtx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID != ""
	})

	opCtx, cancel := combineContext(s.tabCtx, ctx)
	defer cancel()
	opCtx, tcancel := context.WithTimeout(opCtx, wait)
	defer tcancel()

	var popupID target.ID
	g, gCtx := errgroup.WithContext(opCtx)
	g.Go(func() error {
		var clicked bool
		err := chromedp.Run(gCtx,
			chromedp.Evaluate(clickMenuEntryScript(s.cfg.Workspace.MenuItemRole, entry), &clicked))
		if err != nil {
			return fmt.Errorf("failed to click export entry: %w", err)
		}
		if !clicked {
			return fmt.Errorf("export entry %d no longer present", entry)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case id := <-popupIDs:
			popupID = id
			return nil
		case <-gCtx.Done():
			return fmt.Errorf("print window did not open: %w", gCtx.Err())
		}
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	popupCtx, popupCancel := chromedp.NewContext(s.tabCtx, chromedp.WithTargetID(popupID))
	s.logger.Debug("Attached to print window.", zap.String("target_id", string(popupID)))

	return &popup{
		ctx:          popupCtx,
		cancel:       popupCancel,
		logger:       s.logger.Named("popup"),
		pollInterval: s.cfg.Timeouts.PollInterval,
	}, nil
}
