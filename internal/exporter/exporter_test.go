// internal/exporter/exporter_test.go
package exporter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Mock Implementations for Testing --

type mockPopup struct {
	injectErr   error
	fired       bool
	firedErr    error
	closeErr    error
	closeCalled int
}

func (m *mockPopup) InjectPrintProbe(ctx context.Context) error { return m.injectErr }

func (m *mockPopup) PrintFired(ctx context.Context, wait time.Duration) (bool, error) {
	return m.fired, m.firedErr
}

func (m *mockPopup) Close(ctx context.Context) error {
	m.closeCalled++
	return m.closeErr
}

type mockDriver struct {
	selectErr   error
	menuErr     error
	entries     []string
	entriesErr  error
	popup       *mockPopup
	popupErr    error
	clickedItem int
	openedEntry int
	panicOn     string
}

func (m *mockDriver) SelectItem(ctx context.Context, index int) error {
	if m.panicOn == "select" {
		panic("renderer gone")
	}
	m.clickedItem = index
	return m.selectErr
}

func (m *mockDriver) OpenItemMenu(ctx context.Context, index int, wait time.Duration) error {
	return m.menuErr
}

func (m *mockDriver) MenuEntries(ctx context.Context) ([]string, error) {
	return m.entries, m.entriesErr
}

func (m *mockDriver) OpenExportPopup(ctx context.Context, entry int, wait time.Duration) (PrintTarget, error) {
	m.openedEntry = entry
	if m.popupErr != nil {
		return nil, m.popupErr
	}
	return m.popup, nil
}

func healthyDriver() *mockDriver {
	return &mockDriver{
		entries: []string{"Rename", "Share", "Export as PDF", "Delete"},
		popup:   &mockPopup{fired: true},
	}
}

func newTestPipeline(d Driver) *Pipeline {
	return New(d, zap.NewNop(), Config{
		MenuWait:  time.Second,
		PopupWait: time.Second,
		PrintWait: time.Second,
		PDFToken:  "PDF",
	})
}

// -- Tests --

func TestExportItem_HappyPath(t *testing.T) {
	driver := healthyDriver()
	pipeline := newTestPipeline(driver)

	out := pipeline.ExportItem(context.Background(), "Roadmap", 3)

	assert.Equal(t, StatusExported, out.Status)
	assert.Empty(t, out.Reason)
	assert.Equal(t, 3, driver.clickedItem)
	assert.Equal(t, 2, driver.openedEntry, "must click the PDF entry, not the first entry")
	assert.Equal(t, 1, driver.popup.closeCalled, "popup must be closed exactly once")
}

func TestExportItem_EveryFailureYieldsSkipped(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name       string
		mutate     func(d *mockDriver)
		wantReason string
	}{
		{
			name:       "item not selectable",
			mutate:     func(d *mockDriver) { d.selectErr = boom },
			wantReason: ReasonNotSelectable,
		},
		{
			name:       "menu does not open",
			mutate:     func(d *mockDriver) { d.menuErr = boom },
			wantReason: ReasonMenuNotReady,
		},
		{
			name:       "menu entries unreadable",
			mutate:     func(d *mockDriver) { d.entriesErr = boom },
			wantReason: ReasonMenuNotReady,
		},
		{
			name:       "no pdf entry",
			mutate:     func(d *mockDriver) { d.entries = []string{"Rename", "Delete"} },
			wantReason: ReasonOptionNotFound,
		},
		{
			name:       "token match is case sensitive",
			mutate:     func(d *mockDriver) { d.entries = []string{"Export as pdf"} },
			wantReason: ReasonOptionNotFound,
		},
		{
			name:       "popup never opens",
			mutate:     func(d *mockDriver) { d.popupErr = boom },
			wantReason: ReasonPopupNotOpened,
		},
		{
			name:       "popup not scriptable",
			mutate:     func(d *mockDriver) { d.popup.injectErr = boom },
			wantReason: ReasonPopupBroken,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			driver := healthyDriver()
			tc.mutate(driver)
			pipeline := newTestPipeline(driver)

			out := pipeline.ExportItem(context.Background(), "Roadmap", 0)

			assert.Equal(t, StatusSkipped, out.Status)
			assert.Equal(t, tc.wantReason, out.Reason)
		})
	}
}

func TestExportItem_PrintTimeoutStillCountsAsExported(t *testing.T) {
	driver := healthyDriver()
	driver.popup.fired = false
	pipeline := newTestPipeline(driver)

	out := pipeline.ExportItem(context.Background(), "Roadmap", 0)

	// The probe only observes; an unobserved print is not proof of failure.
	assert.Equal(t, StatusExported, out.Status)
	assert.Equal(t, 1, driver.popup.closeCalled)
}

func TestExportItem_PrintWaitErrorStillCountsAsExported(t *testing.T) {
	driver := healthyDriver()
	driver.popup.fired = false
	driver.popup.firedErr = errors.New("target closed")
	pipeline := newTestPipeline(driver)

	out := pipeline.ExportItem(context.Background(), "Roadmap", 0)

	assert.Equal(t, StatusExported, out.Status)
}

func TestExportItem_PopupClosedEvenWhenInjectionFails(t *testing.T) {
	driver := healthyDriver()
	driver.popup.injectErr = errors.New("execution context destroyed")
	pipeline := newTestPipeline(driver)

	out := pipeline.ExportItem(context.Background(), "Roadmap", 0)

	assert.Equal(t, StatusSkipped, out.Status)
	assert.Equal(t, 1, driver.popup.closeCalled, "popup must not leak on failure paths")
}

func TestExportItem_PanicIsContained(t *testing.T) {
	driver := healthyDriver()
	driver.panicOn = "select"
	pipeline := newTestPipeline(driver)

	var out Outcome
	require.NotPanics(t, func() {
		out = pipeline.ExportItem(context.Background(), "Roadmap", 0)
	})

	assert.Equal(t, StatusSkipped, out.Status)
	assert.Equal(t, ReasonInternal, out.Reason)
}

func TestExportItem_FirstPDFEntryWins(t *testing.T) {
	driver := healthyDriver()
	driver.entries = []string{"Download PDF", "Export as PDF"}
	pipeline := newTestPipeline(driver)

	out := pipeline.ExportItem(context.Background(), "Roadmap", 0)

	assert.Equal(t, StatusExported, out.Status)
	assert.Equal(t, 0, driver.openedEntry)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "exported", StatusExported.String())
	assert.Equal(t, "skipped", StatusSkipped.String())
}
