// internal/expander/expander_test.go
package expander

import (
	"context"
	"errors"
	"sync"
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

// mockNode models one tree node in the fake workspace.
type mockNode struct {
	label    string
	children []*mockNode
	expanded bool
	// failExpand makes every click on this node error without expanding it.
	failExpand bool
}

// mockTreeDriver simulates the host tree: an affordance is any visible node
// that has children and is not yet expanded. Children become visible only
// after their parent expands, the way the real UI lazy-loads subtrees.
type mockTreeDriver struct {
	mu     sync.Mutex
	roots  []*mockNode
	clicks map[string]int
}

func newMockTree(roots ...*mockNode) *mockTreeDriver {
	return &mockTreeDriver{roots: roots, clicks: make(map[string]int)}
}

// visible walks the tree in document order, descending only into expanded
// nodes.
func (d *mockTreeDriver) visible() []*mockNode {
	var out []*mockNode
	var walk func(nodes []*mockNode)
	walk = func(nodes []*mockNode) {
		for _, n := range nodes {
			out = append(out, n)
			if n.expanded {
				walk(n.children)
			}
		}
	}
	walk(d.roots)
	return out
}

func (d *mockTreeDriver) affordances() []Affordance {
	var out []Affordance
	for _, n := range d.visible() {
		if len(n.children) > 0 && !n.expanded {
			out = append(out, Affordance{Index: len(out), Label: n.label})
		}
	}
	return out
}

func (d *mockTreeDriver) WaitForAffordance(ctx context.Context, wait time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.affordances()) > 0, nil
}

func (d *mockTreeDriver) Affordances(ctx context.Context) ([]Affordance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.affordances(), nil
}

// ExpandAffordance resolves the node by label against the tree as it is NOW,
// never by a.Index: earlier expansions in the same pass shift enumeration
// positions, and the production click resolves the label at click time.
func (d *mockTreeDriver) ExpandAffordance(ctx context.Context, a Affordance) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clicks[a.Label]++
	for _, n := range d.visible() {
		if n.label == a.Label && len(n.children) > 0 && !n.expanded {
			if n.failExpand {
				return errors.New("subtree did not finish loading")
			}
			n.expanded = true
			return nil
		}
	}
	return errors.New("expand affordance detached before click")
}

func (d *mockTreeDriver) totalClicks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, c := range d.clicks {
		total += c
	}
	return total
}

func node(label string, children ...*mockNode) *mockNode {
	return &mockNode{label: label, children: children}
}

func newTestEngine(d Driver) *Engine {
	// Millisecond pacing keeps the limiter exercised without slowing tests.
	return New(d, zap.NewNop(), time.Millisecond, 10*time.Millisecond)
}

// -- Tests --

func TestExpand_FlatTreeIsTerminal(t *testing.T) {
	driver := newMockTree(node("Alpha"), node("Beta"))
	engine := newTestEngine(driver)

	err := engine.Expand(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, driver.totalClicks(), "leaf-only tree must not be clicked")
	assert.Equal(t, 0, engine.Stats().Expanded)
	assert.Equal(t, 1, engine.Stats().Passes)
}

func TestExpand_NestedTreeReachesEveryLevel(t *testing.T) {
	driver := newMockTree(
		node("Projects",
			node("Archive",
				node("2024"),
			),
			node("Notes"),
		),
		node("Inbox"),
	)
	engine := newTestEngine(driver)

	err := engine.Expand(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, driver.clicks["Projects"])
	assert.Equal(t, 1, driver.clicks["Archive"])
	assert.Equal(t, 2, engine.Stats().Expanded)
	assert.Equal(t, 0, engine.Stats().Failed)
	assert.Empty(t, driver.affordances(), "no affordance may survive a full run")
}

func TestExpand_LaterSiblingsSurviveEarlierExpansions(t *testing.T) {
	// Expanding A removes its affordance from the enumeration and reveals A1
	// and A2, so every position captured at the start of the pass is stale by
	// the time B is clicked. B and its descendants must still be reached.
	driver := newMockTree(
		node("A",
			node("A1", node("A1a")),
			node("A2", node("A2a")),
		),
		node("B", node("B1")),
	)
	engine := newTestEngine(driver)

	err := engine.Expand(context.Background())
	require.NoError(t, err)

	for _, label := range []string{"A", "A1", "A2", "B"} {
		assert.Equal(t, 1, driver.clicks[label], "node %s must be expanded exactly once", label)
	}
	assert.Equal(t, 4, engine.Stats().Expanded)
	assert.Equal(t, 0, engine.Stats().Failed)
	assert.Empty(t, driver.affordances(), "no affordance may survive a full run")
}

func TestExpand_FailedNodeIsVisitedOnce(t *testing.T) {
	broken := node("Broken", node("Unreachable", node("Deep")))
	broken.failExpand = true
	driver := newMockTree(broken, node("Healthy", node("Child")))
	engine := newTestEngine(driver)

	err := engine.Expand(context.Background())
	require.NoError(t, err, "a failing node must not abort the run")

	assert.Equal(t, 1, driver.clicks["Broken"], "failed nodes are never retried")
	assert.Equal(t, 1, driver.clicks["Healthy"])
	assert.Equal(t, 1, engine.Stats().Failed)
	assert.Equal(t, 1, engine.Stats().Expanded)
	// The broken node's affordance stays visible on every later pass, but it
	// enters the skip counter at most once.
	assert.LessOrEqual(t, engine.Stats().Skipped, 1)
}

func TestExpand_DuplicateLabelsCollapse(t *testing.T) {
	driver := newMockTree(
		node("Reports", node("Q1")),
		node("Reports", node("Q2")),
	)
	engine := newTestEngine(driver)

	err := engine.Expand(context.Background())
	require.NoError(t, err)

	// Label is node identity: the second "Reports" is treated as already
	// handled and stays collapsed. Its affordance reappears on every pass,
	// yet the skip counter records it exactly once.
	assert.Equal(t, 1, driver.clicks["Reports"])
	assert.Equal(t, 1, engine.Stats().Skipped)
}

func TestExpand_SecondRunPerformsNoClicks(t *testing.T) {
	driver := newMockTree(node("Root", node("Leaf")))
	engine := newTestEngine(driver)

	require.NoError(t, engine.Expand(context.Background()))
	clicksAfterFirst := driver.totalClicks()

	require.NoError(t, engine.Expand(context.Background()))
	assert.Equal(t, clicksAfterFirst, driver.totalClicks(), "second run must be a no-op")
}

func TestExpand_ContextCancellationAborts(t *testing.T) {
	driver := newMockTree(node("Root", node("Leaf")))
	engine := newTestEngine(driver)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := engine.Expand(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, engine.Stats().Expanded)
}

func TestExpand_DriverErrorPropagates(t *testing.T) {
	engine := newTestEngine(&failingDriver{})

	err := engine.Expand(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session ended")
}

type failingDriver struct{}

func (f *failingDriver) WaitForAffordance(ctx context.Context, wait time.Duration) (bool, error) {
	return false, errors.New("browser session ended")
}

func (f *failingDriver) Affordances(ctx context.Context) ([]Affordance, error) {
	return nil, errors.New("browser session ended")
}

func (f *failingDriver) ExpandAffordance(ctx context.Context, a Affordance) error {
	return errors.New("browser session ended")
}
