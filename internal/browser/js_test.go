// internal/browser/js_test.go
package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleSelector(t *testing.T) {
	assert.Equal(t, `[role=treeitem]`, roleSelector("treeitem"))
}

func TestWorkspaceLinkScript_QuotesName(t *testing.T) {
	// Names come from the command line; quotes and backslashes must not be
	// able to break out of the string literal.
	script := workspaceLinkScript("a.workspace", `Eng "Core" \ Team`)

	assert.Contains(t, script, `"a.workspace"`)
	assert.Contains(t, script, `\"Core\"`)
	assert.NotContains(t, script, "%!")
}

func TestAffordancesScript_EmbedsConfiguredSelectors(t *testing.T) {
	script := affordancesScript(`[aria-expanded="false"]`, "treeitem")

	assert.Contains(t, script, `aria-expanded`)
	assert.Contains(t, script, `[role=treeitem]`)
	assert.Contains(t, script, "closest")
}

func TestClickNthScript_IndexGuard(t *testing.T) {
	script := clickNthScript("button", 4)

	assert.Contains(t, script, `"button"`)
	assert.Contains(t, script, "4 >= nodes.length")
	assert.Contains(t, script, "return false")
}

func TestExpandAffordanceScript_ResolvesByLabelNotIndex(t *testing.T) {
	// Expansion clicks must relocate their target by label at click time;
	// enumeration positions are stale once an earlier expansion mutates the
	// tree, so the snippet must not index into the node list.
	script := expandAffordanceScript(`[aria-expanded="false"]`, "treeitem", `Ops "West" Team`)

	assert.Contains(t, script, `\"West\"`)
	assert.Contains(t, script, "closest")
	assert.Contains(t, script, `[role=treeitem]`)
	assert.NotContains(t, script, "nodes[0]")
	assert.Contains(t, script, "return false")
}

func TestLoadedProbeScript_QuotesLabel(t *testing.T) {
	script := loadedProbeScript("treeitem", "data-loaded", "Q3 \"Final\" Plan")

	assert.Contains(t, script, `\"Final\"`)
	assert.Contains(t, script, `"data-loaded"`)
	assert.Contains(t, script, `aria-expanded`)
}

func TestOpenItemMenuScript_MatchesAriaLabel(t *testing.T) {
	script := openItemMenuScript("treeitem", "More options", 2)

	assert.Contains(t, script, `"More options"`)
	assert.Contains(t, script, "aria-label")
}

func TestCountPositiveScript(t *testing.T) {
	expr := countPositiveScript(affordanceCountScript("[data-x]"))
	assert.True(t, strings.HasSuffix(expr, " > 0"))
	assert.Contains(t, expr, `"[data-x]"`)
}

func TestPrintProbeScript_WrapsWindowPrint(t *testing.T) {
	assert.Contains(t, printProbeScript, "window.print")
	assert.Contains(t, printProbeScript, "__treexport_printed")
	// Re-injection must be a no-op, not a double wrap.
	assert.Contains(t, printProbeScript, "__treexport_probe")
	assert.Contains(t, printFiredScript, "__treexport_printed")
}
