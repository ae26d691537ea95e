// File: internal/browser/js.go
// Description: Builders for the JavaScript snippets the session evaluates in
// the workspace page. Every selector, role, and label comes from
// configuration; snippets embed them with %q so arbitrary configured strings
// stay valid JS string literals.
package browser

import "fmt"

// roleSelector builds an attribute selector for an ARIA role.
func roleSelector(role string) string {
	return fmt.Sprintf(`[role=%s]`, role)
}

// itemLabel is shared by the enumeration snippets. Labels are the first line
// of the element's text content: nested descendants append their own lines to
// a parent's textContent after expansion, so only the first line is stable.
const itemLabel = `(function (el) {
		var t = (el.textContent || "").trim();
		var nl = t.indexOf("\n");
		return nl === -1 ? t : t.slice(0, nl).trim();
	})`

// workspaceLinkScript clicks the first directory link whose label contains
// name. Returns true if a link was found and clicked.
func workspaceLinkScript(linkSelector, name string) string {
	return fmt.Sprintf(`(function () {
	var label = %s;
	var links = document.querySelectorAll(%q);
	for (var i = 0; i < links.length; i++) {
		if (label(links[i]).indexOf(%q) !== -1) {
			links[i].click();
			return true;
		}
	}
	return false;
})()`, itemLabel, linkSelector, name)
}

// treeItemsScript enumerates the labels of every tree item in document order.
func treeItemsScript(treeItemRole string) string {
	return fmt.Sprintf(`(function () {
	var label = %s;
	var items = document.querySelectorAll(%q);
	var out = [];
	for (var i = 0; i < items.length; i++) {
		out.push(label(items[i]));
	}
	return out;
})()`, itemLabel, roleSelector(treeItemRole))
}

// affordancesScript enumerates the currently visible expand affordances as
// {index, label} pairs in document order. The label is taken from the closest
// enclosing tree item so callers can key on it across re-enumerations.
func affordancesScript(expandSelector, treeItemRole string) string {
	return fmt.Sprintf(`(function () {
	var label = %s;
	var nodes = document.querySelectorAll(%q);
	var out = [];
	for (var i = 0; i < nodes.length; i++) {
		var item = nodes[i].closest(%q);
		out.push({index: i, label: item ? label(item) : label(nodes[i])});
	}
	return out;
})()`, itemLabel, expandSelector, roleSelector(treeItemRole))
}

// affordanceCountScript returns the number of visible expand affordances.
func affordanceCountScript(expandSelector string) string {
	return fmt.Sprintf(`document.querySelectorAll(%q).length`, expandSelector)
}

// roleCountScript counts elements carrying the given ARIA role.
func roleCountScript(role string) string {
	return affordanceCountScript(roleSelector(role))
}

// countPositiveScript turns a count expression into a boolean poll condition.
func countPositiveScript(countExpr string) string {
	return countExpr + " > 0"
}

// clickNthScript clicks the nth element matching selector. Returns false when
// the element no longer exists, which callers treat as the target having
// detached between enumeration and click.
func clickNthScript(selector string, n int) string {
	return fmt.Sprintf(`(function () {
	var nodes = document.querySelectorAll(%q);
	if (%d >= nodes.length) {
		return false;
	}
	nodes[%d].click();
	return true;
})()`, selector, n, n)
}

// expandAffordanceScript clicks the expand affordance belonging to the tree
// item with the given label. Every successful expansion mutates the affordance
// list (the expanded node leaves it, its children may join), so a position
// captured at enumeration time goes stale mid-pass; the label is the only
// handle that stays valid. First matching item wins, consistent with the
// label-keyed memo. Returns false when no such affordance exists anymore.
func expandAffordanceScript(expandSelector, treeItemRole, label string) string {
	return fmt.Sprintf(`(function () {
	var label = %s;
	var nodes = document.querySelectorAll(%q);
	for (var i = 0; i < nodes.length; i++) {
		var item = nodes[i].closest(%q);
		var text = item ? label(item) : label(nodes[i]);
		if (text === %q) {
			nodes[i].click();
			return true;
		}
	}
	return false;
})()`, itemLabel, expandSelector, roleSelector(treeItemRole), label)
}

// loadedProbeScript checks whether the subtree of the tree item with the
// given label has finished loading. Clicking an affordance mutates the DOM,
// so the probe keys on the item's label rather than a stale index. The item
// must no longer read aria-expanded="false", and when the host marks lazy
// nodes with a load-state attribute (any attribute whose name starts with
// attrPrefix), that attribute must be present. An item that detached during
// expansion counts as loaded; the next enumeration pass sees the tree as it
// now is.
func loadedProbeScript(treeItemRole, attrPrefix, label string) string {
	return fmt.Sprintf(`(function () {
	var label = %s;
	var items = document.querySelectorAll(%q);
	var el = null;
	for (var i = 0; i < items.length; i++) {
		if (label(items[i]) === %q) {
			el = items[i];
			break;
		}
	}
	if (el === null) {
		return true;
	}
	if (el.getAttribute("aria-expanded") === "false") {
		return false;
	}
	var prefix = %q;
	if (prefix === "") {
		return true;
	}
	for (var j = 0; j < el.attributes.length; j++) {
		if (el.attributes[j].name.indexOf(prefix) === 0) {
			return true;
		}
	}
	return el.querySelector(%q) !== null;
})()`, itemLabel, roleSelector(treeItemRole), label, attrPrefix, roleSelector(treeItemRole))
}

// selectItemScript clicks the nth tree item. Returns false when it is gone.
func selectItemScript(treeItemRole string, n int) string {
	return clickNthScript(roleSelector(treeItemRole), n)
}

// openItemMenuScript clicks the "more options" affordance inside the nth tree
// item, located by its accessible label. Returns false if the item or its
// affordance cannot be found.
func openItemMenuScript(treeItemRole, moreOptionsLabel string, n int) string {
	return fmt.Sprintf(`(function () {
	var items = document.querySelectorAll(%q);
	if (%d >= items.length) {
		return false;
	}
	var item = items[%d];
	var buttons = item.querySelectorAll("[aria-label]");
	for (var i = 0; i < buttons.length; i++) {
		if ((buttons[i].getAttribute("aria-label") || "").indexOf(%q) !== -1) {
			buttons[i].click();
			return true;
		}
	}
	return false;
})()`, roleSelector(treeItemRole), n, n, moreOptionsLabel)
}

// menuEntriesScript enumerates the visible text of every rendered menu entry.
func menuEntriesScript(menuItemRole string) string {
	return treeItemsScript(menuItemRole)
}

// clickMenuEntryScript clicks the nth rendered menu entry.
func clickMenuEntryScript(menuItemRole string, n int) string {
	return clickNthScript(roleSelector(menuItemRole), n)
}

// printProbeScript installs a flag that flips the moment the page calls
// window.print. The wrapper forwards to the original so the native dialog
// still appears. Idempotent re-injection is harmless: the wrapped function is
// wrapped again but the flag semantics are unchanged.
const printProbeScript = `(function () {
	if (window.__treexport_probe) {
		return true;
	}
	window.__treexport_probe = true;
	window.__treexport_printed = false;
	var orig = window.print.bind(window);
	window.print = function () {
		window.__treexport_printed = true;
		return orig();
	};
	return true;
})()`

// printFiredScript reads the probe flag.
const printFiredScript = `window.__treexport_printed === true`
