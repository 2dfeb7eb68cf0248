// File: internal/browser/snapshot.go
package browser

import (
	"fmt"
	"strings"
)

// snapshotScript enumerates interactive elements, tags each with a stable
// data-kref attribute, and returns a structured summary. Refs are reassigned
// on every capture; stale refs from earlier snapshots are cleared first.
const snapshotScript = `(() => {
	const max = %d;
	document.querySelectorAll('[data-kref]').forEach(el => el.removeAttribute('data-kref'));
	const selector = 'a[href], button, input, select, textarea, [role="button"], [role="link"], [role="textbox"], [onclick]';
	const elements = [];
	let n = 0;
	for (const el of document.querySelectorAll(selector)) {
		if (n >= max) break;
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 && rect.height === 0) continue;
		n++;
		const ref = 'e' + n;
		el.setAttribute('data-kref', ref);
		const name = (el.getAttribute('aria-label') || el.innerText || el.value || el.placeholder || el.name || '').trim().replace(/\s+/g, ' ').slice(0, 80);
		elements.push({
			ref: ref,
			tag: el.tagName.toLowerCase(),
			type: el.getAttribute('type') || '',
			name: name,
		});
	}
	return {
		url: location.href,
		title: document.title,
		text: (document.body ? document.body.innerText : '').trim().replace(/\s+/g, ' ').slice(0, 1500),
		elements: elements,
	};
})()`

// snapshotPayload is the raw structure returned by snapshotScript.
type snapshotPayload struct {
	URL      string        `json:"url"`
	Title    string        `json:"title"`
	Text     string        `json:"text"`
	Elements []elementInfo `json:"elements"`
}

type elementInfo struct {
	Ref  string `json:"ref"`
	Tag  string `json:"tag"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// buildDigest renders the payload as the textual page digest presented to the
// inference engine: a visible-text excerpt followed by one line per element.
func buildDigest(p snapshotPayload) string {
	var b strings.Builder
	if p.Text != "" {
		fmt.Fprintf(&b, "Visible text: %s\n", p.Text)
	}
	if len(p.Elements) > 0 {
		b.WriteString("Interactive elements:\n")
		for _, el := range p.Elements {
			label := el.Tag
			if el.Type != "" {
				label = el.Tag + "[" + el.Type + "]"
			}
			if el.Name != "" {
				fmt.Fprintf(&b, "[%s] %s %q\n", el.Ref, label, el.Name)
			} else {
				fmt.Fprintf(&b, "[%s] %s\n", el.Ref, label)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// refSelector maps a snapshot ref onto the CSS selector for the tagged
// element.
func refSelector(ref string) string {
	return fmt.Sprintf(`[data-kref=%q]`, ref)
}

// refSet collects the refs present in a payload for membership checks.
func refSet(p snapshotPayload) map[string]struct{} {
	out := make(map[string]struct{}, len(p.Elements))
	for _, el := range p.Elements {
		out[el.Ref] = struct{}{}
	}
	return out
}
