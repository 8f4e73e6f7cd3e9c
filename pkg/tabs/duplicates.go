package tabs

import "strings"

// NewTabURL is the sentinel every blank or new-tab page normalizes to.
const NewTabURL = "newtab"

var newTabPages = map[string]bool{
	"about:blank":            true,
	"about:newtab":           true,
	"chrome://newtab/":       true,
	"chrome://new-tab-page/": true,
	"edge://newtab/":         true,
}

// NormalizeURL maps blank and new-tab pages to NewTabURL so they compare equal.
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" || newTabPages[strings.ToLower(u)] {
		return NewTabURL
	}
	return u
}

// DuplicatesOf returns every other tracked tab whose normalized URL matches
// the given tab's, in iteration order.
func (r *Registry) DuplicatesOf(id ID) []Tab {
	t, ok := r.byID[id]
	if !ok {
		return nil
	}
	want := NormalizeURL(t.URL)
	var out []Tab
	for _, other := range r.tabs {
		if other.ID != id && NormalizeURL(other.URL) == want {
			out = append(out, *other)
		}
	}
	return out
}

// Sweep returns every tab after the first occurrence of its normalized URL.
func (r *Registry) Sweep() []Tab {
	seen := make(map[string]bool, len(r.tabs))
	var out []Tab
	for _, t := range r.tabs {
		u := NormalizeURL(t.URL)
		if seen[u] {
			out = append(out, *t)
			continue
		}
		seen[u] = true
	}
	return out
}
