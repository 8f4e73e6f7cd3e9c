// Package grouping arranges a tab snapshot for display.
package grouping

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/b/procrastabs/pkg/colors"
	"github.com/b/procrastabs/pkg/tabs"
)

type Mode string

const (
	ByWindow Mode = "window"
	ByHost   Mode = "host"
)

// OtherHost collects tabs whose URL has no host (new tab pages, file://, ...).
const OtherHost = "other"

type GroupedTabs struct {
	Name  string
	Color string
	Tabs  []tabs.Record
}

// GroupTabs splits records into groups. Windows are ordered by id, hosts by
// name with OtherHost last; tabs inside a group by window then position.
func GroupTabs(records []tabs.Record, mode Mode, baseColor string) []GroupedTabs {
	groupMap := make(map[string]*GroupedTabs)
	var order []string

	for _, rec := range records {
		key := groupKey(rec, mode)
		g, ok := groupMap[key]
		if !ok {
			g = &GroupedTabs{Name: key}
			groupMap[key] = g
			order = append(order, key)
		}
		g.Tabs = append(g.Tabs, rec)
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := groupMap[order[i]], groupMap[order[j]]
		if mode == ByWindow {
			return a.Tabs[0].WindowID < b.Tabs[0].WindowID
		}
		if (a.Name == OtherHost) != (b.Name == OtherHost) {
			return b.Name == OtherHost
		}
		return a.Name < b.Name
	})

	result := make([]GroupedTabs, 0, len(order))
	for i, key := range order {
		g := groupMap[key]
		sort.SliceStable(g.Tabs, func(i, j int) bool {
			if g.Tabs[i].WindowID != g.Tabs[j].WindowID {
				return g.Tabs[i].WindowID < g.Tabs[j].WindowID
			}
			return g.Tabs[i].Position < g.Tabs[j].Position
		})
		g.Color = ShadeColorByIndex(baseColor, i)
		result = append(result, *g)
	}
	return result
}

func groupKey(rec tabs.Record, mode Mode) string {
	if mode == ByWindow {
		return fmt.Sprintf("window %d", rec.WindowID)
	}
	return HostOf(rec.URL)
}

// HostOf returns the URL's host without a leading "www.".
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return OtherHost
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// ShadeColorByIndex darkens baseColor a step per index, capped at half.
func ShadeColorByIndex(baseColor string, index int) string {
	shadeAmount := float64(index) * 0.1
	if shadeAmount > 0.5 {
		shadeAmount = 0.5
	}
	return colors.Adjust(baseColor, -shadeAmount)
}
