package notification

import (
	"slices"
	"strings"

	"github.com/aerodesk/aerodesk/internal/errors"
)

// View is a named status filter used by the panels.
type View string

const (
	// ViewAll shows everything targeting the panel.
	ViewAll View = "all"
	// ViewPending shows records nobody has picked up yet.
	ViewPending View = "pending"
	// ViewActive shows acknowledged or in-progress records.
	ViewActive View = "active"
	// ViewOpen hides completed records; the ground crew's default tab.
	ViewOpen View = "open"
)

// FilterOptions narrows a panel projection. Empty slices match everything.
type FilterOptions struct {
	Statuses   []Status
	Priorities []Priority
	Types      []Type
	Limit      int
	Offset     int
}

// ParseView resolves a view name case-insensitively and rejects unknown views.
func ParseView(s string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case ViewAll, ViewPending, ViewActive, ViewOpen:
		return v, nil
	default:
		return "", errors.Newf("unknown view %q", s).
			Component("notification").
			Category(errors.CategoryValidation).
			Context("view", s).
			Build()
	}
}

// ViewFilter returns the filter behind a named view. Unknown views match everything.
func ViewFilter(v View) *FilterOptions {
	switch View(strings.ToLower(string(v))) {
	case ViewPending:
		return &FilterOptions{Statuses: []Status{StatusPending}}
	case ViewActive:
		return &FilterOptions{Statuses: []Status{StatusAcknowledged, StatusInProgress}}
	case ViewOpen:
		return &FilterOptions{Statuses: []Status{StatusPending, StatusAcknowledged, StatusInProgress, StatusCancelled}}
	default:
		return nil
	}
}

func (f *FilterOptions) matches(n *Notification) bool {
	if f == nil {
		return true
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, n.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, n.Priority) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, n.Type) {
		return false
	}
	return true
}

// Filter applies f to a collection, keeping order, then paginates.
func Filter(notifications []*Notification, f *FilterOptions) []*Notification {
	out := make([]*Notification, 0, len(notifications))
	for _, n := range notifications {
		if f.matches(n) {
			out = append(out, n)
		}
	}
	return paginate(out, f)
}

// Project returns the records targeting panel in store order, filtered by f.
func Project(notifications []*Notification, panel Panel, f *FilterOptions) []*Notification {
	out := make([]*Notification, 0, len(notifications))
	for _, n := range notifications {
		if n.Targets(panel) && f.matches(n) {
			out = append(out, n)
		}
	}
	return paginate(out, f)
}

func paginate(notifications []*Notification, f *FilterOptions) []*Notification {
	if f == nil {
		return notifications
	}
	if f.Offset > 0 {
		if f.Offset >= len(notifications) {
			return []*Notification{}
		}
		notifications = notifications[f.Offset:]
	}
	if f.Limit > 0 && len(notifications) > f.Limit {
		notifications = notifications[:f.Limit]
	}
	return notifications
}

// PanelCount holds badge numbers for one panel.
type PanelCount struct {
	Pending int `json:"pending"`
	Total   int `json:"total"`
}

// Counts holds badge numbers for both panels plus the global number of
// critical records still pending.
type Counts struct {
	ATC        PanelCount `json:"atc"`
	GroundCrew PanelCount `json:"groundCrew"`
	Critical   int        `json:"critical"`
}

// ForPanel returns the count for one panel.
func (c Counts) ForPanel(panel Panel) PanelCount {
	if panel == PanelATC {
		return c.ATC
	}
	return c.GroundCrew
}

// Tally reduces a collection to badge counts.
func Tally(notifications []*Notification) Counts {
	var c Counts
	for _, n := range notifications {
		pending := n.Status == StatusPending
		if n.Targets(PanelATC) {
			c.ATC.Total++
			if pending {
				c.ATC.Pending++
			}
		}
		if n.Targets(PanelGroundCrew) {
			c.GroundCrew.Total++
			if pending {
				c.GroundCrew.Pending++
			}
		}
		if pending && n.Priority == PriorityCritical {
			c.Critical++
		}
	}
	return c
}
