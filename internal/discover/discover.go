// Package discover enumerates candidate businesses on the current view and
// filters out the ones this run has already handled.
package discover

import (
	"context"
	"fmt"

	"github.com/Maarij07/gmap-scrapper/internal/surface"
)

const (
	primarySelector  = `a[href*="/maps/place/"]`
	fallbackSelector = `div[data-result-id] a`
)

// Handle is an opaque reference to one result entity; the navigation
// target doubles as the entity's stable identifier.
type Handle struct {
	Href string
}

// Selector returns a locator that resolves this handle on the view.
func (h Handle) Selector() string {
	return fmt.Sprintf(`a[href=%q]`, h.Href)
}

// Tracker holds the processed-identifier set for exactly one harvesting
// run. The set only grows and is only consulted for membership.
type Tracker struct {
	seen map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// DiscoverNew enumerates result links on the current view and returns the
// not-yet-seen ones in view order. Identifiers are registered here, at
// discovery time, so a handle is never revisited even when its extraction
// later fails. When the primary selector matches nothing the fallback
// selector is tried.
func (t *Tracker) DiscoverNew(ctx context.Context, s surface.Surface) ([]Handle, error) {
	hrefs, err := s.Attrs(ctx, primarySelector, "href")
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	if len(hrefs) == 0 {
		hrefs, err = s.Attrs(ctx, fallbackSelector, "href")
		if err != nil {
			return nil, fmt.Errorf("discover fallback: %w", err)
		}
	}

	var fresh []Handle
	for _, href := range hrefs {
		if href == "" {
			continue
		}
		if _, dup := t.seen[href]; dup {
			continue
		}
		t.seen[href] = struct{}{}
		fresh = append(fresh, Handle{Href: href})
	}
	return fresh, nil
}

// Processed reports how many distinct identifiers the run has registered.
func (t *Tracker) Processed() int {
	return len(t.seen)
}
