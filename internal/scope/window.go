// Package scope models the requested extraction scope: the optional date
// window and the retrieval strategy chosen for it.
package scope

import (
	"fmt"
	"time"
)

// Window is an optional (since, until) pair. Both bounds absent means
// unbounded, all-time scope; that is a first-class state, not a default
// placeholder.
type Window struct {
	Since *time.Time
	Until *time.Time
}

// ParseWindow builds a window from raw bounds. Each bound accepts YYYY-MM-DD
// (interpreted as UTC midnight) or a full RFC 3339 timestamp; empty strings
// leave the bound open.
func ParseWindow(since, until string) (Window, error) {
	var w Window
	if since != "" {
		t, err := parseBound(since)
		if err != nil {
			return Window{}, fmt.Errorf("invalid since: %w", err)
		}
		w.Since = &t
	}
	if until != "" {
		t, err := parseBound(until)
		if err != nil {
			return Window{}, fmt.Errorf("invalid until: %w", err)
		}
		w.Until = &t
	}
	return w, nil
}

func parseBound(s string) (time.Time, error) {
	if len(s) == len("2006-01-02") {
		t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("use YYYY-MM-DD or RFC 3339: %w", err)
		}
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("use YYYY-MM-DD or RFC 3339: %w", err)
	}
	return t, nil
}

// IsAllTime reports whether both bounds are absent.
func (w Window) IsAllTime() bool {
	return w.Since == nil && w.Until == nil
}

// Bounded reports whether both bounds are present.
func (w Window) Bounded() bool {
	return w.Since != nil && w.Until != nil
}

// Contains reports whether t lies inside the window; open bounds do not
// constrain.
func (w Window) Contains(t time.Time) bool {
	if w.Since != nil && t.Before(*w.Since) {
		return false
	}
	if w.Until != nil && t.After(*w.Until) {
		return false
	}
	return true
}

// String renders the window for filter banners and logs.
func (w Window) String() string {
	if w.IsAllTime() {
		return "ALL TIME (no date window)"
	}
	since, until := "-inf", "+inf"
	if w.Since != nil {
		since = w.Since.UTC().Format(time.RFC3339)
	}
	if w.Until != nil {
		until = w.Until.UTC().Format(time.RFC3339)
	}
	return since + "  ->  " + until
}
