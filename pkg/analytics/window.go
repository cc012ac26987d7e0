package analytics

import (
	"errors"
	"fmt"
	"time"
)

// Window selects the historical range a snapshot covers
type Window string

const (
	Window7d  Window = "7d"
	Window30d Window = "30d"
	Window90d Window = "90d"
	WindowAll Window = "all"
)

// ErrInvalidWindow is returned for any selector outside Windows()
var ErrInvalidWindow = errors.New("invalid window")

// Origin is the cutoff for WindowAll and the instant assigned to rows
// without a timestamp. Every real instant is >= Origin.
var Origin = time.Time{}

// Windows returns the supported selectors in display order
func Windows() []Window {
	return []Window{Window7d, Window30d, Window90d, WindowAll}
}

// ParseWindow converts a selector string into a Window
func ParseWindow(s string) (Window, error) {
	w := Window(s)
	if err := w.Validate(); err != nil {
		return "", err
	}
	return w, nil
}

// Validate reports whether w is one of the supported selectors
func (w Window) Validate() error {
	switch w {
	case Window7d, Window30d, Window90d, WindowAll:
		return nil
	}
	return fmt.Errorf("%w: %q (must be one of 7d, 30d, 90d, all)", ErrInvalidWindow, string(w))
}

// Days returns the length of the window in days, 0 for WindowAll
func (w Window) Days() int {
	switch w {
	case Window7d:
		return 7
	case Window30d:
		return 30
	case Window90d:
		return 90
	default:
		return 0
	}
}

// Cutoff resolves the window to an absolute instant relative to now.
// Records at or after the cutoff are in the window.
func (w Window) Cutoff(now time.Time) time.Time {
	days := w.Days()
	if days == 0 {
		return Origin
	}
	return now.Add(-time.Duration(days) * day)
}

func (w Window) String() string {
	return string(w)
}
