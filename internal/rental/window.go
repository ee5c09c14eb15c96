// Package rental holds the availability, pricing and order-status rules
// shared by every entry point that books equipment.  Nothing in this
// package touches storage; callers supply the reserved quantities they
// loaded and receive plain values back.
package rental

import (
	"errors"
	"time"
)

// ErrEmptyWindow is returned by Window.Validate when End is not after Start.
var ErrEmptyWindow = errors.New("end date must be after start date")

// Window is an inclusive rental interval [Start, End].  Both bounds are
// compared as absolute instants, so the zone attached to a time.Time has
// no effect on overlap or day counts.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window with both bounds normalized to UTC.
func NewWindow(start, end time.Time) Window {
	return Window{Start: start.UTC(), End: end.UTC()}
}

// At returns the degenerate window [t, t], used to ask "what is booked
// right now".
func At(t time.Time) Window {
	return Window{Start: t.UTC(), End: t.UTC()}
}

// Validate rejects zero-length and inverted windows.
func (w Window) Validate() error {
	if !w.Start.Before(w.End) {
		return ErrEmptyWindow
	}
	return nil
}

// Overlaps reports whether two windows contend for the same inventory:
// a.Start <= b.End AND a.End >= b.Start.
func Overlaps(a, b Window) bool {
	return !a.Start.After(b.End) && !a.End.Before(b.Start)
}
