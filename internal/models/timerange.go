package models

import (
	"fmt"
	"time"
)

// RangePreset is a user-selectable display window.
type RangePreset string

const (
	Range1M     RangePreset = "1M"
	Range3M     RangePreset = "3M"
	Range6M     RangePreset = "6M"
	RangeYTD    RangePreset = "YTD"
	Range1Y     RangePreset = "1Y"
	Range2Y     RangePreset = "2Y"
	RangeCustom RangePreset = "custom"
)

// AllPresets lists the selectable presets in display order.
var AllPresets = []RangePreset{Range1M, Range3M, Range6M, RangeYTD, Range1Y, Range2Y}

// IsLarge reports whether the preset spans six months or more. Only large
// windows can promote a history boundary estimate: a short window cannot
// distinguish "no history" from "no activity".
func (p RangePreset) IsLarge() bool {
	switch p {
	case Range6M, Range1Y, Range2Y:
		return true
	}
	return false
}

// Window resolves the preset to a concrete [start, end] window ending today.
// Returns false for RangeCustom and unknown presets.
func (p RangePreset) Window(today Date) (Window, bool) {
	y, m, _ := today.Time().Date()
	switch p {
	case Range1M:
		return Window{Start: DateOf(today.Time().AddDate(0, -1, 0)), End: today}, true
	case Range3M:
		return Window{Start: DateOf(today.Time().AddDate(0, -3, 0)), End: today}, true
	case Range6M:
		return Window{Start: DateOf(today.Time().AddDate(0, -6, 0)), End: today}, true
	case RangeYTD:
		return Window{Start: NewDate(y, time.January, 1), End: today}, true
	case Range1Y:
		return Window{Start: NewDate(y-1, m, today.Time().Day()), End: today}, true
	case Range2Y:
		return Window{Start: NewDate(y-2, m, today.Time().Day()), End: today}, true
	}
	return Window{}, false
}

// Window is an inclusive calendar-day range.
type Window struct {
	Start Date `json:"start_date"`
	End   Date `json:"end_date"`
}

// Validate rejects empty, inverted, and future windows. Inputs are never
// silently corrected; a bad window blocks the operation that carries it.
func (w Window) Validate(today Date) error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window requires both start and end dates")
	}
	if w.Start.After(w.End) {
		return fmt.Errorf("window start %s is after end %s", w.Start, w.End)
	}
	if w.Start.After(today) || w.End.After(today) {
		return fmt.Errorf("window may not extend into the future")
	}
	return nil
}

// Contains reports whether d falls inside the window (inclusive).
func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days returns the number of calendar days covered, inclusive.
func (w Window) Days() int {
	return w.End.DaysSince(w.Start) + 1
}

// DisabledPresets returns the presets whose windows would start before the
// known history boundary, i.e. would request data known not to exist.
func DisabledPresets(boundary Date, today Date) []RangePreset {
	if boundary.IsZero() {
		return nil
	}
	var disabled []RangePreset
	for _, p := range AllPresets {
		w, ok := p.Window(today)
		if !ok {
			continue
		}
		if w.Start.Before(boundary) {
			disabled = append(disabled, p)
		}
	}
	return disabled
}
