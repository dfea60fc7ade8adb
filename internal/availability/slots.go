// Package availability computes the bookable slot calendar for a clinic.
// The calculator is pure: callers supply the grid and the set of taken slots.
package availability

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// Grid describes a clinic's daily slot layout.
type Grid struct {
	StartHour   int
	EndHour     int
	SlotMinutes int
}

// Slot is one grid entry on a given day.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// DaySlots lists the grid for one calendar day.
type DaySlots struct {
	Date           string `json:"date"`
	Slots          []Slot `json:"slots"`
	AvailableCount int    `json:"available_count"`
}

// Times returns the slot labels for one day, e.g. 09:00, 09:30, ... 17:30.
// The grid is half-open: a slot starting at EndHour is not included.
func (g Grid) Times() []string {
	if g.SlotMinutes <= 0 || g.StartHour >= g.EndHour {
		return nil
	}
	var times []string
	start := g.StartHour * 60
	end := g.EndHour * 60
	for m := start; m+g.SlotMinutes <= end; m += g.SlotMinutes {
		times = append(times, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return times
}

// Taken maps date (DateLayout) to the set of occupied slot labels.
type Taken map[string]map[string]bool

// BuildCalendar produces the per-day slot lists for a rolling horizon of
// days starting at from (a UTC-midnight day). A slot is unavailable when an
// active appointment already occupies it.
func BuildCalendar(grid Grid, from time.Time, days int, taken Taken) []DaySlots {
	labels := grid.Times()
	calendar := make([]DaySlots, 0, days)
	for i := 0; i < days; i++ {
		day := from.AddDate(0, 0, i)
		date := day.Format(DateLayout)
		busy := taken[date]

		slots := make([]Slot, 0, len(labels))
		available := 0
		for _, label := range labels {
			free := !busy[label]
			if free {
				available++
			}
			slots = append(slots, Slot{Time: label, Available: free})
		}
		calendar = append(calendar, DaySlots{Date: date, Slots: slots, AvailableCount: available})
	}
	return calendar
}
