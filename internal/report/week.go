package report

import (
	"fmt"
	"strings"
	"time"

	"teamorders/internal/core"
)

// Week is an ordering week, Sunday through Saturday inclusive.
type Week struct {
	Start core.Date
	End   core.Date
}

// WeekOf returns the week containing d. A Sunday starts its own week.
func WeekOf(d core.Date) Week {
	start := addDays(d, -int(d.Weekday()))
	return Week{Start: start, End: addDays(start, 6)}
}

// WeekRange returns the ordering week containing t's calendar day.
func WeekRange(t time.Time) Week {
	return WeekOf(core.DateOf(t))
}

// Contains reports whether d falls within the week.
func (w Week) Contains(d core.Date) bool {
	return !d.Before(w.Start.Time) && !d.After(w.End.Time)
}

// Prev returns the week before w.
func (w Week) Prev() Week {
	return WeekOf(addDays(w.Start, -7))
}

// Next returns the week after w.
func (w Week) Next() Week {
	return WeekOf(addDays(w.Start, 7))
}

// Bounds returns the half-open [from, to) instant range covering the week in loc.
func (w Week) Bounds(loc *time.Location) (time.Time, time.Time) {
	from := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 7)
}

// String renders "3/2/25 - 3/8/25".
func (w Week) String() string {
	return w.Start.Short() + " - " + w.End.Short()
}

// Stamp is the YYYYMMDD start date used in export file names.
func (w Week) Stamp() string {
	return w.Start.Format("20060102")
}

// Anchor fixes where week 1 begins for week numbering.
type Anchor struct {
	sunday core.Date
	yearly bool
}

// NewAnchor anchors week 1 at the Sunday on or before d.
func NewAnchor(d core.Date) Anchor {
	return Anchor{sunday: WeekOf(d).Start}
}

// YearlyAnchor restarts numbering every year at the Sunday on or before January 1st.
func YearlyAnchor() Anchor {
	return Anchor{yearly: true}
}

// ParseAnchor accepts a YYYY-MM-DD date or "yearly".
func ParseAnchor(s string) (Anchor, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "yearly") {
		return YearlyAnchor(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Anchor{}, fmt.Errorf("parse week anchor %q: %w", s, err)
	}
	return NewAnchor(core.DateOf(t)), nil
}

// Sunday returns the week-1 start that applies to d.
func (a Anchor) Sunday(d core.Date) core.Date {
	if a.yearly {
		return WeekOf(core.NewDate(d.Year(), 1, 1)).Start
	}
	return a.sunday
}

// WeekNumber is floor((d - anchor Sunday) / 7) + 1. Dates before the anchor
// yield zero or negative numbers.
func (a Anchor) WeekNumber(d core.Date) int {
	days := int(d.Sub(a.Sunday(d).Time) / (24 * time.Hour))
	return floorDiv(days, 7) + 1
}

// WeekStart returns the first day of the numbered week in year.
func (a Anchor) WeekStart(year, week int) core.Date {
	base := a.sunday
	if a.yearly {
		base = WeekOf(core.NewDate(year, 1, 1)).Start
	}
	return addDays(base, (week-1)*7)
}

// WeekNumber numbers d against a week 1 that starts on the Sunday on or before anchor.
func WeekNumber(d, anchor core.Date) int {
	return NewAnchor(anchor).WeekNumber(d)
}

func addDays(d core.Date, n int) core.Date {
	return core.DateOf(d.AddDate(0, 0, n))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
