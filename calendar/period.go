package calendar

import "errors"

// ErrInvalidPeriod is returned when a period ends before it starts.
var ErrInvalidPeriod = errors.New("invalid period: end before start")

// =============================================================================
// PERIOD - Closed date interval
// =============================================================================

// Period is the closed interval [Start, End]. Both ends are inclusive.
//
// Examples:
//   - Leave request 2024-06-20..2024-06-24
//   - Summer window 2024-06-01..2024-08-31
//   - Project deadline buffer 2024-06-18..2024-07-02
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewPeriod builds a period without validating it.
func NewPeriod(start, end Date) Period {
	return Period{Start: start, End: end}
}

// Validate reports ErrInvalidPeriod when End is before Start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Overlaps is closed-interval overlap: touching endpoints overlap.
func (p Period) Overlaps(o Period) bool {
	return IntervalsOverlap(p.Start, p.End, o.Start, o.End)
}

// Intersect returns the shared days of p and o. ok is false when they
// do not overlap.
func (p Period) Intersect(o Period) (Period, bool) {
	if !p.Overlaps(o) {
		return Period{}, false
	}
	start, end := p.Start, p.End
	if o.Start.After(start) {
		start = o.Start
	}
	if o.End.Before(end) {
		end = o.End
	}
	return Period{Start: start, End: end}, true
}

// Days returns every calendar day in the period, in order.
func (p Period) Days() []Date {
	var days []Date
	for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// IntervalsOverlap is true iff aStart <= bEnd AND bStart <= aEnd.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd Date) bool {
	return aStart.BeforeOrEqual(bEnd) && bStart.BeforeOrEqual(aEnd)
}
