package calendar

// =============================================================================
// BUSINESS-DAY COUNTER
// =============================================================================

// CountChargeableDays counts the days in [start, end] that are neither the
// rest day nor a public holiday. Returns 0 when start is after end.
//
// This is the only definition of "days requested" in the module.
func (c *Calendar) CountChargeableDays(start, end Date) int {
	if start.After(end) {
		return 0
	}
	n := 0
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if c.IsChargeable(d) {
			n++
		}
	}
	return n
}

// CountPeriod is CountChargeableDays over a Period.
func (c *Calendar) CountPeriod(p Period) int {
	return c.CountChargeableDays(p.Start, p.End)
}

// ChargeableDays lists the chargeable days in [start, end].
func (c *Calendar) ChargeableDays(start, end Date) []Date {
	var out []Date
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if c.IsChargeable(d) {
			out = append(out, d)
		}
	}
	return out
}
