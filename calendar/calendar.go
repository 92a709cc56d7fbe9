package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// =============================================================================
// CALENDAR - Rest day and public holidays
// =============================================================================

// Holiday is a named public holiday on a fixed date.
type Holiday struct {
	Date Date   `json:"date"`
	Name string `json:"name,omitempty"`
}

// Calendar answers "is this day chargeable". It is immutable once built
// and safe for concurrent use.
type Calendar struct {
	restDay  time.Weekday
	holidays map[Date]string
	sets     *cal.BusinessCalendar
}

// New builds a calendar with an explicit holiday list.
func New(restDay time.Weekday, holidays []Holiday) *Calendar {
	c := &Calendar{
		restDay:  restDay,
		holidays: make(map[Date]string, len(holidays)),
	}
	for _, h := range holidays {
		c.holidays[h.Date] = h.Name
	}
	return c
}

// WithHolidaySets adds named national holiday sets on top of the explicit
// list. Unknown set names are an error so a typo in configuration does not
// silently make every holiday chargeable.
func (c *Calendar) WithHolidaySets(names ...string) (*Calendar, error) {
	if len(names) == 0 {
		return c, nil
	}
	bc := cal.NewBusinessCalendar()
	for _, name := range names {
		set, ok := holidaySets[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown holiday set %q", name)
		}
		bc.AddHoliday(set...)
	}
	clone := *c
	clone.sets = bc
	return &clone, nil
}

// holidaySets maps configuration names to rickar/cal holiday definitions.
var holidaySets = map[string][]*cal.Holiday{
	"us": {
		us.NewYear,
		us.MlkDay,
		us.MemorialDay,
		us.Juneteenth,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	},
}

// HolidaySetNames lists the supported holiday set names.
func HolidaySetNames() []string {
	names := make([]string, 0, len(holidaySets))
	for name := range holidaySets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RestDay returns the fixed weekly rest day.
func (c *Calendar) RestDay() time.Weekday { return c.restDay }

// IsRestDay is true if d falls on the weekly rest day.
func (c *Calendar) IsRestDay(d Date) bool {
	return d.Weekday() == c.restDay
}

// IsPublicHoliday is true if d is in the explicit list or in one of the
// configured holiday sets (actual or observed date).
func (c *Calendar) IsPublicHoliday(d Date) bool {
	if _, ok := c.holidays[d]; ok {
		return true
	}
	if c.sets != nil {
		actual, observed, _ := c.sets.IsHoliday(d.Time())
		return actual || observed
	}
	return false
}

// HolidayName returns the configured name of an explicit holiday.
func (c *Calendar) HolidayName(d Date) (string, bool) {
	name, ok := c.holidays[d]
	return name, ok
}

// IsChargeable is true for days that count against leave entitlement.
func (c *Calendar) IsChargeable(d Date) bool {
	return !c.IsRestDay(d) && !c.IsPublicHoliday(d)
}

// Holidays returns the explicit holidays in date order.
func (c *Calendar) Holidays() []Holiday {
	out := make([]Holiday, 0, len(c.holidays))
	for d, name := range c.holidays {
		out = append(out, Holiday{Date: d, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
