// ABOUTME: Weekly availability window for the simulated stakeholder
// ABOUTME: Pure wall-clock checks against configured weekdays and half-open hour ranges

package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Schedule errors
var (
	ErrNoDays       = errors.New("availability schedule has no days")
	ErrNoHours      = errors.New("availability schedule has no hour ranges")
	ErrInvalidRange = errors.New("invalid hour range")
)

// HourRange is a half-open [Start, End) range of hours of the day.
type HourRange struct {
	Start int
	End   int
}

// Contains reports whether hour falls within the range.
func (r HourRange) Contains(hour int) bool {
	return hour >= r.Start && hour < r.End
}

func (r HourRange) String() string {
	return fmt.Sprintf("%02d:00-%02d:00", r.Start, r.End)
}

// Gate answers whether the remote party is reachable at a given instant.
// A Gate is immutable after construction and safe for concurrent use.
type Gate struct {
	loc    *time.Location
	days   map[time.Weekday]bool
	order  []time.Weekday
	ranges []HourRange
}

// DefaultDays are Monday through Friday.
var DefaultDays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// DefaultHours are 09:00-12:00 and 13:00-17:00.
var DefaultHours = []HourRange{{Start: 9, End: 12}, {Start: 13, End: 17}}

// New builds a Gate. loc defaults to UTC when nil.
func New(loc *time.Location, days []time.Weekday, hours []HourRange) (*Gate, error) {
	if len(days) == 0 {
		return nil, ErrNoDays
	}
	if len(hours) == 0 {
		return nil, ErrNoHours
	}
	if loc == nil {
		loc = time.UTC
	}

	g := &Gate{
		loc:  loc,
		days: make(map[time.Weekday]bool, len(days)),
	}
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return nil, fmt.Errorf("invalid weekday %d", d)
		}
		if !g.days[d] {
			g.days[d] = true
			g.order = append(g.order, d)
		}
	}
	sort.Slice(g.order, func(i, j int) bool { return g.order[i] < g.order[j] })

	for _, r := range hours {
		if r.Start < 0 || r.End > 24 || r.Start >= r.End {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRange, r)
		}
		g.ranges = append(g.ranges, r)
	}
	sort.Slice(g.ranges, func(i, j int) bool { return g.ranges[i].Start < g.ranges[j].Start })

	return g, nil
}

// IsAvailable reports whether now falls on a configured weekday and inside at
// least one configured hour range, evaluated in the gate's time zone.
func (g *Gate) IsAvailable(now time.Time) bool {
	local := now.In(g.loc)
	if !g.days[local.Weekday()] {
		return false
	}
	hour := local.Hour()
	for _, r := range g.ranges {
		if r.Contains(hour) {
			return true
		}
	}
	return false
}

// NextOpening returns the earliest instant at or after now when the gate is
// open. It returns now itself when the gate is already open.
func (g *Gate) NextOpening(now time.Time) time.Time {
	if g.IsAvailable(now) {
		return now
	}

	local := now.In(g.loc)
	for offset := 0; offset <= 7; offset++ {
		day := time.Date(local.Year(), local.Month(), local.Day()+offset, 0, 0, 0, 0, g.loc)
		if !g.days[day.Weekday()] {
			continue
		}
		for _, r := range g.ranges {
			candidate := time.Date(day.Year(), day.Month(), day.Day(), r.Start, 0, 0, 0, g.loc)
			if candidate.After(now) {
				return candidate
			}
		}
	}

	// Unreachable with at least one day and one range.
	return now
}

// Location returns the gate's time zone.
func (g *Gate) Location() *time.Location {
	return g.loc
}

// DaysLabel renders the configured weekdays, collapsing a consecutive run
// into "Monday to Friday".
func (g *Gate) DaysLabel() string {
	if len(g.order) == 1 {
		return g.order[0].String()
	}

	consecutive := true
	for i := 1; i < len(g.order); i++ {
		if g.order[i] != g.order[i-1]+1 {
			consecutive = false
			break
		}
	}
	if consecutive && len(g.order) > 2 {
		return fmt.Sprintf("%s to %s", g.order[0], g.order[len(g.order)-1])
	}

	names := make([]string, len(g.order))
	for i, d := range g.order {
		names[i] = d.String()
	}
	return strings.Join(names, ", ")
}

// HoursLabel renders the configured hour ranges with the time zone name.
func (g *Gate) HoursLabel() string {
	parts := make([]string, len(g.ranges))
	for i, r := range g.ranges {
		parts[i] = r.String()
	}
	return fmt.Sprintf("%s (%s)", strings.Join(parts, ", "), g.loc)
}
