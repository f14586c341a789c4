// Package availability decides whether the simulated stakeholder can be
// messaged right now.
//
// A Gate holds a set of weekdays and half-open hour ranges in one time zone:
//
//	loc, _ := time.LoadLocation("America/New_York")
//	gate, err := availability.New(loc, availability.DefaultDays, availability.DefaultHours)
//	if gate.IsAvailable(time.Now()) { ... }
//
// A range {Start: 13, End: 17} admits 13:00 through 16:59; 17:00 is closed.
package availability
