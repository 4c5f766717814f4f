package solarterm

import (
	"fmt"
	"time"

	"github.com/sawpanic/bazirun/internal/solarterm/ephemeris"
)

// Generate computes an approximate table for Gregorian years from..to
// inclusive, with instants in loc rounded to the minute
func Generate(from, to int, loc *time.Location) (*Table, error) {
	if from > to {
		return nil, fmt.Errorf("invalid year range %d-%d", from, to)
	}
	if loc == nil {
		loc = ChinaStandardTime
	}
	instants := make([]Instant, 0, (to-from+1)*NumTerms)
	for y := from; y <= to; y++ {
		for _, term := range CalendarOrder {
			at := ephemeris.Crossing(y, term.Longitude()).In(loc).Round(time.Minute)
			instants = append(instants, Instant{Term: term, At: at})
		}
	}
	return NewTable(instants)
}
