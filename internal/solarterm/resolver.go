package solarterm

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Source records how a boundary instant was obtained
type Source int

const (
	Exact         Source = iota // listed in the table for the requested year
	NearestYear                 // copied from the nearest listed year
	FixedCalendar               // fixed Gregorian day, no data available
)

func (s Source) String() string {
	switch s {
	case Exact:
		return "exact"
	case NearestYear:
		return "nearest_year"
	case FixedCalendar:
		return "fixed_calendar"
	default:
		return "unknown"
	}
}

func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Boundary is the start of a solar month
type Boundary struct {
	Term   Term      `json:"term"`
	At     time.Time `json:"at"`
	Source Source    `json:"source"`
}

// Resolution places an instant in the solar calendar
type Resolution struct {
	Month     int      `json:"month"`      // 1 = Yin month (opened by Lichun) .. 12 = Chou month
	SolarYear int      `json:"solar_year"` // Gregorian year of the Lichun that opened the solar year
	Start     Boundary `json:"start"`
	End       Boundary `json:"end"`
	Source    Source   `json:"source"` // least reliable of Start and End
}

// fixed Gregorian month/day of each entering term, in solar month order
var fixedDays = [12][2]int{
	{2, 4}, {3, 6}, {4, 5}, {5, 6}, {6, 6}, {7, 7},
	{8, 8}, {9, 8}, {10, 8}, {11, 7}, {12, 7}, {1, 6},
}

// Resolver maps instants to solar months. It never fails: missing years fall
// back to the nearest listed year, and an empty table to fixed calendar days.
// A Resolver is safe for concurrent use.
type Resolver struct {
	table *Table
	loc   *time.Location
}

// NewResolver wraps a table; fixed-calendar boundaries are placed in China Standard Time
func NewResolver(t *Table) *Resolver {
	return &Resolver{table: t, loc: ChinaStandardTime}
}

// Table exposes the underlying table
func (r *Resolver) Table() *Table { return r.table }

// Resolve returns the solar month and solar year containing at
func (r *Resolver) Resolve(at time.Time) Resolution {
	start, end := r.bracket(at)
	res := Resolution{
		Month:     start.Term.Month(),
		SolarYear: start.At.Year(),
		Start:     start,
		End:       end,
		Source:    worst(start.Source, end.Source),
	}
	if start.Term == Xiaohan {
		res.SolarYear--
	}
	if res.Source != Exact {
		log.Warn().
			Time("at", at).
			Str("source", res.Source.String()).
			Int("solar_year", res.SolarYear).
			Msg("solar-term data missing, using fallback boundaries")
	}
	return res
}

// Prev returns the latest entering term at or before at
func (r *Resolver) Prev(at time.Time) Boundary {
	start, _ := r.bracket(at)
	return start
}

// Next returns the earliest entering term strictly after at
func (r *Resolver) Next(at time.Time) Boundary {
	_, end := r.bracket(at)
	return end
}

// Boundaries returns the twelve month-opening terms of Gregorian year y in
// chronological order, each with the source it was resolved from
func (r *Resolver) Boundaries(y int) []Boundary {
	out := make([]Boundary, 0, 12)
	out = append(out, r.boundary(y, 12))
	for m := 1; m <= 11; m++ {
		out = append(out, r.boundary(y, m))
	}
	return out
}

func (r *Resolver) bracket(at time.Time) (start, end Boundary) {
	y := at.In(r.loc).Year()
	var haveStart, haveEnd bool
	for yy := y - 1; yy <= y+1; yy++ {
		for m := 1; m <= 12; m++ {
			b := r.boundary(yy, m)
			if !b.At.After(at) {
				if !haveStart || b.At.After(start.At) {
					start, haveStart = b, true
				}
			} else if !haveEnd || b.At.Before(end.At) {
				end, haveEnd = b, true
			}
		}
	}
	return start, end
}

// boundary returns the entering term of solar month m falling in Gregorian year y
func (r *Resolver) boundary(y, m int) Boundary {
	term := EnteringTerm(m)
	if at, ok := r.table.Lookup(y, term); ok {
		return Boundary{Term: term, At: at, Source: Exact}
	}
	if near, err := r.table.Nearest(y, term); err == nil {
		at := time.Date(y, near.Month(), near.Day(), near.Hour(), near.Minute(), near.Second(), 0, near.Location())
		return Boundary{Term: term, At: at, Source: NearestYear}
	}
	md := fixedDays[m-1]
	return Boundary{Term: term, At: time.Date(y, time.Month(md[0]), md[1], 0, 0, 0, 0, r.loc), Source: FixedCalendar}
}

func worst(a, b Source) Source {
	if a > b {
		return a
	}
	return b
}
