package solarterm

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrNoData is returned when a table holds no instant for a lookup
var ErrNoData = errors.New("no solar-term data")

// Instant is the moment a solar term begins
type Instant struct {
	Term Term      `json:"term" db:"term"`
	At   time.Time `json:"at" db:"at"`
}

// Table is an immutable index of solar-term instants. Instants are keyed by
// the Gregorian year they actually fall in, whatever grouping the source used.
// A nil or empty Table is valid and reports no data.
type Table struct {
	byTerm [NumTerms]map[int]time.Time
	years  [NumTerms][]int
	count  int
}

// NewTable indexes instants; a term appearing twice in one year is an error
func NewTable(instants []Instant) (*Table, error) {
	t := &Table{}
	for _, in := range instants {
		if !in.Term.Valid() {
			return nil, fmt.Errorf("invalid solar term %d", int(in.Term))
		}
		if in.At.IsZero() {
			return nil, fmt.Errorf("solar term %s has no timestamp", in.Term)
		}
		y := in.At.Year()
		if t.byTerm[in.Term] == nil {
			t.byTerm[in.Term] = make(map[int]time.Time)
		}
		if prev, dup := t.byTerm[in.Term][y]; dup {
			return nil, fmt.Errorf("solar term %s listed twice for %d (%s, %s)", in.Term, y, prev.Format(time.RFC3339), in.At.Format(time.RFC3339))
		}
		t.byTerm[in.Term][y] = in.At
		t.years[in.Term] = append(t.years[in.Term], y)
		t.count++
	}
	for i := range t.years {
		sort.Ints(t.years[i])
	}
	return t, nil
}

// Len returns the number of instants held
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.count
}

// Lookup returns the instant of term in Gregorian year y
func (t *Table) Lookup(y int, term Term) (time.Time, bool) {
	if t == nil || !term.Valid() {
		return time.Time{}, false
	}
	at, ok := t.byTerm[term][y]
	return at, ok
}

// Nearest returns the instant of term from the available year closest to y
// (earlier year on ties), or ErrNoData
func (t *Table) Nearest(y int, term Term) (time.Time, error) {
	if t == nil || !term.Valid() || len(t.years[term]) == 0 {
		return time.Time{}, ErrNoData
	}
	ys := t.years[term]
	i := sort.SearchInts(ys, y)
	best := -1
	if i < len(ys) {
		best = ys[i]
	}
	if i > 0 && (best < 0 || y-ys[i-1] <= best-y) {
		best = ys[i-1]
	}
	return t.byTerm[term][best], nil
}

// Span returns the first and last Gregorian years with any data
func (t *Table) Span() (first, last int, ok bool) {
	if t.Len() == 0 {
		return 0, 0, false
	}
	first, last = math.MaxInt, math.MinInt
	for _, ys := range t.years {
		if len(ys) == 0 {
			continue
		}
		if ys[0] < first {
			first = ys[0]
		}
		if ys[len(ys)-1] > last {
			last = ys[len(ys)-1]
		}
	}
	return first, last, true
}

// Year returns the instants falling in Gregorian year y in calendar order
func (t *Table) Year(y int) []Instant {
	var out []Instant
	for _, term := range CalendarOrder {
		if at, ok := t.Lookup(y, term); ok {
			out = append(out, Instant{Term: term, At: at})
		}
	}
	return out
}

// Instants returns every instant in chronological order
func (t *Table) Instants() []Instant {
	if t == nil {
		return nil
	}
	out := make([]Instant, 0, t.count)
	for term := range t.byTerm {
		for _, at := range t.byTerm[term] {
			out = append(out, Instant{Term: Term(term), At: at})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}
