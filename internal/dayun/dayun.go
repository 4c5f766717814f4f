package dayun

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/pillars"
	"github.com/sawpanic/bazirun/internal/solarterm"
)

// Direction of the major-cycle sequence through the sixty-cycle
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Step is +1 forward, -1 reverse
func (d Direction) Step() int {
	if d == Reverse {
		return -1
	}
	return 1
}

// DirectionOf runs forward for a yang year and a male, or a yin year and a female
func DirectionOf(yearStem ganzhi.Stem, g pillars.Gender) Direction {
	if yearStem.Yang() == (g == pillars.Male) {
		return Forward
	}
	return Reverse
}

// Config for the generator
type Config struct {
	Cycles          int         `yaml:"cycles" json:"cycles"`                       // Default: 10
	DefaultStartAge int         `yaml:"default_start_age" json:"default_start_age"` // Default: 3
	Trend           TrendConfig `yaml:"trend" json:"trend"`
}

// DefaultConfig returns ten cycles and the customary start age of three
func DefaultConfig() Config {
	return Config{Cycles: 10, DefaultStartAge: 3, Trend: DefaultTrendConfig()}
}

// Validate returns every problem found; empty means usable
func (c Config) Validate() []string {
	var problems []string
	if c.Cycles < 1 || c.Cycles > 12 {
		problems = append(problems, fmt.Sprintf("cycles must be within [1,12], got %d", c.Cycles))
	}
	if c.DefaultStartAge < 1 || c.DefaultStartAge > 10 {
		problems = append(problems, fmt.Sprintf("default_start_age must be within [1,10], got %d", c.DefaultStartAge))
	}
	problems = append(problems, c.Trend.Validate()...)
	return problems
}

// Start describes when the first cycle begins
type Start struct {
	Age       int              `json:"age"`
	Years     int              `json:"years"`
	Months    int              `json:"months"`
	Days      int              `json:"days"`
	Date      time.Time        `json:"date"`
	Term      solarterm.Term   `json:"term"`
	TermAt    time.Time        `json:"term_at"`
	Elapsed   time.Duration    `json:"elapsed"`
	Source    solarterm.Source `json:"source"`
	Estimated bool             `json:"estimated"` // the default age was used
}

// Cycle is one decade of luck
type Cycle struct {
	Index     int               `json:"index"` // 1-based
	StartAge  int               `json:"start_age"`
	EndAge    int               `json:"end_age"`
	StartYear int               `json:"start_year"`
	Pillar    ganzhi.StemBranch `json:"pillar"`
	TenGod    ganzhi.TenGod     `json:"ten_god"`
	NaYin     string            `json:"na_yin"`
	Score     float64           `json:"score"` // 0-100 fortune score
}

// Years lists the calendar years covered by the cycle
func (c Cycle) Years() []int {
	out := make([]int, 0, 10)
	for y := c.StartYear; y < c.StartYear+10; y++ {
		out = append(out, y)
	}
	return out
}

// Plan is the full major-cycle result for one chart
type Plan struct {
	Direction Direction `json:"direction"`
	Start     Start     `json:"start"`
	Cycles    []Cycle   `json:"cycles"`
	Trend     Trend     `json:"trend"`
	Warning   string    `json:"warning,omitempty"`
}

// Generator produces plans. It holds only read-only state.
type Generator struct {
	resolver *solarterm.Resolver
	cfg      Config
}

// NewGenerator validates cfg; a nil resolver behaves as one without data
func NewGenerator(r *solarterm.Resolver, cfg Config) (*Generator, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid major-cycle config: %v", problems)
	}
	if r == nil {
		r = solarterm.NewResolver(nil)
	}
	return &Generator{resolver: r, cfg: cfg}, nil
}

// Plan computes the direction, the start and the cycle sequence. Missing
// term data never fails: the default start age is used instead.
func (g *Generator) Plan(c pillars.Chart) Plan {
	dir := DirectionOf(c.Year.Stem, c.Gender)
	start, warning := g.start(c.Birth, dir)
	cycles := Sequence(c, dir, start.Age, g.cfg.Cycles)
	dm := c.DayMaster().Element()
	for i := range cycles {
		cycles[i].Score = Score(dm, cycles[i].Pillar, cycles[i].StartAge, g.cfg.Trend)
	}
	return Plan{
		Direction: dir,
		Start:     start,
		Cycles:    cycles,
		Trend:     Analyze(cycles, g.cfg.Trend),
		Warning:   warning,
	}
}

func (g *Generator) start(birth time.Time, dir Direction) (Start, string) {
	var b solarterm.Boundary
	var elapsed time.Duration
	if dir == Forward {
		b = g.resolver.Next(birth)
		elapsed = b.At.Sub(birth)
	} else {
		b = g.resolver.Prev(birth)
		elapsed = birth.Sub(b.At)
	}

	if b.Source == solarterm.FixedCalendar {
		age := g.cfg.DefaultStartAge
		log.Warn().
			Time("birth", birth).
			Int("start_age", age).
			Msg("no solar-term data for major cycles, using default start age")
		return Start{
			Age:       age,
			Years:     age,
			Date:      birth.AddDate(age, 0, 0),
			Term:      b.Term,
			TermAt:    b.At,
			Source:    b.Source,
			Estimated: true,
		}, fmt.Sprintf("major-cycle start age defaulted to %d: no solar-term data", age)
	}

	years, months, days := AgeOf(elapsed)
	s := Start{
		Age:     StartAge(years, months),
		Years:   years,
		Months:  months,
		Days:    days,
		Date:    birth.AddDate(years, months, days),
		Term:    b.Term,
		TermAt:  b.At,
		Elapsed: elapsed,
		Source:  b.Source,
	}
	var warning string
	if b.Source == solarterm.NearestYear {
		warning = fmt.Sprintf("major-cycle start uses %s copied from a nearby year", b.Term)
	}
	return s, warning
}

// AgeOf converts time between birth and the boundary term into age:
// three days count a year, one day four months, one two-hour period ten days.
// That makes one minute of elapsed time one twelfth of a day of age.
func AgeOf(elapsed time.Duration) (years, months, days int) {
	if elapsed < 0 {
		elapsed = -elapsed
	}
	ageDays := int(elapsed / time.Minute / 12)
	years = ageDays / 360
	months = ageDays % 360 / 30
	days = ageDays % 30
	return years, months, days
}

// StartAge rounds months half-up into years, with a floor of one
func StartAge(years, months int) int {
	age := years
	if months >= 6 {
		age++
	}
	if age < 1 {
		age = 1
	}
	return age
}

// Sequence steps from the month pillar, one position per decade
func Sequence(c pillars.Chart, dir Direction, startAge, n int) []Cycle {
	dm := c.DayMaster()
	cycles := make([]Cycle, 0, n)
	for i := 0; i < n; i++ {
		p := c.Month.Add(dir.Step() * (i + 1))
		age := startAge + 10*i
		nayin, _ := p.NaYin()
		cycles = append(cycles, Cycle{
			Index:     i + 1,
			StartAge:  age,
			EndAge:    age + 9,
			StartYear: c.Birth.Year() + age,
			Pillar:    p,
			TenGod:    ganzhi.TenGodOf(dm, p.Stem),
			NaYin:     nayin,
		})
	}
	return cycles
}

// AnnualPillar is the year pillar of one calendar year inside a cycle
type AnnualPillar struct {
	Year   int               `json:"year"`
	Age    int               `json:"age"`
	Pillar ganzhi.StemBranch `json:"pillar"`
	TenGod ganzhi.TenGod     `json:"ten_god"`
}

// Annual lists the year pillars (liu nian) of a cycle. Ages are nominal,
// counted from the birth year.
func Annual(c pillars.Chart, cy Cycle) []AnnualPillar {
	dm := c.DayMaster()
	out := make([]AnnualPillar, 0, 10)
	for _, y := range cy.Years() {
		p := pillars.YearPillar(y)
		out = append(out, AnnualPillar{
			Year:   y,
			Age:    y - c.Birth.Year(),
			Pillar: p,
			TenGod: ganzhi.TenGodOf(dm, p.Stem),
		})
	}
	return out
}
