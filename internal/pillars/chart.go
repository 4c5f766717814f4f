package pillars

import (
	"fmt"
	"strings"
	"time"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/solarterm"
)

// Position identifies one of the four pillars
type Position int

const (
	YearPos Position = iota
	MonthPos
	DayPos
	HourPos
)

// Positions in chart order
var Positions = [4]Position{YearPos, MonthPos, DayPos, HourPos}

func (p Position) String() string {
	switch p {
	case YearPos:
		return "year"
	case MonthPos:
		return "month"
	case DayPos:
		return "day"
	case HourPos:
		return "hour"
	default:
		return "unknown"
	}
}

func (p Position) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Position) UnmarshalText(b []byte) error {
	v, err := ParsePosition(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func ParsePosition(s string) (Position, error) {
	for _, p := range Positions {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown pillar position %q", s)
}

// Gender selects the direction of the major cycles. The zero value is
// unset and never valid for a chart.
type Gender int

const (
	UnsetGender Gender = iota
	Male
	Female
)

func (g Gender) String() string {
	switch g {
	case Male:
		return "male"
	case Female:
		return "female"
	case UnsetGender:
		return "unset"
	default:
		return "unknown"
	}
}

// Valid reports whether g is Male or Female
func (g Gender) Valid() bool { return g == Male || g == Female }

func (g Gender) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

func (g *Gender) UnmarshalText(b []byte) error {
	v, err := ParseGender(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// ParseGender accepts male/female, m/f and 男/女
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "男":
		return Male, nil
	case "female", "f", "女":
		return Female, nil
	default:
		return UnsetGender, fmt.Errorf("unknown gender %q", s)
	}
}

// Chart is the four-pillar chart of one birth
type Chart struct {
	Year       ganzhi.StemBranch `json:"year"`
	Month      ganzhi.StemBranch `json:"month"`
	Day        ganzhi.StemBranch `json:"day"`
	Hour       ganzhi.StemBranch `json:"hour"`
	Gender     Gender            `json:"gender"`
	Birth      time.Time         `json:"birth"` // after any time correction
	SolarMonth int               `json:"solar_month"`
	SolarYear  int               `json:"solar_year"`
	TermSource solarterm.Source  `json:"term_source"`
}

// Pillar returns the pillar at p
func (c Chart) Pillar(p Position) ganzhi.StemBranch {
	switch p {
	case YearPos:
		return c.Year
	case MonthPos:
		return c.Month
	case DayPos:
		return c.Day
	default:
		return c.Hour
	}
}

// Pillars returns the four pillars in chart order
func (c Chart) Pillars() [4]ganzhi.StemBranch {
	return [4]ganzhi.StemBranch{c.Year, c.Month, c.Day, c.Hour}
}

// DayMaster is the day stem
func (c Chart) DayMaster() ganzhi.Stem { return c.Day.Stem }

// Valid reports whether all four pillars are cycle members
func (c Chart) Valid() bool {
	for _, p := range c.Pillars() {
		if !p.Valid() {
			return false
		}
	}
	return c.SolarMonth >= 1 && c.SolarMonth <= 12
}

func (c Chart) String() string {
	return fmt.Sprintf("%s %s %s %s", c.Year, c.Month, c.Day, c.Hour)
}
