package pillars

import (
	"errors"
	"math"
	"time"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/solarterm"
)

// ErrNoBirthTime is returned for a zero timestamp
var ErrNoBirthTime = errors.New("birth time is required")

// Options tunes calendar conventions
type Options struct {
	// LateZiNextDay advances the day pillar at 23:00 instead of midnight.
	// Either way the 23:00 hour takes its stem from the following day.
	LateZiNextDay bool `yaml:"late_zi_next_day" json:"late_zi_next_day"`
}

// Calculator converts timestamps to charts. It holds only read-only state.
type Calculator struct {
	resolver *solarterm.Resolver
	opts     Options
}

func NewCalculator(resolver *solarterm.Resolver, opts Options) *Calculator {
	if resolver == nil {
		resolver = solarterm.NewResolver(nil)
	}
	return &Calculator{resolver: resolver, opts: opts}
}

// Resolver exposes the solar-term resolver used for month boundaries
func (c *Calculator) Resolver() *solarterm.Resolver { return c.resolver }

// Chart computes the four pillars for birth, read on its own wall clock.
// Missing solar-term data degrades the month boundary only.
func (c *Calculator) Chart(birth time.Time, g Gender) (Chart, error) {
	if birth.IsZero() {
		return Chart{}, ErrNoBirthTime
	}

	res := c.resolver.Resolve(birth)
	year := YearPillar(res.SolarYear)

	month, err := MonthPillar(year.Stem, res.Month)
	if err != nil {
		return Chart{}, err
	}

	y, m, d := birth.Date()
	day := DayPillar(y, m, d)
	hourStemDay := day
	if birth.Hour() == 23 {
		hourStemDay = day.Next()
		if c.opts.LateZiNextDay {
			day = hourStemDay
		}
	}
	hour := HourPillar(hourStemDay.Stem, birth.Hour())

	return Chart{
		Year:       year,
		Month:      month,
		Day:        day,
		Hour:       hour,
		Gender:     g,
		Birth:      birth,
		SolarMonth: res.Month,
		SolarYear:  res.SolarYear,
		TermSource: res.Source,
	}, nil
}

// YearPillar returns the pillar of a solar year; 4 CE and 1984 are Jia-Zi
func YearPillar(solarYear int) ganzhi.StemBranch {
	return ganzhi.FromOffset(solarYear - 4)
}

// MonthPillar returns the pillar of solar month m (1 = Yin month) in a year with stem ys
func MonthPillar(ys ganzhi.Stem, m int) (ganzhi.StemBranch, error) {
	if m < 1 || m > 12 {
		return ganzhi.StemBranch{}, errors.New("solar month out of range")
	}
	// Jia/Ji years open with Bing-Yin, Yi/Geng with Wu-Yin, and so on
	first := (int(ys)%5*2 + 2) % 10
	sb, err := ganzhi.NewStemBranch(ganzhi.Stem((first+m-1)%10), ganzhi.Branch((m+1)%12))
	if err != nil {
		return ganzhi.StemBranch{}, err
	}
	return ganzhi.FromOffset(sb.Offset()), nil
}

// DayPillar returns the pillar of a Gregorian date
func DayPillar(y int, m time.Month, d int) ganzhi.StemBranch {
	return ganzhi.FromOffset(JulianDayNumber(y, int(m), d) + 49)
}

// JulianDayNumber of a Gregorian date (Jan/Feb counted as months 13/14 of the prior year)
func JulianDayNumber(y, m, d int) int {
	if m <= 2 {
		y--
		m += 12
	}
	a := y / 100
	b := 2 - a + a/4
	jd := math.Floor(365.25*float64(y+4716)) + math.Floor(30.6001*float64(m+1)) + float64(d+b) - 1524.5
	return int(math.Floor(jd + 0.5))
}

// HourBranch maps a clock hour to its double-hour; Zi spans 23:00-00:59
func HourBranch(hour int) ganzhi.Branch {
	return ganzhi.Branch(((hour + 1) / 2) % 12)
}

// HourPillar returns the hour pillar for a day stem ds
func HourPillar(ds ganzhi.Stem, hour int) ganzhi.StemBranch {
	b := HourBranch(hour)
	// Jia/Ji days start at Jia-Zi, Yi/Geng at Bing-Zi, ...
	s := ganzhi.Stem((int(ds)%5*2 + int(b)) % 10)
	return ganzhi.FromOffset(ganzhi.StemBranch{Stem: s, Branch: b}.Offset())
}
