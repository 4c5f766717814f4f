package pillars

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/solarterm"
)

const terms1984 = `
years:
  1984:
    小寒: "1984-01-06 11:41"
    立春: "1984-02-04 23:19"
    惊蛰: "1984-03-05 17:25"
`

func newCalculator(t *testing.T, opts Options) *Calculator {
	t.Helper()
	table, err := solarterm.Decode(strings.NewReader(terms1984), solarterm.FormatYAML)
	require.NoError(t, err)
	return NewCalculator(solarterm.NewResolver(table), opts)
}

func pillar(t *testing.T, s string) ganzhi.StemBranch {
	t.Helper()
	sb, err := ganzhi.ParseStemBranch(s)
	require.NoError(t, err)
	return sb
}

func TestLichunBoundaryFlipsYearAndMonth(t *testing.T) {
	calc := newCalculator(t, Options{})
	lichun := time.Date(1984, 2, 4, 23, 19, 0, 0, solarterm.ChinaStandardTime)

	before, err := calc.Chart(lichun.Add(-time.Minute), Male)
	require.NoError(t, err)
	assert.Equal(t, pillar(t, "癸亥"), before.Year)
	assert.Equal(t, pillar(t, "乙丑"), before.Month)
	assert.Equal(t, 12, before.SolarMonth)

	after, err := calc.Chart(lichun.Add(time.Minute), Male)
	require.NoError(t, err)
	assert.Equal(t, pillar(t, "甲子"), after.Year)
	assert.Equal(t, pillar(t, "丙寅"), after.Month)
	assert.Equal(t, 1, after.SolarMonth)
	assert.Equal(t, 1984, after.SolarYear)

	// same civil day and double-hour on both sides
	assert.Equal(t, before.Day, after.Day)
	assert.Equal(t, before.Hour, after.Hour)
	assert.Equal(t, pillar(t, "戊辰"), after.Day)
	assert.Equal(t, pillar(t, "甲子"), after.Hour, "23:00 hour stem comes from the next day")
}

func TestLateZiNextDay(t *testing.T) {
	calc := newCalculator(t, Options{LateZiNextDay: true})
	c, err := calc.Chart(time.Date(1984, 2, 4, 23, 30, 0, 0, solarterm.ChinaStandardTime), Female)
	require.NoError(t, err)
	assert.Equal(t, pillar(t, "己巳"), c.Day)
	assert.Equal(t, pillar(t, "甲子"), c.Hour)
	assert.Equal(t, Female, c.Gender)
}

func TestDayPillarKnownDates(t *testing.T) {
	cases := []struct {
		y    int
		m    time.Month
		d    int
		want string
	}{
		{2000, time.January, 1, "戊午"},
		{1900, time.January, 1, "甲戌"},
		{2024, time.February, 10, "甲辰"},
		{1984, time.February, 15, "己卯"},
		{1990, time.May, 17, "壬午"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DayPillar(tc.y, tc.m, tc.d).String(), "%d-%d-%d", tc.y, tc.m, tc.d)
	}
	assert.Equal(t, DayPillar(1990, time.May, 17).Next(), DayPillar(1990, time.May, 18))
	assert.Equal(t, 2451545, JulianDayNumber(2000, 1, 1))
}

func TestYearPillarPeriod(t *testing.T) {
	assert.Equal(t, "甲子", YearPillar(1984).String())
	assert.Equal(t, "甲子", YearPillar(4).String())
	assert.Equal(t, "癸卯", YearPillar(2023).String())
	for y := 1800; y < 2200; y++ {
		assert.Equal(t, YearPillar(y), YearPillar(y+60))
		assert.Equal(t, YearPillar(y).Next(), YearPillar(y+1))
	}
}

func TestMonthPillar(t *testing.T) {
	cases := []struct {
		yearStem ganzhi.Stem
		month    int
		want     string
	}{
		{ganzhi.Jia, 1, "丙寅"},
		{ganzhi.Ji, 1, "丙寅"},
		{ganzhi.Yi, 1, "戊寅"},
		{ganzhi.Wu, 1, "甲寅"},
		{ganzhi.Gui, 12, "乙丑"},
		{ganzhi.Jia, 11, "丙子"},
	}
	for _, tc := range cases {
		got, err := MonthPillar(tc.yearStem, tc.month)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.String())
	}
	_, err := MonthPillar(ganzhi.Jia, 13)
	assert.Error(t, err)
}

func TestHourPillar(t *testing.T) {
	assert.Equal(t, ganzhi.Rat, HourBranch(23))
	assert.Equal(t, ganzhi.Rat, HourBranch(0))
	assert.Equal(t, ganzhi.Ox, HourBranch(1))
	assert.Equal(t, ganzhi.Goat, HourBranch(14))
	assert.Equal(t, ganzhi.Pig, HourBranch(22))

	assert.Equal(t, "甲子", HourPillar(ganzhi.Jia, 0).String())
	assert.Equal(t, "辛未", HourPillar(ganzhi.Jia, 14).String())
	assert.Equal(t, "丙子", HourPillar(ganzhi.Yi, 0).String())
	assert.Equal(t, "癸亥", HourPillar(ganzhi.Wu, 22).String())
}

func TestChartPillarsSatisfyOffsetInvariant(t *testing.T) {
	calc := NewCalculator(nil, Options{})
	start := time.Date(1950, 1, 1, 0, 0, 0, 0, solarterm.ChinaStandardTime)
	for i := 0; i < 500; i++ {
		at := start.Add(time.Duration(i) * 37 * time.Hour)
		c, err := calc.Chart(at, Male)
		require.NoError(t, err)
		require.True(t, c.Valid())
		for _, p := range c.Pillars() {
			off := p.Offset()
			assert.Equal(t, ganzhi.Stem(off%10), p.Stem)
			assert.Equal(t, ganzhi.Branch(off%12), p.Branch)
		}
	}
}

func TestChartRejectsZeroTime(t *testing.T) {
	_, err := NewCalculator(nil, Options{}).Chart(time.Time{}, Male)
	assert.ErrorIs(t, err, ErrNoBirthTime)
}

func TestDetails(t *testing.T) {
	calc := newCalculator(t, Options{})
	c, err := calc.Chart(time.Date(1984, 2, 15, 14, 30, 0, 0, solarterm.ChinaStandardTime), Male)
	require.NoError(t, err)
	details := Details(c, nil)
	require.Len(t, details, 4)

	day := details[DayPos]
	assert.Nil(t, day.StemTenGod)
	assert.Equal(t, "卯", day.Pillar.Branch.String())

	year := details[YearPos]
	require.NotNil(t, year.StemTenGod)
	// Jia against an Ji day master
	assert.Equal(t, ganzhi.DirectOfficer, *year.StemTenGod)
	assert.Equal(t, "海中金", year.NaYin)
	assert.Equal(t, "rat", year.Zodiac)
	require.Len(t, year.Hidden, 1)
	assert.Equal(t, ganzhi.IndirectWealth, year.Hidden[0].TenGod)
}

func TestParseGenderAndPosition(t *testing.T) {
	for _, s := range []string{"male", "M", "男"} {
		g, err := ParseGender(s)
		require.NoError(t, err)
		assert.Equal(t, Male, g)
	}
	g, err := ParseGender("x")
	assert.Error(t, err)
	assert.Equal(t, UnsetGender, g)

	var zero Gender
	assert.False(t, zero.Valid())
	assert.Equal(t, "unset", zero.String())
	assert.True(t, Female.Valid())

	p, err := ParsePosition("Hour")
	require.NoError(t, err)
	assert.Equal(t, HourPos, p)
}
