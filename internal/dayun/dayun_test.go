package dayun

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/pillars"
	"github.com/sawpanic/bazirun/internal/solarterm"
)

const terms1984 = `
years:
  1984:
    小寒: "1984-01-06 11:41"
    立春: "1984-02-04 23:19"
    惊蛰: "1984-03-05 17:25"
`

func resolver(t *testing.T) *solarterm.Resolver {
	t.Helper()
	table, err := solarterm.Decode(strings.NewReader(terms1984), solarterm.FormatYAML)
	require.NoError(t, err)
	return solarterm.NewResolver(table)
}

func chartFor(t *testing.T, r *solarterm.Resolver, g pillars.Gender) pillars.Chart {
	t.Helper()
	birth := time.Date(1984, 2, 15, 14, 30, 0, 0, solarterm.ChinaStandardTime)
	c, err := pillars.NewCalculator(r, pillars.Options{}).Chart(birth, g)
	require.NoError(t, err)
	require.Equal(t, "甲子 丙寅 己卯 辛未", c.String())
	return c
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, Forward, DirectionOf(ganzhi.Jia, pillars.Male))
	assert.Equal(t, Reverse, DirectionOf(ganzhi.Jia, pillars.Female))
	assert.Equal(t, Reverse, DirectionOf(ganzhi.Yi, pillars.Male))
	assert.Equal(t, Forward, DirectionOf(ganzhi.Yi, pillars.Female))
	assert.Equal(t, 1, Forward.Step())
	assert.Equal(t, -1, Reverse.Step())
}

func TestPlanForwardMale(t *testing.T) {
	r := resolver(t)
	g, err := NewGenerator(r, DefaultConfig())
	require.NoError(t, err)

	p := g.Plan(chartFor(t, r, pillars.Male))
	assert.Equal(t, Forward, p.Direction)
	assert.Empty(t, p.Warning)

	// 19 days 2h55m to Jingzhe: 27535 minutes -> 2294 days of age
	s := p.Start
	assert.Equal(t, solarterm.Jingzhe, s.Term)
	assert.Equal(t, 27535*time.Minute, s.Elapsed)
	assert.Equal(t, [3]int{6, 4, 14}, [3]int{s.Years, s.Months, s.Days})
	assert.Equal(t, 6, s.Age)
	assert.False(t, s.Estimated)
	assert.True(t, s.Date.Equal(time.Date(1990, 6, 29, 14, 30, 0, 0, solarterm.ChinaStandardTime)))

	require.Len(t, p.Cycles, 10)
	assert.Equal(t, "丁卯", p.Cycles[0].Pillar.String())
	assert.Equal(t, "戊辰", p.Cycles[1].Pillar.String())
	assert.Equal(t, ganzhi.IndirectSeal, p.Cycles[0].TenGod)
	assert.Equal(t, 1990, p.Cycles[0].StartYear)
	assert.Equal(t, 15, p.Cycles[0].EndAge)
}

func TestPlanReverseFemale(t *testing.T) {
	r := resolver(t)
	g, err := NewGenerator(r, DefaultConfig())
	require.NoError(t, err)

	p := g.Plan(chartFor(t, r, pillars.Female))
	assert.Equal(t, Reverse, p.Direction)

	// 10 days 15h11m back to Lichun: 15311 minutes -> 3 years 6 months 15 days
	s := p.Start
	assert.Equal(t, solarterm.Lichun, s.Term)
	assert.Equal(t, [3]int{3, 6, 15}, [3]int{s.Years, s.Months, s.Days})
	assert.Equal(t, 4, s.Age)

	assert.Equal(t, "乙丑", p.Cycles[0].Pillar.String())
	assert.Equal(t, "甲子", p.Cycles[1].Pillar.String())
	assert.Equal(t, "癸亥", p.Cycles[2].Pillar.String())
}

func TestSequenceSpacingAndSteps(t *testing.T) {
	r := resolver(t)
	for _, gender := range []pillars.Gender{pillars.Male, pillars.Female} {
		c := chartFor(t, r, gender)
		dir := DirectionOf(c.Year.Stem, gender)
		cycles := Sequence(c, dir, 7, 12)
		require.Len(t, cycles, 12)
		assert.Equal(t, c.Month.Add(dir.Step()), cycles[0].Pillar)
		for i := 1; i < len(cycles); i++ {
			prev, cur := cycles[i-1], cycles[i]
			assert.Equal(t, 10, cur.StartAge-prev.StartAge)
			assert.Equal(t, cur.StartAge+9, cur.EndAge)
			assert.Equal(t, (prev.Pillar.Offset()+dir.Step()+60)%60, cur.Pillar.Offset())
			assert.Equal(t, i+1, cur.Index)
		}
	}
}

func TestPlanWithoutTermData(t *testing.T) {
	g, err := NewGenerator(nil, DefaultConfig())
	require.NoError(t, err)

	c := chartFor(t, resolver(t), pillars.Male)
	p := g.Plan(c)
	assert.Equal(t, 3, p.Start.Age)
	assert.True(t, p.Start.Estimated)
	assert.Equal(t, solarterm.FixedCalendar, p.Start.Source)
	assert.Contains(t, p.Warning, "defaulted to 3")
	assert.Equal(t, 3, p.Cycles[0].StartAge)
	assert.Equal(t, 13, p.Cycles[1].StartAge)
}

func TestAgeOf(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    [3]int
	}{
		{"zero", 0, [3]int{0, 0, 0}},
		{"three days is a year", 72 * time.Hour, [3]int{1, 0, 0}},
		{"one day is four months", 24 * time.Hour, [3]int{0, 4, 0}},
		{"two hours is ten days", 2 * time.Hour, [3]int{0, 0, 10}},
		{"negative treated as magnitude", -26 * time.Hour, [3]int{0, 4, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, m, d := AgeOf(tt.elapsed)
			assert.Equal(t, tt.want, [3]int{y, m, d})
		})
	}
}

func TestStartAge(t *testing.T) {
	assert.Equal(t, 1, StartAge(0, 0))
	assert.Equal(t, 1, StartAge(0, 6))
	assert.Equal(t, 2, StartAge(1, 6))
	assert.Equal(t, 5, StartAge(5, 5))
	assert.Equal(t, 11, StartAge(10, 11))
}

func TestAnnual(t *testing.T) {
	r := resolver(t)
	c := chartFor(t, r, pillars.Male)
	cy := Sequence(c, Forward, 6, 1)[0]
	years := Annual(c, cy)
	require.Len(t, years, 10)
	assert.Equal(t, 1990, years[0].Year)
	assert.Equal(t, 6, years[0].Age)
	assert.Equal(t, "庚午", years[0].Pillar.String())
	assert.Equal(t, "己卯", years[9].Pillar.String())
}

func TestConfigValidate(t *testing.T) {
	assert.Empty(t, DefaultConfig().Validate())
	assert.Len(t, Config{Cycles: 0, DefaultStartAge: 0, Trend: DefaultTrendConfig()}.Validate(), 2)
	assert.NotEmpty(t, Config{Cycles: 10, DefaultStartAge: 3}.Validate(), "zero trend thresholds")
	_, err := NewGenerator(nil, Config{Cycles: 13, DefaultStartAge: 3})
	assert.Error(t, err)
}
