package shensha

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/pillars"
	"github.com/sawpanic/bazirun/internal/strength"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// chart builds a chart from "year month day hour" pillars
func chart(t *testing.T, s string, month int) pillars.Chart {
	t.Helper()
	parts := strings.Fields(s)
	require.Len(t, parts, 4)
	var ps [4]ganzhi.StemBranch
	for i, p := range parts {
		sb, err := ganzhi.ParseStemBranch(p)
		require.NoError(t, err)
		ps[i] = sb
	}
	return pillars.Chart{Year: ps[0], Month: ps[1], Day: ps[2], Hour: ps[3], SolarMonth: month}
}

func parse(t *testing.T, doc string) *RuleSet {
	t.Helper()
	rs, err := Parse([]byte(doc))
	require.NoError(t, err)
	return rs
}

func defaultEngine(t *testing.T) *Engine {
	t.Helper()
	rs, err := Default()
	require.NoError(t, err)
	return NewEngine(rs)
}

func TestDefaultRuleSetLoadsClean(t *testing.T) {
	rs, err := Default()
	require.NoError(t, err)
	assert.Empty(t, rs.Problems())
	assert.Len(t, rs.Rules(), 26)
	assert.Len(t, rs.Interactions(), 8)

	r, ok := rs.Lookup("tianyi_guiren")
	require.True(t, ok)
	lookup, ok := r.Kind.(StemBranchLookup)
	require.True(t, ok)
	assert.Equal(t, []pillars.Position{pillars.DayPos, pillars.YearPos}, lookup.Base)
	assert.Equal(t, []ganzhi.Branch{ganzhi.Ox, ganzhi.Goat}, lookup.Table[ganzhi.Jia])
	assert.Equal(t, []Modifier{{FavorableElement, 1.2}, {Conflict, 0.5}, {Harmony, 1.1}}, r.Modifiers)
	assert.Equal(t, 1.1, r.Positions[pillars.MonthPos])

	month, ok := rs.Lookup("tian_de")
	require.True(t, ok)
	table := month.Kind.(MonthLookup).Table
	assert.Equal(t, Symbol{IsStem: true, Stem: ganzhi.Ding}, table[1])
	assert.Equal(t, Symbol{Branch: ganzhi.Monkey}, table[2])
	assert.Equal(t, Symbol{IsStem: true, Stem: ganzhi.Geng}, table[12])
}

func TestEvaluateNobleWithFavorableElement(t *testing.T) {
	c := chart(t, "甲子 丙寅 己卯 辛未", 1)
	rep := defaultEngine(t).Evaluate(NewContext(c, strength.Balanced))

	m, ok := rep.Marker("tianyi_guiren")
	require.True(t, ok)
	assert.True(t, m.Active)
	assert.Equal(t, Matched, m.Outcome)
	assert.Equal(t, []pillars.Position{pillars.YearPos, pillars.HourPos}, m.Positions)
	// hour 未 is earth, favorable for a balanced 己; the second-pass favorable
	// bonus does not apply again
	assert.InDelta(t, 1.2, m.Strength, 1e-9)
	assert.Equal(t, []string{"喜用神增强"}, m.Tags)

	void, ok := rep.Marker("kong_wang")
	require.True(t, ok)
	assert.False(t, void.Active)
	assert.Empty(t, rep.Failures)
	assert.Len(t, rep.Markers, 26)
}

func TestEvaluateVoidBranches(t *testing.T) {
	c := chart(t, "癸亥 甲寅 甲子 乙亥", 1)
	rep := defaultEngine(t).Evaluate(NewContext(c, strength.Unknown))

	m, ok := rep.Marker("kong_wang")
	require.True(t, ok)
	assert.True(t, m.Active)
	assert.Equal(t, []pillars.Position{pillars.YearPos, pillars.HourPos}, m.Positions)
	assert.InDelta(t, 1.0, m.Strength, 1e-9)
}

func TestEvaluateMonthAndChain(t *testing.T) {
	c := chart(t, "丁卯 壬寅 甲子 甲子", 1)
	rep := defaultEngine(t).Evaluate(NewContext(c, strength.Unknown))

	de, _ := rep.Marker("tian_de")
	assert.True(t, de.Active)
	assert.Equal(t, []pillars.Position{pillars.YearPos}, de.Positions)

	he, _ := rep.Marker("tian_de_he")
	assert.True(t, he.Active)
	assert.Equal(t, []pillars.Position{pillars.MonthPos}, he.Positions)

	yue, _ := rep.Marker("yue_de")
	assert.False(t, yue.Active)
}

func TestEvaluateFormulasAndDays(t *testing.T) {
	c := chart(t, "甲子 戊辰 庚辰 丙子", 3)
	rep := defaultEngine(t).Evaluate(NewContext(c, strength.Unknown))

	wonders, _ := rep.Marker("san_qi")
	assert.True(t, wonders.Active)
	assert.Equal(t, []pillars.Position{pillars.YearPos, pillars.MonthPos, pillars.DayPos}, wonders.Positions)

	kg, _ := rep.Marker("kui_gang")
	assert.True(t, kg.Active)
	assert.Equal(t, []pillars.Position{pillars.DayPos}, kg.Positions)

	bai, _ := rep.Marker("shi_e_da_bai")
	assert.True(t, bai.Active)

	ling, _ := rep.Marker("shi_ling")
	assert.False(t, ling.Active)
}

func TestEmptyTableNeverMatches(t *testing.T) {
	rs := parse(t, `
rules:
  - key: empty_stem
    calc_method: stem_branch_lookup
    table: {}
  - key: empty_branch
    calc_method: branch_branch_lookup
  - key: empty_month
    calc_method: month_based
`)
	c := chart(t, "甲子 丙寅 己卯 辛未", 1)
	rep := NewEngine(rs).Evaluate(NewContext(c, strength.Balanced))
	require.Len(t, rep.Markers, 3)
	for _, m := range rep.Markers {
		assert.Equal(t, Unmatched, m.Outcome, m.Key)
		assert.False(t, m.Active, m.Key)
	}
	assert.Empty(t, rep.Failures)
}

func TestFailuresAreIsolated(t *testing.T) {
	formulas["explode"] = func(pillars.Chart, []pillars.Position) Outcome { panic("lookup exploded") }
	t.Cleanup(func() { delete(formulas, "explode") })

	rs := parse(t, `
rules:
  - key: first
    calc_method: specific_days
    days: [己卯]
  - key: boom
    calc_method: complex_formula
    formula: explode
  - key: dangling
    calc_method: stem_combination
    chain: nowhere
  - key: bad_table
    calc_method: stem_branch_lookup
    table:
      X: [子]
  - key: mystery
    calc_method: astrology_v2
  - key: last
    calc_method: specific_days
    days: [己卯]
`)
	assert.Len(t, rs.Problems(), 3)

	var seen []string
	e := NewEngine(rs, WithObserver(func(key string, o OutcomeKind) { seen = append(seen, key+":"+o.String()) }))
	c := chart(t, "甲子 丙寅 己卯 辛未", 1)
	rep := e.Evaluate(NewContext(c, strength.Balanced))

	require.Len(t, rep.Markers, 6)
	assert.Equal(t, []string{
		"first:matched", "boom:failed", "dangling:failed",
		"bad_table:failed", "mystery:unmatched", "last:matched",
	}, seen)

	boom, _ := rep.Marker("boom")
	assert.False(t, boom.Active)
	assert.Contains(t, boom.Note, "lookup exploded")

	mystery, _ := rep.Marker("mystery")
	assert.Equal(t, "astrology_v2", mystery.Method)
	assert.Contains(t, mystery.Note, "unknown calc method")

	last, _ := rep.Marker("last")
	assert.True(t, last.Active)

	require.Len(t, rep.Failures, 3)
	assert.Equal(t, "boom", rep.Failures[0].Key)
	assert.Equal(t, []string{"first", "last"}, keys(rep.Active()))
}

func TestSelfModifierFoldOrder(t *testing.T) {
	// 午 at the day clashes with 子 in the year
	c := chart(t, "甲子 丙寅 丙午 戊子", 1)
	ctx := NewContext(c, strength.Strong)
	r := Rule{
		Key: "sample",
		Modifiers: []Modifier{
			{FavorableElement, 2},
			{Conflict, 0.5},
			{MultipleAppearance, 3},
			{DayMasterStrong, 1.5},
		},
		Positions: map[pillars.Position]float64{pillars.DayPos: 1.1},
	}
	m := Marker{Key: "sample", Active: true, Positions: []pillars.Position{pillars.DayPos}, Strength: 1}
	got := applySelfModifiers(m, r, ctx)

	// fire is not favorable for a strong 丙; single position
	assert.InDelta(t, 0.5*1.5*1.1, got.Strength, 1e-9)
	assert.Equal(t, []string{"受冲", "身强", "日柱"}, got.Tags)
	assert.Empty(t, m.Tags, "input marker left untouched")
}

func TestInteractionsFoldInDeclaredOrder(t *testing.T) {
	rs := parse(t, `
rules:
  - key: a
    calc_method: specific_days
    days: [己卯]
  - key: b
    calc_method: day_pillar_specific
    pillars: [己卯]
  - key: c
    calc_method: specific_days
    days: [甲子]
interactions:
  - name: pair
    condition: same_position
    markers: [a]
    with: [b]
    multiplier: 2
    tag: paired
  - name: all
    condition: favorable_element
    markers: ["*"]
    multiplier: 0.5
    tag: all
  - name: broken
    condition: moon_phase
    markers: [a]
    multiplier: 3
  - name: loner
    condition: same_position
    markers: [c]
    with: [a]
    multiplier: 10
`)
	assert.Len(t, rs.Interactions(), 3)
	assert.Len(t, rs.Problems(), 1)

	// wood on the day branch is favorable for a strong 己
	c := chart(t, "甲子 丙寅 己卯 辛未", 1)
	rep := NewEngine(rs).Evaluate(NewContext(c, strength.Strong))

	a, _ := rep.Marker("a")
	assert.InDelta(t, 1.0, a.Strength, 1e-9)
	assert.Equal(t, []string{"paired", "all"}, a.Tags)

	b, _ := rep.Marker("b")
	assert.InDelta(t, 0.5, b.Strength, 1e-9)
	assert.Equal(t, []string{"all"}, b.Tags)

	cm, _ := rep.Marker("c")
	assert.False(t, cm.Active)
	assert.Empty(t, cm.Tags)
}

func TestInteractionSkipsRepeatedCondition(t *testing.T) {
	rs := parse(t, `
rules:
  - key: horse
    calc_method: branch_branch_lookup
    base: [year]
    table:
      子: 午
    strength_modifier:
      conflict: 1.5
  - key: plain
    calc_method: branch_branch_lookup
    base: [year]
    table:
      子: 午
interactions:
  - name: clash
    condition: branch_conflict
    markers: [horse, plain]
    multiplier: 1.2
    tag: clash
`)
	require.Len(t, rs.Problems(), 1)
	assert.Contains(t, rs.Problems()[0], "horse already applies conflict")

	// 午 at the day is clashed by 子 in the year
	c := chart(t, "甲子 丙寅 丙午 戊子", 1)
	rep := NewEngine(rs).Evaluate(NewContext(c, strength.Unknown))

	horse, _ := rep.Marker("horse")
	assert.InDelta(t, 1.5, horse.Strength, 1e-9)
	assert.Equal(t, []string{"受冲"}, horse.Tags)

	plain, _ := rep.Marker("plain")
	assert.InDelta(t, 1.2, plain.Strength, 1e-9)
	assert.Equal(t, []string{"clash"}, plain.Tags)
}

func TestStemMatchHasNoBranchRelations(t *testing.T) {
	rs := parse(t, `
rules:
  - key: on_stem
    calc_method: month_based
    table:
      寅: 丁
    strength_modifier:
      conflict: 0.5
  - key: on_branch
    calc_method: month_based
    table:
      寅: 卯
    strength_modifier:
      conflict: 0.5
`)
	// year 丁卯: 卯 is clashed by 酉 in the hour
	c := chart(t, "丁卯 壬寅 甲子 癸酉", 1)
	rep := NewEngine(rs).Evaluate(NewContext(c, strength.Unknown))

	stem, _ := rep.Marker("on_stem")
	require.True(t, stem.Active)
	assert.Equal(t, []pillars.Position{pillars.YearPos}, stem.Positions)
	assert.InDelta(t, 1.0, stem.Strength, 1e-9)
	assert.Empty(t, stem.Tags)

	branch, _ := rep.Marker("on_branch")
	require.True(t, branch.Active)
	assert.InDelta(t, 0.5, branch.Strength, 1e-9)
	assert.Equal(t, []string{"受冲"}, branch.Tags)
}

func TestMultipleOccurrences(t *testing.T) {
	rs := parse(t, `
rules:
  - key: peach
    calc_method: branch_branch_lookup
    base: [year]
    table:
      申: 酉
interactions:
  - condition: multiple_occurrences
    markers: [peach]
    min_count: 2
    multiplier: 1.5
    tag: many
`)
	c := chart(t, "庚申 乙酉 己酉 癸酉", 2)
	rep := NewEngine(rs).Evaluate(NewContext(c, strength.Unknown))
	m, _ := rep.Marker("peach")
	assert.Equal(t, []pillars.Position{pillars.MonthPos, pillars.DayPos, pillars.HourPos}, m.Positions)
	assert.InDelta(t, 1.5, m.Strength, 1e-9)
	assert.Equal(t, []string{"many"}, m.Tags)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := defaultEngine(t)
	for _, s := range []string{"甲子 丙寅 己卯 辛未", "癸亥 甲寅 甲子 乙亥", "甲子 戊辰 庚辰 丙子"} {
		c := chart(t, s, 1)
		first := e.Evaluate(NewContext(c, strength.Weak))
		second := e.Evaluate(NewContext(c, strength.Weak))
		if diff := cmp.Diff(first, second, cmp.AllowUnexported(Marker{})); diff != "" {
			t.Errorf("%s: report changed between runs (-first +second):\n%s", s, diff)
		}
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("rules: [key: x"))
	assert.Error(t, err)

	_, err = Parse([]byte("rules:\n  - name: nameless\n"))
	assert.ErrorContains(t, err, "no key")

	_, err = Parse([]byte("rules:\n  - key: x\n  - key: x\n"))
	assert.ErrorContains(t, err, "duplicate")

	rs := parse(t, `
rules:
  - key: numeric_months
    calc_method: month_based
    table:
      1: 丁
      12: 庚
  - key: bad_modifier
    calc_method: specific_days
    days: [甲子]
    strength_modifier:
      lunar_eclipse: 2
`)
	m, _ := rs.Lookup("numeric_months")
	assert.Len(t, m.Kind.(MonthLookup).Table, 2)
	bad, _ := rs.Lookup("bad_modifier")
	_, invalid := bad.Kind.(Invalid)
	assert.True(t, invalid)
}

func TestNilRuleSet(t *testing.T) {
	rep := NewEngine(nil).Evaluate(NewContext(chart(t, "甲子 丙寅 己卯 辛未", 1), strength.Balanced))
	assert.Empty(t, rep.Markers)
}

func keys(ms []Marker) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Key
	}
	return out
}
