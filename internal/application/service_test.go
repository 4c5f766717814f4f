package application

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/persistence"
	"github.com/sawpanic/bazirun/internal/pillars"
	"github.com/sawpanic/bazirun/internal/shensha"
	"github.com/sawpanic/bazirun/internal/solarterm"
)

const shippedTerms = "../../config/solar_terms.yaml"

var cst = solarterm.ChinaStandardTime

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	terms, warnings, err := LoadTerms(context.Background(), TermFile(shippedTerms))
	require.NoError(t, err)
	require.Empty(t, warnings)
	rules, warnings, err := LoadRules("")
	require.NoError(t, err)
	require.Empty(t, warnings)
	svc, err := NewService(terms, rules, DefaultSettings(), opts...)
	require.NoError(t, err)
	return svc
}

func TestComputeChart(t *testing.T) {
	svc := newService(t)
	res, err := svc.Compute(Input{
		BirthTime: time.Date(1984, 2, 15, 14, 30, 0, 0, cst),
		Gender:    pillars.Male,
	})
	require.NoError(t, err)

	assert.Equal(t, "甲子 丙寅 己卯 辛未", res.Chart.String())
	assert.Equal(t, solarterm.Exact, res.Chart.TermSource)
	assert.Empty(t, res.Warnings)
	assert.Len(t, res.Details, 4)
	assert.InDelta(t, 1.0, res.Elements.Sum(), 1e-6)
	assert.Equal(t, res.Strength.DayMaster, res.Chart.DayMaster())
	assert.NotEmpty(t, res.Favorable)

	var keys []string
	for _, m := range res.Markers {
		assert.True(t, m.Active)
		keys = append(keys, m.Key)
	}
	assert.Contains(t, keys, "tianyi_guiren")

	require.Len(t, res.DaYun.Cycles, 10)
	assert.Equal(t, "丁卯", res.DaYun.Cycles[0].Pillar.String())
	assert.GreaterOrEqual(t, res.DaYun.Start.Age, 1)
}

func TestComputeLichunBoundary(t *testing.T) {
	svc := newService(t)
	lichun, ok := svc.Resolver().Table().Lookup(1984, solarterm.Lichun)
	require.True(t, ok)

	before, err := svc.Compute(Input{BirthTime: lichun.Add(-time.Minute), Gender: pillars.Female})
	require.NoError(t, err)
	after, err := svc.Compute(Input{BirthTime: lichun.Add(time.Minute), Gender: pillars.Female})
	require.NoError(t, err)

	assert.Equal(t, "癸亥", before.Chart.Year.String())
	assert.Equal(t, "乙丑", before.Chart.Month.String())
	assert.Equal(t, "甲子", after.Chart.Year.String())
	assert.Equal(t, "丙寅", after.Chart.Month.String())
	assert.Equal(t, pillars.YearPillar(1984), after.Chart.Year)
	assert.Equal(t, pillars.YearPillar(1983), before.Chart.Year)
}

func TestComputeRejectsBadInput(t *testing.T) {
	svc := newService(t)
	bad := 200.0
	tests := []struct {
		name string
		in   Input
	}{
		{"zero time", Input{}},
		{"year too early", Input{BirthTime: time.Date(500, 1, 1, 0, 0, 0, 0, time.UTC)}},
		{"year too late", Input{BirthTime: time.Date(3500, 1, 1, 0, 0, 0, 0, time.UTC)}},
		{"gender", Input{BirthTime: time.Date(1990, 1, 1, 0, 0, 0, 0, cst), Gender: pillars.Gender(7)}},
		{"no gender", Input{BirthTime: time.Date(1990, 1, 1, 0, 0, 0, 0, cst)}},
		{"correction", Input{BirthTime: time.Date(1990, 1, 1, 0, 0, 0, 0, cst), Gender: pillars.Female, Correction: 4 * time.Hour}},
		{"longitude", Input{BirthTime: time.Date(1990, 1, 1, 0, 0, 0, 0, cst), Gender: pillars.Female, Longitude: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Compute(tt.in)
			assert.Nil(t, res)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindInput), err.Error())
		})
	}
}

func TestComputeSolarTime(t *testing.T) {
	svc := newService(t)
	urumqi := 87.6177
	res, err := svc.Compute(Input{
		BirthTime: time.Date(1984, 2, 15, 14, 30, 0, 0, cst),
		Gender:    pillars.Male,
		Longitude: &urumqi,
	})
	require.NoError(t, err)
	require.NotNil(t, res.SolarTime)
	assert.Equal(t, 12, res.Chart.Birth.Hour())
	assert.Equal(t, "庚午", res.Chart.Hour.String())

	shifted, err := svc.Compute(Input{
		BirthTime:  time.Date(1984, 2, 15, 14, 30, 0, 0, cst),
		Gender:     pillars.Male,
		Correction: -150 * time.Minute,
	})
	require.NoError(t, err)
	assert.Nil(t, shifted.SolarTime)
	assert.Equal(t, "庚午", shifted.Chart.Hour.String())
}

func TestComputeWithoutTermData(t *testing.T) {
	terms, warnings, err := LoadTerms(context.Background(), TermFile(filepath.Join(t.TempDir(), "missing.yaml")))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, KindReferenceData, warnings[0].Kind)
	assert.Equal(t, 0, terms.Len())

	rules, _, err := LoadRules("")
	require.NoError(t, err)
	svc, err := NewService(terms, rules, DefaultSettings(), WithLoadWarnings(warnings))
	require.NoError(t, err)

	res, err := svc.Compute(Input{BirthTime: time.Date(1984, 2, 15, 14, 30, 0, 0, cst), Gender: pillars.Male})
	require.NoError(t, err)
	assert.Equal(t, "甲子 丙寅 己卯 辛未", res.Chart.String())
	assert.Equal(t, solarterm.FixedCalendar, res.Chart.TermSource)
	assert.Equal(t, 3, res.DaYun.Start.Age)

	sources := map[string]Kind{}
	for _, w := range res.Warnings {
		sources[w.Source] = w.Kind
	}
	assert.Equal(t, map[string]Kind{"solar_terms": KindReferenceData, "da_yun": KindReferenceData}, sources)
}

func TestLoadTermsMalformed(t *testing.T) {
	_, _, err := LoadTerms(context.Background(), TermFile("testdata/broken_terms.yaml"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindReferenceData))
}

type stubRepo struct {
	persistence.SolarTermRepo
	table *solarterm.Table
	err   error
}

func (s stubRepo) Load(context.Context, persistence.YearRange) (*solarterm.Table, error) {
	return s.table, s.err
}

func TestLoadStoredTerms(t *testing.T) {
	ctx := context.Background()

	_, warnings, err := LoadTerms(ctx, StoredTerms{Repo: stubRepo{err: fmt.Errorf("solar_terms: %w", solarterm.ErrNoData)}})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "solar_terms", warnings[0].Source)

	_, _, err = LoadTerms(ctx, StoredTerms{Repo: stubRepo{err: errors.New("connection refused")}})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindReferenceData))

	table, err := solarterm.Generate(1984, 1984, cst)
	require.NoError(t, err)
	got, warnings, err := LoadTerms(ctx, StoredTerms{Repo: stubRepo{table: table}})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Same(t, table, got)
}

func TestLoadRules(t *testing.T) {
	rs, warnings, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, KindReferenceData, warnings[0].Kind)
	assert.NotEmpty(t, rs.Rules())

	rs, warnings, err = LoadRules("testdata/rules.yaml")
	require.NoError(t, err)
	assert.Len(t, rs.Rules(), 3)
	require.Len(t, warnings, 1)
	assert.Equal(t, KindRuleEvaluation, warnings[0].Kind)
}

func TestRuleFailureBecomesWarning(t *testing.T) {
	terms, _, err := LoadTerms(context.Background(), TermFile(shippedTerms))
	require.NoError(t, err)
	rules, _, err := LoadRules("testdata/rules.yaml")
	require.NoError(t, err)
	svc, err := NewService(terms, rules, DefaultSettings())
	require.NoError(t, err)

	res, err := svc.Compute(Input{BirthTime: time.Date(1984, 2, 15, 14, 30, 0, 0, cst), Gender: pillars.Male})
	require.NoError(t, err)
	require.Len(t, res.MarkerFailures, 1)
	assert.Equal(t, "broken_chain", res.MarkerFailures[0].Key)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, KindRuleEvaluation, res.Warnings[0].Kind)
	require.Len(t, res.Markers, 1)
	assert.Equal(t, "ji_mao_day", res.Markers[0].Key)
}

func TestComputeRecoversAssemblyPanic(t *testing.T) {
	svc := newService(t, WithMarkerObserver(func(string, shensha.OutcomeKind) { panic("observer exploded") }))
	res, err := svc.Compute(Input{BirthTime: time.Date(1984, 2, 15, 14, 30, 0, 0, cst), Gender: pillars.Male})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnknown))
	assert.Contains(t, err.Error(), "observer exploded")
}

func TestComputeDeterministicAndConcurrent(t *testing.T) {
	svc := newService(t)
	inputs := make([]Input, 0, 48)
	for i := 0; i < 48; i++ {
		g := pillars.Male
		if i%2 == 1 {
			g = pillars.Female
		}
		inputs = append(inputs, Input{
			BirthTime: time.Date(1950+i, time.Month(i%12+1), i%28+1, i%24, i*7%60, 0, 0, cst),
			Gender:    g,
		})
	}

	want := make([]*Result, len(inputs))
	for i, in := range inputs {
		res, err := svc.Compute(in)
		require.NoError(t, err)
		want[i] = res
	}

	got := make([]*Result, len(inputs))
	var g errgroup.Group
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			res, err := svc.Compute(in)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			got[i] = res
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := range inputs {
		if diff := cmp.Diff(want[i], got[i], cmp.AllowUnexported(shensha.Marker{})); diff != "" {
			t.Errorf("input %d differs between runs (-want +got):\n%s", i, diff)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := newService(t)
	b := newService(t)
	assert.Len(t, a.Fingerprint(), 12)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	set := DefaultSettings()
	set.Pillars.LateZiNextDay = true
	c, err := NewService(a.Resolver().Table(), a.Rules(), set)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	d, err := NewService(nil, a.Rules(), DefaultSettings())
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}

func TestFingerprintCoversReferenceContent(t *testing.T) {
	rules := func(table, conflict string) *shensha.RuleSet {
		rs, err := shensha.Parse([]byte(`rules:
  - key: tianyi_guiren
    calc_method: stem_branch_lookup
    table:
      甲: [` + table + `]
    strength_modifier:
      conflict: ` + conflict + `
`))
		require.NoError(t, err)
		return rs
	}
	terms := func(lichun time.Time) *solarterm.Table {
		tbl, err := solarterm.NewTable([]solarterm.Instant{{Term: solarterm.Lichun, At: lichun}})
		require.NoError(t, err)
		return tbl
	}
	build := func(tbl *solarterm.Table, rs *shensha.RuleSet, set Settings) *Service {
		svc, err := NewService(tbl, rs, set)
		require.NoError(t, err)
		return svc
	}
	early := terms(time.Date(1984, 2, 4, 23, 19, 0, 0, cst))
	late := terms(time.Date(1984, 2, 5, 12, 0, 0, 0, cst))
	base := build(early, rules("丑, 未", "0.5"), DefaultSettings())

	t.Run("rule table", func(t *testing.T) {
		other := build(early, rules("子, 申", "0.5"), DefaultSettings())
		assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
	})
	t.Run("rule modifier", func(t *testing.T) {
		other := build(early, rules("丑, 未", "0.7"), DefaultSettings())
		assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
	})
	t.Run("term instant", func(t *testing.T) {
		other := build(late, rules("丑, 未", "0.5"), DefaultSettings())
		assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())

		in := Input{BirthTime: time.Date(1984, 2, 5, 6, 0, 0, 0, cst), Gender: pillars.Male}
		a, err := base.Compute(in)
		require.NoError(t, err)
		b, err := other.Compute(in)
		require.NoError(t, err)
		assert.NotEqual(t, a.Chart.Month, b.Chart.Month)
	})
	t.Run("hidden stems", func(t *testing.T) {
		hidden := ganzhi.DefaultHiddenStems
		hidden[ganzhi.Rat] = []ganzhi.HiddenStem{{Stem: ganzhi.Ren, Weight: 0.3}, {Stem: ganzhi.Gui, Weight: 0.7}}
		set := DefaultSettings()
		set.Elements.HiddenStems = &hidden
		other := build(early, rules("丑, 未", "0.5"), set)
		assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
	})
	t.Run("same content", func(t *testing.T) {
		again := build(terms(time.Date(1984, 2, 4, 23, 19, 0, 0, cst)), rules("丑, 未", "0.5"), DefaultSettings())
		assert.Equal(t, base.Fingerprint(), again.Fingerprint())
	})
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("outer: %w", &Error{Op: "load rules", Kind: KindReferenceData, Err: base})
	assert.True(t, IsKind(err, KindReferenceData))
	assert.False(t, IsKind(err, KindInput))
	assert.Equal(t, KindReferenceData, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(base))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "outer: load rules: reference_data_missing: boom", err.Error())

	var nilErr *Error
	assert.Equal(t, "<nil>", nilErr.Error())
	assert.Equal(t, "rule_evaluation: tian_de: lookup failed", Warning{Kind: KindRuleEvaluation, Source: "tian_de", Message: "lookup failed"}.String())
}
