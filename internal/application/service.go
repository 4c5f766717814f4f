package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/bazirun/internal/dayun"
	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/elements"
	"github.com/sawpanic/bazirun/internal/pillars"
	"github.com/sawpanic/bazirun/internal/shensha"
	"github.com/sawpanic/bazirun/internal/solartime"
	"github.com/sawpanic/bazirun/internal/solarterm"
	"github.com/sawpanic/bazirun/internal/strength"
)

// Supported birth years
const (
	MinYear = 1000
	MaxYear = 3000
)

// MaxCorrection bounds the explicit time correction
const MaxCorrection = 3 * time.Hour

// Input is one chart request
type Input struct {
	BirthTime  time.Time      `json:"birth_time"`
	Gender     pillars.Gender `json:"gender"`
	Correction time.Duration  `json:"correction,omitempty"` // added to BirthTime before anything else
	Longitude  *float64       `json:"longitude,omitempty"`  // east positive; enables solar-time correction
}

// Validate rejects malformed input
func (in Input) Validate() error {
	if in.BirthTime.IsZero() {
		return errors.New("birth time is required")
	}
	if y := in.BirthTime.Year(); y < MinYear || y > MaxYear {
		return fmt.Errorf("birth year %d outside supported range [%d, %d]", y, MinYear, MaxYear)
	}
	if in.Gender == pillars.UnsetGender {
		return errors.New("gender is required")
	}
	if !in.Gender.Valid() {
		return fmt.Errorf("unknown gender %d", in.Gender)
	}
	if in.Correction > MaxCorrection || in.Correction < -MaxCorrection {
		return fmt.Errorf("correction %s exceeds %s", in.Correction, MaxCorrection)
	}
	if in.Longitude != nil {
		if _, err := solartime.Compute(in.BirthTime, *in.Longitude); err != nil {
			return err
		}
	}
	return nil
}

// Result is the complete chart analysis
type Result struct {
	Chart          pillars.Chart          `json:"chart"`
	Details        []pillars.PillarDetail `json:"details"`
	SolarTime      *solartime.Correction  `json:"solar_time,omitempty"`
	Elements       elements.Distribution  `json:"elements"`
	Strength       strength.Result        `json:"strength"`
	Favorable      []ganzhi.Element       `json:"favorable"`
	Unfavorable    []ganzhi.Element       `json:"unfavorable"`
	Markers        []shensha.Marker       `json:"markers"`
	MarkerFailures []shensha.Failure      `json:"marker_failures,omitempty"`
	DaYun          dayun.Plan             `json:"da_yun"`
	Warnings       []Warning              `json:"warnings,omitempty"`
}

// Settings are the engine tunables
type Settings struct {
	Pillars  pillars.Options
	Elements elements.Config
	Strength strength.Config
	DaYun    dayun.Config
}

// DefaultSettings returns the standard engine configuration
func DefaultSettings() Settings {
	return Settings{
		Elements: elements.DefaultConfig(),
		Strength: strength.DefaultConfig(),
		DaYun:    dayun.DefaultConfig(),
	}
}

// Option configures a Service
type Option func(*Service)

// WithMarkerObserver reports every marker rule outcome
func WithMarkerObserver(o shensha.Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithLoadWarnings attaches reference-data warnings from startup to every result
func WithLoadWarnings(ws []Warning) Option {
	return func(s *Service) { s.loadWarnings = append(s.loadWarnings, ws...) }
}

// Service computes charts. All state is read-only after construction, so a
// Service is safe for concurrent use.
type Service struct {
	calc         *pillars.Calculator
	elements     elements.Config
	strength     *strength.Evaluator
	markers      *shensha.Engine
	cycles       *dayun.Generator
	hidden       *ganzhi.HiddenTable
	observer     shensha.Observer
	loadWarnings []Warning
	fingerprint  string
}

// NewService wires the engine from loaded reference data
func NewService(terms *solarterm.Table, rules *shensha.RuleSet, set Settings, opts ...Option) (*Service, error) {
	s := &Service{elements: set.Elements, hidden: set.Elements.HiddenStems}
	for _, opt := range opts {
		opt(s)
	}
	if s.hidden != nil {
		if problems := s.hidden.Validate(); len(problems) > 0 {
			return nil, fmt.Errorf("invalid hidden-stem table: %s", strings.Join(problems, "; "))
		}
	}

	resolver := solarterm.NewResolver(terms)
	s.calc = pillars.NewCalculator(resolver, set.Pillars)

	ev, err := strength.NewEvaluator(set.Strength, s.hidden)
	if err != nil {
		return nil, err
	}
	s.strength = ev

	gen, err := dayun.NewGenerator(resolver, set.DaYun)
	if err != nil {
		return nil, err
	}
	s.cycles = gen

	var engineOpts []shensha.Option
	if s.observer != nil {
		engineOpts = append(engineOpts, shensha.WithObserver(s.observer))
	}
	s.markers = shensha.NewEngine(rules, engineOpts...)
	s.fingerprint = fingerprint(terms, s.markers.RuleSet(), set, s.hidden)
	return s, nil
}

// Fingerprint identifies the settings and reference data results depend on.
// Results computed under different fingerprints must not be mixed.
func (s *Service) Fingerprint() string { return s.fingerprint }

func fingerprint(terms *solarterm.Table, rules *shensha.RuleSet, set Settings, hidden *ganzhi.HiddenTable) string {
	h := sha256.New()
	_ = json.NewEncoder(h).Encode(set)

	instants := terms.Instants()
	sort.Slice(instants, func(i, j int) bool {
		if instants[i].Term != instants[j].Term {
			return instants[i].Term < instants[j].Term
		}
		return instants[i].At.Before(instants[j].At)
	})
	fmt.Fprintf(h, "terms:%d\n", len(instants))
	for _, in := range instants {
		fmt.Fprintf(h, "%d@%d\n", in.Term, in.At.UnixNano())
	}

	rules.WriteDigest(h)

	if hidden == nil {
		hidden = &ganzhi.DefaultHiddenStems
	}
	for b, stems := range hidden {
		for _, hs := range stems {
			fmt.Fprintf(h, "hidden:%d:%d:%g\n", b, hs.Stem, hs.Weight)
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// Resolver exposes the solar-term resolver
func (s *Service) Resolver() *solarterm.Resolver { return s.calc.Resolver() }

// Rules exposes the marker rule set
func (s *Service) Rules() *shensha.RuleSet { return s.markers.RuleSet() }

// Compute runs the whole pipeline. Only input errors and unexpected
// assembly failures abort; everything else degrades into warnings.
func (s *Service) Compute(in Input) (res *Result, err error) {
	const op = "compute chart"
	if err := in.Validate(); err != nil {
		return nil, inputError(op, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Time("birth", in.BirthTime).
				Msg("chart assembly failed")
			res = nil
			err = &Error{Op: op, Kind: KindUnknown, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	birth := in.BirthTime.Add(in.Correction)
	var correction *solartime.Correction
	if in.Longitude != nil {
		shifted, c, err := solartime.Apply(birth, *in.Longitude)
		if err != nil {
			return nil, inputError(op, err)
		}
		birth, correction = shifted, &c
	}

	chart, err := s.calc.Chart(birth, in.Gender)
	if err != nil {
		return nil, inputError(op, err)
	}

	res = &Result{
		Chart:     chart,
		Details:   pillars.Details(chart, s.hidden),
		SolarTime: correction,
	}
	res.Warnings = append(res.Warnings, s.loadWarnings...)
	if chart.TermSource != solarterm.Exact {
		res.Warnings = append(res.Warnings, Warning{
			Kind:    KindReferenceData,
			Source:  "solar_terms",
			Message: describe(chart.TermSource),
		})
	}

	res.Elements = elements.Score(chart, s.elements)
	res.Strength = s.strength.Evaluate(chart, res.Elements)
	dm := chart.DayMaster()
	res.Favorable = strength.Favorable(dm, res.Strength.Label)
	res.Unfavorable = strength.Unfavorable(dm, res.Strength.Label)

	ctx := shensha.NewContext(chart, res.Strength.Label)
	ctx.Hidden = s.hidden
	report := s.markers.Evaluate(ctx)
	res.Markers = report.Active()
	res.MarkerFailures = report.Failures
	for _, f := range report.Failures {
		res.Warnings = append(res.Warnings, Warning{Kind: KindRuleEvaluation, Source: f.Key, Message: f.Reason})
	}

	res.DaYun = s.cycles.Plan(chart)
	if res.DaYun.Warning != "" {
		res.Warnings = append(res.Warnings, Warning{Kind: KindReferenceData, Source: "da_yun", Message: res.DaYun.Warning})
	}
	if res.Markers == nil {
		res.Markers = []shensha.Marker{}
	}
	return res, nil
}
