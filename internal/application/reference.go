package application

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/bazirun/internal/persistence"
	"github.com/sawpanic/bazirun/internal/shensha"
	"github.com/sawpanic/bazirun/internal/solarterm"
)

// TermSource supplies the solar-term table: a file, a SQL table or the ephemeris
type TermSource interface {
	Terms(ctx context.Context) (*solarterm.Table, error)
}

// TermFile reads a YAML or JSON table
type TermFile string

func (p TermFile) Terms(context.Context) (*solarterm.Table, error) {
	return solarterm.LoadFile(string(p))
}

// EphemerisTerms computes the table for [From, To] in Zone
type EphemerisTerms struct {
	From, To int
	Zone     *time.Location
}

func (e EphemerisTerms) Terms(context.Context) (*solarterm.Table, error) {
	zone := e.Zone
	if zone == nil {
		zone = solarterm.ChinaStandardTime
	}
	return solarterm.Generate(e.From, e.To, zone)
}

// StoredTerms reads the table from a SQL repository
type StoredTerms struct {
	Repo persistence.SolarTermRepo
	Span persistence.YearRange
}

func (s StoredTerms) Terms(ctx context.Context) (*solarterm.Table, error) {
	return s.Repo.Load(ctx, s.Span)
}

// LoadTerms loads the table once at startup. Absent data is not fatal: the
// resolver falls back to fixed calendar days and a warning is returned.
// Unreadable or malformed data is an error.
func LoadTerms(ctx context.Context, src TermSource) (*solarterm.Table, []Warning, error) {
	t, err := src.Terms(ctx)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, solarterm.ErrNoData):
		log.Warn().Err(err).Msg("solar-term table not found, using fixed calendar boundaries")
		empty, _ := solarterm.NewTable(nil)
		return empty, []Warning{{
			Kind:    KindReferenceData,
			Source:  "solar_terms",
			Message: "solar-term table not found; month boundaries use fixed calendar days",
		}}, nil
	case err != nil:
		return nil, nil, &Error{Op: "load solar terms", Kind: KindReferenceData, Err: err}
	}

	if t.Len() == 0 {
		log.Warn().Msg("solar-term table is empty, using fixed calendar boundaries")
		return t, []Warning{{Kind: KindReferenceData, Source: "solar_terms", Message: "solar-term table is empty"}}, nil
	}
	first, last, _ := t.Span()
	log.Info().Int("instants", t.Len()).Int("from", first).Int("to", last).Msg("solar-term table loaded")
	return t, nil, nil
}

// LoadRules loads the marker rule file, or the built-in set when path is
// empty or missing. Problems found in the file become warnings.
func LoadRules(path string) (*shensha.RuleSet, []Warning, error) {
	var warnings []Warning
	var rs *shensha.RuleSet
	var err error
	if path != "" {
		rs, err = shensha.LoadFile(path)
	}
	switch {
	case path == "" || errors.Is(err, fs.ErrNotExist):
		if path != "" {
			log.Warn().Str("path", path).Msg("rule file not found, using built-in rules")
			warnings = append(warnings, Warning{
				Kind:    KindReferenceData,
				Source:  path,
				Message: "rule file not found; built-in rules used",
			})
		}
		rs, err = shensha.Default()
		if err != nil {
			return nil, nil, &Error{Op: "load rules", Kind: KindUnknown, Err: err}
		}
	case err != nil:
		return nil, nil, &Error{Op: "load rules", Kind: KindReferenceData, Err: err}
	}

	for _, p := range rs.Problems() {
		warnings = append(warnings, Warning{Kind: KindRuleEvaluation, Source: "rules", Message: p})
	}
	log.Info().Int("rules", len(rs.Rules())).Int("interactions", len(rs.Interactions())).Msg("marker rules loaded")
	return rs, warnings, nil
}

// describe is used in warning messages for term fallbacks
func describe(src solarterm.Source) string {
	switch src {
	case solarterm.NearestYear:
		return "solar-term year missing; boundaries copied from the nearest listed year"
	case solarterm.FixedCalendar:
		return "no solar-term data; boundaries use fixed calendar days"
	default:
		return fmt.Sprintf("solar-term source %s", src)
	}
}
