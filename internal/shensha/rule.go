package shensha

import (
	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/pillars"
)

// Calc method names as written in rule files
const (
	MethodStemBranch      = "stem_branch_lookup"
	MethodBranchBranch    = "branch_branch_lookup"
	MethodDayPillar       = "day_pillar_specific"
	MethodVoid            = "xunkong"
	MethodMonth           = "month_based"
	MethodStemCombination = "stem_combination"
	MethodFormula         = "complex_formula"
	MethodSpecificDays    = "specific_days"
)

// Kind is the calc-method specific part of a rule. The set of kinds is
// closed: every implementation lives in this package.
type Kind interface {
	Method() string
	isKind()
}

// StemBranchLookup maps the stem at each base position to target branches
type StemBranchLookup struct {
	Base    []pillars.Position
	Targets []pillars.Position
	Table   map[ganzhi.Stem][]ganzhi.Branch
}

// BranchBranchLookup maps the branch at each base position to target branches
type BranchBranchLookup struct {
	Base    []pillars.Position
	Targets []pillars.Position
	Table   map[ganzhi.Branch][]ganzhi.Branch
}

// DayPillarMatch matches when the day pillar is one of Pillars; other
// positions holding a listed pillar are reported as well
type DayPillarMatch struct {
	Pillars []ganzhi.StemBranch
}

// VoidBranches matches target branches left void by the base pillar's decade
type VoidBranches struct {
	Base    pillars.Position
	Targets []pillars.Position
}

// MonthLookup maps the solar month to a stem or branch sought among the targets
type MonthLookup struct {
	Targets []pillars.Position
	Table   map[int]Symbol // solar month 1..12
}

// CombinationChain looks up another month rule's target for this month and
// seeks its combination partner: the five-combination for stems, the
// six-harmony for branches
type CombinationChain struct {
	Chain   string
	Targets []pillars.Position
}

// Formula is a named multi-condition rule implemented in code
type Formula struct {
	Name    string
	Targets []pillars.Position
}

// SpecificDays matches when the day pillar belongs to an explicit set
type SpecificDays struct {
	Days []ganzhi.StemBranch
}

// UnknownMethod keeps a rule whose calc method is not recognized; it never matches
type UnknownMethod struct {
	Name string
}

// Invalid keeps a rule whose definition could not be compiled; evaluating it fails
type Invalid struct {
	Name   string
	Reason string
}

func (StemBranchLookup) Method() string   { return MethodStemBranch }
func (BranchBranchLookup) Method() string { return MethodBranchBranch }
func (DayPillarMatch) Method() string     { return MethodDayPillar }
func (VoidBranches) Method() string       { return MethodVoid }
func (MonthLookup) Method() string        { return MethodMonth }
func (CombinationChain) Method() string   { return MethodStemCombination }
func (Formula) Method() string            { return MethodFormula }
func (SpecificDays) Method() string       { return MethodSpecificDays }
func (k UnknownMethod) Method() string    { return k.Name }
func (k Invalid) Method() string          { return k.Name }

func (StemBranchLookup) isKind()   {}
func (BranchBranchLookup) isKind() {}
func (DayPillarMatch) isKind()     {}
func (VoidBranches) isKind()       {}
func (MonthLookup) isKind()        {}
func (CombinationChain) isKind()   {}
func (Formula) isKind()            {}
func (SpecificDays) isKind()       {}
func (UnknownMethod) isKind()      {}
func (Invalid) isKind()            {}

// Symbol is a stem or a branch
type Symbol struct {
	IsStem bool
	Stem   ganzhi.Stem
	Branch ganzhi.Branch
}

func (s Symbol) String() string {
	if s.IsStem {
		return s.Stem.String()
	}
	return s.Branch.String()
}

// Element of the symbol
func (s Symbol) Element() ganzhi.Element {
	if s.IsStem {
		return s.Stem.Element()
	}
	return s.Branch.Element()
}

// Partner returns the five-combination partner of a stem or the six-harmony partner of a branch
func (s Symbol) Partner() Symbol {
	if s.IsStem {
		return Symbol{IsStem: true, Stem: s.Stem.Partner()}
	}
	return Symbol{Branch: s.Branch.Harmony()}
}

// Rule is one compiled marker definition
type Rule struct {
	Key          string
	Name         string
	Kind         Kind
	Modifiers    []Modifier // already in application order
	Positions    map[pillars.Position]float64
	PositiveTags []string
	NegativeTags []string
	Level        int
	Description  string
}

// OutcomeKind is the result class of one rule evaluation
type OutcomeKind int

const (
	Unmatched OutcomeKind = iota
	Matched
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Matched:
		return "matched"
	case Failed:
		return "failed"
	default:
		return "unmatched"
	}
}

func (k OutcomeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Outcome of matching one rule against a chart
type Outcome struct {
	Kind      OutcomeKind
	Positions []pillars.Position
	OnStem    bool // the matched symbols are stems rather than branches
	Reason    string
}

func matched(positions []pillars.Position, onStem bool) Outcome {
	if len(positions) == 0 {
		return Outcome{Kind: Unmatched}
	}
	return Outcome{Kind: Matched, Positions: positions, OnStem: onStem}
}

func failed(reason string) Outcome { return Outcome{Kind: Failed, Reason: reason} }
