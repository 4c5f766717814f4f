package shensha

import (
	"fmt"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
)

// Condition selects when a cross-marker interaction applies
type Condition int

const (
	SamePosition Condition = iota
	BranchConflict
	BranchHarmony
	MultipleOccurrences
	OnFavorableElement
	OnUnfavorableElement
	WithOfficialOrSeal
	NoOfficialOrSeal
	WithSeal
)

var conditionNames = map[Condition]string{
	SamePosition:         "same_position",
	BranchConflict:       "branch_conflict",
	BranchHarmony:        "branch_harmony",
	MultipleOccurrences:  "multiple_occurrences",
	OnFavorableElement:   "favorable_element",
	OnUnfavorableElement: "unfavorable_element",
	WithOfficialOrSeal:   "with_official_or_seal",
	NoOfficialOrSeal:     "no_official_or_seal",
	WithSeal:             "with_seal",
}

func (c Condition) String() string {
	if n, ok := conditionNames[c]; ok {
		return n
	}
	return "unknown"
}

func parseCondition(s string) (Condition, error) {
	for c, n := range conditionNames {
		if n == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown interaction condition %q", s)
}

// Interaction is a second-pass rule scaling markers by their relation to the chart or to each other
type Interaction struct {
	Name       string
	Condition  Condition
	Markers    []string // keys it applies to; "*" selects every marker
	With       []string // partner keys for same_position; "*" selects any other marker
	MinCount   int      // positions needed for multiple_occurrences
	Multiplier float64
	Tag        string
}

func (in Interaction) selects(key string) bool {
	return containsKey(in.Markers, key)
}

// selfModifier pairs interaction conditions with the self-modifier that tests
// the same thing
var selfModifier = map[Condition]ModifierKey{
	BranchConflict:      Conflict,
	BranchHarmony:       Harmony,
	MultipleOccurrences: MultipleAppearance,
	OnFavorableElement:  FavorableElement,
}

// repeats reports whether r already folds this condition in as a self-modifier.
// Such a rule is skipped so that one condition scales a marker once.
func (in Interaction) repeats(r Rule) bool {
	k, ok := selfModifier[in.Condition]
	if !ok {
		return false
	}
	if in.Condition == MultipleOccurrences && in.MinCount > 2 {
		return false
	}
	for _, mod := range r.Modifiers {
		if mod.Key == k {
			return true
		}
	}
	return false
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == "*" || k == key {
			return true
		}
	}
	return false
}

// applyInteractions folds every interaction, in declared order, over the
// active markers. markers[i] comes from rules[i]. Conditions look at the
// pass-one markers so that the result does not depend on how earlier
// interactions scaled strength.
func applyInteractions(markers []Marker, rules []Rule, interactions []Interaction, ctx *Context) []Marker {
	snapshot := make([]Marker, len(markers))
	copy(snapshot, markers)

	out := make([]Marker, len(markers))
	copy(out, markers)
	for _, in := range interactions {
		for i, m := range out {
			if !m.Active || !in.selects(m.Key) {
				continue
			}
			if i < len(rules) && in.repeats(rules[i]) {
				continue
			}
			if in.holds(snapshot[i], snapshot, ctx) {
				out[i] = m.scaled(in.Multiplier, in.Tag)
			}
		}
	}
	return out
}

func (in Interaction) holds(m Marker, all []Marker, ctx *Context) bool {
	switch in.Condition {
	case SamePosition:
		for _, o := range all {
			if o.Key != m.Key && o.Active && containsKey(in.With, o.Key) && m.SharesPosition(o) {
				return true
			}
		}
		return false
	case BranchConflict:
		return ctx.clashes(m)
	case BranchHarmony:
		return ctx.harmonizes(m)
	case MultipleOccurrences:
		need := in.MinCount
		if need < 2 {
			need = 2
		}
		return len(m.Positions) >= need
	case OnFavorableElement:
		return ctx.anyElementIn(m, ctx.Favorable)
	case OnUnfavorableElement:
		return ctx.anyElementIn(m, ctx.Unfavorable)
	case WithOfficialOrSeal:
		return ctx.hasTenGod(officialOrSeal)
	case NoOfficialOrSeal:
		return !ctx.hasTenGod(officialOrSeal)
	case WithSeal:
		return ctx.hasTenGod(ganzhi.TenGod.IsSeal)
	default:
		return false
	}
}

func officialOrSeal(g ganzhi.TenGod) bool { return g.IsOfficial() || g.IsSeal() }
