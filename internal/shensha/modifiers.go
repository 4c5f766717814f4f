package shensha

import (
	"fmt"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/pillars"
)

// ModifierKey names a self-modifier condition
type ModifierKey int

const (
	FavorableElement ModifierKey = iota
	Conflict
	Harmony
	MultipleAppearance
	DayMasterWeak
	DayMasterStrong
)

// modifierOrder is the fixed order in which self-modifiers fold into strength
var modifierOrder = []ModifierKey{FavorableElement, Conflict, Harmony, MultipleAppearance, DayMasterWeak, DayMasterStrong}

var modifierNames = map[ModifierKey]string{
	FavorableElement:   "favorable_element",
	Conflict:           "conflict",
	Harmony:            "harmony",
	MultipleAppearance: "multiple_appearance",
	DayMasterWeak:      "day_master_weak",
	DayMasterStrong:    "day_master_strong",
}

var modifierTags = map[ModifierKey]string{
	FavorableElement:   "喜用神增强",
	Conflict:           "受冲",
	Harmony:            "受合",
	MultipleAppearance: "多现",
	DayMasterWeak:      "身弱得助",
	DayMasterStrong:    "身强",
}

func (k ModifierKey) String() string {
	if n, ok := modifierNames[k]; ok {
		return n
	}
	return "unknown"
}

func parseModifierKey(s string) (ModifierKey, error) {
	for k, n := range modifierNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown strength modifier %q", s)
}

// Modifier multiplies a marker's strength when its condition holds
type Modifier struct {
	Key    ModifierKey
	Factor float64
}

var positionTags = map[pillars.Position]string{
	pillars.YearPos:  "年柱",
	pillars.MonthPos: "月柱",
	pillars.DayPos:   "日柱",
	pillars.HourPos:  "时柱",
}

// applySelfModifiers folds a rule's modifiers, then its position factors,
// into a freshly matched marker and returns the result
func applySelfModifiers(m Marker, r Rule, ctx *Context) Marker {
	for _, mod := range r.Modifiers {
		if holds(mod.Key, m, ctx) {
			m = m.scaled(mod.Factor, modifierTags[mod.Key])
		}
	}
	for _, pos := range pillars.Positions {
		f, ok := r.Positions[pos]
		if ok && m.At(pos) {
			m = m.scaled(f, positionTags[pos])
		}
	}
	return m
}

func holds(k ModifierKey, m Marker, ctx *Context) bool {
	switch k {
	case FavorableElement:
		return ctx.anyElementIn(m, ctx.Favorable)
	case Conflict:
		return ctx.clashes(m)
	case Harmony:
		return ctx.harmonizes(m)
	case MultipleAppearance:
		return len(m.Positions) > 1
	case DayMasterWeak:
		return ctx.Strength.IsWeak()
	case DayMasterStrong:
		return ctx.Strength.IsStrong()
	default:
		return false
	}
}

// element of the symbol a marker sits on at pos
func (ctx *Context) elementAt(m Marker, pos pillars.Position) ganzhi.Element {
	p := ctx.Chart.Pillar(pos)
	if m.onStem {
		return p.Stem.Element()
	}
	return p.Branch.Element()
}

func (ctx *Context) anyElementIn(m Marker, set []ganzhi.Element) bool {
	for _, pos := range m.Positions {
		el := ctx.elementAt(m, pos)
		for _, e := range set {
			if e == el {
				return true
			}
		}
	}
	return false
}

// clashes reports whether a matched branch is clashed by another pillar's branch
func (ctx *Context) clashes(m Marker) bool {
	return ctx.branchRelation(m, ganzhi.Branch.Clash)
}

// harmonizes reports whether a matched branch six-combines with another pillar's branch
func (ctx *Context) harmonizes(m Marker) bool {
	return ctx.branchRelation(m, ganzhi.Branch.Harmony)
}

// branchRelation looks only at branch matches; a marker found on a stem has
// no matched branch to clash or combine
func (ctx *Context) branchRelation(m Marker, partner func(ganzhi.Branch) ganzhi.Branch) bool {
	if m.onStem {
		return false
	}
	for _, pos := range m.Positions {
		want := partner(ctx.Chart.Pillar(pos).Branch)
		for _, other := range pillars.Positions {
			if other != pos && ctx.Chart.Pillar(other).Branch == want {
				return true
			}
		}
	}
	return false
}
