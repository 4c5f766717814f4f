package shensha

import (
	"fmt"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/pillars"
	"github.com/sawpanic/bazirun/internal/strength"
)

// match dispatches on the rule kind
func (rs *RuleSet) match(r Rule, ctx *Context) Outcome {
	c := ctx.Chart
	switch k := r.Kind.(type) {
	case StemBranchLookup:
		if len(k.Table) == 0 {
			return Outcome{Kind: Unmatched}
		}
		var want []ganzhi.Branch
		for _, pos := range k.Base {
			want = append(want, k.Table[c.Pillar(pos).Stem]...)
		}
		return matched(branchesAt(c, k.Targets, want), false)

	case BranchBranchLookup:
		if len(k.Table) == 0 {
			return Outcome{Kind: Unmatched}
		}
		var want []ganzhi.Branch
		for _, pos := range k.Base {
			want = append(want, k.Table[c.Pillar(pos).Branch]...)
		}
		return matched(branchesAt(c, k.Targets, want), false)

	case DayPillarMatch:
		if !containsPillar(k.Pillars, c.Day) {
			return Outcome{Kind: Unmatched}
		}
		positions := []pillars.Position{pillars.DayPos}
		for _, pos := range pillars.Positions {
			if pos != pillars.DayPos && containsPillar(k.Pillars, c.Pillar(pos)) {
				positions = append(positions, pos)
			}
		}
		return matched(positions, false)

	case VoidBranches:
		void := c.Pillar(k.Base).Void()
		var targets []pillars.Position
		for _, pos := range k.Targets {
			if pos != k.Base {
				targets = append(targets, pos)
			}
		}
		return matched(branchesAt(c, targets, void[:]), false)

	case MonthLookup:
		sym, ok := k.Table[c.SolarMonth]
		if !ok {
			return Outcome{Kind: Unmatched}
		}
		return matched(symbolAt(c, k.Targets, sym), sym.IsStem)

	case CombinationChain:
		base, ok := rs.Lookup(k.Chain)
		if !ok {
			return failed(fmt.Sprintf("chained rule %q not found", k.Chain))
		}
		month, ok := base.Kind.(MonthLookup)
		if !ok {
			return failed(fmt.Sprintf("chained rule %q is %s, want %s", k.Chain, base.Kind.Method(), MethodMonth))
		}
		sym, ok := month.Table[c.SolarMonth]
		if !ok {
			return Outcome{Kind: Unmatched}
		}
		partner := sym.Partner()
		return matched(symbolAt(c, k.Targets, partner), partner.IsStem)

	case Formula:
		f, ok := formulas[k.Name]
		if !ok {
			return failed(fmt.Sprintf("unknown formula %q", k.Name))
		}
		return f(c, k.Targets)

	case SpecificDays:
		if !containsPillar(k.Days, c.Day) {
			return Outcome{Kind: Unmatched}
		}
		return matched([]pillars.Position{pillars.DayPos}, false)

	case UnknownMethod:
		return Outcome{Kind: Unmatched, Reason: fmt.Sprintf("unknown calc method %q", k.Name)}

	case Invalid:
		return failed(k.Reason)

	default:
		return failed(fmt.Sprintf("unsupported rule kind %T", r.Kind))
	}
}

func branchesAt(c pillars.Chart, targets []pillars.Position, want []ganzhi.Branch) []pillars.Position {
	var out []pillars.Position
	for _, pos := range targets {
		b := c.Pillar(pos).Branch
		for _, w := range want {
			if b == w {
				out = append(out, pos)
				break
			}
		}
	}
	return out
}

func symbolAt(c pillars.Chart, targets []pillars.Position, sym Symbol) []pillars.Position {
	var out []pillars.Position
	for _, pos := range targets {
		p := c.Pillar(pos)
		if (sym.IsStem && p.Stem == sym.Stem) || (!sym.IsStem && p.Branch == sym.Branch) {
			out = append(out, pos)
		}
	}
	return out
}

func containsPillar(list []ganzhi.StemBranch, p ganzhi.StemBranch) bool {
	for _, x := range list {
		if x == p {
			return true
		}
	}
	return false
}

type formulaFunc func(c pillars.Chart, targets []pillars.Position) Outcome

var formulas = map[string]formulaFunc{
	"tongzi":        tongzi,
	"three_wonders": threeWonders,
}

// tongzi: by season, spring and autumn births seek Yin or Zi, summer and
// winter births Mao, Wei or Chen; by the year's na-yin element, metal and
// wood seek Wu or Mao, water and fire You or Xu, earth Chen or Si
func tongzi(c pillars.Chart, targets []pillars.Position) Outcome {
	var bySeason []ganzhi.Branch
	switch strength.SeasonOf(c.SolarMonth) {
	case strength.Spring, strength.Autumn:
		bySeason = []ganzhi.Branch{ganzhi.Tiger, ganzhi.Rat}
	default:
		bySeason = []ganzhi.Branch{ganzhi.Rabbit, ganzhi.Goat, ganzhi.Dragon}
	}

	var byNaYin []ganzhi.Branch
	_, el := c.Year.NaYin()
	switch el {
	case ganzhi.Metal, ganzhi.Wood:
		byNaYin = []ganzhi.Branch{ganzhi.Horse, ganzhi.Rabbit}
	case ganzhi.Water, ganzhi.Fire:
		byNaYin = []ganzhi.Branch{ganzhi.Rooster, ganzhi.Dog}
	case ganzhi.Earth:
		byNaYin = []ganzhi.Branch{ganzhi.Dragon, ganzhi.Snake}
	}
	if len(targets) == 0 {
		targets = []pillars.Position{pillars.DayPos, pillars.HourPos}
	}
	return matched(branchesAt(c, targets, append(bySeason, byNaYin...)), false)
}

var wonderSequences = [][3]ganzhi.Stem{
	{ganzhi.Jia, ganzhi.Wu, ganzhi.Geng},  // heaven
	{ganzhi.Yi, ganzhi.Bing, ganzhi.Ding}, // earth
	{ganzhi.Ren, ganzhi.Gui, ganzhi.Xin},  // man
}

// threeWonders matches three consecutive pillars whose stems run in one of the wonder sequences
func threeWonders(c pillars.Chart, _ []pillars.Position) Outcome {
	ps := c.Pillars()
	for start := 0; start+2 < len(ps); start++ {
		for _, seq := range wonderSequences {
			if ps[start].Stem == seq[0] && ps[start+1].Stem == seq[1] && ps[start+2].Stem == seq[2] {
				return matched([]pillars.Position{
					pillars.Positions[start], pillars.Positions[start+1], pillars.Positions[start+2],
				}, true)
			}
		}
	}
	return Outcome{Kind: Unmatched}
}
