package shensha

import (
	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/pillars"
	"github.com/sawpanic/bazirun/internal/strength"
)

// Marker is the evaluated state of one rule. Values are never mutated in
// place; modifiers return updated copies.
type Marker struct {
	Key          string             `json:"key"`
	Name         string             `json:"name"`
	Method       string             `json:"calc_method"`
	Outcome      OutcomeKind        `json:"outcome"`
	Active       bool               `json:"active"`
	Positions    []pillars.Position `json:"positions,omitempty"`
	Strength     float64            `json:"strength"`
	Level        int                `json:"auspicious_level,omitempty"`
	PositiveTags []string           `json:"positive_tags,omitempty"`
	NegativeTags []string           `json:"negative_tags,omitempty"`
	Tags         []string           `json:"tags,omitempty"`
	Note         string             `json:"note,omitempty"`

	onStem bool
}

// At reports whether the marker sits on pos
func (m Marker) At(pos pillars.Position) bool {
	for _, p := range m.Positions {
		if p == pos {
			return true
		}
	}
	return false
}

// SharesPosition reports whether both markers sit on a common pillar
func (m Marker) SharesPosition(o Marker) bool {
	for _, p := range m.Positions {
		if o.At(p) {
			return true
		}
	}
	return false
}

func (m Marker) scaled(factor float64, tag string) Marker {
	m.Strength *= factor
	tags := make([]string, len(m.Tags), len(m.Tags)+1)
	copy(tags, m.Tags)
	if tag != "" {
		tags = append(tags, tag)
	}
	m.Tags = tags
	return m
}

// Context is everything a rule may look at
type Context struct {
	Chart       pillars.Chart
	Strength    strength.Label
	Favorable   []ganzhi.Element
	Unfavorable []ganzhi.Element
	Hidden      *ganzhi.HiddenTable // nil selects the standard table
}

// NewContext derives favorable and unfavorable elements from the strength label
func NewContext(c pillars.Chart, label strength.Label) *Context {
	dm := c.DayMaster()
	return &Context{
		Chart:       c,
		Strength:    label,
		Favorable:   strength.Favorable(dm, label),
		Unfavorable: strength.Unfavorable(dm, label),
	}
}

// tenGods lists the relations of the visible stems and the main hidden stems to the day master
func (ctx *Context) tenGods() []ganzhi.TenGod {
	hidden := ctx.Hidden
	if hidden == nil {
		hidden = &ganzhi.DefaultHiddenStems
	}
	dm := ctx.Chart.DayMaster()
	var out []ganzhi.TenGod
	for _, pos := range pillars.Positions {
		p := ctx.Chart.Pillar(pos)
		if pos != pillars.DayPos {
			out = append(out, ganzhi.TenGodOf(dm, p.Stem))
		}
		if hs := hidden.Of(p.Branch); len(hs) > 0 {
			out = append(out, ganzhi.TenGodOf(dm, hs[0].Stem))
		}
	}
	return out
}

func (ctx *Context) hasTenGod(match func(ganzhi.TenGod) bool) bool {
	for _, g := range ctx.tenGods() {
		if match(g) {
			return true
		}
	}
	return false
}
