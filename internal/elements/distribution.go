package elements

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/pillars"
)

// Config controls the weighting of chart symbols
type Config struct {
	StemWeight      float64             `yaml:"stem_weight" json:"stem_weight"`             // Default: 1.0
	BranchWeight    float64             `yaml:"branch_weight" json:"branch_weight"`         // Default: 1.0
	HiddenStemScale float64             `yaml:"hidden_stem_scale" json:"hidden_stem_scale"` // Default: 1.0, multiplies hidden weights
	HiddenStems     *ganzhi.HiddenTable `yaml:"-" json:"-"`                                 // nil selects the standard table
}

// DefaultConfig counts every stem and branch once and hidden stems at their table weight
func DefaultConfig() Config {
	return Config{StemWeight: 1.0, BranchWeight: 1.0, HiddenStemScale: 1.0}
}

// Distribution holds the relative weight of each element; values sum to 1
type Distribution [5]float64

// Of returns the weight of e
func (d Distribution) Of(e ganzhi.Element) float64 {
	if !e.Valid() {
		return 0
	}
	return d[e]
}

// Sum of all weights
func (d Distribution) Sum() float64 {
	s := 0.0
	for _, v := range d {
		s += v
	}
	return s
}

// Dominant returns the heaviest element, the earlier one in generating order on ties
func (d Distribution) Dominant() ganzhi.Element {
	best := ganzhi.Wood
	for _, e := range ganzhi.Elements {
		if d[e] > d[best] {
			best = e
		}
	}
	return best
}

// Weakest returns the lightest element, the earlier one on ties
func (d Distribution) Weakest() ganzhi.Element {
	worst := ganzhi.Wood
	for _, e := range ganzhi.Elements {
		if d[e] < d[worst] {
			worst = e
		}
	}
	return worst
}

// Missing lists elements with no weight at all
func (d Distribution) Missing() []ganzhi.Element {
	var out []ganzhi.Element
	for _, e := range ganzhi.Elements {
		if d[e] == 0 {
			out = append(out, e)
		}
	}
	return out
}

// Ranked returns the elements from heaviest to lightest
func (d Distribution) Ranked() []ganzhi.Element {
	out := ganzhi.Elements
	sort.SliceStable(out[:], func(i, j int) bool { return d[out[i]] > d[out[j]] })
	return out[:]
}

func (d Distribution) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range ganzhi.Elements {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:%s", e.String(), formatFloat(d[e]))
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Percentages renders each weight as a rounded percentage, e.g. "wood 25.0%"
func (d Distribution) Percentages() []string {
	out := make([]string, 0, 5)
	for _, e := range ganzhi.Elements {
		out = append(out, fmt.Sprintf("%s %.1f%%", e, d[e]*100))
	}
	return out
}

// Score weighs every stem, branch and hidden stem of the chart and
// normalizes the result. Invalid symbols are skipped; if nothing counts the
// distribution is uniform.
func Score(c pillars.Chart, cfg Config) Distribution {
	hidden := cfg.HiddenStems
	if hidden == nil {
		hidden = &ganzhi.DefaultHiddenStems
	}

	var raw Distribution
	for _, p := range c.Pillars() {
		if p.Stem.Valid() {
			raw[p.Stem.Element()] += cfg.StemWeight
		}
		if !p.Branch.Valid() {
			continue
		}
		raw[p.Branch.Element()] += cfg.BranchWeight
		for _, h := range hidden.Of(p.Branch) {
			raw[h.Stem.Element()] += h.Weight * cfg.HiddenStemScale
		}
	}
	return raw.normalized()
}

func (d Distribution) normalized() Distribution {
	total := d.Sum()
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return Distribution{0.2, 0.2, 0.2, 0.2, 0.2}
	}
	var out Distribution
	for i := range d {
		out[i] = d[i] / total
	}
	return out
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", math.Round(v*1e6)/1e6)
}
