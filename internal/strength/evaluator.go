package strength

import (
	"errors"
	"strings"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/elements"
	"github.com/sawpanic/bazirun/internal/pillars"
)

// Label is the ordinal strength of the day master
type Label int

const (
	Unknown Label = iota
	VeryWeak
	Weak
	Balanced
	Strong
	VeryStrong
)

func (l Label) String() string {
	switch l {
	case VeryWeak:
		return "very_weak"
	case Weak:
		return "weak"
	case Balanced:
		return "balanced"
	case Strong:
		return "strong"
	case VeryStrong:
		return "very_strong"
	default:
		return "unknown"
	}
}

// Glyph returns the conventional two-character label
func (l Label) Glyph() string {
	switch l {
	case VeryWeak:
		return "极弱"
	case Weak:
		return "身弱"
	case Balanced:
		return "平和"
	case Strong:
		return "身强"
	case VeryStrong:
		return "极强"
	default:
		return "未知"
	}
}

func (l Label) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// IsStrong covers strong and very strong
func (l Label) IsStrong() bool { return l == Strong || l == VeryStrong }

// IsWeak covers weak and very weak
func (l Label) IsWeak() bool { return l == Weak || l == VeryWeak }

// Season of the birth month
type Season int

const (
	Spring Season = iota
	Summer
	Autumn
	Winter
)

var Seasons = [4]Season{Spring, Summer, Autumn, Winter}

func (s Season) String() string {
	switch s {
	case Spring:
		return "spring"
	case Summer:
		return "summer"
	case Autumn:
		return "autumn"
	case Winter:
		return "winter"
	default:
		return "unknown"
	}
}

func (s Season) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// SeasonOf maps a solar month (1 = Yin) to its season: Yin/Mao/Chen are spring
func SeasonOf(month int) Season { return Season((month - 1) / 3) }

// Components are the four factors, each in [0,1]
type Components struct {
	Seasonal float64 `json:"seasonal"`
	Rooting  float64 `json:"rooting"`
	Support  float64 `json:"support"`
	Peer     float64 `json:"peer"`
}

// Result is the evaluated strength of the day master
type Result struct {
	DayMaster  ganzhi.Stem `json:"day_master"`
	Label      Label       `json:"label"`
	Score      float64     `json:"score"`
	Season     Season      `json:"season"`
	Components Components  `json:"components"`
	Note       string      `json:"note,omitempty"`
}

// Evaluator scores day-master strength with a compiled configuration
type Evaluator struct {
	cfg      Config
	seasonal [4][5]float64
	rooting  [4]float64 // by pillar position
	rootSum  float64
	hidden   *ganzhi.HiddenTable
}

// NewEvaluator validates and compiles cfg; hidden may be nil for the standard table
func NewEvaluator(cfg Config, hidden *ganzhi.HiddenTable) (*Evaluator, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, errors.New("invalid strength config: " + strings.Join(problems, "; "))
	}
	if hidden == nil {
		hidden = &ganzhi.DefaultHiddenStems
	}
	ev := &Evaluator{cfg: cfg, hidden: hidden}
	for _, s := range Seasons {
		for _, e := range ganzhi.Elements {
			ev.seasonal[s][e] = cfg.Seasonal[s.String()][e.String()]
		}
	}
	for _, p := range pillars.Positions {
		ev.rooting[p] = cfg.RootingPositions[p.String()]
		ev.rootSum += ev.rooting[p]
	}
	return ev, nil
}

// Evaluate scores the chart's day master. A malformed chart yields Unknown.
func (ev *Evaluator) Evaluate(c pillars.Chart, dist elements.Distribution) Result {
	if !c.Valid() {
		return Result{Label: Unknown, Note: "malformed chart"}
	}
	dm := c.DayMaster()
	el := dm.Element()
	season := SeasonOf(c.SolarMonth)

	comp := Components{
		Seasonal: ev.seasonal[season][el],
		Rooting:  ev.Rooting(c),
		Support:  dist.Of(el.GeneratedBy()),
		Peer:     dist.Of(el),
	}
	score := ev.Combine(comp)
	return Result{
		DayMaster:  dm,
		Label:      ev.Classify(score),
		Score:      score,
		Season:     season,
		Components: comp,
	}
}

// Rooting is the weighted share of hidden stems matching the day master's element
func (ev *Evaluator) Rooting(c pillars.Chart) float64 {
	el := c.DayMaster().Element()
	total := 0.0
	for _, p := range pillars.Positions {
		w := ev.rooting[p]
		if w == 0 {
			continue
		}
		for _, h := range ev.hidden.Of(c.Pillar(p).Branch) {
			if h.Stem.Element() == el {
				total += w * h.Weight
			}
		}
	}
	return clamp(total / ev.rootSum)
}

// Combine is the weighted average of the components, clamped to [0,1]
func (ev *Evaluator) Combine(comp Components) float64 {
	w := ev.cfg.Weights
	sum := w.Season + w.Rooting + w.Support + w.Peer
	return clamp((w.Season*comp.Seasonal + w.Rooting*comp.Rooting + w.Support*comp.Support + w.Peer*comp.Peer) / sum)
}

// Classify buckets a score into a label
func (ev *Evaluator) Classify(score float64) Label {
	th := ev.cfg.Thresholds
	switch {
	case score >= th.VeryStrong:
		return VeryStrong
	case score >= th.Strong:
		return Strong
	case score >= th.Balanced:
		return Balanced
	case score >= th.Weak:
		return Weak
	default:
		return VeryWeak
	}
}

func clamp(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
