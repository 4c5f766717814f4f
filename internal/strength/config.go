package strength

import (
	"fmt"
	"math"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
)

// Weights blend the four components; they need not sum to 1
type Weights struct {
	Season  float64 `yaml:"season" json:"season"`   // Default: 0.35
	Rooting float64 `yaml:"rooting" json:"rooting"` // Default: 0.30
	Support float64 `yaml:"support" json:"support"` // Default: 0.20
	Peer    float64 `yaml:"peer" json:"peer"`       // Default: 0.15
}

// Thresholds are the lower bounds of each label, scored in [0,1]
type Thresholds struct {
	VeryStrong float64 `yaml:"very_strong" json:"very_strong"` // Default: 0.65
	Strong     float64 `yaml:"strong" json:"strong"`           // Default: 0.50
	Balanced   float64 `yaml:"balanced" json:"balanced"`       // Default: 0.35
	Weak       float64 `yaml:"weak" json:"weak"`               // Default: 0.20
}

// Config holds the evaluator tables
type Config struct {
	Weights    Weights    `yaml:"weights" json:"weights"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
	// Seasonal maps season -> element -> relative strength in [0,1]
	Seasonal map[string]map[string]float64 `yaml:"seasonal" json:"seasonal"`
	// RootingPositions weighs the branches searched for roots; day is off by default
	RootingPositions map[string]float64 `yaml:"rooting_positions" json:"rooting_positions"`
}

// DefaultConfig uses the prosperous/assisted/resting/imprisoned/dead ladder
func DefaultConfig() Config {
	return Config{
		Weights:    Weights{Season: 0.35, Rooting: 0.30, Support: 0.20, Peer: 0.15},
		Thresholds: Thresholds{VeryStrong: 0.65, Strong: 0.50, Balanced: 0.35, Weak: 0.20},
		Seasonal: map[string]map[string]float64{
			"spring": {"wood": 1.0, "fire": 0.8, "water": 0.5, "metal": 0.3, "earth": 0.1},
			"summer": {"fire": 1.0, "earth": 0.8, "wood": 0.5, "water": 0.3, "metal": 0.1},
			"autumn": {"metal": 1.0, "water": 0.8, "earth": 0.5, "fire": 0.3, "wood": 0.1},
			"winter": {"water": 1.0, "wood": 0.8, "metal": 0.5, "earth": 0.3, "fire": 0.1},
		},
		RootingPositions: map[string]float64{"year": 1.0, "month": 1.5, "hour": 1.0},
	}
}

// Validate returns every problem found; empty means usable
func (c Config) Validate() []string {
	var problems []string
	w := c.Weights
	for _, f := range []struct {
		name string
		v    float64
	}{{"season", w.Season}, {"rooting", w.Rooting}, {"support", w.Support}, {"peer", w.Peer}} {
		if f.v <= 0 || math.IsNaN(f.v) {
			problems = append(problems, fmt.Sprintf("weight %s must be positive, got %v", f.name, f.v))
		}
	}
	if !(w.Season >= w.Rooting && w.Rooting > w.Support && w.Support > w.Peer) {
		problems = append(problems, fmt.Sprintf("weights must satisfy season >= rooting > support > peer, got %.2f/%.2f/%.2f/%.2f",
			w.Season, w.Rooting, w.Support, w.Peer))
	}

	th := c.Thresholds
	if !(1 >= th.VeryStrong && th.VeryStrong > th.Strong && th.Strong > th.Balanced && th.Balanced > th.Weak && th.Weak > 0) {
		problems = append(problems, fmt.Sprintf("thresholds must descend within (0,1], got %.2f/%.2f/%.2f/%.2f",
			th.VeryStrong, th.Strong, th.Balanced, th.Weak))
	}

	for _, s := range Seasons {
		row, ok := c.Seasonal[s.String()]
		if !ok {
			problems = append(problems, fmt.Sprintf("seasonal table missing %s", s))
			continue
		}
		for _, e := range ganzhi.Elements {
			v, ok := row[e.String()]
			if !ok || v < 0 || v > 1 {
				problems = append(problems, fmt.Sprintf("seasonal %s/%s must be in [0,1]", s, e))
			}
		}
	}

	total := 0.0
	for name, v := range c.RootingPositions {
		switch name {
		case "year", "month", "day", "hour":
		default:
			problems = append(problems, fmt.Sprintf("unknown rooting position %q", name))
		}
		if v < 0 {
			problems = append(problems, fmt.Sprintf("rooting weight %s must be >= 0", name))
		}
		total += v
	}
	if total <= 0 {
		problems = append(problems, "rooting positions need a positive total weight")
	}
	return problems
}
