package dayun

import (
	"fmt"
	"math"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
)

// TrendConfig weights the per-cycle fortune score and sets the thresholds
// the trend summary is read with
type TrendConfig struct {
	StemWeight     float64 `yaml:"stem_weight" json:"stem_weight"`         // Default: 0.6
	BranchWeight   float64 `yaml:"branch_weight" json:"branch_weight"`     // Default: 0.4
	PeakScore      float64 `yaml:"peak_score" json:"peak_score"`           // Default: 75, at or above is a peak
	ChallengeScore float64 `yaml:"challenge_score" json:"challenge_score"` // Default: 40, at or below is challenging
	TurningDelta   float64 `yaml:"turning_delta" json:"turning_delta"`     // Default: 20, score change between cycles
	SlopeDelta     float64 `yaml:"slope_delta" json:"slope_delta"`         // Default: 10, late minus early average
	FavorableMean  float64 `yaml:"favorable_mean" json:"favorable_mean"`   // Default: 60, mean above which a flat run is favorable
	WindowCycles   int     `yaml:"window_cycles" json:"window_cycles"`     // Default: 3, cycles averaged at each end
}

// DefaultTrendConfig weights the stem 0.6 and the branch 0.4
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		StemWeight:     0.6,
		BranchWeight:   0.4,
		PeakScore:      75,
		ChallengeScore: 40,
		TurningDelta:   20,
		SlopeDelta:     10,
		FavorableMean:  60,
		WindowCycles:   3,
	}
}

// Validate returns every problem found; empty means usable
func (c TrendConfig) Validate() []string {
	var problems []string
	if c.StemWeight < 0 || c.BranchWeight < 0 || c.StemWeight+c.BranchWeight <= 0 {
		problems = append(problems, fmt.Sprintf("trend weights must be non-negative with a positive sum, got %.2f/%.2f", c.StemWeight, c.BranchWeight))
	}
	if c.ChallengeScore >= c.PeakScore {
		problems = append(problems, fmt.Sprintf("challenge_score %.1f must be below peak_score %.1f", c.ChallengeScore, c.PeakScore))
	}
	if c.TurningDelta <= 0 {
		problems = append(problems, "turning_delta must be positive")
	}
	if c.SlopeDelta < 0 {
		problems = append(problems, "slope_delta must not be negative")
	}
	if c.WindowCycles < 1 {
		problems = append(problems, fmt.Sprintf("window_cycles must be at least 1, got %d", c.WindowCycles))
	}
	return problems
}

// Base score of a cycle before element relations
const baseScore = 50

// RelationScore rates an element against the day master: resource highest,
// then companion, output, wealth; the controlling element counts against.
func RelationScore(dayMaster, other ganzhi.Element) float64 {
	if !dayMaster.Valid() || !other.Valid() {
		return 0
	}
	switch other {
	case dayMaster:
		return 15
	case dayMaster.GeneratedBy():
		return 25
	case dayMaster.Generates():
		return 10
	case dayMaster.OvercomeBy():
		return -20
	case dayMaster.Overcomes():
		return 5
	}
	return 0
}

// AgeFactor scales a cycle by the life stage it starts in
func AgeFactor(startAge int) float64 {
	switch {
	case startAge < 20:
		return 0.9
	case startAge < 40:
		return 1.1
	case startAge < 60:
		return 1.0
	default:
		return 0.95
	}
}

// Score rates one cycle pillar for a day master, clamped to [0, 100]
func Score(dayMaster ganzhi.Element, p ganzhi.StemBranch, startAge int, cfg TrendConfig) float64 {
	s := baseScore +
		RelationScore(dayMaster, p.Stem.Element())*cfg.StemWeight +
		RelationScore(dayMaster, p.Branch.Element())*cfg.BranchWeight
	s *= AgeFactor(startAge)
	return math.Round(math.Max(0, math.Min(100, s))*100) / 100
}

// TrendKind is the overall direction of a cycle sequence
type TrendKind string

const (
	TrendRising    TrendKind = "rising"
	TrendDeclining TrendKind = "declining"
	TrendFavorable TrendKind = "favorable"
	TrendSteady    TrendKind = "steady"
)

// Period is a cycle singled out by its score
type Period struct {
	Index    int               `json:"index"`
	StartAge int               `json:"start_age"`
	EndAge   int               `json:"end_age"`
	Pillar   ganzhi.StemBranch `json:"pillar"`
	Score    float64           `json:"score"`
}

// TurningPoint is a cycle whose score moves sharply from the one before
type TurningPoint struct {
	Index int     `json:"index"`
	Age   int     `json:"age"`
	Delta float64 `json:"delta"` // positive when improving
}

// Trend summarizes the scored cycles
type Trend struct {
	Overall       TrendKind      `json:"overall"`
	Mean          float64        `json:"mean"`
	Peaks         []Period       `json:"peaks"`
	Challenges    []Period       `json:"challenges"`
	TurningPoints []TurningPoint `json:"turning_points"`
}

// Analyze reads the trend from scored cycles. A sequence shorter than the
// averaging window is reported steady.
func Analyze(cycles []Cycle, cfg TrendConfig) Trend {
	t := Trend{
		Overall:       TrendSteady,
		Peaks:         []Period{},
		Challenges:    []Period{},
		TurningPoints: []TurningPoint{},
	}
	if len(cycles) == 0 {
		return t
	}

	sum := 0.0
	for _, cy := range cycles {
		sum += cy.Score
	}
	t.Mean = math.Round(sum/float64(len(cycles))*100) / 100

	if w := cfg.WindowCycles; w > 0 && len(cycles) >= w {
		early := mean(cycles[:w])
		late := mean(cycles[len(cycles)-w:])
		switch {
		case late-early > cfg.SlopeDelta:
			t.Overall = TrendRising
		case early-late > cfg.SlopeDelta:
			t.Overall = TrendDeclining
		case t.Mean > cfg.FavorableMean:
			t.Overall = TrendFavorable
		}
	}

	for i, cy := range cycles {
		p := Period{Index: cy.Index, StartAge: cy.StartAge, EndAge: cy.EndAge, Pillar: cy.Pillar, Score: cy.Score}
		switch {
		case cy.Score >= cfg.PeakScore:
			t.Peaks = append(t.Peaks, p)
		case cy.Score <= cfg.ChallengeScore:
			t.Challenges = append(t.Challenges, p)
		}
		if i == 0 {
			continue
		}
		if d := cy.Score - cycles[i-1].Score; math.Abs(d) >= cfg.TurningDelta {
			t.TurningPoints = append(t.TurningPoints, TurningPoint{
				Index: cy.Index,
				Age:   cy.StartAge,
				Delta: math.Round(d*100) / 100,
			})
		}
	}
	return t
}

func mean(cycles []Cycle) float64 {
	sum := 0.0
	for _, cy := range cycles {
		sum += cy.Score
	}
	return sum / float64(len(cycles))
}
