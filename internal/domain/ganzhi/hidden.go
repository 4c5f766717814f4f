package ganzhi

import (
	"fmt"
	"math"
)

// Qi ranks a hidden stem within its branch
type Qi int

const (
	MainQi Qi = iota
	MiddleQi
	ResidualQi
)

func (q Qi) String() string {
	switch q {
	case MainQi:
		return "main"
	case MiddleQi:
		return "middle"
	case ResidualQi:
		return "residual"
	default:
		return "unknown"
	}
}

// HiddenStem is a stem stored inside a branch with its fractional weight
type HiddenStem struct {
	Stem   Stem    `json:"stem" yaml:"stem"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// HiddenTable maps each branch to its hidden stems, strongest first
type HiddenTable [12][]HiddenStem

// DefaultHiddenStems is the standard weighting (60/30/10 for three stems)
var DefaultHiddenStems = HiddenTable{
	Rat:     {{Gui, 1.0}},
	Ox:      {{Ji, 0.6}, {Gui, 0.3}, {Xin, 0.1}},
	Tiger:   {{Jia, 0.6}, {Bing, 0.3}, {Wu, 0.1}},
	Rabbit:  {{Yi, 1.0}},
	Dragon:  {{Wu, 0.6}, {Yi, 0.3}, {Gui, 0.1}},
	Snake:   {{Bing, 0.6}, {Wu, 0.3}, {Geng, 0.1}},
	Horse:   {{Ding, 0.7}, {Ji, 0.3}},
	Goat:    {{Ji, 0.6}, {Ding, 0.3}, {Yi, 0.1}},
	Monkey:  {{Geng, 0.6}, {Ren, 0.3}, {Wu, 0.1}},
	Rooster: {{Xin, 1.0}},
	Dog:     {{Wu, 0.6}, {Xin, 0.3}, {Ding, 0.1}},
	Pig:     {{Ren, 0.7}, {Jia, 0.3}},
}

// Of returns the hidden stems of b; the slice must not be modified
func (t *HiddenTable) Of(b Branch) []HiddenStem {
	if !b.Valid() {
		return nil
	}
	return t[b]
}

// QiOf reports the rank of the i-th hidden stem of a branch
func QiOf(i int) Qi {
	if i > int(ResidualQi) {
		return ResidualQi
	}
	return Qi(i)
}

// Validate checks every branch has 1-3 hidden stems whose weights sum to at most 1
func (t *HiddenTable) Validate() []string {
	var problems []string
	for b := Rat; b <= Pig; b++ {
		hs := t[b]
		if len(hs) == 0 || len(hs) > 3 {
			problems = append(problems, fmt.Sprintf("branch %s has %d hidden stems, want 1-3", b, len(hs)))
			continue
		}
		sum := 0.0
		for _, h := range hs {
			if !h.Stem.Valid() {
				problems = append(problems, fmt.Sprintf("branch %s has invalid hidden stem %d", b, int(h.Stem)))
			}
			if h.Weight <= 0 {
				problems = append(problems, fmt.Sprintf("branch %s hidden stem %s has non-positive weight", b, h.Stem))
			}
			sum += h.Weight
		}
		if sum > 1+1e-9 || math.IsNaN(sum) {
			problems = append(problems, fmt.Sprintf("branch %s hidden weights sum to %.3f, want <= 1", b, sum))
		}
	}
	return problems
}
