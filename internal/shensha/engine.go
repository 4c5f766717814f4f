package shensha

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Observer is told the outcome of every rule evaluation
type Observer func(key string, outcome OutcomeKind)

// Option configures an Engine
type Option func(*Engine)

// WithObserver registers a per-rule outcome callback, e.g. for metrics
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// Engine evaluates a rule set against charts. It holds no per-chart state
// and is safe for concurrent use.
type Engine struct {
	rules    *RuleSet
	observer Observer
}

// NewEngine binds a rule set; a nil set evaluates nothing
func NewEngine(rs *RuleSet, opts ...Option) *Engine {
	if rs == nil {
		rs = &RuleSet{byKey: map[string]int{}}
	}
	e := &Engine{rules: rs}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RuleSet returns the bound rules
func (e *Engine) RuleSet() *RuleSet { return e.rules }

// Failure records a rule that could not be evaluated
type Failure struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Report is the result of both passes. Markers holds one entry per rule in
// declared order, active or not.
type Report struct {
	Markers  []Marker  `json:"markers"`
	Failures []Failure `json:"failures,omitempty"`
}

// Active returns the active markers in rule order
func (r Report) Active() []Marker {
	var out []Marker
	for _, m := range r.Markers {
		if m.Active {
			out = append(out, m)
		}
	}
	return out
}

// Marker finds a marker by key
func (r Report) Marker(key string) (Marker, bool) {
	for _, m := range r.Markers {
		if m.Key == key {
			return m, true
		}
	}
	return Marker{}, false
}

// Evaluate runs pass one (match plus self-modifiers) over every rule, then
// pass two (interactions) over the active markers
func (e *Engine) Evaluate(ctx *Context) Report {
	var rep Report
	markers := make([]Marker, 0, len(e.rules.rules))
	for _, r := range e.rules.rules {
		m := e.evaluateRule(r, ctx)
		if m.Outcome == Failed {
			rep.Failures = append(rep.Failures, Failure{Key: r.Key, Reason: m.Note})
			log.Warn().Str("rule", r.Key).Str("reason", m.Note).Msg("marker rule failed")
		}
		if e.observer != nil {
			e.observer(r.Key, m.Outcome)
		}
		markers = append(markers, m)
	}
	rep.Markers = applyInteractions(markers, e.rules.rules, e.rules.interactions, ctx)
	return rep
}

func (e *Engine) evaluateRule(r Rule, ctx *Context) (m Marker) {
	m = Marker{
		Key:          r.Key,
		Name:         r.Name,
		Level:        r.Level,
		PositiveTags: r.PositiveTags,
		NegativeTags: r.NegativeTags,
	}
	defer func() {
		if rec := recover(); rec != nil {
			m.Outcome = Failed
			m.Active = false
			m.Positions = nil
			m.Strength = 0
			m.Tags = nil
			m.Note = fmt.Sprintf("panic: %v", rec)
		}
	}()

	if r.Kind == nil {
		m.Outcome = Failed
		m.Note = "rule has no calc method"
		return m
	}
	m.Method = r.Kind.Method()
	out := e.rules.match(r, ctx)
	m.Outcome = out.Kind
	m.Note = out.Reason
	if out.Kind != Matched {
		return m
	}
	m.Active = true
	m.Positions = out.Positions
	m.onStem = out.OnStem
	m.Strength = 1.0
	return applySelfModifiers(m, r, ctx)
}
