package shensha

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
	"github.com/sawpanic/bazirun/internal/pillars"
)

//go:embed default_rules.yaml
var defaultRules []byte

// ErrUnknownRule is returned when a rule key is not in the set
var ErrUnknownRule = errors.New("unknown marker rule")

// RuleSet is an immutable, ordered collection of rules and interactions
type RuleSet struct {
	rules        []Rule
	byKey        map[string]int
	interactions []Interaction
	problems     []string
}

// Rules returns the rules in declared order
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Interactions returns the second-pass rules in declared order
func (rs *RuleSet) Interactions() []Interaction {
	out := make([]Interaction, len(rs.interactions))
	copy(out, rs.interactions)
	return out
}

// Lookup finds a rule by key
func (rs *RuleSet) Lookup(key string) (Rule, bool) {
	i, ok := rs.byKey[key]
	if !ok {
		return Rule{}, false
	}
	return rs.rules[i], true
}

// Problems lists the non-fatal issues found while loading: unknown methods,
// rules that failed to compile, dangling chains, skipped interactions
func (rs *RuleSet) Problems() []string {
	out := make([]string, len(rs.problems))
	copy(out, rs.problems)
	return out
}

// Default returns the built-in rule set
func Default() (*RuleSet, error) {
	return Parse(defaultRules)
}

// LoadFile reads a rule set from YAML
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}
	return rs, nil
}

// symbols accepts a single scalar or a sequence
type symbols []string

func (s *symbols) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*s = symbols{n.Value}
		return nil
	}
	var list []string
	if err := n.Decode(&list); err != nil {
		return err
	}
	*s = list
	return nil
}

type ruleDoc struct {
	Key              string             `yaml:"key"`
	Name             string             `yaml:"name"`
	CalcMethod       string             `yaml:"calc_method"`
	Description      string             `yaml:"description"`
	Base             []string           `yaml:"base"`
	Targets          []string           `yaml:"targets"`
	Table            map[string]symbols `yaml:"table"`
	Pillars          []string           `yaml:"pillars"`
	Days             []string           `yaml:"days"`
	Chain            string             `yaml:"chain"`
	Formula          string             `yaml:"formula"`
	StrengthModifier map[string]any     `yaml:"strength_modifier"`
	PositiveTags     []string           `yaml:"positive_tags"`
	NegativeTags     []string           `yaml:"negative_tags"`
	Level            int                `yaml:"auspicious_level"`
}

type interactionDoc struct {
	Name       string   `yaml:"name"`
	Condition  string   `yaml:"condition"`
	Markers    []string `yaml:"markers"`
	With       []string `yaml:"with"`
	MinCount   int      `yaml:"min_count"`
	Multiplier float64  `yaml:"multiplier"`
	Tag        string   `yaml:"tag"`
}

type ruleFile struct {
	Rules        []ruleDoc        `yaml:"rules"`
	Interactions []interactionDoc `yaml:"interactions"`
}

// Parse compiles a YAML rule set. Malformed YAML and duplicate or missing
// keys are errors; a rule that cannot be compiled is kept as Invalid and an
// unknown calc method as UnknownMethod, so evaluation still visits every rule.
func Parse(data []byte) (*RuleSet, error) {
	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	rs := &RuleSet{byKey: make(map[string]int, len(doc.Rules))}
	for i, rd := range doc.Rules {
		if rd.Key == "" {
			return nil, fmt.Errorf("rule #%d has no key", i+1)
		}
		if _, dup := rs.byKey[rd.Key]; dup {
			return nil, fmt.Errorf("duplicate rule key %q", rd.Key)
		}
		r := compileRule(rd)
		switch k := r.Kind.(type) {
		case UnknownMethod:
			rs.problems = append(rs.problems, fmt.Sprintf("rule %s: unknown calc method %q, never matches", rd.Key, k.Name))
			log.Warn().Str("rule", rd.Key).Str("calc_method", k.Name).Msg("unknown calc method, rule skipped")
		case Invalid:
			rs.problems = append(rs.problems, fmt.Sprintf("rule %s: %s", rd.Key, k.Reason))
			log.Warn().Str("rule", rd.Key).Str("reason", k.Reason).Msg("rule failed to compile")
		}
		rs.byKey[rd.Key] = len(rs.rules)
		rs.rules = append(rs.rules, r)
	}

	for _, r := range rs.rules {
		if chain, ok := r.Kind.(CombinationChain); ok {
			if base, found := rs.Lookup(chain.Chain); !found {
				rs.problems = append(rs.problems, fmt.Sprintf("rule %s: chained rule %q not found", r.Key, chain.Chain))
			} else if _, isMonth := base.Kind.(MonthLookup); !isMonth {
				rs.problems = append(rs.problems, fmt.Sprintf("rule %s: chained rule %q is not %s", r.Key, chain.Chain, MethodMonth))
			}
		}
	}

	for i, id := range doc.Interactions {
		in, err := compileInteraction(id)
		if err != nil {
			rs.problems = append(rs.problems, fmt.Sprintf("interaction #%d (%s): %v, skipped", i+1, id.Name, err))
			log.Warn().Str("interaction", id.Name).Err(err).Msg("interaction skipped")
			continue
		}
		for _, key := range in.Markers {
			if r, ok := rs.Lookup(key); ok && in.repeats(r) {
				rs.problems = append(rs.problems, fmt.Sprintf("interaction #%d (%s): %s already applies %s, skipped for it", i+1, id.Name, key, selfModifier[in.Condition]))
			}
		}
		rs.interactions = append(rs.interactions, in)
	}
	return rs, nil
}

func compileRule(rd ruleDoc) Rule {
	r := Rule{
		Key:          rd.Key,
		Name:         rd.Name,
		PositiveTags: rd.PositiveTags,
		NegativeTags: rd.NegativeTags,
		Level:        rd.Level,
		Description:  rd.Description,
	}
	if r.Name == "" {
		r.Name = rd.Key
	}
	mods, positions, err := compileModifiers(rd.StrengthModifier)
	if err != nil {
		r.Kind = Invalid{Name: rd.CalcMethod, Reason: err.Error()}
		return r
	}
	r.Modifiers, r.Positions = mods, positions

	kind, err := compileKind(rd)
	if err != nil {
		r.Kind = Invalid{Name: rd.CalcMethod, Reason: err.Error()}
		return r
	}
	r.Kind = kind
	return r
}

func compileKind(rd ruleDoc) (Kind, error) {
	targets, err := parsePositions(rd.Targets, pillars.Positions[:])
	if err != nil {
		return nil, err
	}
	switch rd.CalcMethod {
	case MethodStemBranch:
		base, err := parsePositions(rd.Base, []pillars.Position{pillars.DayPos})
		if err != nil {
			return nil, err
		}
		table := make(map[ganzhi.Stem][]ganzhi.Branch, len(rd.Table))
		for k, vs := range rd.Table {
			s, err := ganzhi.ParseStem(k)
			if err != nil {
				return nil, fmt.Errorf("table key: %w", err)
			}
			bs, err := parseBranches(vs)
			if err != nil {
				return nil, err
			}
			table[s] = bs
		}
		return StemBranchLookup{Base: base, Targets: targets, Table: table}, nil

	case MethodBranchBranch:
		base, err := parsePositions(rd.Base, []pillars.Position{pillars.YearPos, pillars.DayPos})
		if err != nil {
			return nil, err
		}
		table := make(map[ganzhi.Branch][]ganzhi.Branch, len(rd.Table))
		for k, vs := range rd.Table {
			b, err := ganzhi.ParseBranch(k)
			if err != nil {
				return nil, fmt.Errorf("table key: %w", err)
			}
			bs, err := parseBranches(vs)
			if err != nil {
				return nil, err
			}
			table[b] = bs
		}
		return BranchBranchLookup{Base: base, Targets: targets, Table: table}, nil

	case MethodDayPillar:
		ps, err := parsePillars(rd.Pillars)
		if err != nil {
			return nil, err
		}
		return DayPillarMatch{Pillars: ps}, nil

	case MethodVoid:
		base, err := parsePositions(rd.Base, []pillars.Position{pillars.DayPos})
		if err != nil {
			return nil, err
		}
		if len(base) != 1 {
			return nil, fmt.Errorf("%s takes one base position, got %d", MethodVoid, len(base))
		}
		return VoidBranches{Base: base[0], Targets: targets}, nil

	case MethodMonth:
		table := make(map[int]Symbol, len(rd.Table))
		for k, vs := range rd.Table {
			m, err := parseMonthKey(k)
			if err != nil {
				return nil, err
			}
			if len(vs) != 1 {
				return nil, fmt.Errorf("month %s needs exactly one target, got %d", k, len(vs))
			}
			sym, err := parseSymbol(vs[0])
			if err != nil {
				return nil, err
			}
			table[m] = sym
		}
		return MonthLookup{Targets: targets, Table: table}, nil

	case MethodStemCombination:
		if rd.Chain == "" {
			return nil, fmt.Errorf("%s needs a chain", MethodStemCombination)
		}
		return CombinationChain{Chain: rd.Chain, Targets: targets}, nil

	case MethodFormula:
		if rd.Formula == "" {
			return nil, fmt.Errorf("%s needs a formula name", MethodFormula)
		}
		if len(rd.Targets) == 0 {
			targets = nil
		}
		return Formula{Name: rd.Formula, Targets: targets}, nil

	case MethodSpecificDays:
		ps, err := parsePillars(rd.Days)
		if err != nil {
			return nil, err
		}
		return SpecificDays{Days: ps}, nil

	default:
		return UnknownMethod{Name: rd.CalcMethod}, nil
	}
}

func compileModifiers(raw map[string]any) ([]Modifier, map[pillars.Position]float64, error) {
	found := map[ModifierKey]float64{}
	var positions map[pillars.Position]float64
	for name, v := range raw {
		if name == "positions" {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("strength_modifier.positions must be a map")
			}
			positions = make(map[pillars.Position]float64, len(m))
			for pn, pv := range m {
				pos, err := pillars.ParsePosition(pn)
				if err != nil {
					return nil, nil, err
				}
				f, err := toFactor(pv)
				if err != nil {
					return nil, nil, fmt.Errorf("position %s: %w", pn, err)
				}
				positions[pos] = f
			}
			continue
		}
		key, err := parseModifierKey(name)
		if err != nil {
			return nil, nil, err
		}
		f, err := toFactor(v)
		if err != nil {
			return nil, nil, fmt.Errorf("modifier %s: %w", name, err)
		}
		found[key] = f
	}
	var mods []Modifier
	for _, k := range modifierOrder {
		if f, ok := found[k]; ok {
			mods = append(mods, Modifier{Key: k, Factor: f})
		}
	}
	return mods, positions, nil
}

func compileInteraction(id interactionDoc) (Interaction, error) {
	cond, err := parseCondition(id.Condition)
	if err != nil {
		return Interaction{}, err
	}
	if len(id.Markers) == 0 {
		return Interaction{}, errors.New("no markers selected")
	}
	if id.Multiplier <= 0 {
		return Interaction{}, fmt.Errorf("multiplier must be positive, got %v", id.Multiplier)
	}
	if cond == SamePosition && len(id.With) == 0 {
		return Interaction{}, errors.New("same_position needs partner markers in with")
	}
	name := id.Name
	if name == "" {
		name = id.Condition
	}
	return Interaction{
		Name:       name,
		Condition:  cond,
		Markers:    id.Markers,
		With:       id.With,
		MinCount:   id.MinCount,
		Multiplier: id.Multiplier,
		Tag:        id.Tag,
	}, nil
}

func toFactor(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case float64:
		f = x
	default:
		return 0, fmt.Errorf("factor must be a number, got %T", v)
	}
	if f <= 0 {
		return 0, fmt.Errorf("factor must be positive, got %v", f)
	}
	return f, nil
}

func parsePositions(names []string, def []pillars.Position) ([]pillars.Position, error) {
	if len(names) == 0 {
		out := make([]pillars.Position, len(def))
		copy(out, def)
		return out, nil
	}
	out := make([]pillars.Position, 0, len(names))
	for _, n := range names {
		p, err := pillars.ParsePosition(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func parseBranches(vs []string) ([]ganzhi.Branch, error) {
	out := make([]ganzhi.Branch, 0, len(vs))
	for _, v := range vs {
		b, err := ganzhi.ParseBranch(v)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func parsePillars(vs []string) ([]ganzhi.StemBranch, error) {
	out := make([]ganzhi.StemBranch, 0, len(vs))
	for _, v := range vs {
		sb, err := ganzhi.ParseStemBranch(v)
		if err != nil {
			return nil, err
		}
		out = append(out, sb)
	}
	return out, nil
}

// parseMonthKey accepts a solar month number (1 = Yin) or the month branch
func parseMonthKey(k string) (int, error) {
	if m, err := strconv.Atoi(k); err == nil {
		if m < 1 || m > 12 {
			return 0, fmt.Errorf("solar month %d out of range", m)
		}
		return m, nil
	}
	b, err := ganzhi.ParseBranch(k)
	if err != nil {
		return 0, fmt.Errorf("month key: %w", err)
	}
	return (int(b)+10)%12 + 1, nil
}

func parseSymbol(v string) (Symbol, error) {
	if s, err := ganzhi.ParseStem(v); err == nil {
		return Symbol{IsStem: true, Stem: s}, nil
	}
	if b, err := ganzhi.ParseBranch(v); err == nil {
		return Symbol{Branch: b}, nil
	}
	return Symbol{}, fmt.Errorf("unknown stem or branch %q", v)
}

// WriteDigest writes every compiled rule and interaction in declared order,
// tables and factors included, for content fingerprints
func (rs *RuleSet) WriteDigest(w io.Writer) {
	if rs == nil {
		return
	}
	for _, r := range rs.rules {
		method := ""
		if r.Kind != nil {
			method = r.Kind.Method()
		}
		// %#v prints map keys sorted, so the output is stable
		fmt.Fprintf(w, "rule %s %#v\n", method, r)
	}
	for _, in := range rs.interactions {
		fmt.Fprintf(w, "interaction %#v\n", in)
	}
}

// Keys lists rule keys in declared order
func (rs *RuleSet) Keys() []string {
	out := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		out[i] = r.Key
	}
	return out
}

// Methods counts rules per calc method, sorted by method name
func (rs *RuleSet) Methods() []MethodCount {
	counts := map[string]int{}
	for _, r := range rs.rules {
		counts[r.Kind.Method()]++
	}
	out := make([]MethodCount, 0, len(counts))
	for m, n := range counts {
		out = append(out, MethodCount{Method: m, Rules: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

// MethodCount is one row of Methods
type MethodCount struct {
	Method string `json:"method"`
	Rules  int    `json:"rules"`
}
