package ganzhi

import (
	"fmt"
	"unicode/utf8"
)

// CycleLength is the length of the sexagenary cycle
const CycleLength = 60

// StemBranch is one pillar: a stem paired with a branch of the same polarity.
// Every valid value corresponds to exactly one offset in 0..59.
type StemBranch struct {
	Stem   Stem   `json:"stem"`
	Branch Branch `json:"branch"`
}

// FromOffset builds the pillar at position n of the cycle. Any integer is
// reduced modulo 60, so negative offsets walk backwards.
func FromOffset(n int) StemBranch {
	n = mod(n, CycleLength)
	return StemBranch{Stem: Stem(n % 10), Branch: Branch(n % 12)}
}

// NewStemBranch validates that the pair is part of the cycle
func NewStemBranch(s Stem, b Branch) (StemBranch, error) {
	if !s.Valid() || !b.Valid() {
		return StemBranch{}, fmt.Errorf("invalid pillar %d/%d", int(s), int(b))
	}
	if int(s)%2 != int(b)%2 {
		return StemBranch{}, fmt.Errorf("pillar %s%s mixes polarity", s, b)
	}
	return StemBranch{Stem: s, Branch: b}, nil
}

// Valid reports whether the pair is one of the sixty cycle members
func (sb StemBranch) Valid() bool {
	return sb.Stem.Valid() && sb.Branch.Valid() && int(sb.Stem)%2 == int(sb.Branch)%2
}

// Offset returns the cycle position 0..59, or -1 for an invalid pair
func (sb StemBranch) Offset() int {
	if !sb.Valid() {
		return -1
	}
	// n ≡ stem (mod 10), n ≡ branch (mod 12)
	return mod(6*int(sb.Stem)-5*int(sb.Branch), CycleLength)
}

// Add moves n positions along the cycle
func (sb StemBranch) Add(n int) StemBranch { return FromOffset(sb.Offset() + n) }

func (sb StemBranch) Next() StemBranch { return sb.Add(1) }
func (sb StemBranch) Prev() StemBranch { return sb.Add(-1) }

// Void returns the two branches left unpaired in this pillar's decade (xun kong)
func (sb StemBranch) Void() [2]Branch {
	head := sb.Offset() - int(sb.Stem) // Jia of the decade
	return [2]Branch{Branch(mod(head+10, 12)), Branch(mod(head+11, 12))}
}

func (sb StemBranch) String() string {
	if !sb.Valid() {
		return "??"
	}
	return sb.Stem.String() + sb.Branch.String()
}

// Pinyin returns the romanized pair, e.g. "jia-zi"
func (sb StemBranch) Pinyin() string {
	return sb.Stem.Pinyin() + "-" + sb.Branch.Pinyin()
}

func (sb StemBranch) MarshalText() ([]byte, error) {
	if !sb.Valid() {
		return nil, fmt.Errorf("invalid pillar %d/%d", int(sb.Stem), int(sb.Branch))
	}
	return []byte(sb.String()), nil
}

func (sb *StemBranch) UnmarshalText(b []byte) error {
	v, err := ParseStemBranch(string(b))
	if err != nil {
		return err
	}
	*sb = v
	return nil
}

// ParseStemBranch accepts two glyphs ("甲子") or "jia-zi"
func ParseStemBranch(v string) (StemBranch, error) {
	if utf8.RuneCountInString(v) == 2 {
		r, size := utf8.DecodeRuneInString(v)
		s, err := ParseStem(string(r))
		if err != nil {
			return StemBranch{}, err
		}
		b, err := ParseBranch(v[size:])
		if err != nil {
			return StemBranch{}, err
		}
		return NewStemBranch(s, b)
	}
	for i := 0; i < len(v); i++ {
		if v[i] == '-' {
			s, err := ParseStem(v[:i])
			if err != nil {
				return StemBranch{}, err
			}
			b, err := ParseBranch(v[i+1:])
			if err != nil {
				return StemBranch{}, err
			}
			return NewStemBranch(s, b)
		}
	}
	return StemBranch{}, fmt.Errorf("unknown pillar %q", v)
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
