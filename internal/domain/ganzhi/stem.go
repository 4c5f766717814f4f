package ganzhi

import "fmt"

// Stem is a heavenly stem, 0 (Jia) through 9 (Gui)
type Stem int

const (
	Jia Stem = iota
	Yi
	Bing
	Ding
	Wu
	Ji
	Geng
	Xin
	Ren
	Gui
)

var stemGlyphs = [10]string{"甲", "乙", "丙", "丁", "戊", "己", "庚", "辛", "壬", "癸"}
var stemNames = [10]string{"jia", "yi", "bing", "ding", "wu", "ji", "geng", "xin", "ren", "gui"}

func (s Stem) Valid() bool { return s >= Jia && s <= Gui }

func (s Stem) String() string {
	if !s.Valid() {
		return "?"
	}
	return stemGlyphs[s]
}

// Pinyin returns the romanized name
func (s Stem) Pinyin() string {
	if !s.Valid() {
		return "unknown"
	}
	return stemNames[s]
}

// Element of a stem: two consecutive stems per phase, starting with wood
func (s Stem) Element() Element { return Element(s / 2) }

// Yang reports the polarity; even-indexed stems are yang
func (s Stem) Yang() bool { return s%2 == 0 }

// Partner returns the stem it combines with (Jia-Ji, Yi-Geng, ...)
func (s Stem) Partner() Stem { return (s + 5) % 10 }

// CombinedElement is the element produced by the five-combination of s and its partner
func (s Stem) CombinedElement() Element {
	// Jia-Ji earth, Yi-Geng metal, Bing-Xin water, Ding-Ren wood, Wu-Gui fire
	return Element((int(s%5) + 2) % 5)
}

func (s Stem) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stem %d", int(s))
	}
	return []byte(stemGlyphs[s]), nil
}

func (s *Stem) UnmarshalText(b []byte) error {
	v, err := ParseStem(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStem accepts a glyph or a lower-case pinyin name
func ParseStem(v string) (Stem, error) {
	for i := range stemGlyphs {
		if v == stemGlyphs[i] || v == stemNames[i] {
			return Stem(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stem %q", v)
}
