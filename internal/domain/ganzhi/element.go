package ganzhi

import "fmt"

// Element is one of the five phases
type Element int

const (
	Wood Element = iota
	Fire
	Earth
	Metal
	Water
)

// Elements lists the five phases in generating order
var Elements = [5]Element{Wood, Fire, Earth, Metal, Water}

var elementNames = [5]string{"wood", "fire", "earth", "metal", "water"}
var elementGlyphs = [5]string{"木", "火", "土", "金", "水"}

func (e Element) String() string {
	if !e.Valid() {
		return "unknown"
	}
	return elementNames[e]
}

// Glyph returns the single-character name
func (e Element) Glyph() string {
	if !e.Valid() {
		return "?"
	}
	return elementGlyphs[e]
}

func (e Element) Valid() bool { return e >= Wood && e <= Water }

// Generates returns the element this one produces (wood feeds fire)
func (e Element) Generates() Element { return (e + 1) % 5 }

// GeneratedBy returns the element producing this one
func (e Element) GeneratedBy() Element { return (e + 4) % 5 }

// Overcomes returns the element this one controls (wood parts earth)
func (e Element) Overcomes() Element { return (e + 2) % 5 }

// OvercomeBy returns the element controlling this one
func (e Element) OvercomeBy() Element { return (e + 3) % 5 }

func (e Element) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid element %d", int(e))
	}
	return []byte(elementNames[e]), nil
}

func (e *Element) UnmarshalText(b []byte) error {
	v, err := ParseElement(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// ParseElement accepts the English name or the glyph
func ParseElement(s string) (Element, error) {
	for i := range elementNames {
		if s == elementNames[i] || s == elementGlyphs[i] {
			return Element(i), nil
		}
	}
	return 0, fmt.Errorf("unknown element %q", s)
}
