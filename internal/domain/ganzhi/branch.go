package ganzhi

import "fmt"

// Branch is an earthly branch, 0 (zi, rat) through 11 (hai, pig).
// Constants carry the zodiac names since stem and branch romanizations collide.
type Branch int

const (
	Rat Branch = iota // zi
	Ox                // chou
	Tiger             // yin
	Rabbit            // mao
	Dragon            // chen
	Snake             // si
	Horse             // wu
	Goat              // wei
	Monkey            // shen
	Rooster           // you
	Dog               // xu
	Pig               // hai
)

var branchGlyphs = [12]string{"子", "丑", "寅", "卯", "辰", "巳", "午", "未", "申", "酉", "戌", "亥"}
var branchNames = [12]string{"zi", "chou", "yin", "mao", "chen", "si", "wu", "wei", "shen", "you", "xu", "hai"}
var zodiacNames = [12]string{"rat", "ox", "tiger", "rabbit", "dragon", "snake", "horse", "goat", "monkey", "rooster", "dog", "pig"}
var branchElements = [12]Element{Water, Earth, Wood, Wood, Earth, Fire, Fire, Earth, Metal, Metal, Earth, Water}

func (b Branch) Valid() bool { return b >= Rat && b <= Pig }

func (b Branch) String() string {
	if !b.Valid() {
		return "?"
	}
	return branchGlyphs[b]
}

// Pinyin returns the romanized name
func (b Branch) Pinyin() string {
	if !b.Valid() {
		return "unknown"
	}
	return branchNames[b]
}

// Zodiac returns the animal of the branch
func (b Branch) Zodiac() string {
	if !b.Valid() {
		return "unknown"
	}
	return zodiacNames[b]
}

func (b Branch) Element() Element {
	if !b.Valid() {
		return Element(-1)
	}
	return branchElements[b]
}

func (b Branch) Yang() bool { return b%2 == 0 }

// Clash returns the opposing branch (six clashes)
func (b Branch) Clash() Branch { return (b + 6) % 12 }

// Harmony returns the six-combination partner (Zi-Chou, Yin-Hai, Mao-Xu, ...)
func (b Branch) Harmony() Branch { return (13 - b) % 12 }

func (b Branch) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("invalid branch %d", int(b))
	}
	return []byte(branchGlyphs[b]), nil
}

func (b *Branch) UnmarshalText(data []byte) error {
	v, err := ParseBranch(string(data))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseBranch accepts a glyph or a lower-case pinyin name
func ParseBranch(v string) (Branch, error) {
	for i := range branchGlyphs {
		if v == branchGlyphs[i] || v == branchNames[i] {
			return Branch(i), nil
		}
	}
	return 0, fmt.Errorf("unknown branch %q", v)
}
