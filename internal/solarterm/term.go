package solarterm

import "fmt"

// Term is one of the 24 solar terms, numbered from Lichun (solar longitude 315°)
type Term int

const (
	Lichun Term = iota
	Yushui
	Jingzhe
	Chunfen
	Qingming
	Guyu
	Lixia
	Xiaoman
	Mangzhong
	Xiazhi
	Xiaoshu
	Dashu
	Liqiu
	Chushu
	Bailu
	Qiufen
	Hanlu
	Shuangjiang
	Lidong
	Xiaoxue
	Daxue
	Dongzhi
	Xiaohan
	Dahan
)

// NumTerms is the number of solar terms in a year
const NumTerms = 24

var termGlyphs = [NumTerms]string{
	"立春", "雨水", "惊蛰", "春分", "清明", "谷雨", "立夏", "小满", "芒种", "夏至", "小暑", "大暑",
	"立秋", "处暑", "白露", "秋分", "寒露", "霜降", "立冬", "小雪", "大雪", "冬至", "小寒", "大寒",
}

var termNames = [NumTerms]string{
	"lichun", "yushui", "jingzhe", "chunfen", "qingming", "guyu", "lixia", "xiaoman", "mangzhong", "xiazhi", "xiaoshu", "dashu",
	"liqiu", "chushu", "bailu", "qiufen", "hanlu", "shuangjiang", "lidong", "xiaoxue", "daxue", "dongzhi", "xiaohan", "dahan",
}

// CalendarOrder lists the terms as they fall in a Gregorian year
var CalendarOrder = func() [NumTerms]Term {
	var out [NumTerms]Term
	for i := range out {
		out[i] = Term((i + int(Xiaohan)) % NumTerms)
	}
	return out
}()

func (t Term) Valid() bool { return t >= Lichun && t <= Dahan }

func (t Term) String() string {
	if !t.Valid() {
		return "unknown"
	}
	return termGlyphs[t]
}

// Pinyin returns the romanized name
func (t Term) Pinyin() string {
	if !t.Valid() {
		return "unknown"
	}
	return termNames[t]
}

// Longitude is the apparent solar longitude in degrees at which the term begins
func (t Term) Longitude() float64 {
	return float64((315 + 15*int(t)) % 360)
}

// Entering reports whether the term opens a solar month (jie)
func (t Term) Entering() bool { return t%2 == 0 }

// Month is the solar month (1 = Yin month) opened by an entering term, 0 otherwise
func (t Term) Month() int {
	if !t.Valid() || !t.Entering() {
		return 0
	}
	return int(t)/2 + 1
}

// EnteringTerm returns the term that opens solar month m (1..12)
func EnteringTerm(m int) Term { return Term((m - 1) * 2) }

func (t Term) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Term) UnmarshalText(b []byte) error {
	v, err := ParseTerm(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseTerm accepts a glyph name or a lower-case pinyin name
func ParseTerm(s string) (Term, error) {
	for i := range termGlyphs {
		if s == termGlyphs[i] || s == termNames[i] {
			return Term(i), nil
		}
	}
	return 0, fmt.Errorf("unknown solar term %q", s)
}
