package ganzhi

// TenGod is the relation of a stem to the day master
type TenGod int

const (
	Companion      TenGod = iota // 比肩 same element, same polarity
	RobWealth                    // 劫财 same element, opposite polarity
	EatingGod                    // 食神 output, same polarity
	HurtingOfficer               // 伤官 output, opposite polarity
	IndirectWealth               // 偏财
	DirectWealth                 // 正财
	SevenKillings                // 七杀
	DirectOfficer                // 正官
	IndirectSeal                 // 偏印
	DirectSeal                   // 正印
)

var tenGodNames = [10]string{
	"companion", "rob_wealth", "eating_god", "hurting_officer", "indirect_wealth",
	"direct_wealth", "seven_killings", "direct_officer", "indirect_seal", "direct_seal",
}
var tenGodGlyphs = [10]string{"比肩", "劫财", "食神", "伤官", "偏财", "正财", "七杀", "正官", "偏印", "正印"}

func (g TenGod) String() string {
	if g < Companion || g > DirectSeal {
		return "unknown"
	}
	return tenGodNames[g]
}

func (g TenGod) Glyph() string {
	if g < Companion || g > DirectSeal {
		return "?"
	}
	return tenGodGlyphs[g]
}

func (g TenGod) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

// IsOfficial covers officer and seven killings
func (g TenGod) IsOfficial() bool { return g == DirectOfficer || g == SevenKillings }

// IsSeal covers both seals
func (g TenGod) IsSeal() bool { return g == DirectSeal || g == IndirectSeal }

// TenGodOf classifies other against the day master dm
func TenGodOf(dm, other Stem) TenGod {
	// step around the generating cycle: 0 peer, 1 output, 2 wealth, 3 officer, 4 resource
	step := mod(int(other.Element())-int(dm.Element()), 5)
	base := TenGod(step * 2)
	if dm.Yang() != other.Yang() {
		base++
	}
	return base
}

// GrowthStage is one of the twelve life stages (chang sheng) of a stem in a branch
type GrowthStage int

var growthNames = [12]string{
	"birth", "bath", "crown", "official", "prosperity", "decline",
	"sickness", "death", "tomb", "extinction", "conception", "nurture",
}

func (g GrowthStage) String() string {
	if g < 0 || g > 11 {
		return "unknown"
	}
	return growthNames[g]
}

func (g GrowthStage) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

// birth branch of each stem; yang stems walk forward, yin stems backward
var growthStart = [10]Branch{Pig, Horse, Tiger, Rooster, Tiger, Rooster, Snake, Rat, Monkey, Rabbit}

// GrowthOf returns the stage of stem s in branch b
func GrowthOf(s Stem, b Branch) GrowthStage {
	start := int(growthStart[s])
	if s.Yang() {
		return GrowthStage(mod(int(b)-start, 12))
	}
	return GrowthStage(mod(start-int(b), 12))
}

type nayin struct {
	name    string
	element Element
}

// one entry per consecutive pair of the cycle
var nayinTable = [30]nayin{
	{"海中金", Metal}, {"炉中火", Fire}, {"大林木", Wood}, {"路旁土", Earth}, {"剑锋金", Metal},
	{"山头火", Fire}, {"涧下水", Water}, {"城头土", Earth}, {"白蜡金", Metal}, {"杨柳木", Wood},
	{"泉中水", Water}, {"屋上土", Earth}, {"霹雳火", Fire}, {"松柏木", Wood}, {"长流水", Water},
	{"沙中金", Metal}, {"山下火", Fire}, {"平地木", Wood}, {"壁上土", Earth}, {"金箔金", Metal},
	{"覆灯火", Fire}, {"天河水", Water}, {"大驿土", Earth}, {"钗钏金", Metal}, {"桑柘木", Wood},
	{"大溪水", Water}, {"沙中土", Earth}, {"天上火", Fire}, {"石榴木", Wood}, {"大海水", Water},
}

// NaYin returns the sound-element name and its element for a pillar
func (sb StemBranch) NaYin() (string, Element) {
	off := sb.Offset()
	if off < 0 {
		return "", Element(-1)
	}
	n := nayinTable[off/2]
	return n.name, n.element
}
