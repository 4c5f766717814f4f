package pillars

import "github.com/sawpanic/bazirun/internal/domain/ganzhi"

// HiddenDetail is a hidden stem with its relation to the day master
type HiddenDetail struct {
	Stem   ganzhi.Stem   `json:"stem"`
	Weight float64       `json:"weight"`
	TenGod ganzhi.TenGod `json:"ten_god"`
}

// PillarDetail carries the derived attributes of one pillar
type PillarDetail struct {
	Position   Position           `json:"position"`
	Pillar     ganzhi.StemBranch  `json:"pillar"`
	StemTenGod *ganzhi.TenGod     `json:"stem_ten_god,omitempty"` // absent for the day master itself
	Hidden     []HiddenDetail     `json:"hidden"`
	NaYin      string             `json:"nayin"`
	NaYinEl    ganzhi.Element     `json:"nayin_element"`
	Void       [2]ganzhi.Branch   `json:"void"`
	Growth     ganzhi.GrowthStage `json:"growth"` // stage of the day master in this branch
	Zodiac     string             `json:"zodiac"`
}

// Details derives ten gods, na-yin, void branches and growth stages for each pillar
func Details(c Chart, hidden *ganzhi.HiddenTable) []PillarDetail {
	if hidden == nil {
		hidden = &ganzhi.DefaultHiddenStems
	}
	dm := c.DayMaster()
	out := make([]PillarDetail, 0, 4)
	for _, pos := range Positions {
		p := c.Pillar(pos)
		d := PillarDetail{
			Position: pos,
			Pillar:   p,
			Void:     p.Void(),
			Growth:   ganzhi.GrowthOf(dm, p.Branch),
			Zodiac:   p.Branch.Zodiac(),
		}
		d.NaYin, d.NaYinEl = p.NaYin()
		if pos != DayPos {
			g := ganzhi.TenGodOf(dm, p.Stem)
			d.StemTenGod = &g
		}
		for _, h := range hidden.Of(p.Branch) {
			d.Hidden = append(d.Hidden, HiddenDetail{Stem: h.Stem, Weight: h.Weight, TenGod: ganzhi.TenGodOf(dm, h.Stem)})
		}
		out = append(out, d)
	}
	return out
}
