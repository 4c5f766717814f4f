package strength

import "github.com/sawpanic/bazirun/internal/domain/ganzhi"

// Favorable returns the elements that bring the day master toward balance.
// A strong day master is drained by output, wealth and officer; a weak one is
// fed by resource and peers; a balanced one keeps its own element.
func Favorable(dm ganzhi.Stem, l Label) []ganzhi.Element {
	el := dm.Element()
	switch {
	case l.IsStrong():
		return []ganzhi.Element{el.Generates(), el.Overcomes(), el.OvercomeBy()}
	case l.IsWeak():
		return []ganzhi.Element{el.GeneratedBy(), el}
	case l == Balanced:
		return []ganzhi.Element{el}
	default:
		return nil
	}
}

// Unfavorable returns the elements not listed as favorable
func Unfavorable(dm ganzhi.Stem, l Label) []ganzhi.Element {
	fav := Favorable(dm, l)
	if fav == nil {
		return nil
	}
	var out []ganzhi.Element
	for _, e := range ganzhi.Elements {
		if !contains(fav, e) {
			out = append(out, e)
		}
	}
	return out
}

func contains(list []ganzhi.Element, e ganzhi.Element) bool {
	for _, x := range list {
		if x == e {
			return true
		}
	}
	return false
}
