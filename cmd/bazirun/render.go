package main

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"

	"github.com/sawpanic/bazirun/internal/application"
	"github.com/sawpanic/bazirun/internal/dayun"
	"github.com/sawpanic/bazirun/internal/domain/ganzhi"
)

// displayWidth counts wide and fullwidth runes as two terminal columns
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func pad(s string, w int) string {
	if d := w - displayWidth(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}

// table renders aligned columns; the first row is the header
type table struct {
	rows [][]string
}

func (t *table) add(cells ...string) { t.rows = append(t.rows, cells) }

func (t *table) write(w io.Writer) {
	var widths []int
	for _, row := range t.rows {
		for i, c := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if n := displayWidth(c); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for r, row := range t.rows {
		cells := make([]string, len(row))
		for i, c := range row {
			if i == len(row)-1 {
				cells[i] = c
				continue
			}
			cells[i] = pad(c, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
		if r == 0 {
			total := 0
			for _, n := range widths {
				total += n + 2
			}
			fmt.Fprintln(w, strings.Repeat("-", total-2))
		}
	}
}

func renderChart(w io.Writer, res *application.Result, annual int) {
	c := res.Chart
	fmt.Fprintf(w, "%s  %s  (%s, solar month %d of %d, terms: %s)\n",
		c.String(), c.Birth.Format("2006-01-02 15:04 -07:00"), c.Gender, c.SolarMonth, c.SolarYear, c.TermSource)
	if res.SolarTime != nil {
		fmt.Fprintf(w, "true solar time: %+v at longitude %.2f\n", res.SolarTime.Total, res.SolarTime.Longitude)
	}
	fmt.Fprintln(w)

	pt := &table{}
	pt.add("pillar", "干支", "十神", "纳音", "长生", "空亡", "藏干")
	for _, d := range res.Details {
		god := "日主"
		if d.StemTenGod != nil {
			god = d.StemTenGod.Glyph()
		}
		var hidden []string
		for _, h := range d.Hidden {
			hidden = append(hidden, h.Stem.String()+h.TenGod.Glyph())
		}
		pt.add(d.Position.String(), d.Pillar.String(), god, d.NaYin, d.Growth.String(),
			d.Void[0].String()+d.Void[1].String(), strings.Join(hidden, " "))
	}
	pt.write(w)
	fmt.Fprintln(w)

	var parts []string
	for _, e := range ganzhi.Elements {
		parts = append(parts, fmt.Sprintf("%s %.2f", e.Glyph(), res.Elements.Of(e)))
	}
	fmt.Fprintf(w, "elements: %s\n", strings.Join(parts, "  "))
	fmt.Fprintf(w, "day master %s: %s (%.2f, %s)\n",
		res.Strength.DayMaster, res.Strength.Label.Glyph(), res.Strength.Score, res.Strength.Season)
	fmt.Fprintf(w, "favorable: %s  unfavorable: %s\n", glyphs(res.Favorable), glyphs(res.Unfavorable))
	fmt.Fprintln(w)

	mt := &table{}
	mt.add("神煞", "key", "strength", "positions")
	for _, m := range res.Markers {
		if !m.Active {
			continue
		}
		var pos []string
		for _, p := range m.Positions {
			pos = append(pos, p.String())
		}
		mt.add(m.Name, m.Key, fmt.Sprintf("%.2f", m.Strength), strings.Join(pos, ","))
	}
	if len(mt.rows) > 1 {
		mt.write(w)
		fmt.Fprintln(w)
	}

	renderDaYun(w, res, annual)

	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func renderDaYun(w io.Writer, res *application.Result, annual int) {
	plan := res.DaYun
	start := plan.Start
	note := ""
	if start.Estimated {
		note = " (estimated)"
	}
	fmt.Fprintf(w, "大运 %s, starts at age %d (%dy %dm %dd)%s\n",
		plan.Direction, start.Age, start.Years, start.Months, start.Days, note)

	dt := &table{}
	dt.add("#", "ages", "from", "干支", "十神", "纳音", "score")
	for _, cy := range plan.Cycles {
		dt.add(fmt.Sprint(cy.Index), fmt.Sprintf("%d-%d", cy.StartAge, cy.EndAge), fmt.Sprint(cy.StartYear),
			cy.Pillar.String(), cy.TenGod.Glyph(), cy.NaYin, fmt.Sprintf("%.1f", cy.Score))
	}
	dt.write(w)

	tr := plan.Trend
	fmt.Fprintf(w, "trend %s, mean %.1f, peaks %d, challenging %d\n", tr.Overall, tr.Mean, len(tr.Peaks), len(tr.Challenges))
	for _, tp := range tr.TurningPoints {
		fmt.Fprintf(w, "  turning point at age %d (%+.1f)\n", tp.Age, tp.Delta)
	}

	if annual < 1 || annual > len(plan.Cycles) {
		return
	}
	fmt.Fprintln(w)
	at := &table{}
	at.add("year", "age", "流年", "十神")
	for _, a := range dayun.Annual(res.Chart, plan.Cycles[annual-1]) {
		at.add(fmt.Sprint(a.Year), fmt.Sprint(a.Age), a.Pillar.String(), a.TenGod.Glyph())
	}
	at.write(w)
}

func glyphs(es []ganzhi.Element) string {
	if len(es) == 0 {
		return "-"
	}
	var b strings.Builder
	for _, e := range es {
		b.WriteString(e.Glyph())
	}
	return b.String()
}
