package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/bazirun/internal/application"
	"github.com/sawpanic/bazirun/internal/config"
	"github.com/sawpanic/bazirun/internal/pillars"
)

var birthLayouts = []string{"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02T15:04:05"}

// genderValue lets cobra parse --gender straight into a pillars.Gender
type genderValue struct {
	gender *pillars.Gender
}

func newGenderValue(g *pillars.Gender) *genderValue {
	return &genderValue{gender: g}
}

func (v *genderValue) String() string {
	if v.gender == nil || *v.gender == pillars.UnsetGender {
		return ""
	}
	return v.gender.String()
}

func (v *genderValue) Set(s string) error {
	g, err := pillars.ParseGender(s)
	if err != nil {
		return err
	}
	*v.gender = g
	return nil
}

func (v *genderValue) Type() string { return "gender" }

// chartFlags are shared by chart and batch
type chartFlags struct {
	zone       string
	gender     pillars.Gender
	correction time.Duration
	longitude  float64
	json       bool
	annual     int
}

func newChartCmd() *cobra.Command {
	var f chartFlags
	cmd := &cobra.Command{
		Use:   "chart <birth time>",
		Short: "Compute one chart",
		Long: `Compute the four pillars and their analysis for one birth time.

The birth time is "YYYY-MM-DD HH:MM[:SS]" read in --zone, or RFC3339 with an
explicit offset.

Examples:
  bazirun chart "1984-02-15 14:30" --gender male
  bazirun chart 1990-07-01T08:00:00+08:00 --gender f --longitude 116.4
  bazirun chart "2000-01-01 00:30" --gender female --annual 3 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			in, err := f.input(cmd, cfg, args[0])
			if err != nil {
				return err
			}
			e, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.svc.Compute(in)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.json || !isTerminal(out) {
				return writeJSON(out, res)
			}
			renderChart(out, res, f.annual)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&f.annual, "annual", 0, "Also list the annual pillars of this luck cycle (1-based)")
	cmd.MarkFlagRequired("gender")
	return cmd
}

func (f *chartFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.zone, "zone", "", "Zone for local birth times (UTC, +08:00 or IANA); config default when empty")
	cmd.Flags().Var(newGenderValue(&f.gender), "gender", "male|female (m/f, 男/女)")
	cmd.Flags().DurationVar(&f.correction, "correction", 0, "Clock correction added to the birth time, e.g. -30m")
	cmd.Flags().Float64Var(&f.longitude, "longitude", 0, "Birth longitude (east positive); enables true solar time")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print JSON even on a terminal")
}

func (f *chartFlags) input(cmd *cobra.Command, cfg *config.Config, at string) (application.Input, error) {
	loc := cfg.Location()
	if f.zone != "" {
		z, err := config.ParseZone(f.zone)
		if err != nil {
			return application.Input{}, err
		}
		loc = z
	}
	birth, err := parseBirth(at, loc)
	if err != nil {
		return application.Input{}, err
	}
	in := application.Input{BirthTime: birth, Gender: f.gender, Correction: f.correction}
	if cmd.Flags().Changed("longitude") {
		lon := f.longitude
		in.Longitude = &lon
	}
	return in, nil
}

func parseBirth(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range birthLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized birth time %q", s)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
