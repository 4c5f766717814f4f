package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sawpanic/bazirun/internal/shensha"
)

// rulesReport is the JSON form of rules check
type rulesReport struct {
	Source       string                `json:"source"`
	Rules        int                   `json:"rules"`
	Interactions int                   `json:"interactions"`
	Methods      []shensha.MethodCount `json:"methods"`
	Problems     []string              `json:"problems"`
}

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect ShenSha rule sets",
	}
	cmd.AddCommand(newRulesCheckCmd())
	return cmd
}

func newRulesCheckCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Parse a rule file and report unknown methods and dangling references",
		Long: `Parse a rule file (the configured one, or the built-in set when neither is
given) and list what the engine would skip or never match. Exits with
status 2 when problems are found.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else if cfg, err := loadConfig(); err == nil {
				path = cfg.Data.RulesPath
			}

			var (
				rs  *shensha.RuleSet
				err error
			)
			source := path
			if path == "" {
				source = "built-in"
				rs, err = shensha.Default()
			} else {
				rs, err = shensha.LoadFile(path)
			}
			if err != nil {
				return err
			}

			report := rulesReport{
				Source:       source,
				Rules:        len(rs.Rules()),
				Interactions: len(rs.Interactions()),
				Methods:      rs.Methods(),
				Problems:     rs.Problems(),
			}
			if report.Problems == nil {
				report.Problems = []string{}
			}
			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(out) {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "%s: %d rules, %d interactions\n\n", report.Source, report.Rules, report.Interactions)
				t := &table{}
				t.add("calc_method", "rules")
				for _, m := range report.Methods {
					t.add(m.Method, strconv.Itoa(m.Rules))
				}
				t.write(out)
				for _, p := range report.Problems {
					fmt.Fprintf(out, "problem: %s\n", p)
				}
			}
			if len(report.Problems) > 0 {
				return exitError{code: 2}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	return cmd
}
