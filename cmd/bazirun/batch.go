package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/bazirun/internal/application"
	"github.com/sawpanic/bazirun/internal/config"
	httpContracts "github.com/sawpanic/bazirun/internal/http"
)

// batchLine is one output record; exactly one of Result and Error is set
type batchLine struct {
	Line   int                 `json:"line"`
	Result *application.Result `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
	Kind   application.Kind    `json:"kind,omitempty"`
}

func newBatchCmd() *cobra.Command {
	var (
		workers  int
		failFast bool
	)
	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Compute charts for JSON lines read from a file or stdin",
		Long: `Each input line is a chart request as accepted by POST /v1/chart:

  {"birth_time":"1984-02-15 14:30","zone":"+08:00","gender":"male","longitude":116.4}

Results are written as JSON lines in input order. Blank lines and lines
starting with # are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			reqs, err := readRequests(in)
			if err != nil {
				return err
			}

			e, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			start := time.Now()
			out, err := runBatch(cmd, e.svc, cfg, reqs, workers, failFast)
			if err != nil {
				return err
			}
			failed := 0
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			for _, line := range out {
				if line.Error != "" {
					failed++
				}
				if err := enc.Encode(line); err != nil {
					return err
				}
			}
			log.Info().Int("charts", len(out)).Int("failed", failed).Dur("elapsed", time.Since(start)).Msg("batch complete")
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "Concurrent computations")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first failed chart")
	return cmd
}

type numberedRequest struct {
	line int
	req  httpContracts.ChartRequest
	err  error
}

func readRequests(r io.Reader) ([]numberedRequest, error) {
	var out []numberedRequest
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		nr := numberedRequest{line: n}
		dec := json.NewDecoder(strings.NewReader(text))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&nr.req); err != nil {
			nr.err = fmt.Errorf("invalid request: %w", err)
		}
		out = append(out, nr)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch input: %w", err)
	}
	return out, nil
}

// runBatch computes every request on a bounded pool; the service is shared
func runBatch(cmd *cobra.Command, svc *application.Service, cfg *config.Config, reqs []numberedRequest, workers int, failFast bool) ([]batchLine, error) {
	if workers < 1 {
		workers = 1
	}
	out := make([]batchLine, len(reqs))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(workers)
	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			line := batchLine{Line: reqs[i].line}
			res, err := computeRequest(svc, cfg, reqs[i])
			if err != nil {
				line.Error = err.Error()
				line.Kind = application.KindOf(err)
				if failFast {
					return fmt.Errorf("line %d: %w", reqs[i].line, err)
				}
			} else {
				line.Result = res
			}
			out[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func computeRequest(svc *application.Service, cfg *config.Config, nr numberedRequest) (*application.Result, error) {
	const op = "batch request"
	if nr.err != nil {
		return nil, &application.Error{Op: op, Kind: application.KindInput, Err: nr.err}
	}
	loc := cfg.Location()
	if nr.req.Zone != "" {
		z, err := config.ParseZone(nr.req.Zone)
		if err != nil {
			return nil, &application.Error{Op: op, Kind: application.KindInput, Err: err}
		}
		loc = z
	}
	birth, err := parseBirth(nr.req.BirthTime, loc)
	if err != nil {
		return nil, &application.Error{Op: op, Kind: application.KindInput, Err: err}
	}
	return svc.Compute(application.Input{
		BirthTime:  birth,
		Gender:     nr.req.Gender,
		Correction: time.Duration(nr.req.CorrectionMinutes) * time.Minute,
		Longitude:  nr.req.Longitude,
	})
}
