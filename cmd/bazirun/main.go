package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/bazirun/internal/application"
	"github.com/sawpanic/bazirun/internal/config"
	"github.com/sawpanic/bazirun/internal/infrastructure/db"
)

const (
	appName = "BaziRun"
	version = "v0.4.0"
)

var (
	configPath string
	logLevel   string
	logJSON    bool
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "bazirun",
		Short:   "Four-pillar chart engine",
		Version: version,
		Long: `BaziRun computes four-pillar (BaZi) charts from a birth time: pillars,
element balance, day-master strength, ShenSha markers and the major luck cycles.

Reference data (solar-term table, marker rules) is loaded once from the
configured sources. Commands print JSON when stdout is not a terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (YAML); defaults apply when empty")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug|info|warn|error)")
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs instead of console output")

	root.AddCommand(newChartCmd(), newBatchCmd(), newTermsCmd(), newRulesCmd(), newServeCmd())
	return root
}

// setupLogging applies the config file level unless a flag overrides it
func setupLogging(cmd *cobra.Command) error {
	level := logLevel
	asJSON := logJSON
	if cfg, err := loadConfig(); err == nil {
		if !cmd.Flags().Changed("log-level") {
			level = cfg.Log.Level
		}
		if !cmd.Flags().Changed("log-json") {
			asJSON = cfg.Log.JSON
		}
	}
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	if asJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// engine bundles the service with the resources it was built from
type engine struct {
	svc     *application.Service
	manager *db.Manager
}

func (e *engine) Close() error {
	if e.manager != nil {
		return e.manager.Close()
	}
	return nil
}

// buildEngine loads reference data from the configured sources and wires
// the chart service
func buildEngine(ctx context.Context, cfg *config.Config, opts ...application.Option) (*engine, error) {
	e := &engine{}

	var src application.TermSource
	switch cfg.Data.TermsSource {
	case config.TermsDatabase:
		manager, err := db.NewManager(cfg.Database)
		if err != nil {
			return nil, err
		}
		e.manager = manager
		// the whole stored table; the resolver needs neighbouring years
		src = application.StoredTerms{Repo: manager.Repository().SolarTerms}
	case config.TermsEphemeris:
		src = application.EphemerisTerms{From: cfg.Data.EphemerisFrom, To: cfg.Data.EphemerisTo, Zone: cfg.Location()}
	default:
		src = application.TermFile(cfg.Data.TermsPath)
	}
	if e.manager == nil && cfg.Database.Enabled {
		manager, err := db.NewManager(cfg.Database)
		if err != nil {
			return nil, err
		}
		e.manager = manager
	}

	terms, termWarnings, err := application.LoadTerms(ctx, src)
	if err != nil {
		e.Close()
		return nil, err
	}
	rules, ruleWarnings, err := application.LoadRules(cfg.Data.RulesPath)
	if err != nil {
		e.Close()
		return nil, err
	}
	opts = append(opts, application.WithLoadWarnings(append(termWarnings, ruleWarnings...)))
	svc, err := application.NewService(terms, rules, cfg.Settings(), opts...)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.svc = svc
	log.Debug().Str("fingerprint", svc.Fingerprint()).Msg("chart engine ready")
	return e, nil
}

// exitError marks a failure already reported to the user
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
