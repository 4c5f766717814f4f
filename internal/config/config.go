package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/bazirun/internal/application"
	"github.com/sawpanic/bazirun/internal/dayun"
	"github.com/sawpanic/bazirun/internal/elements"
	"github.com/sawpanic/bazirun/internal/infrastructure/db"
	"github.com/sawpanic/bazirun/internal/pillars"
	"github.com/sawpanic/bazirun/internal/strength"
)

// ErrInvalid wraps every validation failure returned by Load
var ErrInvalid = errors.New("invalid configuration")

// Term table sources
const (
	TermsFile      = "file"
	TermsDatabase  = "database"
	TermsEphemeris = "ephemeris"
)

// Config is the complete bazirun configuration
type Config struct {
	Engine   Engine    `yaml:"engine"`
	Data     Data      `yaml:"data"`
	Server   Server    `yaml:"server"`
	Cache    Cache     `yaml:"cache"`
	Database db.Config `yaml:"database"`
	Log      Log       `yaml:"log"`
}

// Engine holds the chart computation tunables
type Engine struct {
	Pillars  pillars.Options `yaml:"pillars"`
	Elements elements.Config `yaml:"elements"`
	Strength strength.Config `yaml:"strength"`
	DaYun    dayun.Config    `yaml:"da_yun"`
}

// Data locates the reference tables
type Data struct {
	TermsSource   string `yaml:"terms_source" env:"BAZIRUN_TERMS_SOURCE"` // file, database or ephemeris
	TermsPath     string `yaml:"terms_path" env:"BAZIRUN_TERMS_PATH"`
	RulesPath     string `yaml:"rules_path" env:"BAZIRUN_RULES_PATH"` // empty selects the built-in rules
	EphemerisFrom int    `yaml:"ephemeris_from"`                      // Default: 1900
	EphemerisTo   int    `yaml:"ephemeris_to"`                        // Default: 2100
	Zone          string `yaml:"zone" env:"BAZIRUN_ZONE"`             // birth-time zone when input has none
}

// Server configures the HTTP API
type Server struct {
	Host           string        `yaml:"host" env:"BAZIRUN_HTTP_HOST"`
	Port           int           `yaml:"port" env:"HTTP_PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      float64       `yaml:"rate_limit" env:"BAZIRUN_RATE_LIMIT"` // requests per second per client, 0 disables
	Burst          int           `yaml:"burst"`
}

// Addr returns host:port
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Cache configures the chart result cache
type Cache struct {
	Enabled       bool          `yaml:"enabled" env:"BAZIRUN_CACHE_ENABLED"`
	Addr          string        `yaml:"addr" env:"REDIS_ADDR"`
	Password      string        `yaml:"-" env:"REDIS_PASSWORD"`
	DB            int           `yaml:"db" env:"REDIS_DB"`
	TTL           time.Duration `yaml:"ttl"`
	MemoryEntries int           `yaml:"memory_entries"` // in-process fallback size, 0 disables
	Breaker       Breaker       `yaml:"breaker"`
}

// Breaker configures the circuit breaker around Redis
type Breaker struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// Log configures the global logger
type Log struct {
	Level string `yaml:"level" env:"BAZIRUN_LOG_LEVEL"`
	JSON  bool   `yaml:"json" env:"BAZIRUN_LOG_JSON"`
}

// Default returns a configuration that works with no file and no services
func Default() *Config {
	return &Config{
		Engine: Engine{
			Elements: elements.DefaultConfig(),
			Strength: strength.DefaultConfig(),
			DaYun:    dayun.DefaultConfig(),
		},
		Data: Data{
			TermsSource:   TermsFile,
			TermsPath:     "config/solar_terms.yaml",
			EphemerisFrom: 1900,
			EphemerisTo:   2100,
			Zone:          "+08:00",
		},
		Server: Server{
			Host:           "127.0.0.1",
			Port:           8080,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			RequestTimeout: 5 * time.Second,
			RateLimit:      20,
			Burst:          40,
		},
		Cache: Cache{
			Addr:          "localhost:6379",
			TTL:           24 * time.Hour,
			MemoryEntries: 1024,
			Breaker:       Breaker{MaxFailures: 5, OpenTimeout: 30 * time.Second},
		},
		Database: db.DefaultConfig(),
		Log:      Log{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return cfg, nil
}

// Validate returns every problem found; empty means usable
func (c *Config) Validate() []string {
	var problems []string
	problems = append(problems, c.Engine.Strength.Validate()...)
	problems = append(problems, c.Engine.DaYun.Validate()...)
	problems = append(problems, validateElements(c.Engine.Elements)...)
	problems = append(problems, c.Database.Validate()...)

	switch c.Data.TermsSource {
	case TermsFile:
		if c.Data.TermsPath == "" {
			problems = append(problems, "terms_path is required for the file source")
		}
	case TermsDatabase:
		if !c.Database.Enabled {
			problems = append(problems, "the database term source needs database.enabled")
		}
	case TermsEphemeris:
		if c.Data.EphemerisFrom > c.Data.EphemerisTo {
			problems = append(problems, fmt.Sprintf("ephemeris range %d-%d is inverted", c.Data.EphemerisFrom, c.Data.EphemerisTo))
		}
		if c.Data.EphemerisFrom < application.MinYear || c.Data.EphemerisTo > application.MaxYear {
			problems = append(problems, fmt.Sprintf("ephemeris range %d-%d outside [%d, %d]",
				c.Data.EphemerisFrom, c.Data.EphemerisTo, application.MinYear, application.MaxYear))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown terms_source %q", c.Data.TermsSource))
	}
	if _, err := ParseZone(c.Data.Zone); err != nil {
		problems = append(problems, err.Error())
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server port %d out of range", c.Server.Port))
	}
	if c.Server.RequestTimeout <= 0 {
		problems = append(problems, "server request_timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		problems = append(problems, "server rate_limit cannot be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		problems = append(problems, "server burst must be at least 1 when rate limiting")
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		problems = append(problems, "cache addr is required when the cache is enabled")
	}
	if c.Cache.TTL <= 0 {
		problems = append(problems, "cache ttl must be positive")
	}
	if c.Cache.MemoryEntries < 0 {
		problems = append(problems, "cache memory_entries cannot be negative")
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log level %q: %v", c.Log.Level, err))
	}
	return problems
}

// Settings converts the engine section for the application service
func (c *Config) Settings() application.Settings {
	return application.Settings{
		Pillars:  c.Engine.Pillars,
		Elements: c.Engine.Elements,
		Strength: c.Engine.Strength,
		DaYun:    c.Engine.DaYun,
	}
}

// Location returns the configured default zone
func (c *Config) Location() *time.Location {
	loc, err := ParseZone(c.Data.Zone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseZone accepts "UTC", a "+08:00" style offset or an IANA name
func ParseZone(s string) (*time.Location, error) {
	switch {
	case s == "" || strings.EqualFold(s, "utc"):
		return time.UTC, nil
	case s[0] == '+' || s[0] == '-':
		t, err := time.Parse("-07:00", s)
		if err != nil {
			return nil, fmt.Errorf("invalid zone offset %q", s)
		}
		_, off := t.Zone()
		return time.FixedZone(s, off), nil
	default:
		loc, err := time.LoadLocation(s)
		if err != nil {
			return nil, fmt.Errorf("invalid zone %q: %w", s, err)
		}
		return loc, nil
	}
}

func validateElements(c elements.Config) []string {
	var problems []string
	for _, f := range []struct {
		name string
		v    float64
	}{{"stem_weight", c.StemWeight}, {"branch_weight", c.BranchWeight}, {"hidden_stem_scale", c.HiddenStemScale}} {
		if f.v < 0 || math.IsNaN(f.v) {
			problems = append(problems, fmt.Sprintf("elements %s cannot be negative, got %v", f.name, f.v))
		}
	}
	if c.StemWeight == 0 && c.BranchWeight == 0 {
		problems = append(problems, "elements stem_weight and branch_weight cannot both be zero")
	}
	return problems
}
