package http

import (
	"time"

	"github.com/sawpanic/bazirun/internal/persistence"
	"github.com/sawpanic/bazirun/internal/pillars"
	"github.com/sawpanic/bazirun/internal/solarterm"
)

// ChartRequest is the body of POST /v1/chart
type ChartRequest struct {
	BirthTime         string         `json:"birth_time"`                   // RFC 3339, or "2006-01-02 15:04" read in Zone
	Zone              string         `json:"zone,omitempty"`               // "+08:00", "UTC" or an IANA name
	Gender            pillars.Gender `json:"gender"`                       // male/female, m/f, 男/女
	CorrectionMinutes int            `json:"correction_minutes,omitempty"` // added before any other step
	Longitude         *float64       `json:"longitude,omitempty"`          // east positive; enables true solar time
}

// TermsResponse lists the solar-month boundaries of one Gregorian year
type TermsResponse struct {
	Year       int                  `json:"year"`
	Boundaries []solarterm.Boundary `json:"boundaries"`
	Instants   []solarterm.Instant  `json:"instants"`
}

// HealthResponse reports service health
type HealthResponse struct {
	Status      string                   `json:"status"` // healthy, degraded
	Timestamp   time.Time                `json:"timestamp"`
	Version     string                   `json:"version"`
	Fingerprint string                   `json:"fingerprint"`
	Terms       TermsHealth              `json:"terms"`
	Rules       int                      `json:"rules"`
	Cache       CircuitHealth            `json:"cache"`
	Database    *persistence.HealthCheck `json:"database,omitempty"`
}

// TermsHealth describes the loaded solar-term table
type TermsHealth struct {
	Instants int `json:"instants"`
	From     int `json:"from,omitempty"`
	To       int `json:"to,omitempty"`
}

// CircuitHealth reports the state of a circuit breaker
type CircuitHealth struct {
	Name  string `json:"name"`
	State string `json:"state"` // closed, open, half-open, disabled
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}
