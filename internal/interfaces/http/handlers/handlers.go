package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/bazirun/internal/application"
	"github.com/sawpanic/bazirun/internal/cache"
	httpContracts "github.com/sawpanic/bazirun/internal/http"
	"github.com/sawpanic/bazirun/internal/persistence"
	"github.com/sawpanic/bazirun/internal/shensha"
	"github.com/sawpanic/bazirun/internal/solarterm"
)

// ChartService computes charts
type ChartService interface {
	Compute(in application.Input) (*application.Result, error)
	Resolver() *solarterm.Resolver
	Rules() *shensha.RuleSet
	Fingerprint() string
}

// ChartCache stores serialized results
type ChartCache interface {
	Key(in application.Input) string
	Get(ctx context.Context, key string) ([]byte, cache.Layer)
	Set(ctx context.Context, key string, value []byte) error
	BreakerState() string
}

// Recorder receives request-level measurements
type Recorder interface {
	ObserveChart(outcome string, d time.Duration)
	ObserveCache(layer cache.Layer)
	ObserveWarnings(ws []application.Warning)
}

// Options carries the optional dependencies
type Options struct {
	Cache    ChartCache                   // nil disables result caching
	Recorder Recorder                     // nil discards measurements
	Database persistence.RepositoryHealth // nil omits database health
	Zone     *time.Location               // zone of birth times given without one; Default: UTC
	Version  string
}

// Handlers manages all HTTP endpoint handlers
type Handlers struct {
	svc  ChartService
	opts Options
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc ChartService, opts Options) *Handlers {
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Zone == nil {
		opts.Zone = time.UTC
	}
	return &Handlers{svc: svc, opts: opts}
}

type requestIDKey struct{}

// WithRequestID stores the request ID in ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored in ctx, or "unknown"
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return "unknown"
}

// writeJSON writes JSON response with proper error handling
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, httpContracts.ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: RequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

// MethodNotAllowed handles 405 responses
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed",
		r.Method+" is not supported on "+r.URL.Path)
}

type nopRecorder struct{}

func (nopRecorder) ObserveChart(string, time.Duration)     {}
func (nopRecorder) ObserveCache(cache.Layer)               {}
func (nopRecorder) ObserveWarnings([]application.Warning) {}
