package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/sawpanic/bazirun/internal/application"
	httpContracts "github.com/sawpanic/bazirun/internal/http"
	"github.com/sawpanic/bazirun/internal/solarterm"
)

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	table := h.svc.Resolver().Table()
	resp := httpContracts.HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Version:     h.opts.Version,
		Fingerprint: h.svc.Fingerprint(),
		Terms:       httpContracts.TermsHealth{Instants: table.Len()},
		Rules:       len(h.svc.Rules().Rules()),
		Cache:       httpContracts.CircuitHealth{Name: "redis", State: "disabled"},
	}
	if first, last, ok := table.Span(); ok {
		resp.Terms.From, resp.Terms.To = first, last
	} else {
		resp.Status = "degraded"
	}
	if h.opts.Cache != nil {
		resp.Cache.State = h.opts.Cache.BreakerState()
		if resp.Cache.State == "open" {
			resp.Status = "degraded"
		}
	}
	if h.opts.Database != nil {
		check := h.opts.Database.Health(r.Context())
		resp.Database = &check
		if !check.Healthy {
			resp.Status = "degraded"
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Terms handles GET /v1/terms/{year}
func (h *Handlers) Terms(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil || year < application.MinYear || year > application.MaxYear {
		h.writeError(w, r, http.StatusBadRequest, "invalid_year",
			"year must be an integer within ["+strconv.Itoa(application.MinYear)+", "+strconv.Itoa(application.MaxYear)+"]")
		return
	}
	resolver := h.svc.Resolver()
	resp := httpContracts.TermsResponse{
		Year:       year,
		Boundaries: resolver.Boundaries(year),
		Instants:   resolver.Table().Year(year),
	}
	if resp.Instants == nil {
		resp.Instants = []solarterm.Instant{}
	}
	h.writeJSON(w, http.StatusOK, resp)
}
