package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/bazirun/internal/application"
	"github.com/sawpanic/bazirun/internal/cache"
	"github.com/sawpanic/bazirun/internal/config"
	httpContracts "github.com/sawpanic/bazirun/internal/http"
)

const maxBodyBytes = 1 << 16

var localLayouts = []string{"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02T15:04:05"}

// Chart handles POST /v1/chart
func (h *Handlers) Chart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req httpContracts.ChartRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.opts.Recorder.ObserveChart("input", time.Since(start))
		h.writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	in, err := h.input(req)
	if err != nil {
		h.opts.Recorder.ObserveChart("input", time.Since(start))
		h.writeError(w, r, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		h.opts.Recorder.ObserveChart(string(application.KindInput), time.Since(start))
		h.writeError(w, r, http.StatusBadRequest, string(application.KindInput), err.Error())
		return
	}

	var key string
	if h.opts.Cache != nil {
		key = h.opts.Cache.Key(in)
		if body, layer := h.opts.Cache.Get(r.Context(), key); layer != cache.LayerNone {
			h.opts.Recorder.ObserveCache(layer)
			h.opts.Recorder.ObserveChart("cached", time.Since(start))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", string(layer))
			w.WriteHeader(http.StatusOK)
			w.Write(body)
			return
		}
		h.opts.Recorder.ObserveCache(cache.LayerNone)
	}

	res, err := h.svc.Compute(in)
	if err != nil {
		kind := application.KindOf(err)
		h.opts.Recorder.ObserveChart(string(kind), time.Since(start))
		if kind == application.KindInput {
			h.writeError(w, r, http.StatusBadRequest, string(kind), err.Error())
			return
		}
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("chart computation failed")
		h.writeError(w, r, http.StatusInternalServerError, string(kind), "chart computation failed")
		return
	}
	h.opts.Recorder.ObserveWarnings(res.Warnings)

	body, err := json.Marshal(res)
	if err != nil {
		h.opts.Recorder.ObserveChart(string(application.KindUnknown), time.Since(start))
		h.writeError(w, r, http.StatusInternalServerError, "encoding_failed", err.Error())
		return
	}
	body = append(body, '\n')
	if h.opts.Cache != nil {
		if err := h.opts.Cache.Set(r.Context(), key, body); err != nil {
			log.Debug().Err(err).Msg("chart cache write failed")
		}
		w.Header().Set("X-Cache", "miss")
	}
	h.opts.Recorder.ObserveChart("ok", time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handlers) input(req httpContracts.ChartRequest) (application.Input, error) {
	if req.BirthTime == "" {
		return application.Input{}, errors.New("birth_time is required")
	}
	at, err := h.parseBirthTime(req.BirthTime, req.Zone)
	if err != nil {
		return application.Input{}, err
	}
	return application.Input{
		BirthTime:  at,
		Gender:     req.Gender,
		Correction: time.Duration(req.CorrectionMinutes) * time.Minute,
		Longitude:  req.Longitude,
	}, nil
}

// parseBirthTime keeps an explicit offset; local layouts are read in zone
// or the server default
func (h *Handlers) parseBirthTime(s, zone string) (time.Time, error) {
	loc := h.opts.Zone
	if zone != "" {
		z, err := config.ParseZone(zone)
		if err != nil {
			return time.Time{}, err
		}
		loc = z
	}
	if at, err := time.Parse(time.RFC3339, s); err == nil {
		if zone != "" {
			return at.In(loc), nil
		}
		return at, nil
	}
	for _, layout := range localLayouts {
		if at, err := time.ParseInLocation(layout, s, loc); err == nil {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized birth_time %q", s)
}
