package scorecard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/de-tools/scorecard/pkg/adapters"
	"github.com/de-tools/scorecard/pkg/models/api"
	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/de-tools/scorecard/pkg/services/kpi"
	"github.com/de-tools/scorecard/pkg/services/period"
	scorecardrunner "github.com/de-tools/scorecard/pkg/services/scorecard"
	"github.com/de-tools/scorecard/pkg/services/sheet"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Service is what the API needs from the scorecard application.
type Service interface {
	Name() string
	Registry() *kpi.Registry
	Observations(ctx context.Context, scorecard string, lastSunday time.Time) ([]domain.Observation, error)
	Publish(ctx context.Context, lastSunday *time.Time) (sheet.PublishResult, error)
}

type Handler struct {
	service Service
	now     func() time.Time
}

func NewHandler(service Service, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		service: service,
		now:     now,
	}
}

func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	ref := h.now()
	if date := r.URL.Query().Get("date"); date != "" {
		d, err := time.Parse(domain.DateLayout, date)
		if err != nil {
			http.Error(w, "invalid 'date' format. Expected format: YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		ref = d
	}
	writeJSON(r.Context(), w, adapters.MapDomainPeriodToApi(period.Resolve(ref)))
}

func (h *Handler) ListKpis(w http.ResponseWriter, r *http.Request) {
	response := make([]api.Kpi, 0)
	for _, d := range h.service.Registry().Definitions() {
		response = append(response, adapters.MapDefinitionToApiKpi(d))
	}
	writeJSON(r.Context(), w, response)
}

func (h *Handler) ListObservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	name := chi.URLParam(r, "scorecard")

	lastSunday, ok := h.lastSunday(w, r)
	if !ok {
		return
	}
	if lastSunday == nil {
		current := period.Resolve(h.now()).LastSunday
		lastSunday = &current
	}

	observations, err := h.service.Observations(ctx, name, *lastSunday)
	if err != nil {
		logger.Error().Err(err).Str("scorecard", name).Msg("failed to read observations")
		http.Error(w, "failed to read observations", http.StatusInternalServerError)
		return
	}

	response := make([]api.Observation, 0, len(observations))
	for _, o := range observations {
		response = append(response, adapters.MapDomainObservationToApi(o))
	}
	writeJSON(ctx, w, response)
}

func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	name := chi.URLParam(r, "scorecard")

	if name != h.service.Name() {
		http.Error(w, "unknown scorecard", http.StatusNotFound)
		return
	}
	lastSunday, ok := h.lastSunday(w, r)
	if !ok {
		return
	}

	result, err := h.service.Publish(ctx, lastSunday)
	switch {
	case errors.Is(err, scorecardrunner.ErrNoPeriod):
		http.Error(w, "no stored period for the current week", http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrInvalidConfig), errors.Is(err, domain.ErrMissingCredentials):
		logger.Error().Err(err).Msg("publish is not configured")
		http.Error(w, "publish is not configured", http.StatusServiceUnavailable)
		return
	case err != nil:
		logger.Error().Err(err).Str("scorecard", name).Msg("publish failed")
		http.Error(w, "publish failed", http.StatusBadGateway)
		return
	}
	writeJSON(ctx, w, adapters.MapPublishResultToApi(result))
}

// lastSunday parses the optional last_sunday query parameter, answering
// 400 when it is not a Sunday.
func (h *Handler) lastSunday(w http.ResponseWriter, r *http.Request) (*time.Time, bool) {
	value := r.URL.Query().Get("last_sunday")
	if value == "" {
		return nil, true
	}
	d, err := time.Parse(domain.DateLayout, value)
	if err != nil || d.Weekday() != time.Sunday {
		http.Error(w, "invalid 'last_sunday'. Expected a Sunday as YYYY-MM-DD", http.StatusBadRequest)
		return nil, false
	}
	return &d, true
}

func writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to encode response")
	}
}
