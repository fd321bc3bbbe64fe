package barqueue

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/config"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/decision"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/events"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/metrics"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
	"github.com/go-chi/chi/v5"
)

const (
	MaxBodyBytes = 1 << 20
	MaxBatchSize = 100
	PhaseDecode  = "validation"
	PhaseApply   = "processing"
)

type Handler struct {
	logger     apt.Logger
	config     *apt.Config
	tlm        *telemetry.HTTP
	registry   *state.Registry
	processor  *events.Processor
	calculator *metrics.Calculator
	engine     *decision.Engine
	planner    *decision.Planner
	configs    *config.Service
}

type HandlerDeps struct {
	Registry   *state.Registry
	Processor  *events.Processor
	Calculator *metrics.Calculator
	Engine     *decision.Engine
	Planner    *decision.Planner
	Configs    *config.Service
}

func NewHandler(hd HandlerDeps, cfg *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		logger:     logger,
		config:     cfg,
		tlm:        telemetry.NewHTTP(),
		registry:   hd.Registry,
		processor:  hd.Processor,
		calculator: hd.Calculator,
		engine:     hd.Engine,
		planner:    hd.Planner,
		configs:    hd.Configs,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.IngestEvent)
		r.Post("/batch", h.IngestBatch)
	})

	r.Get("/bars", h.ListBars)

	r.Route("/venues/{venueID}/bars/{barID}", func(r chi.Router) {
		r.Get("/next-task", h.NextTask)
		r.Get("/stock-targets", h.StockTargets)
		r.Get("/snapshot", h.Snapshot)
		r.Get("/guardrails", h.Guardrails)
		r.Get("/config", h.GetConfig)
		r.Put("/config", h.UpdateConfig)
		r.Patch("/features", h.UpdateFeatures)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

// IngestError is one rejected event. Validation errors are indexed by input
// position; processing errors by position after the timestamp sort.
type IngestError struct {
	Index   int    `json:"index"`
	Phase   string `json:"phase"`
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

type IngestResponse struct {
	Accepted int                   `json:"accepted"`
	Rejected int                   `json:"rejected"`
	Errors   []IngestError         `json:"errors"`
	Warnings []events.BatchWarning `json:"warnings"`
}

type batchRequest struct {
	Events []json.RawMessage `json:"events"`
}

func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.IngestEvent")
	defer finish()
	log := h.log(r)

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	e, err := events.Decode(body)
	if errors.Is(err, events.ErrInvalidEvent) {
		apt.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := IngestResponse{Errors: []IngestError{}, Warnings: []events.BatchWarning{}}
	if err != nil {
		resp.Rejected = 1
		resp.Errors = append(resp.Errors, IngestError{Index: 0, Phase: PhaseDecode, Message: err.Error()})
		apt.Respond(w, http.StatusOK, resp, nil)
		return
	}

	res := h.processor.Process(r.Context(), e)
	if res.Processed {
		resp.Accepted = 1
		for _, msg := range res.Warnings {
			resp.Warnings = append(resp.Warnings, events.BatchWarning{Index: 0, Message: msg})
		}
	} else {
		resp.Rejected = 1
		resp.Errors = append(resp.Errors, IngestError{
			Index:   0,
			Phase:   PhaseApply,
			EventID: e.Header().EventID,
			Type:    e.Type(),
			Message: strings.Join(res.Warnings, "; "),
		})
		log.Info("event rejected", "type", e.Type(), "warnings", res.Warnings)
	}

	apt.Respond(w, http.StatusOK, resp, nil)
}

func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.IngestBatch")
	defer finish()
	log := h.log(r)

	var req batchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Events) == 0 {
		apt.RespondError(w, http.StatusBadRequest, "Batch must contain at least one event")
		return
	}
	if len(req.Events) > MaxBatchSize {
		apt.RespondError(w, http.StatusBadRequest, "Batch exceeds "+strconv.Itoa(MaxBatchSize)+" events")
		return
	}

	resp := IngestResponse{Errors: []IngestError{}, Warnings: []events.BatchWarning{}}
	valid := make([]events.Event, 0, len(req.Events))
	for i, raw := range req.Events {
		e, err := events.Decode(raw)
		if err != nil {
			resp.Rejected++
			resp.Errors = append(resp.Errors, IngestError{Index: i, Phase: PhaseDecode, Message: err.Error()})
			continue
		}
		valid = append(valid, e)
	}

	result := h.processor.ProcessBatch(r.Context(), valid)
	resp.Accepted += result.Accepted
	resp.Rejected += result.Rejected
	for _, be := range result.Errors {
		resp.Errors = append(resp.Errors, IngestError{
			Index:   be.Index,
			Phase:   PhaseApply,
			EventID: be.EventID,
			Type:    be.Type,
			Message: be.Message,
		})
	}
	resp.Warnings = append(resp.Warnings, result.Warnings...)

	log.Debug("batch ingested", "accepted", resp.Accepted, "rejected", resp.Rejected)
	apt.Respond(w, http.StatusOK, resp, nil)
}

func (h *Handler) ListBars(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListBars")
	defer finish()

	keys := h.registry.Keys()
	bars := make([]map[string]string, 0, len(keys))
	for _, k := range keys {
		bars = append(bars, map[string]string{"venue_id": k.VenueID, "bar_id": k.BarID})
	}
	apt.Respond(w, http.StatusOK, map[string]interface{}{"bars": bars}, nil)
}

type warmingUp struct {
	Status   string `json:"status"`
	Arrivals int    `json:"arrivals"`
	Required int    `json:"required"`
}

func (h *Handler) NextTask(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.NextTask")
	defer finish()

	venueID, barID := chi.URLParam(r, "venueID"), chi.URLParam(r, "barID")
	part, err := h.registry.Lookup(venueID, barID)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}

	var arrivals int
	part.View(func(s *state.BarState) { arrivals = s.ArrivalCount() })
	if arrivals < decision.MinArrivals {
		apt.Respond(w, http.StatusOK, warmingUp{Status: decision.StatusWarmingUp, Arrivals: arrivals, Required: decision.MinArrivals}, nil)
		return
	}

	q := r.URL.Query()
	req := decision.Request{
		VenueID:     venueID,
		BarID:       barID,
		BartenderID: q.Get("bartender_id"),
		Station:     q.Get("station"),
	}
	if exclude := q.Get("exclude"); exclude != "" {
		for _, f := range strings.Split(exclude, ",") {
			if f = strings.TrimSpace(f); f != "" {
				req.ExcludeFamilies = append(req.ExcludeFamilies, f)
			}
		}
	}

	result, err := h.engine.NextTask(req)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	apt.Respond(w, http.StatusOK, result, nil)
}

func (h *Handler) StockTargets(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.StockTargets")
	defer finish()

	horizon, ok := intParam(w, r, "horizon")
	if !ok {
		return
	}

	plan, err := h.planner.StockTargets(chi.URLParam(r, "venueID"), chi.URLParam(r, "barID"), horizon)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	apt.Respond(w, http.StatusOK, plan, nil)
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Snapshot")
	defer finish()

	minutes, ok := intParam(w, r, "window")
	if !ok {
		return
	}

	snap, err := h.calculator.Snapshot(chi.URLParam(r, "venueID"), chi.URLParam(r, "barID"), time.Duration(minutes)*time.Minute)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	apt.Respond(w, http.StatusOK, snap, nil)
}

type guardrailsResponse struct {
	Severity              string                `json:"severity"`
	Violations            []metrics.Violation   `json:"violations"`
	Alerts                []state.Alert         `json:"alerts"`
	Autopilot             bool                  `json:"autopilot"`
	ConsecutiveViolations int                   `json:"consecutive_violations"`
	LastToggleAt          *time.Time            `json:"last_toggle_at,omitempty"`
	LastEvaluatedAt       *time.Time            `json:"last_evaluated_at,omitempty"`
	Thresholds            state.GuardrailConfig `json:"thresholds"`
}

func (h *Handler) Guardrails(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Guardrails")
	defer finish()

	part, err := h.registry.Lookup(chi.URLParam(r, "venueID"), chi.URLParam(r, "barID"))
	if err != nil {
		h.respondLookupError(w, err)
		return
	}

	now := h.calculator.Now()
	var resp guardrailsResponse
	part.View(func(s *state.BarState) {
		cfg := s.Config()
		eval := metrics.Evaluate(metrics.Collect(s, now, 0, h.calculator.LambdaWindow()), cfg.Guardrails)
		g := s.Guardrail()
		resp = guardrailsResponse{
			Severity:              eval.Severity,
			Violations:            eval.Violations,
			Alerts:                s.Alerts(),
			Autopilot:             cfg.Features.Autopilot,
			ConsecutiveViolations: g.ConsecutiveViolations,
			LastToggleAt:          g.LastToggleAt,
			LastEvaluatedAt:       g.LastEvaluatedAt,
			Thresholds:            cfg.Guardrails,
		}
	})
	if resp.Violations == nil {
		resp.Violations = []metrics.Violation{}
	}
	apt.Respond(w, http.StatusOK, resp, nil)
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetConfig")
	defer finish()

	cfg := h.configs.Get(chi.URLParam(r, "venueID"), chi.URLParam(r, "barID"))
	apt.Respond(w, http.StatusOK, cfg, nil)
}

func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateConfig")
	defer finish()

	var patch config.Patch
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes)).Decode(&patch); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if patch.Empty() {
		apt.RespondError(w, http.StatusBadRequest, "Config update must set at least one section")
		return
	}

	cfg, err := h.configs.Update(r.Context(), chi.URLParam(r, "venueID"), chi.URLParam(r, "barID"), patch)
	if err != nil {
		h.respondConfigError(w, r, err)
		return
	}
	apt.Respond(w, http.StatusOK, cfg, nil)
}

func (h *Handler) UpdateFeatures(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateFeatures")
	defer finish()

	var patch config.FeaturePatch
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes)).Decode(&patch); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := h.configs.SetFeatures(r.Context(), chi.URLParam(r, "venueID"), chi.URLParam(r, "barID"), patch)
	if err != nil {
		h.respondConfigError(w, r, err)
		return
	}
	apt.Respond(w, http.StatusOK, cfg.Features, nil)
}

func (h *Handler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, state.ErrBarNotFound) {
		apt.RespondError(w, http.StatusNotFound, "Bar not found")
		return
	}
	apt.RespondError(w, http.StatusInternalServerError, "Internal error")
}

func (h *Handler) respondConfigError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, state.ErrInvalidConfig) {
		apt.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log(r).Errorf("cannot update engine config: %v", err)
	apt.RespondError(w, http.StatusInternalServerError, "Could not update config")
}

// intParam parses an optional non-negative integer query parameter; 0 when absent.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		apt.RespondError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return n, true
}
