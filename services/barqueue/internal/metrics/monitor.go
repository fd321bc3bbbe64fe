package metrics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/barqueue/pkg/event"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

const DefaultMonitorInterval = 30 * time.Second

// Tightener applies one autopilot tightening step through the regular config
// write path.
type Tightener interface {
	Tighten(ctx context.Context, venueID, barID string, at time.Time) (state.EngineConfig, bool, error)
}

type MonitorOptions struct {
	Interval  time.Duration
	Window    time.Duration
	Publisher aptevents.Publisher
	Logger    apt.Logger
}

// Outcome summarizes one guardrail evaluation of one bar.
type Outcome struct {
	VenueID   string   `json:"venue_id"`
	BarID     string   `json:"bar_id"`
	Severity  string   `json:"severity"`
	Raised    []string `json:"raised,omitempty"`
	Cleared   []string `json:"cleared,omitempty"`
	Tightened bool     `json:"tightened"`
	Error     string   `json:"error,omitempty"`
}

// Monitor evaluates guardrails for every known bar on a fixed cadence.
type Monitor struct {
	registry  *state.Registry
	calc      *Calculator
	tightener Tightener
	publisher aptevents.Publisher
	logger    apt.Logger
	interval  time.Duration
	window    time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(registry *state.Registry, calc *Calculator, tightener Tightener, opts MonitorOptions) *Monitor {
	m := &Monitor{
		registry:  registry,
		calc:      calc,
		tightener: tightener,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		interval:  opts.Interval,
		window:    opts.Window,
	}
	if m.interval <= 0 {
		m.interval = DefaultMonitorInterval
	}
	if m.window <= 0 {
		m.window = DefaultStatsWindow
	}
	if m.logger == nil {
		m.logger = apt.NewNoopLogger()
	}
	return m
}

func (m *Monitor) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(ctx, m.done)
	m.logger.Info("guardrail monitor started", "interval", m.interval.String())
	return nil
}

func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	m.logger.Info("guardrail monitor stopped")
	return nil
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvaluateOnce(ctx, m.calc.Now())
		}
	}
}

// EvaluateOnce runs one evaluation cycle over every bar.
func (m *Monitor) EvaluateOnce(ctx context.Context, now time.Time) []Outcome {
	keys := m.registry.Keys()
	out := make([]Outcome, 0, len(keys))
	for _, key := range keys {
		out = append(out, m.evaluate(ctx, key, now))
	}
	return out
}

func (m *Monitor) evaluate(ctx context.Context, key state.Key, now time.Time) (outcome Outcome) {
	outcome = Outcome{VenueID: key.VenueID, BarID: key.BarID}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("guardrail evaluation panic", "venue_id", key.VenueID, "bar_id", key.BarID, "panic", r)
		}
	}()

	part, err := m.registry.Lookup(key.VenueID, key.BarID)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	var (
		raised     []state.Alert
		cleared    []state.Alert
		tighten    bool
		prevToggle *time.Time
		evaluation Evaluation
	)

	_ = part.Update(func(s *state.BarState) error {
		snap := Collect(s, now, m.window, m.calc.LambdaWindow())
		cfg := s.Config()
		evaluation = Evaluate(snap, cfg.Guardrails)
		raised, cleared = syncAlerts(s, evaluation, now)

		g := s.Guardrail()
		at := now
		g.LastEvaluatedAt = &at
		g.LastSeverity = evaluation.Severity
		if evaluation.Severity == SeverityOK {
			g.ConsecutiveViolations = 0
			return nil
		}
		g.ConsecutiveViolations++

		if !cfg.Features.Autopilot || m.tightener == nil {
			return nil
		}
		threshold := cfg.Guardrails.ViolationsBeforeTighten
		if threshold < 1 {
			threshold = 1
		}
		if g.ConsecutiveViolations < threshold || !cooledDown(g.LastToggleAt, now, cfg.Guardrails.Cooldown) {
			return nil
		}
		// Claim the toggle under the lock so concurrent cycles cannot both tighten.
		prevToggle = g.LastToggleAt
		g.LastToggleAt = &at
		tighten = true
		return nil
	})

	outcome.Severity = evaluation.Severity
	for _, a := range raised {
		outcome.Raised = append(outcome.Raised, a.Code)
		m.publishAlert(ctx, key, event.RecordAlertRaised, a, now)
	}
	for _, a := range cleared {
		outcome.Cleared = append(outcome.Cleared, a.Code)
		m.publishAlert(ctx, key, event.RecordAlertCleared, a, now)
	}

	if !tighten {
		return outcome
	}

	cfg, changed, err := m.tightener.Tighten(ctx, key.VenueID, key.BarID, now)
	if err != nil {
		m.logger.Error("autopilot tighten failed, retrying next cycle", "venue_id", key.VenueID, "bar_id", key.BarID, "error", err)
		outcome.Error = err.Error()
		_ = part.Update(func(s *state.BarState) error {
			s.Guardrail().LastToggleAt = prevToggle
			return nil
		})
		return outcome
	}

	_ = part.Update(func(s *state.BarState) error {
		s.Guardrail().ConsecutiveViolations = 0
		return nil
	})
	outcome.Tightened = changed
	if changed {
		m.logger.Info("autopilot tightened batching", "venue_id", key.VenueID, "bar_id", key.BarID, "version", cfg.Version, "tau0", cfg.Batching.Tau0, "b0", cfg.Batching.B0)
	}
	return outcome
}

// syncAlerts raises violated codes and clears resolved ones. A code whose
// severity changed is cleared and raised again.
func syncAlerts(s *state.BarState, e Evaluation, now time.Time) (raised, cleared []state.Alert) {
	active := make(map[string]state.Alert)
	for _, a := range s.Alerts() {
		active[a.Code] = a
	}

	violated := make(map[string]struct{}, len(e.Violations))
	for _, v := range e.Violations {
		violated[v.Code] = struct{}{}
		if prev, ok := active[v.Code]; ok {
			if prev.Severity == v.Severity {
				continue
			}
			s.ClearAlert(v.Code)
		}
		a := state.Alert{
			Code:      v.Code,
			Severity:  v.Severity,
			Message:   v.Message,
			Value:     v.Value,
			Threshold: v.Threshold,
			RaisedAt:  now,
		}
		if s.AddAlert(a) {
			raised = append(raised, a)
		}
	}

	for code, a := range active {
		if _, ok := violated[code]; ok {
			continue
		}
		if s.ClearAlert(code) {
			cleared = append(cleared, a)
		}
	}
	return raised, cleared
}

func cooledDown(last *time.Time, now time.Time, cooldownSeconds int) bool {
	if last == nil {
		return true
	}
	return !now.Before(last.Add(time.Duration(cooldownSeconds) * time.Second))
}

func (m *Monitor) publishAlert(ctx context.Context, key state.Key, kind string, a state.Alert, now time.Time) {
	if m.publisher == nil {
		return
	}
	rec := event.GuardrailAlertRecord{
		EventType:  kind,
		OccurredAt: now,
		VenueID:    key.VenueID,
		BarID:      key.BarID,
		Code:       a.Code,
		Severity:   a.Severity,
		Message:    a.Message,
		Value:      a.Value,
		Threshold:  a.Threshold,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := m.publisher.Publish(ctx, event.GuardrailsTopic, data); err != nil {
		m.logger.Error("cannot publish guardrail alert", "code", a.Code, "error", err)
	}
}
