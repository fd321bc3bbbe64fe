package decision

import (
	"time"

	"github.com/appetiteclub/barqueue/services/barqueue/internal/metrics"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

// Thresholds are the dispatch limits in force after guardrail feedback.
type Thresholds struct {
	TargetBatch int           `json:"target_batch"`
	Tau         time.Duration `json:"tau"`
	Mode        string        `json:"mode"`
}

const (
	ModeBaseline = "baseline"
	ModeRelaxed  = "relaxed"
	ModeTight    = "tight"
	ModeTightest = "tightest"
	ModeSingle   = "single"
)

// Effective moves B0 and tau0 toward their minimum under pressure and toward
// their maximum when the bar is healthy but busy.
func Effective(cfg state.EngineConfig, severity string, utilization float64) Thresholds {
	b := cfg.Batching
	th := Thresholds{TargetBatch: b.B0, Tau: seconds(b.Tau0), Mode: ModeBaseline}

	switch {
	case severity == metrics.SeverityCritical:
		th = Thresholds{TargetBatch: b.BMin, Tau: seconds(b.TauMin), Mode: ModeTightest}
	case severity == metrics.SeverityWarning:
		th = Thresholds{TargetBatch: (b.B0 + b.BMin) / 2, Tau: seconds((b.Tau0 + b.TauMin) / 2), Mode: ModeTight}
	case cfg.Guardrails.UtilizationTarget > 0 && utilization >= cfg.Guardrails.UtilizationTarget:
		th = Thresholds{TargetBatch: (b.B0 + b.BMax + 1) / 2, Tau: seconds((b.Tau0 + b.TauMax + 1) / 2), Mode: ModeRelaxed}
	}

	if !cfg.Features.Batching {
		th.TargetBatch = 1
		th.Mode = ModeSingle
	}
	if th.TargetBatch < 1 {
		th.TargetBatch = 1
	}
	return th
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
