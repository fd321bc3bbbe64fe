package metrics

import (
	"fmt"

	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

const (
	SeverityOK       = "ok"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

const (
	AlertP95Wait     = "p95_wait"
	AlertQueueLength = "queue_length"
	AlertOldestAge   = "oldest_age"
	AlertUtilization = "utilization"
)

// CriticalOverflow scales the queue length and oldest age limits into their
// critical thresholds.
const CriticalOverflow = 1.5

type Violation struct {
	Code      string  `json:"code"`
	Severity  string  `json:"severity"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

type Evaluation struct {
	Severity   string      `json:"severity"`
	Violations []Violation `json:"violations,omitempty"`
}

// Evaluate checks a snapshot against guardrail thresholds. The overall
// severity is that of the worst violated metric.
func Evaluate(s Snapshot, g state.GuardrailConfig) Evaluation {
	out := Evaluation{Severity: SeverityOK}

	add := func(v *Violation) {
		if v == nil {
			return
		}
		out.Violations = append(out.Violations, *v)
		if SeverityRank(v.Severity) > SeverityRank(out.Severity) {
			out.Severity = v.Severity
		}
	}

	add(check(AlertP95Wait, "p95 wait", s.P95WaitSeconds, g.P95Warning, g.P95Critical))

	if g.MaxQueueLength > 0 {
		limit := float64(g.MaxQueueLength)
		add(check(AlertQueueLength, "queue length", float64(s.TotalQueueLength), limit, limit*CriticalOverflow))
	}
	if g.MaxOldestAge > 0 {
		limit := float64(g.MaxOldestAge)
		add(check(AlertOldestAge, "oldest wait", s.MaxOldestAgeSeconds, limit, limit*CriticalOverflow))
	}
	if s.ActiveBartenders > 0 {
		add(check(AlertUtilization, "utilization", s.Utilization, g.UtilizationWarning, g.UtilizationCritical))
	}
	return out
}

func check(code, label string, value, warning, critical float64) *Violation {
	switch {
	case critical > 0 && value >= critical:
		return &Violation{
			Code:      code,
			Severity:  SeverityCritical,
			Value:     value,
			Threshold: critical,
			Message:   fmt.Sprintf("%s %.2f at or above critical %.2f", label, value, critical),
		}
	case warning > 0 && value >= warning:
		return &Violation{
			Code:      code,
			Severity:  SeverityWarning,
			Value:     value,
			Threshold: warning,
			Message:   fmt.Sprintf("%s %.2f at or above warning %.2f", label, value, warning),
		}
	}
	return nil
}

func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}
