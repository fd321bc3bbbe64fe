package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

func TestEvaluate(t *testing.T) {
	g := state.DefaultConfig("v", "b").Guardrails

	tests := []struct {
		name      string
		snap      Snapshot
		want      string
		wantCodes []string
	}{
		{name: "p95Critical", snap: Snapshot{P95WaitSeconds: 500}, want: SeverityCritical, wantCodes: []string{AlertP95Wait}},
		{name: "p95Ok", snap: Snapshot{P95WaitSeconds: 100}, want: SeverityOK},
		{name: "p95Warning", snap: Snapshot{P95WaitSeconds: 300}, want: SeverityWarning, wantCodes: []string{AlertP95Wait}},
		{name: "queueAtLimit", snap: Snapshot{TotalQueueLength: 25}, want: SeverityWarning, wantCodes: []string{AlertQueueLength}},
		{name: "queueOverflow", snap: Snapshot{TotalQueueLength: 40}, want: SeverityCritical, wantCodes: []string{AlertQueueLength}},
		{name: "oldestAge", snap: Snapshot{MaxOldestAgeSeconds: 700}, want: SeverityWarning, wantCodes: []string{AlertOldestAge}},
		{
			name: "utilizationNeedsStaff",
			snap: Snapshot{Utilization: 1},
			want: SeverityOK,
		},
		{
			name:      "utilizationCritical",
			snap:      Snapshot{ActiveBartenders: 2, BusyBartenders: 2, Utilization: 1},
			want:      SeverityCritical,
			wantCodes: []string{AlertUtilization},
		},
		{
			name:      "worstWins",
			snap:      Snapshot{P95WaitSeconds: 250, TotalQueueLength: 40},
			want:      SeverityCritical,
			wantCodes: []string{AlertP95Wait, AlertQueueLength},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.snap, g)
			assert.Equal(t, tt.want, got.Severity)

			var codes []string
			for _, v := range got.Violations {
				codes = append(codes, v.Code)
			}
			assert.Equal(t, tt.wantCodes, codes)
		})
	}
}
