// Package metrics derives queue statistics from live bar state and enforces
// guardrails over them.
package metrics

import (
	"math"
	"sort"
)

// Percentile returns the nearest-rank p-th percentile of samples. Empty
// input yields 0.
func Percentile(samples []float64, p float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	idx := nearestRank(p, n) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// nearestRank is ceil(p*n/100). Integral p stays in integer math so products
// like 28*25 do not pick up a float rounding error.
func nearestRank(p float64, n int) int {
	if p == math.Trunc(p) && math.Abs(p) <= 100 {
		return (int(p)*n + 99) / 100
	}
	return int(math.Ceil(p*float64(n)/100 - 1e-9))
}
