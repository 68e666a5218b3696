package metrics

import (
	"math"

	"github.com/tinytelemetry/logsift/internal/model"
)

// markSpikes flags hours whose error rate exceeds mean + sigma*stddev of
// the whole series, ignoring hours with fewer than minSamples requests.
// rates holds the unrounded percentage for each point.
func markSpikes(points []model.ErrorRatePoint, rates []float64, sigma float64, minSamples int64) {
	if len(points) == 0 {
		return
	}
	var sum float64
	for _, r := range rates {
		sum += r
	}
	mean := sum / float64(len(rates))

	var sq float64
	for _, r := range rates {
		d := r - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(len(rates)))

	threshold := mean + sigma*stddev
	for i := range points {
		points[i].IsSpike = rates[i] > threshold && points[i].TotalCount >= minSamples
	}
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
