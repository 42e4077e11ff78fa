// Package stats provides per-connection phase timing and population statistics
package stats

import (
	"errors"
	"math"
	"sort"
)

// ErrEmptySample is returned when statistics are requested for no values
var ErrEmptySample = errors.New("sample statistics require at least one value")

// Sample holds population statistics over a set of measurements
type Sample struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Sum       float64 `json:"sum"`
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	Deviation float64 `json:"deviation"`
	Count     int     `json:"count"`
}

// Compute returns the statistics of values treated as a whole population.
// The input slice is not modified.
func Compute(values []float64) (Sample, error) {
	if len(values) == 0 {
		return Sample{}, ErrEmptySample
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	// Rounding in the sum can push the mean just outside [min, max].
	mean := math.Min(math.Max(sum/float64(n), sorted[0]), sorted[n-1])

	var squares float64
	for _, v := range sorted {
		d := v - mean
		squares += d * d
	}

	return Sample{
		Min:       sorted[0],
		Max:       sorted[n-1],
		Sum:       sum,
		Mean:      mean,
		Median:    median,
		Deviation: math.Sqrt(squares / float64(n)),
		Count:     n,
	}, nil
}
