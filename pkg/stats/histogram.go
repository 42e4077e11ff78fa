// Package stats provides per-connection phase timing and population statistics
package stats

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// histogramMinMicros is the lowest trackable latency (1us)
	histogramMinMicros = 1
	// histogramMaxMicros is the highest trackable latency (10 minutes)
	histogramMaxMicros = int64(10 * time.Minute / time.Microsecond)
	histogramSigFigs   = 3
)

// LatencyHistogram records request round trip times in microseconds
type LatencyHistogram struct {
	histogram *hdrhistogram.Histogram
}

// LatencySummary is a point-in-time digest of a LatencyHistogram
type LatencySummary struct {
	Count int64         `json:"count"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

// NewLatencyHistogram creates an empty histogram
func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{
		histogram: hdrhistogram.New(histogramMinMicros, histogramMaxMicros, histogramSigFigs),
	}
}

// RecordValue records one latency
func (h *LatencyHistogram) RecordValue(d time.Duration) error {
	us := d.Microseconds()
	if us < histogramMinMicros {
		us = histogramMinMicros
	}
	return h.histogram.RecordValue(us)
}

// Merge adds all values recorded by other
func (h *LatencyHistogram) Merge(other *LatencyHistogram) {
	if other == nil {
		return
	}
	h.histogram.Merge(other.histogram)
}

// Count returns the number of recorded values
func (h *LatencyHistogram) Count() int64 {
	return h.histogram.TotalCount()
}

// Percentile returns the latency at the given percentile (0-100)
func (h *LatencyHistogram) Percentile(p float64) time.Duration {
	return micros(h.histogram.ValueAtQuantile(p))
}

// Summary returns the count, mean and common percentiles
func (h *LatencyHistogram) Summary() LatencySummary {
	if h.Count() == 0 {
		return LatencySummary{}
	}
	return LatencySummary{
		Count: h.Count(),
		Mean:  time.Duration(h.histogram.Mean() * float64(time.Microsecond)),
		P50:   h.Percentile(50),
		P90:   h.Percentile(90),
		P99:   h.Percentile(99),
		Max:   micros(h.histogram.Max()),
	}
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
