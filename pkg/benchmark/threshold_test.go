package benchmark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbench_go/pkg/config"
	"github.com/docbench_go/pkg/stats"
)

func sampleReport() *Report {
	return &Report{
		BulkInsert: &BulkInsertResults{
			Totals:               Totals{ConnectionTimeouts: 1},
			RemoteProcessingRate: 1200,
			LocalInsertRate:      900,
			Latency:              stats.LatencySummary{Count: 10, P99: 80 * time.Millisecond},
		},
		Crud: &CrudResults{
			Totals:           Totals{ConnectionTimeouts: 1},
			RemoteCreateRate: 300,
			RemoteReadRate:   800,
			RemoteUpdateRate: 250,
			RemoteDeleteRate: 400,
			Latency:          stats.LatencySummary{Count: 40, P99: 120 * time.Millisecond},
		},
	}
}

func intPtr(v int) *int {
	return &v
}

func TestEvaluateThresholds(t *testing.T) {
	tests := map[string]struct {
		thresholds config.ThresholdConfig
		passed     bool
		failed     int
	}{
		"none": {
			thresholds: config.ThresholdConfig{},
			passed:     true,
		},
		"all pass": {
			thresholds: config.ThresholdConfig{
				MaxTimeouts:             intPtr(2),
				MinRemoteProcessingRate: 1000,
				MinLocalInsertRate:      900,
				MinReadRate:             500,
				MaxP99Latency:           "150ms",
			},
			passed: true,
		},
		"timeouts summed over phases": {
			thresholds: config.ThresholdConfig{MaxTimeouts: intPtr(1)},
			failed:     1,
		},
		"rate below minimum": {
			thresholds: config.ThresholdConfig{MinUpdateRate: 251, MinDeleteRate: 100},
			failed:     1,
		},
		"worst p99 wins": {
			thresholds: config.ThresholdConfig{MaxP99Latency: "100ms"},
			failed:     1,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			results, err := EvaluateThresholds(sampleReport(), &tc.thresholds)
			require.NoError(t, err)
			assert.Equal(t, tc.passed, results.Passed)
			assert.Equal(t, tc.failed, results.FailedCount())
		})
	}
}

func TestEvaluateThresholds_SkippedPhaseFails(t *testing.T) {
	report := sampleReport()
	report.Crud = nil

	results, err := EvaluateThresholds(report, &config.ThresholdConfig{MinCreateRate: 1, MinLocalInsertRate: 1})
	require.NoError(t, err)

	assert.False(t, results.Passed)
	assert.Equal(t, 1, results.PassedCount())
	assert.Equal(t, 1, results.FailedCount())
	assert.Equal(t, "crud phase skipped", results.Results[1].Actual)
}

func TestEvaluateThresholds_InvalidLatency(t *testing.T) {
	_, err := EvaluateThresholds(sampleReport(), &config.ThresholdConfig{MaxP99Latency: "soon"})
	assert.Error(t, err)
}

func TestThresholdResults_FormatResults(t *testing.T) {
	results, err := EvaluateThresholds(sampleReport(), &config.ThresholdConfig{
		MinReadRate:   500,
		MinCreateRate: 1000,
	})
	require.NoError(t, err)

	out := results.FormatResults()
	assert.Contains(t, out, "✗ FAIL: Create Rate (actual: 300.00 docs/sec, expected: ≥ 1000.00 docs/sec)")
	assert.Contains(t, out, "✓ PASS: Read Rate")
	assert.Contains(t, out, "✗ Some thresholds failed")
}
