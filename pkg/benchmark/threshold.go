// Package benchmark runs the bulk insert and CRUD phases and reduces their statistics
package benchmark

import (
	"fmt"
	"strings"
	"time"

	"github.com/docbench_go/pkg/config"
)

// ThresholdResult represents the result of a single threshold check
type ThresholdResult struct {
	Name     string // Name of the threshold (e.g., "Min Read Rate")
	Passed   bool   // Whether the threshold passed
	Expected string // Expected value
	Actual   string // Actual value
	Message  string // Human-readable message
}

// ThresholdResults represents all threshold check results
type ThresholdResults struct {
	Results []ThresholdResult
	Passed  bool // Overall pass/fail
}

// EvaluateThresholds checks if the benchmark report meets the defined thresholds.
// A threshold on a phase that did not run fails.
func EvaluateThresholds(report *Report, thresholds *config.ThresholdConfig) (*ThresholdResults, error) {
	results := &ThresholdResults{
		Results: make([]ThresholdResult, 0),
		Passed:  true,
	}

	if thresholds == nil || !thresholds.HasThresholds() {
		return results, nil
	}

	add := func(result ThresholdResult) {
		results.Results = append(results.Results, result)
		if !result.Passed {
			results.Passed = false
		}
	}

	// Check connection timeouts
	if thresholds.MaxTimeouts != nil {
		add(checkMaxTimeouts(report, *thresholds.MaxTimeouts))
	}

	// Check bulk insert rates
	if thresholds.MinRemoteProcessingRate > 0 {
		add(checkBulkRate(report, "Min Remote Processing Rate", thresholds.MinRemoteProcessingRate,
			func(r *BulkInsertResults) float64 { return r.RemoteProcessingRate }))
	}
	if thresholds.MinLocalInsertRate > 0 {
		add(checkBulkRate(report, "Min Local Insert Rate", thresholds.MinLocalInsertRate,
			func(r *BulkInsertResults) float64 { return r.LocalInsertRate }))
	}

	// Check CRUD rates
	crudRates := []struct {
		name string
		min  float64
		get  func(*CrudResults) float64
	}{
		{"Min Create Rate", thresholds.MinCreateRate, func(r *CrudResults) float64 { return r.RemoteCreateRate }},
		{"Min Read Rate", thresholds.MinReadRate, func(r *CrudResults) float64 { return r.RemoteReadRate }},
		{"Min Update Rate", thresholds.MinUpdateRate, func(r *CrudResults) float64 { return r.RemoteUpdateRate }},
		{"Min Delete Rate", thresholds.MinDeleteRate, func(r *CrudResults) float64 { return r.RemoteDeleteRate }},
	}
	for _, c := range crudRates {
		if c.min > 0 {
			add(checkCrudRate(report, c.name, c.min, c.get))
		}
	}

	// Check P99 latency
	if thresholds.MaxP99Latency != "" {
		result, err := checkP99Latency(report, thresholds.MaxP99Latency)
		if err != nil {
			return nil, err
		}
		add(result)
	}

	return results, nil
}

// checkMaxTimeouts checks the connection timeouts of every phase that ran
func checkMaxTimeouts(report *Report, maxTimeouts int) ThresholdResult {
	actual := 0
	if report.BulkInsert != nil {
		actual += report.BulkInsert.ConnectionTimeouts
	}
	if report.Crud != nil {
		actual += report.Crud.ConnectionTimeouts
	}

	passed := actual <= maxTimeouts
	return ThresholdResult{
		Name:     "Max Connection Timeouts",
		Passed:   passed,
		Expected: fmt.Sprintf("≤ %d", maxTimeouts),
		Actual:   fmt.Sprintf("%d", actual),
		Message:  formatResultMessage("Connection Timeouts", passed, fmt.Sprintf("%d", actual), fmt.Sprintf("≤ %d", maxTimeouts)),
	}
}

func checkBulkRate(report *Report, name string, minRate float64, get func(*BulkInsertResults) float64) ThresholdResult {
	if report.BulkInsert == nil {
		return phaseNotRun(name, "bulk insert", minRate)
	}
	return checkMinRate(name, minRate, get(report.BulkInsert))
}

func checkCrudRate(report *Report, name string, minRate float64, get func(*CrudResults) float64) ThresholdResult {
	if report.Crud == nil {
		return phaseNotRun(name, "crud", minRate)
	}
	return checkMinRate(name, minRate, get(report.Crud))
}

// checkMinRate checks if a docs/sec rate meets its minimum
func checkMinRate(name string, minRate, actualRate float64) ThresholdResult {
	passed := actualRate >= minRate
	label := strings.TrimPrefix(name, "Min ")

	return ThresholdResult{
		Name:     name,
		Passed:   passed,
		Expected: fmt.Sprintf("≥ %.2f docs/sec", minRate),
		Actual:   fmt.Sprintf("%.2f docs/sec", actualRate),
		Message:  formatResultMessage(label, passed, fmt.Sprintf("%.2f docs/sec", actualRate), fmt.Sprintf("≥ %.2f docs/sec", minRate)),
	}
}

func phaseNotRun(name, phase string, minRate float64) ThresholdResult {
	expected := fmt.Sprintf("≥ %.2f docs/sec", minRate)
	return ThresholdResult{
		Name:     name,
		Passed:   false,
		Expected: expected,
		Actual:   phase + " phase skipped",
		Message:  formatResultMessage(strings.TrimPrefix(name, "Min "), false, phase+" phase skipped", expected),
	}
}

// checkP99Latency checks the worst P99 request latency over the phases that ran
func checkP99Latency(report *Report, maxLatencyStr string) (ThresholdResult, error) {
	maxLatency, err := config.ParseLatency(maxLatencyStr)
	if err != nil {
		return ThresholdResult{}, err
	}

	var actual time.Duration
	if report.BulkInsert != nil && report.BulkInsert.Latency.P99 > actual {
		actual = report.BulkInsert.Latency.P99
	}
	if report.Crud != nil && report.Crud.Latency.P99 > actual {
		actual = report.Crud.Latency.P99
	}
	passed := actual <= maxLatency

	return ThresholdResult{
		Name:     "Max P99 Latency",
		Passed:   passed,
		Expected: fmt.Sprintf("≤ %s", maxLatencyStr),
		Actual:   formatMicroseconds(actual.Microseconds()),
		Message:  formatResultMessage("P99 Latency", passed, formatMicroseconds(actual.Microseconds()), "≤ "+maxLatencyStr),
	}, nil
}

// formatMicroseconds formats microseconds into a human-readable duration
func formatMicroseconds(micros int64) string {
	if micros < 1000 {
		return fmt.Sprintf("%dµs", micros)
	} else if micros < 1000000 {
		return fmt.Sprintf("%.2fms", float64(micros)/1000)
	} else {
		return fmt.Sprintf("%.2fs", float64(micros)/1000000)
	}
}

// formatResultMessage formats a threshold result message
func formatResultMessage(name string, passed bool, actual, expected string) string {
	status := "✓ PASS"
	if !passed {
		status = "✗ FAIL"
	}
	return fmt.Sprintf("%s: %s (actual: %s, expected: %s)", status, name, actual, expected)
}

// FormatResults returns a formatted string of all threshold results
func (r *ThresholdResults) FormatResults() string {
	if len(r.Results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n  Threshold Results:\n")

	for _, result := range r.Results {
		sb.WriteString("    ")
		sb.WriteString(result.Message)
		sb.WriteString("\n")
	}

	if r.Passed {
		sb.WriteString("\n  ✓ All thresholds passed\n")
	} else {
		sb.WriteString("\n  ✗ Some thresholds failed\n")
	}

	return sb.String()
}

// FailedCount returns the number of failed thresholds
func (r *ThresholdResults) FailedCount() int {
	count := 0
	for _, result := range r.Results {
		if !result.Passed {
			count++
		}
	}
	return count
}

// PassedCount returns the number of passed thresholds
func (r *ThresholdResults) PassedCount() int {
	count := 0
	for _, result := range r.Results {
		if result.Passed {
			count++
		}
	}
	return count
}
