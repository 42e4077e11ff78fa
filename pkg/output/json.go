// Package output handles benchmark result output in various formats
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/tidwall/pretty"

	"github.com/docbench_go/pkg/benchmark"
)

// Result represents the JSON output format for benchmark results
type Result struct {
	RunID       string                 `json:"run_id"`
	Name        string                 `json:"name,omitempty"`
	Target      string                 `json:"target"`
	Timestamp   string                 `json:"timestamp"`
	Connections int                    `json:"connections"`
	Phases      map[string]PhaseResult `json:"phases"`
	Thresholds  *ThresholdsResult      `json:"thresholds,omitempty"`
}

// PhaseResult contains the aggregate figures of one phase
type PhaseResult struct {
	TimeTakenSeconds       float64                 `json:"time_taken_seconds"`
	ConnectionTimeouts     int                     `json:"connection_timeouts"`
	TotalJSONBytesSent     int64                   `json:"total_json_bytes_sent"`
	TotalJSONBytesReceived int64                   `json:"total_json_bytes_received"`
	Statistics             map[string]SampleResult `json:"statistics"`
	Rates                  map[string]float64      `json:"rates_docs_per_second"`
	Latency                *LatencyResult          `json:"latency,omitempty"`
}

// SampleResult contains phase duration statistics in seconds
type SampleResult struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Sum    float64 `json:"sum"`
}

// LatencyResult contains request latency percentiles
type LatencyResult struct {
	Count int64  `json:"count"`
	Mean  string `json:"mean"`
	P50   string `json:"p50"`
	P90   string `json:"p90"`
	P99   string `json:"p99"`
	Max   string `json:"max"`
}

// ThresholdsResult contains threshold evaluation results
type ThresholdsResult struct {
	Passed  bool                    `json:"passed"`
	Results []ThresholdResultOutput `json:"results"`
}

// ThresholdResultOutput is one threshold check
type ThresholdResultOutput struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// BuildResult converts a report into its JSON shape
func BuildResult(report *benchmark.Report, thresholds *benchmark.ThresholdResults) Result {
	result := Result{
		RunID:       report.RunID,
		Name:        report.Name,
		Target:      report.Target,
		Timestamp:   report.StartedAt.UTC().Format(time.RFC3339),
		Connections: report.Connections,
		Phases:      make(map[string]PhaseResult),
	}

	for _, view := range PhaseViews(report) {
		phase := PhaseResult{
			TimeTakenSeconds:       view.Totals.TimeTaken.Seconds(),
			ConnectionTimeouts:     view.Totals.ConnectionTimeouts,
			TotalJSONBytesSent:     view.Totals.TotalJSONBytesSent,
			TotalJSONBytesReceived: view.Totals.TotalJSONBytesReceived,
			Statistics:             make(map[string]SampleResult, len(view.Samples)),
			Rates:                  make(map[string]float64, len(view.Rates)),
		}
		for _, s := range view.Samples {
			phase.Statistics[s.Name] = SampleResult{
				Min:    secs(s.Sample.Min),
				Max:    secs(s.Sample.Max),
				Median: secs(s.Sample.Median),
				Mean:   secs(s.Sample.Mean),
				StdDev: secs(s.Sample.Deviation),
				Sum:    secs(s.Sample.Sum),
			}
		}
		for _, r := range view.Rates {
			phase.Rates[r.Name] = r.Value
		}
		if l := view.Latency; l.Count > 0 {
			phase.Latency = &LatencyResult{
				Count: l.Count,
				Mean:  FormatLatency(l.Mean),
				P50:   FormatLatency(l.P50),
				P90:   FormatLatency(l.P90),
				P99:   FormatLatency(l.P99),
				Max:   FormatLatency(l.Max),
			}
		}
		result.Phases[view.Key] = phase
	}

	if thresholds != nil && len(thresholds.Results) > 0 {
		out := &ThresholdsResult{Passed: thresholds.Passed}
		for _, r := range thresholds.Results {
			out.Results = append(out.Results, ThresholdResultOutput{
				Name:     r.Name,
				Passed:   r.Passed,
				Expected: r.Expected,
				Actual:   r.Actual,
			})
		}
		result.Thresholds = out
	}

	return result
}

// WriteJSON outputs results in indented JSON format
func WriteJSON(w io.Writer, report *benchmark.Report, thresholds *benchmark.ThresholdResults) error {
	data, err := json.Marshal(BuildResult(report, thresholds))
	if err != nil {
		return fmt.Errorf("error encoding JSON: %w", err)
	}
	if _, err := w.Write(pretty.Pretty(data)); err != nil {
		return fmt.Errorf("error writing JSON: %w", err)
	}
	return nil
}
