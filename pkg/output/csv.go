// Package output handles benchmark result output in various formats
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/docbench_go/pkg/benchmark"
)

// WriteCSV outputs results in CSV format, one row per metric
func WriteCSV(w io.Writer, report *benchmark.Report) error {
	writer := csv.NewWriter(w)

	header := []string{"timestamp", "run_id", "name", "phase", "metric", "value", "unit"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}

	timestamp := report.StartedAt.UTC().Format(time.RFC3339)
	row := func(phase, metric string, value float64, unit string) []string {
		return []string{
			timestamp,
			report.RunID,
			report.Name,
			phase,
			metric,
			strconv.FormatFloat(value, 'f', -1, 64),
			unit,
		}
	}

	for _, view := range PhaseViews(report) {
		t := view.Totals
		rows := [][]string{
			row(view.Key, "timeTaken", t.TimeTaken.Seconds(), "secs"),
			row(view.Key, "connectionTimeouts", float64(t.ConnectionTimeouts), ""),
			row(view.Key, "totalJsonBytesSent", float64(t.TotalJSONBytesSent), "bytes"),
			row(view.Key, "totalJsonBytesReceived", float64(t.TotalJSONBytesReceived), "bytes"),
		}
		for _, s := range view.Samples {
			rows = append(rows,
				row(view.Key, s.Name+".min", secs(s.Sample.Min), "secs"),
				row(view.Key, s.Name+".max", secs(s.Sample.Max), "secs"),
				row(view.Key, s.Name+".median", secs(s.Sample.Median), "secs"),
				row(view.Key, s.Name+".mean", secs(s.Sample.Mean), "secs"),
				row(view.Key, s.Name+".sd", secs(s.Sample.Deviation), "secs"),
			)
		}
		for _, r := range view.Rates {
			rows = append(rows, row(view.Key, r.Name, r.Value, "docs/sec"))
		}
		if l := view.Latency; l.Count > 0 {
			rows = append(rows,
				row(view.Key, "latency.p50", float64(l.P50.Microseconds()), "us"),
				row(view.Key, "latency.p90", float64(l.P90.Microseconds()), "us"),
				row(view.Key, "latency.p99", float64(l.P99.Microseconds()), "us"),
				row(view.Key, "latency.max", float64(l.Max.Microseconds()), "us"),
			)
		}
		if err := writer.WriteAll(rows); err != nil {
			return fmt.Errorf("error writing CSV rows: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
