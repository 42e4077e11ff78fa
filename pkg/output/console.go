// Package output handles benchmark result output in various formats
package output

import (
	"io"

	"github.com/docbench_go/pkg/benchmark"
	"github.com/docbench_go/pkg/stats"
)

// WriteConsole writes each phase as key=value lines under indent
func WriteConsole(w io.Writer, report *benchmark.Report, thresholds *benchmark.ThresholdResults, indent string) error {
	for _, view := range PhaseViews(report) {
		if _, err := printer.Fprintf(w, "\n%s results:\n", view.Title); err != nil {
			return err
		}
		if _, err := io.WriteString(w, FormatPhase(view, indent)); err != nil {
			return err
		}
	}

	if thresholds != nil {
		if _, err := io.WriteString(w, thresholds.FormatResults()); err != nil {
			return err
		}
	}
	return nil
}

// FormatPhase renders one phase as labelled lines, each prefixed by indent
func FormatPhase(view PhaseView, indent string) string {
	t := view.Totals
	out := printer.Sprintf("%stimeTaken=%.3f secs\n", indent, t.TimeTaken.Seconds())
	out += printer.Sprintf("%sconnectionTimeouts=%d\n", indent, t.ConnectionTimeouts)
	out += printer.Sprintf("%stotalJsonBytesSent=%d bytes\n", indent, t.TotalJSONBytesSent)
	out += printer.Sprintf("%stotalJsonBytesReceived=%d bytes\n", indent, t.TotalJSONBytesReceived)
	for _, s := range view.Samples {
		out += printer.Sprintf("%s%s={%s}\n", indent, s.Name, FormatSample(s.Sample))
	}
	for _, r := range view.Rates {
		out += printer.Sprintf("%s%s=%.3f docs/sec\n", indent, r.Name, r.Value)
	}
	if view.Latency.Count > 0 {
		l := view.Latency
		out += printer.Sprintf("%slatency={count=%d, mean=%s, p50=%s, p90=%s, p99=%s, max=%s}\n",
			indent, l.Count, FormatLatency(l.Mean), FormatLatency(l.P50), FormatLatency(l.P90),
			FormatLatency(l.P99), FormatLatency(l.Max))
	}
	return out
}

// FormatSample renders a millisecond sample in seconds
func FormatSample(s stats.Sample) string {
	return printer.Sprintf("min=%.3f secs, max=%.3f secs, median=%.3f secs, sd=%.3f secs",
		secs(s.Min), secs(s.Max), secs(s.Median), secs(s.Deviation))
}

// WriteConsoleQuiet writes one summary line per phase
func WriteConsoleQuiet(w io.Writer, report *benchmark.Report) error {
	for _, view := range PhaseViews(report) {
		_, err := printer.Fprintf(w, "%s: %.3f secs, %d connections, %d timeouts, %d bytes sent, %d bytes received\n",
			view.Title,
			view.Totals.TimeTaken.Seconds(),
			view.Totals.Connections,
			view.Totals.ConnectionTimeouts,
			view.Totals.TotalJSONBytesSent,
			view.Totals.TotalJSONBytesReceived)
		if err != nil {
			return err
		}
	}
	return nil
}
