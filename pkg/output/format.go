// Package output handles benchmark result output in various formats
package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/docbench_go/pkg/benchmark"
	"github.com/docbench_go/pkg/config"
	"github.com/docbench_go/pkg/stats"
)

var printer = message.NewPrinter(language.English)

// NamedSample is one phase's statistics in milliseconds
type NamedSample struct {
	Name   string
	Sample stats.Sample
}

// NamedRate is one derived throughput in docs/sec
type NamedRate struct {
	Name  string
	Value float64
}

// PhaseView is the presentation shape shared by every writer
type PhaseView struct {
	Key     string
	Title   string
	Totals  benchmark.Totals
	Samples []NamedSample
	Rates   []NamedRate
	Latency stats.LatencySummary
}

// PhaseViews returns the phases of report in run order
func PhaseViews(report *benchmark.Report) []PhaseView {
	var views []PhaseView
	if b := report.BulkInsert; b != nil {
		views = append(views, PhaseView{
			Key:    benchmark.PhaseBulkInsert,
			Title:  "Bulk insert",
			Totals: b.Totals,
			Samples: []NamedSample{
				{"localProcessing", b.LocalProcessing},
				{"sendData", b.SendData},
				{"remoteProcessing", b.RemoteProcessing},
				{"receiveData", b.ReceiveData},
			},
			Rates: []NamedRate{
				{"remoteProcessingRate", b.RemoteProcessingRate},
				{"localInsertRate", b.LocalInsertRate},
			},
			Latency: b.Latency,
		})
	}
	if c := report.Crud; c != nil {
		views = append(views, PhaseView{
			Key:    benchmark.PhaseCrud,
			Title:  "CRUD",
			Totals: c.Totals,
			Samples: []NamedSample{
				{"localProcessing", c.LocalProcessing},
				{"sendData", c.SendData},
				{"remoteCreateProcessing", c.RemoteCreateProcessing},
				{"remoteReadProcessing", c.RemoteReadProcessing},
				{"remoteUpdateProcessing", c.RemoteUpdateProcessing},
				{"remoteDeleteProcessing", c.RemoteDeleteProcessing},
			},
			Rates: []NamedRate{
				{"remoteCreateProcessingRate", c.RemoteCreateRate},
				{"remoteReadProcessingRate", c.RemoteReadRate},
				{"remoteUpdateProcessingRate", c.RemoteUpdateRate},
				{"remoteDeleteProcessingRate", c.RemoteDeleteRate},
			},
			Latency: c.Latency,
		})
	}
	return views
}

// Write renders report in the configured format to the configured file, or to
// stdout when no file is set
func Write(report *benchmark.Report, thresholds *benchmark.ThresholdResults, cfg *config.Config, stdout io.Writer) error {
	switch cfg.Output.Format {
	case config.FormatHTML:
		return WriteHTML(report, thresholds, cfg)
	case config.FormatJSON, config.FormatCSV, config.FormatConsole:
	default:
		return fmt.Errorf("unknown output format %q", cfg.Output.Format)
	}

	w := stdout
	if cfg.Output.File != "" {
		file, err := os.Create(cfg.Output.File)
		if err != nil {
			return fmt.Errorf("error creating output file: %w", err)
		}
		defer file.Close()
		w = file
	}

	switch cfg.Output.Format {
	case config.FormatJSON:
		return WriteJSON(w, report, thresholds)
	case config.FormatCSV:
		return WriteCSV(w, report)
	default:
		return WriteConsole(w, report, thresholds, "  ")
	}
}

// FormatLatency formats latency values with appropriate units
func FormatLatency(d time.Duration) string {
	microseconds := float64(d) / float64(time.Microsecond)
	if microseconds >= 1_000_000 {
		return fmt.Sprintf("%.2fs", microseconds/1_000_000)
	} else if microseconds >= 1_000 {
		return fmt.Sprintf("%.2fms", microseconds/1_000)
	} else {
		return fmt.Sprintf("%.2fus", microseconds)
	}
}

// secs converts a millisecond measurement to seconds
func secs(ms float64) float64 {
	return ms / 1000
}
