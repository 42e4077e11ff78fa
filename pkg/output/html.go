// Package output handles benchmark result output in various formats
package output

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"time"

	"github.com/docbench_go/pkg/benchmark"
	"github.com/docbench_go/pkg/config"
)

// HTMLReport represents data for the HTML report template
type HTMLReport struct {
	Title      string
	RunID      string
	Timestamp  string
	Target     string
	Phases     []HTMLPhase
	Thresholds []benchmark.ThresholdResult
	Passed     bool
	Config     ConfigSummary
}

// HTMLPhase holds one phase of the report
type HTMLPhase struct {
	Title         string
	TimeTaken     string
	Timeouts      int
	BytesSent     string
	BytesReceived string
	Samples       []SampleRow
	Rates         []RateRow
	Latency       *LatencyResult
}

// SampleRow holds phase duration statistics in seconds
type SampleRow struct {
	Name   string
	Min    string
	Max    string
	Median string
	Mean   string
	StdDev string
}

// RateRow holds one throughput
type RateRow struct {
	Name  string
	Value string
}

// ConfigSummary holds configuration summary
type ConfigSummary struct {
	Connections        int
	DocumentsPerInsert int
	InsertOperations   int
	Crud               string
	Seed               int64
	TLS                bool
	Schema             string
}

// WriteHTML generates an HTML report file
func WriteHTML(report *benchmark.Report, thresholds *benchmark.ThresholdResults, cfg *config.Config) error {
	// Determine output destination
	outputFile := cfg.Output.File
	if outputFile == "" {
		outputFile = "docbench-report.html"
	}

	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("error creating HTML file: %w", err)
	}
	defer f.Close()

	if err := RenderHTML(f, report, thresholds, cfg); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "HTML report saved to: %s\n", outputFile)
	return nil
}

// RenderHTML executes the report template into w
func RenderHTML(w io.Writer, report *benchmark.Report, thresholds *benchmark.ThresholdResults, cfg *config.Config) error {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("error parsing HTML template: %w", err)
	}

	if err := tmpl.Execute(w, buildHTMLReport(report, thresholds, cfg)); err != nil {
		return fmt.Errorf("error executing HTML template: %w", err)
	}
	return nil
}

func buildHTMLReport(report *benchmark.Report, thresholds *benchmark.ThresholdResults, cfg *config.Config) HTMLReport {
	out := HTMLReport{
		Title:     report.Name,
		RunID:     report.RunID,
		Timestamp: report.StartedAt.Format(time.RFC1123),
		Target:    report.Target,
		Passed:    true,
		Config: ConfigSummary{
			Connections: cfg.Settings.NumConnections,
			Seed:        cfg.Settings.Seed,
			TLS:         cfg.Target.HTTPS,
			Schema:      cfg.Settings.DocumentSchemaFile,
		},
	}
	if bulk := cfg.Settings.BulkInsert; !bulk.Skip {
		out.Config.DocumentsPerInsert = bulk.DocumentsPerInsert
		out.Config.InsertOperations = bulk.InsertOperations
	}
	if c := cfg.Settings.Crud; !c.Skip {
		out.Config.Crud = fmt.Sprintf("%d / %d / %d / %d", c.Creates, c.Reads, c.Updates, c.Deletes)
	}

	result := BuildResult(report, nil)
	for _, view := range PhaseViews(report) {
		phase := HTMLPhase{
			Title:         view.Title,
			TimeTaken:     printer.Sprintf("%.3f secs", view.Totals.TimeTaken.Seconds()),
			Timeouts:      view.Totals.ConnectionTimeouts,
			BytesSent:     printer.Sprintf("%d", view.Totals.TotalJSONBytesSent),
			BytesReceived: printer.Sprintf("%d", view.Totals.TotalJSONBytesReceived),
			Latency:       result.Phases[view.Key].Latency,
		}
		for _, s := range view.Samples {
			phase.Samples = append(phase.Samples, SampleRow{
				Name:   s.Name,
				Min:    printer.Sprintf("%.3f", secs(s.Sample.Min)),
				Max:    printer.Sprintf("%.3f", secs(s.Sample.Max)),
				Median: printer.Sprintf("%.3f", secs(s.Sample.Median)),
				Mean:   printer.Sprintf("%.3f", secs(s.Sample.Mean)),
				StdDev: printer.Sprintf("%.3f", secs(s.Sample.Deviation)),
			})
		}
		for _, r := range view.Rates {
			phase.Rates = append(phase.Rates, RateRow{Name: r.Name, Value: printer.Sprintf("%.3f", r.Value)})
		}
		out.Phases = append(out.Phases, phase)
	}

	if thresholds != nil {
		out.Thresholds = thresholds.Results
		out.Passed = thresholds.Passed
	}
	return out
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{if .Title}}{{.Title}} - {{end}}Document Database Benchmark</title>
    <style>
        :root {
            --bg-primary: #0d1117;
            --bg-secondary: #161b22;
            --text-primary: #c9d1d9;
            --text-secondary: #8b949e;
            --accent: #58a6ff;
            --success: #3fb950;
            --error: #f85149;
            --border: #30363d;
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.6;
            padding: 2rem;
        }
        .container { max-width: 1100px; margin: 0 auto; }
        header {
            text-align: center;
            margin-bottom: 2rem;
            padding-bottom: 1rem;
            border-bottom: 1px solid var(--border);
        }
        .meta { color: var(--text-secondary); font-size: 0.9rem; }
        .cards {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 1rem;
            margin-bottom: 1rem;
        }
        .card {
            background: var(--bg-secondary);
            border: 1px solid var(--border);
            border-radius: 8px;
            padding: 1rem;
        }
        .card h3 { font-size: 0.8rem; color: var(--text-secondary); text-transform: uppercase; }
        .card .value { font-size: 1.5rem; font-weight: 600; }
        .value.error, td.error { color: var(--error); }
        .value.success, td.success { color: var(--success); }
        section {
            background: var(--bg-secondary);
            border: 1px solid var(--border);
            border-radius: 8px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
        }
        section h2 { font-size: 1.1rem; margin-bottom: 1rem; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 1rem; }
        th, td { padding: 0.5rem 0.75rem; text-align: left; border-bottom: 1px solid var(--border); }
        th { color: var(--text-secondary); font-weight: 500; font-size: 0.85rem; }
        td.num { font-family: monospace; text-align: right; }
        footer { text-align: center; color: var(--text-secondary); font-size: 0.85rem; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>{{if .Title}}{{.Title}}{{else}}Document Database Benchmark{{end}}</h1>
            <p class="meta">{{.Target}} &middot; {{.Timestamp}} &middot; run {{.RunID}}</p>
        </header>

        {{range .Phases}}
        <section>
            <h2>{{.Title}}</h2>
            <div class="cards">
                <div class="card"><h3>Time Taken</h3><div class="value">{{.TimeTaken}}</div></div>
                <div class="card"><h3>Connection Timeouts</h3><div class="value {{if gt .Timeouts 0}}error{{else}}success{{end}}">{{.Timeouts}}</div></div>
                <div class="card"><h3>JSON Bytes Sent</h3><div class="value">{{.BytesSent}}</div></div>
                <div class="card"><h3>JSON Bytes Received</h3><div class="value">{{.BytesReceived}}</div></div>
            </div>
            <table>
                <thead>
                    <tr><th>Phase (secs)</th><th>Min</th><th>Max</th><th>Median</th><th>Mean</th><th>SD</th></tr>
                </thead>
                <tbody>
                    {{range .Samples}}
                    <tr>
                        <td>{{.Name}}</td>
                        <td class="num">{{.Min}}</td>
                        <td class="num">{{.Max}}</td>
                        <td class="num">{{.Median}}</td>
                        <td class="num">{{.Mean}}</td>
                        <td class="num">{{.StdDev}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
            <table>
                <thead><tr><th>Rate</th><th>docs/sec</th></tr></thead>
                <tbody>
                    {{range .Rates}}
                    <tr><td>{{.Name}}</td><td class="num">{{.Value}}</td></tr>
                    {{end}}
                </tbody>
            </table>
            {{with .Latency}}
            <table>
                <thead><tr><th>Requests</th><th>Mean</th><th>p50</th><th>p90</th><th>p99</th><th>Max</th></tr></thead>
                <tbody>
                    <tr>
                        <td class="num">{{.Count}}</td>
                        <td class="num">{{.Mean}}</td>
                        <td class="num">{{.P50}}</td>
                        <td class="num">{{.P90}}</td>
                        <td class="num">{{.P99}}</td>
                        <td class="num">{{.Max}}</td>
                    </tr>
                </tbody>
            </table>
            {{end}}
        </section>
        {{end}}

        {{if .Thresholds}}
        <section>
            <h2>Thresholds: {{if .Passed}}passed{{else}}failed{{end}}</h2>
            <table>
                <thead><tr><th>Threshold</th><th>Expected</th><th>Actual</th><th>Result</th></tr></thead>
                <tbody>
                    {{range .Thresholds}}
                    <tr>
                        <td>{{.Name}}</td>
                        <td>{{.Expected}}</td>
                        <td>{{.Actual}}</td>
                        <td class="{{if .Passed}}success{{else}}error{{end}}">{{if .Passed}}PASS{{else}}FAIL{{end}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </section>
        {{end}}

        <section>
            <h2>Configuration</h2>
            <table>
                <tbody>
                    <tr><td>Connections</td><td>{{.Config.Connections}}</td></tr>
                    {{if .Config.InsertOperations}}<tr><td>Bulk insert</td><td>{{.Config.InsertOperations}} x {{.Config.DocumentsPerInsert}} documents</td></tr>{{end}}
                    {{if .Config.Crud}}<tr><td>CRUD (c/r/u/d)</td><td>{{.Config.Crud}}</td></tr>{{end}}
                    <tr><td>Seed</td><td>{{.Config.Seed}}</td></tr>
                    <tr><td>TLS</td><td>{{if .Config.TLS}}Enabled{{else}}Disabled{{end}}</td></tr>
                    {{if .Config.Schema}}<tr><td>Schema</td><td>{{.Config.Schema}}</td></tr>{{end}}
                </tbody>
            </table>
        </section>

        <footer>
            <p>Generated by docbench</p>
        </footer>
    </div>
</body>
</html>`
