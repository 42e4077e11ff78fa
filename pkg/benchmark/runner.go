// Package benchmark runs the bulk insert and CRUD phases and reduces their statistics
package benchmark

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/docbench_go/pkg/bulkinsert"
	"github.com/docbench_go/pkg/config"
	"github.com/docbench_go/pkg/crud"
	"github.com/docbench_go/pkg/document"
	"github.com/docbench_go/pkg/metrics"
	"github.com/docbench_go/pkg/progress"
	"github.com/docbench_go/pkg/reactor"
	"github.com/docbench_go/pkg/stats"
)

// Phase names used for logging and metrics
const (
	PhaseBulkInsert = "bulkInsert"
	PhaseCrud       = "crud"
)

// Report is the result of one benchmark run
type Report struct {
	RunID       string             `json:"runId"`
	Name        string             `json:"name,omitempty"`
	Target      string             `json:"target"`
	StartedAt   time.Time          `json:"startedAt"`
	Connections int                `json:"connections"`
	BulkInsert  *BulkInsertResults `json:"bulkInsert,omitempty"`
	Crud        *CrudResults       `json:"crud,omitempty"`
}

// Runner executes benchmarks
type Runner struct {
	Config      *config.Config
	Logger      logrus.FieldLogger
	Metrics     *metrics.Metrics
	Out         io.Writer // start banner and progress bars
	QuietMode   bool
	VerboseMode bool
	Clock       stats.Clock
}

// NewRunner creates a new benchmark runner
func NewRunner(cfg *config.Config, logger logrus.FieldLogger) *Runner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{
		Config: cfg,
		Logger: logger,
		Out:    os.Stdout,
	}
}

// Run executes the configured phases in order: bulk insert, then CRUD
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	cfg := r.Config
	schema, err := r.loadSchema()
	if err != nil {
		return nil, err
	}

	layout := r.layout()
	counts := r.counts()
	if !cfg.Settings.Crud.Skip {
		if err := crud.CheckCounts(counts, layout.DocumentsPerConnection()); err != nil {
			return nil, fmt.Errorf("invalid crud settings: %w", err)
		}
	}

	dialer, err := r.newDialer()
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       uuid.NewString(),
		Name:        cfg.Name,
		Target:      dialer.Address(),
		StartedAt:   time.Now(),
		Connections: cfg.Settings.NumConnections,
	}
	logger := r.Logger.WithField("run", report.RunID)

	if !r.QuietMode {
		r.printBenchmarkStart(report)
	}

	if !cfg.Settings.BulkInsert.Skip {
		results, err := r.runBulkInsert(ctx, logger, dialer, schema, layout)
		if err != nil {
			return nil, err
		}
		report.BulkInsert = results
	}

	if !cfg.Settings.Crud.Skip {
		results, err := r.runCrud(ctx, logger, dialer, schema, layout, counts)
		if err != nil {
			return nil, err
		}
		report.Crud = results
	}

	return report, nil
}

// layout returns the bulk insert shape; it is empty when the phase is skipped
func (r *Runner) layout() bulkinsert.Layout {
	bulk := r.Config.Settings.BulkInsert
	if bulk.Skip {
		return bulkinsert.Layout{}
	}
	return bulkinsert.Layout{
		DocumentsPerInsert: bulk.DocumentsPerInsert,
		InsertOperations:   bulk.InsertOperations,
	}
}

func (r *Runner) counts() crud.Counts {
	c := r.Config.Settings.Crud
	return crud.Counts{Creates: c.Creates, Reads: c.Reads, Updates: c.Updates, Deletes: c.Deletes}
}

func (r *Runner) loadSchema() (*document.Schema, error) {
	path := r.Config.Settings.DocumentSchemaFile
	if path == "" {
		return document.DefaultSchema(), nil
	}
	schema, err := document.LoadSchema(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load document schema: %w", err)
	}
	return schema, nil
}

func (r *Runner) newDialer() (reactor.Dialer, error) {
	target := r.Config.Target
	if !target.HTTPS {
		return reactor.NewPlainDialer(target.Address), nil
	}
	dialer, err := reactor.NewTLSDialer(target.Address, reactor.TLSOptions{
		Insecure: target.Insecure,
		CAFile:   target.CAFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}
	return dialer, nil
}

func (r *Runner) newReactor(dialer reactor.Dialer, logger logrus.FieldLogger, phase string, bar *progress.Bar) (*reactor.Reactor, error) {
	return reactor.New(dialer,
		reactor.WithCredentials(r.Config.Target.Credentials),
		reactor.WithConnectTimeout(r.Config.ConnectTimeout()),
		reactor.WithConnectionTimeout(r.Config.ConnectionTimeout()),
		reactor.WithLogger(logger),
		reactor.WithMetrics(r.Metrics.Phase(phase)),
		reactor.OnConnectionDone(func(i int, timedOut bool) {
			if timedOut {
				logger.WithField("connection", i).Warn("connection timed out")
			}
			bar.ConnectionDone(timedOut)
		}),
	)
}

// runBulkInsert inserts every connection's batches and aggregates the statistics
func (r *Runner) runBulkInsert(ctx context.Context, logger logrus.FieldLogger, dialer reactor.Dialer, schema *document.Schema, layout bulkinsert.Layout) (*BulkInsertResults, error) {
	n := r.Config.Settings.NumConnections
	logger = logger.WithField("phase", PhaseBulkInsert)

	generators, err := r.newGenerators(ctx, schema, layout)
	if err != nil {
		return nil, err
	}

	bar := progress.NewBar(r.Out, "bulk insert", n, r.QuietMode)
	defer bar.Close()

	rx, err := r.newReactor(dialer, logger, PhaseBulkInsert, bar)
	if err != nil {
		return nil, err
	}

	statistics := make([]stats.BulkInsertStatistics, n)
	for i := range statistics {
		statistics[i] = stats.NewBulkInsertStatistics(r.Clock)
	}

	logger.WithFields(logrus.Fields{
		"connections":        n,
		"documentsPerInsert": layout.DocumentsPerInsert,
		"insertOperations":   layout.InsertOperations,
	}).Info("starting bulk insert")

	err = rx.Run(ctx, n, func(i int) reactor.Handler {
		return bulkinsert.NewHandler(i, r.Config.Target.BulkInsertPath, generators[i], statistics[i])
	})
	if err != nil {
		return nil, fmt.Errorf("bulk insert failed: %w", err)
	}
	bar.ForceComplete()

	results := NewBulkInsertResults(layout.DocumentsPerConnection(), statistics)
	logger.WithFields(logrus.Fields{
		"timeTaken":            results.TimeTaken,
		"timeouts":             results.ConnectionTimeouts,
		"remoteProcessingRate": results.RemoteProcessingRate,
	}).Info("bulk insert finished")
	return results, nil
}

// newGenerators builds the generator of every connection. Precomputed payloads are
// generated in parallel before any connection is opened.
func (r *Runner) newGenerators(ctx context.Context, schema *document.Schema, layout bulkinsert.Layout) ([]bulkinsert.Generator, error) {
	settings := r.Config.Settings
	opts := bulkinsert.Options{
		Schema:         schema,
		Layout:         layout,
		Seed:           settings.Seed,
		MaxArrayLength: settings.MaxArrayLength,
	}

	generators := make([]bulkinsert.Generator, settings.NumConnections)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range generators {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gen, err := bulkinsert.New(settings.BulkInsert.Precompute, i, opts)
			if err != nil {
				return fmt.Errorf("connection %d: %w", i, err)
			}
			generators[i] = gen
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to generate bulk insert payloads: %w", err)
	}

	if r.VerboseMode && !r.QuietMode && settings.BulkInsert.Precompute {
		fmt.Fprintf(r.Out, "[verbose] Precomputed %d batches per connection\n", layout.InsertOperations)
	}
	return generators, nil
}

// runCrud runs every connection's script and aggregates the statistics
func (r *Runner) runCrud(ctx context.Context, logger logrus.FieldLogger, dialer reactor.Dialer, schema *document.Schema, layout bulkinsert.Layout, counts crud.Counts) (*CrudResults, error) {
	settings := r.Config.Settings
	n := settings.NumConnections
	logger = logger.WithField("phase", PhaseCrud)

	scripts := make([]crud.Script, n)
	for i := range scripts {
		ids := crud.IDSpaceFor(i, n, layout.DocumentsPerConnection(), counts.Creates)
		script, err := crud.NewScript(counts, ids, CrudSeed(settings.Seed, i))
		if err != nil {
			return nil, fmt.Errorf("connection %d: %w", i, err)
		}
		scripts[i] = script
		if r.VerboseMode {
			logger.WithField("connection", i).Debugf("script: %s", script)
		}
	}

	bar := progress.NewBar(r.Out, "crud", n, r.QuietMode)
	defer bar.Close()

	rx, err := r.newReactor(dialer, logger, PhaseCrud, bar)
	if err != nil {
		return nil, err
	}

	statistics := make([]stats.CrudStatistics, n)
	for i := range statistics {
		statistics[i] = stats.NewCrudStatistics(r.Clock)
	}

	logger.WithFields(logrus.Fields{
		"connections": n,
		"creates":     counts.Creates,
		"reads":       counts.Reads,
		"updates":     counts.Updates,
		"deletes":     counts.Deletes,
	}).Info("starting crud")

	err = rx.Run(ctx, n, func(i int) reactor.Handler {
		values := document.NewRandomValues(CrudSeed(settings.Seed, i), settings.MaxArrayLength)
		return crud.NewHandler(i, r.Config.Target.CrudPath, scripts[i], schema, values, statistics[i])
	})
	if err != nil {
		return nil, fmt.Errorf("crud failed: %w", err)
	}
	bar.ForceComplete()

	results := NewCrudResults(counts, statistics)
	logger.WithFields(logrus.Fields{
		"timeTaken": results.TimeTaken,
		"timeouts":  results.ConnectionTimeouts,
	}).Info("crud finished")
	return results, nil
}

// CrudSeed derives the seed of one connection's CRUD script and values. It is
// distinct from every bulk insert batch seed of the same connection.
func CrudSeed(seed int64, connection int) int64 {
	return bulkinsert.BatchSeed(^seed, connection, -1)
}

// printBenchmarkStart prints the benchmark configuration at start
func (r *Runner) printBenchmarkStart(report *Report) {
	cfg := r.Config
	if cfg.Name != "" {
		fmt.Fprintf(r.Out, "Benchmark: %s\n", cfg.Name)
	}
	if cfg.Description != "" {
		fmt.Fprintf(r.Out, "Description: %s\n", cfg.Description)
	}
	fmt.Fprintf(r.Out, "Benchmarking %s using %d connections\n", report.Target, cfg.Settings.NumConnections)

	if bulk := cfg.Settings.BulkInsert; !bulk.Skip {
		fmt.Fprintf(r.Out, "  Bulk insert: %d batches of %d documents per connection to %s\n",
			bulk.InsertOperations, bulk.DocumentsPerInsert, cfg.Target.BulkInsertPath)
	}
	if c := cfg.Settings.Crud; !c.Skip {
		fmt.Fprintf(r.Out, "  CRUD: %d creates, %d reads, %d updates, %d deletes per connection under %s\n",
			c.Creates, c.Reads, c.Updates, c.Deletes, cfg.Target.CrudPath)
	}

	// Print additional info in verbose mode
	if r.VerboseMode {
		fmt.Fprintf(r.Out, "  Run ID: %s\n", report.RunID)
		fmt.Fprintf(r.Out, "  Seed: %d\n", cfg.Settings.Seed)
		if cfg.Target.HTTPS {
			fmt.Fprintln(r.Out, "  Transport: TLS")
		}
		if timeout := cfg.ConnectionTimeout(); timeout > 0 {
			fmt.Fprintf(r.Out, "  Connection timeout: %s\n", timeout)
		}
		if cfg.Settings.DocumentSchemaFile != "" {
			fmt.Fprintf(r.Out, "  Schema: %s\n", cfg.Settings.DocumentSchemaFile)
		}
	}
	fmt.Fprintln(r.Out)
}
