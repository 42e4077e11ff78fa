// Package main is the entry point for the benchmarking tool
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/docbench_go/pkg/benchmark"
	"github.com/docbench_go/pkg/config"
	"github.com/docbench_go/pkg/metrics"
	"github.com/docbench_go/pkg/output"
)

const version = "1.0.0"

// errThresholdsFailed is returned when the run completed but a threshold failed
var errThresholdsFailed = errors.New("one or more thresholds failed")

func main() {
	if err := rootCmd().Execute(); err != nil {
		if errors.Is(err, errThresholdsFailed) {
			exitWithError(2, "%v", err)
		}
		exitWithError(1, "%v", err)
	}
}

// rootCmd is the root command that gets called from main.
func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "docbench",
		Short:         "docbench measures bulk insert and CRUD throughput of document databases.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(runCmd(), versionCmd())
	return cmd
}

func runCmd() *cobra.Command {
	flags := &CLIFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bulk insert and CRUD phases against a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags, cmd.Flags(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	addFlags(cmd.Flags(), flags)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docbench version %s\n", version)
		},
	}
}

// run executes one benchmark and writes its results
func run(ctx context.Context, flags *CLIFlags, fs *pflag.FlagSet, stdout, stderr io.Writer) error {
	if err := validateFlags(flags); err != nil {
		return err
	}

	cfg, err := loadConfiguration(flags, fs)
	if err != nil {
		return err
	}

	logger, err := newLogger(stderr, flags, cfg.IsMachineReadable())
	if err != nil {
		return err
	}

	// Machine readable results on stdout push everything else to stderr
	progressOut := stdout
	if cfg.IsMachineReadable() {
		progressOut = stderr
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle Ctrl+C
	setupSignalHandler(ctx, cancel, progressOut, flags.QuietMode)

	runner := benchmark.NewRunner(cfg, logger)
	runner.Out = progressOut
	runner.QuietMode = flags.QuietMode
	runner.VerboseMode = flags.VerboseMode

	if cfg.Metrics.Address != "" {
		runner.Metrics = metrics.New()
		go serveMetrics(ctx, cfg.Metrics.Address, runner.Metrics, logger)
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	thresholds, err := benchmark.EvaluateThresholds(report, &cfg.Thresholds)
	if err != nil {
		return err
	}

	if err := writeResults(report, thresholds, cfg, stdout, flags.QuietMode); err != nil {
		return err
	}
	if !thresholds.Passed {
		return errThresholdsFailed
	}
	return nil
}

func serveMetrics(ctx context.Context, address string, m *metrics.Metrics, logger logrus.FieldLogger) {
	if err := metrics.Serve(ctx, address, m, logger); err != nil {
		logger.WithError(err).Error("metrics server failed")
	}
}

// setupSignalHandler sets up handling for Ctrl+C
func setupSignalHandler(ctx context.Context, cancel context.CancelFunc, out io.Writer, quietMode bool) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		defer signal.Stop(c)
		select {
		case <-c:
			if !quietMode {
				fmt.Fprintln(out, "\nBenchmark interrupted, shutting down...")
			}
			cancel()
		case <-ctx.Done():
		}
	}()
}

// writeResults writes the benchmark results in the appropriate format
func writeResults(report *benchmark.Report, thresholds *benchmark.ThresholdResults, cfg *config.Config, stdout io.Writer, quietMode bool) error {
	if quietMode && cfg.Output.Format == config.FormatConsole && cfg.Output.File == "" {
		if err := output.WriteConsoleQuiet(stdout, report); err != nil {
			return err
		}
		if !thresholds.Passed {
			_, err := io.WriteString(stdout, thresholds.FormatResults())
			return err
		}
		return nil
	}
	return output.Write(report, thresholds, cfg, stdout)
}
