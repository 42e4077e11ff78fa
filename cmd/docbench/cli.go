// Package main is the entry point for the benchmarking tool
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/docbench_go/pkg/config"
)

// CLIFlags holds all command line flags
type CLIFlags struct {
	ConfigFile string

	Connections        int
	Address            string
	Database           string
	BulkInsertPath     string
	CrudPath           string
	DocumentsPerInsert int
	InsertOperations   int
	Precompute         bool
	Creates            int
	Reads              int
	Updates            int
	Deletes            int
	SkipBulkInsert     bool
	SkipCrud           bool
	SchemaFile         string
	Seed               int64
	MaxArrayLength     int

	HTTPS             bool
	Insecure          bool
	CAFile            string
	Credentials       string
	ConnectTimeout    string
	ConnectionTimeout string

	OutputFormat   string
	OutputFile     string
	MetricsAddress string

	LogLevel    string
	QuietMode   bool
	VerboseMode bool
}

// addFlags registers the run flags on fs
func addFlags(fs *pflag.FlagSet, flags *CLIFlags) {
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to JSON or YAML configuration file")

	fs.IntVarP(&flags.Connections, "connections", "c", 10, "Number of concurrent connections")
	fs.StringVar(&flags.Address, "address", "localhost:5984", "Database server host:port")
	fs.StringVar(&flags.Database, "database", "docbench", "Database name used to derive the request paths")
	fs.StringVar(&flags.BulkInsertPath, "bulk-insert-path", "", "Bulk insert path (default /<database>/_bulk_docs)")
	fs.StringVar(&flags.CrudPath, "crud-path", "", "Document path prefix (default /<database>)")

	fs.IntVar(&flags.DocumentsPerInsert, "documents-per-insert", 100, "Documents per bulk insert request")
	fs.IntVar(&flags.InsertOperations, "insert-operations", 20, "Bulk insert requests per connection")
	fs.BoolVar(&flags.Precompute, "precompute", false, "Generate every bulk insert payload before connecting")
	fs.IntVar(&flags.Creates, "creates", 100, "Creates per connection")
	fs.IntVar(&flags.Reads, "reads", 100, "Reads per connection")
	fs.IntVar(&flags.Updates, "updates", 100, "Updates per connection")
	fs.IntVar(&flags.Deletes, "deletes", 100, "Deletes per connection")
	fs.BoolVar(&flags.SkipBulkInsert, "skip-bulk-insert", false, "Do not run the bulk insert phase")
	fs.BoolVar(&flags.SkipCrud, "skip-crud", false, "Do not run the CRUD phase")
	fs.StringVar(&flags.SchemaFile, "schema", "", "Document schema file (default: built-in schema)")
	fs.Int64Var(&flags.Seed, "seed", 0, "Seed for generated documents and CRUD scripts")
	fs.IntVar(&flags.MaxArrayLength, "max-array-length", 4, "Maximum length of generated arrays")

	fs.BoolVar(&flags.HTTPS, "https", false, "Connect using TLS")
	fs.BoolVarP(&flags.Insecure, "insecure", "k", false, "Skip TLS certificate verification")
	fs.StringVar(&flags.CAFile, "ca-file", "", "PEM file with additional trusted CAs")
	fs.StringVar(&flags.Credentials, "credentials", "", "Basic auth credentials as user:password (env DOCBENCH_CREDENTIALS)")
	fs.StringVar(&flags.ConnectTimeout, "connect-timeout", "10s", "Timeout for establishing each connection")
	fs.StringVar(&flags.ConnectionTimeout, "connection-timeout", "", "Per connection time limit for a phase (e.g. 5m)")

	fs.StringVarP(&flags.OutputFormat, "output", "o", "", "Output format: console, json, csv or html")
	fs.StringVar(&flags.OutputFile, "output-file", "", "Output file path (default: stdout, docbench-report.html for html)")
	fs.StringVar(&flags.MetricsAddress, "metrics-address", "", "Serve Prometheus metrics on this address during the run")

	fs.StringVar(&flags.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	fs.BoolVarP(&flags.QuietMode, "quiet", "q", false, "Quiet mode - only show final summary")
	fs.BoolVarP(&flags.VerboseMode, "verbose", "V", false, "Verbose mode - show detailed run info")
}

// validateFlags validates the parsed flags and returns any errors
func validateFlags(flags *CLIFlags) error {
	// Verbose and quiet are mutually exclusive
	if flags.VerboseMode && flags.QuietMode {
		return fmt.Errorf("--verbose and --quiet cannot be used together")
	}
	if flags.SkipBulkInsert && flags.SkipCrud {
		return fmt.Errorf("--skip-bulk-insert and --skip-crud cannot be used together")
	}
	return nil
}

// loadConfiguration loads the configuration file when given and applies the
// flags that were set explicitly on top of it
func loadConfiguration(flags *CLIFlags, fs *pflag.FlagSet) (*config.Config, error) {
	cfg := &config.Config{}
	if flags.ConfigFile != "" {
		loaded, err := config.Load(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := applyConfigOverrides(cfg, flags, fs); err != nil {
		return nil, err
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyConfigOverrides applies CLI flag overrides to config loaded from file
func applyConfigOverrides(cfg *config.Config, flags *CLIFlags, fs *pflag.FlagSet) error {
	changed := fs.Changed

	if changed("connections") {
		cfg.Settings.NumConnections = flags.Connections
	}
	if changed("address") {
		cfg.Target.Address = flags.Address
	}
	if changed("database") {
		// Paths derived from the old name are derived again
		cfg.Target.DatabaseName = flags.Database
		cfg.Target.BulkInsertPath = ""
		cfg.Target.CrudPath = ""
	}
	if changed("bulk-insert-path") {
		cfg.Target.BulkInsertPath = flags.BulkInsertPath
	}
	if changed("crud-path") {
		cfg.Target.CrudPath = flags.CrudPath
	}

	if changed("documents-per-insert") {
		cfg.Settings.BulkInsert.DocumentsPerInsert = flags.DocumentsPerInsert
	}
	if changed("insert-operations") {
		cfg.Settings.BulkInsert.InsertOperations = flags.InsertOperations
	}
	if flags.Precompute {
		cfg.Settings.BulkInsert.Precompute = true
	}
	if flags.SkipBulkInsert {
		cfg.Settings.BulkInsert.Skip = true
	}
	if flags.SkipCrud {
		cfg.Settings.Crud.Skip = true
	}

	crudChanged := false
	for _, o := range []struct {
		name  string
		value int
		dst   *int
	}{
		{"creates", flags.Creates, &cfg.Settings.Crud.Creates},
		{"reads", flags.Reads, &cfg.Settings.Crud.Reads},
		{"updates", flags.Updates, &cfg.Settings.Crud.Updates},
		{"deletes", flags.Deletes, &cfg.Settings.Crud.Deletes},
	} {
		if changed(o.name) {
			*o.dst = o.value
			crudChanged = true
		}
	}
	if crudChanged && flags.ConfigFile == "" {
		// Counts not given on the command line keep their flag defaults
		for _, o := range []struct {
			value int
			dst   *int
		}{
			{flags.Creates, &cfg.Settings.Crud.Creates},
			{flags.Reads, &cfg.Settings.Crud.Reads},
			{flags.Updates, &cfg.Settings.Crud.Updates},
			{flags.Deletes, &cfg.Settings.Crud.Deletes},
		} {
			if *o.dst == 0 {
				*o.dst = o.value
			}
		}
	}

	if changed("schema") {
		cfg.Settings.DocumentSchemaFile = flags.SchemaFile
	}
	if changed("seed") {
		cfg.Settings.Seed = flags.Seed
	}
	if changed("max-array-length") {
		cfg.Settings.MaxArrayLength = flags.MaxArrayLength
	}

	if flags.HTTPS {
		cfg.Target.HTTPS = true
	}
	if flags.Insecure {
		cfg.Target.Insecure = true
	}
	if changed("ca-file") {
		cfg.Target.CAFile = flags.CAFile
	}
	if changed("connect-timeout") {
		cfg.Target.ConnectTimeout = flags.ConnectTimeout
	}
	if changed("connection-timeout") {
		cfg.Target.ConnectionTimeout = flags.ConnectionTimeout
	}

	credentials, err := resolveCredentials(fs)
	if err != nil {
		return err
	}
	if credentials != "" {
		cfg.Target.Credentials = credentials
	}

	if flags.OutputFormat != "" {
		cfg.Output.Format = strings.ToLower(flags.OutputFormat)
	}
	if flags.OutputFile != "" {
		cfg.Output.File = flags.OutputFile
	}
	if changed("metrics-address") {
		cfg.Metrics.Address = flags.MetricsAddress
	}
	return nil
}

// resolveCredentials reads --credentials, falling back to DOCBENCH_CREDENTIALS
// so that secrets can stay out of the process arguments
func resolveCredentials(fs *pflag.FlagSet) (string, error) {
	v := viper.New()
	v.SetEnvPrefix("docbench")
	if err := v.BindEnv("credentials"); err != nil {
		return "", err
	}
	if err := v.BindPFlag("credentials", fs.Lookup("credentials")); err != nil {
		return "", err
	}
	return v.GetString("credentials"), nil
}

// newLogger builds the logger used for diagnostics. Logs always go to out so
// that stdout only carries results.
func newLogger(out io.Writer, flags *CLIFlags, machineReadable bool) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(flags.LogLevel)
	if err != nil {
		return nil, err
	}
	switch {
	case flags.VerboseMode:
		level = logrus.DebugLevel
	case (flags.QuietMode || machineReadable) && level > logrus.WarnLevel:
		level = logrus.WarnLevel
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger, nil
}

// exitWithError prints an error message and exits
func exitWithError(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(code)
}
