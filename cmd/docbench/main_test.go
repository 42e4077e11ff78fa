package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/docbench_go/internal/couchtest"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func parse(t *testing.T, args ...string) (*CLIFlags, *pflag.FlagSet) {
	t.Helper()
	flags := &CLIFlags{}
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	addFlags(fs, flags)
	require.NoError(t, fs.Parse(args))
	return flags, fs
}

func TestRun_JSONToStdout(t *testing.T) {
	server := couchtest.NewServer(t, "bench")

	stdout, _, err := execute(t, "run",
		"--address", server.Address(),
		"--database", "bench",
		"-c", "2",
		"--documents-per-insert", "3",
		"--insert-operations", "2",
		"--creates", "1", "--reads", "2", "--updates", "1", "--deletes", "1",
		"-o", "json",
	)
	require.NoError(t, err)

	require.True(t, gjson.Valid(stdout), stdout)
	assert.Equal(t, server.Address(), gjson.Get(stdout, "target").String())
	assert.Equal(t, int64(2), gjson.Get(stdout, "connections").Int())
	assert.True(t, gjson.Get(stdout, "phases.bulkInsert").Exists())
	assert.True(t, gjson.Get(stdout, "phases.crud").Exists())
	assert.Equal(t, int64(0), gjson.Get(stdout, "phases.crud.connection_timeouts").Int())

	// 2 connections x 2 batches, then 2 x (1 + 2 + 1 + 1) document requests
	assert.Equal(t, 14, len(server.Requests()))
}

func TestRun_QuietConsole(t *testing.T) {
	server := couchtest.NewServer(t, "docbench")

	stdout, _, err := execute(t, "run",
		"--address", server.Address(),
		"-c", "1",
		"--skip-bulk-insert",
		"--creates", "2", "--reads", "0", "--updates", "0", "--deletes", "0",
		"-q",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "CRUD: ")
	assert.NotContains(t, stdout, "Bulk insert")
	assert.Equal(t, 2, len(server.Requests()))
}

func TestRun_ThresholdFailure(t *testing.T) {
	server := couchtest.NewServer(t, "docbench")
	dir := t.TempDir()
	file := filepath.Join(dir, "bench.yaml")
	content := "settings:\n" +
		"  numConnections: 1\n" +
		"  bulkInsert:\n" +
		"    documentsPerInsert: 2\n" +
		"    insertOperations: 1\n" +
		"  crud:\n" +
		"    skip: true\n" +
		"thresholds:\n" +
		"  minRemoteProcessingRate: 1000000000000.0\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	stdout, _, err := execute(t, "run", "--config", file, "--address", server.Address())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errThresholdsFailed))
	assert.Contains(t, stdout, "✗ FAIL: Remote Processing Rate")
}

func TestRun_InvalidFlags(t *testing.T) {
	_, _, err := execute(t, "run", "--verbose", "--quiet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be used together")

	_, _, err = execute(t, "run", "-c", "0", "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRun_ConnectFailure(t *testing.T) {
	_, _, err := execute(t, "run", "--address", "127.0.0.1:1", "-c", "1", "-q", "--connect-timeout", "1s")
	require.Error(t, err)
	assert.False(t, errors.Is(err, errThresholdsFailed))
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "docbench version "+version+"\n", stdout)
}

func TestLoadConfiguration_DatabaseDerivesPaths(t *testing.T) {
	flags, fs := parse(t, "--database", "orders")
	cfg, err := loadConfiguration(flags, fs)
	require.NoError(t, err)

	assert.Equal(t, "/orders/_bulk_docs", cfg.Target.BulkInsertPath)
	assert.Equal(t, "/orders", cfg.Target.CrudPath)
	assert.Equal(t, 10, cfg.Settings.NumConnections)
	assert.Equal(t, 100, cfg.Settings.Crud.Reads)
}

func TestLoadConfiguration_FileWithOverrides(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bench.json")
	content := `{
		"name": "from-file",
		"settings": {"numConnections": 4, "crud": {"creates": 5, "reads": 6, "updates": 7, "deletes": 8}},
		"target": {"address": "db:5984", "crudPath": "/custom/"}
	}`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	flags, fs := parse(t, "--config", file, "-c", "12", "--reads", "1", "-o", "CSV")
	cfg, err := loadConfiguration(flags, fs)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, 12, cfg.Settings.NumConnections)
	assert.Equal(t, "db:5984", cfg.Target.Address)
	assert.Equal(t, "/custom", cfg.Target.CrudPath)
	assert.Equal(t, 5, cfg.Settings.Crud.Creates)
	assert.Equal(t, 1, cfg.Settings.Crud.Reads)
	assert.Equal(t, 8, cfg.Settings.Crud.Deletes)
	assert.Equal(t, "csv", cfg.Output.Format)
}

func TestLoadConfiguration_CrudFlagsKeepDefaults(t *testing.T) {
	flags, fs := parse(t, "--creates", "3")
	cfg, err := loadConfiguration(flags, fs)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Settings.Crud.Creates)
	assert.Equal(t, 100, cfg.Settings.Crud.Reads)
	assert.Equal(t, 100, cfg.Settings.Crud.Updates)
	assert.Equal(t, 100, cfg.Settings.Crud.Deletes)
}

func TestLoadConfiguration_CredentialsFromEnv(t *testing.T) {
	t.Setenv("DOCBENCH_CREDENTIALS", "admin:fromenv")

	flags, fs := parse(t)
	cfg, err := loadConfiguration(flags, fs)
	require.NoError(t, err)
	assert.Equal(t, "admin:fromenv", cfg.Target.Credentials)

	flags, fs = parse(t, "--credentials", "admin:flag")
	cfg, err = loadConfiguration(flags, fs)
	require.NoError(t, err)
	assert.Equal(t, "admin:flag", cfg.Target.Credentials)
}

func TestNewLogger(t *testing.T) {
	var out bytes.Buffer

	logger, err := newLogger(&out, &CLIFlags{LogLevel: "info"}, false)
	require.NoError(t, err)
	assert.Equal(t, "info", logger.GetLevel().String())

	logger, err = newLogger(&out, &CLIFlags{LogLevel: "info", VerboseMode: true}, true)
	require.NoError(t, err)
	assert.Equal(t, "debug", logger.GetLevel().String())

	logger, err = newLogger(&out, &CLIFlags{LogLevel: "info", QuietMode: true}, false)
	require.NoError(t, err)
	assert.Equal(t, "warning", logger.GetLevel().String())

	logger, err = newLogger(&out, &CLIFlags{LogLevel: "error"}, true)
	require.NoError(t, err)
	assert.Equal(t, "error", logger.GetLevel().String())

	_, err = newLogger(&out, &CLIFlags{LogLevel: "loud"}, false)
	assert.Error(t, err)
}
