package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, 10, cfg.Settings.NumConnections)
	assert.Equal(t, 100, cfg.Settings.BulkInsert.DocumentsPerInsert)
	assert.Equal(t, 20, cfg.Settings.BulkInsert.InsertOperations)
	assert.Equal(t, CrudSettings{Creates: 100, Reads: 100, Updates: 100, Deletes: 100}, cfg.Settings.Crud)
	assert.Equal(t, "localhost:5984", cfg.Target.Address)
	assert.Equal(t, "/docbench/_bulk_docs", cfg.Target.BulkInsertPath)
	assert.Equal(t, "/docbench", cfg.Target.CrudPath)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout())
	assert.Equal(t, time.Duration(0), cfg.ConnectionTimeout())
	assert.Equal(t, FormatConsole, cfg.Output.Format)
	assert.NoError(t, cfg.Validate())
}

func TestSetDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Settings.Crud = CrudSettings{Creates: 5}
	cfg.Target.DatabaseName = "perf"
	cfg.Target.CrudPath = "/perf/"
	cfg.Settings.BulkInsert.Skip = true
	cfg.SetDefaults()

	assert.Equal(t, CrudSettings{Creates: 5}, cfg.Settings.Crud)
	assert.Equal(t, "/perf/_bulk_docs", cfg.Target.BulkInsertPath)
	assert.Equal(t, "/perf", cfg.Target.CrudPath)
	assert.Zero(t, cfg.Settings.BulkInsert.DocumentsPerInsert)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "bench.json", `{
		"name": "nightly",
		"settings": {
			"numConnections": 25,
			"seed": 99,
			"bulkInsert": {"documentsPerInsert": 50, "insertOperations": 4, "precompute": true},
			"crud": {"creates": 1, "reads": 2, "updates": 3, "deletes": 1}
		},
		"target": {"address": "db.internal:6984", "https": true, "connectionTimeout": "30s"},
		"thresholds": {"maxTimeouts": 0, "minReadRate": 150.5, "maxP99Latency": "250ms"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nightly", cfg.Name)
	assert.Equal(t, 25, cfg.Settings.NumConnections)
	assert.Equal(t, int64(99), cfg.Settings.Seed)
	assert.True(t, cfg.Settings.BulkInsert.Precompute)
	assert.Equal(t, 50, cfg.Settings.BulkInsert.DocumentsPerInsert)
	assert.Equal(t, CrudSettings{Creates: 1, Reads: 2, Updates: 3, Deletes: 1}, cfg.Settings.Crud)
	assert.True(t, cfg.Target.HTTPS)
	assert.Equal(t, 30*time.Second, cfg.ConnectionTimeout())
	require.NotNil(t, cfg.Thresholds.MaxTimeouts)
	assert.Equal(t, 0, *cfg.Thresholds.MaxTimeouts)
	assert.Equal(t, 150.5, cfg.Thresholds.MinReadRate)
	assert.True(t, cfg.Thresholds.HasThresholds())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "bench.yaml", `
settings:
  numConnections: 4
  documentSchemaFile: ./schema.json
  crud:
    skip: true
target:
  address: 127.0.0.1:5984
  databaseName: orders
output:
  format: json
  file: out.json
metrics:
  address: ":9102"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Settings.NumConnections)
	assert.Equal(t, "./schema.json", cfg.Settings.DocumentSchemaFile)
	assert.True(t, cfg.Settings.Crud.Skip)
	assert.Equal(t, "/orders/_bulk_docs", cfg.Target.BulkInsertPath)
	assert.Equal(t, FormatJSON, cfg.Output.Format)
	assert.Equal(t, ":9102", cfg.Metrics.Address)
	assert.False(t, cfg.IsMachineReadable())
	assert.False(t, cfg.Thresholds.HasThresholds())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "broken.json", `{"settings": `))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate func(*Config)
		errors int
	}{
		"valid": {
			mutate: func(*Config) {},
		},
		"no connections": {
			mutate: func(c *Config) { c.Settings.NumConnections = -1 },
			errors: 1,
		},
		"bad bulk shape": {
			mutate: func(c *Config) {
				c.Settings.BulkInsert.DocumentsPerInsert = -1
				c.Settings.BulkInsert.InsertOperations = -2
			},
			errors: 2,
		},
		"negative crud": {
			mutate: func(c *Config) { c.Settings.Crud.Reads = -1 },
			errors: 1,
		},
		"everything skipped": {
			mutate: func(c *Config) {
				c.Settings.BulkInsert.Skip = true
				c.Settings.Crud.Skip = true
			},
			errors: 1,
		},
		"bad target": {
			mutate: func(c *Config) {
				c.Target.Address = "no-port"
				c.Target.CrudPath = "db"
				c.Target.Credentials = "admin"
				c.Target.Insecure = true
			},
			errors: 4,
		},
		"bad durations": {
			mutate: func(c *Config) {
				c.Target.ConnectTimeout = "0s"
				c.Target.ConnectionTimeout = "forever"
				c.Thresholds.MaxP99Latency = "fast"
			},
			errors: 3,
		},
		"unknown format": {
			mutate: func(c *Config) { c.Output.Format = "xml" },
			errors: 1,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := New()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.errors == 0 {
				assert.NoError(t, err)
				return
			}
			var merr *multierror.Error
			require.True(t, errors.As(err, &merr), "got %v", err)
			assert.Len(t, merr.Errors, tc.errors)
		})
	}
}

func TestParseLatency(t *testing.T) {
	d, err := ParseLatency("1.5s")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = ParseLatency("")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ParseLatency("1 second")
	assert.Error(t, err)
}

func TestIsMachineReadable(t *testing.T) {
	cfg := New()
	assert.False(t, cfg.IsMachineReadable())
	cfg.Output.Format = FormatCSV
	assert.True(t, cfg.IsMachineReadable())
	cfg.Output.File = "out.csv"
	assert.False(t, cfg.IsMachineReadable())
}
