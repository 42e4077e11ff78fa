// Package config handles configuration loading, defaults and validation
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatHTML    = "html"
)

// Config represents the root configuration
type Config struct {
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Settings    Settings        `json:"settings"`
	Target      TargetConfig    `json:"target"`
	Output      OutputConfig    `json:"output"`
	Thresholds  ThresholdConfig `json:"thresholds"`
	Metrics     MetricsConfig   `json:"metrics"`
}

// Settings contains the workload shape
type Settings struct {
	NumConnections     int                `json:"numConnections"`
	DocumentSchemaFile string             `json:"documentSchemaFile,omitempty"`
	Seed               int64              `json:"seed"`
	MaxArrayLength     int                `json:"maxArrayLength"`
	BulkInsert         BulkInsertSettings `json:"bulkInsert"`
	Crud               CrudSettings       `json:"crud"`
}

// BulkInsertSettings configures the bulk insert phase
type BulkInsertSettings struct {
	Skip               bool `json:"skip,omitempty"`
	DocumentsPerInsert int  `json:"documentsPerInsert"`
	InsertOperations   int  `json:"insertOperations"`
	Precompute         bool `json:"precompute"`
}

// CrudSettings configures the CRUD phase; counts are per connection
type CrudSettings struct {
	Skip    bool `json:"skip,omitempty"`
	Creates int  `json:"creates"`
	Reads   int  `json:"reads"`
	Updates int  `json:"updates"`
	Deletes int  `json:"deletes"`
}

// TargetConfig describes the database server
type TargetConfig struct {
	Address           string `json:"address"`
	DatabaseName      string `json:"databaseName"`
	BulkInsertPath    string `json:"bulkInsertPath"`
	CrudPath          string `json:"crudPath"`
	HTTPS             bool   `json:"https,omitempty"`
	Insecure          bool   `json:"insecure,omitempty"`
	CAFile            string `json:"caFile,omitempty"`
	Credentials       string `json:"-"`
	ConnectTimeout    string `json:"connectTimeout"`
	ConnectionTimeout string `json:"connectionTimeout,omitempty"`
}

// OutputConfig defines output settings
type OutputConfig struct {
	Format string `json:"format,omitempty"`
	File   string `json:"file,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set
type MetricsConfig struct {
	Address string `json:"address,omitempty"`
}

// ThresholdConfig defines pass/fail criteria for CI/CD integration
type ThresholdConfig struct {
	MaxTimeouts             *int    `json:"maxTimeouts,omitempty"`
	MinRemoteProcessingRate float64 `json:"minRemoteProcessingRate,omitempty"` // bulk insert docs/sec
	MinLocalInsertRate      float64 `json:"minLocalInsertRate,omitempty"`      // bulk insert docs/sec
	MinCreateRate           float64 `json:"minCreateRate,omitempty"`
	MinReadRate             float64 `json:"minReadRate,omitempty"`
	MinUpdateRate           float64 `json:"minUpdateRate,omitempty"`
	MinDeleteRate           float64 `json:"minDeleteRate,omitempty"`
	MaxP99Latency           string  `json:"maxP99Latency,omitempty"` // e.g. "500ms"
}

// HasThresholds returns true if any thresholds are defined
func (t *ThresholdConfig) HasThresholds() bool {
	return t.MaxTimeouts != nil ||
		t.MinRemoteProcessingRate > 0 ||
		t.MinLocalInsertRate > 0 ||
		t.MinCreateRate > 0 ||
		t.MinReadRate > 0 ||
		t.MinUpdateRate > 0 ||
		t.MinDeleteRate > 0 ||
		t.MaxP99Latency != ""
}

// ParseLatency parses a latency string (e.g., "500ms", "1s")
func ParseLatency(latencyStr string) (time.Duration, error) {
	if latencyStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(latencyStr)
	if err != nil {
		return 0, fmt.Errorf("invalid latency format: %w", err)
	}
	return dur, nil
}

// Load loads configuration from a JSON or YAML file
func Load(filename string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.SetDefaults()

	return &config, nil
}

// New returns a configuration holding only defaults
func New() *Config {
	config := &Config{}
	config.SetDefaults()
	return config
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.Settings.NumConnections == 0 {
		c.Settings.NumConnections = 10
	}
	if c.Settings.MaxArrayLength == 0 {
		c.Settings.MaxArrayLength = 4
	}
	if !c.Settings.BulkInsert.Skip {
		if c.Settings.BulkInsert.DocumentsPerInsert == 0 {
			c.Settings.BulkInsert.DocumentsPerInsert = 100
		}
		if c.Settings.BulkInsert.InsertOperations == 0 {
			c.Settings.BulkInsert.InsertOperations = 20
		}
	}
	if !c.Settings.Crud.Skip && c.Settings.Crud == (CrudSettings{}) {
		c.Settings.Crud = CrudSettings{Creates: 100, Reads: 100, Updates: 100, Deletes: 100}
	}

	if c.Target.Address == "" {
		c.Target.Address = "localhost:5984"
	}
	if c.Target.DatabaseName == "" {
		c.Target.DatabaseName = "docbench"
	}
	if c.Target.BulkInsertPath == "" {
		c.Target.BulkInsertPath = "/" + c.Target.DatabaseName + "/_bulk_docs"
	}
	if c.Target.CrudPath == "" {
		c.Target.CrudPath = "/" + c.Target.DatabaseName
	}
	c.Target.CrudPath = strings.TrimSuffix(c.Target.CrudPath, "/")
	if c.Target.ConnectTimeout == "" {
		c.Target.ConnectTimeout = "10s"
	}

	if c.Output.Format == "" {
		c.Output.Format = FormatConsole
	}
}

// Validate reports every problem with the configuration
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Settings.NumConnections < 1 {
		result = multierror.Append(result, fmt.Errorf("settings.numConnections must be at least 1"))
	}
	if c.Settings.MaxArrayLength < 1 {
		result = multierror.Append(result, fmt.Errorf("settings.maxArrayLength must be at least 1"))
	}

	bulk := c.Settings.BulkInsert
	if !bulk.Skip {
		if bulk.DocumentsPerInsert < 1 {
			result = multierror.Append(result, fmt.Errorf("settings.bulkInsert.documentsPerInsert must be at least 1"))
		}
		if bulk.InsertOperations < 1 {
			result = multierror.Append(result, fmt.Errorf("settings.bulkInsert.insertOperations must be at least 1"))
		}
	}

	crud := c.Settings.Crud
	if !crud.Skip {
		if crud.Creates < 0 || crud.Reads < 0 || crud.Updates < 0 || crud.Deletes < 0 {
			result = multierror.Append(result, fmt.Errorf("settings.crud operation counts must not be negative"))
		} else if crud.Creates+crud.Reads+crud.Updates+crud.Deletes == 0 {
			result = multierror.Append(result, fmt.Errorf("settings.crud needs at least one operation"))
		}
	}
	if bulk.Skip && crud.Skip {
		result = multierror.Append(result, fmt.Errorf("both bulkInsert and crud phases are skipped"))
	}

	if _, _, err := net.SplitHostPort(c.Target.Address); err != nil {
		result = multierror.Append(result, fmt.Errorf("target.address: %w", err))
	}
	if !strings.HasPrefix(c.Target.BulkInsertPath, "/") {
		result = multierror.Append(result, fmt.Errorf("target.bulkInsertPath must start with /"))
	}
	if !strings.HasPrefix(c.Target.CrudPath, "/") {
		result = multierror.Append(result, fmt.Errorf("target.crudPath must start with /"))
	}
	if c.Target.Credentials != "" && !strings.Contains(c.Target.Credentials, ":") {
		result = multierror.Append(result, fmt.Errorf("target.credentials must be in format 'user:password'"))
	}
	if (c.Target.Insecure || c.Target.CAFile != "") && !c.Target.HTTPS {
		result = multierror.Append(result, fmt.Errorf("target.insecure and target.caFile require target.https"))
	}
	if d, err := time.ParseDuration(c.Target.ConnectTimeout); err != nil {
		result = multierror.Append(result, fmt.Errorf("target.connectTimeout: %w", err))
	} else if d <= 0 {
		result = multierror.Append(result, fmt.Errorf("target.connectTimeout must be positive"))
	}
	if c.Target.ConnectionTimeout != "" {
		if _, err := time.ParseDuration(c.Target.ConnectionTimeout); err != nil {
			result = multierror.Append(result, fmt.Errorf("target.connectionTimeout: %w", err))
		}
	}

	switch c.Output.Format {
	case FormatConsole, FormatJSON, FormatCSV, FormatHTML:
	default:
		result = multierror.Append(result, fmt.Errorf("output.format %q is not one of console, json, csv, html", c.Output.Format))
	}

	if _, err := ParseLatency(c.Thresholds.MaxP99Latency); err != nil {
		result = multierror.Append(result, fmt.Errorf("thresholds.maxP99Latency: %w", err))
	}
	if c.Thresholds.MaxTimeouts != nil && *c.Thresholds.MaxTimeouts < 0 {
		result = multierror.Append(result, fmt.Errorf("thresholds.maxTimeouts must not be negative"))
	}

	return result.ErrorOrNil()
}

// ConnectTimeout returns the parsed connect timeout
func (c *Config) ConnectTimeout() time.Duration {
	d, err := time.ParseDuration(c.Target.ConnectTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// ConnectionTimeout returns the parsed per-connection timeout, 0 when disabled
func (c *Config) ConnectionTimeout() time.Duration {
	if c.Target.ConnectionTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Target.ConnectionTimeout)
	if err != nil {
		return 0
	}
	return d
}

// IsMachineReadable reports whether the output format must not be mixed with console chatter
func (c *Config) IsMachineReadable() bool {
	return (c.Output.Format == FormatJSON || c.Output.Format == FormatCSV) && c.Output.File == ""
}
