package agent

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/e2kpm/internal/collector"
	"github.com/ethpandaops/e2kpm/internal/export"
	httpexport "github.com/ethpandaops/e2kpm/internal/export/http"
	"github.com/ethpandaops/e2kpm/internal/ingest/httpapi"
	"github.com/ethpandaops/e2kpm/internal/ingest/stream"
	"github.com/ethpandaops/e2kpm/internal/ingest/wsfeed"
)

// UE identity translator modes.
const (
	// UEModeIndex treats UE identities as decimal DU UE indexes.
	UEModeIndex = "index"
	// UEModeRNTI binds decimal C-RNTI identities learned from scheduler
	// reports.
	UEModeRNTI = "rnti"
)

// Config is the top-level configuration for the e2kpm agent.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// NodeName identifies this E2 node in exported rows.
	// Defaults to the hostname.
	NodeName string `yaml:"node_name"`

	// Period configures the granularity period clock.
	Period PeriodConfig `yaml:"period"`

	// Metrics configures which measurements are collected every period.
	Metrics collector.Config `yaml:"metrics"`

	// Sources enables the DU telemetry sources metrics are computed from.
	Sources SourcesConfig `yaml:"sources"`

	// Ingest configures the producer transports.
	Ingest IngestConfig `yaml:"ingest"`

	// UEs configures UE identity translation.
	UEs UEConfig `yaml:"ues"`

	// Export configures measurement exporters.
	Export ExportConfig `yaml:"export"`

	// Health configures the Prometheus health metrics server.
	Health export.HealthConfig `yaml:"health"`
}

// PeriodConfig configures the granularity period clock.
type PeriodConfig struct {
	// Origin is the start of period zero. Defaults to the Unix epoch, so
	// periods align to whole multiples of Duration.
	Origin time.Time `yaml:"origin"`

	// Duration is the granularity period. Defaults to 1s.
	Duration time.Duration `yaml:"duration"`

	// PeriodsPerReport groups periods into reporting periods.
	// Defaults to 10.
	PeriodsPerReport uint64 `yaml:"periods_per_report"`
}

// SourcesConfig toggles telemetry sources.
type SourcesConfig struct {
	Scheduler bool `yaml:"scheduler"`
	RLC       bool `yaml:"rlc"`
}

// IngestConfig groups the producer transports.
type IngestConfig struct {
	HTTP      httpapi.Config `yaml:"http"`
	Valkey    stream.Config  `yaml:"valkey"`
	Websocket wsfeed.Config  `yaml:"websocket"`
}

// UEConfig configures UE identity translation.
type UEConfig struct {
	// Mode is "index" or "rnti".
	Mode string `yaml:"mode"`
}

// ExportConfig groups the exporters.
type ExportConfig struct {
	ClickHouse ClickHouseExportConfig `yaml:"clickhouse"`
	HTTP       httpexport.Config      `yaml:"http"`
	Prometheus PrometheusConfig       `yaml:"prometheus"`
}

// ClickHouseExportConfig adds schema management to the writer settings.
type ClickHouseExportConfig struct {
	export.ClickHouseConfig `yaml:",inline"`

	// Migrate applies pending schema migrations before the exporter starts.
	Migrate bool `yaml:"migrate"`
}

// PrometheusConfig configures the node-level measurement gauges served on
// the health /metrics endpoint.
type PrometheusConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	nodeName, err := os.Hostname()
	if err != nil || nodeName == "" {
		nodeName = "e2kpm"
	}

	return &Config{
		LogLevel: "info",
		NodeName: nodeName,
		Period: PeriodConfig{
			Origin:           time.Unix(0, 0).UTC(),
			Duration:         time.Second,
			PeriodsPerReport: 10,
		},
		Metrics: collector.DefaultConfig(),
		Sources: SourcesConfig{
			Scheduler: true,
			RLC:       true,
		},
		Ingest: IngestConfig{
			HTTP: httpapi.Config{
				Enabled: true,
				Addr:    ":8080",
			},
		},
		UEs: UEConfig{
			Mode: UEModeIndex,
		},
		Export: ExportConfig{
			HTTP:       httpexport.DefaultConfig(),
			Prometheus: PrometheusConfig{Enabled: true},
		},
		Health: export.HealthConfig{
			Addr: ":9090",
		},
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for required fields and consistency.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	if c.NodeName == "" {
		return errors.New("node_name is required")
	}

	if c.Period.Duration <= 0 {
		return errors.New("period.duration must be positive")
	}

	if c.Period.PeriodsPerReport == 0 {
		return errors.New("period.periods_per_report must be positive")
	}

	if !c.Sources.Scheduler && !c.Sources.RLC {
		return errors.New("at least one of sources.scheduler or sources.rlc must be enabled")
	}

	if c.UEs.Mode != UEModeIndex && c.UEs.Mode != UEModeRNTI {
		return fmt.Errorf("ues.mode must be %q or %q, got %q", UEModeIndex, UEModeRNTI, c.UEs.Mode)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	if err := c.Ingest.Valkey.Validate(); err != nil {
		return fmt.Errorf("ingest.valkey: %w", err)
	}

	if err := c.Ingest.Websocket.Validate(); err != nil {
		return fmt.Errorf("ingest.websocket: %w", err)
	}

	if err := c.Export.ClickHouse.Validate(); err != nil {
		return fmt.Errorf("export.clickhouse: %w", err)
	}

	if err := c.Export.HTTP.Validate(); err != nil {
		return fmt.Errorf("export.http: %w", err)
	}

	return nil
}
