// Package config provides configuration file support for the
// clustream engine. It handles loading, validation, and environment
// variable interpolation for clustream.yaml configuration files.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the full clustream engine configuration.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Server    ServerConfig    `mapstructure:"server"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// EngineConfig holds the CluStream maintainer and reducer parameters
// (spec.md §6's enumerated configuration).
type EngineConfig struct {
	H   int     `mapstructure:"h"`
	M   int     `mapstructure:"m"`
	T   float64 `mapstructure:"t"`
	Q   int     `mapstructure:"q"`
	K   int     `mapstructure:"k"`
	Dim int     `mapstructure:"dim"`
}

// ServerConfig holds HTTP server settings for `clustream serve`.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SinkConfig holds the centre-reporting backend settings.
type SinkConfig struct {
	Backend   string `mapstructure:"backend"`
	Index     string `mapstructure:"index"`
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
	Insecure   bool    `mapstructure:"insecure"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			H:   3600,
			M:   2,
			T:   2.0,
			Q:   100,
			K:   8,
			Dim: 8,
		},
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Sink: SinkConfig{
			Backend: "stdout",
		},
		Telemetry: TelemetryConfig{
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "otlp",
				Endpoint:   "localhost:4317",
				SampleRate: 1.0,
				Insecure:   true,
			},
		},
	}
}

// Load reads configuration from the given viper instance and returns
// a validated Config. Environment variables in string values are
// interpolated using ${VAR} syntax.
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	interpolateConfig(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads a specific config file and returns a validated Config.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Load(v)
}

// Validate checks the configuration for errors and returns a plain
// descriptive error accumulating every violation found (the
// configuration-error case of spec.md §7, not a named error type).
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Engine.Q < 2 {
		errs = append(errs, fmt.Sprintf("engine.q: must be >= 2, got %d", cfg.Engine.Q))
	}
	if cfg.Engine.H <= 0 {
		errs = append(errs, fmt.Sprintf("engine.h: must be > 0, got %d", cfg.Engine.H))
	}
	if cfg.Engine.M < 1 {
		errs = append(errs, fmt.Sprintf("engine.m: must be >= 1, got %d", cfg.Engine.M))
	}
	if cfg.Engine.T <= 0 {
		errs = append(errs, fmt.Sprintf("engine.t: must be > 0, got %f", cfg.Engine.T))
	}
	if cfg.Engine.Dim < 1 {
		errs = append(errs, fmt.Sprintf("engine.dim: must be >= 1, got %d", cfg.Engine.Dim))
	}
	if cfg.Engine.K < 2 || cfg.Engine.K > cfg.Engine.Q {
		errs = append(errs, fmt.Sprintf("engine.k: must satisfy 2 <= k <= q, got k=%d q=%d", cfg.Engine.K, cfg.Engine.Q))
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port: must be between 0 and 65535, got %d", cfg.Server.Port))
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout: must be non-negative")
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout: must be non-negative")
	}

	validBackends := map[string]bool{"stdout": true, "pinecone": true, "qdrant": true, "": true}
	if !validBackends[cfg.Sink.Backend] {
		errs = append(errs, fmt.Sprintf("sink.backend: unsupported backend %q (supported: stdout, pinecone, qdrant)", cfg.Sink.Backend))
	}

	validExporters := map[string]bool{"otlp": true, "stdout": true, "none": true, "": true}
	if !validExporters[cfg.Telemetry.Tracing.Exporter] {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.exporter: unsupported exporter %q (supported: otlp, stdout, none)", cfg.Telemetry.Tracing.Exporter))
	}
	if cfg.Telemetry.Tracing.SampleRate < 0 || cfg.Telemetry.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.sample_rate: must be between 0 and 1, got %f", cfg.Telemetry.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnv replaces ${VAR} and ${VAR:-default} patterns in a string
// with the corresponding environment variable values.
func InterpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		if defaultVal != "" {
			return defaultVal
		}
		return match
	})
}

// interpolateConfig applies environment variable interpolation to all
// string fields in the config.
func interpolateConfig(cfg *Config) {
	cfg.Server.Host = InterpolateEnv(cfg.Server.Host)
	cfg.Sink.Backend = InterpolateEnv(cfg.Sink.Backend)
	cfg.Sink.Index = InterpolateEnv(cfg.Sink.Index)
	cfg.Sink.Host = InterpolateEnv(cfg.Sink.Host)
	cfg.Sink.Namespace = InterpolateEnv(cfg.Sink.Namespace)
	cfg.Telemetry.Tracing.Exporter = InterpolateEnv(cfg.Telemetry.Tracing.Exporter)
	cfg.Telemetry.Tracing.Endpoint = InterpolateEnv(cfg.Telemetry.Tracing.Endpoint)
}

// GenerateTemplate returns a YAML template string with all available
// configuration options and their defaults, suitable for writing to
// a clustream.yaml file.
func GenerateTemplate() string {
	return `# clustream Configuration

engine:
  h: 3600              # time window width (timestamp units)
  m: 2                 # relevance-stamp quantile parameter
  t: 2.0               # radius multiplier
  q: 100               # micro-cluster pool size
  k: 8                 # reduce() target cluster count, 2 <= k <= q
  dim: 8               # point dimensionality, fixed for the run

server:
  port: 8080
  host: 0.0.0.0
  read_timeout: 30s
  write_timeout: 60s

sink:
  backend: stdout      # stdout, pinecone, or qdrant
  index: ""
  host: ""             # required for pinecone/qdrant
  namespace: ""

telemetry:
  tracing:
    enabled: false
    exporter: otlp       # otlp, stdout, or none
    endpoint: localhost:4317
    sample_rate: 1.0     # 0.0 to 1.0
    insecure: true
`
}
