package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Engine.Q != 100 {
		t.Errorf("expected default q 100, got %d", cfg.Engine.Q)
	}
	if cfg.Sink.Backend != "stdout" {
		t.Errorf("expected default sink backend stdout, got %s", cfg.Sink.Backend)
	}
}

func TestValidateValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidateInvalidPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Error("expected error for invalid port")
	}
}

func TestValidateInvalidQ(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Q = 1
	if err := Validate(cfg); err == nil {
		t.Error("expected error for q < 2")
	}
}

func TestValidateKOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Q = 5
	cfg.Engine.K = 10
	if err := Validate(cfg); err == nil {
		t.Error("expected error for k > q")
	}

	cfg.Engine.K = 1
	if err := Validate(cfg); err == nil {
		t.Error("expected error for k < 2")
	}
}

func TestValidateInvalidSinkBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sink.Backend = "elasticsearch"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unsupported sink backend")
	}
}

func TestValidateInvalidExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telemetry.Tracing.Exporter = "jaeger"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unsupported exporter")
	}
}

func TestValidateMultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = -1
	cfg.Engine.Q = 1
	cfg.Engine.H = -5
	if err := Validate(cfg); err == nil {
		t.Error("expected multiple validation errors")
	}
}

func TestInterpolateEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "hello")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
		{"${NONEXISTENT_VAR:-fallback}", "fallback"},
		{"${NONEXISTENT_VAR}", "${NONEXISTENT_VAR}"},
		{"no-vars-here", "no-vars-here"},
		{"${TEST_VAR:-default}", "hello"},
	}

	for _, tt := range tests {
		result := InterpolateEnv(tt.input)
		if result != tt.expected {
			t.Errorf("InterpolateEnv(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
engine:
  h: 7200
  q: 50
  k: 10
  dim: 16

server:
  port: 9090
  host: 127.0.0.1

sink:
  backend: qdrant
  index: test-collection
  host: localhost:6334
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "clustream.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Engine.Q != 50 {
		t.Errorf("expected q 50, got %d", cfg.Engine.Q)
	}
	if cfg.Engine.K != 10 {
		t.Errorf("expected k 10, got %d", cfg.Engine.K)
	}
	if cfg.Sink.Backend != "qdrant" {
		t.Errorf("expected sink backend qdrant, got %s", cfg.Sink.Backend)
	}
	if cfg.Sink.Index != "test-collection" {
		t.Errorf("expected index test-collection, got %s", cfg.Sink.Index)
	}
}

func TestLoadFromFileWithEnvInterpolation(t *testing.T) {
	t.Setenv("TEST_SINK_HOST", "qdrant.internal:6334")

	content := `
sink:
  backend: qdrant
  host: ${TEST_SINK_HOST}
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "clustream.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Sink.Host != "qdrant.internal:6334" {
		t.Errorf("expected interpolated sink host, got %s", cfg.Sink.Host)
	}
}

func TestLoadFromFileInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/clustream.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "clustream.yaml")
	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(cfgPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromFileInvalidValues(t *testing.T) {
	content := `
engine:
  q: 1
server:
  port: 99999
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "clustream.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(cfgPath)
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadFromFileDefaultsPreserved(t *testing.T) {
	content := `
server:
  port: 3000
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "clustream.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Engine.Q != 100 {
		t.Errorf("expected default q 100, got %d", cfg.Engine.Q)
	}
}

func TestGenerateTemplate(t *testing.T) {
	tmpl := GenerateTemplate()

	required := []string{
		"engine:", "h:", "m:", "t:", "q:", "k:", "dim:",
		"server:", "port:", "host:",
		"sink:", "backend:", "index:",
		"telemetry:", "exporter:",
	}

	for _, s := range required {
		if !strings.Contains(tmpl, s) {
			t.Errorf("template missing %q", s)
		}
	}
}
