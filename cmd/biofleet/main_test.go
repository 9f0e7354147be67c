package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/biofleet/biofleet-core/internal/infrastructure/config"
	"github.com/biofleet/biofleet-core/internal/relay"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("BIOFLEET_CONFIG")
	defer os.Setenv("BIOFLEET_CONFIG", originalEnv)

	os.Setenv("BIOFLEET_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_CleanShutdown brings the full stack up against a scratch config
// and verifies it exits cleanly on context cancellation.
func TestRun_CleanShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
api:
  host: "127.0.0.1"
  port: 0

listener:
  auto_start: false

driver:
  name: simulator

sink:
  type: http
  url: "http://127.0.0.1:9/attendance"
  timeout: 1

database:
  path: "` + filepath.Join(tmpDir, "audit.db") + `"
  wal_mode: true
  busy_timeout: 5

influxdb:
  enabled: false

logging:
  level: error
  format: text
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	originalEnv := os.Getenv("BIOFLEET_CONFIG")
	defer os.Setenv("BIOFLEET_CONFIG", originalEnv)
	os.Setenv("BIOFLEET_CONFIG", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	// Give start-up a moment, then request shutdown.
	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not shut down")
	}
}

func TestGetConfigPath(t *testing.T) {
	originalEnv := os.Getenv("BIOFLEET_CONFIG")
	defer os.Setenv("BIOFLEET_CONFIG", originalEnv)

	os.Setenv("BIOFLEET_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	os.Setenv("BIOFLEET_CONFIG", "/tmp/custom.yaml")
	if got := getConfigPath(); got != "/tmp/custom.yaml" {
		t.Errorf("getConfigPath() = %q, want /tmp/custom.yaml", got)
	}
}

func TestBuildSink(t *testing.T) {
	cfg := config.Default()

	cfg.Sink.Type = "http"
	cfg.Sink.URL = "http://127.0.0.1/attendance"
	sink, err := buildSink(cfg, nil)
	if err != nil {
		t.Fatalf("buildSink(http) error = %v", err)
	}
	if _, ok := sink.(*relay.HTTPSink); !ok {
		t.Errorf("buildSink(http) = %T, want *relay.HTTPSink", sink)
	}

	cfg.Sink.URL = ""
	if _, err := buildSink(cfg, nil); err == nil {
		t.Error("buildSink(http without url) should fail")
	}

	cfg.Sink.Type = "mqtt"
	if _, err := buildSink(cfg, nil); err == nil {
		t.Error("buildSink(mqtt without client) should fail")
	}

	cfg.Sink.Type = "carrier-pigeon"
	if _, err := buildSink(cfg, nil); err == nil {
		t.Error("buildSink(unknown) should fail")
	}
}
