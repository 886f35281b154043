package config

import (
	"os"
	"path/filepath"
	"testing"

	"surrogate/pkg/errorest"
)

func TestLoadDefaults(t *testing.T) {
	_, err := Load("/nonexistent/path/surrogate.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent path")
	}
	// Load with empty path uses default search (may use defaults if no config file)
	cfg, _ := Load("")
	if cfg.Server.Addr != ":8080" {
		t.Errorf("default addr: got %s", cfg.Server.Addr)
	}
	if cfg.Server.TCPAddr != ":9090" {
		t.Errorf("default tcp_addr: got %s", cfg.Server.TCPAddr)
	}
	if cfg.Approximator.Neighbors != 10 {
		t.Errorf("default neighbors: got %d", cfg.Approximator.Neighbors)
	}
	if cfg.Estimator.MinSamples != errorest.DefaultMinSamples {
		t.Errorf("default min_samples: got %d", cfg.Estimator.MinSamples)
	}
	if cfg.Estimator.PosteriorFile != errorest.DefaultPosteriorFile {
		t.Errorf("default posterior_file: got %s", cfg.Estimator.PosteriorFile)
	}
	m, err := cfg.ParseMethod()
	if err != nil || m != errorest.MinDistance {
		t.Errorf("default method: got %v, %v", m, err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	content := `
server:
  addr: ":9000"
  tcp_addr: ""
storage:
  path: "test_data"
estimator:
  method: lin_quad_diff
  precision: 0.01
  min_samples: 50
  posterior_file: ""
approximator:
  neighbors: 0
  gp_length_scale: 0.3
surrogate:
  retrain_every: 25
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr: got %s", cfg.Server.Addr)
	}
	if cfg.Server.TCPAddr != "" {
		t.Errorf("tcp_addr should stay disabled, got %q", cfg.Server.TCPAddr)
	}
	if cfg.Storage.Path != "test_data" || cfg.Storage.DBFile != "calibrations.db" {
		t.Errorf("storage: got %+v", cfg.Storage)
	}
	if cfg.Estimator.Precision != 0.01 {
		t.Errorf("precision: got %v", cfg.Estimator.Precision)
	}
	if cfg.Estimator.MinSamples != 50 {
		t.Errorf("min_samples: got %d", cfg.Estimator.MinSamples)
	}
	if cfg.Estimator.PosteriorFile != "" {
		t.Errorf("posterior_file should stay disabled, got %q", cfg.Estimator.PosteriorFile)
	}
	if cfg.Approximator.Neighbors != 10 {
		t.Errorf("neighbors should fall back to default, got %d", cfg.Approximator.Neighbors)
	}
	if cfg.Approximator.GPLengthScale != 0.3 {
		t.Errorf("gp_length_scale: got %v", cfg.Approximator.GPLengthScale)
	}
	if cfg.Surrogate.RetrainEvery != 25 {
		t.Errorf("retrain_every: got %d", cfg.Surrogate.RetrainEvery)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format: got %s", cfg.Log.Format)
	}
	m, err := cfg.ParseMethod()
	if err != nil || m != errorest.LinQuadDiff {
		t.Errorf("method: got %v, %v", m, err)
	}
}

func TestParseMethodRejectsUnknown(t *testing.T) {
	cfg := Default()
	cfg.Estimator.Method = "kriging"
	if _, err := cfg.ParseMethod(); err == nil {
		t.Fatal("expected error for unknown method")
	}
}
