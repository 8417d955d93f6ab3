package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigMatchesShippedDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Processing.PatchRadiusX != 2 || cfg.Processing.SearchRadiusX != 3 {
		t.Errorf("unexpected default radii: patch=%d search=%d", cfg.Processing.PatchRadiusX, cfg.Processing.SearchRadiusX)
	}
	if cfg.Processing.Alpha != 0.1 || cfg.Processing.Beta != 2.0 {
		t.Errorf("unexpected default alpha/beta: %f %f", cfg.Processing.Alpha, cfg.Processing.Beta)
	}
	if cfg.Experimental.SignMode != "penalize" {
		t.Errorf("SignMode = %q, want %q", cfg.Experimental.SignMode, "penalize")
	}
	if cfg.Processing.NumCores <= 0 {
		t.Error("expected NumCores to default to a positive value")
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Processing.Alpha != DefaultConfig().Processing.Alpha {
		t.Error("expected defaults when the config file is missing")
	}
}

func TestSaveThenLoadConfigRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Processing.Alpha = 0.5
	cfg.Processing.PatchRadiusX = 4
	cfg.Diagnostics.GenerateWeightMaps = true
	cfg.Experimental.SignMode = "symmetric"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if loaded.Processing.Alpha != 0.5 {
		t.Errorf("Alpha = %f, want 0.5", loaded.Processing.Alpha)
	}
	if loaded.Processing.PatchRadiusX != 4 {
		t.Errorf("PatchRadiusX = %d, want 4", loaded.Processing.PatchRadiusX)
	}
	if !loaded.Diagnostics.GenerateWeightMaps {
		t.Error("expected GenerateWeightMaps to round-trip true")
	}
	if loaded.Experimental.SignMode != "symmetric" {
		t.Errorf("SignMode = %q, want %q", loaded.Experimental.SignMode, "symmetric")
	}
}

func TestCreateDefaultConfigFileWritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Processing.Beta != DefaultConfig().Processing.Beta {
		t.Error("expected the created file to load back to default values")
	}
}
