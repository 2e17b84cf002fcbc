// SPDX-License-Identifier: Apache-2.0
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected default provider ollama, got %s", cfg.LLM.Provider)
	}
	if cfg.Telemetry.Exporter != "stdout" {
		t.Errorf("expected stdout exporter, got %s", cfg.Telemetry.Exporter)
	}
	if cfg.Modules.Dir != "./modules" {
		t.Errorf("unexpected modules dir: %s", cfg.Modules.Dir)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cogmod.yaml")
	content := `
log:
  level: debug
  format: json
modules:
  dir: /opt/modules
llm:
  model: llama3:8b
audit:
  enabled: true
  dsn: ":memory:"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("file values not applied: %+v", cfg.Log)
	}
	if cfg.Modules.Dir != "/opt/modules" {
		t.Errorf("unexpected modules dir: %s", cfg.Modules.Dir)
	}
	if cfg.LLM.Model != "llama3:8b" {
		t.Errorf("unexpected model: %s", cfg.LLM.Model)
	}
	if !cfg.Audit.Enabled || cfg.Audit.DSN != ":memory:" {
		t.Errorf("unexpected audit config: %+v", cfg.Audit)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	os.Setenv("COGMOD_LLM_PROVIDER", "custom")
	defer os.Unsetenv("COGMOD_LLM_PROVIDER")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "custom" {
		t.Errorf("expected provider from env, got %s", cfg.LLM.Provider)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cogmod.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	w, err := NewWatcher(path, WithWatchInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w.OnChange(func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	w.Start(t.Context())
	defer w.Stop()

	// Mod times have coarse resolution on some filesystems.
	time.Sleep(50 * time.Millisecond)
	newMod := time.Now().Add(time.Second)
	if err := os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	os.Chtimes(path, newMod, newMod)

	select {
	case cfg := <-reloaded:
		if cfg.Log.Level != "error" {
			t.Fatalf("expected reloaded level error, got %s", cfg.Log.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watcher did not reload")
	}
}
