// SPDX-License-Identifier: Apache-2.0
// Package config loads runtime settings from YAML files and the
// environment. Precedence: defaults, then file, then COGMOD_* variables.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Modules   ModulesConfig   `koanf:"modules"`
	LLM       LLMConfig       `koanf:"llm"`
	Audit     AuditConfig     `koanf:"audit"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type ModulesConfig struct {
	// Dir is scanned recursively for module manifests.
	Dir string `koanf:"dir"`
}

type LLMConfig struct {
	Provider    string  `koanf:"provider"` // ollama
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float64 `koanf:"temperature"`
	MaxRetries  int     `koanf:"max_retries"`
}

type AuditConfig struct {
	Enabled bool `koanf:"enabled"`
	// DSN is the SQLite path, or ":memory:" for an ephemeral store.
	DSN string `koanf:"dsn"`
}

// Global k instance
var k = koanf.New(".")

func Load(path string) (*Config, error) {
	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("telemetry.exporter", "stdout")
	k.Set("modules.dir", "./modules")
	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "qwen2.5-coder:7b-instruct-q5_K_M")
	k.Set("llm.base_url", "http://localhost:11434")
	k.Set("llm.temperature", 0.2)
	k.Set("llm.max_retries", 3)
	k.Set("audit.enabled", false)
	k.Set("audit.dsn", "cogmod_audit.db")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (COGMOD_LLM_PROVIDER -> llm.provider)
	if err := k.Load(env.Provider("COGMOD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "COGMOD_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
