// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ziel-io/cognitive-modules/pkg/config"
	cogmodmcp "github.com/ziel-io/cognitive-modules/pkg/mcp"
	"github.com/ziel-io/cognitive-modules/pkg/telemetry"
)

// runMCP serves the registry and orchestrator over MCP stdio. Logs go to
// stderr, and the stdout telemetry exporter is only wired when the
// collector is remote, so stdout stays clean for the protocol.
func runMCP(ctx context.Context, cfg *config.Config, flags globalFlags, args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if cfg.Telemetry.Exporter == "otlp" {
		shutdown, err := telemetry.InitWithConfig("cogmod-mcp", version, telemetry.Config{
			Exporter:     cfg.Telemetry.Exporter,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			fatal(fmt.Errorf("init telemetry: %w", err))
		}
		defer shutdown(context.Background())
	}

	registry, err := loadRegistry(cfg)
	if err != nil {
		fatal(err)
	}
	orchestrator, err := buildOrchestrator(cfg, registry, logger)
	if err != nil {
		fatal(err)
	}

	// Long-running surface: pick up config edits without a restart. The
	// orchestrator looks modules up through the registry pointer, so a
	// reload is visible to in-flight tool calls on their next lookup.
	if flags.ConfigPath != "" {
		watcher, err := config.NewWatcher(flags.ConfigPath, config.WithWatchLogger(logger))
		if err != nil {
			fatal(fmt.Errorf("watch config: %w", err))
		}
		watcher.OnChange(func(next *config.Config) {
			if err := registry.ReloadDir(next.Modules.Dir); err != nil {
				logger.Error("module reload failed", "dir", next.Modules.Dir, "error", err)
				return
			}
			logger.Info("modules reloaded", "dir", next.Modules.Dir, "count", registry.Len())
		})
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	logger.Info("serving MCP over stdio", "modules", registry.Len())
	srv := cogmodmcp.NewServer(version, registry, orchestrator)
	if err := cogmodmcp.ServeStdio(srv); err != nil && ctx.Err() == nil {
		fatal(err)
	}
}
