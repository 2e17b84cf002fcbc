// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ziel-io/cognitive-modules/pkg/compose"
	"github.com/ziel-io/cognitive-modules/pkg/config"
	"github.com/ziel-io/cognitive-modules/pkg/executor"
	"github.com/ziel-io/cognitive-modules/pkg/llm"
	"github.com/ziel-io/cognitive-modules/pkg/module"
	"github.com/ziel-io/cognitive-modules/pkg/resilience"
	"github.com/ziel-io/cognitive-modules/pkg/telemetry"
)

const version = "0.1.0"

type globalFlags struct {
	ConfigPath string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags, rest, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if flags.Help || len(rest) == 0 {
		printUsage()
		if len(rest) == 0 && !flags.Help {
			os.Exit(2)
		}
		return
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fatal(fmt.Errorf("load config: %w", err))
	}

	cmd := rest[0]
	args := rest[1:]
	switch cmd {
	case "run":
		runRun(ctx, cfg, flags, args)
	case "validate":
		runValidate(cfg, flags, args)
	case "list":
		runList(cfg, flags, args)
	case "mcp":
		runMCP(ctx, cfg, flags, args)
	case "version":
		fmt.Println(version)
	case "help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", cmd))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch arg {
		case "-h", "--help":
			flags.Help = true
			return flags, nil, nil
		case "--json":
			flags.JSON = true
		case "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		default:
			return flags, nil, fmt.Errorf("unknown flag %q", arg)
		}
	}
	return flags, nil, nil
}

// loadRegistry scans the configured modules directory for manifests.
func loadRegistry(cfg *config.Config) (*module.Registry, error) {
	registry := module.NewRegistry()
	if err := registry.LoadDir(cfg.Modules.Dir); err != nil {
		return nil, fmt.Errorf("load modules from %s: %w", cfg.Modules.Dir, err)
	}
	return registry, nil
}

// buildOrchestrator wires the LLM provider behind the orchestrator.
func buildOrchestrator(cfg *config.Config, registry *module.Registry, logger *slog.Logger) (*compose.Orchestrator, error) {
	if cfg.LLM.Provider != "ollama" {
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
	provider := llm.NewOllama(cfg.LLM.BaseURL)

	retry := resilience.DefaultRetryConfig()
	if cfg.LLM.MaxRetries > 0 {
		retry = retry.WithMaxAttempts(cfg.LLM.MaxRetries)
	}
	invoker := executor.NewLLMInvoker(provider,
		executor.WithModel(cfg.LLM.Model),
		executor.WithTemperature(cfg.LLM.Temperature),
		executor.WithRetry(retry),
		executor.WithLogger(logger),
	)

	metrics, err := telemetry.NewCompositionMetrics()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return compose.New(registry.Get, invoker,
		compose.WithLogger(logger),
		compose.WithMetrics(metrics),
	), nil
}

func printUsage() {
	fmt.Println(`cogmod - cognitive module orchestrator

Usage:
  cogmod [global flags] <command> [args]

Global flags:
  --config <path>      Path to config file (YAML)
  --json               JSON output
  -h, --help           Show this help

Commands:
  run <module> [--input <json>] [--input-file <path>]
  validate <manifest> [<manifest> ...]
  list
  mcp
  version`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
