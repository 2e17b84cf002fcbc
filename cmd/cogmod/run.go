// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ziel-io/cognitive-modules/pkg/audit"
	"github.com/ziel-io/cognitive-modules/pkg/compose"
	"github.com/ziel-io/cognitive-modules/pkg/config"
	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/module"
	"github.com/ziel-io/cognitive-modules/pkg/telemetry"
)

type runOutput struct {
	Result *envelope.Result     `json:"result"`
	Trace  []compose.TraceEntry `json:"trace"`
}

func runRun(ctx context.Context, cfg *config.Config, flags globalFlags, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	inputJSON := fs.String("input", "", "input document as inline JSON")
	inputFile := fs.String("input-file", "", "path to a JSON input document")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: cogmod run <module> [--input <json>] [--input-file <path>]")
		fs.PrintDefaults()
	}

	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}
	name := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		fatal(err)
	}

	input, err := readInput(*inputJSON, *inputFile)
	if err != nil {
		fatal(err)
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	shutdown, err := telemetry.InitWithConfig("cogmod", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		fatal(fmt.Errorf("init telemetry: %w", err))
	}
	defer shutdown(context.Background())

	registry, err := loadRegistry(cfg)
	if err != nil {
		fatal(err)
	}
	mod, ok := registry.Get(name)
	if !ok {
		fatal(fmt.Errorf("module %q not found in %s", name, cfg.Modules.Dir))
	}

	orchestrator, err := buildOrchestrator(cfg, registry, logger)
	if err != nil {
		fatal(err)
	}

	started := time.Now()
	result, tr := orchestrator.Execute(ctx, mod, input)

	if cfg.Audit.Enabled {
		if err := recordAudit(ctx, cfg, mod, result, tr, started); err != nil {
			logger.Warn("audit record failed", "error", err)
		}
	}

	if flags.JSON {
		printJSON(runOutput{Result: result, Trace: tr.Entries()})
	} else {
		printRunSummary(result, tr)
	}
	if !result.OK {
		os.Exit(1)
	}
}

func readInput(inline, path string) (any, error) {
	var raw []byte
	switch {
	case inline != "" && path != "":
		return nil, fmt.Errorf("--input and --input-file are mutually exclusive")
	case inline != "":
		raw = []byte(inline)
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
		raw = data
	default:
		return map[string]any{}, nil
	}

	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("parse input JSON: %w", err)
	}
	return input, nil
}

func recordAudit(ctx context.Context, cfg *config.Config, mod *module.Module, result *envelope.Result, tr *compose.Trace, started time.Time) error {
	store, err := audit.Open(cfg.Audit.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	run, steps := audit.NewRun(mod, result, tr, started)
	return store.RecordRun(ctx, run, steps)
}

func printRunSummary(result *envelope.Result, tr *compose.Trace) {
	if result.OK {
		fmt.Printf("ok (confidence %.2f, risk %s)\n", result.Meta.Confidence, result.Meta.Risk)
	} else if result.Error != nil {
		fmt.Printf("failed: %s: %s\n", result.Error.Code, result.Error.Message)
	}
	for _, e := range tr.Entries() {
		status := "ok"
		switch {
		case e.Skipped:
			status = "skipped"
		case !e.Success:
			status = "failed"
		}
		line := fmt.Sprintf("  %-24s %-8s %s", e.Module, status, e.Duration)
		if e.Reason != "" {
			line += " (" + e.Reason + ")"
		}
		fmt.Println(line)
	}
	printJSON(result)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(data))
}
