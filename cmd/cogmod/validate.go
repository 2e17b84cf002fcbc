// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"

	"github.com/ziel-io/cognitive-modules/pkg/config"
	"github.com/ziel-io/cognitive-modules/pkg/module"
)

type validateResult struct {
	Path    string `json:"path"`
	Valid   bool   `json:"valid"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Pattern string `json:"pattern,omitempty"`
	Error   string `json:"error,omitempty"`
}

func runValidate(cfg *config.Config, flags globalFlags, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("usage: cogmod validate <manifest> [<manifest> ...]"))
	}

	results := make([]validateResult, 0, len(args))
	failed := false
	for _, path := range args {
		res := validateResult{Path: path}
		mod, err := module.LoadFile(path)
		if err != nil {
			res.Error = err.Error()
			failed = true
		} else {
			res.Valid = true
			res.Name = mod.Name
			res.Version = mod.Version
			if mod.IsComposite() {
				res.Pattern = string(mod.Composition.Pattern)
			}
		}
		results = append(results, res)
	}

	if flags.JSON {
		printJSON(results)
	} else {
		for _, res := range results {
			if res.Valid {
				if res.Pattern != "" {
					fmt.Printf("✓ %s: %s@%s (%s composition)\n", res.Path, res.Name, res.Version, res.Pattern)
				} else {
					fmt.Printf("✓ %s: %s@%s (atomic)\n", res.Path, res.Name, res.Version)
				}
			} else {
				fmt.Printf("✗ %s: %s\n", res.Path, res.Error)
			}
		}
	}
	if failed {
		os.Exit(1)
	}
}
