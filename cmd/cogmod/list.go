// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ziel-io/cognitive-modules/pkg/config"
)

type listEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Pattern string `json:"pattern,omitempty"`
	Deps    int    `json:"dependencies,omitempty"`
}

func runList(cfg *config.Config, flags globalFlags, args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}

	registry, err := loadRegistry(cfg)
	if err != nil {
		fatal(err)
	}

	mods := registry.List()
	entries := make([]listEntry, 0, len(mods))
	for _, mod := range mods {
		e := listEntry{Name: mod.Name, Version: mod.Version}
		if mod.IsComposite() {
			e.Pattern = string(mod.Composition.Pattern)
			e.Deps = len(mod.Composition.Requires)
		}
		entries = append(entries, e)
	}

	if flags.JSON {
		printJSON(entries)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tPATTERN\tDEPS")
	for _, e := range entries {
		pattern := e.Pattern
		if pattern == "" {
			pattern = "atomic"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.Name, e.Version, pattern, e.Deps)
	}
	w.Flush()
}
