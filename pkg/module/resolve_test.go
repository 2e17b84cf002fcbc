package module

import (
	"errors"
	"testing"
)

func lookupFrom(mods ...*Module) Lookup {
	byName := make(map[string]*Module, len(mods))
	for _, m := range mods {
		byName[m.Name] = m
	}
	return func(name string) (*Module, bool) {
		m, ok := byName[name]
		return m, ok
	}
}

func TestResolvePrimary(t *testing.T) {
	primary := &Module{Name: "summarize", Version: "1.4.0"}
	got, err := Resolve(DependencyDeclaration{Module: "summarize", Version: "^1.0.0"}, lookupFrom(primary))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != primary {
		t.Fatalf("expected primary module")
	}
}

func TestResolveVersionMismatchUsesFallback(t *testing.T) {
	primary := &Module{Name: "summarize", Version: "2.0.0"}
	fallback := &Module{Name: "summarize-lite", Version: "0.9.0"}
	decl := DependencyDeclaration{Module: "summarize", Version: "^1.0.0", Fallback: "summarize-lite"}
	got, err := Resolve(decl, lookupFrom(primary, fallback))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != fallback {
		t.Fatalf("expected fallback module, got %v", got)
	}
}

func TestResolveMissingOptional(t *testing.T) {
	got, err := Resolve(DependencyDeclaration{Module: "absent", Optional: true}, lookupFrom())
	if err != nil {
		t.Fatalf("optional missing dependency should not error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil module for unsatisfied optional dependency")
	}
}

func TestResolveMissingMandatoryFails(t *testing.T) {
	_, err := Resolve(DependencyDeclaration{Module: "absent"}, lookupFrom())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveFallbackAlsoMissing(t *testing.T) {
	primary := &Module{Name: "summarize", Version: "2.0.0"}
	decl := DependencyDeclaration{Module: "summarize", Version: "^1.0.0", Fallback: "ghost"}
	_, err := Resolve(decl, lookupFrom(primary))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound when fallback is missing, got %v", err)
	}
}
