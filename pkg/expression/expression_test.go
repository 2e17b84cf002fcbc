package expression

import (
	"reflect"
	"testing"
)

func doc() map[string]any {
	return map[string]any{
		"a": map[string]any{
			"b": "deep",
		},
		"items": []any{
			map[string]any{"id": float64(1), "name": "first"},
			map[string]any{"id": float64(2), "name": "second"},
		},
		"quick-check": map[string]any{
			"meta": map[string]any{"confidence": 0.85},
		},
		"flag": true,
	}
}

func TestEvaluateRoot(t *testing.T) {
	d := doc()
	got := Evaluate("$", d)
	if !reflect.DeepEqual(got, d) {
		t.Fatalf("$ should return the whole document, got %v", got)
	}
}

func TestEvaluateFieldAccess(t *testing.T) {
	d := doc()
	if got := Evaluate("$.a.b", d); got != "deep" {
		t.Fatalf("$.a.b = %v, want deep", got)
	}
	if got := Evaluate("$.flag", d); got != true {
		t.Fatalf("$.flag = %v, want true", got)
	}
}

func TestEvaluateArrayIndex(t *testing.T) {
	d := doc()
	if got := Evaluate("$.items[0].name", d); got != "first" {
		t.Fatalf("$.items[0].name = %v, want first", got)
	}
	if got := Evaluate("$.items[1].id", d); got != float64(2) {
		t.Fatalf("$.items[1].id = %v, want 2", got)
	}
}

func TestEvaluateWildcard(t *testing.T) {
	d := doc()
	got := Evaluate("$.items[*].name", d)
	want := []any{"first", "second"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("$.items[*].name = %v, want %v", got, want)
	}
}

func TestEvaluateHyphenatedName(t *testing.T) {
	d := map[string]any{
		"quick-check": map[string]any{
			"meta": map[string]any{"confidence": 0.85},
		},
	}
	if got := Evaluate("$.quick-check.meta.confidence", d); got != 0.85 {
		t.Fatalf("$.quick-check.meta.confidence = %v, want 0.85", got)
	}
}

func TestEvaluateMissingSegments(t *testing.T) {
	d := doc()
	cases := []string{
		"$.nope",
		"$.a.b.c",
		"$.items[9]",
		"$.items[-1]",
		"$.flag[0]",
		"$.flag.sub",
		"$.a[0]",
	}
	for _, path := range cases {
		if got := Evaluate(path, d); !IsUndefined(got) {
			t.Fatalf("%s = %v, want undefined", path, got)
		}
	}
}

func TestLiteralPassThrough(t *testing.T) {
	if got := Evaluate("hello", doc()); got != "hello" {
		t.Fatalf("literal = %v, want hello", got)
	}
	if got := Evaluate("42", doc()); got != "42" {
		t.Fatalf("numeric literal = %v, want string 42", got)
	}
}

func TestMalformedPathIsUndefined(t *testing.T) {
	for _, path := range []string{"$.", "$.a[", "$.a[x]", "$!"} {
		if got := Evaluate(path, doc()); !IsUndefined(got) {
			t.Fatalf("%s = %v, want undefined", path, got)
		}
	}
}

func TestCompileCacheReuse(t *testing.T) {
	p1, err := Compile("$.items[*].id")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	p2, err := Compile("$.items[*].id")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("expected cached path to be reused")
	}
}

func TestEvaluateMapping(t *testing.T) {
	d := doc()
	got := EvaluateMapping(map[string]string{
		"name":  "$.items[0].name",
		"label": "static-label",
		"gone":  "$.missing",
	}, d)
	if got["name"] != "first" {
		t.Fatalf("mapping name = %v", got["name"])
	}
	if got["label"] != "static-label" {
		t.Fatalf("mapping label = %v", got["label"])
	}
	if got["gone"] != nil {
		t.Fatalf("unresolvable path should map to nil, got %v", got["gone"])
	}
}
