// SPDX-License-Identifier: Apache-2.0
// Package expression extracts values from JSON-like documents using a small
// path syntax: "$" for the whole document, "$.field" for object access,
// "$.items[0]" for array indexing and "$.items[*].id" for wildcard fan-out.
// Missing segments yield Undefined, never an error. Strings that do not
// start with "$" pass through unchanged, so mapping tables can mix literal
// values and path lookups.
package expression

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

type undefinedType struct{}

func (undefinedType) String() string { return "undefined" }

// Undefined is returned when a path cannot be resolved against a document.
var Undefined = undefinedType{}

// IsUndefined reports whether a value is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefinedType)
	return ok
}

type segmentKind int

const (
	segField segmentKind = iota
	segIndex
	segWildcard
)

type segment struct {
	kind  segmentKind
	field string
	index int
}

// Path is a compiled path expression.
type Path struct {
	raw      string
	literal  bool
	segments []segment
}

var (
	cacheMu sync.RWMutex
	cache   = map[string]*Path{}
)

// Compile parses a path expression into its segment form, consulting a
// process-wide cache keyed by the expression text.
func Compile(expr string) (*Path, error) {
	cacheMu.RLock()
	p, ok := cache[expr]
	cacheMu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := parse(expr)
	if err != nil {
		return nil, err
	}

	cacheMu.Lock()
	cache[expr] = p
	cacheMu.Unlock()
	return p, nil
}

func parse(expr string) (*Path, error) {
	if !strings.HasPrefix(expr, "$") {
		return &Path{raw: expr, literal: true}, nil
	}

	p := &Path{raw: expr}
	rest := expr[1:]
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := 0
			for end < len(rest) && isNameChar(rest[end]) {
				end++
			}
			if end == 0 {
				return nil, fmt.Errorf("path %q: empty field name", expr)
			}
			p.segments = append(p.segments, segment{kind: segField, field: rest[:end]})
			rest = rest[end:]
		case '[':
			close := strings.IndexByte(rest, ']')
			if close < 0 {
				return nil, fmt.Errorf("path %q: unterminated index", expr)
			}
			inner := rest[1:close]
			if inner == "*" {
				p.segments = append(p.segments, segment{kind: segWildcard})
			} else {
				n, err := strconv.Atoi(inner)
				if err != nil {
					return nil, fmt.Errorf("path %q: invalid index %q", expr, inner)
				}
				p.segments = append(p.segments, segment{kind: segIndex, index: n})
			}
			rest = rest[close+1:]
		default:
			return nil, fmt.Errorf("path %q: unexpected character %q", expr, rest[0])
		}
	}
	return p, nil
}

// Field names may include letters, digits, underscore and hyphen, so
// hyphenated module names like "quick-check" resolve correctly.
func isNameChar(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// Evaluate resolves a path expression against a document. Malformed paths
// and unresolvable segments both yield Undefined.
func Evaluate(expr string, doc any) any {
	p, err := Compile(expr)
	if err != nil {
		return Undefined
	}
	return p.Evaluate(doc)
}

// Evaluate resolves the compiled path against a document.
func (p *Path) Evaluate(doc any) any {
	if p.literal {
		return p.raw
	}
	return walk(doc, p.segments)
}

func walk(current any, segs []segment) any {
	for i, seg := range segs {
		switch seg.kind {
		case segField:
			obj, ok := current.(map[string]any)
			if !ok {
				return Undefined
			}
			val, ok := obj[seg.field]
			if !ok {
				return Undefined
			}
			current = val
		case segIndex:
			arr, ok := current.([]any)
			if !ok {
				return Undefined
			}
			if seg.index < 0 || seg.index >= len(arr) {
				return Undefined
			}
			current = arr[seg.index]
		case segWildcard:
			arr, ok := current.([]any)
			if !ok {
				return Undefined
			}
			// The wildcard consumes the remainder of the path and applies it
			// to every element independently.
			rest := segs[i+1:]
			out := make([]any, 0, len(arr))
			for _, elem := range arr {
				v := walk(elem, rest)
				if IsUndefined(v) {
					v = nil
				}
				out = append(out, v)
			}
			return out
		}
	}
	return current
}

// EvaluateMapping applies a field mapping table to a document, producing a
// new object. Values that are path expressions are resolved; everything
// else passes through as a literal. Unresolvable paths map to nil.
func EvaluateMapping(mapping map[string]string, doc any) map[string]any {
	out := make(map[string]any, len(mapping))
	for field, expr := range mapping {
		v := Evaluate(expr, doc)
		if IsUndefined(v) {
			v = nil
		}
		out[field] = v
	}
	return out
}
