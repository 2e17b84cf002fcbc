// SPDX-License-Identifier: Apache-2.0
// Package condition evaluates boolean expressions over JSON-like documents.
// Expressions combine path lookups ("$.meta.confidence"), literals, the
// special forms exists(path), contains(path, "lit") and path.length, with
// comparisons and the logical operators ||, && and !.
//
// Evaluation never raises: malformed expressions are logged and yield false,
// so a single bad condition cannot abort an otherwise-healthy workflow.
package condition

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/ziel-io/cognitive-modules/pkg/expression"
)

// Evaluator compiles condition expressions once and caches the compiled form
// keyed by expression text. The zero value is not usable; call New.
type Evaluator struct {
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]node
}

// New creates an evaluator. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger, cache: make(map[string]node)}
}

var defaultEvaluator = New(nil)

// Evaluate runs an expression against a document using a shared evaluator.
func Evaluate(expr string, doc any) bool {
	return defaultEvaluator.Evaluate(expr, doc)
}

// Evaluate compiles (or reuses) the expression and evaluates it against the
// document. An empty expression is vacuously true. On any internal failure
// the error is logged and false is returned.
func (e *Evaluator) Evaluate(expr string, doc any) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true
	}

	n, err := e.compile(expr)
	if err != nil {
		e.logger.Warn("condition compile failed",
			"code", "CONDITION_EVAL_ERROR", "condition", expr, "error", err)
		return false
	}

	v, err := n.eval(doc)
	if err != nil {
		e.logger.Warn("condition evaluation failed",
			"code", "CONDITION_EVAL_ERROR", "condition", expr, "error", err)
		return false
	}
	return truthy(v)
}

func (e *Evaluator) compile(expr string) (node, error) {
	e.mu.RLock()
	n, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return n, nil
	}

	n, err := parseOr(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expr] = n
	e.mu.Unlock()
	return n, nil
}

// --- AST ---

type node interface {
	eval(doc any) (any, error)
}

type orNode struct{ terms []node }

func (n orNode) eval(doc any) (any, error) {
	for _, t := range n.terms {
		v, err := t.eval(doc)
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

type andNode struct{ terms []node }

func (n andNode) eval(doc any) (any, error) {
	for _, t := range n.terms {
		v, err := t.eval(doc)
		if err != nil {
			return nil, err
		}
		if !truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

type notNode struct{ inner node }

func (n notNode) eval(doc any) (any, error) {
	v, err := n.inner.eval(doc)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

type cmpNode struct {
	op  string
	lhs node
	rhs node
}

func (n cmpNode) eval(doc any) (any, error) {
	lv, err := n.lhs.eval(doc)
	if err != nil {
		return nil, err
	}
	rv, err := n.rhs.eval(doc)
	if err != nil {
		return nil, err
	}
	return compare(n.op, lv, rv)
}

type literalNode struct{ value any }

func (n literalNode) eval(any) (any, error) { return n.value, nil }

type pathNode struct{ path *expression.Path }

func (n pathNode) eval(doc any) (any, error) {
	v := n.path.Evaluate(doc)
	if expression.IsUndefined(v) {
		return nil, nil
	}
	return v, nil
}

type existsNode struct{ path *expression.Path }

func (n existsNode) eval(doc any) (any, error) {
	v := n.path.Evaluate(doc)
	return !expression.IsUndefined(v) && v != nil, nil
}

type containsNode struct {
	path    *expression.Path
	literal string
}

func (n containsNode) eval(doc any) (any, error) {
	v := n.path.Evaluate(doc)
	switch val := v.(type) {
	case string:
		return strings.Contains(val, n.literal), nil
	case []any:
		for _, elem := range val {
			if stringify(elem) == n.literal {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

type lengthNode struct{ path *expression.Path }

func (n lengthNode) eval(doc any) (any, error) {
	v := n.path.Evaluate(doc)
	switch val := v.(type) {
	case string:
		return float64(len(val)), nil
	case []any:
		return float64(len(val)), nil
	default:
		return float64(0), nil
	}
}

// --- parser ---
// Precedence, lowest to highest: || then && then unary ! then comparison
// then primary.

func parseOr(s string) (node, error) {
	parts := splitTopLevel(s, "||")
	if len(parts) == 1 {
		return parseAnd(parts[0])
	}
	terms := make([]node, 0, len(parts))
	for _, p := range parts {
		t, err := parseAnd(p)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return orNode{terms: terms}, nil
}

func parseAnd(s string) (node, error) {
	parts := splitTopLevel(s, "&&")
	if len(parts) == 1 {
		return parseUnary(parts[0])
	}
	terms := make([]node, 0, len(parts))
	for _, p := range parts {
		t, err := parseUnary(p)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return andNode{terms: terms}, nil
}

func parseUnary(s string) (node, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty expression term")
	}
	if s[0] == '!' && (len(s) == 1 || s[1] != '=') {
		inner, err := parseUnary(s[1:])
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	if wrapped(s) {
		return parseOr(s[1 : len(s)-1])
	}
	return parseComparison(s)
}

func parseComparison(s string) (node, error) {
	for _, op := range []string{"==", "!=", ">=", "<=", ">", "<"} {
		if lhs, rhs, ok := splitComparison(s, op); ok {
			l, err := parseOperand(lhs)
			if err != nil {
				return nil, err
			}
			r, err := parseOperand(rhs)
			if err != nil {
				return nil, err
			}
			return cmpNode{op: op, lhs: l, rhs: r}, nil
		}
	}
	return parseOperand(s)
}

func parseOperand(s string) (node, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty operand")
	}
	if wrapped(s) {
		return parseOr(s[1 : len(s)-1])
	}

	// Special forms are resolved before generic evaluation.
	if inner, ok := callArgs(s, "exists"); ok {
		p, err := compilePath(inner)
		if err != nil {
			return nil, err
		}
		return existsNode{path: p}, nil
	}
	if inner, ok := callArgs(s, "contains"); ok {
		args := splitTopLevel(inner, ",")
		if len(args) != 2 {
			return nil, fmt.Errorf("contains expects 2 arguments, got %d", len(args))
		}
		p, err := compilePath(args[0])
		if err != nil {
			return nil, err
		}
		lit := strings.TrimSpace(args[1])
		return containsNode{path: p, literal: unquote(lit)}, nil
	}
	if strings.HasPrefix(s, "$") && strings.HasSuffix(s, ".length") {
		p, err := compilePath(strings.TrimSuffix(s, ".length"))
		if err != nil {
			return nil, err
		}
		return lengthNode{path: p}, nil
	}

	if s[0] == '"' || s[0] == '\'' {
		return literalNode{value: unquote(s)}, nil
	}
	if s == "true" {
		return literalNode{value: true}, nil
	}
	if s == "false" {
		return literalNode{value: false}, nil
	}
	if s == "null" {
		return literalNode{value: nil}, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return literalNode{value: n}, nil
	}
	if strings.HasPrefix(s, "$") {
		p, err := compilePath(s)
		if err != nil {
			return nil, err
		}
		return pathNode{path: p}, nil
	}
	// Bare word: treat as a string literal. Anything with structure left in
	// it at this point is a parse failure, not a literal.
	if strings.ContainsAny(s, "()\"' \t") {
		return nil, fmt.Errorf("cannot parse operand %q", s)
	}
	return literalNode{value: s}, nil
}

func compilePath(s string) (*expression.Path, error) {
	return expression.Compile(strings.TrimSpace(s))
}

// callArgs returns the argument text of a "name(...)" call form.
func callArgs(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	inner := s[len(name)+1 : len(s)-1]
	// Reject "exists(a) && exists(b)" style mismatches where the trailing
	// paren closes a different call.
	if !balanced(inner) {
		return "", false
	}
	return inner, true
}

// splitTopLevel splits on an operator, tracking parenthesis depth and
// skipping matches inside quoted string literals so operators embedded in
// string arguments are not mis-split.
func splitTopLevel(s, op string) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(s[i:], op) {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				i += len(op) - 1
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}

// splitComparison finds the first top-level occurrence of op outside quotes
// and parens, returning both sides.
func splitComparison(s, op string) (string, string, bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(s[i:], op) {
				// Don't split ">" out of ">=" or "<" out of "<=".
				if (op == ">" || op == "<") && i+1 < len(s) && s[i+1] == '=' {
					i++
					continue
				}
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(op):]), true
			}
		}
	}
	return "", "", false
}

// wrapped reports whether s is fully enclosed by one matching paren pair.
func wrapped(s string) bool {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return false
	}
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}

func balanced(s string) bool {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// --- comparison semantics ---
// String comparisons use exact equality; the ordering comparators coerce
// both operands to numbers.

func compare(op string, l, r any) (bool, error) {
	switch op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	}

	ln, lok := toNumber(l)
	rn, rok := toNumber(r)
	if !lok || !rok {
		return false, fmt.Errorf("operator %s requires numeric operands (got %T, %T)", op, l, r)
	}
	switch op {
	case ">":
		return ln > rn, nil
	case "<":
		return ln < rn, nil
	case ">=":
		return ln >= rn, nil
	case "<=":
		return ln <= rn, nil
	}
	return false, fmt.Errorf("unknown comparison operator %q", op)
}

func equal(l, r any) bool {
	ls, lIsStr := l.(string)
	rs, rIsStr := r.(string)
	if lIsStr && rIsStr {
		return ls == rs
	}
	if ln, ok := toNumber(l); ok {
		if rn, ok := toNumber(r); ok {
			return ln == rn
		}
	}
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if lb, ok := l.(bool); ok {
		rb, ok := r.(bool)
		return ok && lb == rb
	}
	// Composite values compare by their JSON encoding.
	return stringify(l) == stringify(r)
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// truthy mirrors the loose boolean semantics of the condition language:
// nil and undefined are false, booleans are themselves, numbers are true
// when non-zero, strings when non-empty.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	default:
		if expression.IsUndefined(v) {
			return false
		}
		return true
	}
}

// stringify renders a value in its literal form: strings bare, numbers and
// booleans via strconv, composite values JSON-encoded.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}
