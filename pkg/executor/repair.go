// SPDX-License-Identifier: Apache-2.0
package executor

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/ziel-io/cognitive-modules/pkg/envelope"
)

// ErrNoJSON is returned when a model reply contains no JSON object at all.
var ErrNoJSON = errors.New("no JSON object in model output")

// ParseEnvelope parses a model reply into a result envelope, tolerating the
// usual degradations: markdown code fences around the object, prose before
// or after it, and replies that skip the envelope and emit the bare payload.
// Only replies with no recoverable JSON object produce an error.
func ParseEnvelope(raw string) (*envelope.Result, error) {
	text := extractObject(stripFences(raw))
	if text == "" {
		return nil, ErrNoJSON
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, errors.New("malformed JSON in model output: " + err.Error())
	}

	ok, hasOK := doc["ok"].(bool)
	if !hasOK {
		// Bare payload without the envelope wrapper. Wrap it as a success
		// with neutral metadata.
		return envelope.Success(doc, envelope.Meta{
			Confidence: 0.5,
			Risk:       envelope.RiskNone,
		}), nil
	}

	meta := parseMeta(doc["meta"])

	if !ok {
		code, message := parseError(doc["error"])
		result := envelope.Failure(code, message)
		if meta.Explain != "" {
			result.Meta.Explain = envelope.TruncateExplain(meta.Explain)
		}
		if data, hasData := doc["data"]; hasData && data != nil {
			result = result.WithPartialData(data)
		}
		return result, nil
	}

	data := doc["data"]
	if data == nil {
		data = map[string]any{}
	}
	return envelope.Success(data, meta).Normalize(), nil
}

// parseMeta reads a meta block, tolerating missing or mistyped fields.
func parseMeta(v any) envelope.Meta {
	meta := envelope.Meta{Confidence: 0.5, Risk: envelope.RiskNone}
	m, ok := v.(map[string]any)
	if !ok {
		return meta
	}
	if c, ok := m["confidence"].(float64); ok {
		meta.Confidence = envelope.ClampConfidence(c)
	}
	if r, ok := m["risk"].(string); ok {
		if risk := envelope.RiskLevel(r); envelope.RiskRank(risk) > 0 || risk == envelope.RiskNone {
			meta.Risk = risk
		}
	}
	if e, ok := m["explain"].(string); ok {
		meta.Explain = envelope.TruncateExplain(e)
	}
	return meta
}

// parseError reads an error block, defaulting the code when absent.
func parseError(v any) (envelope.ErrorCode, string) {
	code := envelope.CodeModuleExecutionError
	message := "module reported failure"
	m, ok := v.(map[string]any)
	if !ok {
		return code, message
	}
	if c, ok := m["code"].(string); ok && c != "" {
		code = envelope.ErrorCode(c)
	}
	if msg, ok := m["message"].(string); ok && msg != "" {
		message = msg
	}
	return code, message
}

// stripFences removes a markdown code fence wrapper if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// extractObject returns the outermost {...} span of s, or "" when absent.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
