// SPDX-License-Identifier: Apache-2.0
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/llm"
	"github.com/ziel-io/cognitive-modules/pkg/module"
	"github.com/ziel-io/cognitive-modules/pkg/resilience"
)

const contractPrompt = `Respond with a single JSON object and nothing else. The object must have:
  "ok": true or false
  "meta": {"confidence": number between 0 and 1, "risk": "none"|"low"|"medium"|"high", "explain": short string}
  "data": the task output (required when ok is true)
  "error": {"code": string, "message": string} (required when ok is false)`

// LLMInvoker executes atomic modules by sending their instructions and the
// input document to an LLM provider and parsing the reply into an envelope.
type LLMInvoker struct {
	provider    llm.Provider
	model       string
	temperature float64
	retry       resilience.RetryConfig
	logger      *slog.Logger
}

// LLMOption configures an LLMInvoker.
type LLMOption func(*LLMInvoker)

// WithModel sets the provider model name.
func WithModel(model string) LLMOption {
	return func(inv *LLMInvoker) { inv.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) LLMOption {
	return func(inv *LLMInvoker) { inv.temperature = t }
}

// WithRetry sets the retry policy for provider calls.
func WithRetry(cfg resilience.RetryConfig) LLMOption {
	return func(inv *LLMInvoker) { inv.retry = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) LLMOption {
	return func(inv *LLMInvoker) { inv.logger = logger }
}

// NewLLMInvoker creates an invoker backed by the given provider.
func NewLLMInvoker(provider llm.Provider, opts ...LLMOption) *LLMInvoker {
	inv := &LLMInvoker{
		provider: provider,
		retry:    resilience.DefaultRetryConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke renders the module instructions and input into a chat request,
// calls the provider with retry, and parses the reply into a result
// envelope. Provider failures and unparseable replies are returned as
// errors for the caller to convert.
func (inv *LLMInvoker) Invoke(ctx context.Context, mod *module.Module, input any) (*envelope.Result, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode input for module %s: %w", mod.Name, err)
	}

	req := llm.ChatRequest{
		Model:       inv.model,
		Temperature: inv.temperature,
		JSONOnly:    true,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: mod.Instructions + "\n\n" + contractPrompt},
			{Role: llm.RoleUser, Content: string(inputJSON)},
		},
	}

	var resp *llm.ChatResponse
	err = inv.retry.Do(ctx, func() error {
		var chatErr error
		resp, chatErr = inv.provider.Chat(ctx, req)
		return chatErr
	})
	if err != nil {
		return nil, fmt.Errorf("invoke module %s: %w", mod.Name, err)
	}

	result, err := ParseEnvelope(resp.Content)
	if err != nil {
		inv.logger.Warn("module produced unparseable output",
			"module", mod.Name,
			"code", string(envelope.CodeInvalidModuleOutput),
			"error", err)
		return nil, fmt.Errorf("parse output of module %s: %w", mod.Name, err)
	}

	inv.logger.Debug("module invoked",
		"module", mod.Name,
		"ok", result.OK,
		"confidence", result.Meta.Confidence,
		"tokens", resp.Usage.TotalTokens)
	return result, nil
}
