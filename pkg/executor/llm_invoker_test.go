// SPDX-License-Identifier: Apache-2.0
package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/llm"
	"github.com/ziel-io/cognitive-modules/pkg/module"
	"github.com/ziel-io/cognitive-modules/pkg/resilience"
)

func testModule(name string) *module.Module {
	return &module.Module{
		Name:         name,
		Version:      "1.0.0",
		Instructions: "Classify the sentiment of the given text.",
	}
}

func TestLLMInvokerSuccess(t *testing.T) {
	var captured llm.ChatRequest
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			captured = req
			return &llm.ChatResponse{
				Content: `{"ok": true, "meta": {"confidence": 0.9, "risk": "none", "explain": "clear positive"}, "data": {"sentiment": "positive"}}`,
			}, nil
		},
	}
	inv := NewLLMInvoker(provider, WithModel("test-model"))

	result, err := inv.Invoke(context.Background(), testModule("sentiment"), map[string]any{"text": "great"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK || result.Meta.Confidence != 0.9 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if !captured.JSONOnly {
		t.Fatalf("expected JSONOnly request")
	}
	if captured.Model != "test-model" {
		t.Fatalf("unexpected model: %q", captured.Model)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(captured.Messages))
	}
	if !strings.Contains(captured.Messages[0].Content, "Classify the sentiment") {
		t.Fatalf("system prompt missing instructions: %q", captured.Messages[0].Content)
	}
	if !strings.Contains(captured.Messages[1].Content, `"text":"great"`) {
		t.Fatalf("user prompt missing input: %q", captured.Messages[1].Content)
	}
}

func TestLLMInvokerRetriesTransientErrors(t *testing.T) {
	attempts := 0
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("connection reset")
			}
			return &llm.ChatResponse{Content: `{"ok": true, "data": {}}`}, nil
		},
	}
	retry := resilience.DefaultRetryConfig().WithMaxAttempts(3)
	retry.InitialDelay = time.Millisecond
	inv := NewLLMInvoker(provider, WithRetry(retry))

	result, err := inv.Invoke(context.Background(), testModule("sentiment"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK {
		t.Fatalf("expected success after retries")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestLLMInvokerProviderFailure(t *testing.T) {
	provider := &llm.MockProvider{Err: errors.New("backend down")}
	retry := resilience.DefaultRetryConfig().WithMaxAttempts(2)
	retry.InitialDelay = time.Millisecond
	inv := NewLLMInvoker(provider, WithRetry(retry))

	_, err := inv.Invoke(context.Background(), testModule("sentiment"), nil)
	if err == nil {
		t.Fatalf("expected error from failing provider")
	}
	if provider.Calls() != 2 {
		t.Fatalf("expected 2 attempts, got %d", provider.Calls())
	}
}

func TestLLMInvokerUnparseableOutput(t *testing.T) {
	provider := &llm.MockProvider{Response: "sure, the sentiment is positive"}
	inv := NewLLMInvoker(provider)

	_, err := inv.Invoke(context.Background(), testModule("sentiment"), nil)
	if !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
}

func TestMockInvokerDefaultsAndCounting(t *testing.T) {
	mock := NewMockInvoker()
	mock.SetResult("scored", envelope.Success(map[string]any{"v": 1}, envelope.Meta{Confidence: 0.7, Risk: envelope.RiskLow}))

	ctx := context.Background()
	if _, err := mock.Invoke(ctx, testModule("scored"), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := mock.Invoke(ctx, testModule("other"), map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK {
		t.Fatalf("expected default success")
	}

	if mock.CallCount("scored") != 1 || mock.CallCount("other") != 1 {
		t.Fatalf("unexpected call counts: %v", mock.Calls())
	}
	inputs := mock.Inputs("other")
	if len(inputs) != 1 {
		t.Fatalf("expected 1 recorded input, got %d", len(inputs))
	}
}

func TestMockInvokerDelayHonorsContext(t *testing.T) {
	mock := NewMockInvoker()
	mock.SetDelay("slow", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := mock.Invoke(ctx, testModule("slow"), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
