// SPDX-License-Identifier: Apache-2.0
// Package executor turns a module definition plus an input document into a
// result envelope. Atomic modules are executed through an LLM provider;
// the orchestrator in pkg/compose handles composite modules and only reaches
// this package for the leaves.
package executor

import (
	"context"

	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/module"
)

// Invoker executes a single atomic module against an input document.
//
// A nil error with a failure envelope means the module itself reported a
// failure. A non-nil error means the invocation boundary broke (provider
// unreachable, output unparseable) and the caller should convert it into
// a failure envelope.
type Invoker interface {
	Invoke(ctx context.Context, mod *module.Module, input any) (*envelope.Result, error)
}

// InvokerFunc adapts a plain function to the Invoker interface.
type InvokerFunc func(ctx context.Context, mod *module.Module, input any) (*envelope.Result, error)

func (f InvokerFunc) Invoke(ctx context.Context, mod *module.Module, input any) (*envelope.Result, error) {
	return f(ctx, mod, input)
}
