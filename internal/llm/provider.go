package llm

import "context"

// Provider defines the interface for LLM providers. Implementations are
// fallible RPCs: callers own retry and timeout policy.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
