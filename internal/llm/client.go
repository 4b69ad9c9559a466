package llm

import (
	"context"
)

// Client sends one prompt to a chat-completion provider and returns the reply text.
// Model and sampling parameters are fixed when the client is built.
type Client interface {
	// Complete sends a system message and a user message and blocks until the
	// provider returns the first choice's text or fails.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// Name identifies backend and model, e.g. "openai-gpt-4o".
	Name() string
}
