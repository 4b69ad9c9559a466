package client

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainAdapter implements llm.Client on top of a langchaingo OpenAI model.
type LangChainAdapter struct {
	model       llms.Model
	name        string
	temperature float64
	timeout     time.Duration
}

// NewLangChainAdapter creates a langchaingo OpenAI model for endpoint.
// langchaingo rejects an empty token at construction time.
func NewLangChainAdapter(endpoint, apiKey, model string, temperature float64) (*LangChainAdapter, error) {
	lcLLM, err := openai.New(
		openai.WithModel(model),
		openai.WithBaseURL(endpoint),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("create langchain llm: %w", err)
	}
	return &LangChainAdapter{
		model:       lcLLM,
		name:        model,
		temperature: temperature,
	}, nil
}

// SetTimeout sets the request timeout. Zero waits for the endpoint indefinitely.
func (a *LangChainAdapter) SetTimeout(d time.Duration) {
	a.timeout = d
}

// Name returns the model name
func (a *LangChainAdapter) Name() string {
	return "langchain-" + a.name
}

// Complete implements llm.Client.
func (a *LangChainAdapter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}
	resp, err := a.model.GenerateContent(ctx, messages, llms.WithTemperature(a.temperature))
	if err != nil {
		return "", fmt.Errorf("langchain request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no langchain response")
	}
	return resp.Choices[0].Content, nil
}
