package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pluginright/internal/types"

	"github.com/openai/openai-go"
)

// OpenAIAdapter implements llm.Client using the OpenAI official client
type OpenAIAdapter struct {
	client      *openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(client *openai.Client, model string, temperature float64) *OpenAIAdapter {
	return &OpenAIAdapter{
		client:      client,
		model:       model,
		temperature: temperature,
	}
}

// SetTimeout sets the request timeout. Zero waits for the endpoint indefinitely.
func (a *OpenAIAdapter) SetTimeout(d time.Duration) {
	a.timeout = d
}

// Name returns the model name
func (a *OpenAIAdapter) Name() string {
	return "openai-" + a.model
}

// Chat sends a chat completion request
func (a *OpenAIAdapter) Chat(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	// Use default model if not provided
	if params.Model == "" {
		params.Model = openai.ChatModel(a.model)
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, a.wrapError(fmt.Errorf("openai request: %w", err))
	}
	return resp, nil
}

// Complete sends the system persona and the prompt as two messages and
// returns the first choice's content.
func (a *OpenAIAdapter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(a.temperature),
	}

	resp, err := a.Chat(ctx, params)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no openai response")
	}

	return resp.Choices[0].Message.Content, nil
}

// wrapError wraps openai errors into RetryableError if applicable
func (a *OpenAIAdapter) wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		statusCode := apiErr.StatusCode
		// 429 (Rate Limit) and 5xx (Server Errors) are transient
		if statusCode == 429 || (statusCode >= 500 && statusCode < 600) {
			return types.NewRetryableError(err)
		}
	}

	return err
}
