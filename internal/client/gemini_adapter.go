package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GeminiAdapter implements llm.Client using the Google Gen AI SDK.
type GeminiAdapter struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// NewGeminiAdapter creates a Gemini API client. An empty baseURL uses the SDK default.
func NewGeminiAdapter(ctx context.Context, baseURL, apiKey, model string, temperature float64) (*GeminiAdapter, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiAdapter{
		client:      client,
		model:       model,
		temperature: float32(temperature),
	}, nil
}

// SetTimeout sets the request timeout. Zero waits for the endpoint indefinitely.
func (a *GeminiAdapter) SetTimeout(d time.Duration) {
	a.timeout = d
}

// Name returns the model name
func (a *GeminiAdapter) Name() string {
	return "gemini-" + a.model
}

// Complete implements llm.Client. The persona goes in the system instruction.
func (a *GeminiAdapter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(a.temperature),
	}
	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(userPrompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no gemini response")
	}
	return resp.Text(), nil
}
