package client

import (
	"context"
	"fmt"

	"pluginright/internal/config"
	"pluginright/internal/credential"
	"pluginright/internal/llm"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultGeminiModel is used when the gemini backend runs with the OpenAI default model name.
const DefaultGeminiModel = "gemini-1.5-flash-latest"

// NewLLM creates the completion client selected by cfg.LLM.Backend.
// The returned client is safe for concurrent use as long as its configuration
// is not modified after creation.
func NewLLM(ctx context.Context, cfg *config.Config, cred credential.Credential) (llm.Client, error) {
	switch cfg.LLM.Backend {
	case config.BackendOpenAI, "":
		client := openai.NewClient(
			option.WithAPIKey(cred.Value()),
			option.WithBaseURL(cfg.LLM.Endpoint),
			option.WithMaxRetries(0),
		)
		adapter := NewOpenAIAdapter(&client, cfg.LLM.Model, cfg.LLM.Temperature)
		adapter.SetTimeout(cfg.LLM.Timeout)
		return adapter, nil

	case config.BackendLangChain:
		adapter, err := NewLangChainAdapter(cfg.LLM.Endpoint, cred.Value(), cfg.LLM.Model, cfg.LLM.Temperature)
		if err != nil {
			return nil, err
		}
		adapter.SetTimeout(cfg.LLM.Timeout)
		return adapter, nil

	case config.BackendGemini:
		model := cfg.LLM.Model
		if model == config.DefaultModel {
			model = DefaultGeminiModel
		}
		endpoint := cfg.LLM.Endpoint
		if endpoint == config.DefaultEndpoint {
			endpoint = ""
		}
		adapter, err := NewGeminiAdapter(ctx, endpoint, cred.Value(), model, cfg.LLM.Temperature)
		if err != nil {
			return nil, err
		}
		adapter.SetTimeout(cfg.LLM.Timeout)
		return adapter, nil

	case config.BackendStub:
		return NewStubAdapter(), nil

	default:
		return nil, fmt.Errorf("unknown llm backend: %q", cfg.LLM.Backend)
	}
}

// DisplayName is the provider label shown in console progress messages.
func DisplayName(backend string) string {
	switch backend {
	case config.BackendLangChain:
		return "LangChain"
	case config.BackendGemini:
		return "Gemini"
	case config.BackendStub:
		return "stub model"
	default:
		return "OpenAI"
	}
}
