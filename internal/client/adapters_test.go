package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pluginright/internal/config"
	"pluginright/internal/credential"
)

func TestLangChainAdapter_Complete(t *testing.T) {
	var reqBody map[string]any
	ts := chatCompletionServer(t, "langchain says hi", &reqBody)
	defer ts.Close()

	adapter, err := NewLangChainAdapter(ts.URL, "test-key", "gpt-4o", 0.3)
	if err != nil {
		t.Fatalf("NewLangChainAdapter: %v", err)
	}

	got, err := adapter.Complete(context.Background(), systemPersona, "the prompt")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "langchain says hi" {
		t.Errorf("Complete() = %q", got)
	}

	messages, ok := reqBody["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %v", reqBody["messages"])
	}
	if role := messages[0].(map[string]any)["role"]; role != "system" {
		t.Errorf("expected system role first, got %v", role)
	}
	if adapter.Name() != "langchain-gpt-4o" {
		t.Errorf("Name() = %q", adapter.Name())
	}
}

func TestGeminiAdapter_Complete(t *testing.T) {
	var reqBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"gemini plugin"}]},"finishReason":"STOP"}]}`))
	}))
	defer ts.Close()

	adapter, err := NewGeminiAdapter(context.Background(), ts.URL, "test-key", "gemini-test", 0.1)
	if err != nil {
		t.Fatalf("NewGeminiAdapter: %v", err)
	}

	got, err := adapter.Complete(context.Background(), systemPersona, "the prompt")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "gemini plugin" {
		t.Errorf("Complete() = %q", got)
	}
	if _, ok := reqBody["systemInstruction"]; !ok {
		t.Errorf("expected systemInstruction in request, got %v", reqBody)
	}
	if adapter.Name() != "gemini-gemini-test" {
		t.Errorf("Name() = %q", adapter.Name())
	}
}

func TestStubAdapter_Deterministic(t *testing.T) {
	stub := NewStubAdapter()

	first, err := stub.Complete(context.Background(), "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := stub.Complete(context.Background(), "c", "d")
	if first != second {
		t.Error("stub output should not depend on the prompt")
	}
	if !strings.Contains(first, "service.Create(task);") {
		t.Errorf("unexpected stub output %q", first)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := stub.Complete(ctx, "a", "b"); err == nil {
		t.Error("expected canceled context error")
	}
}

func TestNewLLM(t *testing.T) {
	tests := []struct {
		backend  string
		wantName string
		wantErr  bool
	}{
		{backend: config.BackendOpenAI, wantName: "openai-gpt-4o"},
		{backend: config.BackendLangChain, wantName: "langchain-gpt-4o"},
		{backend: config.BackendGemini, wantName: "gemini-" + DefaultGeminiModel},
		{backend: config.BackendStub, wantName: "stub"},
		{backend: "bard", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.LLM.Backend = tt.backend

			client, err := NewLLM(context.Background(), cfg, credential.Credential("sk-test"))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLLM: %v", err)
			}
			if client.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", client.Name(), tt.wantName)
			}
		})
	}
}

func TestNewLLM_UnsetCredentialDefersFailure(t *testing.T) {
	cfg := config.Defaults()
	if _, err := NewLLM(context.Background(), cfg, credential.Credential("")); err != nil {
		t.Errorf("openai client should be created without a key: %v", err)
	}
}

func TestDisplayName(t *testing.T) {
	if DisplayName(config.BackendOpenAI) != "OpenAI" {
		t.Errorf("unexpected display name %q", DisplayName(config.BackendOpenAI))
	}
	if DisplayName(config.BackendGemini) != "Gemini" {
		t.Errorf("unexpected display name %q", DisplayName(config.BackendGemini))
	}
}
