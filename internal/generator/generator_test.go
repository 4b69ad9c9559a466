package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pluginright/internal/config"
	"pluginright/internal/prompt"
	"pluginright/internal/storage"
)

// fakeClient records every prompt it receives.
type fakeClient struct {
	mu      sync.Mutex
	output  string
	err     error
	failOn  string
	systems []string
	prompts []string
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.systems = append(f.systems, systemPrompt)
	f.prompts = append(f.prompts, userPrompt)
	if f.err != nil {
		return "", f.err
	}
	if f.failOn != "" && strings.Contains(userPrompt, f.failOn) {
		return "", errors.New("rate limited")
	}
	return f.output, nil
}

const testTemplate = "Task: {{user_prompt}}\nSchema:\n{{metadata_yaml}}"

func writeTemplate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompt_template.txt")
	if err := os.WriteFile(path, []byte(testTemplate), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestGenerator(t *testing.T, client *fakeClient, opts Options) *Generator {
	t.Helper()
	if opts.TemplatePath == "" {
		opts.TemplatePath = writeTemplate(t)
	}
	if opts.Metadata == "" {
		opts.Metadata = "entities: []"
	}
	opts.Backend = "fake"
	g := New(client, prompt.NewBuilder(prompt.DefaultPlaceholders()), opts)
	g.now = func() time.Time { return time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC) }
	return g
}

func TestGenerate(t *testing.T) {
	client := &fakeClient{output: "public class Plugin {}"}
	g := newTestGenerator(t, client, Options{})

	res, err := g.Generate(context.Background(), Request{Description: "create a validation plugin"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	wantPrompt := "Task: create a validation plugin\nSchema:\nentities: []"
	if res.Prompt != wantPrompt {
		t.Errorf("Prompt = %q, want %q", res.Prompt, wantPrompt)
	}
	if res.Output != "public class Plugin {}" {
		t.Errorf("Output = %q", res.Output)
	}
	if res.Name != DefaultName || res.ID == "" {
		t.Errorf("unexpected name/id: %q %q", res.Name, res.ID)
	}
	if res.Path != "" {
		t.Errorf("no file should be written without an output dir, got %s", res.Path)
	}

	if len(client.prompts) != 1 || client.prompts[0] != wantPrompt {
		t.Errorf("client received %v", client.prompts)
	}
	if client.systems[0] != config.SystemPrompt {
		t.Errorf("unexpected system prompt %q", client.systems[0])
	}
}

func TestGenerate_RequestMetadataOverrides(t *testing.T) {
	client := &fakeClient{output: "ok"}
	g := newTestGenerator(t, client, Options{})

	res, err := g.Generate(context.Background(), Request{Description: "d", Metadata: "entities: [lead]"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(res.Prompt, "entities: [lead]") {
		t.Errorf("expected request metadata in prompt, got %q", res.Prompt)
	}
}

func TestGenerate_MissingTemplate(t *testing.T) {
	client := &fakeClient{output: "ok"}
	g := newTestGenerator(t, client, Options{TemplatePath: filepath.Join(t.TempDir(), "missing.txt")})

	if _, err := g.Generate(context.Background(), Request{Description: "d"}); err == nil {
		t.Fatal("expected error for missing template")
	}
	if len(client.prompts) != 0 {
		t.Error("client must not be called when the template is missing")
	}
}

func TestGenerate_ClientErrorPropagates(t *testing.T) {
	apiErr := errors.New("401 unauthorized")
	g := newTestGenerator(t, &fakeClient{err: apiErr}, Options{})

	_, err := g.Generate(context.Background(), Request{Description: "d"})
	if !errors.Is(err, apiErr) {
		t.Errorf("expected wrapped client error, got %v", err)
	}
}

func TestGenerate_WritesOutputFile(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "orders")
	g := newTestGenerator(t, &fakeClient{output: "code"}, Options{OutputDir: outDir})

	res, err := g.Generate(context.Background(), Request{Name: "Account Create", Description: "d"})
	if err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(outDir, "Account_Create-20261019083000.cs")
	if res.Path != want {
		t.Errorf("Path = %s, want %s", res.Path, want)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "code" {
		t.Errorf("unexpected file content %q, %v", data, err)
	}
}

func TestGenerate_OutputWriteFailureKeepsResult(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	g := newTestGenerator(t, &fakeClient{output: "code"}, Options{OutputDir: filepath.Join(blocker, "orders")})

	res, err := g.Generate(context.Background(), Request{Description: "d"})
	if !errors.Is(err, ErrWriteOutput) {
		t.Fatalf("expected ErrWriteOutput, got %v", err)
	}
	if res == nil || res.Output != "code" {
		t.Fatalf("generated output must survive a failed write, got %+v", res)
	}
	if res.Path != "" {
		t.Errorf("Path should be empty after a failed write, got %s", res.Path)
	}
}

func TestWriteOutput_NeverOverwrites(t *testing.T) {
	outDir := t.TempDir()
	g := newTestGenerator(t, &fakeClient{}, Options{OutputDir: outDir})

	first, err := g.WriteOutput("Plugin", "0b6f2a4e-1111-2222-3333-444455556666", "one")
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.WriteOutput("Plugin", "9c1d7e3f-1111-2222-3333-444455556666", "two")
	if err != nil {
		t.Fatal(err)
	}

	if first != filepath.Join(outDir, "Plugin-20261019083000.cs") {
		t.Errorf("first path = %s", first)
	}
	if second != filepath.Join(outDir, "Plugin-20261019083000-9c1d7e3f.cs") {
		t.Errorf("second path = %s", second)
	}
	if data, _ := os.ReadFile(first); string(data) != "one" {
		t.Errorf("first file overwritten: %q", data)
	}

	// Same id again: both candidates are taken
	if _, err := g.WriteOutput("Plugin", "9c1d7e3f-1111-2222-3333-444455556666", "three"); err == nil {
		t.Error("expected error when every candidate name exists")
	}
}

func TestGenerate_RecordsHistory(t *testing.T) {
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	g := newTestGenerator(t, &fakeClient{output: "code"}, Options{Store: store, Model: "gpt-4o", Temperature: 0.3})
	res, err := g.Generate(context.Background(), Request{Name: "Ok", Description: "d"})
	if err != nil {
		t.Fatal(err)
	}

	failing := newTestGenerator(t, &fakeClient{err: errors.New("boom")}, Options{Store: store})
	if _, err := failing.Generate(context.Background(), Request{Name: "Bad", Description: "d"}); err == nil {
		t.Fatal("expected failure")
	}

	saved, err := store.GetGeneration(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("GetGeneration: %v", err)
	}
	if saved.Status != storage.StatusSuccess || saved.Output != "code" || saved.Model != "gpt-4o" {
		t.Errorf("unexpected record %+v", saved)
	}

	recent, err := store.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	var sawError bool
	for _, r := range recent {
		if r.Status == storage.StatusError && r.Error == "boom" {
			sawError = true
		}
	}
	if !sawError {
		t.Error("failed generation should be recorded with its error")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"CreateTask":       "CreateTask",
		"../etc/passwd":    ".._etc_passwd",
		"  ":               DefaultName,
		"Account: Create?": "Account__Create_",
	}
	for in, want := range tests {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
