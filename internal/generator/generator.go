// Package generator turns a plugin description into generated code: it
// builds the prompt, calls the completion client and records the outcome.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pluginright/internal/config"
	"pluginright/internal/llm"
	"pluginright/internal/metrics"
	"pluginright/internal/prompt"
	"pluginright/internal/storage"
)

// DefaultName labels requests that do not carry a name.
const DefaultName = "GeneratedPlugin"

// ErrWriteOutput marks a generation that succeeded but whose file could not
// be written. The Result returned alongside it still carries the output.
var ErrWriteOutput = errors.New("write output")

// Request is one plugin to generate
type Request struct {
	Name        string
	Description string
	// Metadata overrides the generator's metadata block when non-empty.
	Metadata     string
	Registration Registration
}

// Result is a completed generation
type Result struct {
	ID       string
	Name     string
	Prompt   string
	Output   string
	// Code is Output spliced into the scaffold, or Output itself without one.
	Code     string
	Duration time.Duration
	// Path is set when the output was also written to a file.
	Path string
}

// Options configures a Generator
type Options struct {
	TemplatePath string
	Metadata     string
	SystemPrompt string
	Backend      string
	Model        string
	Temperature  float64
	OutputDir    string // empty: stdout only
	Scaffold     *Scaffold
	Store        storage.Repository
	StoreTimeout time.Duration
}

// Generator runs generation requests against one completion client.
// It holds no per-request state and is safe for concurrent use.
type Generator struct {
	llm     llm.Client
	builder *prompt.Builder
	opts    Options
	now     func() time.Time
}

// New creates a Generator
func New(client llm.Client, builder *prompt.Builder, opts Options) *Generator {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = config.SystemPrompt
	}
	if opts.Metadata == "" {
		opts.Metadata = prompt.DefaultMetadata
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Generator{
		llm:     client,
		builder: builder,
		opts:    opts,
		now:     time.Now,
	}
}

// Generate builds the prompt for req and sends it to the completion client.
// Errors from the client are returned as-is apart from wrapping. A failed
// file write returns both the Result and an error matching ErrWriteOutput.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	name := req.Name
	if name == "" {
		name = DefaultName
	}
	metadata := req.Metadata
	if metadata == "" {
		metadata = g.opts.Metadata
	}

	fullPrompt, err := g.builder.Build(req.Description, g.opts.TemplatePath, metadata)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	res := &Result{
		ID:     uuid.NewString(),
		Name:   name,
		Prompt: fullPrompt,
	}

	slog.Debug("sending completion request", "id", res.ID, "name", name, "client", g.llm.Name(), "prompt_chars", len(fullPrompt))
	start := g.now()
	output, err := g.llm.Complete(ctx, g.opts.SystemPrompt, fullPrompt)
	res.Duration = g.now().Sub(start)
	metrics.GenerationDuration.WithLabelValues(g.opts.Backend).Observe(res.Duration.Seconds())

	g.record(ctx, req, res, output, err)

	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("generate %s: %w", name, err)
	}
	metrics.GenerationsTotal.WithLabelValues("success").Inc()
	res.Output = output
	res.Code = output
	if g.opts.Scaffold != nil {
		res.Code = g.opts.Scaffold.Render(name, req.Description, req.Registration, output)
	}

	if g.opts.OutputDir != "" {
		path, err := g.WriteOutput(name, res.ID, res.Code)
		if err != nil {
			slog.Error("generation completed but output not written", "id", res.ID, "name", name, "error", err)
			return res, fmt.Errorf("%w %s: %w", ErrWriteOutput, name, err)
		}
		res.Path = path
	}

	slog.Info("generation completed", "id", res.ID, "name", name, "duration", res.Duration)
	return res, nil
}

// record persists the attempt. Storage problems are logged, never returned.
func (g *Generator) record(ctx context.Context, req Request, res *Result, output string, genErr error) {
	if g.opts.Store == nil {
		return
	}

	rec := &storage.GenerationRecord{
		ID:          res.ID,
		Name:        res.Name,
		Description: req.Description,
		Backend:     g.opts.Backend,
		Model:       g.opts.Model,
		Temperature: g.opts.Temperature,
		Prompt:      res.Prompt,
		Output:      output,
		Status:      storage.StatusSuccess,
		DurationMs:  res.Duration.Milliseconds(),
		CreatedAt:   g.now().UTC(),
	}
	if genErr != nil {
		rec.Status = storage.StatusError
		rec.Error = genErr.Error()
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.opts.StoreTimeout)
	defer cancel()
	if err := g.opts.Store.SaveGeneration(storeCtx, rec); err != nil {
		slog.Warn("save generation failed", "id", rec.ID, "error", err)
	}
}

// WriteOutput writes text to <OutputDir>/<name>-<yyyyMMddHHmmss>.cs and returns
// the path. Existing files are never replaced: when the name is taken the
// first characters of id are appended.
func (g *Generator) WriteOutput(name, id, text string) (string, error) {
	if err := os.MkdirAll(g.opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	base := fmt.Sprintf("%s-%s", sanitizeName(name), g.now().UTC().Format(config.OutputTimeFormat))
	candidates := []string{base + ".cs"}
	if suffix := shortID(id); suffix != "" {
		candidates = append(candidates, base+"-"+suffix+".cs")
	}

	for _, fileName := range candidates {
		path := filepath.Join(g.opts.OutputDir, fileName)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("write output: %w", err)
		}
		_, werr := f.WriteString(text)
		if err := errors.Join(werr, f.Close()); err != nil {
			return "", fmt.Errorf("write output: %w", err)
		}
		slog.Info("output written", "path", path)
		return path, nil
	}
	return "", fmt.Errorf("write output: %s.cs already exists", base)
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}

func sanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return DefaultName
	}
	return name
}
