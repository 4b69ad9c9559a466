package main

import (
	"context"
	"fmt"
	"log/slog"

	"pluginright/internal/client"
	"pluginright/internal/config"
	"pluginright/internal/credential"
	"pluginright/internal/generator"
	"pluginright/internal/llm"
	"pluginright/internal/metrics"
	"pluginright/internal/prompt"
	"pluginright/internal/storage"
)

// app holds everything built once at startup.
type app struct {
	cfg        *config.Config
	store      storage.Repository
	gen        *generator.Generator
	llm        llm.Client
	ready      bool // false when no key was found for a backend that needs one
	logCleanup func()
}

// setupOptions carries command-line overrides applied on top of the config file.
type setupOptions struct {
	configPath string
	outputDir  string
	template   string
	metadata   string
	scaffold   string
	// withLLM resolves the credential and builds the generator.
	withLLM bool
}

func newApp(ctx context.Context, opts setupOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.outputDir != "" {
		cfg.Output.Dir = opts.outputDir
	}
	if opts.template != "" {
		cfg.Prompt.Template = opts.template
	}
	if opts.metadata != "" {
		cfg.Prompt.Metadata = opts.metadata
	}
	if opts.scaffold != "" {
		cfg.Output.Scaffold = opts.scaffold
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger, logCleanup := setupLogger(cfg)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logCleanup: logCleanup}

	if cfg.Storage.Driver == "sqlite" {
		store, err := storage.NewSQLiteRepository(cfg.Storage.DSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init storage: %w", err)
		}
		a.store = store
	}

	if !opts.withLLM {
		return a, nil
	}

	// The credential is resolved exactly once, before any request is built
	resolver, err := credential.NewResolver(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	cred, err := credential.Resolve(resolver)
	if err != nil {
		a.Close()
		return nil, err
	}

	metadata, err := prompt.LoadMetadata(cfg.Prompt.Metadata)
	if err != nil {
		a.Close()
		return nil, err
	}

	llmClient, err := client.NewLLM(ctx, cfg, cred)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create llm: %w", err)
	}
	slog.Debug("llm initialized", "client", llmClient.Name(), "credential_source", resolver.Source())

	var scaffold *generator.Scaffold
	if cfg.Output.Scaffold != "" {
		scaffold, err = generator.LoadScaffold(cfg.Output.Scaffold, cfg.Output.Namespace)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	builder := prompt.NewBuilder(prompt.Placeholders{
		UserPrompt: cfg.Prompt.Tokens.UserPrompt,
		Metadata:   cfg.Prompt.Tokens.Metadata,
	})

	opt := generator.Options{
		TemplatePath: cfg.Prompt.Template,
		Metadata:     metadata,
		SystemPrompt: config.SystemPrompt,
		Backend:      cfg.LLM.Backend,
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		OutputDir:    cfg.Output.Dir,
		Scaffold:     scaffold,
		Store:        a.store,
		StoreTimeout: cfg.Storage.Timeout,
	}
	a.gen = generator.New(llmClient, builder, opt)
	a.llm = llmClient
	a.ready = cred.Value() != "" || cfg.LLM.Backend == config.BackendStub

	return a, nil
}

// Close releases storage, flushes metrics and closes log files.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("close storage failed", "error", err)
		}
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		slog.Warn("metrics flush failed", "error", err)
	}
	if a.logCleanup != nil {
		a.logCleanup()
	}
}
