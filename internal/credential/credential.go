// Package credential resolves the API key used for completion requests.
//
// A key is resolved once at startup by a Resolver and then passed by value to
// whatever builds the LLM client.
package credential

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"pluginright/internal/config"
	"pluginright/internal/metrics"
	"pluginright/internal/types"
)

// Credential is an opaque API token.
type Credential string

// String redacts the token so it never reaches logs.
func (c Credential) String() string {
	if c == "" {
		return "<unset>"
	}
	return "<redacted>"
}

// LogValue keeps the token out of every slog handler, JSON included.
func (c Credential) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// Value returns the raw token.
func (c Credential) Value() string { return string(c) }

// Resolver produces a Credential or fails.
type Resolver interface {
	Resolve() (Credential, error)
	// Source names the strategy for logs and metrics.
	Source() string
}

// FileResolver reads the first non-empty, non-comment line of a key file.
type FileResolver struct {
	Path         string
	Placeholders []string
}

// NewFileResolver creates a resolver for path. With no placeholders the
// well-known "your-api-key-here" marker is used.
func NewFileResolver(path string, placeholders []string) *FileResolver {
	if len(placeholders) == 0 {
		placeholders = []string{config.DefaultKeyPlaceholder}
	}
	return &FileResolver{Path: path, Placeholders: placeholders}
}

// Source implements Resolver.
func (r *FileResolver) Source() string { return config.CredentialSourceFile }

// Resolve implements Resolver.
func (r *FileResolver) Resolve() (Credential, error) {
	notFound := types.NewConfigError(
		"OpenAI API key not found",
		fmt.Sprintf("Create %s with your key on the first non-comment line.", r.Path),
		nil,
	)

	f, err := os.Open(r.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", notFound
		}
		return "", types.NewConfigError("open api key file", "", err)
	}
	defer f.Close()

	// No line length limit: keys are read whole however long they are
	rd := bufio.NewReader(f)
	for {
		raw, readErr := rd.ReadString('\n')
		line := strings.TrimSpace(raw)
		if line != "" && !strings.HasPrefix(line, config.KeyCommentPrefix) {
			for _, marker := range r.Placeholders {
				if marker != "" && strings.Contains(line, marker) {
					return "", types.NewConfigError(
						fmt.Sprintf("%s contains a placeholder (%q)", r.Path, marker),
						"Replace it with your real API key.",
						nil,
					)
				}
			}
			return Credential(line), nil
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return "", types.NewConfigError("read api key file", "", readErr)
		}
	}
	return "", notFound
}

// EnvResolver reads the key from an environment variable. An unset variable
// yields an empty Credential; the remote call reports the failure later.
type EnvResolver struct {
	Var    string
	DotEnv string // optional .env file loaded first; existing variables win
}

// NewEnvResolver creates an environment-backed resolver.
func NewEnvResolver(name, dotenv string) *EnvResolver {
	return &EnvResolver{Var: name, DotEnv: dotenv}
}

// Source implements Resolver.
func (r *EnvResolver) Source() string { return config.CredentialSourceEnv }

// Resolve implements Resolver.
func (r *EnvResolver) Resolve() (Credential, error) {
	if r.DotEnv != "" {
		if err := godotenv.Load(r.DotEnv); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("load dotenv failed", "path", r.DotEnv, "error", err)
		}
	}
	val, ok := os.LookupEnv(r.Var)
	if !ok {
		slog.Debug("credential variable unset", "var", r.Var)
	}
	return Credential(val), nil
}

// StaticResolver returns a fixed key, used when llm.api_key or LLM_API_KEY is set.
type StaticResolver struct {
	Key string
}

// Source implements Resolver.
func (r StaticResolver) Source() string { return "config" }

// Resolve implements Resolver.
func (r StaticResolver) Resolve() (Credential, error) {
	return Credential(r.Key), nil
}

// NewResolver selects a strategy from configuration.
func NewResolver(cfg *config.Config) (Resolver, error) {
	if cfg.LLM.APIKey != "" {
		return StaticResolver{Key: cfg.LLM.APIKey}, nil
	}
	switch cfg.Credential.Source {
	case config.CredentialSourceFile:
		return NewFileResolver(cfg.Credential.File, cfg.Credential.Placeholders), nil
	case config.CredentialSourceEnv:
		return NewEnvResolver(cfg.Credential.Env, cfg.Credential.DotEnv), nil
	default:
		return nil, fmt.Errorf("unknown credential source: %q", cfg.Credential.Source)
	}
}

// Resolve runs r once and records the outcome.
func Resolve(r Resolver) (Credential, error) {
	cred, err := r.Resolve()
	if err != nil {
		metrics.CredentialResolutions.WithLabelValues(r.Source(), "error").Inc()
		return "", err
	}
	metrics.CredentialResolutions.WithLabelValues(r.Source(), "success").Inc()
	slog.Debug("credential resolved", "source", r.Source(), "credential", cred)
	return cred, nil
}
