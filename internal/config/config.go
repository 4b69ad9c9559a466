package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values
const (
	DefaultConfigPath  = "config.yaml"
	DefaultTemplate    = "prompt_template.txt"
	DefaultConcurrency = 4
	DefaultMaxBodySize = 1 << 20 // 1 MiB
)

// CredentialConfig selects where the API key comes from
type CredentialConfig struct {
	Source       string   `yaml:"source"`       // file, env
	File         string   `yaml:"file"`         // Key file for the file source
	Env          string   `yaml:"env"`          // Variable name for the env source
	DotEnv       string   `yaml:"dotenv"`       // .env file loaded before reading Env (optional)
	Placeholders []string `yaml:"placeholders"` // Markers treated as an unedited key file
}

// PromptConfig holds template and metadata locations
type PromptConfig struct {
	Template string `yaml:"template"` // Template file path
	Metadata string `yaml:"metadata"` // Metadata YAML file; empty uses the built-in block
	Tokens   struct {
		UserPrompt string `yaml:"user_prompt"`
		Metadata   string `yaml:"metadata"`
	} `yaml:"tokens"`
}

// StorageConfig holds configuration for generation history
type StorageConfig struct {
	Driver  string        `yaml:"driver"`  // sqlite, or empty to disable
	DSN     string        `yaml:"dsn"`     // Connection string
	Timeout time.Duration `yaml:"timeout"` // Timeout for storage operations (default: 5s)
}

// Config holds the configuration for the plugin generator
type Config struct {
	Log struct {
		Level    string `yaml:"level"`  // DEBUG, INFO, WARN, ERROR
		Format   string `yaml:"format"` // text, json
		Output   string `yaml:"output"` // stdout, stderr, /path/to/file
		Rotation struct {
			MaxSize    int  `yaml:"max_size"`    // Megabytes
			MaxBackups int  `yaml:"max_backups"` // Number of old files to keep
			MaxAge     int  `yaml:"max_age"`     // Days to keep
			Compress   bool `yaml:"compress"`
		} `yaml:"rotation"`
	} `yaml:"log"`

	LLM struct {
		Backend     string        `yaml:"backend"` // openai, langchain, gemini, stub
		Model       string        `yaml:"model"`
		Endpoint    string        `yaml:"endpoint"`
		APIKey      string        `yaml:"api_key"` // From YAML or Env; overrides the credential resolver
		Temperature float64       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"` // 0 waits until the endpoint answers
	} `yaml:"llm"`

	Credential CredentialConfig `yaml:"credential"`

	Prompt PromptConfig `yaml:"prompt"`

	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"` // Must cover the completion round trip
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		MaxBodySize     int64         `yaml:"max_body_size"`
		APIKey          string        `yaml:"api_key"` // X-Api-Key expected by /v1 routes; From YAML or Env
	} `yaml:"server"`

	Output struct {
		Dir       string `yaml:"dir"`       // Write generated code here as well as stdout
		Scaffold  string `yaml:"scaffold"`  // C# file template the logic is spliced into; empty writes the raw completion
		Namespace string `yaml:"namespace"` // Default {{NAMESPACE}} for the scaffold
	} `yaml:"output"`

	Batch struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"batch"`

	Storage StorageConfig `yaml:"storage"`

	Metrics struct {
		Textfile string `yaml:"textfile"` // node_exporter textfile written at exit
	} `yaml:"metrics"`
}

// GetLogLevel returns the slog.Level based on Log.Level string
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Defaults returns a configuration populated with built-in defaults only.
func Defaults() *Config {
	cfg := &Config{}

	cfg.Log.Level = "INFO"
	cfg.Log.Format = "text"
	cfg.Log.Output = "stderr"
	cfg.Log.Rotation.MaxSize = 100
	cfg.Log.Rotation.MaxBackups = 10
	cfg.Log.Rotation.MaxAge = 7
	cfg.Log.Rotation.Compress = true

	cfg.LLM.Backend = BackendOpenAI
	cfg.LLM.Endpoint = DefaultEndpoint
	cfg.LLM.Model = DefaultModel
	cfg.LLM.Temperature = DefaultTemperature

	cfg.Credential.Source = CredentialSourceFile
	cfg.Credential.File = DefaultKeyFile
	cfg.Credential.Env = DefaultKeyEnv
	cfg.Credential.DotEnv = ".env"
	cfg.Credential.Placeholders = []string{DefaultKeyPlaceholder}

	cfg.Prompt.Template = DefaultTemplate
	cfg.Prompt.Tokens.UserPrompt = TokenUserPrompt
	cfg.Prompt.Tokens.Metadata = TokenMetadata

	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 10 * time.Second
	cfg.Server.WriteTimeout = 5 * time.Minute
	cfg.Server.ShutdownTimeout = 30 * time.Second
	cfg.Server.MaxBodySize = DefaultMaxBodySize

	cfg.Output.Namespace = DefaultNamespace

	cfg.Batch.Concurrency = DefaultConcurrency
	cfg.Storage.Timeout = 5 * time.Second

	return cfg
}

// LoadConfig loads configuration from a YAML file and supplements it with environment variables.
// An empty path falls back to $CONFIG_PATH, then config.yaml. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	configPath := path
	if configPath == "" {
		configPath = getEnv("CONFIG_PATH", DefaultConfigPath)
	}
	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config %s: %w", configPath, err)
		}
		slog.Debug("config loaded", "path", configPath)
	} else {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		slog.Debug("config not found, using defaults", "path", configPath)
	}

	// Always supplement/override with environment variables for secrets and critical items
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Backend = getEnv("LLM_BACKEND", cfg.LLM.Backend)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Endpoint = getEnv("LLM_ENDPOINT", cfg.LLM.Endpoint)
	cfg.Credential.Source = getEnv("CREDENTIAL_SOURCE", cfg.Credential.Source)
	cfg.Prompt.Template = getEnv("TEMPLATE_PATH", cfg.Prompt.Template)
	cfg.Server.APIKey = getEnv("SERVER_API_KEY", cfg.Server.APIKey)
	if envPort := getEnvInt("PORT", 0); envPort != 0 {
		cfg.Server.Port = envPort
	}

	if envLogLevel := os.Getenv("LOG_LEVEL"); envLogLevel != "" {
		cfg.Log.Level = envLogLevel
	}
	if envLogFormat := os.Getenv("LOG_FORMAT"); envLogFormat != "" {
		cfg.Log.Format = envLogFormat
	}
	if envLogOutput := getEnv("LOG_OUTPUT", ""); envLogOutput != "" {
		cfg.Log.Output = envLogOutput
	}
	if envConcurrency := getEnvInt("BATCH_CONCURRENCY", 0); envConcurrency != 0 {
		cfg.Batch.Concurrency = envConcurrency
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	switch c.LLM.Backend {
	case BackendOpenAI, BackendLangChain, BackendGemini, BackendStub:
	default:
		errs = append(errs, fmt.Sprintf("unknown llm backend: %q", c.LLM.Backend))
	}

	switch c.Credential.Source {
	case CredentialSourceFile:
		if c.Credential.File == "" {
			errs = append(errs, "credential.file is required for the file source")
		}
	case CredentialSourceEnv:
		if c.Credential.Env == "" {
			errs = append(errs, "credential.env is required for the env source")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown credential source: %q", c.Credential.Source))
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("invalid temperature: %v", c.LLM.Temperature))
	}

	if c.Prompt.Tokens.UserPrompt == "" || c.Prompt.Tokens.Metadata == "" {
		errs = append(errs, "prompt tokens must not be empty")
	} else if c.Prompt.Tokens.UserPrompt == c.Prompt.Tokens.Metadata {
		errs = append(errs, "prompt tokens must be distinct")
	}

	if c.Batch.Concurrency < 1 {
		errs = append(errs, fmt.Sprintf("invalid batch concurrency: %d", c.Batch.Concurrency))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid server port: %d", c.Server.Port))
	}
	if c.Server.MaxBodySize < 1 {
		errs = append(errs, fmt.Sprintf("invalid server max body size: %d", c.Server.MaxBodySize))
	}

	if c.Storage.Driver != "" && c.Storage.Driver != "sqlite" {
		errs = append(errs, fmt.Sprintf("unknown storage driver: %q", c.Storage.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
