package config

// Backend types
const (
	BackendOpenAI    = "openai"
	BackendLangChain = "langchain"
	BackendGemini    = "gemini"
	BackendStub      = "stub"
)

// Credential sources
const (
	CredentialSourceFile = "file"
	CredentialSourceEnv  = "env"
)

// Request defaults for the completion call
const (
	DefaultModel       = "gpt-4o"
	DefaultTemperature = 0.3
	DefaultEndpoint    = "https://api.openai.com/v1"

	// SystemPrompt is the persona sent as the system message of every request.
	SystemPrompt = "You are a senior Dynamics 365 plugin developer."
)

// Prompt template placeholder tokens
const (
	TokenUserPrompt = "{{user_prompt}}"
	TokenMetadata   = "{{metadata_yaml}}"
)

// Credential file defaults
const (
	DefaultKeyFile        = "api_key.txt"
	DefaultKeyEnv         = "OPENAI_API_KEY"
	DefaultKeyPlaceholder = "your-api-key-here"
	KeyCommentPrefix      = "#"
)

// Interactive console text
const (
	MsgAskDescription = "Describe what the plugin should do:\n> "
	MsgGenerating     = "\n⏳ Generating plugin code via %s...\n"
	MsgGenerated      = "✅ Generated plugin code:\n"
)

// Scaffold defaults for files written to the output directory
const (
	DefaultNamespace = "PluginRight.Plugins"
	AILogicMarker    = "// [AI_LOGIC_HERE]"
)

// OutputTimeFormat stamps files written to the output directory.
const OutputTimeFormat = "20060102150405"
