package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pluginright/internal/config"
	"pluginright/internal/types"
)

// DefaultMetadata describes the example Dataverse entities sent with every
// prompt unless a metadata file is configured.
const DefaultMetadata = `
entities:
  - name: contact
    fields:
      - emailaddress1 (string)
      - firstname (string)
      - parentcustomerid (lookup: account)
  - name: account
    fields:
      - emailaddress1 (string)
`

// Placeholders is the set of literal tokens recognized in a template.
type Placeholders struct {
	UserPrompt string
	Metadata   string
}

// DefaultPlaceholders returns {{user_prompt}} and {{metadata_yaml}}.
func DefaultPlaceholders() Placeholders {
	return Placeholders{
		UserPrompt: config.TokenUserPrompt,
		Metadata:   config.TokenMetadata,
	}
}

// Builder merges user input and metadata into a template file
type Builder struct {
	tokens Placeholders
}

// NewBuilder creates a builder for the given tokens. Empty tokens fall back to the defaults.
func NewBuilder(tokens Placeholders) *Builder {
	def := DefaultPlaceholders()
	if tokens.UserPrompt == "" {
		tokens.UserPrompt = def.UserPrompt
	}
	if tokens.Metadata == "" {
		tokens.Metadata = def.Metadata
	}
	return &Builder{tokens: tokens}
}

// Tokens returns the placeholders this builder substitutes.
func (b *Builder) Tokens() Placeholders { return b.tokens }

// Build loads the template at templatePath and substitutes userPrompt and metadata.
func (b *Builder) Build(userPrompt, templatePath, metadata string) (string, error) {
	tmpl, err := LoadTemplate(templatePath)
	if err != nil {
		return "", err
	}
	return b.Render(tmpl, userPrompt, metadata), nil
}

// Render replaces every occurrence of each token. Replacement is literal and
// single-pass: substituted text is never scanned again. A token missing from
// the template is left alone.
func (b *Builder) Render(tmpl, userPrompt, metadata string) string {
	r := strings.NewReplacer(
		b.tokens.UserPrompt, userPrompt,
		b.tokens.Metadata, metadata,
	)
	return r.Replace(tmpl)
}

// LoadTemplate reads a template file as text.
func LoadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", types.NewConfigError(
				fmt.Sprintf("template not found: %s", path),
				"Provide a text file containing the {{user_prompt}} and {{metadata_yaml}} placeholders.",
				err,
			)
		}
		return "", fmt.Errorf("read template %s: %w", path, err)
	}
	return string(data), nil
}

// LoadMetadata returns the metadata block stored at path, or DefaultMetadata
// when path is empty. The file must be valid YAML; its text is passed through unchanged.
func LoadMetadata(path string) (string, error) {
	if path == "" {
		return DefaultMetadata, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", types.NewConfigError(fmt.Sprintf("read metadata %s", path), "", err)
	}
	if err := ValidateMetadata(string(data)); err != nil {
		return "", types.NewConfigError(fmt.Sprintf("metadata %s is not valid YAML", path), "", err)
	}
	return string(data), nil
}

// ValidateMetadata checks that text parses as a YAML document.
func ValidateMetadata(text string) error {
	var doc any
	return yaml.Unmarshal([]byte(text), &doc)
}
