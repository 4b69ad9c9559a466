package generator

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"pluginright/internal/config"
	"pluginright/internal/types"
)

// Scaffold tokens rendered from the request's Registration.
const (
	TokenClassName   = "{{CLASS_NAME}}"
	TokenNamespace   = "{{NAMESPACE}}"
	TokenEntity      = "{{ENTITY}}"
	TokenMessage     = "{{MESSAGE}}"
	TokenStage       = "{{STAGE}}"
	TokenMode        = "{{MODE}}"
	TokenDescription = "{{DESCRIPTION}}"
)

// ErrMissingMarker is returned for a scaffold without the logic marker.
var ErrMissingMarker = fmt.Errorf("scaffold missing marker %q", config.AILogicMarker)

// Registration describes the plugin step the generated code is registered on.
// All fields are optional; they only feed the scaffold.
type Registration struct {
	Entity    string // e.g. account
	Message   string // e.g. Create
	Stage     int    // e.g. 40; zero when unknown
	Mode      string // Sync or Async
	Namespace string
}

// Scaffold is a C# source template the completion is spliced into at the
// logic marker before the file is written.
type Scaffold struct {
	text      string
	namespace string
}

// NewScaffold checks text for the logic marker. namespace is used when a
// request does not name one.
func NewScaffold(text, namespace string) (*Scaffold, error) {
	if !strings.Contains(text, config.AILogicMarker) {
		return nil, ErrMissingMarker
	}
	if namespace == "" {
		namespace = config.DefaultNamespace
	}
	return &Scaffold{text: text, namespace: namespace}, nil
}

// LoadScaffold reads and checks a scaffold file.
func LoadScaffold(path, namespace string) (*Scaffold, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.NewConfigError(
				"scaffold not found: "+path,
				fmt.Sprintf("Create it with a %q line where the generated logic goes, or unset output.scaffold.", config.AILogicMarker),
				err,
			)
		}
		return nil, fmt.Errorf("read scaffold: %w", err)
	}
	s, err := NewScaffold(string(data), namespace)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Render fills the scaffold tokens and replaces the marker with logic.
// Substitution is single pass, so tokens inside logic are left alone.
func (s *Scaffold) Render(name, description string, reg Registration, logic string) string {
	namespace := reg.Namespace
	if namespace == "" {
		namespace = s.namespace
	}
	stage := ""
	if reg.Stage != 0 {
		stage = strconv.Itoa(reg.Stage)
	}

	return strings.NewReplacer(
		TokenClassName, ClassName(name, reg),
		TokenNamespace, namespace,
		TokenEntity, reg.Entity,
		TokenMessage, reg.Message,
		TokenStage, stage,
		TokenMode, reg.Mode,
		TokenDescription, description,
		config.AILogicMarker, logic,
	).Replace(s.text)
}

// ClassName derives the plugin class, e.g. AccountCreate_CreateTask for
// entity account, message create and name CreateTask.
func ClassName(name string, reg Registration) string {
	label := identifier(name)
	if label == "" {
		label = "Generated"
	}
	prefix := identifier(capitalize(reg.Entity) + capitalize(reg.Message))
	if prefix == "" {
		return label
	}
	return prefix + "_" + label
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// identifier maps s onto a valid C# identifier.
func identifier(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	id := strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
	if unicode.IsDigit([]rune(id)[0]) {
		id = "_" + id
	}
	return id
}
