package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pluginright/internal/config"
	"pluginright/internal/types"
)

const testScaffold = `namespace {{NAMESPACE}}
{
    /// <summary>{{DESCRIPTION}}</summary>
    // Message: {{MESSAGE}}  Stage: {{STAGE}}  Entity: {{ENTITY}}  Mode: {{MODE}}
    public sealed class {{CLASS_NAME}} : SafePluginBase
    {
        // [AI_LOGIC_HERE]
    }
}`

func TestNewScaffold_MissingMarker(t *testing.T) {
	_, err := NewScaffold("public class {{CLASS_NAME}} {}", "")
	if !errors.Is(err, ErrMissingMarker) {
		t.Errorf("expected ErrMissingMarker, got %v", err)
	}
}

func TestLoadScaffold(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadScaffold(filepath.Join(dir, "missing.cs.txt"), ""); err == nil {
		t.Error("expected error for missing scaffold")
	} else {
		var cfgErr *types.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("expected ConfigError, got %T", err)
		}
	}

	noMarker := filepath.Join(dir, "plain.cs.txt")
	if err := os.WriteFile(noMarker, []byte("class X {}"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScaffold(noMarker, ""); !errors.Is(err, ErrMissingMarker) {
		t.Errorf("expected ErrMissingMarker, got %v", err)
	}

	good := filepath.Join(dir, "plugin.cs.txt")
	if err := os.WriteFile(good, []byte(testScaffold), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScaffold(good, ""); err != nil {
		t.Errorf("LoadScaffold: %v", err)
	}
}

func TestScaffold_Render(t *testing.T) {
	s, err := NewScaffold(testScaffold, "")
	if err != nil {
		t.Fatal(err)
	}

	reg := Registration{Entity: "account", Message: "create", Stage: 40, Mode: "Sync"}
	got := s.Render("CreateTask", "create a follow-up task", reg, "service.Create(task); // {{CLASS_NAME}}")

	for _, want := range []string{
		"namespace " + config.DefaultNamespace,
		"<summary>create a follow-up task</summary>",
		"Message: create  Stage: 40  Entity: account  Mode: Sync",
		"public sealed class AccountCreate_CreateTask : SafePluginBase",
		"service.Create(task); // {{CLASS_NAME}}",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered scaffold missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, config.AILogicMarker) {
		t.Error("marker should be replaced")
	}

	custom := s.Render("X", "", Registration{Namespace: "Contoso.Plugins"}, "")
	if !strings.Contains(custom, "namespace Contoso.Plugins") {
		t.Errorf("request namespace should win:\n%s", custom)
	}
}

func TestClassName(t *testing.T) {
	tests := []struct {
		name string
		reg  Registration
		want string
	}{
		{name: "CreateTask", reg: Registration{Entity: "account", Message: "create"}, want: "AccountCreate_CreateTask"},
		{name: "", reg: Registration{Entity: "contact", Message: "Update"}, want: "ContactUpdate_Generated"},
		{name: "Account Create", want: "Account_Create"},
		{name: "", want: "Generated"},
		{name: "1st-plugin", want: "_1st_plugin"},
	}
	for _, tt := range tests {
		if got := ClassName(tt.name, tt.reg); got != tt.want {
			t.Errorf("ClassName(%q, %+v) = %q, want %q", tt.name, tt.reg, got, tt.want)
		}
	}
}

func TestGenerate_WritesScaffoldedFile(t *testing.T) {
	s, err := NewScaffold(testScaffold, "Contoso.Plugins")
	if err != nil {
		t.Fatal(err)
	}
	outDir := t.TempDir()
	g := newTestGenerator(t, &fakeClient{output: "service.Create(task);"}, Options{OutputDir: outDir, Scaffold: s})

	res, err := g.Generate(context.Background(), Request{
		Name:         "CreateTask",
		Description:  "create a task",
		Registration: Registration{Entity: "account", Message: "Create"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Output != "service.Create(task);" {
		t.Errorf("Output should stay the raw completion, got %q", res.Output)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != res.Code {
		t.Error("file should hold the scaffolded code")
	}
	if !strings.Contains(res.Code, "class AccountCreate_CreateTask") || !strings.Contains(res.Code, "service.Create(task);") {
		t.Errorf("unexpected scaffolded code:\n%s", res.Code)
	}
}
