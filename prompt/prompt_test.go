package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegistryResolvesHighestVersion(t *testing.T) {
	r := NewRegistry()
	for _, v := range []string{"v1", "v3", "v2"} {
		err := r.Register(Spec{Name: "helper", Version: v, System: "system " + v})
		if err != nil {
			t.Fatalf("Register %s: %v", v, err)
		}
	}

	spec, ok := r.Resolve("helper")
	if !ok || spec.Version != "v3" {
		t.Fatalf("bare name resolved %#v", spec)
	}

	spec, ok = r.Resolve("helper@v1")
	if !ok || spec.System != "system v1" {
		t.Fatalf("pinned version resolved %#v", spec)
	}

	if _, ok := r.Resolve("helper@v9"); ok {
		t.Fatal("unknown version should not resolve")
	}
	if _, ok := r.Resolve("stranger"); ok {
		t.Fatal("unknown name should not resolve")
	}
}

func TestRegisterNormalizesAndValidates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Spec{Name: "  Helper  ", System: "  hi  "}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	spec, ok := r.Resolve("helper")
	if !ok || spec.Version != "v1" || spec.System != "hi" {
		t.Fatalf("normalized = %#v", spec)
	}

	if err := r.Register(Spec{Name: "", System: "x"}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := r.Register(Spec{Name: "x", System: "   "}); err == nil {
		t.Fatal("expected error for empty system text")
	}
	if err := r.Register(Spec{Name: "bad name!", System: "x"}); err == nil {
		t.Fatal("expected error for invalid name characters")
	}
}

func TestRenderSubstitutesVariables(t *testing.T) {
	out, err := Render("Hello {{name}}, welcome to {{ place }}.", map[string]string{
		"name":  "Ada",
		"place": "Oslo",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "Hello Ada, welcome to Oslo." {
		t.Fatalf("out = %q", out)
	}
}

func TestRenderMissingVariableFails(t *testing.T) {
	_, err := Render("Hi {{name}}, {{name}} from {{city}}", map[string]string{"city": "Oslo"})
	if err == nil {
		t.Fatal("expected error for missing variable")
	}
	if !strings.Contains(err.Error(), "name") {
		t.Fatalf("error should name the variable: %v", err)
	}
	if strings.Count(err.Error(), "name") != 1 {
		t.Fatalf("missing variables should be deduplicated: %v", err)
	}
}

func TestRenderSpec(t *testing.T) {
	MustRegister(Spec{Name: "render-spec-test", System: "Role: {{role}}"})
	out, err := RenderSpec("render-spec-test", map[string]string{"role": "pilot"})
	if err != nil {
		t.Fatalf("RenderSpec: %v", err)
	}
	if out != "Role: pilot" {
		t.Fatalf("out = %q", out)
	}

	if _, err := RenderSpec("never-registered", nil); err == nil {
		t.Fatal("expected error for unknown prompt")
	}
}

func TestLoadDirRegistersJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("loaded-json.json", `{"name":"loaded-json","version":"v2","system":"from json"}`)
	write("loaded-yaml.yaml", "version: v1\nsystem: from yaml\n")
	write("notes.txt", "ignored")

	n, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d prompts", n)
	}

	spec, ok := Resolve("loaded-json@v2")
	if !ok || spec.System != "from json" {
		t.Fatalf("json spec = %#v", spec)
	}

	// The yaml file omitted a name, so the file name supplies it.
	spec, ok = Resolve("loaded-yaml")
	if !ok || spec.System != "from yaml" {
		t.Fatalf("yaml spec = %#v", spec)
	}
}

func TestLoadDirMissingDirectory(t *testing.T) {
	n, err := LoadDir(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 0 {
		t.Fatalf("loaded %d from missing dir", n)
	}
}

func TestBuiltinsRegister(t *testing.T) {
	RegisterBuiltins()
	for _, name := range []string{"default", "personal-chef", "travel-agent", "office-intern", "researcher"} {
		if _, ok := Resolve(name); !ok {
			t.Fatalf("builtin %q missing", name)
		}
	}
	out, err := RenderSpec("personal-chef", map[string]string{"preferences": "vegetarian"})
	if err != nil {
		t.Fatalf("RenderSpec: %v", err)
	}
	if !strings.Contains(out, "vegetarian") {
		t.Fatalf("rendered prompt missing preference: %q", out)
	}
}
