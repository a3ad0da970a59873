package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRegisterRejectsDuplicatesAndBlanks(t *testing.T) {
	if err := Register("", "desc", func() Tool { return NewCalculator() }); err == nil {
		t.Fatal("expected error for blank name")
	}
	if err := Register("blank_factory", "desc", nil); err == nil {
		t.Fatal("expected error for nil factory")
	}
	if err := Register("calculator", "again", NewCalculator); err == nil {
		t.Fatal("expected error for duplicate name")
	}
}

func TestBuildSelectionByName(t *testing.T) {
	built, err := BuildSelection([]string{"calculator", " timestamp_converter "})
	if err != nil {
		t.Fatalf("BuildSelection: %v", err)
	}
	if len(built) != 2 {
		t.Fatalf("built %d tools", len(built))
	}
	if built[0].Definition().Name != "calculator" || built[1].Definition().Name != "timestamp_converter" {
		t.Fatalf("order = %s, %s", built[0].Definition().Name, built[1].Definition().Name)
	}
}

func TestBuildSelectionExpandsBundles(t *testing.T) {
	built, err := BuildSelection([]string{"@core"})
	if err != nil {
		t.Fatalf("BuildSelection: %v", err)
	}
	got := make([]string, len(built))
	for i, tool := range built {
		got[i] = tool.Definition().Name
	}
	want := []string{"calculator", "timestamp_converter", "uuid_generator"}
	if len(got) != len(want) {
		t.Fatalf("bundle expanded to %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bundle order = %v, want %v", got, want)
		}
	}
}

func TestBuildSelectionDeduplicates(t *testing.T) {
	built, err := BuildSelection([]string{"calculator", "@core", "calculator"})
	if err != nil {
		t.Fatalf("BuildSelection: %v", err)
	}
	seen := map[string]int{}
	for _, tool := range built {
		seen[tool.Definition().Name]++
	}
	if seen["calculator"] != 1 {
		t.Fatalf("calculator instantiated %d times", seen["calculator"])
	}
}

func TestBuildSelectionWildcardAndErrors(t *testing.T) {
	built, err := BuildSelection([]string{"*"})
	if err != nil {
		t.Fatalf("BuildSelection: %v", err)
	}
	if len(built) < 6 {
		t.Fatalf("wildcard built only %d tools", len(built))
	}

	if _, err := BuildSelection([]string{"no_such_tool"}); err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if _, err := BuildSelection([]string{"@no_such_bundle"}); err == nil {
		t.Fatal("expected error for unknown bundle")
	}
}

func TestExecuteByName(t *testing.T) {
	out, err := Execute(context.Background(), "calculator", json.RawMessage(`{"expression":"6*7"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	result := out.(map[string]any)
	if result["result"] != "42" {
		t.Fatalf("result = %v", result["result"])
	}

	if _, err := Execute(context.Background(), "no_such_tool", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestCatalogListsBundles(t *testing.T) {
	names := map[string]bool{}
	for _, b := range Bundles() {
		names[b.Name] = true
	}
	for _, want := range []string{"core", "web", "memory"} {
		if !names[want] {
			t.Fatalf("bundle %q missing from %v", want, names)
		}
	}
}
