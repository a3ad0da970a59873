package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

type greetArgs struct {
	Name  string `json:"name" jsonschema:"required" jsonschema_description:"Who to greet."`
	Loud  bool   `json:"loud,omitempty"`
	Times int    `json:"times,omitempty"`
}

func TestTypedDecodesArguments(t *testing.T) {
	tool := Typed("greet", "Say hello.", func(ctx context.Context, args greetArgs) (any, error) {
		greeting := "hello " + args.Name
		if args.Loud {
			greeting = strings.ToUpper(greeting)
		}
		return greeting, nil
	})

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"name":"ada","loud":true}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "HELLO ADA" {
		t.Fatalf("out = %v", out)
	}
}

func TestTypedEmptyArgumentsUseZeroValue(t *testing.T) {
	tool := Typed("greet", "Say hello.", func(ctx context.Context, args greetArgs) (any, error) {
		return args, nil
	})
	out, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.(greetArgs).Name != "" {
		t.Fatalf("zero args = %#v", out)
	}
}

func TestTypedRejectsMalformedArguments(t *testing.T) {
	tool := Typed("greet", "Say hello.", func(ctx context.Context, args greetArgs) (any, error) {
		return nil, nil
	})
	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"name":`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSchemaForReflectsTags(t *testing.T) {
	schema := SchemaFor[greetArgs]()

	if schema["type"] != "object" {
		t.Fatalf("type = %v", schema["type"])
	}
	if _, present := schema["$schema"]; present {
		t.Fatal("$schema should be stripped")
	}

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties = %T", schema["properties"])
	}
	for _, field := range []string{"name", "loud", "times"} {
		if _, ok := props[field]; !ok {
			t.Fatalf("property %q missing", field)
		}
	}
	name := props["name"].(map[string]any)
	if name["description"] != "Who to greet." {
		t.Fatalf("name description = %v", name["description"])
	}

	required, ok := schema["required"].([]any)
	if !ok || len(required) != 1 || required[0] != "name" {
		t.Fatalf("required = %v", schema["required"])
	}
}

func TestFuncToolNilFunc(t *testing.T) {
	tool := NewFuncTool("noop", "does nothing", map[string]any{"type": "object"}, nil)
	if _, err := tool.Execute(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil execute func")
	}
}
