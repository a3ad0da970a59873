package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a fresh tool instance. Registered tools are instantiated
// per selection so agents never share mutable tool state by accident.
type Factory func() Tool

type Bundle struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tools       []string `json:"tools"`
}

type Info struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
	descs     = map[string]string{}
	bundles   = map[string]Bundle{}
)

func Register(name, description string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if factory == nil {
		return fmt.Errorf("tool factory is required")
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	factories[name] = factory
	descs[name] = strings.TrimSpace(description)
	return nil
}

func MustRegister(name, description string, factory Factory) {
	if err := Register(name, description, factory); err != nil {
		panic(err)
	}
}

func RegisterBundle(name, description string, toolNames []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("bundle name is required")
	}
	cleaned := make([]string, 0, len(toolNames))
	for _, t := range toolNames {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return fmt.Errorf("bundle %q has no tools", name)
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := bundles[name]; exists {
		return fmt.Errorf("bundle %q already registered", name)
	}
	bundles[name] = Bundle{Name: name, Description: strings.TrimSpace(description), Tools: cleaned}
	return nil
}

func MustRegisterBundle(name, description string, toolNames []string) {
	if err := RegisterBundle(name, description, toolNames); err != nil {
		panic(err)
	}
}

func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func Catalog() []Info {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]Info, 0, len(factories))
	for name := range factories {
		out = append(out, Info{Name: name, Description: descs[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func Bundles() []Bundle {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]Bundle, 0, len(bundles))
	for _, b := range bundles {
		out = append(out, Bundle{
			Name:        b.Name,
			Description: b.Description,
			Tools:       append([]string(nil), b.Tools...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BuildSelection instantiates tools by name. Entries may be a tool name,
// "@bundle" to expand a registered bundle, or "*" for everything.
func BuildSelection(selection []string) ([]Tool, error) {
	names, err := expandSelection(selection)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}

	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		factory, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		tool := factory()
		if tool == nil {
			return nil, fmt.Errorf("tool %q factory returned nil", name)
		}
		out = append(out, tool)
	}
	return out, nil
}

func expandSelection(selection []string) ([]string, error) {
	regMu.RLock()
	defer regMu.RUnlock()

	ordered := make([]string, 0, len(selection))
	seen := map[string]bool{}
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		ordered = append(ordered, name)
	}

	for _, raw := range selection {
		entry := strings.TrimSpace(raw)
		switch {
		case entry == "":
		case strings.HasPrefix(entry, "@"):
			bundle, ok := bundles[strings.TrimPrefix(entry, "@")]
			if !ok {
				return nil, fmt.Errorf("unknown tool bundle %q", entry)
			}
			for _, n := range bundle.Tools {
				add(n)
			}
		case entry == "*":
			all := make([]string, 0, len(factories))
			for n := range factories {
				all = append(all, n)
			}
			sort.Strings(all)
			for _, n := range all {
				add(n)
			}
		default:
			add(entry)
		}
	}
	return ordered, nil
}

// Execute instantiates and runs a registered tool by name.
func Execute(ctx context.Context, name string, input json.RawMessage) (any, error) {
	regMu.RLock()
	factory, ok := factories[name]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	t := factory()
	if t == nil {
		return nil, fmt.Errorf("tool %q factory returned nil", name)
	}
	return t.Execute(ctx, input)
}
