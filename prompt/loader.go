package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// LoadDir registers every prompt file (.json, .yaml, .yml) in a directory.
// A missing directory is not an error; it just loads nothing.
func LoadDir(path string) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		spec, err := LoadFile(filepath.Join(path, entry.Name()))
		if err != nil {
			return loaded, err
		}
		if err := Register(spec); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

// LoadFile reads one prompt spec. The file name supplies the prompt name
// when the spec omits it.
func LoadFile(path string) (Spec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read prompt file %q: %w", path, err)
	}

	var spec Spec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &spec); err != nil {
			return Spec{}, fmt.Errorf("decode prompt file %q: %w", path, err)
		}
	default:
		if err := json.Unmarshal(content, &spec); err != nil {
			return Spec{}, fmt.Errorf("decode prompt file %q: %w", path, err)
		}
	}

	if strings.TrimSpace(spec.Name) == "" {
		base := filepath.Base(path)
		spec.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return spec, nil
}
