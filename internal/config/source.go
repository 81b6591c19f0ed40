package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environ snapshots the process environment as a settings map.
func Environ() map[string]string {
	settings := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			settings[k] = v
		}
	}
	return settings
}

// Load returns the process environment layered over the optional file at
// path. Environment variables always take precedence.
func Load(path string) (map[string]string, error) {
	if path == "" {
		return Environ(), nil
	}
	base, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Merge(base, Environ()), nil
}

// LoadFile reads settings from a YAML file (.yaml, .yml) or a dotenv file
// (anything else). Keys are the setting names, e.g. HOST or ATTACHMENTS.
func LoadFile(path string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		settings, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		return settings, nil
	}
}

// Merge overlays override onto base. Only non-empty override values win.
func Merge(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func loadYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := make(map[string]string, len(raw))
	for k, v := range raw {
		settings[k] = scalarString(v)
	}
	return settings, nil
}

// scalarString flattens a decoded YAML value into its setting form. Lists
// become comma-separated, which is how ATTACHMENTS is written in YAML.
func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, scalarString(item))
		}
		return strings.Join(items, ",")
	default:
		return fmt.Sprint(val)
	}
}
