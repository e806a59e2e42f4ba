package config

import (
	"fmt"
	"os"
	"path/filepath"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// PanelSetsVersion is the only supported schema version.
const PanelSetsVersion = 1

// PanelDef binds one panel name to its tool subset.
type PanelDef struct {
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

// PanelSetsFile is the mode-to-panel-set mapping, hot-reloadable at runtime.
type PanelSetsFile struct {
	// Version is the schema version.
	Version int `yaml:"version"`

	// Standard is the panel set dispatched for standard and debate rigor.
	Standard []PanelDef `yaml:"standard"`

	// Fast is the single panel dispatched for fast rigor.
	Fast PanelDef `yaml:"fast"`
}

// DefaultPanelSets returns the built-in panel mapping.
func DefaultPanelSets() *PanelSetsFile {
	return &PanelSetsFile{
		Version: PanelSetsVersion,
		Standard: []PanelDef{
			{Name: "trace", Tools: []string{"search_traces"}},
			{Name: "logs", Tools: []string{"query_logs"}},
			{Name: "metrics", Tools: []string{"query_metrics", "error_rate"}},
			{Name: "alerts", Tools: []string{"list_alerts"}},
			{Name: "change", Tools: []string{"recent_changes"}},
		},
		Fast: PanelDef{
			Name:  "triage",
			Tools: []string{"error_rate", "list_alerts", "recent_changes"},
		},
	}
}

// Validate checks schema version and structure.
func (f *PanelSetsFile) Validate() error {
	if f.Version != PanelSetsVersion {
		return NewConfigError(fmt.Sprintf("unsupported panel sets version %d (want %d)", f.Version, PanelSetsVersion))
	}
	if len(f.Standard) == 0 {
		return NewConfigError("standard panel set must not be empty")
	}
	seen := make(map[string]bool)
	for _, p := range f.Standard {
		if p.Name == "" {
			return NewConfigError("panel name must not be empty")
		}
		if seen[p.Name] {
			return NewConfigError(fmt.Sprintf("duplicate panel name %q", p.Name))
		}
		seen[p.Name] = true
		if len(p.Tools) == 0 {
			return NewConfigError(fmt.Sprintf("panel %q has no tools", p.Name))
		}
	}
	if f.Fast.Name == "" {
		return NewConfigError("fast panel name must not be empty")
	}
	if len(f.Fast.Tools) == 0 {
		return NewConfigError(fmt.Sprintf("fast panel %q has no tools", f.Fast.Name))
	}
	return nil
}

// LoadPanelSetsFile loads and validates a panel sets file using Koanf.
func LoadPanelSetsFile(path string) (*PanelSetsFile, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load panel sets from %q: %w", path, err)
	}

	var config PanelSetsFile
	if err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse panel sets from %q: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("panel sets validation failed for %q: %w", path, err)
	}

	return &config, nil
}

// WritePanelSetsFile atomically writes a panel sets file to disk using a
// temp-file-then-rename pattern so readers never see partial writes.
func WritePanelSetsFile(path string, config *PanelSetsFile) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal panel sets: %w", err)
	}

	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".panelsets.*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if _, err := os.Stat(tmpPath); err == nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
