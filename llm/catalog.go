package llm

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownModel is returned by Lookup for ids not in the catalog
var ErrUnknownModel = errors.New("unknown model")

// ModelCapabilities describes what a model supports
type ModelCapabilities struct {
	SupportsStreaming bool `yaml:"supports_streaming"`
	SupportsTools     bool `yaml:"supports_tools"`
	ContextWindow     int  `yaml:"context_window"`
	MaxOutputTokens   int  `yaml:"max_output_tokens"`
}

// ModelInfo is the public description of a catalog entry
type ModelInfo struct {
	ID           string
	Provider     string
	DisplayName  string
	Capabilities ModelCapabilities
}

// Model is a catalog entry together with its generator
type Model struct {
	Info      ModelInfo
	Generator Generator
}

// Catalog resolves model ids. Implementations are read-only after construction.
type Catalog interface {
	Lookup(id string) (Model, error)
	List() []ModelInfo
	Default() string
}

// Registry is the immutable Catalog built at startup
type Registry struct {
	models       map[string]Model
	order        []string
	defaultModel string
}

// NewRegistry validates models and builds a registry. An empty defaultID
// selects the first model.
func NewRegistry(defaultID string, models ...Model) (*Registry, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("model catalog is empty")
	}
	r := &Registry{models: make(map[string]Model, len(models))}
	for _, m := range models {
		id := strings.TrimSpace(m.Info.ID)
		if id == "" {
			return nil, fmt.Errorf("model with empty id")
		}
		if m.Generator == nil {
			return nil, fmt.Errorf("model %s has no generator", id)
		}
		if _, dup := r.models[id]; dup {
			return nil, fmt.Errorf("duplicate model id %s", id)
		}
		m.Info.ID = id
		r.models[id] = m
		r.order = append(r.order, id)
	}

	if defaultID == "" {
		defaultID = r.order[0]
	}
	if _, ok := r.models[defaultID]; !ok {
		return nil, fmt.Errorf("default model %s: %w", defaultID, ErrUnknownModel)
	}
	r.defaultModel = defaultID
	return r, nil
}

func (r *Registry) Lookup(id string) (Model, error) {
	m, ok := r.models[id]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return m, nil
}

// List returns model infos in catalog order
func (r *Registry) List() []ModelInfo {
	out := make([]ModelInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id].Info)
	}
	return out
}

func (r *Registry) Default() string { return r.defaultModel }

// ModelSpec is one entry of the catalog file
type ModelSpec struct {
	ID           string            `yaml:"id"`
	Provider     string            `yaml:"provider"`
	DisplayName  string            `yaml:"display_name"`
	Upstream     string            `yaml:"upstream_model"`
	Capabilities ModelCapabilities `yaml:"capabilities"`
	// StreamDelay slows the echo provider between words
	StreamDelay time.Duration `yaml:"stream_delay"`
}

// CatalogFile is the on-disk catalog layout (models.yaml)
type CatalogFile struct {
	Default string      `yaml:"default"`
	Models  []ModelSpec `yaml:"models"`
}

// ProviderFactory builds the generator for a catalog entry
type ProviderFactory func(spec ModelSpec) (Generator, error)

// ParseCatalog decodes a catalog file
func ParseCatalog(data []byte) (*CatalogFile, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}
	return &file, nil
}

// LoadCatalog reads path and builds a Registry. An empty path yields the
// built-in echo catalog.
func LoadCatalog(path, defaultOverride string, factory ProviderFactory) (*Registry, error) {
	file := DefaultCatalogFile()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read model catalog %s: %w", path, err)
		}
		if file, err = ParseCatalog(data); err != nil {
			return nil, err
		}
	}
	if defaultOverride != "" {
		file.Default = defaultOverride
	}
	return BuildRegistry(file, factory)
}

// BuildRegistry turns a parsed catalog into a Registry
func BuildRegistry(file *CatalogFile, factory ProviderFactory) (*Registry, error) {
	models := make([]Model, 0, len(file.Models))
	for _, spec := range file.Models {
		gen, err := factory(spec)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", spec.ID, err)
		}
		name := spec.DisplayName
		if name == "" {
			name = spec.ID
		}
		models = append(models, Model{
			Info: ModelInfo{
				ID:           spec.ID,
				Provider:     spec.Provider,
				DisplayName:  name,
				Capabilities: spec.Capabilities,
			},
			Generator: gen,
		})
	}
	return NewRegistry(file.Default, models...)
}

// DefaultCatalogFile is used when no catalog file is configured
func DefaultCatalogFile() *CatalogFile {
	return &CatalogFile{
		Default: "echo",
		Models: []ModelSpec{{
			ID:          "echo",
			Provider:    ProviderEcho,
			DisplayName: "Echo (offline)",
			Capabilities: ModelCapabilities{
				SupportsStreaming: true,
				SupportsTools:     true,
				ContextWindow:     8192,
				MaxOutputTokens:   2048,
			},
		}},
	}
}
