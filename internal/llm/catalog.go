package llm

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

//go:embed models.yaml
var catalogYAML []byte

// Catalog maps provider names to the models advertised for them, in file order.
type Catalog struct {
	order  []string
	models map[string][]string
}

type catalogFile struct {
	Providers []struct {
		Name   string   `yaml:"name"`
		Models []string `yaml:"models"`
	} `yaml:"providers"`
}

// DefaultCatalog parses the embedded models.yaml.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses a catalog document. Duplicate provider names are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("llm: parse model catalog: %w", err)
	}
	c := &Catalog{models: make(map[string][]string, len(f.Providers))}
	for _, p := range f.Providers {
		if p.Name == "" {
			return nil, fmt.Errorf("llm: model catalog entry without a name")
		}
		if _, dup := c.models[p.Name]; dup {
			return nil, fmt.Errorf("llm: duplicate provider %q in model catalog", p.Name)
		}
		c.order = append(c.order, p.Name)
		c.models[p.Name] = append([]string{}, p.Models...)
	}
	return c, nil
}

// Models returns a copy of the models listed for provider.
func (c *Catalog) Models(provider string) ([]string, bool) {
	m, ok := c.models[provider]
	if !ok {
		return nil, false
	}
	return append([]string{}, m...), true
}

// Providers returns provider names in catalog order.
func (c *Catalog) Providers() []string {
	return append([]string{}, c.order...)
}
