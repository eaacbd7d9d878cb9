package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Feature is one configurable network feature and the parameters an
// operation may change on it.
type Feature struct {
	Name       string   `yaml:"name"`
	Parameters []string `yaml:"parameters"`
}

// Catalog is the feature→parameter table plus the recognized zones.
// It is configuration, not code: operators extend it without a rebuild.
type Catalog struct {
	Features []Feature `yaml:"features"`
	Zones    []string  `yaml:"zones"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("config: built-in catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog from path. An empty path yields the
// built-in catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("config: read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("config: parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate rejects empty or ambiguous catalogs.
func (c Catalog) Validate() error {
	if len(c.Features) == 0 {
		return fmt.Errorf("config: catalog has no features")
	}
	seen := make(map[string]bool, len(c.Features))
	for i, f := range c.Features {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("config: catalog feature %d has no name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("config: catalog feature %q is declared twice", f.Name)
		}
		seen[f.Name] = true
		if len(f.Parameters) == 0 {
			return fmt.Errorf("config: catalog feature %q has no parameters", f.Name)
		}
	}
	if len(c.Zones) == 0 {
		return fmt.Errorf("config: catalog has no zones")
	}
	return nil
}

// Parameters returns the parameters allowed for feature.
func (c Catalog) Parameters(feature string) ([]string, bool) {
	for _, f := range c.Features {
		if f.Name == feature {
			return f.Parameters, true
		}
	}
	return nil, false
}

// Allows reports whether parameter belongs to feature.
func (c Catalog) Allows(feature, parameter string) bool {
	params, ok := c.Parameters(feature)
	if !ok {
		return false
	}
	for _, p := range params {
		if p == parameter {
			return true
		}
	}
	return false
}

// HasZone reports whether zone is recognized.
func (c Catalog) HasZone(zone string) bool {
	for _, z := range c.Zones {
		if z == zone {
			return true
		}
	}
	return false
}

// FeatureMap returns the catalog as a {feature: [parameters]} map.
func (c Catalog) FeatureMap() map[string][]string {
	m := make(map[string][]string, len(c.Features))
	for _, f := range c.Features {
		m[f.Name] = append([]string(nil), f.Parameters...)
	}
	return m
}
