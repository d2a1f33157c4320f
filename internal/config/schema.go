package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

// schemaFile is the YAML layout of SCHEMA_FILE. Omitted sections fall back to
// the SPC defaults.
//
//	categories:
//	  hail: [Time, Size, Location, County, State, Lat, Lon, Comments]
//	fields:
//	  latitude: Lat
type schemaFile struct {
	Categories map[string][]string `yaml:"categories"`
	Fields     map[string]string   `yaml:"fields"`
}

// LoadSchemaFile builds a Registry from a YAML override file.
func LoadSchemaFile(path string) (*domain.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read SCHEMA_FILE: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema builds a Registry from YAML, merging it over the default layouts.
func ParseSchema(data []byte) (*domain.Registry, error) {
	var sf schemaFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse SCHEMA_FILE: %w", err)
	}

	raw := domain.DefaultRawColumns()
	for name, cols := range sf.Categories {
		c, err := domain.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("SCHEMA_FILE: %w", err)
		}
		raw[c] = cols
	}

	fields := domain.DefaultFieldColumns()
	for field, col := range sf.Fields {
		fields[field] = col
	}

	reg, err := domain.NewRegistry(raw, fields)
	if err != nil {
		return nil, fmt.Errorf("SCHEMA_FILE: %w", err)
	}
	return reg, nil
}
