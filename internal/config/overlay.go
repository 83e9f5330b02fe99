// Package config handles configuration loading and management
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overlayFile holds values parsed from the optional adopub.yaml file.
// Keys mirror the environment variable surface in lowerCamel form; the
// environment always wins over the overlay.
type overlayFile struct {
	values map[string]interface{}
}

// loadOverlay reads the YAML overlay if present. A missing file yields an
// empty overlay, not an error.
func loadOverlay(path string) (*overlayFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading overlay from a fixed filename
	if err != nil {
		if os.IsNotExist(err) {
			return &overlayFile{values: map[string]interface{}{}}, nil
		}
		return nil, fmt.Errorf("reading overlay: %w", err)
	}

	values := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing overlay: %w", err)
	}

	return &overlayFile{values: values}, nil
}

func (o *overlayFile) stringOr(key, defaultValue string) string {
	if v, ok := o.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultValue
}

func (o *overlayFile) boolOr(key string, defaultValue bool) bool {
	if v, ok := o.values[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultValue
}

func (o *overlayFile) intOr(key string, defaultValue int) int {
	if v, ok := o.values[key]; ok {
		if i, ok := v.(int); ok {
			return i
		}
	}
	return defaultValue
}
