package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a teewire.yaml file, expands environment variables, and
// unmarshals into a Config struct. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := decodeFile(path, "config", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// decodeFile reads, expands and strictly decodes a YAML file into v.
// An empty or comments-only file leaves v untouched.
func decodeFile(path, what string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s file not found: %s", what, path)
		}
		return fmt.Errorf("cannot read %s file %q: %w", what, path, err)
	}

	expanded, err := ExpandEnv(string(data))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return nil
}
