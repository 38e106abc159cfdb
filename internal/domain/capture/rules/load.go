package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseOverlay decodes a YAML overlay. Unknown keys are rejected so typos do not silently drop rules.
func ParseOverlay(data []byte) (Config, error) {
	var overlay Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&overlay); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidTables, err)
	}
	return overlay, nil
}

// LoadFile compiles the defaults merged with the overlay at path. An empty path yields Default().
func LoadFile(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	overlay, err := ParseOverlay(data)
	if err != nil {
		return nil, err
	}
	return Compile(DefaultConfig().Merge(overlay))
}
