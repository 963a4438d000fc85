package endpoint

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the endpoint configuration file and builds the registry.
// Called once at process start; any error here should abort startup.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read endpoint config: %w", err)
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse endpoint config %s: %w", path, err)
	}
	reg, err := NewRegistry(file)
	if err != nil {
		return nil, fmt.Errorf("endpoint config %s: %w", path, err)
	}
	return reg, nil
}
