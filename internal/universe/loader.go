package universe

import (
	"encoding/json"
	"fmt"
	"os"

	"orrery/internal/orbital"
)

// fileFormat is the on-disk JSON universe description.
type fileFormat struct {
	Bodies []orbital.Body `json:"bodies"`
}

// LoadFile reads a universe description from a JSON file. Structural
// validation (parent forest, periods) happens when the bodies are handed to
// orbital.NewSystem, not here.
func LoadFile(path string) ([]orbital.Body, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse universe file %s: %w", path, err)
	}
	if len(f.Bodies) == 0 {
		return nil, fmt.Errorf("universe file %s contains no bodies", path)
	}
	return f.Bodies, nil
}

// WriteFile saves a universe description as JSON.
func WriteFile(path string, bodies []orbital.Body) error {
	data, err := json.MarshalIndent(fileFormat{Bodies: bodies}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode universe: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write universe file: %w", err)
	}
	return nil
}
