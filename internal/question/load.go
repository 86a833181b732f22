package question

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a YAML question set from path.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read question set %q: %w", path, err)
	}
	set, err := Parse(data)
	if err != nil {
		return Set{}, fmt.Errorf("question set %q: %w", path, err)
	}
	return set, nil
}

// Parse decodes a YAML question set, rejecting unknown fields. Missing types default to
// standard.
func Parse(data []byte) (Set, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var set Set
	if err := decoder.Decode(&set); err != nil {
		if errors.Is(err, io.EOF) {
			return Set{}, ErrEmptySet
		}
		return Set{}, fmt.Errorf("decode yaml: %w", err)
	}

	for i := range set.Questions {
		if set.Questions[i].Type == "" {
			set.Questions[i].Type = TypeStandard
		}
	}

	if err := set.Validate(); err != nil {
		return Set{}, err
	}
	return set, nil
}
