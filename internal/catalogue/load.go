package catalogue

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load decodes a catalogue document from r. Decoding is strict: unknown
// fields and duplicate mapping keys are rejected. Defaults are applied after
// decoding; the result is not yet validated (see Validate).
func Load(r io.Reader) (*Catalogue, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cat Catalogue
	if err := dec.Decode(&cat); err != nil {
		if err == io.EOF {
			return nil, &ValidationError{Issues: []string{"catalogue document is empty"}}
		}
		return nil, &ValidationError{Issues: []string{fmt.Sprintf("catalogue is not parseable YAML: %v", err)}}
	}

	cat.Normalise()
	return &cat, nil
}

// LoadFile reads and decodes the catalogue at path
func LoadFile(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalogue file: %w", err)
	}
	defer f.Close()

	cat, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue %s: %w", path, err)
	}
	return cat, nil
}
