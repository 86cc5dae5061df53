package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"vpo/internal/services"
)

// Load reads and validates the policy document at path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	model, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return model, nil
}

// Parse decodes and validates a policy document. Unknown fields are
// rejected so typos surface as validation failures instead of silently
// ignored configuration.
func Parse(data []byte) (*Model, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Violations: []Violation{{Field: "document", Message: "policy document is empty"}}}
		}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			violations := make([]Violation, 0, len(typeErr.Errors))
			for _, msg := range typeErr.Errors {
				violations = append(violations, Violation{Field: "document", Message: msg})
			}
			return nil, &ValidationError{Violations: violations}
		}
		return nil, services.Wrap(services.ErrValidation, "", "", "parse policy document", err)
	}
	return Validate(doc)
}
