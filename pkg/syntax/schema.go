package syntax

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaViolation is returned when a tree document does not conform to the
// embedded tree schema.
var ErrSchemaViolation = errors.New("tree document violates schema")

// TreeSchema is the JSON Schema describing tree documents.
//
//go:embed tree-schema.json
var TreeSchema []byte

// SchemaError lists the individual violations found in a document.
type SchemaError struct {
	Violations []string
}

func (se *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchemaViolation, strings.Join(se.Violations, "; "))
}

// Unwrap lets errors.Is match ErrSchemaViolation.
func (se *SchemaError) Unwrap() error {
	return ErrSchemaViolation
}

// ValidateJSON validates a JSON tree document against TreeSchema.
func ValidateJSON(data []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(TreeSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))

	for _, verr := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}

	return &SchemaError{Violations: violations}
}
