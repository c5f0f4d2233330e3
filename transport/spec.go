package transport

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/jsonschema-go/jsonschema"
)

// Spec is a TransportSpec (§3): a key-value configuration record handed to a
// transport constructor. Unknown keys are tolerated for forward
// compatibility; a transport only complains about keys it requires but
// doesn't find.
type Spec map[string]string

// Get returns the value for key, or fallback if the key is absent or empty
// — the same precedence orchestra.GetParam uses for driver DSN params.
func (s Spec) Get(key, fallback string) string {
	if value, ok := s[key]; ok && value != "" {
		return value
	}

	return fallback
}

// GetInt parses key as an integer, returning fallback if the key is absent.
func (s Spec) GetInt(key string, fallback int) (int, error) {
	value, ok := s[key]
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: option %q must be an integer, got %q", ErrConfigurationError, key, value)
	}

	return parsed, nil
}

// GetBool parses key as a boolean, returning fallback if the key is absent.
func (s Spec) GetBool(key string, fallback bool) (bool, error) {
	value, ok := s[key]
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: option %q must be a boolean, got %q", ErrConfigurationError, key, value)
	}

	return parsed, nil
}

// RequireKeys validates that every key in required is present and non-empty,
// returning ErrConfigurationError naming the first missing key.
func (s Spec) RequireKeys(required ...string) error {
	for _, key := range required {
		if s.Get(key, "") == "" {
			return fmt.Errorf("%w: missing required option %q", ErrConfigurationError, key)
		}
	}

	return nil
}

var specValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateOptions runs struct-tag validation (the same
// validator.New(...).Struct pattern backwards/pipeline.go uses for pipeline
// config) over a transport's already-decoded Options struct, translating any
// failure into ErrConfigurationError.
func ValidateOptions(options any) error {
	if err := specValidator.Struct(options); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigurationError, err)
	}

	return nil
}

// schemaString builds a string property for a TransportSpec schema fragment.
// Whether it is required is set by the required list given to
// NewOptionsSchema.
func schemaString(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

// schemaInteger builds an integer property for a TransportSpec schema
// fragment.
func schemaInteger(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: description}
}

// schemaBoolean builds a boolean property for a TransportSpec schema
// fragment.
func schemaBoolean(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: description}
}

// NewOptionsSchema builds the JSON-schema fragment a transport exposes for
// its recognised TransportSpec keys (§3, §6). Unknown keys are intentionally
// left permitted (AdditionalProperties is not set to false) for forward
// compatibility.
func NewOptionsSchema(properties map[string]*jsonschema.Schema, required []string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}
