// Package validation checks research item payloads against the JSON schema of their category.
package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Profile selects how strict a validation is
type Profile string

const (
	// ProfileDraft only checks the shape of the fields that are present
	ProfileDraft Profile = "draft"
	// ProfileVerified also requires the fields a verified item must carry
	ProfileVerified Profile = "verified"
)

// FieldError represents a single validation error
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the list of field errors of a rejected payload
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		field := fe.Field
		if field == "" {
			field = "/"
		}
		parts[i] = field + " " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	compileOnce     sync.Once
	compiledSchemas map[string]*jsonschema.Schema
	compileErr      error
)

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		files, err := schemaFS.ReadDir("schemas")
		if err != nil {
			compileErr = fmt.Errorf("read schemas: %w", err)
			return
		}

		var keys []string
		for _, f := range files {
			raw, err := schemaFS.ReadFile(path.Join("schemas", f.Name()))
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", f.Name(), err)
				return
			}
			if err := compiler.AddResource(f.Name(), bytes.NewReader(raw)); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", f.Name(), err)
				return
			}
			if name := strings.TrimSuffix(f.Name(), ".json"); name != "common" {
				keys = append(keys, name)
			}
		}

		schemas := make(map[string]*jsonschema.Schema, len(keys))
		for _, key := range keys {
			s, err := compiler.Compile(key + ".json")
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", key, err)
				return
			}
			schemas[key] = s
		}
		compiledSchemas = schemas
	})
	return compiledSchemas, compileErr
}

// Keys returns the validator keys that have a schema
func Keys() ([]string, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(schemas))
	for k := range schemas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Validate checks a payload against the schema of a validator key. A payload
// that fails returns Errors; an unknown key or a broken schema set returns a plain error.
func Validate(key string, payload json.RawMessage, profile Profile) error {
	schemas, err := loadSchemas()
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}
	schema, ok := schemas[key]
	if !ok {
		return fmt.Errorf("validator not found for key: %s", key)
	}

	value, err := decodeStrictJSON(payload)
	if err != nil {
		return Errors{{Field: "", Message: err.Error()}}
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return Errors{{Field: "", Message: "payload must be an object"}}
	}
	obj["kind"] = string(profile)

	if err := schema.Validate(obj); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return collect(ve)
		}
		return err
	}

	if errs := validateSemantics(obj); len(errs) > 0 {
		return errs
	}
	return nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

// collect flattens the leaves of a validation error tree
func collect(ve *jsonschema.ValidationError) Errors {
	var out Errors
	seen := make(map[FieldError]bool)
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			fe := FieldError{Field: e.InstanceLocation, Message: e.Message}
			if !seen[fe] {
				seen[fe] = true
				out = append(out, fe)
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}

// validateSemantics checks field relations a schema cannot express
func validateSemantics(obj map[string]any) Errors {
	var errs Errors
	if !notBefore(obj["endDate"], obj["startDate"]) {
		errs = append(errs, FieldError{Field: "/endDate", Message: "must be greater or equal than startDate"})
	}
	if !notBefore(obj["yearTo"], obj["year"]) {
		errs = append(errs, FieldError{Field: "/yearTo", Message: "must be greater or equal than year"})
	}
	return errs
}

// notBefore reports whether value >= ref, treating missing or unparseable values as valid
func notBefore(value, ref any) bool {
	a, ok := sortKey(value)
	if !ok {
		return true
	}
	b, ok := sortKey(ref)
	if !ok {
		return true
	}
	return a >= b
}

// sortKey turns years and ISO dates into a sortable number
func sortKey(v any) (int, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}
