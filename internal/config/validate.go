package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

// Validation error codes (E200-E299)
const (
	ErrCodeParse     = "E200" // file is not valid YAML
	ErrCodeSchema    = "E201" // value violates the schema
	ErrCodeDuplicate = "E202" // property key listed twice
)

//go:embed schema.cue
var schemaSource string

// ValidationError describes one problem in a configuration.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is returned by Load and Update when validation fails.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
	schemaErr   error
)

func schema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		schemaValue = v.LookupPath(cue.ParsePath("#Config"))
	})
	return schemaCtx, schemaValue, schemaErr
}

// Validate checks c against the schema and the list invariants.
// Returns all errors found (does not fail-fast).
func Validate(c *Config) []ValidationError {
	data, err := yaml.Marshal(c)
	if err != nil {
		return []ValidationError{{Message: err.Error(), Code: ErrCodeParse}}
	}
	return append(ValidateYAML(data), duplicateKeys(c)...)
}

// duplicateKeys reports every ignore entry whose key is already listed.
func duplicateKeys(c *Config) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]int)
	for i, s := range c.IgnorePropertyUpdateKeys {
		k := s.Key.String()
		if first, ok := seen[k]; ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("ignore_property_update_keys.%d.key", i),
				Message: fmt.Sprintf("%s already listed at index %d", k, first),
				Code:    ErrCodeDuplicate,
			})
			continue
		}
		seen[k] = i
	}
	return errs
}

// ValidateYAML checks raw configuration bytes against the schema.
func ValidateYAML(data []byte) []ValidationError {
	ctx, def, err := schema()
	if err != nil {
		return []ValidationError{{Message: err.Error(), Code: ErrCodeSchema}}
	}

	file, err := cueyaml.Extract("config.yaml", data)
	if err != nil {
		return []ValidationError{{Message: err.Error(), Code: ErrCodeParse}}
	}
	v := ctx.BuildFile(file)
	if err := v.Err(); err != nil {
		return []ValidationError{{Message: err.Error(), Code: ErrCodeParse}}
	}

	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return convertCUEErrors(err)
	}
	return nil
}

func convertCUEErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		out = append(out, ValidationError{
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
			Code:    ErrCodeSchema,
		})
	}
	return out
}
