package validator

// The CUE contracts guard both ends of the analyzer: dataflow dumps coming in
// from the Verilog front-end, and report tables going out to the policy
// engine. A field that changes name or type fails here, loudly, instead of
// silently disabling a policy rule.

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed design_schema.cue
var designSchemaFS embed.FS

//go:embed report_schema.cue
var reportSchemaFS embed.FS

// Validator validates dataflow dumps against the #Design contract. It may be
// shared between goroutines; evaluations on its CUE context are serialized.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// New creates a new Validator with the embedded dump schema
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := designSchemaFS.ReadFile("design_schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	return &Validator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// Validate checks that data, once encoded as JSON, conforms to #Design.
func (v *Validator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON validates JSON bytes directly against the schema
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	unified, err := unify(v.ctx, v.schema, "#Design", jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ValidationErrors returns detailed information about all validation errors
func (v *Validator) ValidationErrors(jsonBytes []byte) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	unified, err := unify(v.ctx, v.schema, "#Design", jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate()
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// ReportValidator validates report tables against the #Report contract.
type ReportValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewReportValidator creates a validator for report tables.
func NewReportValidator() (*ReportValidator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := reportSchemaFS.ReadFile("report_schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading report schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling report schema: %w", schema.Err())
	}

	return &ReportValidator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// Validate checks that the report tables conform to the report schema.
func (v *ReportValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling report to JSON: %w", err)
	}

	unified, err := unify(v.ctx, v.schema, "#Report", jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("report schema validation failed: %w", err)
	}
	return nil
}

func unify(ctx *cue.Context, schema cue.Value, path string, jsonBytes []byte) (cue.Value, error) {
	dataValue := ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	def := schema.LookupPath(cue.ParsePath(path))
	if def.Err() != nil {
		return cue.Value{}, fmt.Errorf("looking up %s definition: %w", path, def.Err())
	}

	return def.Unify(dataValue), nil
}
