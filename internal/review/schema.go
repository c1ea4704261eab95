// Package review checks survey plan inputs and outcomes before they are
// allowed to progress: unit document validation and seal readiness.
package review

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

//go:embed unit_document.schema.json
var unitDocumentSchema string

const unitDocumentURL = "unit-document-v1.schema.json"

// UnitDocument is the JSON input listing a plan's unit specifications.
type UnitDocument struct {
	PlanID string                     `json:"plan_id,omitempty"`
	Units  []domain.UnitSpecification `json:"units"`
}

// SchemaValidator validates unit documents and individual unit specifications.
type SchemaValidator struct {
	schema   *jsonschema.Schema
	validate *validator.Validate
}

// NewSchemaValidator compiles the embedded unit document schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(unitDocumentURL, strings.NewReader(unitDocumentSchema)); err != nil {
		return nil, fmt.Errorf("add unit schema: %w", err)
	}
	schema, err := compiler.Compile(unitDocumentURL)
	if err != nil {
		return nil, fmt.Errorf("compile unit schema: %w", err)
	}
	return &SchemaValidator{schema: schema, validate: validator.New()}, nil
}

// Decode validates raw JSON against the document schema, decodes it and
// then checks every unit. All violations are reported together.
func (v *SchemaValidator) Decode(data []byte) (UnitDocument, error) {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return UnitDocument{}, domain.WrapEngineError(domain.ErrDocumentSchema.Code, domain.ErrDocumentSchema.Message, err)
	}
	if err := v.schema.Validate(instance); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return UnitDocument{}, domain.NewEngineError(domain.ErrDocumentSchema.Code,
				domain.ErrDocumentSchema.Message+": "+strings.Join(schemaViolations(ve), "; "))
		}
		return UnitDocument{}, domain.WrapEngineError(domain.ErrDocumentSchema.Code, domain.ErrDocumentSchema.Message, err)
	}

	var doc UnitDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return UnitDocument{}, domain.WrapEngineError(domain.ErrDocumentSchema.Code, domain.ErrDocumentSchema.Message, err)
	}
	if err := v.ValidateUnits(doc.Units); err != nil {
		return UnitDocument{}, err
	}
	return doc, nil
}

// ValidateUnits checks each specification and rejects duplicate section numbers.
func (v *SchemaValidator) ValidateUnits(units []domain.UnitSpecification) error {
	var violations []string
	seen := make(map[string]int, len(units))
	for i, u := range units {
		for _, msg := range v.violations(u) {
			violations = append(violations, fmt.Sprintf("units[%d]: %s", i, msg))
		}
		if prev, ok := seen[u.SectionNumber]; ok && u.SectionNumber != "" {
			violations = append(violations, fmt.Sprintf("units[%d]: section %q duplicates units[%d]", i, u.SectionNumber, prev))
			continue
		}
		seen[u.SectionNumber] = i
	}
	if len(violations) > 0 {
		return domain.NewEngineError(domain.ErrUnitSpecInvalid.Code, strings.Join(violations, "; "))
	}
	return nil
}

// Validate checks a single unit specification.
func (v *SchemaValidator) Validate(u domain.UnitSpecification) error {
	if violations := v.violations(u); len(violations) > 0 {
		return domain.NewEngineError(domain.ErrUnitSpecInvalid.Code, strings.Join(violations, ", "))
	}
	return nil
}

func (v *SchemaValidator) violations(u domain.UnitSpecification) []string {
	var violations []string
	if err := v.validate.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				violations = append(violations, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
		} else {
			violations = append(violations, err.Error())
		}
	}
	if len(u.Coordinates) < 3 {
		violations = append(violations, fmt.Sprintf("Coordinates has %d points, at least 3 required", len(u.Coordinates)))
	}
	return violations
}

// schemaViolations flattens a validation error tree into its leaf messages.
func schemaViolations(ve *jsonschema.ValidationError) []string {
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(out)
	return out
}
