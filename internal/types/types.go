// Package types provides domain models shared across FormKeeper components.
//
// Zero-dependency design: form.go, view.go and errors.go use only the
// standard library so the engine can be embedded without pulling in the
// service stack. ID utilities in ids.go import uuid but are isolated for
// selective inclusion.
//
// Wire format: the same structs decode from JSON and YAML documents. Fields
// the schema leaves open (conditions, customProps) keep their decoded
// generic shape here; internal/rules closes them at compile time.
package types

// Data is the user-entered data snapshot a form is evaluated against.
// Keys correspond to Input name dot-paths; values follow the JSON value
// model (nil, bool, float64, string, []any, map[string]any).
type Data = map[string]any

// Resource limits enforced by the rules engine to keep evaluation bounded on
// adversarial specs.
const (
	// MaxPathDepth bounds dotted path traversal.
	// 16 segments covers deeply nested form data (a.b.c...) with room to spare.
	MaxPathDepth = 16

	// MaxConditionDepth is the default nesting limit for all/any/not trees.
	// Deeper conditions compile to a non-matching condition.
	MaxConditionDepth = 32

	// MaxSections limits the number of sections accepted in one spec.
	MaxSections = 256

	// MaxInputsPerSection limits the inputs accepted in one section.
	MaxInputsPerSection = 1024

	// MaxValidations limits the validations accepted in one spec.
	MaxValidations = 4096

	// MaxDocumentSize caps a stored spec document (JSON bytes).
	// 4MB is far beyond any hand-authored form.
	MaxDocumentSize = 4 * 1024 * 1024
)
