package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for FormKeeper operations.
var (
	// ErrMalformedSpec indicates a structural violation in a form specification.
	// Always wrapped in a *SpecError carrying the individual problems.
	ErrMalformedSpec = errors.New("malformed form specification")

	// ErrDocumentTooLarge indicates a spec document exceeds MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")

	// ErrUnsupportedFormat indicates a document in neither JSON nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrFormNotFound indicates no stored spec exists for a form ID.
	ErrFormNotFound = errors.New("form not found")

	// ErrRevisionConflict indicates a write based on a stale revision.
	ErrRevisionConflict = errors.New("form revision conflict")

	// ErrPathConflict indicates Set hit a non-map value mid-path.
	ErrPathConflict = errors.New("path conflicts with existing value")

	// ErrInvalidPath indicates an empty or overly deep dotted path.
	ErrInvalidPath = errors.New("invalid field path")
)

// Problem is one structural violation, located by a JSON-ish path such as
// "sections[1].inputs[0].label".
type Problem struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

func (p Problem) String() string {
	return p.Location + ": " + p.Message
}

// SpecError collects every problem found while compiling a spec so authors
// can fix them in one pass.
type SpecError struct {
	Problems []Problem
}

func (e *SpecError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", ErrMalformedSpec, e.Problems[0])
	}
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s: %d problems: %s", ErrMalformedSpec, len(e.Problems), strings.Join(parts, "; "))
}

// Unwrap lets errors.Is(err, ErrMalformedSpec) match.
func (e *SpecError) Unwrap() error {
	return ErrMalformedSpec
}
