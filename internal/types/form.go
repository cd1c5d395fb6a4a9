package types

/*
 * Domain types for form specifications.
 *
 * Provides FormSpecification, Section, Input, Validation and Change, the
 * declarative contract a third party authors to describe a data-driven form.
 * These types carry no behavior; internal/rules compiles and evaluates them.
 *
 * Key types:
 *   - FormSpecification: root document (sections + validations)
 *   - Section: named group of inputs with visibility/disabled state
 *   - Input: single field addressed by a dot-path into the data snapshot
 *   - Validation: conditional list of changes
 *   - Change: message overrides and customProps merge for a named target
 *
 * Conditions (hiddenWhere, disabledWhere, where) are kept as decoded generic
 * values. The grammar is closed by rules.Compile, not by the decoder, so an
 * unrecognized condition degrades to "no match" instead of rejecting the
 * whole document.
 */

// Condition is an opaque declarative predicate as decoded from the wire.
// nil means absent. See rules.CompileCondition for the accepted grammar.
type Condition = any

// FormSpecification is the root document of a form.
type FormSpecification struct {
	Title       string       `json:"title,omitempty" yaml:"title,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Hint        string       `json:"hint,omitempty" yaml:"hint,omitempty"`
	Warning     string       `json:"warning,omitempty" yaml:"warning,omitempty"`
	Error       string       `json:"error,omitempty" yaml:"error,omitempty"`
	Sections    []Section    `json:"sections" yaml:"sections"`
	Validations []Validation `json:"validations,omitempty" yaml:"validations,omitempty"`
}

// Section groups inputs. Name is optional but must be unique among sections
// when present.
type Section struct {
	Name          string    `json:"name,omitempty" yaml:"name,omitempty"`
	Title         string    `json:"title,omitempty" yaml:"title,omitempty"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	Hint          string    `json:"hint,omitempty" yaml:"hint,omitempty"`
	Warning       string    `json:"warning,omitempty" yaml:"warning,omitempty"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
	Hidden        bool      `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	HiddenWhere   Condition `json:"hiddenWhere,omitempty" yaml:"hiddenWhere,omitempty"`
	Disabled      bool      `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	DisabledWhere Condition `json:"disabledWhere,omitempty" yaml:"disabledWhere,omitempty"`
	Inputs        []Input   `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// Input is a single form field. Name, Type and Label are required.
type Input struct {
	Name          string         `json:"name" yaml:"name"`
	Type          string         `json:"type" yaml:"type"`
	Label         string         `json:"label" yaml:"label"`
	Hint          string         `json:"hint,omitempty" yaml:"hint,omitempty"`
	Warning       string         `json:"warning,omitempty" yaml:"warning,omitempty"`
	Error         string         `json:"error,omitempty" yaml:"error,omitempty"`
	Hidden        bool           `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	HiddenWhere   Condition      `json:"hiddenWhere,omitempty" yaml:"hiddenWhere,omitempty"`
	Disabled      bool           `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	DisabledWhere Condition      `json:"disabledWhere,omitempty" yaml:"disabledWhere,omitempty"`
	CustomProps   map[string]any `json:"customProps,omitempty" yaml:"customProps,omitempty"`
}

// Validation applies its changes when Where matches the data snapshot.
// A nil Where always matches.
type Validation struct {
	Where   Condition `json:"where,omitempty" yaml:"where,omitempty"`
	Changes []Change  `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// Change overrides messages and merges customProps on the Section or Input
// named Name. An empty Name targets the form itself.
//
// Message overrides are pointers: nil leaves the current value alone, a
// pointer to "" clears it.
type Change struct {
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Hint        *string        `json:"hint,omitempty" yaml:"hint,omitempty"`
	Warning     *string        `json:"warning,omitempty" yaml:"warning,omitempty"`
	Error       *string        `json:"error,omitempty" yaml:"error,omitempty"`
	CustomProps map[string]any `json:"customProps,omitempty" yaml:"customProps,omitempty"`
}

// Entity is the common presentation surface of Sections and Inputs.
// rules.ResolveVisibility consumes it.
type Entity interface {
	IsHidden() bool
	IsDisabled() bool
	HiddenCondition() Condition
	DisabledCondition() Condition
}

func (s *Section) IsHidden() bool               { return s.Hidden }
func (s *Section) IsDisabled() bool             { return s.Disabled }
func (s *Section) HiddenCondition() Condition   { return s.HiddenWhere }
func (s *Section) DisabledCondition() Condition { return s.DisabledWhere }

func (in *Input) IsHidden() bool               { return in.Hidden }
func (in *Input) IsDisabled() bool             { return in.Disabled }
func (in *Input) HiddenCondition() Condition   { return in.HiddenWhere }
func (in *Input) DisabledCondition() Condition { return in.DisabledWhere }
