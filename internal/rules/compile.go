// internal/rules/compile.go
package rules

import (
	"fmt"
	"sort"

	"github.com/solatis/formkeeper/internal/types"
)

/*
 * Form compilation and validation.
 *
 * Compiles types.FormSpecification to CompiledForm: validated structure,
 * closed conditions, and a name index for change targeting. Compilation runs
 * once per spec load; evaluation then only walks pre-built structures.
 *
 * Compilation workflow:
 *   1. Validate structure (required input fields, name uniqueness, limits)
 *   2. Compile every hiddenWhere/disabledWhere/where into CompiledCondition
 *   3. Build the name index: first declared wins, sections before their
 *      inputs, depth first
 *   4. Resolve change targets against the index, recording unknown names
 *
 * Structural problems are collected into a single *types.SpecError and the
 * spec is rejected before any evaluation. Malformed conditions are not
 * structural: they compile to a non-matching condition and are reported as
 * warnings, so a live form keeps rendering.
 *
 * Name scopes: section names are unique among sections, input names are
 * unique within their section. The same name on a section and an input, or
 * on inputs of different sections, is accepted and resolves to the first
 * declared entity.
 */

// entityRef locates a Section or Input inside a spec.
// section == -1 addresses the form root; input == -1 addresses the section.
type entityRef struct {
	section int
	input   int
}

var rootRef = entityRef{section: -1, input: -1}

// compiledVisibility holds the static flags and compiled conditions of one
// Section or Input.
type compiledVisibility struct {
	Hidden        bool
	HiddenWhere   CompiledCondition // nil when absent
	Disabled      bool
	DisabledWhere CompiledCondition // nil when absent
}

type compiledInput struct {
	input      *types.Input
	visibility compiledVisibility
}

type compiledSection struct {
	section    *types.Section
	visibility compiledVisibility
	inputs     []compiledInput
}

type compiledChange struct {
	change *types.Change
	target entityRef
	known  bool
}

type compiledValidation struct {
	where   CompiledCondition // nil = unconditional
	changes []compiledChange
}

// CompiledForm is a validated, pre-processed form ready for evaluation.
// It is immutable and safe for concurrent use. The source spec must not be
// mutated after compilation.
type CompiledForm struct {
	spec        *types.FormSpecification
	sections    []compiledSection
	validations []compiledValidation
	index       map[string]entityRef

	// UnknownTargets lists change names that match no Section or Input, in
	// order of first appearance. Such changes are no-ops.
	UnknownTargets []string

	// Warnings lists non-fatal problems such as malformed conditions.
	Warnings []types.Problem

	// Cost is the summed cost of every compiled condition.
	Cost int
}

// Spec returns the specification the form was compiled from.
func (f *CompiledForm) Spec() *types.FormSpecification {
	return f.spec
}

// Lookup reports which entity a change name targets: a section name, the
// section index and an input name (empty for sections). ok is false for
// unknown names.
func (f *CompiledForm) Lookup(name string) (section int, input string, ok bool) {
	ref, ok := f.index[name]
	if !ok {
		return 0, "", false
	}
	if ref.input < 0 {
		return ref.section, "", true
	}
	return ref.section, f.sections[ref.section].inputs[ref.input].input.Name, true
}

// compiler accumulates state while walking one spec.
type compiler struct {
	maxDepth int
	problems []types.Problem
	warnings []types.Problem
	cost     int
}

func (c *compiler) problem(location, format string, args ...any) {
	c.problems = append(c.problems, types.Problem{Location: location, Message: fmt.Sprintf(format, args...)})
}

// condition compiles raw, recording a warning when it is malformed.
func (c *compiler) condition(location string, raw types.Condition) CompiledCondition {
	cond := CompileCondition(raw, c.maxDepth)
	if cond == nil {
		return nil
	}
	if inv, ok := cond.(InvalidCondition); ok {
		c.warnings = append(c.warnings, types.Problem{Location: location, Message: inv.Reason})
	}
	c.cost += cond.Cost()
	return cond
}

func (c *compiler) visibility(location string, e types.Entity) compiledVisibility {
	return compiledVisibility{
		Hidden:        e.IsHidden(),
		HiddenWhere:   c.condition(location+".hiddenWhere", e.HiddenCondition()),
		Disabled:      e.IsDisabled(),
		DisabledWhere: c.condition(location+".disabledWhere", e.DisabledCondition()),
	}
}

// compile validates and pre-processes spec with the given condition depth limit.
func compile(spec *types.FormSpecification, maxDepth int) (*CompiledForm, error) {
	if spec == nil {
		return nil, &types.SpecError{Problems: []types.Problem{{Location: "$", Message: "specification is nil"}}}
	}

	c := &compiler{maxDepth: maxDepth}
	form := &CompiledForm{
		spec:     spec,
		sections: make([]compiledSection, 0, len(spec.Sections)),
		index:    make(map[string]entityRef),
	}

	if len(spec.Sections) > types.MaxSections {
		c.problem("sections", "has %d sections, maximum is %d", len(spec.Sections), types.MaxSections)
	}
	if len(spec.Validations) > types.MaxValidations {
		c.problem("validations", "has %d validations, maximum is %d", len(spec.Validations), types.MaxValidations)
	}

	sectionNames := make(map[string]int)
	for si := range spec.Sections {
		section := &spec.Sections[si]
		loc := fmt.Sprintf("sections[%d]", si)

		if section.Name != "" {
			if prev, dup := sectionNames[section.Name]; dup {
				c.problem(loc+".name", "duplicate section name %q (first declared at sections[%d])", section.Name, prev)
			} else {
				sectionNames[section.Name] = si
			}
			if _, taken := form.index[section.Name]; !taken {
				form.index[section.Name] = entityRef{section: si, input: -1}
			}
		}
		if len(section.Inputs) > types.MaxInputsPerSection {
			c.problem(loc+".inputs", "has %d inputs, maximum is %d", len(section.Inputs), types.MaxInputsPerSection)
		}

		cs := compiledSection{
			section:    section,
			visibility: c.visibility(loc, section),
			inputs:     make([]compiledInput, 0, len(section.Inputs)),
		}

		inputNames := make(map[string]int)
		for ii := range section.Inputs {
			input := &section.Inputs[ii]
			iloc := fmt.Sprintf("%s.inputs[%d]", loc, ii)
			c.validateInput(iloc, input)

			if input.Name != "" {
				if prev, dup := inputNames[input.Name]; dup {
					c.problem(iloc+".name", "duplicate input name %q in section (first declared at %s.inputs[%d])", input.Name, loc, prev)
				} else {
					inputNames[input.Name] = ii
				}
				if _, taken := form.index[input.Name]; !taken {
					form.index[input.Name] = entityRef{section: si, input: ii}
				}
			}

			cs.inputs = append(cs.inputs, compiledInput{
				input:      input,
				visibility: c.visibility(iloc, input),
			})
		}
		form.sections = append(form.sections, cs)
	}

	unknown := make(map[string]bool)
	form.validations = make([]compiledValidation, 0, len(spec.Validations))
	for vi := range spec.Validations {
		validation := &spec.Validations[vi]
		loc := fmt.Sprintf("validations[%d]", vi)

		cv := compiledValidation{
			where:   c.condition(loc+".where", validation.Where),
			changes: make([]compiledChange, 0, len(validation.Changes)),
		}
		for ci := range validation.Changes {
			change := &validation.Changes[ci]
			cc := compiledChange{change: change}
			if change.Name == "" {
				cc.target = rootRef
				cc.known = true
			} else if ref, ok := form.index[change.Name]; ok {
				cc.target = ref
				cc.known = true
			} else if !unknown[change.Name] {
				unknown[change.Name] = true
				form.UnknownTargets = append(form.UnknownTargets, change.Name)
			}
			cv.changes = append(cv.changes, cc)
		}
		form.validations = append(form.validations, cv)
	}

	if len(c.problems) > 0 {
		return nil, &types.SpecError{Problems: c.problems}
	}

	form.Warnings = c.warnings
	form.Cost = c.cost
	return form, nil
}

// validateInput checks the required fields of an input.
func (c *compiler) validateInput(loc string, input *types.Input) {
	if input.Name == "" {
		c.problem(loc+".name", "is required")
	} else if _, err := ParsePath(input.Name); err != nil {
		c.problem(loc+".name", "%v", err)
	}
	if input.Type == "" {
		c.problem(loc+".type", "is required")
	}
	if input.Label == "" {
		c.problem(loc+".label", "is required")
	}
}

// sortByCost orders operands by ascending cost. Stable sort keeps declaration
// order for equal costs so evaluation order is reproducible.
func sortByCost(operands []CompiledCondition) {
	sort.SliceStable(operands, func(i, j int) bool {
		return operands[i].Cost() < operands[j].Cost()
	})
}
