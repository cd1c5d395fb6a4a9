package rules

import (
	"github.com/solatis/formkeeper/internal/types"
)

/*
 * Evaluation engine.
 *
 * Resolve turns a CompiledForm and a data snapshot into a types.FormView.
 * It is a pure function of its inputs: no I/O, no clocks, no randomness, no
 * state kept between calls. One CompiledForm may be resolved concurrently
 * from many goroutines.
 *
 * Evaluation order (fixed, declaration order throughout):
 *   1. Base state per Section and Input: visibility with static short-circuit,
 *      static messages, deep copy of static customProps
 *   2. Keep validations whose where matches (absent where always matches)
 *   3. Group their changes per target, validations in order, then changes
 *      within a validation in order
 *   4. Targets come from the compile-time name index; unknown names are no-ops
 *   5. Fold each target's changes onto its base state (ApplyChanges)
 *   6. Emit the view, same tree shape as the spec
 */

// Options configures an Engine.
type Options struct {
	// MaxConditionDepth bounds all/any/not nesting. Zero selects
	// types.MaxConditionDepth.
	MaxConditionDepth int
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{MaxConditionDepth: types.MaxConditionDepth}
}

// Engine compiles and resolves forms with a fixed set of options.
// The zero value is not usable; call NewEngine.
type Engine struct {
	opts Options
}

// NewEngine creates a rules engine instance.
func NewEngine(opts Options) *Engine {
	if opts.MaxConditionDepth <= 0 {
		opts.MaxConditionDepth = types.MaxConditionDepth
	}
	if opts.MaxConditionDepth > MaxEvalDepth {
		opts.MaxConditionDepth = MaxEvalDepth
	}
	return &Engine{opts: opts}
}

// Options returns the effective engine options.
func (e *Engine) Options() Options {
	return e.opts
}

// Compile validates spec and prepares it for evaluation.
// Returns a *types.SpecError (matching types.ErrMalformedSpec) on structural
// problems.
func (e *Engine) Compile(spec *types.FormSpecification) (*CompiledForm, error) {
	return compile(spec, e.opts.MaxConditionDepth)
}

// pendingChanges holds matched changes grouped per target.
type pendingChanges struct {
	root     []types.Change
	sections [][]types.Change
	inputs   [][][]types.Change
}

// Resolve evaluates form against data and returns a fresh view.
func (e *Engine) Resolve(form *CompiledForm, data types.Data) *types.FormView {
	spec := form.spec
	view := &types.FormView{
		Title:       spec.Title,
		Description: spec.Description,
		Hint:        spec.Hint,
		Warning:     spec.Warning,
		Error:       spec.Error,
		Sections:    make([]types.SectionView, len(form.sections)),
	}

	for si, cs := range form.sections {
		vis := cs.visibility.resolve(data)
		sv := types.SectionView{
			Name:        cs.section.Name,
			Title:       cs.section.Title,
			Description: cs.section.Description,
			State: types.State{
				Hidden:   vis.Hidden,
				Disabled: vis.Disabled,
				Hint:     cs.section.Hint,
				Warning:  cs.section.Warning,
				Error:    cs.section.Error,
			},
			Inputs: make([]types.InputView, len(cs.inputs)),
		}
		for ii, ci := range cs.inputs {
			ivis := ci.visibility.resolve(data)
			sv.Inputs[ii] = types.InputView{
				Name:  ci.input.Name,
				Type:  ci.input.Type,
				Label: ci.input.Label,
				State: types.State{
					Hidden:      ivis.Hidden,
					Disabled:    ivis.Disabled,
					Hint:        ci.input.Hint,
					Warning:     ci.input.Warning,
					Error:       ci.input.Error,
					CustomProps: CloneProps(ci.input.CustomProps),
				},
			}
		}
		view.Sections[si] = sv
	}

	pending := e.collect(form, data)
	if len(pending.root) > 0 {
		root := ApplyChanges(types.State{Hint: view.Hint, Warning: view.Warning, Error: view.Error}, pending.root)
		view.Hint, view.Warning, view.Error = root.Hint, root.Warning, root.Error
	}
	for si := range view.Sections {
		if changes := pending.sections[si]; len(changes) > 0 {
			view.Sections[si].State = ApplyChanges(view.Sections[si].State, changes)
		}
		for ii := range view.Sections[si].Inputs {
			if changes := pending.inputs[si][ii]; len(changes) > 0 {
				view.Sections[si].Inputs[ii].State = ApplyChanges(view.Sections[si].Inputs[ii].State, changes)
			}
		}
	}

	return view
}

// collect filters validations by their where condition and groups the
// changes of matching validations per target, preserving declaration order.
func (e *Engine) collect(form *CompiledForm, data types.Data) pendingChanges {
	pending := pendingChanges{
		sections: make([][]types.Change, len(form.sections)),
		inputs:   make([][][]types.Change, len(form.sections)),
	}
	for si, cs := range form.sections {
		pending.inputs[si] = make([][]types.Change, len(cs.inputs))
	}

	for _, v := range form.validations {
		if !Matches(v.where, data) {
			continue
		}
		for _, c := range v.changes {
			if !c.known {
				continue
			}
			switch {
			case c.target == rootRef:
				pending.root = append(pending.root, *c.change)
			case c.target.input < 0:
				pending.sections[c.target.section] = append(pending.sections[c.target.section], *c.change)
			default:
				pending.inputs[c.target.section][c.target.input] = append(pending.inputs[c.target.section][c.target.input], *c.change)
			}
		}
	}
	return pending
}

var defaultEngine = NewEngine(DefaultOptions())

// Compile validates spec with the default engine options.
func Compile(spec *types.FormSpecification) (*CompiledForm, error) {
	return defaultEngine.Compile(spec)
}

// Resolve compiles spec and evaluates it against data in one step.
// Hosts that evaluate the same spec repeatedly should Compile once and call
// Engine.Resolve instead.
func Resolve(spec *types.FormSpecification, data types.Data) (*types.FormView, error) {
	form, err := defaultEngine.Compile(spec)
	if err != nil {
		return nil, err
	}
	return defaultEngine.Resolve(form, data), nil
}
