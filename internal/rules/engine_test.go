package rules

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/formkeeper/internal/types"
)

func mustCompile(t *testing.T, spec *types.FormSpecification) *CompiledForm {
	t.Helper()
	form, err := Compile(spec)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return form
}

func mustInput(t *testing.T, view *types.FormView, name string) *types.InputView {
	t.Helper()
	in, ok := view.Input(name)
	if !ok {
		t.Fatalf("view has no input %q", name)
	}
	return in
}

func TestResolve_DisabledWhileAbsent(t *testing.T) {
	spec := &types.FormSpecification{Sections: []types.Section{{
		Name: "s1",
		Inputs: []types.Input{{
			Name: "age", Type: "number", Label: "Age",
			DisabledWhere: map[string]any{"path": "age", "exists": false},
		}},
	}}}
	form := mustCompile(t, spec)
	engine := NewEngine(DefaultOptions())

	if in := mustInput(t, engine.Resolve(form, types.Data{}), "age"); !in.Disabled {
		t.Error("age should be disabled with no data")
	}
	if in := mustInput(t, engine.Resolve(form, types.Data{"age": float64(30)}), "age"); in.Disabled {
		t.Error("age should be enabled once set")
	}
	if in := mustInput(t, engine.Resolve(form, types.Data{"age": nil}), "age"); !in.Disabled {
		t.Error("age should be disabled when null")
	}
}

func TestResolve_ConditionalError(t *testing.T) {
	spec := &types.FormSpecification{
		Sections: []types.Section{{
			Inputs: []types.Input{
				{Name: "country", Type: "select", Label: "Country"},
				{Name: "state", Type: "text", Label: "State", Error: "static"},
			},
		}},
		Validations: []types.Validation{{
			Where:   map[string]any{"path": "country", "equals": "US"},
			Changes: []types.Change{{Name: "state", Error: strPtr("Required")}},
		}},
	}
	form := mustCompile(t, spec)
	engine := NewEngine(DefaultOptions())

	if got := mustInput(t, engine.Resolve(form, types.Data{"country": "US"}), "state").Error; got != "Required" {
		t.Errorf("state.error = %q, want Required", got)
	}
	if got := mustInput(t, engine.Resolve(form, types.Data{"country": "FR"}), "state").Error; got != "static" {
		t.Errorf("state.error = %q, want static", got)
	}
}

func TestResolve_LaterValidationWins(t *testing.T) {
	spec := &types.FormSpecification{
		Sections: []types.Section{{Inputs: []types.Input{{Name: "x", Type: "text", Label: "X"}}}},
		Validations: []types.Validation{
			{Changes: []types.Change{{Name: "x", Error: strPtr("first"), Hint: strPtr("kept")}}},
			{Changes: []types.Change{{Name: "x", Error: strPtr("second")}}},
		},
	}
	view, err := Resolve(spec, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	in := mustInput(t, view, "x")
	if in.Error != "second" {
		t.Errorf("error = %q, want second", in.Error)
	}
	if in.Hint != "kept" {
		t.Errorf("hint = %q, want kept", in.Hint)
	}
}

func TestResolve_CustomPropsMerge(t *testing.T) {
	static := map[string]any{"a": float64(1), "b": float64(2)}
	spec := &types.FormSpecification{
		Sections: []types.Section{{Inputs: []types.Input{
			{Name: "x", Type: "text", Label: "X", CustomProps: static},
		}}},
		Validations: []types.Validation{
			{Changes: []types.Change{{Name: "x", CustomProps: map[string]any{"b": float64(3), "c": float64(4)}}}},
		},
	}
	view, err := Resolve(spec, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := map[string]any{"a": float64(1), "b": float64(3), "c": float64(4)}
	if diff := cmp.Diff(want, mustInput(t, view, "x").CustomProps); diff != "" {
		t.Errorf("customProps mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"a": float64(1), "b": float64(2)}, static); diff != "" {
		t.Errorf("static customProps mutated (-want +got):\n%s", diff)
	}
}

func TestResolve_SectionCustomPropsStartEmpty(t *testing.T) {
	spec := &types.FormSpecification{
		Sections: []types.Section{{Name: "s"}},
		Validations: []types.Validation{
			{Changes: []types.Change{{Name: "s", CustomProps: map[string]any{"collapsed": true}}}},
		},
	}
	view, err := Resolve(spec, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	section, _ := view.Section("s")
	if diff := cmp.Diff(map[string]any{"collapsed": true}, section.CustomProps); diff != "" {
		t.Errorf("section customProps mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_UnknownTargetIsNoOp(t *testing.T) {
	base := &types.FormSpecification{
		Sections: []types.Section{{Name: "s", Inputs: []types.Input{{Name: "x", Type: "text", Label: "X", Hint: "h"}}}},
	}
	withGhost := &types.FormSpecification{
		Sections: base.Sections,
		Validations: []types.Validation{
			{Changes: []types.Change{{Name: "ghost", Error: strPtr("boom")}}},
		},
	}

	want, err := Resolve(base, nil)
	if err != nil {
		t.Fatalf("Resolve(base) error = %v", err)
	}
	got, err := Resolve(withGhost, nil)
	if err != nil {
		t.Fatalf("Resolve(withGhost) error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unknown target changed the view (-want +got):\n%s", diff)
	}
}

func TestResolve_RootChange(t *testing.T) {
	spec := &types.FormSpecification{
		Sections: []types.Section{{Inputs: []types.Input{{Name: "x", Type: "text", Label: "X"}}}},
		Validations: []types.Validation{{
			Where:   map[string]any{"path": "x", "exists": false},
			Changes: []types.Change{{Error: strPtr("form incomplete"), CustomProps: map[string]any{"ignored": true}}},
		}},
	}
	view, err := Resolve(spec, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if view.Error != "form incomplete" {
		t.Errorf("form error = %q, want form incomplete", view.Error)
	}
	if !view.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
}

func TestResolve_SharedNameTargetsFirstDeclared(t *testing.T) {
	spec := &types.FormSpecification{
		Sections: []types.Section{
			{Name: "a", Inputs: []types.Input{{Name: "dup", Type: "text", Label: "First"}}},
			{Name: "b", Inputs: []types.Input{{Name: "dup", Type: "text", Label: "Second"}}},
		},
		Validations: []types.Validation{{Changes: []types.Change{{Name: "dup", Hint: strPtr("here")}}}},
	}
	view, err := Resolve(spec, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := view.Sections[0].Inputs[0].Hint; got != "here" {
		t.Errorf("first dup hint = %q, want here", got)
	}
	if got := view.Sections[1].Inputs[0].Hint; got != "" {
		t.Errorf("second dup hint = %q, want empty", got)
	}
}

func TestResolve_HiddenSectionKeepsInputState(t *testing.T) {
	spec := &types.FormSpecification{Sections: []types.Section{{
		Name:   "s",
		Hidden: true,
		Inputs: []types.Input{{Name: "x", Type: "text", Label: "X", Error: "bad"}},
	}}}
	view, err := Resolve(spec, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !view.Sections[0].Hidden {
		t.Error("section should be hidden")
	}
	if view.Sections[0].Inputs[0].Hidden {
		t.Error("input hidden flag should be its own, not inherited")
	}
	if view.HasErrors() {
		t.Error("errors inside a hidden section should not count")
	}
}

func TestResolve_MalformedSpecRejected(t *testing.T) {
	spec := &types.FormSpecification{Sections: []types.Section{{Inputs: []types.Input{{Name: "x"}}}}}
	view, err := Resolve(spec, nil)
	if err == nil {
		t.Fatal("Resolve() error = nil, want ErrMalformedSpec")
	}
	if view != nil {
		t.Error("Resolve() returned a view for a malformed spec")
	}
}

func TestNewEngine_ClampsDepth(t *testing.T) {
	if got := NewEngine(Options{}).Options().MaxConditionDepth; got != types.MaxConditionDepth {
		t.Errorf("zero depth = %d, want %d", got, types.MaxConditionDepth)
	}
	if got := NewEngine(Options{MaxConditionDepth: MaxEvalDepth * 2}).Options().MaxConditionDepth; got != MaxEvalDepth {
		t.Errorf("huge depth = %d, want %d", got, MaxEvalDepth)
	}

	shallow := NewEngine(Options{MaxConditionDepth: 1})
	form, err := shallow.Compile(&types.FormSpecification{Sections: []types.Section{{
		Name:        "s",
		HiddenWhere: map[string]any{"not": map[string]any{}},
	}}})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(form.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one depth warning", form.Warnings)
	}
	if shallow.Resolve(form, nil).Sections[0].Hidden {
		t.Error("over-deep hiddenWhere should not hide")
	}
}

// propertySpec builds a small spec whose conditions depend on the generated
// flags. Condition shapes include a malformed one.
func propertySpec(staticHidden bool, condPick int) *types.FormSpecification {
	conditions := []any{
		nil,
		map[string]any{},
		map[string]any{"path": "a", "equals": "x"},
		map[string]any{"path": "a", "exists": false},
		map[string]any{"not": map[string]any{"path": "b", "exists": true}},
		map[string]any{"bogus": []any{1}},
	}
	cond := conditions[condPick%len(conditions)]
	return &types.FormSpecification{
		Sections: []types.Section{{
			Name:        "s",
			Hidden:      staticHidden,
			HiddenWhere: cond,
			Inputs: []types.Input{
				{Name: "a", Type: "text", Label: "A", Hidden: staticHidden, HiddenWhere: cond, DisabledWhere: cond},
				{Name: "plain", Type: "text", Label: "Plain"},
			},
		}},
		Validations: []types.Validation{
			{Where: cond, Changes: []types.Change{{Name: "a", Warning: strPtr("w"), CustomProps: map[string]any{"k": "v"}}}},
		},
	}
}

func TestResolve_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	dataGen := gen.MapOf(gen.OneConstOf("a", "b", "c"), gen.OneConstOf("x", "y", ""))

	properties.Property("resolving twice yields identical views", prop.ForAll(
		func(staticHidden bool, condPick int, raw map[string]string) bool {
			form, err := Compile(propertySpec(staticHidden, condPick))
			if err != nil {
				return false
			}
			data := toData(raw)
			engine := NewEngine(DefaultOptions())
			return cmp.Equal(engine.Resolve(form, data), engine.Resolve(form, data))
		},
		gen.Bool(),
		gen.IntRange(0, 100),
		dataGen,
	))

	properties.Property("static hidden wins over any hiddenWhere", prop.ForAll(
		func(condPick int, raw map[string]string) bool {
			view, err := Resolve(propertySpec(true, condPick), toData(raw))
			if err != nil {
				return false
			}
			return view.Sections[0].Hidden && view.Sections[0].Inputs[0].Hidden
		},
		gen.IntRange(0, 100),
		dataGen,
	))

	properties.Property("entities without visibility fields are shown and enabled", prop.ForAll(
		func(staticHidden bool, condPick int, raw map[string]string) bool {
			view, err := Resolve(propertySpec(staticHidden, condPick), toData(raw))
			if err != nil {
				return false
			}
			plain := view.Sections[0].Inputs[1]
			return !plain.Hidden && !plain.Disabled
		},
		gen.Bool(),
		gen.IntRange(0, 100),
		dataGen,
	))

	properties.Property("resolve never mutates the data snapshot", prop.ForAll(
		func(condPick int, raw map[string]string) bool {
			data := toData(raw)
			before := toData(raw)
			if _, err := Resolve(propertySpec(false, condPick), data); err != nil {
				return false
			}
			return cmp.Equal(before, data)
		},
		gen.IntRange(0, 100),
		dataGen,
	))

	properties.TestingRun(t)
}

func toData(raw map[string]string) types.Data {
	data := make(types.Data, len(raw))
	for k, v := range raw {
		data[k] = v
	}
	return data
}
