package rules

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/solatis/formkeeper/internal/types"
)

func TestMergeProps(t *testing.T) {
	tests := []struct {
		name    string
		base    map[string]any
		overlay map[string]any
		want    map[string]any
	}{
		{"both nil", nil, nil, nil},
		{"nil base", nil, map[string]any{"a": 1}, map[string]any{"a": 1}},
		{"nil overlay", map[string]any{"a": 1}, nil, map[string]any{"a": 1}},
		{
			"overlay wins",
			map[string]any{"a": 1, "b": 2},
			map[string]any{"b": 3, "c": 4},
			map[string]any{"a": 1, "b": 3, "c": 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeProps(tt.base, tt.overlay)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MergeProps() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeProps_DoesNotAlias(t *testing.T) {
	base := map[string]int{"a": 1}
	merged := MergeProps(base, map[string]int{"b": 2})
	merged["a"] = 99
	if base["a"] != 1 {
		t.Errorf("base mutated through merged map: %v", base)
	}
}

func TestApplyChanges(t *testing.T) {
	base := types.State{
		Hidden:      true,
		Hint:        "static hint",
		Warning:     "static warning",
		CustomProps: map[string]any{"a": float64(1)},
	}
	changes := []types.Change{
		{Hint: strPtr("first"), CustomProps: map[string]any{"b": float64(2)}},
		{Warning: strPtr(""), CustomProps: map[string]any{"a": float64(3)}},
		{Hint: strPtr("last"), Error: strPtr("err")},
	}

	got := ApplyChanges(base, changes)

	want := types.State{
		Hidden:      true,
		Hint:        "last",
		Warning:     "",
		Error:       "err",
		CustomProps: map[string]any{"a": float64(3), "b": float64(2)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ApplyChanges() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"a": float64(1)}, base.CustomProps); diff != "" {
		t.Errorf("base customProps mutated (-want +got):\n%s", diff)
	}
}

func TestApplyChanges_ClonesChangeValues(t *testing.T) {
	options := []any{"x", "y"}
	changes := []types.Change{{CustomProps: map[string]any{"options": options}}}

	got := ApplyChanges(types.State{}, changes)
	got.CustomProps["options"].([]any)[0] = "changed"

	if options[0] != "x" {
		t.Errorf("change value aliased into state: %v", options)
	}
}

func TestResolveVisibility(t *testing.T) {
	data := map[string]any{"country": "US"}

	tests := []struct {
		name   string
		entity types.Entity
		want   Visibility
	}{
		{"nothing set", &types.Input{}, Visibility{}},
		{"static hidden", &types.Input{Hidden: true}, Visibility{Hidden: true}},
		{
			"static hidden ignores malformed condition",
			&types.Section{Hidden: true, HiddenWhere: map[string]any{"bogus": 1}},
			Visibility{Hidden: true},
		},
		{
			"condition hides",
			&types.Section{HiddenWhere: map[string]any{"path": "country", "equals": "US"}},
			Visibility{Hidden: true},
		},
		{
			"condition misses",
			&types.Input{DisabledWhere: map[string]any{"path": "country", "equals": "FR"}},
			Visibility{},
		},
		{
			"malformed condition is false",
			&types.Input{DisabledWhere: map[string]any{"path": "country"}},
			Visibility{},
		},
		{
			"static disabled and conditional hidden",
			&types.Input{Disabled: true, HiddenWhere: map[string]any{}},
			Visibility{Hidden: true, Disabled: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveVisibility(tt.entity, data); got != tt.want {
				t.Errorf("ResolveVisibility() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
