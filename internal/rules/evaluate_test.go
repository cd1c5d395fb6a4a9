package rules

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestMatches(t *testing.T) {
	data := map[string]any{
		"country": "US",
		"age":     float64(30),
		"middle":  nil,
		"tags":    []any{"a", "b"},
		"address": map[string]any{"city": "Lyon"},
	}

	tests := []struct {
		name string
		cond any
		want bool
	}{
		{"absent", nil, true},
		{"empty object", map[string]any{}, true},

		{"equals string", map[string]any{"path": "country", "equals": "US"}, true},
		{"equals mismatch", map[string]any{"path": "country", "equals": "FR"}, false},
		{"equals int coerced", map[string]any{"path": "age", "equals": 30}, true},
		{"equals string vs number", map[string]any{"path": "age", "equals": "30"}, false},
		{"equals nested", map[string]any{"path": "address.city", "equals": "Lyon"}, true},
		{"equals list", map[string]any{"path": "tags", "equals": []any{"a", "b"}}, true},
		{"equals list order", map[string]any{"path": "tags", "equals": []any{"b", "a"}}, false},
		{"equals null on null", map[string]any{"path": "middle", "equals": nil}, true},
		{"equals null on absent", map[string]any{"path": "missing", "equals": nil}, false},
		{"equals null on value", map[string]any{"path": "country", "equals": nil}, false},

		{"exists true", map[string]any{"path": "country", "exists": true}, true},
		{"exists false on absent", map[string]any{"path": "missing", "exists": false}, true},
		{"exists false on null", map[string]any{"path": "middle", "exists": false}, true},
		{"exists true on null", map[string]any{"path": "middle", "exists": true}, false},

		{"all empty", map[string]any{"all": []any{}}, true},
		{"all match", map[string]any{"all": []any{
			map[string]any{"path": "country", "equals": "US"},
			map[string]any{"path": "age", "exists": true},
		}}, true},
		{"all one miss", map[string]any{"all": []any{
			map[string]any{"path": "country", "equals": "US"},
			map[string]any{"path": "missing", "exists": true},
		}}, false},
		{"any empty", map[string]any{"any": []any{}}, false},
		{"any one hit", map[string]any{"any": []any{
			map[string]any{"path": "country", "equals": "FR"},
			map[string]any{"path": "country", "equals": "US"},
		}}, true},
		{"not", map[string]any{"not": map[string]any{"path": "country", "equals": "FR"}}, true},

		{"malformed", map[string]any{"bogus": 1}, false},
		{"not malformed", map[string]any{"not": map[string]any{"bogus": 1}}, false},
		{"any with malformed operand", map[string]any{"any": []any{
			map[string]any{},
			map[string]any{"bogus": 1},
		}}, false},
		{"not not malformed", map[string]any{"not": map[string]any{"not": "x"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesRaw(tt.cond, data); got != tt.want {
				t.Errorf("MatchesRaw(%v) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestMatches_NonObjectSnapshot(t *testing.T) {
	cond := map[string]any{"path": "a", "exists": false}
	for _, data := range []any{nil, "scalar", []any{1}} {
		if !MatchesRaw(cond, data) {
			t.Errorf("exists:false on %v should match", data)
		}
	}
}

func TestMatches_HandBuiltTrees(t *testing.T) {
	if Matches(NotCondition{}, nil) {
		t.Error("NotCondition with nil operand matched")
	}

	var deep CompiledCondition = AlwaysCondition{}
	for i := 0; i < MaxEvalDepth+1; i++ {
		deep = NotCondition{Operand: deep}
	}
	if Matches(deep, nil) {
		t.Error("over-deep tree matched")
	}
	if Matches(NotCondition{Operand: deep}, nil) {
		t.Error("negated over-deep tree matched")
	}

	if Matches(AllCondition{Operands: []CompiledCondition{AlwaysCondition{}, nil}}, nil) {
		t.Error("AllCondition with nil operand matched")
	}
}

// Property-based test: evaluation is deterministic and never mutates data
func TestMatches_PropertyPure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	conditions := []any{
		map[string]any{"path": "a", "equals": "x"},
		map[string]any{"path": "a.b", "exists": true},
		map[string]any{"not": map[string]any{"path": "a", "exists": false}},
		map[string]any{"any": []any{map[string]any{"path": "a", "equals": nil}, map[string]any{"path": "c", "exists": true}}},
		map[string]any{"all": []any{map[string]any{"path": "c", "equals": float64(1)}}},
		map[string]any{"broken": true},
	}

	properties.Property("same inputs give same result and data is unchanged", prop.ForAll(
		func(pick int, key string, value string) bool {
			cond := CompileCondition(conditions[pick%len(conditions)], 0)
			data := map[string]any{key: value, "c": float64(1)}
			first := Matches(cond, data)
			second := Matches(cond, data)
			return first == second && data[key] == value && data["c"] == float64(1) && len(data) <= 2
		},
		gen.IntRange(0, 1000),
		gen.OneConstOf("a", "b"),
		gen.AlphaString(),
	))

	properties.Property("not inverts any well-formed condition", prop.ForAll(
		func(pick int, value string) bool {
			raw := conditions[pick%(len(conditions)-1)]
			data := map[string]any{"a": value}
			plain := MatchesRaw(raw, data)
			negated := MatchesRaw(map[string]any{"not": raw}, data)
			return plain != negated
		},
		gen.IntRange(0, 1000),
		gen.OneConstOf("x", "y", ""),
	))

	properties.TestingRun(t)
}
