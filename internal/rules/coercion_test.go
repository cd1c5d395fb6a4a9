package rules

import (
	"encoding/json"
	"testing"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   any
		wantOK bool
	}{
		{"nil", nil, nil, true},
		{"bool", true, true, true},
		{"string", "30", "30", true},
		{"float64", float64(1.5), float64(1.5), true},
		{"int", 30, float64(30), true},
		{"int64", int64(-4), float64(-4), true},
		{"uint8", uint8(7), float64(7), true},
		{"float32", float32(0.5), float64(0.5), true},
		{"json number", json.Number("42"), float64(42), true},
		{"bad json number", json.Number("4x2"), nil, false},
		{"struct", struct{}{}, nil, false},
		{"channel", make(chan int), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Coerce(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Coerce(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Coerce(%v) = %v (%T), want %v (%T)", tt.input, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestCoerce_Composites(t *testing.T) {
	got, ok := Coerce([]string{"a", "b"})
	if !ok {
		t.Fatal("Coerce([]string) ok = false")
	}
	list, ok := got.([]any)
	if !ok || len(list) != 2 || list[0] != "a" || list[1] != "b" {
		t.Errorf("Coerce([]string) = %#v, want []any{a b}", got)
	}

	got, ok = Coerce(map[string]string{"k": "v"})
	if !ok {
		t.Fatal("Coerce(map[string]string) ok = false")
	}
	m, ok := got.(map[string]any)
	if !ok || m["k"] != "v" {
		t.Errorf("Coerce(map[string]string) = %#v, want map[k:v]", got)
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same string", "US", "US", true},
		{"different string", "US", "FR", false},
		{"int vs float", 30, float64(30), true},
		{"string vs number", "30", float64(30), false},
		{"bool vs string", true, "true", false},
		{"bool vs number", true, float64(1), false},
		{"nil vs nil", nil, nil, true},
		{"nil vs empty string", nil, "", false},
		{"nil vs zero", nil, float64(0), false},
		{"equal lists", []any{"a", float64(1)}, []any{"a", 1}, true},
		{"list order matters", []any{"a", "b"}, []any{"b", "a"}, false},
		{"list length", []any{"a"}, []any{"a", "a"}, false},
		{"string slice vs any slice", []string{"a"}, []any{"a"}, true},
		{"equal maps", map[string]any{"x": 1, "y": []any{true}}, map[string]any{"y": []any{true}, "x": float64(1)}, true},
		{"map missing key", map[string]any{"x": 1}, map[string]any{"y": 1}, false},
		{"map extra key", map[string]any{"x": 1}, map[string]any{"x": 1, "y": 2}, false},
		{"map vs list", map[string]any{}, []any{}, false},
		{"unsupported type", struct{}{}, struct{}{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := Equal(tt.b, tt.a); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v (symmetry)", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestCloneProps_Independent(t *testing.T) {
	src := map[string]any{
		"options": []any{"a", "b"},
		"nested":  map[string]any{"k": "v"},
		"plain":   "x",
	}
	clone := CloneProps(src)

	clone["plain"] = "changed"
	clone["options"].([]any)[0] = "changed"
	clone["nested"].(map[string]any)["k"] = "changed"

	if src["plain"] != "x" {
		t.Errorf("source scalar mutated: %v", src["plain"])
	}
	if src["options"].([]any)[0] != "a" {
		t.Errorf("source slice mutated: %v", src["options"])
	}
	if src["nested"].(map[string]any)["k"] != "v" {
		t.Errorf("source map mutated: %v", src["nested"])
	}

	if CloneProps(nil) != nil {
		t.Error("CloneProps(nil) != nil")
	}
}
