package rules

import (
	"errors"
	"fmt"
	"sort"

	"github.com/solatis/formkeeper/internal/types"
)

/*
 * Condition grammar.
 *
 * The wire form of hiddenWhere, disabledWhere and where is an opaque JSON
 * object. CompileCondition closes it into a sealed set of node types so the
 * matcher is a total, exhaustive switch:
 *
 *   {}                          AlwaysCondition
 *   {"path": p, "equals": v}    EqualsCondition
 *   {"path": p, "exists": b}    ExistsCondition
 *   {"all": [c, ...]}           AllCondition  (empty list matches)
 *   {"any": [c, ...]}           AnyCondition  (empty list never matches)
 *   {"not": c}                  NotCondition
 *
 * Anything else (unknown tag, extra keys, wrong operand types, invalid path,
 * nesting deeper than the depth limit) compiles the whole condition to
 * InvalidCondition, which never matches. Poisoning the whole tree rather than
 * the offending node keeps "not" from turning a malformed subtree into a
 * match.
 */

// Condition tags recognized on the wire.
const (
	tagPath   = "path"
	tagEquals = "equals"
	tagExists = "exists"
	tagAll    = "all"
	tagAny    = "any"
	tagNot    = "not"
)

var errConditionTooDeep = errors.New("condition nesting exceeds maximum depth")

// CompiledCondition is a closed condition node. The unexported marker method
// seals the set of implementations to this package.
type CompiledCondition interface {
	// Cost estimates evaluation cost for operand ordering.
	Cost() int
	condition()
}

// AlwaysCondition matches every snapshot.
type AlwaysCondition struct{}

// EqualsCondition matches when Path resolves to a value equal to Value.
type EqualsCondition struct {
	Path  Path
	Value any
}

// ExistsCondition matches when the presence of a non-null value at Path
// equals Want.
type ExistsCondition struct {
	Path Path
	Want bool
}

// AllCondition is a logical AND. Operands are ordered by ascending cost.
type AllCondition struct {
	Operands []CompiledCondition
}

// AnyCondition is a logical OR. Operands are ordered by ascending cost.
type AnyCondition struct {
	Operands []CompiledCondition
}

// NotCondition negates its operand.
type NotCondition struct {
	Operand CompiledCondition
}

// InvalidCondition stands in for a malformed or over-deep condition.
// It never matches.
type InvalidCondition struct {
	Reason string
}

func (AlwaysCondition) condition()  {}
func (EqualsCondition) condition()  {}
func (ExistsCondition) condition()  {}
func (AllCondition) condition()     {}
func (AnyCondition) condition()     {}
func (NotCondition) condition()     {}
func (InvalidCondition) condition() {}

// CompileCondition closes a decoded condition into a CompiledCondition.
// Returns nil for an absent (nil) condition. maxDepth <= 0 selects
// types.MaxConditionDepth.
func CompileCondition(raw types.Condition, maxDepth int) CompiledCondition {
	if raw == nil {
		return nil
	}
	if maxDepth <= 0 {
		maxDepth = types.MaxConditionDepth
	}
	cond, err := compileNode(raw, 1, maxDepth)
	if err != nil {
		return InvalidCondition{Reason: err.Error()}
	}
	return cond
}

// compileNode compiles one node at the given depth (root = 1).
func compileNode(raw any, depth, maxDepth int) (CompiledCondition, error) {
	if depth > maxDepth {
		return nil, errConditionTooDeep
	}

	obj, ok := asObject(raw)
	if !ok {
		return nil, fmt.Errorf("condition must be an object, got %T", raw)
	}
	if len(obj) == 0 {
		return AlwaysCondition{}, nil
	}
	if _, ok := obj[tagPath]; ok {
		return compileLeaf(obj)
	}
	if len(obj) != 1 {
		return nil, fmt.Errorf("condition must have exactly one of %q, %q, %q or a %q leaf", tagAll, tagAny, tagNot, tagPath)
	}

	if operand, ok := obj[tagNot]; ok {
		inner, err := compileNode(operand, depth+1, maxDepth)
		if err != nil {
			return nil, err
		}
		return NotCondition{Operand: inner}, nil
	}

	for _, tag := range []string{tagAll, tagAny} {
		operand, ok := obj[tag]
		if !ok {
			continue
		}
		list, ok := asList(operand)
		if !ok {
			return nil, fmt.Errorf("%q must be a list of conditions, got %T", tag, operand)
		}
		operands := make([]CompiledCondition, 0, len(list))
		for _, elem := range list {
			inner, err := compileNode(elem, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			operands = append(operands, inner)
		}
		sortByCost(operands)
		if tag == tagAll {
			return AllCondition{Operands: operands}, nil
		}
		return AnyCondition{Operands: operands}, nil
	}

	return nil, fmt.Errorf("unknown condition tag %q", soleKey(obj))
}

// compileLeaf compiles {"path", "equals"} and {"path", "exists"} leaves.
func compileLeaf(obj map[string]any) (CompiledCondition, error) {
	rawPath, ok := obj[tagPath].(string)
	if !ok {
		return nil, fmt.Errorf("%q must be a string, got %T", tagPath, obj[tagPath])
	}
	path, err := ParsePath(rawPath)
	if err != nil {
		return nil, err
	}
	if len(obj) != 2 {
		return nil, fmt.Errorf("leaf on %q must have exactly one of %q or %q", rawPath, tagEquals, tagExists)
	}

	if value, ok := obj[tagEquals]; ok {
		coerced, ok := Coerce(value)
		if !ok {
			return nil, fmt.Errorf("unsupported %q value of type %T", tagEquals, value)
		}
		return EqualsCondition{Path: path, Value: CloneValue(coerced)}, nil
	}
	if want, ok := obj[tagExists]; ok {
		b, ok := want.(bool)
		if !ok {
			return nil, fmt.Errorf("%q must be a boolean, got %T", tagExists, want)
		}
		return ExistsCondition{Path: path, Want: b}, nil
	}
	return nil, fmt.Errorf("leaf on %q must have exactly one of %q or %q", rawPath, tagEquals, tagExists)
}

// asObject accepts the map shapes decoders and Go callers produce.
func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		coerced, _ := Coerce(m)
		return coerced.(map[string]any), true
	default:
		return nil, false
	}
}

// asList accepts []any and []map[string]any operand lists.
func asList(v any) ([]any, bool) {
	switch v.(type) {
	case []any, []map[string]any:
		coerced, _ := Coerce(v)
		return coerced.([]any), true
	default:
		return nil, false
	}
}

// soleKey returns the smallest key for a deterministic error message.
func soleKey(obj map[string]any) string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
