// internal/rules/evaluate.go
package rules

import (
	"github.com/solatis/formkeeper/internal/types"
)

/*
 * Condition evaluation.
 *
 * Matches evaluates a CompiledCondition against a data snapshot. Evaluation
 * is pure and total: it reads the snapshot, never writes it, and never fails.
 *
 * Semantics per node:
 *   - Always: true
 *   - Equals: path present and Equal(value, operand); an absent path never
 *     equals anything, not even null
 *   - Exists: Exists(path) == Want, where null counts as absent
 *   - All: every operand matches (empty = true), stops at first miss
 *   - Any: some operand matches (empty = false), stops at first hit
 *   - Not: negation
 *   - Invalid: false
 *
 * Depth guard: compiled trees are already depth-limited. Hand-built trees
 * deeper than MaxEvalDepth fail closed instead of exhausting the stack.
 */

// MaxEvalDepth is the hard recursion ceiling for Matches.
const MaxEvalDepth = 1024

// Matches reports whether cond holds for data. A nil condition matches.
func Matches(cond CompiledCondition, data any) bool {
	if cond == nil {
		return true
	}
	matched, ok := matchNode(cond, data, 1)
	return ok && matched
}

// MatchesRaw compiles a decoded condition with the default depth limit and
// evaluates it. Absent and empty conditions match.
func MatchesRaw(raw types.Condition, data any) bool {
	return Matches(CompileCondition(raw, types.MaxConditionDepth), data)
}

// matchNode dispatches on the sealed node set. ok is false when the tree
// exceeded MaxEvalDepth or held a nil operand; the caller then discards the
// whole result so negation cannot flip it into a match.
func matchNode(cond CompiledCondition, data any, depth int) (matched, ok bool) {
	if depth > MaxEvalDepth {
		return false, false
	}

	switch c := cond.(type) {
	case AlwaysCondition:
		return true, true
	case EqualsCondition:
		value, found := c.Path.Lookup(data)
		if !found {
			return false, true
		}
		return Equal(value, c.Value), true
	case ExistsCondition:
		value, found := c.Path.Lookup(data)
		return (found && value != nil) == c.Want, true
	case AllCondition:
		for _, op := range c.Operands {
			m, ok := matchNode(op, data, depth+1)
			if !ok {
				return false, false
			}
			if !m {
				return false, true
			}
		}
		return true, true
	case AnyCondition:
		for _, op := range c.Operands {
			m, ok := matchNode(op, data, depth+1)
			if !ok {
				return false, false
			}
			if m {
				return true, true
			}
		}
		return false, true
	case NotCondition:
		if c.Operand == nil {
			return false, false
		}
		m, ok := matchNode(c.Operand, data, depth+1)
		if !ok {
			return false, false
		}
		return !m, true
	case InvalidCondition:
		return false, false
	default:
		return false, false
	}
}
