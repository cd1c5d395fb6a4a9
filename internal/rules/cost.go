// internal/rules/cost.go
package rules

/*
 * Cost model for condition evaluation.
 *
 * Each compiled node carries an estimated cost. AllCondition and
 * AnyCondition evaluate operands in ascending cost order so cheap presence
 * checks short-circuit before deep composite comparisons. Conditions are
 * pure, so operand order never changes the result, only the work done.
 *
 * Cost formula for leaves: lookup_cost + operator_cost * value_multiplier
 *
 * The summed cost of a form is reported by `formkeeper lint` to flag specs
 * that are unusually expensive to re-evaluate on every keystroke.
 */

// Canonical cost constants.
const (
	// Operator base costs
	CostAlways = 0
	CostExists = 1
	CostEq     = 5
	CostNot    = 1

	// Field lookup cost per path segment
	CostLookupPerSegment = 16

	// Value multipliers for equality operands
	MultiplierScalar    = 1
	MultiplierComposite = 8
)

func (AlwaysCondition) Cost() int { return CostAlways }

func (c EqualsCondition) Cost() int {
	return lookupCost(c.Path) + CostEq*valueMultiplier(c.Value)
}

func (c ExistsCondition) Cost() int {
	return lookupCost(c.Path) + CostExists
}

func (c AllCondition) Cost() int {
	return sumCost(c.Operands)
}

func (c AnyCondition) Cost() int {
	return sumCost(c.Operands)
}

func (c NotCondition) Cost() int {
	if c.Operand == nil {
		return CostNot
	}
	return CostNot + c.Operand.Cost()
}

// InvalidCondition never touches data.
func (InvalidCondition) Cost() int { return 0 }

// lookupCost charges per traversed segment.
func lookupCost(p Path) int {
	return p.Depth() * CostLookupPerSegment
}

// valueMultiplier scales equality cost by operand size.
// Composite values cost proportionally to their element count.
func valueMultiplier(v any) int {
	switch val := v.(type) {
	case []any:
		return MultiplierComposite * (1 + len(val))
	case map[string]any:
		return MultiplierComposite * (1 + len(val))
	default:
		return MultiplierScalar
	}
}

func sumCost(operands []CompiledCondition) int {
	total := 0
	for _, op := range operands {
		if op == nil {
			continue
		}
		total += op.Cost()
	}
	return total
}
