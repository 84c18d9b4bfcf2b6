package expressions

import "context"

// ConditionEvaluator decides whether an edge is followed. The expression is
// first template-formatted against the execution context (missing references
// become empty strings, so comparisons against "" still work), then evaluated
// by a sandboxed Engine with the context snapshot as its environment.
type ConditionEvaluator struct {
	engine Engine
}

// NewConditionEvaluator creates a ConditionEvaluator backed by the given engine.
func NewConditionEvaluator(engine Engine) *ConditionEvaluator {
	return &ConditionEvaluator{engine: engine}
}

// Evaluate returns (result, ok). ok=false means the expression could not be
// formatted or evaluated; callers treat that as "do not follow the edge"
// rather than failing the branch: broken conditions fail closed.
func (ce *ConditionEvaluator) Evaluate(ctx context.Context, expression string, execCtx map[string]any) (bool, bool) {
	formatted, _ := Format(expression, execCtx, false)

	out, err := ce.engine.Evaluate(ctx, formatted, execCtx)
	if err != nil {
		return false, false
	}
	return Truthy(out), true
}

// Truthy applies loose truthiness to an evaluation result: nil, false, zero
// numbers, and empty strings/containers are falsy; everything else is truthy.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case uint64:
		return val != 0
	case float32:
		return val != 0
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
