package expressions

import "context"

// Engine evaluates edge conditions and embedded expressions.
// Two implementations: Expr (default) and CEL (selectable).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
