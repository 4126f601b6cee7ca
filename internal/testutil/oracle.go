package testutil

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// Oracle evaluates src with expr-lang, which shares hitung's arithmetic
// syntax and precedence. Booleans map to 1 and 0.
func Oracle(src string) (float64, error) {
	program, err := expr.Compile(src)
	if err != nil {
		return 0, fmt.Errorf("oracle compile error: %w", err)
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return 0, fmt.Errorf("oracle runtime error: %w", err)
	}
	switch v := out.(type) {
	case int:
		return float64(v), nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("oracle: unexpected result type %T", out)
	}
}
