package runtime

import (
	"encoding/base64"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Custom expression functions available in every expression predicate
var exprFunctions = []expr.Option{
	expr.Function("base64_encode", func(params ...any) (any, error) {
		s, _ := params[0].(string)
		return base64.StdEncoding.EncodeToString([]byte(s)), nil
	}),
	expr.Function("base64_decode", func(params ...any) (any, error) {
		s, _ := params[0].(string)
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}),
}

// Expression is a compiled boolean expr-lang program evaluated against the variable store.
// Variables are nested maps, so dotted access (token.access) works natively.
type Expression struct {
	source  string
	program *vm.Program
}

// CompileExpression compiles source once; unknown variables evaluate to nil at run time.
func CompileExpression(source string) (*Expression, error) {
	opts := []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	}
	opts = append(opts, exprFunctions...)

	program, err := expr.Compile(source, opts...)
	if err != nil {
		return nil, fmt.Errorf("error compiling expression %q: %w", source, err)
	}
	return &Expression{source: source, program: program}, nil
}

func (e *Expression) String() string {
	return e.source
}

// Eval runs the expression against the given variables.
func (e *Expression) Eval(vars map[string]any) (bool, error) {
	out, err := expr.Run(e.program, vars)
	if err != nil {
		return false, fmt.Errorf("error evaluating expression %q: %w", e.source, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q evaluated to %T, expected boolean", e.source, out)
	}
	return b, nil
}
