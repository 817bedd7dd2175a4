package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrUnknownOperator = errors.New("unknown operator")
	ErrMissingOperands = errors.New("missing operands")
	ErrInvalidOperand  = errors.New("invalid operand")
	ErrDivisionByZero  = errors.New("division by zero")
)

type operation struct {
	minOperands int
	apply       func(acc, v float64) (float64, error)
}

var operations = map[string]operation{
	"add": {1, func(acc, v float64) (float64, error) { return acc + v, nil }},
	"sub": {2, func(acc, v float64) (float64, error) { return acc - v, nil }},
	"mul": {1, func(acc, v float64) (float64, error) { return acc * v, nil }},
	"div": {2, func(acc, v float64) (float64, error) {
		if v == 0 {
			return 0, ErrDivisionByZero
		}
		return acc / v, nil
	}},
	"mod": {2, func(acc, v float64) (float64, error) {
		if v == 0 {
			return 0, ErrDivisionByZero
		}
		return math.Mod(acc, v), nil
	}},
	"pow": {2, func(acc, v float64) (float64, error) { return math.Pow(acc, v), nil }},
	"min": {1, func(acc, v float64) (float64, error) { return min(acc, v), nil }},
	"max": {1, func(acc, v float64) (float64, error) { return max(acc, v), nil }},
}

var aliases = map[string]string{
	"+": "add",
	"-": "sub",
	"*": "mul",
	"/": "div",
	"%": "mod",
	"^": "pow",
}

// Operators lists the canonical operator names
func Operators() []string {
	return []string{"add", "sub", "mul", "div", "mod", "pow", "min", "max"}
}

func lookup(operator string) (operation, bool) {
	name := strings.ToLower(strings.TrimSpace(operator))
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}

	op, ok := operations[name]
	return op, ok
}

// Evaluate folds the operands left to right with the request's operator
func Evaluate(req Request) (float64, error) {
	op, ok := lookup(req.Operator)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperator, req.Operator)
	}

	if len(req.Operands) < op.minOperands {
		return 0, fmt.Errorf("%w: %s needs at least %d, got %d",
			ErrMissingOperands, req.Operator, op.minOperands, len(req.Operands))
	}

	values := make([]float64, len(req.Operands))
	for i, operand := range req.Operands {
		v, err := strconv.ParseFloat(strings.TrimSpace(operand), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidOperand, operand)
		}
		values[i] = v
	}

	acc := values[0]
	for _, v := range values[1:] {
		var err error
		if acc, err = op.apply(acc, v); err != nil {
			return 0, err
		}
	}

	return acc, nil
}
