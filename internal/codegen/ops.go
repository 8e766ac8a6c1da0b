package codegen

import (
	"fmt"

	"vvm/internal/bytecode"
)

// familyForOp maps a resolved operator's source-level spelling to its
// opcode Family (spec §4.2: "the generator constructs the specialised
// opcode name `<op>_<left-vvm-type>_<right-vvm-type>`").
func familyForOp(op string, unary bool) (bytecode.Family, error) {
	if unary {
		switch op {
		case "-":
			return bytecode.FNeg, nil
		case "!":
			return bytecode.FNot, nil
		}
		return 0, fmt.Errorf("codegen: unknown unary operator %q", op)
	}
	switch op {
	case "+":
		return bytecode.FAdd, nil
	case "-":
		return bytecode.FSub, nil
	case "*":
		return bytecode.FMul, nil
	case "/":
		return bytecode.FDiv, nil
	case "%":
		return bytecode.FMod, nil
	case "==":
		return bytecode.FEq, nil
	case "!=":
		return bytecode.FNeq, nil
	case "<":
		return bytecode.FLt, nil
	case "<=":
		return bytecode.FLe, nil
	case ">":
		return bytecode.FGt, nil
	case ">=":
		return bytecode.FGe, nil
	case "&&":
		return bytecode.FAnd, nil
	case "||":
		return bytecode.FOr, nil
	}
	return 0, fmt.Errorf("codegen: unknown binary operator %q", op)
}
