package fiberexpr

import "fmt"

// Resolver looks up a bare identifier's value during evaluation. The
// compiled expression's EnvOrder (the Envs it references, gathered while
// analyzing the containing attribute) together with the real Stack at the
// point of instantiation produce a Resolver via StackResolver.
type Resolver func(name string) (Value, bool)

// StackResolver builds a Resolver that looks a name up across every Env
// in order within stack, following the adoption-stack scoping rule (spec
// §4.2): innermost binding wins.
func StackResolver(stack Stack, order []*Env) Resolver {
	return func(name string) (Value, bool) {
		return stack.Lookup(name, order)
	}
}

func evaluate(n node, resolve Resolver) (Value, error) {
	switch v := n.(type) {
	case *numberLit:
		if v.value == float64(int64(v.value)) {
			return Int(int64(v.value)), nil
		}
		return Float(v.value), nil
	case *quantityLit:
		return QuantityValue(v.value), nil
	case *stringLit:
		return String(v.value), nil
	case *boolLit:
		return Bool(v.value), nil
	case *ellipsisLit:
		return EllipsisValue, nil
	case *identifier:
		val, ok := resolve(v.name)
		if !ok {
			return Value{}, &EvalError{Message: fmt.Sprintf("undefined name %q", v.name), Offset: v.pos}
		}
		return val, nil
	case *memberAccess:
		target, err := evaluate(v.target, resolve)
		if err != nil {
			return Value{}, err
		}
		if target.IsEllipsis() {
			return EllipsisValue, nil
		}
		if target.Kind() != KindRecord {
			return Value{}, &EvalError{Message: fmt.Sprintf("cannot access field %q of a non-record value", v.field), Offset: v.pos}
		}
		field, ok := target.Record()[v.field]
		if !ok {
			return Value{}, &EvalError{Message: fmt.Sprintf("no field %q", v.field), Offset: v.pos}
		}
		return field, nil
	case *indexAccess:
		return Value{}, &EvalError{Message: "indexing is not supported", Offset: v.pos}
	case *callExpr:
		return evalCall(v, resolve)
	case *unaryExpr:
		return evalUnary(v, resolve)
	case *binaryExpr:
		return evalBinary(v, resolve)
	default:
		return Value{}, &EvalError{Message: "internal: unrecognized expression node", Offset: 0}
	}
}

func evalCall(c *callExpr, resolve Resolver) (Value, error) {
	id, ok := c.callee.(*identifier)
	if !ok {
		return Value{}, &EvalError{Message: "call target must be a function name", Offset: c.pos}
	}

	def, ok := BuiltInFunctions[id.name]
	if !ok {
		return Value{}, &EvalError{Message: fmt.Sprintf("unknown function %q", id.name), Offset: c.pos}
	}
	if len(c.kwargs) > 0 {
		return Value{}, &EvalError{Message: fmt.Sprintf("function %q does not accept keyword arguments", id.name), Offset: c.pos}
	}
	if len(c.args) < def.RequiredArgs || len(c.args) > def.RequiredArgs+def.OptionalArgs {
		return Value{}, &EvalError{Message: fmt.Sprintf("function %q takes %d-%d arguments, got %d", id.name, def.RequiredArgs, def.RequiredArgs+def.OptionalArgs, len(c.args)), Offset: c.pos}
	}

	args := make([]Value, len(c.args))
	for i, a := range c.args {
		v, err := evaluate(a, resolve)
		if err != nil {
			return Value{}, err
		}
		if v.IsEllipsis() {
			return EllipsisValue, nil
		}
		args[i] = v
	}

	impl := builtinImpls[id.name]
	result, err := impl(args)
	if err != nil {
		return Value{}, &EvalError{Message: err.Error(), Offset: c.pos}
	}
	return result, nil
}

func evalUnary(u *unaryExpr, resolve Resolver) (Value, error) {
	x, err := evaluate(u.x, resolve)
	if err != nil {
		return Value{}, err
	}
	if x.IsEllipsis() {
		return EllipsisValue, nil
	}

	switch u.op {
	case tokMinus:
		switch x.Kind() {
		case KindInt:
			return Int(-x.Int()), nil
		case KindFloat:
			return Float(-x.Float()), nil
		case KindQuantity:
			q := x.Quantity()
			q.Magnitude = -q.Magnitude
			return QuantityValue(q), nil
		default:
			return Value{}, &EvalError{Message: "unary '-' requires a number or quantity", Offset: u.pos}
		}
	case tokNot:
		return Bool(!x.Truthy()), nil
	default:
		return Value{}, &EvalError{Message: "internal: unrecognized unary operator", Offset: u.pos}
	}
}

func evalBinary(b *binaryExpr, resolve Resolver) (Value, error) {
	if b.op == tokAnd {
		left, err := evaluate(b.left, resolve)
		if err != nil {
			return Value{}, err
		}
		if left.IsEllipsis() {
			return EllipsisValue, nil
		}
		if !left.Truthy() {
			return left, nil
		}
		return evaluate(b.right, resolve)
	}
	if b.op == tokOr {
		left, err := evaluate(b.left, resolve)
		if err != nil {
			return Value{}, err
		}
		if left.IsEllipsis() {
			return EllipsisValue, nil
		}
		if left.Truthy() {
			return left, nil
		}
		return evaluate(b.right, resolve)
	}

	left, err := evaluate(b.left, resolve)
	if err != nil {
		return Value{}, err
	}
	right, err := evaluate(b.right, resolve)
	if err != nil {
		return Value{}, err
	}
	if left.IsEllipsis() || right.IsEllipsis() {
		return EllipsisValue, nil
	}

	switch b.op {
	case tokEq:
		return Bool(valuesEqual(left, right)), nil
	case tokNeq:
		return Bool(!valuesEqual(left, right)), nil
	case tokLt, tokLte, tokGt, tokGte:
		return compareValues(b.op, left, right, b.pos)
	case tokPlus:
		return arith(b.op, left, right, b.pos)
	case tokMinus, tokStar, tokSlash, tokPercent:
		return arith(b.op, left, right, b.pos)
	default:
		return Value{}, &EvalError{Message: "internal: unrecognized binary operator", Offset: b.pos}
	}
}

func valuesEqual(a, b Value) bool {
	if a.Kind() != b.Kind() {
		if (a.Kind() == KindInt || a.Kind() == KindFloat) && (b.Kind() == KindInt || b.Kind() == KindFloat) {
			return a.Float() == b.Float()
		}
		return false
	}
	switch a.Kind() {
	case KindBool:
		return a.Bool() == b.Bool()
	case KindInt:
		return a.Int() == b.Int()
	case KindFloat:
		return a.Float() == b.Float()
	case KindString:
		return a.Str() == b.Str()
	case KindEllipsis:
		return true
	case KindQuantity:
		cmp, err := a.Quantity().Compare(b.Quantity())
		return err == nil && cmp == 0
	default:
		return false
	}
}

func compareValues(op tokenClass, a, b Value, pos int) (Value, error) {
	var cmp int
	if a.Kind() == KindQuantity || b.Kind() == KindQuantity {
		if a.Kind() != KindQuantity || b.Kind() != KindQuantity {
			return Value{}, &EvalError{Message: "cannot compare a quantity with a bare number", Offset: pos}
		}
		c, err := a.Quantity().Compare(b.Quantity())
		if err != nil {
			return Value{}, newDimensionalityEvalError(pos, err)
		}
		cmp = c
	} else if a.Kind() == KindString && b.Kind() == KindString {
		switch {
		case a.Str() < b.Str():
			cmp = -1
		case a.Str() > b.Str():
			cmp = 1
		default:
			cmp = 0
		}
	} else {
		af, bf := a.Float(), b.Float()
		switch {
		case af < bf:
			cmp = -1
		case af > bf:
			cmp = 1
		default:
			cmp = 0
		}
	}

	switch op {
	case tokLt:
		return Bool(cmp < 0), nil
	case tokLte:
		return Bool(cmp <= 0), nil
	case tokGt:
		return Bool(cmp > 0), nil
	case tokGte:
		return Bool(cmp >= 0), nil
	default:
		return Value{}, &EvalError{Message: "internal: unrecognized comparison operator", Offset: pos}
	}
}

func arith(op tokenClass, a, b Value, pos int) (Value, error) {
	if a.Kind() == KindQuantity || b.Kind() == KindQuantity {
		return arithQuantity(op, a, b, pos)
	}

	if op == tokPlus && (a.Kind() == KindString || b.Kind() == KindString) {
		if a.Kind() != KindString || b.Kind() != KindString {
			return Value{}, &EvalError{Message: "cannot add a string to a non-string", Offset: pos}
		}
		return String(a.Str() + b.Str()), nil
	}

	useFloat := a.Kind() == KindFloat || b.Kind() == KindFloat
	switch op {
	case tokPlus:
		if useFloat {
			return Float(a.Float() + b.Float()), nil
		}
		return Int(a.Int() + b.Int()), nil
	case tokMinus:
		if useFloat {
			return Float(a.Float() - b.Float()), nil
		}
		return Int(a.Int() - b.Int()), nil
	case tokStar:
		if useFloat {
			return Float(a.Float() * b.Float()), nil
		}
		return Int(a.Int() * b.Int()), nil
	case tokSlash:
		if b.Float() == 0 {
			return Value{}, &EvalError{Message: "division by zero", Offset: pos}
		}
		return Float(a.Float() / b.Float()), nil
	case tokPercent:
		if b.Int() == 0 {
			return Value{}, &EvalError{Message: "modulo by zero", Offset: pos}
		}
		return Int(a.Int() % b.Int()), nil
	default:
		return Value{}, &EvalError{Message: "internal: unrecognized arithmetic operator", Offset: pos}
	}
}

func asQuantity(v Value) Quantity {
	if v.Kind() == KindQuantity {
		return v.Quantity()
	}
	return Quantity{Magnitude: v.Float(), Unit: ""}
}

func arithQuantity(op tokenClass, a, b Value, pos int) (Value, error) {
	qa, qb := asQuantity(a), asQuantity(b)

	switch op {
	case tokPlus:
		q, err := qa.Add(qb)
		if err != nil {
			return Value{}, newDimensionalityEvalError(pos, err)
		}
		return QuantityValue(q), nil
	case tokMinus:
		q, err := qa.Sub(qb)
		if err != nil {
			return Value{}, newDimensionalityEvalError(pos, err)
		}
		return QuantityValue(q), nil
	case tokStar:
		return QuantityValue(qa.Mul(qb)), nil
	case tokSlash:
		q, err := qa.Div(qb)
		if err != nil {
			return Value{}, &EvalError{Message: err.Error(), Offset: pos}
		}
		return QuantityValue(q), nil
	default:
		return Value{}, &EvalError{Message: "operator not supported for quantities", Offset: pos}
	}
}
