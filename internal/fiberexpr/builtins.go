package fiberexpr

import "math"

// Function describes a built-in callable's arity; implementations live
// in builtinImpls rather than on Function itself, since this
// language's functions operate on Value directly rather than on any
// broader interpreter state.
type Function struct {
	Name         string
	RequiredArgs int
	OptionalArgs int
}

var BuiltInFunctions = map[string]Function{
	"min":   {Name: "min", RequiredArgs: 2},
	"max":   {Name: "max", RequiredArgs: 2},
	"abs":   {Name: "abs", RequiredArgs: 1},
	"round": {Name: "round", RequiredArgs: 1},
	"floor": {Name: "floor", RequiredArgs: 1},
	"ceil":  {Name: "ceil", RequiredArgs: 1},
	"str":   {Name: "str", RequiredArgs: 1},
}

type builtinImpl func(args []Value) (Value, error)

var builtinImpls = map[string]builtinImpl{
	"min": func(args []Value) (Value, error) {
		if args[0].Float() <= args[1].Float() {
			return args[0], nil
		}
		return args[1], nil
	},
	"max": func(args []Value) (Value, error) {
		if args[0].Float() >= args[1].Float() {
			return args[0], nil
		}
		return args[1], nil
	},
	"abs": func(args []Value) (Value, error) {
		if args[0].Kind() == KindInt {
			v := args[0].Int()
			if v < 0 {
				v = -v
			}
			return Int(v), nil
		}
		return Float(math.Abs(args[0].Float())), nil
	},
	"round": func(args []Value) (Value, error) {
		return Int(int64(math.Round(args[0].Float()))), nil
	},
	"floor": func(args []Value) (Value, error) {
		return Int(int64(math.Floor(args[0].Float()))), nil
	},
	"ceil": func(args []Value) (Value, error) {
		return Int(int64(math.Ceil(args[0].Float()))), nil
	},
	"str": func(args []Value) (Value, error) {
		return String(args[0].String()), nil
	},
}
