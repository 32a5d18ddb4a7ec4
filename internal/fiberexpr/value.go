package fiberexpr

import "fmt"

// ValueKind tags the dynamic type carried by a Value: booleans,
// integers/floats, strings, ellipsis, quantities, and arbitrary
// exportable records.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindInt
	KindFloat
	KindString
	KindEllipsis
	KindQuantity
	KindRecord
)

// Value is a tagged-union runtime value produced by evaluating an
// expression, modeled as a small struct rather than interface{} so
// arithmetic and comparison can dispatch on vKind directly, following the
// same tagged-union idiom as tunascript/syntax.Value.
type Value struct {
	vKind ValueKind
	b     bool
	i     int64
	f     float64
	s     string
	q     Quantity
	r     Record
}

// Record is an arbitrary exportable mapping value, e.g. the result of a
// function call returning structured data.
type Record map[string]Value

// Bool wraps a boolean as a Value.
func Bool(b bool) Value { return Value{vKind: KindBool, b: b} }

// Int wraps an integer as a Value.
func Int(i int64) Value { return Value{vKind: KindInt, i: i} }

// Float wraps a float as a Value.
func Float(f float64) Value { return Value{vKind: KindFloat, f: f} }

// String wraps a string as a Value.
func String(s string) Value { return Value{vKind: KindString, s: s} }

// EllipsisValue is the singleton "unresolved / omitted" value.
var EllipsisValue = Value{vKind: KindEllipsis}

// QuantityValue wraps a Quantity as a Value.
func QuantityValue(q Quantity) Value { return Value{vKind: KindQuantity, q: q} }

// RecordValue wraps a Record as a Value.
func RecordValue(r Record) Value { return Value{vKind: KindRecord, r: r} }

// Kind returns the Value's dynamic type tag.
func (v Value) Kind() ValueKind { return v.vKind }

// IsEllipsis reports whether v is the ellipsis ("unresolved") value.
func (v Value) IsEllipsis() bool { return v.vKind == KindEllipsis }

// Bool returns v's boolean payload; only meaningful if Kind() == KindBool.
func (v Value) Bool() bool { return v.b }

// Int returns v's integer payload; only meaningful if Kind() == KindInt.
func (v Value) Int() int64 { return v.i }

// Float returns v's float payload, coercing ints to float64 for
// convenience (arithmetic between an int and a float Value promotes to
// float, the usual type-coercion rule).
func (v Value) Float() float64 {
	if v.vKind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Str returns v's string payload; only meaningful if Kind() == KindString.
func (v Value) Str() string { return v.s }

// Quantity returns v's quantity payload; only meaningful if Kind() ==
// KindQuantity.
func (v Value) Quantity() Quantity { return v.q }

// Record returns v's record payload; only meaningful if Kind() == KindRecord.
func (v Value) Record() Record { return v.r }

// Truthy implements the language's boolean-coercion rule used by `if`
// conditions and logical operators: booleans are themselves, numbers are
// truthy when non-zero, strings when non-empty, ellipsis is always falsy.
func (v Value) Truthy() bool {
	switch v.vKind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindEllipsis:
		return false
	case KindQuantity:
		return v.q.Magnitude != 0
	case KindRecord:
		return len(v.r) > 0
	default:
		return false
	}
}

// GoValue returns a plain Go value suitable for JSON export, matching the
// shapes of expr.py's export_value.
func (v Value) GoValue() interface{} {
	switch v.vKind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindEllipsis:
		return nil
	case KindQuantity:
		return v.q
	case KindRecord:
		out := make(map[string]interface{}, len(v.r))
		for k, val := range v.r {
			out[k] = val.GoValue()
		}
		return out
	default:
		return nil
	}
}

// Export renders v in the wire shape used by the compiled-protocol
// export, mirroring expr.py's export_value discriminated-union shape.
func (v Value) Export() map[string]interface{} {
	switch v.vKind {
	case KindBool:
		return map[string]interface{}{"type": "boolean", "value": v.b}
	case KindInt:
		return map[string]interface{}{"type": "number", "value": v.i}
	case KindFloat:
		return map[string]interface{}{"type": "number", "value": v.f}
	case KindString:
		return map[string]interface{}{"type": "string", "value": v.s}
	case KindEllipsis:
		return map[string]interface{}{"type": "ellipsis"}
	case KindQuantity:
		return map[string]interface{}{
			"type":      "quantity",
			"formatted": v.q.String(),
			"magnitude": v.q.Magnitude,
			"unit":      v.q.Unit,
		}
	case KindRecord:
		fields := make(map[string]interface{}, len(v.r))
		for k, val := range v.r {
			fields[k] = val.Export()
		}
		return map[string]interface{}{"type": "record", "fields": fields}
	default:
		return map[string]interface{}{"type": "unknown"}
	}
}

// String implements fmt.Stringer, rendering v for diagnostics and logs.
func (v Value) String() string {
	switch v.vKind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindEllipsis:
		return "..."
	case KindQuantity:
		return v.q.String()
	case KindRecord:
		return fmt.Sprintf("%v", v.r)
	default:
		return "?"
	}
}
