package fiberexpr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// dimension is a 7-vector of SI base-unit exponents (length, mass, time,
// current, temperature, amount, luminous intensity), used to detect
// dimensionality mismatches the way a pint UnitRegistry would.
type dimension [7]int

func (d dimension) add(other dimension) dimension {
	var out dimension
	for i := range d {
		out[i] = d[i] + other[i]
	}
	return out
}

func (d dimension) sub(other dimension) dimension {
	var out dimension
	for i := range d {
		out[i] = d[i] - other[i]
	}
	return out
}

func (d dimension) scale(n int) dimension {
	var out dimension
	for i := range d {
		out[i] = d[i] * n
	}
	return out
}

// unitDef is one entry in the registry: its dimension vector and its
// multiplicative factor relative to the base SI unit of that dimension.
type unitDef struct {
	dim    dimension
	factor float64
}

// unitRegistry is a small hand-rolled stand-in for a dimensional-analysis
// library (Python's pint handles this in host/pr1/units.py). No such
// general unit-conversion library appears anywhere in the reference
// corpus, so this is built directly on the standard library (see
// DESIGN.md, Expression evaluator entry) scoped to the handful of
// units a laboratory protocol actually names: time, volume, mass,
// temperature, and bare counts/percentages.
var unitRegistry = map[string]unitDef{
	"":  {dim: dimension{}, factor: 1},
	"%": {dim: dimension{}, factor: 0.01},

	"s":   {dim: dimension{2: 1}, factor: 1},
	"sec": {dim: dimension{2: 1}, factor: 1},
	"ms":  {dim: dimension{2: 1}, factor: 1e-3},
	"min": {dim: dimension{2: 1}, factor: 60},
	"h":   {dim: dimension{2: 1}, factor: 3600},
	"hr":  {dim: dimension{2: 1}, factor: 3600},

	"g":  {dim: dimension{1: 1}, factor: 1e-3},
	"mg": {dim: dimension{1: 1}, factor: 1e-6},
	"kg": {dim: dimension{1: 1}, factor: 1},
	"ug": {dim: dimension{1: 1}, factor: 1e-9},

	"L":  {dim: dimension{0: 3}, factor: 1e-3},
	"l":  {dim: dimension{0: 3}, factor: 1e-3},
	"mL": {dim: dimension{0: 3}, factor: 1e-6},
	"ml": {dim: dimension{0: 3}, factor: 1e-6},
	"uL": {dim: dimension{0: 3}, factor: 1e-9},
	"ul": {dim: dimension{0: 3}, factor: 1e-9},
	"nL": {dim: dimension{0: 3}, factor: 1e-12},

	"degC": {dim: dimension{4: 1}, factor: 1},
	"K":    {dim: dimension{4: 1}, factor: 1},

	"M":  {dim: dimension{5: 1, 0: -3}, factor: 1},
	"mM": {dim: dimension{5: 1, 0: -3}, factor: 1e-3},
	"uM": {dim: dimension{5: 1, 0: -3}, factor: 1e-6},

	"rpm": {dim: dimension{2: -1}, factor: 1.0 / 60},
	"Hz":  {dim: dimension{2: -1}, factor: 1},
}

// Quantity is a magnitude paired with a unit symbol, with SI-style
// arithmetic.
type Quantity struct {
	Magnitude float64
	Unit      string
}

// NewQuantity constructs a Quantity, validating that Unit is registered.
func NewQuantity(magnitude float64, unit string) (Quantity, error) {
	if _, ok := unitRegistry[unit]; !ok {
		return Quantity{}, fmt.Errorf("unrecognized unit %q", unit)
	}
	return Quantity{Magnitude: magnitude, Unit: unit}, nil
}

// ParseQuantityLiteral parses a bare "<magnitude> <unit>" string, the
// same literal syntax a quantity takes outside of an embedded
// expression (e.g. a segment's `wait: 30 sec` attribute).
func ParseQuantityLiteral(raw string) (Quantity, error) {
	raw = strings.TrimSpace(raw)
	idx := strings.IndexFunc(raw, unicode.IsSpace)
	magText, unit := raw, ""
	if idx >= 0 {
		magText = raw[:idx]
		unit = strings.TrimSpace(raw[idx+1:])
	}
	mag, err := strconv.ParseFloat(magText, 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("invalid magnitude %q", magText)
	}
	return NewQuantity(mag, unit)
}

func (q Quantity) String() string {
	if q.Unit == "" {
		return fmt.Sprintf("%g", q.Magnitude)
	}
	return fmt.Sprintf("%g %s", q.Magnitude, q.Unit)
}

func (q Quantity) dim() dimension {
	return unitRegistry[q.Unit].dim
}

func (q Quantity) base() float64 {
	return q.Magnitude * unitRegistry[q.Unit].factor
}

// dimensionalityError reports an attempt to combine or convert between
// incompatible units.
type dimensionalityError struct {
	op       string
	a, b     string
}

func (e *dimensionalityError) Error() string {
	return fmt.Sprintf("incompatible units for %s: %q and %q", e.op, e.a, e.b)
}

// Add sums two quantities, which must share a dimension; the result is
// expressed in a's unit.
func (q Quantity) Add(other Quantity) (Quantity, error) {
	if q.dim() != other.dim() {
		return Quantity{}, &dimensionalityError{op: "addition", a: q.Unit, b: other.Unit}
	}
	factor := unitRegistry[q.Unit].factor
	return Quantity{Magnitude: q.Magnitude + other.base()/factor, Unit: q.Unit}, nil
}

// Sub subtracts other from q; same dimensionality rule as Add.
func (q Quantity) Sub(other Quantity) (Quantity, error) {
	if q.dim() != other.dim() {
		return Quantity{}, &dimensionalityError{op: "subtraction", a: q.Unit, b: other.Unit}
	}
	factor := unitRegistry[q.Unit].factor
	return Quantity{Magnitude: q.Magnitude - other.base()/factor, Unit: q.Unit}, nil
}

// Mul multiplies q by a dimensionless scalar, or by another Quantity, in
// which case the resulting unit is synthesized as "a*b" and carries the
// combined dimension; no registry entry is required for composite units
// since they're tracked structurally rather than by symbol lookup.
func (q Quantity) Mul(other Quantity) Quantity {
	if other.Unit == "" {
		return Quantity{Magnitude: q.Magnitude * other.Magnitude, Unit: q.Unit}
	}
	if q.Unit == "" {
		return Quantity{Magnitude: q.Magnitude * other.Magnitude, Unit: other.Unit}
	}
	return Quantity{Magnitude: q.base() * other.base(), Unit: q.Unit + "*" + other.Unit}
}

// Div divides q by other.
func (q Quantity) Div(other Quantity) (Quantity, error) {
	if other.Magnitude == 0 {
		return Quantity{}, fmt.Errorf("division by zero quantity")
	}
	if other.Unit == "" {
		return Quantity{Magnitude: q.Magnitude / other.Magnitude, Unit: q.Unit}, nil
	}
	if q.dim() == other.dim() {
		return Quantity{Magnitude: q.base() / other.base(), Unit: ""}, nil
	}
	return Quantity{Magnitude: q.base() / other.base(), Unit: q.Unit + "/" + other.Unit}, nil
}

// Compare orders q against other after converting both to base units,
// returning an error if they are not dimensionally comparable.
func (q Quantity) Compare(other Quantity) (int, error) {
	if q.dim() != other.dim() {
		return 0, &dimensionalityError{op: "comparison", a: q.Unit, b: other.Unit}
	}
	diff := q.base() - other.base()
	switch {
	case math.Abs(diff) < 1e-12:
		return 0, nil
	case diff < 0:
		return -1, nil
	default:
		return 1, nil
	}
}
