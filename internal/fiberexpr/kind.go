// Package fiberexpr implements the embedded expression language: four
// surface forms ({{ }}, ${{ }}, %{{ }}, @{{ }}) sharing one grammar but
// evaluated under different rules (compile-time constant folding, deferred
// runtime evaluation against an adoption stack, or as an assignable
// binding target).
package fiberexpr

// Kind is the expression form, determined by the sigil preceding the
// opening "{{".
type Kind int

const (
	// Field expressions ({{ }}) are evaluated at program instantiation
	// against the adoption stack, same as Dynamic, but denote a plain
	// attribute value rather than a side-effecting action.
	Field Kind = iota
	// Static expressions (${{ }}) are evaluated at compile time against an
	// environment of constants; they are side-effect free and any failure
	// surfaces as a compile diagnostic.
	Static
	// Dynamic expressions (%{{ }}) are evaluated at program instantiation
	// against the adoption stack; failure is a runtime error attached to
	// the owning block's range.
	Dynamic
	// Binding expressions (@{{ }}) produce an assignable location rather
	// than a value, and are only accepted where a target is expected.
	Binding
)

// String names the Kind, matching the sigil it was parsed from.
func (k Kind) String() string {
	switch k {
	case Field:
		return "field"
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	case Binding:
		return "binding"
	default:
		return "unknown"
	}
}
