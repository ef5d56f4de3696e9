package lifeline

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/lifeline-agents/lifeline/internal/cast"
)

// listSeparator joins List elements during substitution.
const listSeparator = ", "

// Value is a sealed interface for variable values. Only package types implement it via isValue().
type Value interface {
	// Kind reports the variable kind this value satisfies.
	Kind() Kind
	// String returns the text substituted for the value's placeholder.
	String() string
	isValue()
}

// Text is a string value.
type Text string

// Number is a numeric value. Integers and floats share one representation.
type Number float64

// Bool is a boolean value.
type Bool bool

// List is a list-of-strings value.
type List []string

func (Text) isValue()   {}
func (Number) isValue() {}
func (Bool) isValue()   {}
func (List) isValue()   {}

// Kind implements Value.
func (Text) Kind() Kind { return KindString }

// Kind implements Value.
func (Number) Kind() Kind { return KindNumber }

// Kind implements Value.
func (Bool) Kind() Kind { return KindBoolean }

// Kind implements Value.
func (List) Kind() Kind { return KindArray }

// String implements Value.
func (v Text) String() string { return string(v) }

// String implements Value.
func (v Bool) String() string { return strconv.FormatBool(bool(v)) }

// String implements Value. Elements are joined with ", ".
func (v List) String() string { return strings.Join(v, listSeparator) }

// String implements Value. Formatting follows the shortest round-trip form:
// 3, 2.5, 1e+21, 1e-7, NaN, Infinity, -Infinity.
func (v Number) String() string {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Vars is the variable bag passed to a single render call.
type Vars map[string]Value

// ValueOf converts loosely typed data (decoded YAML, JSON, flag values) into a Value.
// Accepts Value, string, bool, any integer or float kind, []string, and []any of strings.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrUnsupportedValue)
	case Value:
		return cloneValue(x), nil
	case string:
		return Text(x), nil
	case bool:
		return Bool(x), nil
	case []string:
		return List(slices.Clone(x)), nil
	}
	if f, ok := cast.ToFloat64(v); ok {
		return Number(f), nil
	}
	if ss, ok := cast.ToStringSlice(v); ok {
		return List(ss), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// VarsOf converts a loosely typed map into Vars. Fails on the first unsupported value.
func VarsOf(m map[string]any) (Vars, error) {
	out := make(Vars, len(m))
	for k, raw := range m {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func cloneValue(v Value) Value {
	if l, ok := v.(List); ok {
		return List(slices.Clone(l))
	}
	return v
}
