package variant

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind tells how an option's values are interpreted
type Kind int

const (
	Bool Kind = iota
	Enum
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Enum:
		return "enum"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single option value. Exactly one of the fields is meaningful,
// depending on the Kind of the option it belongs to.
type Value struct {
	Kind Kind
	B    bool
	S    string
}

func BoolValue(b bool) Value       { return Value{Kind: Bool, B: b} }
func EnumValue(s string) Value     { return Value{Kind: Enum, S: s} }
func (v Value) IsBool() bool       { return v.Kind == Bool }
func (v Value) Interface() any     { return v.native() }
func (v Value) String() string     { return fmt.Sprint(v.native()) }
func (v Value) Equal(o Value) bool { return v == o }

func (v Value) native() any {
	if v.Kind == Bool {
		return v.B
	}
	return v.S
}

// Option declares a named build option and its default.
type Option struct {
	Name    string
	Kind    Kind
	Default Value
	// Values lists the allowed members of an Enum option
	Values []string
	// Define renames the build-tool key the option maps to. Empty means Name.
	Define string
}

// Key returns the build definition key this option maps to
func (o Option) Key() string {
	if o.Define != "" {
		return o.Define
	}
	return o.Name
}

// Domain returns every value the option can take, in declaration order.
func (o Option) Domain() []Value {
	if o.Kind == Bool {
		return []Value{BoolValue(false), BoolValue(true)}
	}
	vals := make([]Value, len(o.Values))
	for i, s := range o.Values {
		vals[i] = EnumValue(s)
	}
	return vals
}

// Parse converts the textual form of a value (as given on the command line)
// into a Value of this option's kind.
func (o Option) Parse(s string) (Value, error) {
	switch o.Kind {
	case Bool:
		b, ok := parseBool(s)
		if !ok {
			return Value{}, &InvalidValueError{Name: o.Name, Value: s, Allowed: []string{"true", "false"}}
		}
		return BoolValue(b), nil
	case Enum:
		if !slices.Contains(o.Values, s) {
			return Value{}, &InvalidValueError{Name: o.Name, Value: s, Allowed: slices.Clone(o.Values)}
		}
		return EnumValue(s), nil
	default:
		return Value{}, fmt.Errorf("option %q has unknown kind %v", o.Name, o.Kind)
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		return true, true
	case "off", "no":
		return false, true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return b, err == nil
}

// Matrix is the immutable set of options a recipe declares
type Matrix struct {
	opts  []Option
	index map[string]int
}

// NewMatrix validates opts and builds a Matrix from them. Declaration order
// is kept.
func NewMatrix(opts ...Option) (Matrix, error) {
	m := Matrix{
		opts:  make([]Option, 0, len(opts)),
		index: make(map[string]int, len(opts)),
	}
	for _, o := range opts {
		if o.Name == "" {
			return Matrix{}, fmt.Errorf("option with empty name")
		}
		if _, dup := m.index[o.Name]; dup {
			return Matrix{}, fmt.Errorf("option %q declared twice", o.Name)
		}
		switch o.Kind {
		case Bool:
			if o.Default.Kind != Bool {
				return Matrix{}, fmt.Errorf("option %q: default %q is not a boolean", o.Name, o.Default)
			}
		case Enum:
			if len(o.Values) == 0 {
				return Matrix{}, fmt.Errorf("option %q: enum without values", o.Name)
			}
			if o.Default.Kind != Enum || !slices.Contains(o.Values, o.Default.S) {
				return Matrix{}, fmt.Errorf("option %q: default %q is not one of [%s]", o.Name, o.Default, strings.Join(o.Values, ", "))
			}
		default:
			return Matrix{}, fmt.Errorf("option %q has unknown kind %v", o.Name, o.Kind)
		}
		o.Values = slices.Clone(o.Values)
		m.index[o.Name] = len(m.opts)
		m.opts = append(m.opts, o)
	}
	return m, nil
}

// MustMatrix is like NewMatrix but panics on error.
func MustMatrix(opts ...Option) Matrix {
	m, err := NewMatrix(opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Options returns a copy of the declared options
func (m Matrix) Options() []Option {
	out := make([]Option, len(m.opts))
	for i, o := range m.opts {
		o.Values = slices.Clone(o.Values)
		out[i] = o
	}
	return out
}

// Lookup finds an option by name
func (m Matrix) Lookup(name string) (Option, bool) {
	i, ok := m.index[name]
	if !ok {
		return Option{}, false
	}
	o := m.opts[i]
	o.Values = slices.Clone(o.Values)
	return o, true
}

func (m Matrix) Len() int { return len(m.opts) }

// Defaults returns the configuration where every option has its default value.
func (m Matrix) Defaults() Resolved {
	r, _ := Resolve(m, nil) // can't fail without overrides
	return r
}

// CombinationCount returns the number of variants the matrix spans. A
// matrix without options spans a single variant.
func (m Matrix) CombinationCount() int {
	count := 1
	for _, o := range m.opts {
		count *= len(o.Domain())
	}
	return count
}

// Combinations returns the cartesian product of every option's domain.
// Options vary in declaration order, the last one fastest.
func (m Matrix) Combinations() []Resolved {
	layers := [][]Value{{}}
	for _, o := range m.opts {
		domain := o.Domain()
		next := make([][]Value, 0, len(layers)*len(domain))
		for _, prev := range layers {
			for _, v := range domain {
				next = append(next, append(slices.Clone(prev), v))
			}
		}
		layers = next
	}

	result := make([]Resolved, 0, len(layers))
	for _, combo := range layers {
		values := make(map[string]Value, len(combo))
		for i, v := range combo {
			values[m.opts[i].Name] = v
		}
		result = append(result, Resolved{matrix: m, values: values})
	}
	return result
}
