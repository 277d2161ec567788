package variant

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrConfiguration is matched by every error Resolve returns
var ErrConfiguration = errors.New("invalid configuration")

// UnknownOptionError is returned when an override names an option the matrix
// does not declare.
type UnknownOptionError struct {
	Name string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("unknown option %q", e.Name)
}

func (e *UnknownOptionError) Is(target error) bool { return target == ErrConfiguration }

// InvalidValueError is returned when an override value is outside of the
// option's allowed set.
type InvalidValueError struct {
	Name    string
	Value   string
	Allowed []string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %q for option %q, must be one of: %s", e.Value, e.Name, strings.Join(e.Allowed, ", "))
}

func (e *InvalidValueError) Is(target error) bool { return target == ErrConfiguration }

// Resolved maps every option of a matrix to the value chosen for one build.
// It is never modified after Resolve returns it.
type Resolved struct {
	matrix Matrix
	values map[string]Value
}

// Resolve fills every option not present in overrides with its default.
// Override values are given in their textual form and parsed according to
// the option's kind.
func Resolve(m Matrix, overrides map[string]string) (Resolved, error) {
	// check overrides in a stable order so the reported error doesn't depend
	// on map iteration
	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		if _, ok := m.index[name]; !ok {
			return Resolved{}, &UnknownOptionError{Name: name}
		}
	}

	values := make(map[string]Value, len(m.opts))
	for _, o := range m.opts {
		raw, ok := overrides[o.Name]
		if !ok {
			values[o.Name] = o.Default
			continue
		}
		v, err := o.Parse(raw)
		if err != nil {
			return Resolved{}, err
		}
		values[o.Name] = v
	}
	return Resolved{matrix: m, values: values}, nil
}

// Matrix returns the matrix r was resolved against
func (r Resolved) Matrix() Matrix { return r.matrix }

// Names returns the option names in declaration order
func (r Resolved) Names() []string {
	names := make([]string, len(r.matrix.opts))
	for i, o := range r.matrix.opts {
		names[i] = o.Name
	}
	return names
}

func (r Resolved) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Bool reports the value of a boolean option. Unknown or non-boolean options
// report false.
func (r Resolved) Bool(name string) bool {
	v, ok := r.values[name]
	return ok && v.Kind == Bool && v.B
}

// Map returns the values as plain Go values, for expression environments.
func (r Resolved) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for k, v := range r.values {
		m[k] = v.Interface()
	}
	return m
}

// Strings returns the values in their textual form.
func (r Resolved) Strings() map[string]string {
	m := make(map[string]string, len(r.values))
	for k, v := range r.values {
		m[k] = v.String()
	}
	return m
}

// String renders r canonically as name=value pairs sorted by name.
func (r Resolved) String() string {
	names := slices.Sorted(maps.Keys(r.values))
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + r.values[name].String()
	}
	return strings.Join(parts, ",")
}

// Equal reports whether both configurations hold the same values.
func (r Resolved) Equal(o Resolved) bool {
	return maps.Equal(r.values, o.values)
}
