package variant

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Literals are the words a build tool uses for boolean values
type Literals struct {
	True, False string
}

var DefaultLiterals = Literals{True: "true", False: "false"}

func (l Literals) Format(b bool) string {
	if b {
		return l.True
	}
	return l.False
}

const (
	TypeBool   = "BOOL"
	TypeString = "STRING"
)

// Define is a single key=value pair handed to the build tool
type Define struct {
	Key   string
	Value string
	Type  string
}

func (d Define) String() string { return d.Key + "=" + d.Value }

// Definition is the full set of defines for one build, sorted by key.
type Definition []Define

// Lookup returns the value of key
func (d Definition) Lookup(key string) (string, bool) {
	i, ok := slices.BinarySearchFunc(d, key, func(def Define, k string) int {
		return strings.Compare(def.Key, k)
	})
	if !ok {
		return "", false
	}
	return d[i].Value, true
}

func (d Definition) Keys() []string {
	keys := make([]string, len(d))
	for i, def := range d {
		keys[i] = def.Key
	}
	return keys
}

// Map returns the definition as a key -> value map
func (d Definition) Map() map[string]string {
	m := make(map[string]string, len(d))
	for _, def := range d {
		m[def.Key] = def.Value
	}
	return m
}

// MakeDefinition maps r onto build-tool defines. Booleans are written with
// lit, enums as their member name. extra holds additional constant defines;
// an option mapping to the same key takes precedence.
func MakeDefinition(r Resolved, lit Literals, extra map[string]any) Definition {
	defs := make(map[string]Define, len(r.values)+len(extra))

	for key, v := range extra {
		defs[key] = defineOf(key, v, lit)
	}
	for _, o := range r.matrix.opts {
		v, ok := r.values[o.Name]
		if !ok {
			continue
		}
		key := o.Key()
		defs[key] = defineOf(key, v.Interface(), lit)
	}

	out := make(Definition, 0, len(defs))
	for _, key := range slices.Sorted(maps.Keys(defs)) {
		out = append(out, defs[key])
	}
	return out
}

func defineOf(key string, v any, lit Literals) Define {
	switch val := v.(type) {
	case bool:
		return Define{Key: key, Value: lit.Format(val), Type: TypeBool}
	case string:
		return Define{Key: key, Value: val, Type: TypeString}
	default:
		return Define{Key: key, Value: fmt.Sprint(val), Type: TypeString}
	}
}
