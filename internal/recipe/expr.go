package recipe

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
)

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env Env) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, m := range matches {
		builder.WriteString(s[lastIndex:m[0]])

		expression := strings.TrimSpace(s[m[2]:m[3]])
		result, err := eval(expression, env)
		if err != nil {
			return "", err
		}

		fmt.Fprintf(&builder, "%v", result)
		lastIndex = m[1]
	}

	builder.WriteString(s[lastIndex:])
	return builder.String(), nil
}

func eval(expression string, env Env) (result any, err error) {
	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expression, err)
	}

	// helpers such as Patch panic on I/O errors
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("failed to run expression %q: %v", expression, p)
		}
	}()
	result, err = expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("failed to run expression %q: %w", expression, err)
	}
	return result, nil
}

// evalBool runs a condition. Anything but true is false.
func evalBool(expression string, env Env) (bool, error) {
	result, err := eval(expression, env)
	if err != nil {
		return false, err
	}
	matched, ok := result.(bool)
	return ok && matched, nil
}

// processExpressions returns a copy of data with the expressions in every
// string evaluated.
func processExpressions(data any, env Env) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			out[key] = processedVal
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			out[i] = processedItem
		}
		return out, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

// conditionalSection flattens a section whose table-valued keys are
// expr-lang conditions. Base keys come first, then every condition that
// holds is merged over them in sorted order.
func conditionalSection(raw map[string]any, name string, env Env) (map[string]any, error) {
	sectionData, ok := raw[name]
	if !ok {
		return nil, nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	out := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		subMap, ok := val.(map[string]any)
		if !ok {
			out[key] = val
			continue
		}
		if _, err := expr.Compile(key, expr.Env(env)); err != nil {
			return nil, fmt.Errorf("[%s.%q] is neither a value nor a valid condition: %w", name, key, err)
		}
		conditionalFields[key] = subMap
	}

	for _, expression := range slices.Sorted(maps.Keys(conditionalFields)) {
		matched, err := evalBool(expression, env)
		if err != nil {
			return nil, fmt.Errorf("[%s.%q]: %w", name, expression, err)
		}
		if !matched {
			continue
		}
		for key, val := range conditionalFields[expression] {
			if _, nested := val.(map[string]any); nested {
				return nil, fmt.Errorf("[%s.%q]: nested table %q", name, expression, key)
			}
			out[key] = val
		}
	}

	return out, nil
}
