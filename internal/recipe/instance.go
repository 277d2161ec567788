package recipe

import (
	"fmt"
	"slices"

	"github.com/pelletier/go-toml/v2"
	"github.com/qobs-build/qpack/internal/router"
)

// Instance is a recipe evaluated for one build
type Instance struct {
	Package PackageSection
	// Definitions are the constant defines handed to the build tool next to
	// the options
	Definitions map[string]any
	// Rules are the extra routing rules whose condition holds
	Rules []RuleSection
}

// Instantiate evaluates the templates, conditional definitions and rule
// conditions of r in env.
func (r *Recipe) Instantiate(env Env) (*Instance, error) {
	processed, err := processExpressions(r.raw, env)
	if err != nil {
		return nil, fmt.Errorf("recipe: error processing expressions: %w", err)
	}
	raw := processed.(map[string]any)

	inst := new(Instance)
	if err := unmarshalSection(raw, "package", &inst.Package); err != nil {
		return nil, err
	}
	inst.Definitions, err = conditionalSection(raw, "definitions", env)
	if err != nil {
		return nil, fmt.Errorf("recipe: %w", err)
	}
	inst.Rules, err = parseRules(raw, env)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func parseRules(raw map[string]any, env Env) ([]RuleSection, error) {
	data, ok := raw["rules"]
	if !ok {
		return nil, nil
	}
	var wrapper struct {
		Rules []RuleSection `toml:"rules"`
	}
	if err := toml.Unmarshal([]byte(mustMarshal(map[string]any{"rules": data})), &wrapper); err != nil {
		return nil, fmt.Errorf("recipe: failed to parse [[rules]]: %w", err)
	}

	rules := make([]RuleSection, 0, len(wrapper.Rules))
	for i, rule := range wrapper.Rules {
		if rule.Pattern == "" {
			return nil, fmt.Errorf("recipe: rule %d has no pattern", i+1)
		}
		if !slices.Contains(ruleRoots, rule.Root) {
			return nil, fmt.Errorf("recipe: rule %d: unknown root %q, want build, install or source", i+1, rule.Root)
		}
		if _, err := router.ParseMode(rule.Mode); err != nil {
			return nil, fmt.Errorf("recipe: rule %d: %w", i+1, err)
		}
		if rule.When != "" {
			ok, err := evalBool(rule.When, env)
			if err != nil {
				return nil, fmt.Errorf("recipe: rule %d: %w", i+1, err)
			}
			if !ok {
				continue
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// RunPrebuild runs the package's prebuild expression, which must yield true
func (inst *Instance) RunPrebuild(env Env) error {
	if inst.Package.Prebuild == "" {
		return nil
	}

	ok, err := evalBool(inst.Package.Prebuild, env)
	if err != nil {
		return fmt.Errorf("prebuild script for package %q: %w", inst.Package.Name, err)
	}
	if !ok {
		return fmt.Errorf("prebuild script for package %q returned false\n%s", inst.Package.Name, inst.Package.Prebuild)
	}
	return nil
}
