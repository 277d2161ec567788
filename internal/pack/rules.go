package pack

import (
	"fmt"
	"path/filepath"

	"github.com/qobs-build/qpack/internal/classify"
	"github.com/qobs-build/qpack/internal/recipe"
	"github.com/qobs-build/qpack/internal/router"
)

// rules returns the routing rules of a variant: the install tree as the
// tool laid it out, the standard layout over it (searching the build tree
// and then the install tree), then the recipe's own rules in declaration
// order.
func (p *Packer) rules(inst *recipe.Instance, c classify.Classifier, l router.Layout, sourceRoot, buildDir, installDir string) ([]router.Rule, error) {
	var rules []router.Rule
	if inst.Package.StandardRules() {
		assets := ""
		if inst.Package.Assets != "" {
			assets = filepath.Join(sourceRoot, inst.Package.Assets)
		}
		rules = append(rules, router.PrefixRule(installDir, l))
		rules = append(rules, router.StandardRules(c, []string{buildDir, installDir}, assets, l)...)
	}

	roots := map[string]string{
		"":        buildDir,
		"build":   buildDir,
		"install": installDir,
		"source":  sourceRoot,
	}
	for i, rs := range inst.Rules {
		mode, err := router.ParseMode(rs.Mode)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rules = append(rules, router.Rule{
			Pattern:    rs.Pattern,
			SourceRoot: filepath.Join(roots[rs.Root], rs.From),
			DestRoot:   filepath.Join(l.Root, rs.To),
			Mode:       mode,
		})
	}
	return rules, nil
}
