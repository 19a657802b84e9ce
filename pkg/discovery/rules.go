// Package discovery probes the source store for optional data domains before
// materialization. Whether a tenant has absence data at all is a property of
// their workforce system configuration, not of this engine, so gated tables
// are decided per run rather than per deployment.
package discovery

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/kitchensight/analytics-engine/pkg/models"
)

// Rule maps a label pattern to an absence category and its cost bearer.
// Rules are applied in order and the first match wins, so narrow patterns
// must precede broad ones: "egenmelding" would also match the generic
// absence pattern, and reordering silently changes every downstream cost
// split.
type Rule struct {
	Pattern    string                 `yaml:"pattern"`
	Category   models.AbsenceCategory `yaml:"category"`
	CostBearer models.CostBearer      `yaml:"cost_bearer"`
}

// DefaultRules returns the built-in classification for Norwegian workforce
// shift-type labels.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: `(?i)egenmelding|egen\s*meld`, Category: models.AbsenceEgenmelding, CostBearer: models.CostBearerEmployer},
		{Pattern: `(?i)sykemeld|sykefrav|syke\s*frav`, Category: models.AbsenceSykemelding, CostBearer: models.CostBearerNAV},
		{Pattern: `(?i)barn|sykt\s*barn|barns?\s*syk`, Category: models.AbsenceChildSick, CostBearer: models.CostBearerEmployer},
		{Pattern: `(?i)ferie|permisjon|fri`, Category: models.AbsenceVacation, CostBearer: models.CostBearerNone},
		{Pattern: `(?i)syk(?:dom)?\b|fraværs?|absence|leave|permitt`, Category: models.AbsenceOther, CostBearer: models.CostBearerUnpaid},
	}
}

// LoadRules reads an ordered rule list from a YAML file. An empty path
// returns the built-in rules.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read absence rules %s: %w", path, err)
	}

	var rules []Rule
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse absence rules %s: %w", path, err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("absence rules file %s contains no rules", path)
	}
	return rules, nil
}

type compiledRule struct {
	re       *regexp.Regexp
	category models.AbsenceCategory
	cost     models.CostBearer
}

// RuleSet is a compiled, ordered rule list.
type RuleSet struct {
	rules []compiledRule
}

// NewRuleSet compiles the rules, preserving order.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid absence pattern %q: %w", r.Pattern, err)
		}
		compiled = append(compiled, compiledRule{re: re, category: r.Category, cost: r.CostBearer})
	}
	return &RuleSet{rules: compiled}, nil
}

// Classify maps a shift-type label to its absence category using the first
// matching rule. Labels no rule matches come back as unmapped with no cost
// bearer.
func (rs *RuleSet) Classify(label string) (models.AbsenceCategory, models.CostBearer) {
	for _, r := range rs.rules {
		if r.re.MatchString(label) {
			return r.category, r.cost
		}
	}
	return models.AbsenceUnmapped, models.CostBearerNone
}
