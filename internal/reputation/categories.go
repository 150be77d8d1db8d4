package reputation

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/watchdesk-systems/watchdesk/internal/models"
)

//go:embed categories.yaml
var categoriesYAML []byte

// Classifier maps alerts to abuse-database category codes. The mapping is
// total: exact rule ID first, then description patterns, then the default
// category, so an auto-report is never blocked by classification.
type Classifier struct {
	byRuleID map[int][]int
	patterns []categoryPattern
	fallback []int
}

type categoryPattern struct {
	re         *regexp.Regexp
	categories []int
}

type categoriesFile struct {
	Rules    map[int][]int `yaml:"rules"`
	Patterns []struct {
		Match      string `yaml:"match"`
		Categories []int  `yaml:"categories"`
	} `yaml:"patterns"`
	Default []int `yaml:"default"`
}

// NewClassifier loads the embedded category rule table.
func NewClassifier() (*Classifier, error) {
	var f categoriesFile
	if err := yaml.Unmarshal(categoriesYAML, &f); err != nil {
		return nil, fmt.Errorf("parse category table: %w", err)
	}
	if len(f.Default) == 0 {
		return nil, fmt.Errorf("category table has no default category")
	}

	c := &Classifier{
		byRuleID: f.Rules,
		fallback: f.Default,
	}
	for _, p := range f.Patterns {
		re, err := regexp.Compile(p.Match)
		if err != nil {
			return nil, fmt.Errorf("compile category pattern %q: %w", p.Match, err)
		}
		c.patterns = append(c.patterns, categoryPattern{re: re, categories: p.Categories})
	}
	return c, nil
}

// Classify returns the abuse categories for the alert. Always non-empty.
func (c *Classifier) Classify(alert *models.Alert) []int {
	if cats, ok := c.byRuleID[alert.RuleID]; ok && len(cats) > 0 {
		return cats
	}
	for _, p := range c.patterns {
		if p.re.MatchString(alert.RuleDescription) {
			return p.categories
		}
	}
	return c.fallback
}
