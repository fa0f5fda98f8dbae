package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/model"
)

// ClassifierFile is the categories, rules and labeled examples the expense
// classifier starts with.
type ClassifierFile struct {
	Rules      map[string]string      `mapstructure:"rules"`
	Categories []string               `mapstructure:"categories"`
	Examples   []model.LabeledExample `mapstructure:"examples"`
}

// LoadClassifierFile reads a YAML or JSON classifier file.
func LoadClassifierFile(path string) (*ClassifierFile, error) {
	path = ExpandPath(path)
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"), strings.HasSuffix(path, ".json"):
	default:
		return nil, fmt.Errorf("%w: classifier config must be YAML or JSON: %s", common.ErrValidation, path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read classifier config: %w", err)
	}

	var cf ClassifierFile
	if err := v.Unmarshal(&cf); err != nil {
		return nil, fmt.Errorf("%w: invalid classifier config: %w", common.ErrValidation, err)
	}
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	return &cf, nil
}

// Validate checks that categories are present and unique.
func (c *ClassifierFile) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: classifier config declares no categories", common.ErrValidation)
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if strings.TrimSpace(cat) == "" {
			return fmt.Errorf("%w: empty category name", common.ErrValidation)
		}
		if seen[cat] {
			return fmt.Errorf("%w: duplicate category %q", common.ErrValidation, cat)
		}
		seen[cat] = true
	}
	return nil
}

// RuleSet returns the rules keyed by lower-cased category.
func (c *ClassifierFile) RuleSet() model.Rules {
	rules := make(model.Rules, len(c.Rules))
	for k, v := range c.Rules {
		rules.Set(k, v)
	}
	return rules
}
