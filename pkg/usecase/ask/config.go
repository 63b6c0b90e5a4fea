package ask

import (
	"os"
	"slices"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// PlannerConfig selects retrieval tiers and their limits. Tiers always run in
// the order date, text_search, keyword, recent; the list only enables them.
type PlannerConfig struct {
	Tiers        []model.Tier `yaml:"tiers"`
	DateLimit    int          `yaml:"date_limit"`
	RecentLimit  int          `yaml:"recent_limit"`
	MaxKeywords  int          `yaml:"max_keywords"`
	ContextLimit int          `yaml:"context_limit"`
}

var tierOrder = []model.Tier{
	model.TierDate,
	model.TierTextSearch,
	model.TierKeyword,
	model.TierRecent,
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Tiers:        slices.Clone(tierOrder),
		DateLimit:    25,
		RecentLimit:  15,
		MaxKeywords:  6,
		ContextLimit: 15,
	}
}

// Validate checks tier names and limits
func (c PlannerConfig) Validate() error {
	if len(c.Tiers) == 0 {
		return goerr.New("at least one retrieval tier is required")
	}
	seen := make(map[model.Tier]bool, len(c.Tiers))
	for _, t := range c.Tiers {
		if !slices.Contains(tierOrder, t) {
			return goerr.New("unknown retrieval tier", goerr.V("tier", t))
		}
		if seen[t] {
			return goerr.New("duplicated retrieval tier", goerr.V("tier", t))
		}
		seen[t] = true
	}

	limits := map[string]int{
		"date_limit":    c.DateLimit,
		"recent_limit":  c.RecentLimit,
		"max_keywords":  c.MaxKeywords,
		"context_limit": c.ContextLimit,
	}
	for name, v := range limits {
		if v <= 0 {
			return goerr.New("limit must be positive", goerr.V("name", name), goerr.V("value", v))
		}
	}
	return nil
}

func (c PlannerConfig) enabled(t model.Tier) bool {
	return slices.Contains(c.Tiers, t)
}

// ParsePlannerConfig reads YAML on top of the defaults, so omitted keys keep
// their default values
func ParsePlannerConfig(data []byte) (PlannerConfig, error) {
	cfg := DefaultPlannerConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return PlannerConfig{}, goerr.Wrap(err, "failed to parse planner config")
	}
	if err := cfg.Validate(); err != nil {
		return PlannerConfig{}, err
	}
	return cfg, nil
}

func LoadPlannerConfig(path string) (PlannerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PlannerConfig{}, goerr.Wrap(err, "failed to read planner config", goerr.V("path", path))
	}
	cfg, err := ParsePlannerConfig(data)
	if err != nil {
		return PlannerConfig{}, goerr.Wrap(err, "invalid planner config", goerr.V("path", path))
	}
	return cfg, nil
}
