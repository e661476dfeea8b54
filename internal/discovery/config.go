package discovery

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config tunes discovery strategies. Defaults are compiled in; a YAML
// file can override them per project.
type Config struct {
	// HighTierLimit bounds the high tier to a small fixed count.
	HighTierLimit int `yaml:"high_tier_limit"`

	// MinRelevance drops candidates below this combined score.
	MinRelevance float64 `yaml:"min_relevance"`

	// MaxCandidates caps the total result size.
	MaxCandidates int `yaml:"max_candidates"`

	// ExcludePaths are directory names skipped during indexing.
	ExcludePaths []string `yaml:"exclude_paths"`

	// ExtraPatterns adds path patterns per task type, keyed by type name.
	ExtraPatterns map[string][]string `yaml:"extra_patterns"`
}

// DefaultConfig returns the built-in strategy tuning
func DefaultConfig() *Config {
	return &Config{
		HighTierLimit: 5,
		MinRelevance:  1.0,
		MaxCandidates: 40,
		ExcludePaths: []string{
			".git", ".groundwork", "node_modules", "vendor", "dist",
			"build", ".idea", ".vscode",
		},
	}
}

// LoadConfig reads a YAML strategy file, applying defaults for anything
// unset. A missing file returns defaults, not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read discovery config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse discovery config: %w", err)
	}
	if cfg.HighTierLimit <= 0 {
		cfg.HighTierLimit = DefaultConfig().HighTierLimit
	}
	if cfg.MinRelevance <= 0 {
		cfg.MinRelevance = DefaultConfig().MinRelevance
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultConfig().MaxCandidates
	}
	return cfg, nil
}
