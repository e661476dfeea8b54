// Package config loads tool configuration from .groundwork/config.yaml
// and the environment. Defaults are compiled in; a missing file is not an
// error.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the tool-wide configuration
type Config struct {
	// ArchivePath is the SQLite archive location.
	ArchivePath string

	// OracleEnabled turns on LLM augmentation for classification and
	// quality judgment. The pipeline works fully without it.
	OracleEnabled bool
	// OracleModel overrides the oracle model.
	OracleModel string
	// OracleTimeout bounds each oracle call.
	OracleTimeout time.Duration

	// GateThreshold is the quality gate pass/block cutoff (0-100).
	GateThreshold int

	// ConfidenceFloor is the classification confidence below which a
	// human sync question is raised.
	ConfidenceFloor float64

	// SyncAwaitTimeout bounds the wait for a human response.
	SyncAwaitTimeout time.Duration

	// DiscoveryConfigPath points at the YAML strategy tuning file.
	DiscoveryConfigPath string
}

// Load reads configuration for a project root. Precedence: environment
// (GROUNDWORK_*) over config file over defaults.
func Load(projectRoot string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(projectRoot, ".groundwork"))
	v.SetEnvPrefix("GROUNDWORK")
	v.AutomaticEnv()

	v.SetDefault("archive_path", filepath.Join(projectRoot, ".groundwork", "archive.db"))
	v.SetDefault("oracle.enabled", false)
	v.SetDefault("oracle.model", "")
	v.SetDefault("oracle.timeout", "30s")
	v.SetDefault("gate.threshold", 70)
	v.SetDefault("classifier.confidence_floor", 0.5)
	v.SetDefault("sync.await_timeout", "10m")
	v.SetDefault("discovery.config_path", filepath.Join(projectRoot, ".groundwork", "discovery.yaml"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file: defaults plus environment.
	}

	cfg := &Config{
		ArchivePath:         v.GetString("archive_path"),
		OracleEnabled:       v.GetBool("oracle.enabled"),
		OracleModel:         v.GetString("oracle.model"),
		OracleTimeout:       v.GetDuration("oracle.timeout"),
		GateThreshold:       v.GetInt("gate.threshold"),
		ConfidenceFloor:     v.GetFloat64("classifier.confidence_floor"),
		SyncAwaitTimeout:    v.GetDuration("sync.await_timeout"),
		DiscoveryConfigPath: v.GetString("discovery.config_path"),
	}

	// Paths from the config file are relative to the project root, not the
	// invocation directory.
	if !filepath.IsAbs(cfg.ArchivePath) {
		cfg.ArchivePath = filepath.Join(projectRoot, cfg.ArchivePath)
	}
	if !filepath.IsAbs(cfg.DiscoveryConfigPath) {
		cfg.DiscoveryConfigPath = filepath.Join(projectRoot, cfg.DiscoveryConfigPath)
	}

	if cfg.GateThreshold < 0 || cfg.GateThreshold > 100 {
		return nil, fmt.Errorf("gate.threshold must be between 0 and 100 (got %d)", cfg.GateThreshold)
	}
	if cfg.ConfidenceFloor < 0 || cfg.ConfidenceFloor > 1 {
		return nil, fmt.Errorf("classifier.confidence_floor must be between 0 and 1 (got %.2f)", cfg.ConfidenceFloor)
	}
	return cfg, nil
}
