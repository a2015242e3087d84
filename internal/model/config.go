package model

import (
	"fmt"
	"time"
)

// TestConfig controls one run. It is fixed when the run starts.
// EnableRestore only takes effect when a backup was captured.
type TestConfig struct {
	EnableBackup      bool          `json:"enableBackup" yaml:"enableBackup"`
	EnableRestore     bool          `json:"enableRestore" yaml:"enableRestore"`
	DelayBetweenTests time.Duration `json:"delayBetweenTests" yaml:"delayBetweenTests"`
	MaxRetries        int           `json:"maxRetries" yaml:"maxRetries"`
	// TolerateTestErrors keeps the suite out of the error state when only
	// individual tests failed.
	TolerateTestErrors bool `json:"tolerateTestErrors,omitempty" yaml:"tolerateTestErrors,omitempty"`
}

// DefaultTestConfig backs up and restores around every run.
func DefaultTestConfig() TestConfig {
	return TestConfig{
		EnableBackup:      true,
		EnableRestore:     true,
		DelayBetweenTests: 500 * time.Millisecond,
		MaxRetries:        2,
	}
}

// Validate rejects configurations that cannot be run.
func (c TestConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("maxRetries must be non-negative, got %d", c.MaxRetries)
	}
	if c.DelayBetweenTests < 0 {
		return fmt.Errorf("delayBetweenTests must be non-negative, got %v", c.DelayBetweenTests)
	}
	return nil
}

// ConfigOverrides is a partial TestConfig as accepted by the HTTP and MCP
// surfaces. Nil fields keep the base value.
type ConfigOverrides struct {
	EnableBackup       *bool  `json:"enableBackup,omitempty"`
	EnableRestore      *bool  `json:"enableRestore,omitempty"`
	DelayBetweenTests  string `json:"delayBetweenTests,omitempty"`
	MaxRetries         *int   `json:"maxRetries,omitempty"`
	TolerateTestErrors *bool  `json:"tolerateTestErrors,omitempty"`
}

// Apply returns base with the overrides applied and validated.
func (o ConfigOverrides) Apply(base TestConfig) (TestConfig, error) {
	cfg := base
	if o.EnableBackup != nil {
		cfg.EnableBackup = *o.EnableBackup
	}
	if o.EnableRestore != nil {
		cfg.EnableRestore = *o.EnableRestore
	}
	if o.DelayBetweenTests != "" {
		d, err := time.ParseDuration(o.DelayBetweenTests)
		if err != nil {
			return base, fmt.Errorf("invalid delayBetweenTests: %w", err)
		}
		cfg.DelayBetweenTests = d
	}
	if o.MaxRetries != nil {
		cfg.MaxRetries = *o.MaxRetries
	}
	if o.TolerateTestErrors != nil {
		cfg.TolerateTestErrors = *o.TolerateTestErrors
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}
