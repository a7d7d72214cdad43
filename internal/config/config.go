package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/gratipay/payday/internal/billing"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Processor modes.
const (
	// ProcessorSandbox selects the in-memory sandbox processor.
	ProcessorSandbox = "sandbox"
)

// Config is the top-level application configuration.
type Config struct {
	Database  Database  `yaml:"database"`
	Payday    Payday    `yaml:"payday"`
	Processor Processor `yaml:"processor"`
	Log       Log       `yaml:"log"`
}

// Database holds datastore settings.
type Database struct {
	DSN string `yaml:"dsn"`
}

// Payday holds settlement-run settings.
type Payday struct {
	// Schedule is a cron expression for scheduled runs.
	Schedule string `yaml:"schedule"`
	// MaxParallelHolds bounds concurrent processor calls.
	MaxParallelHolds int `yaml:"max_parallel_holds"`
	// MinimumCharge, FeeFlat and FeePercent override the default fee policy
	// when set. They are decimal strings to avoid float drift.
	MinimumCharge string `yaml:"minimum_charge"`
	FeeFlat       string `yaml:"fee_flat"`
	FeePercent    string `yaml:"fee_percent"`
}

// Processor holds payment-processor settings.
type Processor struct {
	Mode string `yaml:"mode"`
}

// Log holds logging settings.
type Log struct {
	Level string `yaml:"level"`
	// File enables rotated file logging when set.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Database:  Database{DSN: "file:gratipay.db"},
		Payday:    Payday{Schedule: "@weekly", MaxParallelHolds: 10},
		Processor: Processor{Mode: ProcessorSandbox},
		Log:       Log{Level: "info", MaxSizeMB: 50, MaxBackups: 3},
	}
}

// Load reads the YAML configuration at path, applying defaults for anything
// unset. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, errRead := os.ReadFile(path)
	if errRead != nil {
		if os.IsNotExist(errRead) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return cfg, fmt.Errorf("config: database.dsn is required")
	}
	if cfg.Payday.MaxParallelHolds <= 0 {
		cfg.Payday.MaxParallelHolds = Default().Payday.MaxParallelHolds
	}
	if strings.TrimSpace(cfg.Payday.Schedule) == "" {
		cfg.Payday.Schedule = Default().Payday.Schedule
	}

	if _, errFees := cfg.FeeSchedule(); errFees != nil {
		return cfg, errFees
	}

	return cfg, nil
}

// FeeSchedule resolves the fee policy, applying any configured overrides on
// top of the defaults.
func (c Config) FeeSchedule() (billing.FeeSchedule, error) {
	schedule := billing.Default()

	overrides := []struct {
		raw    string
		name   string
		target *decimal.Decimal
	}{
		{c.Payday.MinimumCharge, "payday.minimum_charge", &schedule.MinimumCharge},
		{c.Payday.FeeFlat, "payday.fee_flat", &schedule.Flat},
		{c.Payday.FeePercent, "payday.fee_percent", &schedule.Percent},
	}
	for _, override := range overrides {
		raw := strings.TrimSpace(override.raw)
		if raw == "" {
			continue
		}
		value, errParse := decimal.NewFromString(raw)
		if errParse != nil {
			return schedule, fmt.Errorf("config: %s: %w", override.name, errParse)
		}
		*override.target = value
	}

	return schedule, nil
}
