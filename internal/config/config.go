// Package config loads scoring run settings from YAML with defaults.
//
// Precedence, lowest first: Default, the YAML file, then environment
// variables and CLI flags (applied by cmd/score).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/gbdt"
	"wallet-risk-lab/internal/labeling"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Storage backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendDB     = "db"
)

// Config is the full run configuration.
type Config struct {
	Output   OutputConfig   `yaml:"output"`
	Labeling LabelingConfig `yaml:"labeling"`
	Training TrainingConfig `yaml:"training"`
	Model    ModelConfig    `yaml:"model"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// OutputConfig controls artifacts.
type OutputConfig struct {
	Dir  string `yaml:"dir"`
	TopN int    `yaml:"top_n"`
}

// LabelingConfig selects the weak label policy.
type LabelingConfig struct {
	Policy      string  `yaml:"policy"`
	MinTxCount  int     `yaml:"min_tx_count"`
	MinTotalUSD float64 `yaml:"min_total_usd"`
}

// TrainingConfig controls cross validation and boosting.
type TrainingConfig struct {
	Folds       int         `yaml:"folds"`
	Seed        int64       `yaml:"seed"`
	Parallelism int         `yaml:"parallelism"`
	GBDT        gbdt.Params `yaml:"gbdt"`
}

// ModelConfig selects the deployed model.
type ModelConfig struct {
	Selection string `yaml:"selection"`
}

// StorageConfig selects optional persistence.
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	Migrate       bool   `yaml:"migrate"`
	MaxConns      int32  `yaml:"max_conns"`
}

// MetricsConfig controls the Pushgateway push. Empty URL disables it.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:  "output",
			TopN: 1000,
		},
		Labeling: LabelingConfig{
			Policy:      labeling.EngagementRuleName,
			MinTxCount:  labeling.DefaultMinTxCount,
			MinTotalUSD: labeling.DefaultMinTotalUSD,
		},
		Training: TrainingConfig{
			Folds:       5,
			Seed:        42,
			Parallelism: 1,
			GBDT:        gbdt.DefaultParams(),
		},
		Model: ModelConfig{
			Selection: domain.SelectionRefit,
		},
		Storage: StorageConfig{
			Backend: BackendNone,
		},
		Metrics: MetricsConfig{
			Job: "wallet_score",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Training.Folds < 2:
		return fmt.Errorf("training.folds %d < 2: %w", c.Training.Folds, ErrInvalidConfig)
	case c.Output.TopN < 1:
		return fmt.Errorf("output.top_n %d < 1: %w", c.Output.TopN, ErrInvalidConfig)
	case c.Output.Dir == "":
		return fmt.Errorf("output.dir is empty: %w", ErrInvalidConfig)
	}

	switch c.Model.Selection {
	case domain.SelectionRefit, domain.SelectionEnsemble, domain.SelectionLastFold:
	default:
		return fmt.Errorf("model.selection %q: %w", c.Model.Selection, ErrInvalidConfig)
	}

	if _, err := labeling.New(c.Labeling.Policy, c.LabelParams()); err != nil {
		return fmt.Errorf("labeling.policy: %v: %w", err, ErrInvalidConfig)
	}

	switch c.Storage.Backend {
	case BackendNone, BackendMemory:
	case BackendDB:
		if c.Storage.PostgresDSN == "" || c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("storage.backend db requires postgres_dsn and clickhouse_dsn: %w", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("storage.backend %q: %w", c.Storage.Backend, ErrInvalidConfig)
	}

	if err := c.Training.GBDT.Validate(); err != nil {
		return fmt.Errorf("training.gbdt: %v: %w", err, ErrInvalidConfig)
	}
	return nil
}

// LabelParams returns the label policy thresholds.
func (c *Config) LabelParams() labeling.Params {
	return labeling.Params{
		MinTxCount:  c.Labeling.MinTxCount,
		MinTotalUSD: c.Labeling.MinTotalUSD,
	}
}

// TrainParams returns boosting parameters with the run seed applied.
func (c *Config) TrainParams() gbdt.Params {
	p := c.Training.GBDT
	p.Seed = c.Training.Seed
	return p
}
