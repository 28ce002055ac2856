package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"threadpool/internal/chaos"
	"threadpool/internal/logger"
	"threadpool/internal/scenario"

	"gopkg.in/yaml.v3"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	LogLevel string         `yaml:"log_level" json:"log_level"`
	Scenario ScenarioConfig `yaml:"scenario" json:"scenario"`
}

// ScenarioConfig はシナリオ設定
type ScenarioConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Duration    string `yaml:"duration" json:"duration"`
	Workers     int    `yaml:"workers" json:"workers"`

	Client   ClientConfig   `yaml:"client" json:"client"`
	Chaos    ChaosConfig    `yaml:"chaos" json:"chaos"`
	Recovery RecoveryConfig `yaml:"recovery" json:"recovery"`
}

// ClientConfig はクライアント設定
type ClientConfig struct {
	Producers    int    `yaml:"producers" json:"producers"`
	BatchSize    int    `yaml:"batch_size" json:"batch_size"`
	TaskDuration string `yaml:"task_duration" json:"task_duration"`
}

// ChaosConfig はカオス設定
type ChaosConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Interval    string   `yaml:"interval" json:"interval"`
	Targets     int      `yaml:"targets" json:"targets"`
	AttackTypes []string `yaml:"attack_types" json:"attack_types"`
	FailureRate float64  `yaml:"failure_rate" json:"failure_rate"`
	SuspendTime string   `yaml:"suspend_time" json:"suspend_time"`
	DelayAmount string   `yaml:"delay_amount" json:"delay_amount"`
}

// RecoveryConfig は復旧設定
type RecoveryConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Delay      string `yaml:"delay" json:"delay"`
	MaxRetries int    `yaml:"max_retries" json:"max_retries"`
	MaxHelpers int    `yaml:"max_helpers" json:"max_helpers"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// ToScenarioConfig はFileConfigをscenario.Configに変換する
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	sc := f.Scenario

	// デフォルト値の設定
	config := scenario.DefaultConfig()

	if sc.Name != "" {
		config.Name = sc.Name
	}
	if sc.Description != "" {
		config.Description = sc.Description
	}
	if err := parseDuration("duration", sc.Duration, &config.Duration); err != nil {
		return config, err
	}
	if sc.Workers > 0 {
		config.Workers = sc.Workers
	}

	// Client設定
	if sc.Client.Producers > 0 {
		config.Producers = sc.Client.Producers
	}
	if sc.Client.BatchSize > 0 {
		config.BatchSize = sc.Client.BatchSize
	}
	if err := parseDuration("client task duration", sc.Client.TaskDuration, &config.TaskDuration); err != nil {
		return config, err
	}

	// Chaos設定
	config.EnableChaos = sc.Chaos.Enabled
	if err := parseDuration("chaos interval", sc.Chaos.Interval, &config.ChaosInterval); err != nil {
		return config, err
	}
	if sc.Chaos.Targets > 0 {
		config.ChaosTargets = sc.Chaos.Targets
	}
	if len(sc.Chaos.AttackTypes) > 0 {
		attacks, err := parseAttackTypes(sc.Chaos.AttackTypes)
		if err != nil {
			return config, err
		}
		config.AttackTypes = attacks
	}
	config.FailureRate = sc.Chaos.FailureRate
	if err := parseDuration("chaos suspend time", sc.Chaos.SuspendTime, &config.SuspendTime); err != nil {
		return config, err
	}
	if err := parseDuration("chaos delay amount", sc.Chaos.DelayAmount, &config.DelayAmount); err != nil {
		return config, err
	}

	// Recovery設定
	config.EnableRecovery = sc.Recovery.Enabled
	if err := parseDuration("recovery delay", sc.Recovery.Delay, &config.RecoveryDelay); err != nil {
		return config, err
	}
	if sc.Recovery.MaxRetries > 0 {
		config.MaxRetries = sc.Recovery.MaxRetries
	}
	if sc.Recovery.MaxHelpers > 0 {
		config.MaxHelpers = sc.Recovery.MaxHelpers
	}

	return config, nil
}

// Level はログレベルを返す（未指定なら Info）
func (f *FileConfig) Level() (logger.Level, error) {
	return logger.ParseLevel(f.LogLevel)
}

// parseDuration は空でなければ s をパースして dst に設定する
func parseDuration(field, s string, dst *time.Duration) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	*dst = d
	return nil
}

// parseAttackTypes は文字列の攻撃タイプをパースする
func parseAttackTypes(types []string) ([]chaos.AttackType, error) {
	var attacks []chaos.AttackType

	for _, t := range types {
		switch strings.ToLower(t) {
		case "saturate":
			attacks = append(attacks, chaos.AttackSaturate)
		case "restart":
			attacks = append(attacks, chaos.AttackRestart)
		case "delay":
			attacks = append(attacks, chaos.AttackDelay)
		default:
			return nil, fmt.Errorf("unknown attack type: %s", t)
		}
	}

	return attacks, nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	sc := f.Scenario

	if _, err := f.Level(); err != nil {
		return err
	}

	if sc.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}

	if sc.Client.Producers < 0 {
		return fmt.Errorf("client.producers must be non-negative")
	}

	if sc.Client.BatchSize < 0 {
		return fmt.Errorf("client.batch_size must be non-negative")
	}

	if sc.Chaos.Targets < 0 {
		return fmt.Errorf("chaos.targets must be non-negative")
	}

	if sc.Chaos.FailureRate < 0 || sc.Chaos.FailureRate > 1 {
		return fmt.Errorf("chaos.failure_rate must be between 0 and 1")
	}

	if sc.Recovery.MaxRetries < 0 {
		return fmt.Errorf("recovery.max_retries must be non-negative")
	}

	if sc.Recovery.MaxHelpers < 0 {
		return fmt.Errorf("recovery.max_helpers must be non-negative")
	}

	return nil
}
