package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"threadpool/internal/chaos"
	"threadpool/internal/logger"
	"threadpool/internal/scenario"
)

func TestLoadFileYAML(t *testing.T) {
	content := `
log_level: debug
scenario:
  name: test-scenario
  description: Test scenario
  duration: 10s
  workers: 5
  client:
    producers: 10
    batch_size: 20
    task_duration: 2ms
  chaos:
    enabled: true
    interval: 2s
    targets: 1
    failure_rate: 0.1
    attack_types:
      - saturate
      - restart
  recovery:
    enabled: true
    delay: 1s
    max_retries: 3
    max_helpers: 2
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	cfg, err := LoadFile(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Scenario.Name != "test-scenario" {
		t.Errorf("expected name 'test-scenario', got '%s'", cfg.Scenario.Name)
	}
	if cfg.Scenario.Workers != 5 {
		t.Errorf("expected workers 5, got %d", cfg.Scenario.Workers)
	}
	if cfg.Scenario.Client.BatchSize != 20 {
		t.Errorf("expected batch_size 20, got %d", cfg.Scenario.Client.BatchSize)
	}
	if !cfg.Scenario.Chaos.Enabled {
		t.Error("expected chaos to be enabled")
	}
	if cfg.Scenario.Recovery.MaxHelpers != 2 {
		t.Errorf("expected max_helpers 2, got %d", cfg.Scenario.Recovery.MaxHelpers)
	}

	level, err := cfg.Level()
	if err != nil {
		t.Fatalf("unexpected log level error: %v", err)
	}
	if level != logger.LevelDebug {
		t.Errorf("expected debug level, got %v", level)
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "scenario": {
    "name": "json-test",
    "duration": "5s",
    "workers": 3,
    "client": {
      "producers": 5,
      "task_duration": "1ms"
    },
    "chaos": {
      "enabled": false
    }
  }
}`
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	cfg, err := LoadFile(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Scenario.Name != "json-test" {
		t.Errorf("expected name 'json-test', got '%s'", cfg.Scenario.Name)
	}
	if cfg.Scenario.Client.Producers != 5 {
		t.Errorf("expected producers 5, got %d", cfg.Scenario.Client.Producers)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(tmpFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	_, err := LoadFile(tmpFile)
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestToScenarioConfig(t *testing.T) {
	cfg := &FileConfig{
		Scenario: ScenarioConfig{
			Name:        "test",
			Description: "Test",
			Duration:    "10s",
			Workers:     6,
			Client: ClientConfig{
				Producers:    10,
				BatchSize:    4,
				TaskDuration: "3ms",
			},
			Chaos: ChaosConfig{
				Enabled:     true,
				Interval:    "2s",
				Targets:     2,
				AttackTypes: []string{"saturate", "delay"},
				FailureRate: 0.2,
				SuspendTime: "500ms",
				DelayAmount: "7ms",
			},
			Recovery: RecoveryConfig{
				Enabled:    true,
				Delay:      "1s",
				MaxRetries: 5,
				MaxHelpers: 3,
			},
		},
	}

	scenarioCfg, err := cfg.ToScenarioConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}

	if scenarioCfg.Name != "test" {
		t.Errorf("expected name 'test', got '%s'", scenarioCfg.Name)
	}
	if scenarioCfg.Workers != 6 {
		t.Errorf("expected workers 6, got %d", scenarioCfg.Workers)
	}
	if scenarioCfg.Producers != 10 {
		t.Errorf("expected producers 10, got %d", scenarioCfg.Producers)
	}
	if scenarioCfg.TaskDuration != 3*time.Millisecond {
		t.Errorf("expected task duration 3ms, got %v", scenarioCfg.TaskDuration)
	}
	if !scenarioCfg.EnableChaos {
		t.Error("expected chaos to be enabled")
	}
	if len(scenarioCfg.AttackTypes) != 2 {
		t.Errorf("expected 2 attack types, got %d", len(scenarioCfg.AttackTypes))
	}
	if scenarioCfg.FailureRate != 0.2 {
		t.Errorf("expected failure rate 0.2, got %f", scenarioCfg.FailureRate)
	}
	if scenarioCfg.SuspendTime != 500*time.Millisecond {
		t.Errorf("expected suspend time 500ms, got %v", scenarioCfg.SuspendTime)
	}
	if scenarioCfg.DelayAmount != 7*time.Millisecond {
		t.Errorf("expected delay amount 7ms, got %v", scenarioCfg.DelayAmount)
	}
	if scenarioCfg.MaxHelpers != 3 {
		t.Errorf("expected max helpers 3, got %d", scenarioCfg.MaxHelpers)
	}
	if err := scenarioCfg.Validate(); err != nil {
		t.Errorf("expected converted config to be valid: %v", err)
	}
}

func TestToScenarioConfigDefaults(t *testing.T) {
	cfg := &FileConfig{}

	scenarioCfg, err := cfg.ToScenarioConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}

	defaults := scenario.DefaultConfig()
	if scenarioCfg.Workers != defaults.Workers {
		t.Errorf("expected default workers %d, got %d", defaults.Workers, scenarioCfg.Workers)
	}
	if scenarioCfg.Duration != defaults.Duration {
		t.Errorf("expected default duration %v, got %v", defaults.Duration, scenarioCfg.Duration)
	}
	// chaos/recovery は明示的に有効化しない限り無効
	if scenarioCfg.EnableChaos || scenarioCfg.EnableRecovery {
		t.Error("expected chaos and recovery to be disabled by default")
	}
}

func TestToScenarioConfigInvalidDuration(t *testing.T) {
	tests := []struct {
		name string
		sc   ScenarioConfig
	}{
		{"duration", ScenarioConfig{Duration: "invalid"}},
		{"task duration", ScenarioConfig{Client: ClientConfig{TaskDuration: "x"}}},
		{"chaos interval", ScenarioConfig{Chaos: ChaosConfig{Interval: "1parsec"}}},
		{"suspend time", ScenarioConfig{Chaos: ChaosConfig{SuspendTime: "soon"}}},
		{"recovery delay", ScenarioConfig{Recovery: RecoveryConfig{Delay: "later"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &FileConfig{Scenario: tt.sc}
			if _, err := cfg.ToScenarioConfig(); err == nil {
				t.Errorf("expected error for invalid %s", tt.name)
			}
		})
	}
}

func TestToScenarioConfigInvalidAttackType(t *testing.T) {
	cfg := &FileConfig{
		Scenario: ScenarioConfig{
			Chaos: ChaosConfig{
				Enabled:     true,
				AttackTypes: []string{"unknown"},
			},
		},
	}

	_, err := cfg.ToScenarioConfig()
	if err == nil {
		t.Error("expected error for invalid attack type")
	}
}

func TestParseAttackTypes(t *testing.T) {
	tests := []struct {
		input    []string
		expected []chaos.AttackType
		hasError bool
	}{
		{[]string{"saturate"}, []chaos.AttackType{chaos.AttackSaturate}, false},
		{[]string{"restart"}, []chaos.AttackType{chaos.AttackRestart}, false},
		{[]string{"delay"}, []chaos.AttackType{chaos.AttackDelay}, false},
		{[]string{"SATURATE", "Restart"}, []chaos.AttackType{chaos.AttackSaturate, chaos.AttackRestart}, false},
		{[]string{"kill"}, nil, true},
	}

	for _, tt := range tests {
		attacks, err := parseAttackTypes(tt.input)
		if tt.hasError {
			if err == nil {
				t.Errorf("expected error for input %v", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("unexpected error for input %v: %v", tt.input, err)
			continue
		}
		if len(attacks) != len(tt.expected) {
			t.Errorf("expected %d attacks, got %d", len(tt.expected), len(attacks))
			continue
		}
		for i := range attacks {
			if attacks[i] != tt.expected[i] {
				t.Errorf("attack %d: expected %v, got %v", i, tt.expected[i], attacks[i])
			}
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		config   FileConfig
		hasError bool
	}{
		{
			name:     "valid config",
			config:   FileConfig{},
			hasError: false,
		},
		{
			name:     "invalid log level",
			config:   FileConfig{LogLevel: "verbose"},
			hasError: true,
		},
		{
			name: "negative workers",
			config: FileConfig{
				Scenario: ScenarioConfig{Workers: -1},
			},
			hasError: true,
		},
		{
			name: "negative producers",
			config: FileConfig{
				Scenario: ScenarioConfig{Client: ClientConfig{Producers: -1}},
			},
			hasError: true,
		},
		{
			name: "negative batch size",
			config: FileConfig{
				Scenario: ScenarioConfig{Client: ClientConfig{BatchSize: -1}},
			},
			hasError: true,
		},
		{
			name: "invalid failure rate (too high)",
			config: FileConfig{
				Scenario: ScenarioConfig{Chaos: ChaosConfig{FailureRate: 1.5}},
			},
			hasError: true,
		},
		{
			name: "invalid failure rate (negative)",
			config: FileConfig{
				Scenario: ScenarioConfig{Chaos: ChaosConfig{FailureRate: -0.1}},
			},
			hasError: true,
		},
		{
			name: "negative chaos targets",
			config: FileConfig{
				Scenario: ScenarioConfig{Chaos: ChaosConfig{Targets: -1}},
			},
			hasError: true,
		},
		{
			name: "negative max retries",
			config: FileConfig{
				Scenario: ScenarioConfig{Recovery: RecoveryConfig{MaxRetries: -1}},
			},
			hasError: true,
		},
		{
			name: "negative max helpers",
			config: FileConfig{
				Scenario: ScenarioConfig{Recovery: RecoveryConfig{MaxHelpers: -1}},
			},
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.hasError && err == nil {
				t.Error("expected error")
			}
			if !tt.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
