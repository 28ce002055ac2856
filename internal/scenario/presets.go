package scenario

import (
	"time"

	"threadpool/internal/chaos"
)

// BasicScenario は基本的なシナリオ設定を返す
// カオス注入なし、純粋な負荷テスト
func BasicScenario() Config {
	return Config{
		Name:           "basic",
		Description:    "Basic load test without chaos injection",
		Duration:       10 * time.Second,
		Workers:        4,
		Producers:      8,
		BatchSize:      10,
		TaskDuration:   time.Millisecond,
		EnableChaos:    false,
		EnableRecovery: false,
	}
}

// SaturationScenario はワーカー占有シナリオを返す
// Saturate攻撃のみ、ヘルパーによる復旧あり
func SaturationScenario() Config {
	return Config{
		Name:           "saturation",
		Description:    "Workers occupied by long-running tasks, queue drained by helpers",
		Duration:       15 * time.Second,
		Workers:        4,
		Producers:      8,
		BatchSize:      10,
		TaskDuration:   time.Millisecond,
		EnableChaos:    true,
		ChaosInterval:  2 * time.Second,
		ChaosTargets:   4,
		AttackTypes:    []chaos.AttackType{chaos.AttackSaturate},
		SuspendTime:    3 * time.Second,
		EnableRecovery: true,
		RecoveryDelay:  500 * time.Millisecond,
		MaxRetries:     3,
		MaxHelpers:     2,
	}
}

// FailureScenario はタスク失敗注入シナリオを返す
// エラーと panic を注入し、Future への伝播を確認する
func FailureScenario() Config {
	return Config{
		Name:           "failure",
		Description:    "Task error and panic injection",
		Duration:       10 * time.Second,
		Workers:        4,
		Producers:      8,
		BatchSize:      10,
		TaskDuration:   time.Millisecond,
		EnableChaos:    true,
		ChaosInterval:  2 * time.Second,
		ChaosTargets:   1,
		AttackTypes:    []chaos.AttackType{chaos.AttackDelay},
		FailureRate:    0.1,
		SuspendTime:    time.Second,
		DelayAmount:    5 * time.Millisecond,
		EnableRecovery: false,
	}
}

// RestartScenario はプール再起動シナリオを返す
// 負荷をかけたままStop/Startを繰り返す
func RestartScenario() Config {
	return Config{
		Name:           "restart",
		Description:    "Repeated pool stop and start under load",
		Duration:       15 * time.Second,
		Workers:        4,
		Producers:      8,
		BatchSize:      10,
		TaskDuration:   time.Millisecond,
		EnableChaos:    true,
		ChaosInterval:  time.Second,
		ChaosTargets:   1,
		AttackTypes:    []chaos.AttackType{chaos.AttackRestart},
		EnableRecovery: true,
		RecoveryDelay:  500 * time.Millisecond,
		MaxRetries:     5,
		MaxHelpers:     2,
	}
}

// QuickScenario はクイックテスト用シナリオを返す
// 短時間での動作確認用
func QuickScenario() Config {
	return Config{
		Name:           "quick",
		Description:    "Quick test for verification",
		Duration:       5 * time.Second,
		Workers:        2,
		Producers:      4,
		BatchSize:      5,
		TaskDuration:   time.Millisecond,
		EnableChaos:    true,
		ChaosInterval:  time.Second,
		ChaosTargets:   1,
		AttackTypes:    []chaos.AttackType{chaos.AttackSaturate, chaos.AttackRestart, chaos.AttackDelay},
		FailureRate:    0.05,
		SuspendTime:    500 * time.Millisecond,
		DelayAmount:    2 * time.Millisecond,
		EnableRecovery: true,
		RecoveryDelay:  300 * time.Millisecond,
		MaxRetries:     2,
		MaxHelpers:     1,
	}
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	presets := map[string]func() Config{
		"basic":      BasicScenario,
		"saturation": SaturationScenario,
		"failure":    FailureScenario,
		"restart":    RestartScenario,
		"quick":      QuickScenario,
	}

	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"basic", "saturation", "failure", "restart", "quick"}
}
