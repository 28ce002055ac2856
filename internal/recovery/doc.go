// Package recovery はワーカープールの停止と停滞からの自動復旧機能を提供する。
//
// RecoveryManagerはプールを監視し、
// タスクが滞っている場合に自動的に復旧を試みる。
//
// # 機能
//
// - ヘルスチェック: 定期的にプールの状態と実行済みタスク数を監視
// - 自動再起動: タスクが溜まったまま停止しているプールを再起動
// - ヘルパー: 全ワーカーが長時間タスクに占有されている間、
//   TryProcessTask でキューを消化するゴルーチンを貸し出す
//
// # 使用例
//
//	config := recovery.DefaultConfig()
//	config.HealthCheckInterval = 1 * time.Second
//	config.MaxRetries = 3
//
//	manager := recovery.New(pool, config)
//	manager.Start(ctx)
//	defer manager.Stop()
package recovery
