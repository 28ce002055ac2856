// Package chaos はワーカープールに対するカオスエンジニアリング機能を提供する。
//
// Monkey はプールに対して定期的に障害を注入し、タスクの完了保証と
// リカバリ機構をテストするために使用される。
//
// # 障害タイプ
//
// - Saturate: 長時間ブロックするタスクを投入してワーカーを占有する
// - Restart: プールを停止し同じワーカー数で再起動する
// - Delay: Wrap したタスクの実行前に遅延を注入する
//
// saturate と delay は SuspendTime 経過後に自動で解除される。
// Stop は占有中のワーカーをすべて解放する。
//
// # タスク単位の障害
//
// Wrap は FailureRate の確率で ErrInjected を返すか panic するタスクを作る。
//
// # 使用例
//
//	config := chaos.DefaultConfig()
//	config.Interval = 3 * time.Second
//	config.TargetCount = 2
//
//	monkey := chaos.New(pool, config)
//	monkey.Start(ctx)
//	defer monkey.Stop()
//
//	pool.Go(monkey.Wrap(func() error {
//	    return nil
//	}))
package chaos
