// Package main is the entry point for threadpool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"threadpool/internal/api"
	"threadpool/internal/config"
	"threadpool/internal/logger"
	"threadpool/internal/scenario"
	"threadpool/internal/worker"
)

var (
	version = "dev"
)

var log = logger.For("main")

// overrides はコマンドラインで明示的に指定された値
type overrides struct {
	duration       time.Duration
	workers        int
	producers      int
	enableChaos    *bool
	enableRecovery *bool
}

func main() {
	// フラグ定義
	var (
		configFile     = flag.String("config", "", "設定ファイルパス (YAML/JSON)")
		presetName     = flag.String("preset", "", "プリセットシナリオ名 (basic, saturation, failure, restart, quick)")
		duration       = flag.Duration("duration", 0, "シナリオ実行時間 (例: 10s, 1m)")
		workers        = flag.Int("workers", 0, "プールのワーカー数")
		producers      = flag.Int("producers", 0, "タスクを投入するプロデューサー数")
		enableChaos    = flag.Bool("chaos", true, "カオス注入を有効化")
		enableRecovery = flag.Bool("recovery", true, "自動復旧を有効化")
		listPresets    = flag.Bool("list-presets", false, "利用可能なプリセットを表示")
		showVersion    = flag.Bool("version", false, "バージョンを表示")
		serverMode     = flag.Bool("server", false, "APIサーバーモードで起動")
		serverAddr     = flag.String("addr", ":8080", "サーバーアドレス (例: :8080, 0.0.0.0:3000)")
		logLevel       = flag.String("log-level", "", "ログレベル (debug, info, warn, error)")
		demo           = flag.Bool("demo", false, "5ワーカーで hello, world タスクを1つ実行する")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `threadpool - Restartable Worker Pool with Chaos Scenarios

Usage:
  threadpool [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # 5ワーカーで hello, world を実行（デフォルト）
  threadpool

  # プリセットシナリオを実行
  threadpool --preset quick

  # 設定ファイルから実行
  threadpool --config scenario.yaml

  # フラグでカスタマイズ
  threadpool --preset basic --duration 30s --workers 8

  # プリセット一覧を表示
  threadpool --list-presets

  # APIサーバーモードで起動（/metrics で Prometheus 形式を公開）
  threadpool --server --addr :3000
`)
	}

	flag.Parse()

	// バージョン表示
	if *showVersion {
		fmt.Printf("threadpool version %s\n", version)
		return
	}

	// プリセット一覧表示
	if *listPresets {
		printPresets()
		return
	}

	if err := applyLogLevel(*logLevel); err != nil {
		log.Error("設定エラー: %v", err)
		os.Exit(1)
	}

	// APIサーバーモード
	if *serverMode {
		if err := runServer(*serverAddr); err != nil {
			log.Error("サーバーエラー: %v", err)
			os.Exit(1)
		}
		return
	}

	// シナリオ指定がなければデモを実行
	if *demo || (*configFile == "" && *presetName == "") {
		if err := runDemo(5); err != nil {
			log.Error("デモ実行エラー: %v", err)
			os.Exit(1)
		}
		return
	}

	// 明示的に指定されたフラグのみオーバーライド
	ov := overrides{
		duration:  *duration,
		workers:   *workers,
		producers: *producers,
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "chaos":
			ov.enableChaos = enableChaos
		case "recovery":
			ov.enableRecovery = enableRecovery
		}
	})

	// シナリオ設定の決定
	scenarioConfig, err := buildScenarioConfig(*configFile, *presetName, *logLevel == "", ov)
	if err != nil {
		log.Error("設定エラー: %v", err)
		os.Exit(1)
	}

	// シナリオ実行
	if err := runScenario(scenarioConfig); err != nil {
		log.Error("シナリオ実行エラー: %v", err)
		os.Exit(1)
	}
}

// applyLogLevel はログレベルを設定する
func applyLogLevel(level string) error {
	if level == "" {
		return nil
	}
	l, err := logger.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(l)
	return nil
}

// buildScenarioConfig はシナリオ設定を構築する
func buildScenarioConfig(configFile, presetName string, useFileLogLevel bool, ov overrides) (scenario.Config, error) {
	var cfg scenario.Config

	if configFile != "" {
		// 1. 設定ファイルから読み込み
		fileConfig, err := config.LoadFile(configFile)
		if err != nil {
			return cfg, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		if err := fileConfig.Validate(); err != nil {
			return cfg, fmt.Errorf("設定検証エラー: %w", err)
		}
		cfg, err = fileConfig.ToScenarioConfig()
		if err != nil {
			return cfg, fmt.Errorf("設定変換エラー: %w", err)
		}
		if useFileLogLevel && fileConfig.LogLevel != "" {
			if err := applyLogLevel(fileConfig.LogLevel); err != nil {
				return cfg, err
			}
		}
	} else {
		// 2. プリセットから読み込み
		preset, ok := scenario.GetPreset(presetName)
		if !ok {
			return cfg, fmt.Errorf("不明なプリセット: %s (利用可能: %v)", presetName, scenario.ListPresets())
		}
		cfg = preset
	}

	// フラグでオーバーライド
	if ov.duration > 0 {
		cfg.Duration = ov.duration
	}
	if ov.workers > 0 {
		cfg.Workers = ov.workers
	}
	if ov.producers > 0 {
		cfg.Producers = ov.producers
	}
	if ov.enableChaos != nil {
		cfg.EnableChaos = *ov.enableChaos
	}
	if ov.enableRecovery != nil {
		cfg.EnableRecovery = *ov.enableRecovery
	}

	return cfg, cfg.Validate()
}

// runDemo は numWorkers 個のワーカーで hello, world タスクを1つ実行する
func runDemo(numWorkers int) error {
	pool := worker.NewPool()
	if err := pool.Start(numWorkers); err != nil {
		return err
	}
	defer pool.Stop()

	done := pool.Submit(func() {
		fmt.Println("hello, world")
	})
	_, err := done.Get()
	return err
}

// runScenario はシナリオを実行する
func runScenario(cfg scenario.Config) error {
	fmt.Println("threadpool - Restartable Worker Pool with Chaos Scenarios")
	fmt.Println("==========================================================")
	fmt.Printf("Scenario: %s\n", cfg.Name)
	fmt.Printf("Duration: %v\n", cfg.Duration)
	fmt.Printf("Workers: %d, Producers: %d, Batch: %d\n", cfg.Workers, cfg.Producers, cfg.BatchSize)
	fmt.Printf("Chaos: %v, Recovery: %v\n", cfg.EnableChaos, cfg.EnableRecovery)
	fmt.Println("==========================================================")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n中断シグナルを受信、シナリオを終了中...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// シナリオ実行
	engine := scenario.New(cfg)
	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	// レポート出力
	fmt.Println(result.Report())

	return nil
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なプリセットシナリオ:")
	fmt.Println()

	for _, name := range scenario.ListPresets() {
		p, _ := scenario.GetPreset(name)
		fmt.Printf("  %-12s %s\n", name, p.Description)
	}

	fmt.Println()
	fmt.Println("使用例: threadpool --preset quick")
}

// runServer はAPIサーバーを起動する
func runServer(addr string) error {
	fmt.Println("threadpool - API Server")
	fmt.Println("=======================")
	fmt.Printf("Starting server on http://%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n中断シグナルを受信、サーバーを終了中...")
			cancel()
		case <-ctx.Done():
		}
	}()

	server, err := api.NewServer(addr)
	if err != nil {
		return err
	}
	return server.Start(ctx)
}
