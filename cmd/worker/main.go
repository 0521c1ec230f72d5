package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tpabridge/internal/app/config"
	"tpabridge/internal/app/domains/repo/rpaudit"
	"tpabridge/internal/app/domains/repo/rprequest"
	"tpabridge/internal/app/infra/mq/lmstfy"
	"tpabridge/internal/app/infra/persistence/mysql"
	persistenceredis "tpabridge/internal/app/infra/persistence/redis"
	"tpabridge/internal/business"
	"tpabridge/internal/partner"
	"tpabridge/internal/retention"
	"tpabridge/internal/worker"
	"tpabridge/pkg/cache"
	"tpabridge/pkg/crypto"
	"tpabridge/pkg/idgen"
	"tpabridge/pkg/logger"
)

var (
	configPath = flag.String("config", "./config/config.yaml", "配置文件路径")
	machineID  = flag.Int64("machine-id", 1, "雪花 ID 机器号")
)

func main() {
	flag.Parse()

	log.Println("========================================")
	log.Println("  TPA Bridge Worker Starting...")
	log.Println("========================================")

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	log.Printf("Config loaded: %s, env: %s, log_level: %s\n", cfg.App.Name, cfg.App.Env, cfg.App.LogLevel)

	// 2. 初始化 Logger
	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// 3. 初始化字段加密
	codec, err := buildCodec(cfg)
	if err != nil {
		log.Fatalf("Failed to init field encryption: %v", err)
	}

	// 4. 初始化存储
	db, err := mysql.Open(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("Failed to open mysql: %v", err)
	}
	requestRepo := rprequest.NewRequestRepository(db, codec)
	auditRepo := rpaudit.NewAuditRepository(db, idgen.NewSnowflakeIDGenerator(*machineID))

	// 5. 初始化队列与 Redis
	lmstfyClient, err := lmstfy.NewClient(cfg.Lmstfy.Host, cfg.Lmstfy.Port, cfg.Lmstfy.Namespace, cfg.Lmstfy.Token)
	if err != nil {
		log.Fatalf("Failed to create lmstfy client: %v", err)
	}

	redisClient, err := persistenceredis.NewPubSubClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	// 6. 组装裁定处理器
	adjudicator := business.NewAdjudicator(
		&business.Config{
			SubmitQueue:   cfg.Lmstfy.SubmitQueue,
			NotifyQueue:   cfg.Lmstfy.NotifyQueue,
			MaxAttempts:   cfg.Retry.MaxAttempts,
			BackoffBase:   cfg.Retry.BackoffBase,
			BackoffJitter: cfg.Retry.BackoffJitter,
			StatusTTL:     cfg.Cache.StatusTTL,
			ApprovalTTL:   cfg.Cache.ApprovalTTL,
		},
		requestRepo,
		partner.NewHTTPClient(cfg.Partner.BaseURL, cfg.Partner.Token, cfg.Partner.Timeout),
		lmstfyClient,
		cache.NewRedisCacheFromClient(redisClient.Raw()),
		redisClient,
		zapLogger,
	)

	// 7. 创建 Manager（只加载已注册处理函数的队列）
	procs := worker.ProcRegistry{
		cfg.Lmstfy.SubmitQueue: adjudicator.Proc(),
	}
	mgrCfg := filterWorkers(cfg, procs)

	mgr, err := worker.NewManagerInstance(mgrCfg, lmstfyClient, procs, zapLogger)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}

	// 8. 启动 Manager（goroutine）
	go func() {
		if err := mgr.Start(); err != nil {
			log.Fatalf("Manager start failed: %v", err)
		}
	}()

	// 9. 启动保留期清理定时任务
	sweeper := retention.NewSweeper(&retention.Config{
		OperationalDays: cfg.Retention.OperationalDays,
		BatchSize:       cfg.Retention.SweepBatchSize,
	}, requestRepo, auditRepo, zapLogger)

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	go runSweeper(sweepCtx, sweeper, cfg.Retention.SweepInterval, zapLogger)

	log.Println("Worker started. Press Ctrl+C to shutdown.")

	// 10. 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Println("========================================")
	log.Printf("  Received signal: %v\n", sig)
	log.Println("  Shutting down Worker...")
	log.Println("========================================")

	// 11. 优雅关闭
	cancelSweep()
	mgr.Shutdown()

	fmt.Println("========================================")
	fmt.Println("  Worker exited gracefully")
	fmt.Println("========================================")
}

// buildCodec 初始化轮换编解码器（当前密钥 + 历史密钥）
func buildCodec(cfg *config.Config) (*crypto.RotatingCodec, error) {
	key, err := crypto.LoadKey(cfg.Encryption.KeyFile)
	if err != nil {
		return nil, err
	}
	codec, err := crypto.NewRotatingCodec(key, cfg.Encryption.KeyVersion)
	if err != nil {
		return nil, err
	}
	for _, prev := range cfg.Encryption.PreviousKeys {
		prevKey, err := crypto.LoadKey(prev.KeyFile)
		if err != nil {
			return nil, err
		}
		if err := codec.AddPreviousKey(prevKey, prev.Version); err != nil {
			return nil, err
		}
	}
	return codec, nil
}

// filterWorkers 只保留已注册处理函数的 Worker 配置
// 通知队列由 apiserver 侧消费，这里跳过
func filterWorkers(cfg *config.Config, procs worker.ProcRegistry) *config.Config {
	filtered := *cfg
	filtered.Workers = make([]config.WorkerConfig, 0, len(cfg.Workers))
	for _, wc := range cfg.Workers {
		if _, ok := procs[wc.QueueName]; ok {
			filtered.Workers = append(filtered.Workers, wc)
		}
	}
	return &filtered
}

// runSweeper 周期执行保留期清理（启动时先跑一轮）
func runSweeper(ctx context.Context, sweeper *retention.Sweeper, interval time.Duration, log logger.Logger) {
	if purged, err := sweeper.Sweep(ctx, time.Now()); err != nil {
		log.Errorf(ctx, "[main] retention sweep failed: %v", err)
	} else {
		log.Infof(ctx, "[main] retention sweep done: purged=%d", purged)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if purged, err := sweeper.Sweep(ctx, time.Now()); err != nil {
				log.Errorf(ctx, "[main] retention sweep failed: %v", err)
			} else {
				log.Infof(ctx, "[main] retention sweep done: purged=%d", purged)
			}
		}
	}
}
