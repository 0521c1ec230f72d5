package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tpabridge/internal/app/config"
	"tpabridge/internal/app/domains/modules/mdsubmit"
	"tpabridge/internal/app/domains/services/svstatus"
	"tpabridge/internal/app/domains/services/svsubmit"
	"tpabridge/internal/app/infra/mq/lmstfy"
	"tpabridge/internal/app/infra/persistence/mysql"
	persistenceredis "tpabridge/internal/app/infra/persistence/redis"
	"tpabridge/internal/app/server/handlers/claim"
	"tpabridge/internal/app/server/handlers/preauth"
	"tpabridge/internal/app/server/handlers/reimbursement"
	"tpabridge/internal/app/server/routers"
	"tpabridge/internal/notify"
	"tpabridge/internal/worker"
	"tpabridge/pkg/cache"
	"tpabridge/pkg/crypto"
	"tpabridge/pkg/logger"
	"tpabridge/pkg/ratelimit"
)

var (
	configPath = flag.String("config", "./config/config.yaml", "配置文件路径")
)

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	// 2. 初始化 Logger
	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// 3. 初始化字段加密（密钥从受保护文件加载，绝不进日志）
	codec, err := buildCodec(cfg)
	if err != nil {
		log.Fatalf("Failed to init field encryption: %v", err)
	}

	// 4. 初始化存储
	db, err := mysql.Open(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("Failed to open mysql: %v", err)
	}
	if err := mysql.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}
	requestRepo := rprequestRepo(db, codec)

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

	statusCache := cache.NewRedisCacheFromClient(redisClient.Raw())
	limiter := ratelimit.NewRedisLimiter(redisClient.Raw())

	// 6. 组装业务服务
	partnerCli := newPartnerClient(cfg)
	submitModule := mdsubmit.NewSubmitModule(lmstfyClient, redisClient, cfg.Lmstfy.SubmitQueue, cfg.Retry.MaxAttempts)
	submitService := svsubmit.NewSubmitService(requestRepo, submitModule, cfg.Submission.MaxAmount, zapLogger)
	statusService := svstatus.NewStatusService(&svstatus.Config{
		StatusTTL:   cfg.Cache.StatusTTL,
		ApprovalTTL: cfg.Cache.ApprovalTTL,
	}, requestRepo, statusCache, partnerCli, zapLogger)

	// 7. 组装 HTTP 路由
	engine := routers.SetupRoutes(
		cfg,
		limiter,
		preauth.NewPreAuthHandler(submitService, statusService, cfg.Submission.MaxWaitSeconds, zapLogger),
		claim.NewClaimHandler(submitService, statusService, cfg.Submission.MaxWaitSeconds, zapLogger),
		reimbursement.NewReimbursementHandler(submitService, cfg.Submission.MaxWaitSeconds, zapLogger),
		zapLogger,
	)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	// 8. 启动通知消费 Worker（后台 goroutine）
	notifyWorker := buildNotifyWorker(cfg, lmstfyClient, zapLogger)
	if notifyWorker != nil {
		go notifyWorker.Start()
	}

	// 9. 启动 HTTP Server（后台 goroutine）
	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	// 10. 优雅停机处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("Received shutdown signal, gracefully shutting down...")
		gracefulShutdown(server, notifyWorker)
	case err := <-serverErrChan:
		log.Fatalf("HTTP server error: %v", err)
	}

	log.Println("Application stopped")
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

// buildNotifyWorker 组装通知消费 Worker（配置里有通知队列才启用）
func buildNotifyWorker(cfg *config.Config, lmstfyClient *lmstfy.Client, zapLogger logger.Logger) worker.Worker {
	workerCfg := findWorkerConfig(cfg, cfg.Lmstfy.NotifyQueue)
	if workerCfg == nil {
		log.Printf("No worker config for notify queue, notification consumer disabled")
		return nil
	}

	senders := buildSenders(cfg, zapLogger)
	dispatcher := notify.NewDispatcher(senders, zapLogger)
	consumer := notify.NewConsumer(dispatcher, zapLogger)

	w, err := worker.NewWorkerInstance(
		context.Background(),
		workerCfg.Name,
		subscriberConfig(workerCfg),
		processorConfig(workerCfg),
		lmstfyClient,
		consumer.Proc(),
		zapLogger,
	)
	if err != nil {
		log.Fatalf("Failed to create notify worker: %v", err)
	}
	return w
}

// buildSenders 按配置组装通知渠道
func buildSenders(cfg *config.Config, zapLogger logger.Logger) []notify.Sender {
	senders := make([]notify.Sender, 0, len(cfg.Notify.Channels))
	for _, channel := range cfg.Notify.Channels {
		switch channel {
		case notify.ChannelEmail:
			senders = append(senders, notify.NewEmailSender(cfg.Notify.EmailFrom, zapLogger))
		case notify.ChannelSMS:
			senders = append(senders, notify.NewSMSSender(cfg.Notify.SMSFrom, zapLogger))
		default:
			log.Printf("Unknown notify channel ignored: %s", channel)
		}
	}
	return senders
}

// gracefulShutdown 优雅停机：先停通知消费，再停 HTTP Server
func gracefulShutdown(server *http.Server, notifyWorker worker.Worker) {
	if notifyWorker != nil {
		log.Println("Stopping notify worker...")
		notifyWorker.Shutdown()
	}

	log.Println("Stopping HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped gracefully")
	}

	log.Println("All services stopped gracefully")
}
