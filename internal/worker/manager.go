package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"tpabridge/internal/app/config"
	"tpabridge/internal/framework"
	"tpabridge/pkg/logger"
)

// Manager 接口
type Manager interface {
	Start() error
	Shutdown()
}

// ProcRegistry 队列名 → 业务处理函数的注册表
// 提交队列绑定裁定处理，通知队列绑定通知分发
type ProcRegistry map[string]framework.Proc

// ManagerInstance Manager 实例
type ManagerInstance struct {
	ctx        context.Context
	cfg        *config.Config
	source     framework.MessageSource
	procs      ProcRegistry
	workers    []Worker
	closing    *atomic.Bool
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	logger     logger.Logger
}

// NewManagerInstance 创建 Manager
func NewManagerInstance(cfg *config.Config, source framework.MessageSource, procs ProcRegistry, log logger.Logger) (Manager, error) {
	if len(cfg.Workers) == 0 {
		return nil, fmt.Errorf("at least one worker config is required")
	}

	return &ManagerInstance{
		ctx:        context.Background(),
		cfg:        cfg,
		source:     source,
		procs:      procs,
		closing:    atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
		workers:    make([]Worker, 0),
		logger:     log,
	}, nil
}

// Start 启动 Manager
func (m *ManagerInstance) Start() error {
	m.logger.Infof(m.ctx, "[Manager] Starting...")

	// 1. 加载所有 Worker
	if err := m.loadWorkers(); err != nil {
		return fmt.Errorf("failed to load workers: %w", err)
	}

	m.logger.Infof(m.ctx, "[Manager] All workers loaded, count: %d", len(m.workers))

	// 2. 启动所有 Worker（每个 Worker 在独立 goroutine）
	for _, worker := range m.workers {
		w := worker
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.Start()
		}()
		m.logger.Infof(m.ctx, "[Manager] Worker started: %s", w.GetName())
	}

	m.logger.Infof(m.ctx, "[Manager] Start success")

	// 3. 阻塞等待退出信号
	<-m.shutdownCh

	return nil
}

// Shutdown 优雅退出
func (m *ManagerInstance) Shutdown() {
	m.logger.Infof(m.ctx, "[Manager] Began to close")

	// 原子操作，保证并发安全
	if m.closing.CAS(false, true) {
		// 1. 所有 Worker 安全退出
		for _, worker := range m.workers {
			m.logger.Infof(m.ctx, "[Manager] Shutting down worker: %s", worker.GetName())
			worker.Shutdown()
		}

		// 2. 等待所有 Worker 退出
		m.wg.Wait()

		// 3. 关闭信号通道
		close(m.shutdownCh)

		m.logger.Infof(m.ctx, "[Manager] Shutdown complete")
	}
}

// loadWorkers 加载所有 Worker
func (m *ManagerInstance) loadWorkers() error {
	// 遍历配置中的所有 Worker
	for _, workerCfg := range m.cfg.Workers {
		proc, ok := m.procs[workerCfg.QueueName]
		if !ok {
			return fmt.Errorf("no proc registered for queue: %s", workerCfg.QueueName)
		}

		// 创建 Subscriber 配置
		subCfg := &framework.SubscriberConfig{
			QueueName:    workerCfg.QueueName,
			Concurrency:  workerCfg.Subscriber.Threads,
			Rate:         workerCfg.Subscriber.Rate,
			Timeout:      workerCfg.Subscriber.Timeout,
			TTR:          workerCfg.Subscriber.TTR,
			ErrorBackoff: workerCfg.Subscriber.ErrorBackoff,
		}

		// 创建 Processor 配置
		procCfg := &framework.ProcessorConfig{
			Concurrency: workerCfg.Processor.Threads,
			BufferSize:  workerCfg.Processor.BufferSize,
			Timeout:     workerCfg.Processor.Timeout,
		}

		// 创建 Worker 实例
		worker, err := NewWorkerInstance(
			m.ctx,
			workerCfg.Name,
			subCfg,
			procCfg,
			m.source,
			proc,
			m.logger,
		)
		if err != nil {
			return fmt.Errorf("failed to create worker %s: %w", workerCfg.Name, err)
		}

		m.workers = append(m.workers, worker)
	}

	return nil
}
