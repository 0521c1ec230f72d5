package framework

import (
	"context"
	"sync"
	"time"

	"tpabridge/pkg/logger"
)

// Processor 处理器：接收消息，调用业务处理函数，按结果执行 Ack
type Processor struct {
	cfg        *ProcessorConfig
	proc       Proc          // 业务处理函数（注入的裁定器）
	source     MessageSource // Ack 用
	queueName  string
	logger     logger.Logger
	shutdownCh chan struct{} // 专门的退出信号通道
	wg         sync.WaitGroup
}

// NewProcessor 创建处理器
func NewProcessor(cfg *ProcessorConfig, proc Proc, source MessageSource, queueName string, log logger.Logger) *Processor {
	return &Processor{
		cfg:        cfg,
		proc:       proc,
		source:     source,
		queueName:  queueName,
		logger:     log,
		shutdownCh: make(chan struct{}),
	}
}

// Start 启动处理协程
func (p *Processor) Start(ctx context.Context, inputChan <-chan *Message) error {
	p.logger.Infof(ctx, "[Processor] Starting with %d workers", p.cfg.Concurrency)

	for i := 0; i < p.cfg.Concurrency; i++ {
		workerID := i
		p.wg.Add(1)
		go p.loop(ctx, workerID, inputChan)
	}

	return nil
}

// SignalShutdown 通知 Processor 准备退出（进入 Drain 模式）
func (p *Processor) SignalShutdown() {
	p.logger.Infof(context.Background(), "[Processor] Shutdown signal received")
	close(p.shutdownCh)
}

// Wait 等待所有处理协程退出
func (p *Processor) Wait() {
	p.wg.Wait()
	p.logger.Infof(context.Background(), "[Processor] All workers exited")
}

// loop 处理循环（单个处理协程）
func (p *Processor) loop(ctx context.Context, workerID int, inputChan <-chan *Message) {
	defer p.wg.Done()
	p.logger.Infof(ctx, "[Processor-%d] Started", workerID)

	for {
		select {
		// A. 正常业务处理
		case msg := <-inputChan:
			p.process(ctx, msg, workerID)

		// B. Drain 模式：处理完剩余消息再退出
		case <-p.shutdownCh:
			p.logger.Infof(ctx, "[Processor-%d] Entering DRAIN mode", workerID)
			count := 0
			for {
				select {
				case msg := <-inputChan:
					p.process(ctx, msg, workerID)
					count++
				default:
					p.logger.Infof(ctx, "[Processor-%d] Drained %d messages, exiting", workerID, count)
					return
				}
			}
		}
	}
}

// process 处理单个消息
func (p *Processor) process(ctx context.Context, msg *Message, workerID int) {
	if msg == nil {
		return
	}

	startTime := time.Now()

	// 1. 创建超时控制的 Context，并注入元信息
	procCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	procCtx = context.WithValue(procCtx, logger.CtxKeyWorkerID, workerID)

	p.logger.Infof(procCtx, "[Processor-%d] Processing message: %s", workerID, msg.ID)

	// 2. 调用业务处理函数
	resp := p.proc(procCtx, msg)

	// 3. 按处理结果执行队列动作
	switch resp.Action {
	case JobRespStatusSuccess, JobRespStatusBury:
		// 终态已落库（含已调度延迟重试的场景），确认消息
		if err := p.source.Ack(p.queueName, msg.ID); err != nil {
			// Ack 失败会导致租约到期重投，守卫式状态迁移保证重复投递无副作用
			p.logger.Warnf(procCtx, "[Processor-%d] Ack failed: %s, err=%v", workerID, msg.ID, err)
		}
	case JobRespStatusRelease:
		// 不确认，等租约到期重新投递
		p.logger.Warnf(procCtx, "[Processor-%d] Message released for redelivery: %s", workerID, msg.ID)
	}

	duration := time.Since(startTime)
	p.logger.Infof(procCtx, "[Processor-%d] Message processed: %s, action: %d, duration: %v",
		workerID, msg.ID, resp.Action, duration)
}
