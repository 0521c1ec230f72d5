package main

import (
	"gorm.io/gorm"

	"tpabridge/internal/app/config"
	"tpabridge/internal/app/domains/repo/rprequest"
	"tpabridge/internal/framework"
	"tpabridge/internal/partner"
)

// rprequestRepo 组装请求仓储
func rprequestRepo(db *gorm.DB, codec rprequest.FieldCodec) rprequest.RequestRepository {
	return rprequest.NewRequestRepository(db, codec)
}

// newPartnerClient 组装 TPA 客户端
func newPartnerClient(cfg *config.Config) partner.Client {
	return partner.NewHTTPClient(cfg.Partner.BaseURL, cfg.Partner.Token, cfg.Partner.Timeout)
}

// findWorkerConfig 按队列名找 Worker 配置
func findWorkerConfig(cfg *config.Config, queueName string) *config.WorkerConfig {
	for i := range cfg.Workers {
		if cfg.Workers[i].QueueName == queueName {
			return &cfg.Workers[i]
		}
	}
	return nil
}

// subscriberConfig Worker 配置 → Subscriber 配置
func subscriberConfig(wc *config.WorkerConfig) *framework.SubscriberConfig {
	return &framework.SubscriberConfig{
		QueueName:    wc.QueueName,
		Concurrency:  wc.Subscriber.Threads,
		Rate:         wc.Subscriber.Rate,
		Timeout:      wc.Subscriber.Timeout,
		TTR:          wc.Subscriber.TTR,
		ErrorBackoff: wc.Subscriber.ErrorBackoff,
	}
}

// processorConfig Worker 配置 → Processor 配置
func processorConfig(wc *config.WorkerConfig) *framework.ProcessorConfig {
	return &framework.ProcessorConfig{
		Concurrency: wc.Processor.Threads,
		BufferSize:  wc.Processor.BufferSize,
		Timeout:     wc.Processor.Timeout,
	}
}
