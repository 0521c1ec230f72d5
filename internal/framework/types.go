package framework

import "time"

// Message 消息结构（框架内部流转）
type Message struct {
	ID    string // 消息 ID
	Queue string // 队列名称
	Data  []byte // 原始 Job 数据
}

// JobRespStatus 消息处理结果状态
type JobRespStatus int

const (
	// JobRespStatusSuccess 处理完成（含已调度延迟重试的场景），Ack 消息
	JobRespStatusSuccess JobRespStatus = iota
	// JobRespStatusRelease 暂不确认，等租约到期重新投递（基础设施故障时防止丢 Job）
	JobRespStatusRelease
	// JobRespStatusBury 死信终态已落库，Ack 消息并记录
	JobRespStatusBury
)

// JobResp 消息处理结果
type JobResp struct {
	Action JobRespStatus // 处理动作
	Data   []byte        // 响应数据（可选，用于日志）
}

// SubscriberConfig Subscriber 配置
type SubscriberConfig struct {
	QueueName    string        // 队列名称
	Concurrency  int           // 并发拉取数
	Rate         time.Duration // 拉取速率
	Timeout      time.Duration // 拉取超时
	TTR          time.Duration // 租约时长
	ErrorBackoff time.Duration // 错误退避时间
}

// ProcessorConfig Processor 配置
type ProcessorConfig struct {
	Concurrency int           // 并发处理数
	BufferSize  int           // Channel 缓冲大小
	Timeout     time.Duration // 单个任务超时
}
