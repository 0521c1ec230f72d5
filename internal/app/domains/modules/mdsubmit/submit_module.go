package mdsubmit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/domains/model"
	"tpabridge/internal/app/infra/persistence/redis"
	"tpabridge/internal/framework"
)

// 队列消息 TTL（秒）
const jobTTLSeconds = 86400

// SubmitModule 提交模块
// 职责：
// 1. 构造提交队列的 Job 信封
// 2. Smart Wait：订阅结果频道等待 worker 推送终态
type SubmitModule struct {
	publisher   framework.Publisher
	redisClient *redis.PubSubClient
	queueName   string
	maxAttempts int
}

// NewSubmitModule 创建提交模块实例
func NewSubmitModule(publisher framework.Publisher, redisClient *redis.PubSubClient, queueName string, maxAttempts int) *SubmitModule {
	return &SubmitModule{
		publisher:   publisher,
		redisClient: redisClient,
		queueName:   queueName,
		maxAttempts: maxAttempts,
	}
}

// PublishSubmitJob 发布提交任务到队列（attempt 从 0 起）
func (m *SubmitModule) PublishSubmitJob(ctx context.Context, req *etrequest.Request) error {
	job := &model.SubmitJob{
		Payload: &model.SubmitPayload{
			Data: &model.SubmitJobData{
				RequestID:   uuid.New().String(), // 全链路追踪 ID
				ActionType:  model.ActionTypeSubmit,
				ID:          req.ID,
				Kind:        string(req.Kind),
				Attempt:     0,
				MaxAttempts: m.maxAttempts,
			},
		},
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal submit job failed: %w", err)
	}

	return m.publisher.Publish(m.queueName, payload, jobTTLSeconds, 0)
}

// WaitForResult 等待终态结果（Smart Wait）
// 订阅结果频道，worker 落终态后会推送状态快照
func (m *SubmitModule) WaitForResult(ctx context.Context, requestID string, timeout time.Duration) (*model.StatusSnapshot, error) {
	payload, err := m.redisClient.Subscribe(ctx, model.ResultChannel(requestID), timeout)
	if err != nil {
		return nil, err
	}

	var snapshot model.StatusSnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, err
	}

	return &snapshot, nil
}
