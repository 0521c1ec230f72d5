package business

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"tpabridge/internal/app/domains/model"
)

// ParseSubmitJob 解析提交队列的 Job 信封
func ParseSubmitJob(data []byte) (*model.SubmitJobData, error) {
	var job model.SubmitJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}

	// 校验必填字段
	if job.Payload == nil || job.Payload.Data == nil {
		return nil, fmt.Errorf("invalid job structure: payload.data is nil")
	}

	d := job.Payload.Data
	if d.ActionType != model.ActionTypeSubmit {
		return nil, fmt.Errorf("unknown action_type: %s", d.ActionType)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("invalid job structure: id is empty")
	}

	// RequestID 为空则生成一个
	if d.RequestID == "" {
		d.RequestID = uuid.New().String()
	}

	return d, nil
}

// EncodeSubmitJob 构造提交队列的 Job 信封
func EncodeSubmitJob(data *model.SubmitJobData) ([]byte, error) {
	job := &model.SubmitJob{
		Payload: &model.SubmitPayload{Data: data},
	}
	return json.Marshal(job)
}
