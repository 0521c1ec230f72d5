package model

// ActionTypeSubmit 提交任务的路由键
const ActionTypeSubmit = "tpa_submit"

// SubmitJob 标准 Job 结构（队列信封）
type SubmitJob struct {
	Payload *SubmitPayload `json:"payload"`
}

// SubmitPayload Job 负载
type SubmitPayload struct {
	Data *SubmitJobData `json:"data"`
}

// SubmitJobData Job 数据
type SubmitJobData struct {
	// 元信息
	RequestID  string `json:"request_id"`  // 请求 ID（TraceID）
	ActionType string `json:"action_type"` // 动作类型（路由键）
	ID         string `json:"id"`          // 业务请求 ID

	// 重试记账（由重试控制器独占维护）
	Kind        string `json:"kind"`         // preauth / claim / reimbursement
	Attempt     int    `json:"attempt"`      // 当前尝试次数，从 0 开始
	MaxAttempts int    `json:"max_attempts"` // 尝试上限
}
