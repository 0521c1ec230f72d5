package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tpabridge/pkg/errorx"
)

// 批复结论
const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
	OutcomePending  = "pending" // 状态查询时 TPA 侧尚未裁定
)

// AdjudicationRequest 递交给 TPA 的裁定请求
// 金额和患者标识以明文走 TLS 传输（落库密文只是存储侧保护）
type AdjudicationRequest struct {
	RequestID      string   `json:"request_id"`
	Kind           string   `json:"kind"`
	PatientRef     string   `json:"patient_ref"`
	Amount         float64  `json:"amount"`
	ProcedureCodes []string `json:"procedure_codes"`
	PreAuthRef     string   `json:"preauth_ref,omitempty"`
}

// AdjudicationResult TPA 的裁定结果
type AdjudicationResult struct {
	Outcome    string `json:"outcome"`     // approved / rejected / pending
	ApprovalID string `json:"approval_id"` // TPA 批复单号
	Reason     string `json:"reason,omitempty"`
}

// Client TPA 外部接口（对本系统是不透明黑盒，审批逻辑完全在对端）
type Client interface {
	// Adjudicate 递交裁定请求
	Adjudicate(ctx context.Context, req *AdjudicationRequest) (*AdjudicationResult, error)

	// QueryStatus 查询裁定进度（状态轮询的慢路径）
	QueryStatus(ctx context.Context, kind, requestID string) (*AdjudicationResult, error)
}

// HTTPClient TPA HTTP 客户端
// 每次调用带硬超时，超时按临时故障处理（走重试表）
type HTTPClient struct {
	baseURL string
	token   string
	httpCli *http.Client
}

// NewHTTPClient 创建 TPA 客户端
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpCli: &http.Client{Timeout: timeout},
	}
}

// Adjudicate 递交裁定请求
func (c *HTTPClient) Adjudicate(ctx context.Context, req *AdjudicationRequest) (*AdjudicationResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errorx.PartnerPermanent("marshal adjudication request: " + err.Error())
	}

	endpoint := fmt.Sprintf("%s/v1/adjudications", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errorx.Internal("build partner request: " + err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("X-Token", c.token)
	}

	return c.do(httpReq)
}

// QueryStatus 查询裁定进度
func (c *HTTPClient) QueryStatus(ctx context.Context, kind, requestID string) (*AdjudicationResult, error) {
	endpoint := fmt.Sprintf("%s/v1/adjudications/%s/%s", c.baseURL, kind, requestID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errorx.Internal("build partner request: " + err.Error())
	}
	if c.token != "" {
		httpReq.Header.Set("X-Token", c.token)
	}

	return c.do(httpReq)
}

// do 执行调用并按故障类型分类
// 网络错误/超时/5xx → 临时故障（可重试）；4xx → 永久失败（不重试）
func (c *HTTPClient) do(req *http.Request) (*AdjudicationResult, error) {
	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, errorx.PartnerTransient("partner unreachable: " + err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, errorx.PartnerTransient(fmt.Sprintf("partner server error: status=%d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, errorx.PartnerPermanent(fmt.Sprintf("partner rejected request: status=%d", resp.StatusCode))
	}

	var result AdjudicationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errorx.PartnerTransient("decode partner response: " + err.Error())
	}
	return &result, nil
}
