package lmstfy

import (
	"fmt"
	"time"

	"github.com/bitleak/lmstfy/client"

	"tpabridge/internal/framework"
)

// Client Lmstfy 客户端封装（实现 framework.MessageSource / framework.Publisher）
// Consume 的 TTR 即租约：拉取后的消息在 TTR 内对其他 worker 不可见，
// 超时未 Ack 会重新投递——这是"同一 Job 同时只有一个活跃 worker"的保证
type Client struct {
	cli       *client.LmstfyClient
	namespace string
}

// NewClient 创建 Lmstfy 客户端
func NewClient(host string, port int, namespace string, token string) (*Client, error) {
	cli := client.NewLmstfyClient(host, port, namespace, token)
	return &Client{
		cli:       cli,
		namespace: namespace,
	}, nil
}

// Consume 消费消息（阻塞直到拉取到消息或超时；超时返回 nil）
func (c *Client) Consume(queue string, timeout time.Duration, ttr time.Duration) (*framework.Message, error) {
	timeoutSec := uint32(timeout.Seconds())
	ttrSec := uint32(ttr.Seconds())

	job, err := c.cli.Consume(queue, ttrSec, timeoutSec)
	if err != nil {
		return nil, fmt.Errorf("lmstfy consume failed: %w", err)
	}

	// 超时未拉到消息
	if job == nil {
		return nil, nil
	}

	return &framework.Message{
		ID:    job.ID,
		Queue: job.Queue,
		Data:  job.Data,
	}, nil
}

// Ack 确认消息（删除消息，结束租约）
func (c *Client) Ack(queue string, jobID string) error {
	if err := c.cli.Ack(queue, jobID); err != nil {
		return fmt.Errorf("lmstfy ack failed: %w", err)
	}
	return nil
}

// Publish 发布消息
// tries 固定为 1：重试记账由重试控制器自己维护（带延迟重新发布），
// 不叠加 lmstfy 自身的重投机制
func (c *Client) Publish(queue string, data []byte, ttl uint32, delay uint32) error {
	_, err := c.cli.Publish(queue, data, ttl, 1, delay)
	if err != nil {
		return fmt.Errorf("lmstfy publish failed: %w", err)
	}
	return nil
}
