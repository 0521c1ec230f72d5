package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Lmstfy     LmstfyConfig     `mapstructure:"lmstfy"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Partner    PartnerConfig    `mapstructure:"partner"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Workers    []WorkerConfig   `mapstructure:"workers"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// MySQLConfig MySQL 配置
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LmstfyConfig Lmstfy 队列配置
type LmstfyConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Namespace   string `mapstructure:"namespace"`
	Token       string `mapstructure:"token"`
	SubmitQueue string `mapstructure:"submit_queue"` // 提交任务队列
	NotifyQueue string `mapstructure:"notify_queue"` // 通知事件队列
}

// EncryptionConfig 字段加密配置
// 密钥从受保护的文件加载，绝不出现在配置或日志中
type EncryptionConfig struct {
	KeyFile      string        `mapstructure:"key_file"`    // 当前密钥文件路径
	KeyVersion   int           `mapstructure:"key_version"` // 当前密钥版本
	PreviousKeys []PreviousKey `mapstructure:"previous_keys"`
}

// PreviousKey 历史密钥（仅用于解密存量数据）
type PreviousKey struct {
	Version int    `mapstructure:"version"`
	KeyFile string `mapstructure:"key_file"`
}

// PartnerConfig TPA 外部接口配置
type PartnerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"` // 单次调用硬超时
}

// RateLimitConfig 限流配置（按端点区分配额）
type RateLimitConfig struct {
	Window              time.Duration `mapstructure:"window"`                 // 滑动窗口宽度
	PreauthPerWindow    int           `mapstructure:"preauth_per_window"`     // 预授权提交配额
	ClaimPerWindow      int           `mapstructure:"claim_per_window"`       // 理赔提交配额
	ReimbursePerWindow  int           `mapstructure:"reimburse_per_window"`   // 报销提交配额
	StatusPollPerWindow int           `mapstructure:"status_poll_per_window"` // 状态轮询配额
}

// RetryConfig 重试配置
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`   // 最大重试次数
	BackoffBase   time.Duration `mapstructure:"backoff_base"`   // 指数退避基数
	BackoffJitter time.Duration `mapstructure:"backoff_jitter"` // 抖动上限
}

// SubmissionConfig 提交校验配置
type SubmissionConfig struct {
	MaxAmount      float64 `mapstructure:"max_amount"`       // 单笔金额上限
	MaxWaitSeconds int     `mapstructure:"max_wait_seconds"` // Smart Wait 等待秒数上限
}

// CacheConfig 状态缓存 TTL 配置
type CacheConfig struct {
	StatusTTL   time.Duration `mapstructure:"status_ttl"`   // 状态快照 TTL
	ApprovalTTL time.Duration `mapstructure:"approval_ttl"` // 终态批复详情 TTL
}

// RetentionConfig 数据保留配置
type RetentionConfig struct {
	OperationalDays int           `mapstructure:"operational_days"` // 运营数据保留天数
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`   // 清理周期
	SweepBatchSize  int           `mapstructure:"sweep_batch_size"` // 单批处理条数
}

// NotifyConfig 通知渠道配置
type NotifyConfig struct {
	Channels  []string `mapstructure:"channels"` // email / sms
	EmailFrom string   `mapstructure:"email_from"`
	SMSFrom   string   `mapstructure:"sms_from"`
}

// AuthConfig 接口认证配置（token → 用户标识）
type AuthConfig struct {
	Tokens map[string]string `mapstructure:"tokens"`
}

// WorkerConfig Worker 配置
type WorkerConfig struct {
	Name       string           `mapstructure:"name"`
	QueueName  string           `mapstructure:"queue_name"`
	Subscriber SubscriberConfig `mapstructure:"subscriber"`
	Processor  ProcessorConfig  `mapstructure:"processor"`
}

// SubscriberConfig Subscriber 配置
type SubscriberConfig struct {
	Threads      int           `mapstructure:"threads"`       // 并发拉取数
	Rate         time.Duration `mapstructure:"rate"`          // 拉取速率
	Timeout      time.Duration `mapstructure:"timeout"`       // 拉取超时
	TTR          time.Duration `mapstructure:"ttr"`           // 租约时长（拉取后对其他 worker 不可见的窗口）
	ErrorBackoff time.Duration `mapstructure:"error_backoff"` // 错误退避时间
}

// ProcessorConfig Processor 配置
type ProcessorConfig struct {
	Threads    int           `mapstructure:"threads"`     // 并发处理数
	BufferSize int           `mapstructure:"buffer_size"` // Channel 缓冲大小
	Timeout    time.Duration `mapstructure:"timeout"`     // 单个任务超时
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults 填充缺省值
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.PreauthPerWindow == 0 {
		c.RateLimit.PreauthPerWindow = 5
	}
	if c.RateLimit.ClaimPerWindow == 0 {
		c.RateLimit.ClaimPerWindow = 3
	}
	if c.RateLimit.ReimbursePerWindow == 0 {
		c.RateLimit.ReimbursePerWindow = 2
	}
	if c.RateLimit.StatusPollPerWindow == 0 {
		c.RateLimit.StatusPollPerWindow = 10
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BackoffBase == 0 {
		c.Retry.BackoffBase = 2 * time.Second
	}
	if c.Retry.BackoffJitter == 0 {
		c.Retry.BackoffJitter = time.Second
	}
	if c.Submission.MaxAmount == 0 {
		c.Submission.MaxAmount = 1000000
	}
	if c.Submission.MaxWaitSeconds == 0 {
		c.Submission.MaxWaitSeconds = 30
	}
	if c.Cache.StatusTTL == 0 {
		c.Cache.StatusTTL = time.Hour
	}
	if c.Cache.ApprovalTTL == 0 {
		c.Cache.ApprovalTTL = 24 * time.Hour
	}
	if c.Retention.OperationalDays == 0 {
		c.Retention.OperationalDays = 365
	}
	if c.Retention.SweepInterval == 0 {
		c.Retention.SweepInterval = 24 * time.Hour
	}
	if c.Retention.SweepBatchSize == 0 {
		c.Retention.SweepBatchSize = 500
	}
	if c.Partner.Timeout == 0 {
		c.Partner.Timeout = 10 * time.Second
	}
}

// Validate 验证配置完整性
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Lmstfy.Host == "" {
		return fmt.Errorf("lmstfy.host is required")
	}
	if c.Lmstfy.Token == "" {
		return fmt.Errorf("lmstfy.token is required")
	}
	if c.Lmstfy.SubmitQueue == "" {
		return fmt.Errorf("lmstfy.submit_queue is required")
	}
	if c.Encryption.KeyFile == "" {
		return fmt.Errorf("encryption.key_file is required")
	}
	if c.Partner.BaseURL == "" {
		return fmt.Errorf("partner.base_url is required")
	}
	return nil
}
