// Package config 提供 TOML 配置加载、环境变量覆盖与 schema 校验
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// HTTP 限流配置
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	// 行情服务配置
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	// 告警配置
	Alert AlertConfig `mapstructure:"alert"`
	// 账本配置
	Ledger LedgerConfig `mapstructure:"ledger"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	// 监听地址
	Host string `mapstructure:"host"`
	// 监听端口
	Port int `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 是否启用 SQL 日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 主机地址
	Host string `mapstructure:"host"`
	// 端口
	Port int `mapstructure:"port"`
	// 密码
	Password string `mapstructure:"password"`
	// 数据库编号
	DB int `mapstructure:"db"`
	// 最大连接数
	MaxPoolSize int `mapstructure:"max_pool_size"`
	// 连接超时（秒）
	ConnTimeout int `mapstructure:"conn_timeout"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// 最大重试次数
	MaxRetries int `mapstructure:"max_retries"`
	// 重试退避（毫秒）
	RetryBackoff int `mapstructure:"retry_backoff"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	// 日志级别
	Level string `mapstructure:"level"`
	// 输出格式
	Format string `mapstructure:"format"`
	// 输出目标
	Output string `mapstructure:"output"`
	// 文件路径
	FilePath string `mapstructure:"file_path"`
	// 最大文件大小（MB）
	MaxSize int `mapstructure:"max_size"`
	// 最大备份文件数
	MaxBackups int `mapstructure:"max_backups"`
	// 最大保留天数
	MaxAge int `mapstructure:"max_age"`
	// 是否压缩
	Compress bool `mapstructure:"compress"`
	// 是否输出调用者信息
	WithCaller bool `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// Prometheus 监听端口
	Port int `mapstructure:"port"`
	// 指标路径
	Path string `mapstructure:"path"`
}

// RateLimitConfig HTTP 限流配置
type RateLimitConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// 每秒请求数
	QPS int `mapstructure:"qps"`
	// 突发容量
	Burst int `mapstructure:"burst"`
}

// MarketDataConfig 行情服务配置
type MarketDataConfig struct {
	// 报价缓存 TTL（秒）
	QuoteTTL int `mapstructure:"quote_ttl"`
	// 时间序列缓存 TTL（秒）
	SeriesTTL int `mapstructure:"series_ttl"`
	// 上游请求间隔（秒）
	RequestSpacing int `mapstructure:"request_spacing"`
	// 调度队列容量
	QueueSize int `mapstructure:"queue_size"`
	// 上游连接超时（秒）
	ConnectTimeout int `mapstructure:"connect_timeout"`
	// 上游读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// AlphaVantage 报价源
	AlphaVantage AlphaVantageConfig `mapstructure:"alphavantage"`
	// Yahoo K 线源
	Yahoo YahooConfig `mapstructure:"yahoo"`
	// 交易时段配置
	Session SessionConfig `mapstructure:"session"`
}

// AlphaVantageConfig AlphaVantage 报价源配置
type AlphaVantageConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// YahooConfig Yahoo 行情源配置
type YahooConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// SessionConfig 交易时段配置。节假日与提前收盘不在此建模，
// 时段来源可替换而无需改动窗口计算逻辑。
type SessionConfig struct {
	// 时区（IANA 名称）
	Timezone string `mapstructure:"timezone"`
	// 开盘小时（本地时间）
	OpenHour int `mapstructure:"open_hour"`
	// 收盘小时（本地时间）
	CloseHour int `mapstructure:"close_hour"`
}

// AlertConfig 告警配置
type AlertConfig struct {
	// 同一用户同一标的两次价格告警的最小间隔（分钟）
	DebounceMinutes int `mapstructure:"debounce_minutes"`
	// 告警投递 Kafka Topic
	Topic string `mapstructure:"topic"`
	// 默认价格变动阈值（百分比）
	DefaultThreshold float64 `mapstructure:"default_threshold"`
}

// LedgerConfig 账本配置
type LedgerConfig struct {
	// 新用户初始资金
	InitialBalance string `mapstructure:"initial_balance"`
	// 乐观锁冲突最大重试次数
	MaxTradeRetries int `mapstructure:"max_trade_retries"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖与默认值
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.MarketData.QuoteTTL <= 0 || c.MarketData.SeriesTTL <= 0 {
		return fmt.Errorf("marketdata TTLs must be positive")
	}
	if c.MarketData.RequestSpacing < 0 {
		return fmt.Errorf("marketdata request_spacing must not be negative")
	}
	if c.MarketData.Session.OpenHour < 0 || c.MarketData.Session.OpenHour > 23 ||
		c.MarketData.Session.CloseHour < 0 || c.MarketData.Session.CloseHour > 23 ||
		c.MarketData.Session.OpenHour >= c.MarketData.Session.CloseHour {
		return fmt.Errorf("invalid market session hours: open=%d close=%d",
			c.MarketData.Session.OpenHour, c.MarketData.Session.CloseHour)
	}
	if c.Alert.DefaultThreshold <= 0 {
		return fmt.Errorf("alert default_threshold must be positive")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.qps", 50)
	v.SetDefault("ratelimit.burst", 100)

	v.SetDefault("marketdata.quote_ttl", 43200)
	v.SetDefault("marketdata.series_ttl", 43200)
	v.SetDefault("marketdata.request_spacing", 15)
	v.SetDefault("marketdata.queue_size", 64)
	v.SetDefault("marketdata.connect_timeout", 10)
	v.SetDefault("marketdata.read_timeout", 30)
	v.SetDefault("marketdata.alphavantage.base_url", "https://www.alphavantage.co/query")
	v.SetDefault("marketdata.yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("marketdata.session.timezone", "Asia/Jerusalem")
	v.SetDefault("marketdata.session.open_hour", 16)
	v.SetDefault("marketdata.session.close_hour", 23)

	v.SetDefault("alert.debounce_minutes", 15)
	v.SetDefault("alert.topic", "papertrading.alerts")
	v.SetDefault("alert.default_threshold", 5.0)

	v.SetDefault("ledger.initial_balance", "100000.00")
	v.SetDefault("ledger.max_trade_retries", 3)
}
