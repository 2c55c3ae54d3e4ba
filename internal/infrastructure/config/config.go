package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 如 SRCCHAT_SERVER_PORT
const EnvPrefix = "SRCCHAT"

// Config 应用配置
type Config struct {
	Server         ServerConfig        `mapstructure:"server"`
	Database       DatabaseConfig      `mapstructure:"database"`
	Log            LogConfig           `mapstructure:"log"`
	Auth           AuthConfig          `mapstructure:"auth"`
	Chat           ChatConfig          `mapstructure:"chat"`
	Presence       PresenceConfig      `mapstructure:"presence"`
	Uploads        UploadsConfig       `mapstructure:"uploads"`
	QuickResponses QuickResponseConfig `mapstructure:"quick_responses"`
	Redis          RedisConfig         `mapstructure:"redis"`
	Kafka          KafkaConfig         `mapstructure:"kafka"`
	Telegram       TelegramConfig      `mapstructure:"telegram"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"` // debug, release
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type            string `mapstructure:"type"` // sqlite, postgres, mysql
	DSN             string `mapstructure:"dsn"`
	CreateIfMissing bool   `mapstructure:"create_if_missing"` // mysql only
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	LogLevel        string `mapstructure:"log_level"` // silent, error, warn, info
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// AuthConfig 会话令牌配置
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	CookieName string        `mapstructure:"cookie_name"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	Issuer     string        `mapstructure:"issuer"`
}

// ChatConfig 聊天行为配置
type ChatConfig struct {
	WelcomeMessage   string `mapstructure:"welcome_message"`
	EndedMessage     string `mapstructure:"ended_message"`
	MessagePageLimit int    `mapstructure:"message_page_limit"`
	DashboardLimit   int    `mapstructure:"dashboard_limit"`
}

// PresenceConfig 客服在线判定
type PresenceConfig struct {
	StaleAfter                 time.Duration `mapstructure:"stale_after"`
	ExcludeStaleFromAssignment bool          `mapstructure:"exclude_stale_from_assignment"`
}

// UploadsConfig 附件上传
type UploadsConfig struct {
	Dir          string   `mapstructure:"dir"`
	MaxBytes     int64    `mapstructure:"max_bytes"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// QuickResponseConfig 快捷回复目录文件
type QuickResponseConfig struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// RedisConfig Redis 配置 (跨实例事件转发 + 限流)
type RedisConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	Addr      string          `mapstructure:"addr"`
	Password  string          `mapstructure:"password"`
	DB        int             `mapstructure:"db"`
	PoolSize  int             `mapstructure:"pool_size"`
	Channel   string          `mapstructure:"channel"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig 发送消息限流 (固定窗口)
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// KafkaConfig 聊天事件投递到 Kafka
type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
	SASL     struct {
		Enabled   bool   `mapstructure:"enabled"`
		Mechanism string `mapstructure:"mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
		Username  string `mapstructure:"username"`
		Password  string `mapstructure:"password"`
	} `mapstructure:"sasl"`
	TLS struct {
		Enabled            bool `mapstructure:"enabled"`
		InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
	} `mapstructure:"tls"`
}

// TelegramConfig 排队提醒
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Load 加载配置
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration, reading explicitPath instead of the
// default search locations when it is non-empty.
func LoadFrom(explicitPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// 优先级 (低 → 高): 默认值 → ~/.srcchat/ → 项目本地 → 环境变量
	v.SetConfigType("yaml")

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", explicitPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(HomeDir())
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read global config: %w", err)
			}
		}

		for _, localDir := range []string{"./config", "."} {
			localPath := filepath.Join(localDir, "config.yaml")
			if _, err := os.Stat(localPath); err == nil {
				v2 := viper.New()
				v2.SetConfigFile(localPath)
				if err := v2.ReadInConfig(); err != nil {
					return nil, fmt.Errorf("failed to read %s: %w", localPath, err)
				}
				_ = v.MergeConfigMap(v2.AllSettings())
				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.QuickResponses.File = expandHome(cfg.QuickResponses.File)
	cfg.Uploads.Dir = expandHome(cfg.Uploads.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandHome resolves a leading ~/ against the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set (env %s_AUTH_JWT_SECRET)", EnvPrefix)
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must be set when kafka is enabled")
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	// Server 默认值
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	// Database 默认值
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "srcchat.db")
	v.SetDefault("database.create_if_missing", true)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.log_level", "warn")

	// Log 默认值
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	// Auth 默认值
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.cookie_name", "src_session")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.issuer", "srcchat")

	// Chat 默认值
	v.SetDefault("chat.welcome_message", "Welcome to SRC live support. An agent will be with you shortly.")
	v.SetDefault("chat.ended_message", "This chat session has ended.")
	v.SetDefault("chat.message_page_limit", 200)
	v.SetDefault("chat.dashboard_limit", 100)

	// Presence 默认值
	v.SetDefault("presence.stale_after", "5m")
	v.SetDefault("presence.exclude_stale_from_assignment", false)

	// Uploads 默认值
	v.SetDefault("uploads.dir", "uploads/chat")
	v.SetDefault("uploads.max_bytes", 5<<20)
	v.SetDefault("uploads.allowed_types", []string{
		"image/jpeg", "image/png", "image/gif", "image/webp",
		"application/pdf", "text/plain",
	})

	// Quick responses 默认值
	v.SetDefault("quick_responses.file", "")
	v.SetDefault("quick_responses.watch", true)

	// Redis 默认值
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.channel", "srcchat:events")
	v.SetDefault("redis.rate_limit.enabled", true)
	v.SetDefault("redis.rate_limit.limit", 20)
	v.SetDefault("redis.rate_limit.window", "10s")

	// Kafka 默认值
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "srcchat.events")
	v.SetDefault("kafka.client_id", "srcchat")
	v.SetDefault("kafka.sasl.mechanism", "PLAIN")

	// Telegram 默认值
	v.SetDefault("telegram.enabled", false)
}
