package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"qq-bridge/internal/qzone"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 环境变量
const (
	EnvToken    = "QQ_BOT_TOKEN"
	EnvBaseURL  = "QQ_API_BASE_URL"
	EnvLogLevel = "QQ_BRIDGE_LOG_LEVEL"
	EnvHTTPAddr = "QQ_BRIDGE_HTTP_ADDR"
	EnvMySQLPwd = "QQ_BRIDGE_MYSQL_PASSWORD"
)

const (
	DefaultPublishURL   = qzone.DefaultPublishURL
	DefaultCookieDomain = qzone.DefaultCookieDomain
	DefaultTimeout      = 30
	DefaultRecentCalls  = 64
	DefaultHTTPAddr     = "127.0.0.1:8765"
)

// Config 全局配置结构
type Config struct {
	App    AppConfig    `yaml:"app"`
	OneBot OneBotConfig `yaml:"onebot"`
	QZone  QZoneConfig  `yaml:"qzone"`
	Server ServerConfig `yaml:"server"`
	Audit  AuditConfig  `yaml:"audit"`
	Debug  DebugConfig  `yaml:"debug"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"` // 为空则只输出到 stderr
}

// OneBotConfig 网关配置，单次调用的 _context 优先于这里
type OneBotConfig struct {
	BaseURL string `yaml:"base_url"` // http(s):// 或 ws(s)://
	Token   string `yaml:"token"`
	Timeout int    `yaml:"timeout"` // 秒
}

// QZoneConfig 说说发布配置
type QZoneConfig struct {
	PublishURL         string `yaml:"publish_url"`
	CookieDomain       string `yaml:"cookie_domain"`
	Timeout            int    `yaml:"timeout"`              // 秒
	InsecureSkipVerify *bool  `yaml:"insecure_skip_verify"` // 默认 true，只作用于发布请求
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AuditConfig 调用审计配置
type AuditConfig struct {
	Enabled bool        `yaml:"enabled"`
	MySQL   MySQLConfig `yaml:"mysql"`
}

// MySQLConfig MySQL 数据库配置
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
}

// DebugConfig 调试配置
type DebugConfig struct {
	ShowToolCalls bool `yaml:"show_tool_calls"` // 显示工具调用
	RecentCalls   int  `yaml:"recent_calls"`    // 最近调用缓冲区大小
}

// Load 加载配置。配置文件和 .env 都是可选的，通常只靠环境变量启动
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		}
	}

	// 从环境变量覆盖
	if token := os.Getenv(EnvToken); token != "" {
		cfg.OneBot.Token = token
	}
	if baseURL := os.Getenv(EnvBaseURL); baseURL != "" {
		cfg.OneBot.BaseURL = baseURL
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.App.LogLevel = level
	}
	if addr := os.Getenv(EnvHTTPAddr); addr != "" {
		cfg.Server.Addr = addr
		cfg.Server.Enabled = true
	}
	if password := os.Getenv(EnvMySQLPwd); password != "" {
		cfg.Audit.MySQL.Password = password
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.OneBot.Timeout <= 0 {
		c.OneBot.Timeout = DefaultTimeout
	}
	if c.QZone.PublishURL == "" {
		c.QZone.PublishURL = DefaultPublishURL
	}
	if c.QZone.CookieDomain == "" {
		c.QZone.CookieDomain = DefaultCookieDomain
	}
	if c.QZone.Timeout <= 0 {
		c.QZone.Timeout = DefaultTimeout
	}
	if c.QZone.InsecureSkipVerify == nil {
		skip := true
		c.QZone.InsecureSkipVerify = &skip
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultHTTPAddr
	}
	if c.Debug.RecentCalls <= 0 {
		c.Debug.RecentCalls = DefaultRecentCalls
	}
	mysqlCfg := &c.Audit.MySQL
	if mysqlCfg.Host == "" {
		mysqlCfg.Host = "127.0.0.1"
	}
	if mysqlCfg.Port == 0 {
		mysqlCfg.Port = 3306
	}
	if mysqlCfg.DBName == "" {
		mysqlCfg.DBName = "qq_bridge"
	}
}

// GatewayTimeout 网关请求超时
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.OneBot.Timeout) * time.Second
}

// QZoneTimeout 发布请求超时
func (c *Config) QZoneTimeout() time.Duration {
	return time.Duration(c.QZone.Timeout) * time.Second
}

// DSN 审计库连接串
func (m MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		m.User, m.Password, m.Host, m.Port, m.DBName)
}
