package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string                `yaml:"env"`
	Gateway GatewayConfig         `yaml:"gateway"`
	Feed    FeedConfig            `yaml:"feed"`
	Views   map[string]ViewConfig `yaml:"views"`
	Logger  LoggerConfig          `yaml:"logger"`
	Metrics MetricsConfig         `yaml:"metrics"`
}

type GatewayConfig struct {
	BaseURL   string  `yaml:"baseURL"`
	WSURL     string  `yaml:"wsURL"`
	UserID    string  `yaml:"userID"`
	RestRate  float64 `yaml:"restRate"`  // REST 限流：每秒令牌数
	RestBurst int     `yaml:"restBurst"` // REST 限流：最大突发令牌数
}

// FeedConfig 行情订阅配置。
type FeedConfig struct {
	Tokens        []string `yaml:"tokens"`        // 行情卡片固定关注的 token
	BackoffMs     int      `yaml:"backoffMs"`     // 重连退避基数（毫秒）
	BackoffMaxMs  int      `yaml:"backoffMaxMs"`  // 重连退避上限（毫秒）
	FollowOrders  bool     `yaml:"followOrders"`  // 订阅集是否并入订单引用的 token
	RefreshSecond int      `yaml:"refreshSecond"` // FollowOrders 时订阅集重算周期（秒）
}

// ViewConfig 每个订单视图的独立轮询周期。
type ViewConfig struct {
	IntervalMs int `yaml:"intervalMs"`
}

// LoggerConfig 日志配置（映射到 infrastructure/logger）。
type LoggerConfig struct {
	Level      string   `yaml:"level"`
	Outputs    []string `yaml:"outputs"`
	OutputFile string   `yaml:"output_file"`
	ErrorFile  string   `yaml:"error_file"`
	Format     string   `yaml:"format"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 留空则关闭
}

// Interval 返回视图轮询周期。
func (v ViewConfig) Interval() time.Duration {
	return time.Duration(v.IntervalMs) * time.Millisecond
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("TT_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("TT_WS_URL"); v != "" {
		cfg.Gateway.WSURL = v
	}
	if v := os.Getenv("TT_USER_ID"); v != "" {
		cfg.Gateway.UserID = v
	}
	return cfg, Validate(cfg)
}
