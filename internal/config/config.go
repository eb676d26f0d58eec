package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"carlos-assist/internal/models"
	"carlos-assist/internal/resolution"
)

const (
	defaultAPIBind        = ":8080"
	defaultLogLevel       = "info"
	defaultDataDir        = "data"
	defaultThinkingDelay  = "1200ms"
	defaultSessionIdleTTL = "30m"
	defaultSubmitRate     = 2.0
	defaultSubmitBurst    = 5
)

// LoadConfig 加载配置文件 运行时覆盖文件存在时叠加在主配置之上
func LoadConfig(configFile string) (*models.Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	runtime, err := loadRuntimeConfig(configFile)
	if err != nil {
		return nil, err
	}
	applyRuntimeConfig(&config, runtime)
	applyDefaults(&config)
	return &config, nil
}

// Default 返回未提供配置文件时使用的默认配置
func Default() *models.Config {
	var config models.Config
	applyDefaults(&config)
	return &config
}

func applyDefaults(config *models.Config) {
	config.APIBind = strings.TrimSpace(config.APIBind)
	if config.APIBind == "" {
		config.APIBind = defaultAPIBind
	}
	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))
	if config.LogLevel == "" {
		config.LogLevel = defaultLogLevel
	}
	config.DataDir = strings.TrimSpace(config.DataDir)
	if config.DataDir == "" {
		config.DataDir = defaultDataDir
	}
	config.CatalogFile = strings.TrimSpace(config.CatalogFile)
	config.ThinkingDelay = strings.TrimSpace(config.ThinkingDelay)
	if config.ThinkingDelay == "" {
		config.ThinkingDelay = defaultThinkingDelay
	}
	config.SessionIdleTTL = strings.TrimSpace(config.SessionIdleTTL)
	if config.SessionIdleTTL == "" {
		config.SessionIdleTTL = defaultSessionIdleTTL
	}
	if config.StepLabels == "" {
		config.StepLabels = resolution.LabelsArticle
	}
	if config.SubmitRatePerSec == nil {
		rate := defaultSubmitRate
		config.SubmitRatePerSec = &rate
	}
	if config.SubmitBurst == 0 {
		config.SubmitBurst = defaultSubmitBurst
	}
}

// ValidateConfig 验证配置
func ValidateConfig(config *models.Config) error {
	if config == nil {
		return fmt.Errorf("配置不能为空")
	}
	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("日志级别不支持: %s", config.LogLevel)
	}
	if _, err := parseNonNegativeDuration("thinking_delay", config.ThinkingDelay); err != nil {
		return err
	}
	if _, err := parseNonNegativeDuration("session_idle_ttl", config.SessionIdleTTL); err != nil {
		return err
	}
	labels, err := resolution.ParseStepLabels(config.StepLabels)
	if err != nil {
		return fmt.Errorf("step_labels 配置无效: %w", err)
	}
	config.StepLabels = labels
	if config.SubmitRate() < 0 {
		return fmt.Errorf("submit_rate_per_sec 不能为负数")
	}
	if config.SubmitBurst < 0 {
		return fmt.Errorf("submit_burst 不能为负数")
	}
	return nil
}

// ThinkingDelay 返回回复前的模拟思考时长 配置已经校验过 解析失败时回退默认值
func ThinkingDelay(config *models.Config) time.Duration {
	return durationOrDefault(config.ThinkingDelay, defaultThinkingDelay)
}

// SessionIdleTTL 为 0 表示不回收空闲会话
func SessionIdleTTL(config *models.Config) time.Duration {
	return durationOrDefault(config.SessionIdleTTL, defaultSessionIdleTTL)
}

func durationOrDefault(raw, fallback string) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil && d >= 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

func parseNonNegativeDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s 格式无效: %s", key, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s 不能为负数: %s", key, raw)
	}
	return d, nil
}
