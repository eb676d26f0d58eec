// 本文件用于运行时覆盖配置的读取
// 运维可以在 <config>.runtime.yaml 中临时调整日志级别 思考延迟和步骤标题模式 不必改动主配置
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"carlos-assist/internal/models"
)

type runtimeConfig struct {
	LogLevel             *string  `yaml:"log_level"`
	ThinkingDelay        *string  `yaml:"thinking_delay"`
	SessionIdleTTL       *string  `yaml:"session_idle_ttl"`
	StepLabels           *string  `yaml:"step_labels"`
	SubmitRatePerSec     *float64 `yaml:"submit_rate_per_sec"`
	SubmitBurst          *int     `yaml:"submit_burst"`
	TicketArchiveEnabled *bool    `yaml:"ticket_archive_enabled"`
}

func runtimeConfigPath(configPath string) string {
	cleaned := strings.TrimSpace(configPath)
	if cleaned == "" {
		return ""
	}
	ext := filepath.Ext(cleaned)
	if ext == "" {
		return cleaned + ".runtime.yaml"
	}
	return strings.TrimSuffix(cleaned, ext) + ".runtime" + ext
}

func loadRuntimeConfig(configPath string) (*runtimeConfig, error) {
	path := runtimeConfigPath(configPath)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取运行时配置文件失败: %s: %w", path, err)
	}
	var cfg runtimeConfig
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析运行时配置文件失败: %s: %w", path, err)
	}
	return &cfg, nil
}

func applyRuntimeConfig(cfg *models.Config, runtime *runtimeConfig) {
	if cfg == nil || runtime == nil {
		return
	}
	if runtime.LogLevel != nil {
		cfg.LogLevel = strings.TrimSpace(*runtime.LogLevel)
	}
	if runtime.ThinkingDelay != nil {
		cfg.ThinkingDelay = strings.TrimSpace(*runtime.ThinkingDelay)
	}
	if runtime.SessionIdleTTL != nil {
		cfg.SessionIdleTTL = strings.TrimSpace(*runtime.SessionIdleTTL)
	}
	if runtime.StepLabels != nil {
		cfg.StepLabels = strings.TrimSpace(*runtime.StepLabels)
	}
	if runtime.SubmitRatePerSec != nil {
		rate := *runtime.SubmitRatePerSec
		cfg.SubmitRatePerSec = &rate
	}
	if runtime.SubmitBurst != nil {
		cfg.SubmitBurst = *runtime.SubmitBurst
	}
	if runtime.TicketArchiveEnabled != nil {
		enabled := *runtime.TicketArchiveEnabled
		cfg.TicketArchiveEnabled = &enabled
	}
}
