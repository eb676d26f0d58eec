package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carlos-assist/internal/resolution"
)

// 覆盖配置加载流程
func TestLoadConfig(t *testing.T) {
	configPath := writeTempConfig(t, `
api_bind: ":9000"
api_cors_origins: "http://localhost:5173"
log_level: "debug"
log_file: "/var/log/carlos.log"
data_dir: "/srv/carlos"
catalog_file: "/etc/carlos/catalog.yaml"
thinking_delay: "500ms"
session_idle_ttl: "10m"
step_labels: "ordinal"
submit_rate_per_sec: 4
submit_burst: 8
ticket_archive_enabled: false
`)

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if config.APIBind != ":9000" {
		t.Errorf("APIBind 期望 :9000, 实际 %s", config.APIBind)
	}
	if config.APICORSOrigins != "http://localhost:5173" {
		t.Errorf("APICORSOrigins 期望 http://localhost:5173, 实际 %s", config.APICORSOrigins)
	}
	if config.LogLevel != "debug" {
		t.Errorf("LogLevel 期望 debug, 实际 %s", config.LogLevel)
	}
	if config.DataDir != "/srv/carlos" {
		t.Errorf("DataDir 期望 /srv/carlos, 实际 %s", config.DataDir)
	}
	if config.CatalogFile != "/etc/carlos/catalog.yaml" {
		t.Errorf("CatalogFile 期望 /etc/carlos/catalog.yaml, 实际 %s", config.CatalogFile)
	}
	if got := ThinkingDelay(config); got != 500*time.Millisecond {
		t.Errorf("ThinkingDelay 期望 500ms, 实际 %s", got)
	}
	if got := SessionIdleTTL(config); got != 10*time.Minute {
		t.Errorf("SessionIdleTTL 期望 10m, 实际 %s", got)
	}
	if config.StepLabels != resolution.LabelsOrdinal {
		t.Errorf("StepLabels 期望 ordinal, 实际 %s", config.StepLabels)
	}
	if config.SubmitRate() != 4 || config.SubmitBurst != 8 {
		t.Errorf("限流配置不符: rate=%v burst=%d", config.SubmitRate(), config.SubmitBurst)
	}
	if config.ArchiveEnabled() {
		t.Errorf("ArchiveEnabled 期望 false")
	}
	if err := ValidateConfig(config); err != nil {
		t.Errorf("配置应当合法: %v", err)
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	configPath := writeTempConfig(t, "log_level: \"\"\n")

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if config.APIBind != defaultAPIBind {
		t.Errorf("APIBind 默认值不符: %s", config.APIBind)
	}
	if config.LogLevel != "info" {
		t.Errorf("LogLevel 默认值不符: %s", config.LogLevel)
	}
	if config.DataDir != defaultDataDir {
		t.Errorf("DataDir 默认值不符: %s", config.DataDir)
	}
	if got := ThinkingDelay(config); got != 1200*time.Millisecond {
		t.Errorf("ThinkingDelay 默认值应为 1200ms, 实际 %s", got)
	}
	if got := SessionIdleTTL(config); got != 30*time.Minute {
		t.Errorf("SessionIdleTTL 默认值应为 30m, 实际 %s", got)
	}
	if config.StepLabels != resolution.LabelsArticle {
		t.Errorf("StepLabels 默认值应为 article, 实际 %s", config.StepLabels)
	}
	if !config.ArchiveEnabled() {
		t.Errorf("工单归档默认应开启")
	}
	if err := ValidateConfig(config); err != nil {
		t.Errorf("默认配置应当合法: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("期望配置文件不存在时返回错误")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := ValidateConfig(Default()); err != nil {
		t.Fatalf("默认配置应当合法: %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{name: "坏的思考延迟", content: "thinking_delay: \"soon\"\n", want: "thinking_delay"},
		{name: "负的思考延迟", content: "thinking_delay: \"-1s\"\n", want: "thinking_delay"},
		{name: "坏的空闲时长", content: "session_idle_ttl: \"forever\"\n", want: "session_idle_ttl"},
		{name: "未知步骤标题模式", content: "step_labels: \"roman\"\n", want: "step_labels"},
		{name: "负的限流速率", content: "submit_rate_per_sec: -1\n", want: "submit_rate_per_sec"},
		{name: "负的突发数", content: "submit_burst: -2\n", want: "submit_burst"},
		{name: "未知日志级别", content: "log_level: \"loud\"\n", want: "日志级别"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := LoadConfig(writeTempConfig(t, tc.content))
			if err != nil {
				t.Fatalf("加载配置失败: %v", err)
			}
			err = ValidateConfig(config)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("期望包含 %q 的错误, 实际 %v", tc.want, err)
			}
		})
	}
}

func TestRuntimeConfigOverrides(t *testing.T) {
	configPath := writeTempConfig(t, `
log_level: "info"
thinking_delay: "2s"
step_labels: "article"
`)
	runtimePath := runtimeConfigPath(configPath)
	if !strings.HasSuffix(runtimePath, ".runtime.yaml") {
		t.Fatalf("运行时配置路径不符: %s", runtimePath)
	}
	content := `
log_level: "debug"
thinking_delay: "0s"
step_labels: "ordinal"
ticket_archive_enabled: false
`
	if err := os.WriteFile(runtimePath, []byte(content), 0o644); err != nil {
		t.Fatalf("写入运行时配置失败: %v", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if config.LogLevel != "debug" {
		t.Errorf("LogLevel 应被覆盖为 debug, 实际 %s", config.LogLevel)
	}
	if got := ThinkingDelay(config); got != 0 {
		t.Errorf("ThinkingDelay 应被覆盖为 0, 实际 %s", got)
	}
	if config.StepLabels != resolution.LabelsOrdinal {
		t.Errorf("StepLabels 应被覆盖为 ordinal, 实际 %s", config.StepLabels)
	}
	if config.ArchiveEnabled() {
		t.Errorf("ArchiveEnabled 应被覆盖为 false")
	}
}

func TestRuntimeConfigRejectsUnknownKeys(t *testing.T) {
	configPath := writeTempConfig(t, "log_level: info\n")
	if err := os.WriteFile(runtimeConfigPath(configPath), []byte("watch_dir: /tmp\n"), 0o644); err != nil {
		t.Fatalf("写入运行时配置失败: %v", err)
	}
	if _, err := LoadConfig(configPath); err == nil {
		t.Fatal("期望运行时配置包含未知字段时返回错误")
	}
}

func TestRuntimeConfigPath(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"config.yaml":      "config.runtime.yaml",
		"/etc/carlos/conf": "/etc/carlos/conf.runtime.yaml",
	}
	for in, want := range cases {
		if got := runtimeConfigPath(in); got != want {
			t.Errorf("runtimeConfigPath(%q) 期望 %q, 实际 %q", in, want, got)
		}
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入临时文件失败: %v", err)
	}
	return path
}

func TestSubmitRateZeroDisablesLimit(t *testing.T) {
	config, err := LoadConfig(writeTempConfig(t, "submit_rate_per_sec: 0\n"))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if err := ValidateConfig(config); err != nil {
		t.Fatalf("显式 0 应当合法: %v", err)
	}
	if config.SubmitRate() != 0 {
		t.Errorf("显式 0 应当保留, 实际 %v", config.SubmitRate())
	}

	config, err = LoadConfig(writeTempConfig(t, "log_level: info\n"))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if config.SubmitRate() != defaultSubmitRate {
		t.Errorf("未配置时应使用默认速率 %v, 实际 %v", defaultSubmitRate, config.SubmitRate())
	}
}
