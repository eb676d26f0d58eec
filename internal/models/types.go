// 本文件用于定义配置与运行期共享模型
package models

// Config 配置结构体
type Config struct {
	APIBind              string   `yaml:"api_bind"` // API 服务监听地址
	APICORSOrigins       string   `yaml:"api_cors_origins"`
	LogLevel             string   `yaml:"log_level"`
	LogFile              string   `yaml:"log_file"`
	DataDir              string   `yaml:"data_dir"`     // sqlite 归档目录
	CatalogFile          string   `yaml:"catalog_file"` // 为空时使用内置目录
	ThinkingDelay        string   `yaml:"thinking_delay"`
	SessionIdleTTL       string   `yaml:"session_idle_ttl"`
	StepLabels           string   `yaml:"step_labels"`
	SubmitRatePerSec     *float64 `yaml:"submit_rate_per_sec"` // 显式 0 表示不限流
	SubmitBurst          int      `yaml:"submit_burst"`
	TicketArchiveEnabled *bool    `yaml:"ticket_archive_enabled"`
}

// ArchiveEnabled 未配置时默认开启工单归档
func (c *Config) ArchiveEnabled() bool {
	if c == nil || c.TicketArchiveEnabled == nil {
		return true
	}
	return *c.TicketArchiveEnabled
}

// SubmitRate 返回每个会话每秒允许的提交次数 0 表示不限流
func (c *Config) SubmitRate() float64 {
	if c == nil || c.SubmitRatePerSec == nil {
		return 0
	}
	return *c.SubmitRatePerSec
}

// ProcessStats 表示健康检查返回的进程资源指标
type ProcessStats struct {
	PID           int32   `json:"pid"`
	RSSBytes      uint64  `json:"rssBytes"`
	RSSLabel      string  `json:"rss"`
	CPUPercent    float64 `json:"cpuPercent"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds int64   `json:"uptimeSeconds"`
	Uptime        string  `json:"uptime"`
	HostMemPct    float64 `json:"hostMemPct"`
}

// HealthSnapshot 表示健康检查返回的运行指标
type HealthSnapshot struct {
	Articles       int          `json:"articles"`
	ActiveSessions int          `json:"activeSessions"`
	OpenPanels     int          `json:"openPanels"`
	ArchiveEnabled bool         `json:"archiveEnabled"`
	Process        ProcessStats `json:"process"`
}
