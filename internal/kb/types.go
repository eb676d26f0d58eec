// 本文件用于知识库领域类型定义 统一约束条目 意图规则与目录结构

package kb

import "errors"

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

var (
	ErrNotFound       = errors.New("knowledge article not found")
	ErrInvalidCatalog = errors.New("invalid knowledge catalog")
)

// Article 是一条静态知识条目 描述一个已知问题及其处置步骤
// Tags 与 Diagnostics 只用于匹配和升级工单 不对终端用户展示
type Article struct {
	ID          string      `yaml:"id" json:"id"`
	Title       string      `yaml:"title" json:"title"`
	Summary     string      `yaml:"summary,omitempty" json:"summary,omitempty"`
	Intent      string      `yaml:"intent" json:"intent"`
	Causes      []string    `yaml:"causes" json:"causes"`
	Steps       []Step      `yaml:"steps" json:"steps"`
	Tags        []string    `yaml:"tags,omitempty" json:"-"`
	Diagnostics Diagnostics `yaml:"diagnostics" json:"-"`
}

type Step struct {
	Action string `yaml:"action" json:"action"`
	Detail string `yaml:"detail,omitempty" json:"detail,omitempty"`
}

// Diagnostics 是条目的隐藏诊断元数据
type Diagnostics struct {
	RootCauseTags []string `yaml:"root_cause_tags,omitempty" json:"rootCauseTags,omitempty"`
	Priority      string   `yaml:"priority" json:"priority"`
	Related       []string `yaml:"related,omitempty" json:"related,omitempty"`
}

// IntentRule 把一组触发短语映射到目标条目
// 规则的声明顺序就是命中数相同时的裁决顺序
type IntentRule struct {
	ArticleID string   `yaml:"article" json:"articleId"`
	Triggers  []string `yaml:"triggers" json:"triggers"`
}

type catalogFile struct {
	Suggestions []string     `yaml:"suggestions"`
	Articles    []Article    `yaml:"articles"`
	Rules       []IntentRule `yaml:"rules"`
}
