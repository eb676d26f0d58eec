// 本文件用于把命中的知识条目转换为可展示 可交互的处置视图

package resolution

import (
	"fmt"
	"strings"

	"carlos-assist/internal/kb"
)

const (
	LabelsArticle = "article"
	LabelsOrdinal = "ordinal"
)

// 置信度只来源于条目优先级 不引入其他信号
var confidenceByPriority = map[string]float64{
	kb.PriorityHigh:   0.95,
	kb.PriorityMedium: 0.85,
	kb.PriorityLow:    0.75,
}

const fallbackConfidence = 0.75

// View 是命中条目的展示形态 每次命中都重新生成 不做持久化
type View struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Intent       string   `json:"intent"`
	IntentPrompt string   `json:"intentPrompt"`
	Causes       []string `json:"causes"`
	Steps        []Step   `json:"steps"`
	Tags         []string `json:"tags"`
	Confidence   float64  `json:"confidence"`
}

type Step struct {
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
}

// Options 控制步骤标题的呈现方式
// 默认保留条目自身的步骤标题 ordinal 模式改用 Step N 通用序号
type Options struct {
	StepLabels string
}

// ParseStepLabels 在配置加载阶段校验步骤标题模式
func ParseStepLabels(raw string) (string, error) {
	val := strings.ToLower(strings.TrimSpace(raw))
	switch val {
	case "", LabelsArticle:
		return LabelsArticle, nil
	case LabelsOrdinal:
		return LabelsOrdinal, nil
	default:
		return "", fmt.Errorf("unsupported step label mode %q", raw)
	}
}

// Adapt 是纯函数 对合法条目总能产出视图
func Adapt(article kb.Article, opts Options) View {
	steps := make([]Step, 0, len(article.Steps))
	for i, step := range article.Steps {
		if opts.StepLabels == LabelsOrdinal {
			detail := step.Action
			if step.Detail != "" {
				detail = step.Action + ": " + step.Detail
			}
			steps = append(steps, Step{Action: fmt.Sprintf("Step %d", i+1), Detail: detail})
			continue
		}
		steps = append(steps, Step{Action: step.Action, Detail: step.Detail})
	}
	return View{
		ID:           article.ID,
		Title:        article.Title,
		Intent:       article.Intent,
		IntentPrompt: intentPrompt(article.Intent),
		Causes:       append([]string{}, article.Causes...),
		Steps:        steps,
		Tags:         append([]string{}, article.Tags...),
		Confidence:   ConfidenceFor(article.Diagnostics.Priority),
	}
}

func ConfidenceFor(priority string) float64 {
	if val, ok := confidenceByPriority[strings.ToLower(strings.TrimSpace(priority))]; ok {
		return val
	}
	return fallbackConfidence
}

func intentPrompt(intent string) string {
	trimmed := strings.TrimSpace(intent)
	if trimmed == "" {
		return ""
	}
	return "You want to: " + trimmed
}
