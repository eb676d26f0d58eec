// 本文件用于知识库目录的加载与校验 目录在进程启动时加载一次 运行期只读

// 文件职责：解析 YAML 目录 归一化字段并校验条目与规则的引用完整性
// 关键路径：Parse -> New -> validate 任一环节失败都不会返回半成品目录
// 边界与容错：对外只暴露副本 调用方无法改写目录内部状态

package kb

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Catalog 是不可变的知识库快照
type Catalog struct {
	articles    []Article
	index       map[string]int
	rules       []IntentRule
	suggestions []string
}

// LoadDefault 加载随二进制一起发布的默认目录
func LoadDefault() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// LoadFile 从磁盘读取目录 path 为空时回退到默认目录
func LoadFile(path string) (*Catalog, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return LoadDefault()
	}
	data, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("read knowledge catalog failed: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return New(file.Articles, file.Rules, file.Suggestions)
}

// New 统一负责目录构建
// 入参会被深拷贝并归一化 之后任何外部修改都不会影响目录
func New(articles []Article, rules []IntentRule, suggestions []string) (*Catalog, error) {
	c := &Catalog{
		articles:    make([]Article, 0, len(articles)),
		index:       make(map[string]int, len(articles)),
		rules:       make([]IntentRule, 0, len(rules)),
		suggestions: normalizeList(suggestions, false),
	}
	for i, raw := range articles {
		article, err := normalizeArticle(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: article #%d: %v", ErrInvalidCatalog, i+1, err)
		}
		if _, ok := c.index[article.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate article id %s", ErrInvalidCatalog, article.ID)
		}
		c.index[article.ID] = len(c.articles)
		c.articles = append(c.articles, article)
	}
	for _, article := range c.articles {
		for _, related := range article.Diagnostics.Related {
			if _, ok := c.index[related]; !ok {
				return nil, fmt.Errorf("%w: article %s references unknown article %s", ErrInvalidCatalog, article.ID, related)
			}
		}
	}
	for i, raw := range rules {
		target := strings.TrimSpace(raw.ArticleID)
		if _, ok := c.index[target]; !ok {
			return nil, fmt.Errorf("%w: rule #%d targets unknown article %q", ErrInvalidCatalog, i+1, target)
		}
		triggers := normalizeList(raw.Triggers, true)
		if len(triggers) == 0 {
			return nil, fmt.Errorf("%w: rule #%d for %s has no triggers", ErrInvalidCatalog, i+1, target)
		}
		c.rules = append(c.rules, IntentRule{ArticleID: target, Triggers: triggers})
	}
	return c, nil
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.articles)
}

// Articles 按声明顺序返回全部条目的副本
func (c *Catalog) Articles() []Article {
	if c == nil {
		return nil
	}
	out := make([]Article, 0, len(c.articles))
	for _, article := range c.articles {
		out = append(out, cloneArticle(article))
	}
	return out
}

func (c *Catalog) Get(id string) (Article, error) {
	if c == nil {
		return Article{}, ErrNotFound
	}
	idx, ok := c.index[strings.TrimSpace(id)]
	if !ok {
		return Article{}, ErrNotFound
	}
	return cloneArticle(c.articles[idx]), nil
}

// Rules 按声明顺序返回意图规则 触发短语已经是小写形式
func (c *Catalog) Rules() []IntentRule {
	if c == nil {
		return nil
	}
	out := make([]IntentRule, 0, len(c.rules))
	for _, rule := range c.rules {
		out = append(out, IntentRule{
			ArticleID: rule.ArticleID,
			Triggers:  append([]string(nil), rule.Triggers...),
		})
	}
	return out
}

func (c *Catalog) Suggestions() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.suggestions...)
}

func normalizeArticle(raw Article) (Article, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return Article{}, fmt.Errorf("id is required")
	}
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return Article{}, fmt.Errorf("%s: title is required", id)
	}
	if len(raw.Steps) == 0 {
		return Article{}, fmt.Errorf("%s: at least one step is required", id)
	}
	steps := make([]Step, 0, len(raw.Steps))
	for i, step := range raw.Steps {
		action := strings.TrimSpace(step.Action)
		if action == "" {
			return Article{}, fmt.Errorf("%s: step %d has no action", id, i+1)
		}
		steps = append(steps, Step{Action: action, Detail: strings.TrimSpace(step.Detail)})
	}
	priority, err := normalizePriority(raw.Diagnostics.Priority)
	if err != nil {
		return Article{}, fmt.Errorf("%s: %v", id, err)
	}
	return Article{
		ID:      id,
		Title:   title,
		Summary: strings.TrimSpace(raw.Summary),
		Intent:  strings.TrimSpace(raw.Intent),
		Causes:  normalizeList(raw.Causes, false),
		Steps:   steps,
		Tags:    normalizeList(raw.Tags, true),
		Diagnostics: Diagnostics{
			RootCauseTags: normalizeList(raw.Diagnostics.RootCauseTags, true),
			Priority:      priority,
			Related:       normalizeList(raw.Diagnostics.Related, false),
		},
	}, nil
}

func normalizePriority(raw string) (string, error) {
	val := strings.ToLower(strings.TrimSpace(raw))
	switch val {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return val, nil
	case "":
		return PriorityMedium, nil
	default:
		return "", fmt.Errorf("unsupported priority %q", raw)
	}
}

// normalizeList 去掉空白项并按首次出现去重 保持原有顺序
func normalizeList(values []string, lower bool) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		v := strings.TrimSpace(value)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func cloneArticle(a Article) Article {
	out := a
	out.Causes = append([]string(nil), a.Causes...)
	out.Steps = append([]Step(nil), a.Steps...)
	out.Tags = append([]string(nil), a.Tags...)
	out.Diagnostics.RootCauseTags = append([]string(nil), a.Diagnostics.RootCauseTags...)
	out.Diagnostics.Related = append([]string(nil), a.Diagnostics.Related...)
	return out
}
