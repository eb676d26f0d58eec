// 本文件用于自由文本问题到知识条目的关键字匹配
package match

import (
	"strings"

	"carlos-assist/internal/kb"
)

const (
	PassRule    = "rule"
	PassContent = "content"
	PassNone    = "none"
)

// Result 描述一次匹配的结论
// Article 为空表示没有条目达到最低相关度 调用方应回复澄清问题
type Result struct {
	Article *kb.Article `json:"article,omitempty"`
	Pass    string      `json:"pass"`
	Hits    int         `json:"hits"`
	Query   string      `json:"query"`
}

func (r Result) Matched() bool {
	return r.Article != nil
}

// Matcher 负责把问题映射到单个最佳条目
// 触发短语和兜底字段都在初始化阶段归一化 运行期只做子串判断
type Matcher struct {
	catalog  *kb.Catalog
	rules    []compiledRule
	articles []searchable
}

type compiledRule struct {
	articleID string
	triggers  []string
}

type searchable struct {
	articleID string
	fields    []string
}

// NewMatcher 基于目录构建匹配器
// 规则顺序保持目录声明顺序 这是命中数相同时的裁决依据
func NewMatcher(catalog *kb.Catalog) *Matcher {
	m := &Matcher{catalog: catalog}
	for _, rule := range catalog.Rules() {
		triggers := make([]string, 0, len(rule.Triggers))
		for _, trigger := range rule.Triggers {
			if t := Normalize(trigger); t != "" {
				triggers = append(triggers, t)
			}
		}
		m.rules = append(m.rules, compiledRule{articleID: rule.ArticleID, triggers: triggers})
	}
	for _, article := range catalog.Articles() {
		fields := []string{Normalize(article.Title), Normalize(article.Summary), Normalize(article.Intent)}
		for _, tag := range article.Tags {
			fields = append(fields, Normalize(tag))
		}
		m.articles = append(m.articles, searchable{articleID: article.ID, fields: fields})
	}
	return m
}

// Normalize 只做小写和首尾空白裁剪 不分词也不做模糊处理
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Match 先按意图规则计数命中 全部为零时再扫描条目内容
// 纯子串语义：labdisabled 不会命中包含空格的 lab disabled
func (m *Matcher) Match(query string) Result {
	q := Normalize(query)
	if m == nil || q == "" {
		return Result{Pass: PassNone, Query: q}
	}
	bestIdx, bestHits := -1, 0
	for idx, rule := range m.rules {
		hits := countHits(q, rule.triggers)
		// 严格大于 保证同分时先声明的规则胜出
		if hits > bestHits {
			bestIdx, bestHits = idx, hits
		}
	}
	if bestIdx >= 0 {
		if article, err := m.catalog.Get(m.rules[bestIdx].articleID); err == nil {
			return Result{Article: &article, Pass: PassRule, Hits: bestHits, Query: q}
		}
	}
	for _, item := range m.articles {
		if !containsQuery(item.fields, q) {
			continue
		}
		if article, err := m.catalog.Get(item.articleID); err == nil {
			return Result{Article: &article, Pass: PassContent, Query: q}
		}
	}
	return Result{Pass: PassNone, Query: q}
}

func countHits(query string, triggers []string) int {
	hits := 0
	for _, trigger := range triggers {
		if strings.Contains(query, trigger) {
			hits++
		}
	}
	return hits
}

func containsQuery(fields []string, query string) bool {
	for _, field := range fields {
		if field != "" && strings.Contains(field, query) {
			return true
		}
	}
	return false
}
