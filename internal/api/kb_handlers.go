// 本文件用于知识库与匹配 HTTP 处理器 条目对外只暴露展示字段 标签和诊断元数据始终隐藏

package api

import (
	"net/http"
	"strings"

	"carlos-assist/internal/kb"
	"carlos-assist/internal/match"
)

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !h.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"health": h.svc.HealthSnapshot(),
	})
}

func (h *handler) prometheusMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	h.metrics.Handler().ServeHTTP(w, r)
}

// kbArticles 列出目录条目 q 参数按标题和摘要做包含过滤
func (h *handler) kbArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !h.ready(w) {
		return
	}
	query := match.Normalize(r.URL.Query().Get("q"))
	items := make([]kb.Article, 0, h.svc.Catalog().Len())
	for _, article := range h.svc.Catalog().Articles() {
		if query != "" &&
			!strings.Contains(strings.ToLower(article.Title), query) &&
			!strings.Contains(strings.ToLower(article.Summary), query) {
			continue
		}
		items = append(items, article)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"items": items,
		"total": len(items),
	})
}

func (h *handler) kbArticleByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !h.ready(w) {
		return
	}
	parts := splitPath(r.URL.Path, "/api/kb/articles/")
	if len(parts) != 1 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "article id required"})
		return
	}
	article, err := h.svc.Catalog().Get(parts[0])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "article": article})
}

func (h *handler) suggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !h.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"items": h.svc.Catalog().Suggestions(),
	})
}

type matchRequest struct {
	Query string `json:"query" validate:"required,max=2000"`
}

// matchQuery 执行一次无会话匹配 未命中不是错误
func (h *handler) matchQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !h.ready(w) {
		return
	}
	var req matchRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	result, view := h.svc.Match(req.Query)
	h.metrics.ObserveQuery(result.Pass, 0)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"matched":    result.Matched(),
		"pass":       result.Pass,
		"hits":       result.Hits,
		"resolution": view,
	})
}
