// 本文件用于指标接口测试 确保 Prometheus 暴露格式和关键字段稳定

package api

import (
	"net/http"
	"strings"
	"testing"
)

func TestPrometheusMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/assist/match", map[string]any{"query": "send to lab"})
	env.do(t, http.MethodGet, "/api/kb/articles/nope", nil)

	rr := env.do(t, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	contentType := rr.Header().Get("Content-Type")
	if !strings.Contains(contentType, "text/plain") {
		t.Fatalf("unexpected content-type: %s", contentType)
	}
	body := rr.Body.String()
	for _, token := range []string{
		`carlos_match_queries_total{pass="rule"} 1`,
		`carlos_api_requests_total{class="4xx",route="kb_articles"} 1`,
		`carlos_api_requests_total{class="2xx",route="assist_match"} 1`,
	} {
		if !strings.Contains(body, token) {
			t.Fatalf("metrics body missing %q: %s", token, body)
		}
	}
}

func TestRouteGroup(t *testing.T) {
	cases := map[string]string{
		"/":                            "root",
		"/metrics":                     "metrics",
		"/api/health":                  "health",
		"/api/assist/sessions/abc/x":   "assist_sessions",
		"/api/kb/articles/send-to-lab": "kb_articles",
		"/favicon.ico":                 "other",
	}
	for in, want := range cases {
		if got := routeGroup(in); got != want {
			t.Fatalf("routeGroup(%q)=%s want %s", in, got, want)
		}
	}
}
