package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"carlos-assist/internal/escalation"
	"carlos-assist/internal/kb"
	"carlos-assist/internal/logger"
	"carlos-assist/internal/metrics"
	"carlos-assist/internal/models"
	"carlos-assist/internal/resolution"
	"carlos-assist/internal/service"
	"carlos-assist/internal/session"
	"carlos-assist/internal/store"
)

const maxBodyBytes = 64 * 1024

// Server wraps the HTTP API server.
type Server struct {
	httpServer *http.Server
}

type handler struct {
	cfg      *models.Config
	svc      *service.AssistService
	metrics  *metrics.Collector
	validate *validator.Validate
	limiter  *submitLimiter
}

// NewServer builds the HTTP server for the assistant widget and console.
func NewServer(cfg *models.Config, svc *service.AssistService, collector *metrics.Collector) *Server {
	if collector == nil {
		collector = metrics.Global()
	}
	h := newHandler(cfg, svc, collector)
	srv := &http.Server{
		Addr:         cfg.APIBind,
		Handler:      h.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return &Server{httpServer: srv}
}

func newHandler(cfg *models.Config, svc *service.AssistService, collector *metrics.Collector) *handler {
	h := &handler{
		cfg:      cfg,
		svc:      svc,
		metrics:  collector,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limiter:  newSubmitLimiter(cfg.SubmitRate(), cfg.SubmitBurst),
	}
	if svc != nil {
		// 会话无论以何种方式关闭 限流器都随之释放
		svc.OnSessionClosed(h.limiter.Forget)
	}
	return h
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", h.health)
	mux.HandleFunc("/metrics", h.prometheusMetrics)
	mux.HandleFunc("/api/kb/articles", h.kbArticles)
	mux.HandleFunc("/api/kb/articles/", h.kbArticleByID)
	mux.HandleFunc("/api/assist/suggestions", h.suggestions)
	mux.HandleFunc("/api/assist/match", h.matchQuery)
	mux.HandleFunc("/api/assist/sessions", h.sessions)
	mux.HandleFunc("/api/assist/sessions/", h.sessionByID)
	mux.HandleFunc("/api/assist/panels", h.panels)
	mux.HandleFunc("/api/assist/panels/", h.panelByID)
	mux.HandleFunc("/api/assist/escalations", h.escalations)
	mux.HandleFunc("/api/assist/escalations/", h.escalationByRef)
	mux.HandleFunc("/api/assist/stats", h.stats)
	return withCORS(h.cfg, h.withMetrics(mux))
}

// Serve blocks until the server stops; a graceful shutdown returns nil.
func (s *Server) Serve() error {
	logger.Info("API 服务监听 %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (h *handler) ready(w http.ResponseWriter) bool {
	if h.svc == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "assistant is not ready"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError 把领域错误映射为 HTTP 状态码
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, kb.ErrNotFound),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, resolution.ErrPanelNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrEmptyMessage),
		errors.Is(err, resolution.ErrStepOutOfRange),
		errors.Is(err, escalation.ErrEmptyDescription),
		errors.Is(err, escalation.ErrResolutionMismatch),
		errors.Is(err, escalation.ErrInvalidTicket):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, service.ErrArchiveDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON 解码并校验请求体 失败时已经写回 400
func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationMessage(err)})
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid payload"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+" failed "+fe.Tag())
	}
	return "invalid payload: " + strings.Join(fields, "; ")
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

// splitPath 去掉前缀后按 / 拆分 忽略首尾斜杠
func splitPath(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parsePositiveInt(raw string, fallback int) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	val, err := strconv.Atoi(trimmed)
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}

func parseBoolQuery(r *http.Request, key string) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && val
}

func withCORS(cfg *models.Config, next http.Handler) http.Handler {
	allowed := parseOrigins(cfg)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			if len(allowed) > 0 {
				if _, ok := allowed[origin]; !ok {
					writeJSON(w, http.StatusForbidden, map[string]string{"error": "origin not allowed"})
					return
				}
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseOrigins(cfg *models.Config) map[string]struct{} {
	if cfg == nil {
		return nil
	}
	out := make(map[string]struct{})
	for _, raw := range strings.Split(cfg.APICORSOrigins, ",") {
		origin := strings.TrimSpace(raw)
		if origin == "" {
			continue
		}
		out[origin] = struct{}{}
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *handler) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.metrics.ObserveHTTP(routeGroup(r.URL.Path), rec.status)
	})
}

// routeGroup 只保留固定前缀 避免把 ID 写进指标标签
func routeGroup(path string) string {
	parts := splitPath(path, "/")
	switch {
	case len(parts) == 0:
		return "root"
	case parts[0] == "metrics":
		return "metrics"
	case len(parts) >= 3 && parts[0] == "api":
		return parts[1] + "_" + parts[2]
	case len(parts) == 2 && parts[0] == "api":
		return parts[1]
	default:
		return "other"
	}
}
