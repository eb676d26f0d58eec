// 本文件用于会话 HTTP 处理器
//
// 文件职责：创建 查询 关闭会话 以及提交用户消息
// 关键路径：提交先过限流 再交给会话状态机 wait=true 时阻塞到回复落地
// 边界与容错：空消息 忙碌 已关闭都映射为 4xx 不会产生半条消息

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"carlos-assist/internal/config"
	"carlos-assist/internal/session"
)

const (
	waitSlack   = 5 * time.Second
	maxWaitTime = 25 * time.Second
)

// submitLimiter 按会话限制提交频率 防止脚本刷接口
type submitLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// newSubmitLimiter perSec 为 0 表示不限流
func newSubmitLimiter(perSec float64, burst int) *submitLimiter {
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &submitLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *submitLimiter) Allow(sessionID string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[sessionID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[sessionID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (l *submitLimiter) Forget(sessionID string) {
	l.mu.Lock()
	delete(l.limiters, sessionID)
	l.mu.Unlock()
}

func (l *submitLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

type messageRequest struct {
	Text string `json:"text" validate:"max=2000"`
}

func (h *handler) sessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !h.ready(w) {
		return
	}
	sess, err := h.svc.CreateSession()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"session":     sess.Snapshot(),
		"suggestions": h.svc.Catalog().Suggestions(),
	})
}

// sessionByID 通过路径段分发会话详情 关闭与消息提交
func (h *handler) sessionByID(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	parts := splitPath(r.URL.Path, "/api/assist/sessions/")
	if len(parts) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session id required"})
		return
	}
	sessionID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			sess, err := h.svc.Session(sessionID)
			if err != nil {
				writeError(w, err)
				return
			}
			h.writeSession(w, sess)
		case http.MethodDelete:
			if err := h.svc.CloseSession(sessionID); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": sessionID})
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "messages" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.submitMessage(w, r, sessionID)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func (h *handler) submitMessage(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, err := h.svc.Session(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	var req messageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if !h.limiter.Allow(sessionID) {
		h.metrics.IncRateLimited()
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many messages, slow down"})
		return
	}
	done, err := sess.Submit(req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	if parseBoolQuery(r, "wait") {
		ctx, cancel := context.WithTimeout(r.Context(), h.waitTimeout())
		defer cancel()
		if err := session.Wait(ctx, done); err != nil {
			writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "reply not ready: " + err.Error()})
			return
		}
	}
	h.writeSession(w, sess)
}

func (h *handler) waitTimeout() time.Duration {
	timeout := config.ThinkingDelay(h.cfg) + waitSlack
	if timeout > maxWaitTime {
		timeout = maxWaitTime
	}
	return timeout
}

func (h *handler) writeSession(w http.ResponseWriter, sess *session.Session) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"session": sess.Snapshot(),
		"panels":  h.svc.SessionPanels(sess.ID()),
	})
}
