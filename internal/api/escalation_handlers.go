// 本文件用于升级工单与匹配统计 HTTP 处理器

package api

import (
	"net/http"

	"carlos-assist/internal/escalation"
)

type escalationRequest struct {
	PanelID     string                 `json:"panelId" validate:"required,max=64"`
	Description string                 `json:"description" validate:"max=4000"`
	User        escalation.UserContext `json:"user"`
}

func (h *handler) escalations(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		limit := parsePositiveInt(r.URL.Query().Get("limit"), 20)
		items, err := h.svc.Tickets(r.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "items": items, "total": len(items)})
	case http.MethodPost:
		var req escalationRequest
		if !h.decodeJSON(w, r, &req) {
			return
		}
		ticket, err := h.svc.Escalate(r.Context(), req.PanelID, req.Description, req.User)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ticket": ticket})
	default:
		methodNotAllowed(w)
	}
}

func (h *handler) escalationByRef(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !h.ready(w) {
		return
	}
	parts := splitPath(r.URL.Path, "/api/assist/escalations/")
	if len(parts) != 1 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticket reference required"})
		return
	}
	ticket, err := h.svc.Ticket(r.Context(), parts[0])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ticket": ticket})
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !h.ready(w) {
		return
	}
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stats": stats})
}
