// 本文件用于处置面板 HTTP 处理器 进度按面板 ID 隔离

package api

import (
	"net/http"
)

type openPanelRequest struct {
	ArticleID string `json:"articleId" validate:"required,max=128"`
	Source    string `json:"source" validate:"max=128"`
}

type toggleRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

func (h *handler) panels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !h.ready(w) {
		return
	}
	var req openPanelRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	panel, err := h.svc.OpenPanel(req.ArticleID, req.Source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "panel": panel.State()})
}

func (h *handler) panelByID(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	parts := splitPath(r.URL.Path, "/api/assist/panels/")
	if len(parts) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "panel id required"})
		return
	}
	panelID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			panel, err := h.svc.Panel(panelID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "panel": panel.State()})
		case http.MethodDelete:
			if !h.svc.ClosePanel(panelID) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "resolution panel not found"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": panelID})
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "toggle" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req toggleRequest
		if !h.decodeJSON(w, r, &req) {
			return
		}
		snap, err := h.svc.ToggleStep(panelID, *req.Index)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "progress": snap})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}
