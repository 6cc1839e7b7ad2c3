package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleListSettings(w http.ResponseWriter, r *http.Request) {
	out, err := h.config.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if key == "" {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "chave em falta", nil)
		return
	}

	var in struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		WriteError(w, http.StatusBadRequest, "JSON", "corpo inválido", nil)
		return
	}

	if err := h.config.Set(r.Context(), key, in.Value); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"key": key, "value": in.Value})
}

// handleTestEmail envia um email de teste respeitando o modo dry-run.
func (h *Handler) handleTestEmail(w http.ResponseWriter, r *http.Request) {
	if h.mail == nil {
		WriteError(w, http.StatusServiceUnavailable, "CONFIG", "envio de email não configurado", nil)
		return
	}

	var in struct {
		Destinatario string `json:"destinatario"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Destinatario) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "destinatário é obrigatório", nil)
		return
	}

	err := h.mail.Send(r.Context(), in.Destinatario, "Email de teste",
		"Este é um email de teste da plataforma de apoio.", false)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "EMAIL", err.Error(), nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"destinatario": in.Destinatario})
}

func (h *Handler) handleListEmailLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := 50, 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}

	out, err := h.emailLogs.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}
