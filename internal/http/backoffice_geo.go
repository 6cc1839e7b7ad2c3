package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/entrajuda/emergencia/internal/geo"
)

type nomeInput struct {
	Nome string `json:"nome"`
}

func (in nomeInput) valid() bool {
	return strings.TrimSpace(in.Nome) != ""
}

func urlParamID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// --- Distritos ---

func (h *Handler) handleListDistritos(w http.ResponseWriter, r *http.Request) {
	out, err := h.geoRepo.ListDistritos(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateDistrito(w http.ResponseWriter, r *http.Request) {
	var in nomeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !in.valid() {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "nome é obrigatório", nil)
		return
	}

	out, err := h.geoRepo.CreateDistrito(r.Context(), strings.TrimSpace(in.Nome))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) handleUpdateDistrito(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	var in nomeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !in.valid() {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "nome é obrigatório", nil)
		return
	}

	if err := h.geoRepo.UpdateDistrito(r.Context(), id, strings.TrimSpace(in.Nome)); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (h *Handler) handleDeleteDistrito(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}
	if err := h.geoSvc.EliminarDistrito(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"id": id})
}

// --- Zonas de intervenção ---

func (h *Handler) handleListZinfs(w http.ResponseWriter, r *http.Request) {
	out, err := h.geoRepo.ListZinfs(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateZinf(w http.ResponseWriter, r *http.Request) {
	var in nomeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !in.valid() {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "nome é obrigatório", nil)
		return
	}

	out, err := h.geoRepo.CreateZinf(r.Context(), strings.TrimSpace(in.Nome))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) handleUpdateZinf(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	var in nomeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !in.valid() {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "nome é obrigatório", nil)
		return
	}

	if err := h.geoRepo.UpdateZinf(r.Context(), id, strings.TrimSpace(in.Nome)); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (h *Handler) handleDeleteZinf(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}
	if err := h.geoSvc.EliminarZinf(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (h *Handler) handleListZinfUtilizadores(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	out, err := h.geoRepo.ListUserPrincipalNamesByZinf(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

// --- Concelhos ---

type concelhoInput struct {
	Nome       string `json:"nome"`
	DistritoID int64  `json:"distrito_id"`
	ZinfID     *int64 `json:"zinf_id"`
}

func (h *Handler) handleListConcelhos(w http.ResponseWriter, r *http.Request) {
	var distritoID *int64
	if raw := r.URL.Query().Get("distrito"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			distritoID = &id
		}
	}

	out, err := h.geoRepo.ListConcelhos(r.Context(), distritoID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateConcelho(w http.ResponseWriter, r *http.Request) {
	var in concelhoInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil ||
		strings.TrimSpace(in.Nome) == "" || in.DistritoID <= 0 {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "nome e distrito são obrigatórios", nil)
		return
	}

	out, err := h.geoRepo.CreateConcelho(r.Context(), strings.TrimSpace(in.Nome), in.DistritoID, in.ZinfID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) handleUpdateConcelho(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	var in concelhoInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil ||
		strings.TrimSpace(in.Nome) == "" || in.DistritoID <= 0 {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "nome e distrito são obrigatórios", nil)
		return
	}

	if err := h.geoRepo.UpdateConcelho(r.Context(), id, strings.TrimSpace(in.Nome), in.DistritoID, in.ZinfID); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (h *Handler) handleDeleteConcelho(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}
	if err := h.geoSvc.EliminarConcelho(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"id": id})
}

// --- Códigos postais ---

func (h *Handler) handleListCodigosPostais(w http.ResponseWriter, r *http.Request) {
	var concelhoID *int64
	if raw := r.URL.Query().Get("concelho"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			concelhoID = &id
		}
	}

	limit, offset := 100, 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}

	out, err := h.geoRepo.ListCodigosPostais(r.Context(), concelhoID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleUpsertCodigoPostal(w http.ResponseWriter, r *http.Request) {
	var in geo.CodigoPostal
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		WriteError(w, http.StatusBadRequest, "JSON", "corpo inválido", nil)
		return
	}

	if err := h.geoSvc.GuardarCodigoPostal(r.Context(), in); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, in)
}

func (h *Handler) handleDeleteCodigoPostal(w http.ResponseWriter, r *http.Request) {
	numero, err := strconv.Atoi(chi.URLParam(r, "numero"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "número inválido", nil)
		return
	}

	if err := h.geoSvc.EliminarCodigoPostal(r.Context(), numero); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"numero": numero})
}
