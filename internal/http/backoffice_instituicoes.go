package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/entrajuda/emergencia/internal/instituicao"
)

const maxImportSize = 10 << 20 // 10 MiB

func (h *Handler) handleListInstituicoes(w http.ResponseWriter, r *http.Request) {
	out, err := h.instRepo.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateInstituicao(w http.ResponseWriter, r *http.Request) {
	var in instituicao.Instituicao
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil ||
		strings.TrimSpace(in.CodigoEA) == "" || strings.TrimSpace(in.Nome) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "código EA e nome são obrigatórios", nil)
		return
	}

	if err := h.instRepo.Create(r.Context(), &in); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, in)
}

func (h *Handler) handleUpdateInstituicao(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	var in instituicao.Instituicao
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Nome) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "nome é obrigatório", nil)
		return
	}
	in.ID = id

	if err := h.instRepo.Update(r.Context(), &in); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, in)
}

func (h *Handler) handleDeleteInstituicao(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	if err := h.instRepo.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"id": id})
}

// handleImportInstituicoes recebe um .xlsx via multipart (campo ficheiro)
// e faz upsert pelo código EA, devolvendo o resumo da importação.
func (h *Handler) handleImportInstituicoes(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "ficheiro em falta ou demasiado grande", nil)
		return
	}

	file, _, err := r.FormFile("ficheiro")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "campo ficheiro é obrigatório", nil)
		return
	}
	defer file.Close()

	result, err := h.instituicoes.ImportXLSX(r.Context(), file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "IMPORTACAO", err.Error(), nil)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
