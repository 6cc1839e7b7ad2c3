package http

import (
	"encoding/json"
	"net/http"

	"github.com/entrajuda/emergencia/internal/pedido"
)

func (h *Handler) handleListTipos(w http.ResponseWriter, r *http.Request) {
	out, err := h.pedidos.ListarTipos(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetTipo(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	out, err := h.pedidos.ObterTipo(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

// handleCreateTipo regista um tipo de pedido. O workflow é validado na
// escrita: JSON incoerente nunca chega à base de dados.
func (h *Handler) handleCreateTipo(w http.ResponseWriter, r *http.Request) {
	var in pedido.TipoPedidoInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		WriteError(w, http.StatusBadRequest, "JSON", "corpo inválido", nil)
		return
	}

	out, err := h.pedidos.CriarTipo(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) handleUpdateTipo(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	var in pedido.TipoPedidoInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		WriteError(w, http.StatusBadRequest, "JSON", "corpo inválido", nil)
		return
	}

	out, err := h.pedidos.AtualizarTipo(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleDeleteTipo(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	if err := h.pedidos.EliminarTipo(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"id": id})
}
