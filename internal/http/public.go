package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/entrajuda/emergencia/internal/pedido"
)

// handleSubmeterBens recebe o formulário público de apoio em bens.
func (h *Handler) handleSubmeterBens(w http.ResponseWriter, r *http.Request) {
	var in pedido.SubmissaoBens
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		WriteError(w, http.StatusBadRequest, "JSON", "corpo inválido", nil)
		return
	}

	p, err := h.pedidos.SubmeterBens(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"public_id": p.PublicID,
		"state":     p.State,
	})
}

// handleConsultarPedido devolve o estado de um pedido pelo id público.
func (h *Handler) handleConsultarPedido(w http.ResponseWriter, r *http.Request) {
	publicID, err := uuid.Parse(chi.URLParam(r, "publicId"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	out, err := h.pedidos.ConsultarPorPublicID(r.Context(), publicID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, out)
}

// handleResolverCodigoPostal valida e resolve um código postal para o
// preenchimento assistido do formulário.
func (h *Handler) handleResolverCodigoPostal(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("postalCode")
	if raw == "" {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "parâmetro postalCode em falta", nil)
		return
	}

	loc, err := h.geoSvc.Resolver(r.Context(), raw)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"found":     true,
		"freguesia": loc.Freguesia,
		"concelho":  loc.Concelho,
	})
}
