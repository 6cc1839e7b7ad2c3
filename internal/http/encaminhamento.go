package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/entrajuda/emergencia/internal/http/middleware"
	"github.com/entrajuda/emergencia/internal/pedido"
)

// scopeFromRequest constrói o âmbito de zonas do utilizador autenticado.
// Administradores veem tudo; os restantes só as zonas associadas ao seu
// user principal name (em qualquer das variantes de convidado).
func (h *Handler) scopeFromRequest(r *http.Request) (pedido.Scope, error) {
	claims := httpmiddleware.GetClaims(r.Context())
	if claims == nil {
		return pedido.Scope{}, nil
	}
	if claims.HasRole(h.cfg.AdminRole) {
		return pedido.Scope{Admin: true}, nil
	}

	candidates := h.normalizer.Candidates(claims.Identity())
	zinfIDs, err := h.geoSvc.ZinfIDsDoUtilizador(r.Context(), candidates)
	if err != nil {
		return pedido.Scope{}, err
	}
	return pedido.Scope{ZinfIDs: zinfIDs}, nil
}

// handleListarPedidos lista pedidos dentro do âmbito, com filtros
// opcionais tipo e estado.
func (h *Handler) handleListarPedidos(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFromRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var f pedido.ListFilter
	if raw := r.URL.Query().Get("tipo_pedido_id"); raw != "" {
		f.TipoPedidoID, _ = strconv.ParseInt(raw, 10, 64)
	}
	f.Estado = strings.TrimSpace(r.URL.Query().Get("estado"))

	out, err := h.pedidos.Listar(r.Context(), scope, f)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, out)
}

// handleDetalhePedido devolve pedido, payload, histórico e transições.
func (h *Handler) handleDetalhePedido(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	scope, err := h.scopeFromRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out, err := h.pedidos.ObterDetalhe(r.Context(), scope, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, out)
}

// handleAlterarEstado move o pedido para outro estado do workflow.
func (h *Handler) handleAlterarEstado(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "identificador inválido", nil)
		return
	}

	var in struct {
		Estado string `json:"estado"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		WriteError(w, http.StatusBadRequest, "JSON", "corpo inválido", nil)
		return
	}

	scope, err := h.scopeFromRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	changedBy := pedido.ResolveChangedBy(httpmiddleware.GetClaims(r.Context()), "")
	if err := h.pedidos.AlterarEstado(r.Context(), scope, id, in.Estado, changedBy); err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"estado": in.Estado})
}
