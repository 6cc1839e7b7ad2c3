package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/entrajuda/emergencia/internal/directory"
)

// Propagação de papéis no diretório externo não é imediata. Depois de
// escrever, verificamos algumas vezes antes de devolver aviso.
var (
	rolePropagationAttempts = 5
	rolePropagationInterval = 800 * time.Millisecond
)

func (h *Handler) handleListUtilizadores(w http.ResponseWriter, r *http.Request) {
	if h.directory == nil {
		writeServiceError(w, directory.ErrNaoConfigurado)
		return
	}

	users, err := h.directory.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, users)
}

type papeisInput struct {
	Admin      bool `json:"admin"`
	Voluntario bool `json:"voluntario"`
}

func upnFromURL(r *http.Request, param string) string {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// handleAssignRoles escreve os papéis geridos no diretório e espera pela
// propagação. Se a escrita não ficar visível dentro do prazo, devolve um
// aviso em vez de falhar: a atribuição já foi aceite pelo diretório.
func (h *Handler) handleAssignRoles(w http.ResponseWriter, r *http.Request) {
	if h.directory == nil {
		writeServiceError(w, directory.ErrNaoConfigurado)
		return
	}

	upn := upnFromURL(r, "upn")
	if upn == "" {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "user principal name em falta", nil)
		return
	}

	var in papeisInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		WriteError(w, http.StatusBadRequest, "JSON", "corpo inválido", nil)
		return
	}

	if err := h.directory.AssignRoles(r.Context(), upn, in.Admin, in.Voluntario); err != nil {
		writeServiceError(w, err)
		return
	}

	confirmed := h.waitForRoles(r.Context(), upn, in)
	WriteJSON(w, http.StatusOK, map[string]any{
		"upn":        upn,
		"admin":      in.Admin,
		"voluntario": in.Voluntario,
		"confirmado": confirmed,
	})
}

// handleRemoveRoles retira os papéis geridos e limpa as associações de
// zona de todas as variantes do principal. Tal como na atribuição, a
// remoção espera pela propagação e devolve aviso quando as listagens do
// diretório ainda mostram o utilizador com papéis geridos.
func (h *Handler) handleRemoveRoles(w http.ResponseWriter, r *http.Request) {
	if h.directory == nil {
		writeServiceError(w, directory.ErrNaoConfigurado)
		return
	}

	upn := upnFromURL(r, "upn")
	if upn == "" {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "user principal name em falta", nil)
		return
	}

	if err := h.directory.RemoveManagedRoles(r.Context(), upn); err != nil {
		writeServiceError(w, err)
		return
	}

	confirmed := h.waitForRolesCleared(r.Context(), upn)

	candidates := h.normalizer.Candidates(upn)
	removed, err := h.userZinfs.DeleteUserZinfsByCandidates(r.Context(), candidates)
	if err != nil {
		log.Error().Err(err).Str("upn", upn).
			Msg("falha a limpar associações de zona após remoção de papéis")
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"upn":             upn,
		"zinfs_removidas": removed,
		"confirmado":      confirmed,
	})
}

// handleSetUserZinfs substitui as zonas associadas a um utilizador.
func (h *Handler) handleSetUserZinfs(w http.ResponseWriter, r *http.Request) {
	upn := upnFromURL(r, "upn")
	if upn == "" {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "user principal name em falta", nil)
		return
	}

	var in struct {
		ZinfIDs []int64 `json:"zinf_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		WriteError(w, http.StatusBadRequest, "JSON", "corpo inválido", nil)
		return
	}

	normalized := h.normalizer.Normalize(upn)
	if err := h.userZinfs.ReplaceUserZinfs(r.Context(), normalized, in.ZinfIDs); err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"upn":      normalized,
		"zinf_ids": in.ZinfIDs,
	})
}

// waitForRoles verifica se os papéis escritos já aparecem nas listagens
// do diretório. Devolve false quando o prazo esgota sem confirmação.
func (h *Handler) waitForRoles(ctx context.Context, upn string, want papeisInput) bool {
	candidates := h.normalizer.Candidates(upn)

	for attempt := 0; attempt < rolePropagationAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(rolePropagationInterval):
			}
		}

		users, err := h.directory.ListUsers(ctx)
		if err != nil {
			log.Warn().Err(err).Str("upn", upn).
				Msg("falha a verificar propagação de papéis")
			continue
		}

		for _, u := range users {
			if !matchesCandidate(u.UserPrincipalName, candidates) {
				continue
			}
			if hasRole(u.Roles, h.cfg.AdminRole) == want.Admin &&
				hasRole(u.Roles, h.cfg.VolunteerRole) == want.Voluntario {
				return true
			}
		}
	}

	log.Warn().Str("upn", upn).Msg("papéis atribuídos mas propagação não confirmada")
	return false
}

// waitForRolesCleared verifica se o utilizador já desapareceu das
// listagens de papéis geridos. A listagem só devolve utilizadores com
// papéis geridos, pelo que ausência significa remoção propagada.
func (h *Handler) waitForRolesCleared(ctx context.Context, upn string) bool {
	candidates := h.normalizer.Candidates(upn)

	for attempt := 0; attempt < rolePropagationAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(rolePropagationInterval):
			}
		}

		users, err := h.directory.ListUsers(ctx)
		if err != nil {
			log.Warn().Err(err).Str("upn", upn).
				Msg("falha a verificar propagação da remoção de papéis")
			continue
		}

		present := false
		for _, u := range users {
			if matchesCandidate(u.UserPrincipalName, candidates) && len(u.Roles) > 0 {
				present = true
				break
			}
		}
		if !present {
			return true
		}
	}

	log.Warn().Str("upn", upn).Msg("papéis removidos mas listagem do diretório ainda desatualizada")
	return false
}

func matchesCandidate(upn string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(upn, c) {
			return true
		}
	}
	return false
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
