package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/entrajuda/emergencia/internal/auth"
)

type contextKey string

const (
	ContextKeySubject contextKey = "subject"
	ContextKeyRoles   contextKey = "roles"
	ContextKeyClaims  contextKey = "claims"
)

// Auth valida o JWT de acesso e injeta as claims no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := jwtManager.ParseAndValidate(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyRoles, claims.Roles)
			ctx = context.WithValue(ctx, ContextKeyClaims, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject recupera o subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetRoles recupera os papéis do contexto.
func GetRoles(ctx context.Context) []string {
	val, _ := ctx.Value(ContextKeyRoles).([]string)
	return val
}

// GetClaims recupera as claims completas do contexto.
func GetClaims(ctx context.Context) *auth.Claims {
	val, _ := ctx.Value(ContextKeyClaims).(*auth.Claims)
	return val
}

// RequireAnyRole garante que o utilizador possua pelo menos um dos papéis.
func RequireAnyRole(requiredRoles ...string) func(http.Handler) http.Handler {
	normalized := make([]string, 0, len(requiredRoles))
	for _, role := range requiredRoles {
		role = strings.TrimSpace(role)
		if role != "" {
			normalized = append(normalized, role)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles := GetRoles(r.Context())
			for _, role := range roles {
				for _, required := range normalized {
					if strings.EqualFold(role, required) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso restrito")
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
