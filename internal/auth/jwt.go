package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims representa as informações presentes em um JWT de acesso emitido
// pelo fornecedor de identidade.
type Claims struct {
	Roles             []string `json:"roles"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	UPN               string   `json:"upn,omitempty"`
	Email             string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity devolve o identificador do utilizador seguindo a cadeia de
// prioridade preferred_username > upn > email > subject. O primeiro valor
// não vazio vence.
func (c *Claims) Identity() string {
	for _, candidate := range []string{c.PreferredUsername, c.UPN, c.Email, c.Subject} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return ""
}

// HasRole verifica a presença de um papel (case-insensitive).
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// JWTManager encapsula geração e validação de tokens.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewJWTManager cria o gerenciador com segredo e TTL configurados.
func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL}
}

// GenerateAccessToken cria um JWT HS256 com claims padrão.
func (m *JWTManager) GenerateAccessToken(subject, preferredUsername, email string, roles []string) (string, error) {
	now := time.Now().UTC()

	claims := Claims{
		Roles:             roles,
		PreferredUsername: preferredUsername,
		Email:             email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseAndValidate verifica assinatura e expiração.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("token inválido")
	}

	return claims, nil
}
