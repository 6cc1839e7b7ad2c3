// Package directory integra o diretório de identidades externo, que é a
// fonte de verdade para papéis. Localmente só vive a associação a zonas.
package directory

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indica utilizador inexistente no diretório.
	ErrNotFound = errors.New("utilizador não encontrado no diretório")
	// ErrNaoConfigurado indica credenciais de diretório em falta.
	ErrNaoConfigurado = errors.New("diretório externo não configurado")
)

// User é um utilizador do diretório com os papéis geridos pela aplicação.
type User struct {
	UserPrincipalName string   `json:"user_principal_name"`
	DisplayName       string   `json:"display_name"`
	Email             string   `json:"email"`
	Roles             []string `json:"roles"`
}

// Service abstrai as operações sobre o diretório externo.
type Service interface {
	// ListUsers devolve os utilizadores com pelo menos um papel gerido.
	ListUsers(ctx context.Context) ([]User, error)
	// AssignRoles atribui os papéis geridos indicados ao utilizador.
	AssignRoles(ctx context.Context, userPrincipalName string, admin, volunteer bool) error
	// RemoveManagedRoles retira todos os papéis geridos do utilizador.
	RemoveManagedRoles(ctx context.Context, userPrincipalName string) error
	// ResolveUserEmail devolve o email associado ao principal.
	ResolveUserEmail(ctx context.Context, userPrincipalName string) (string, error)
}
