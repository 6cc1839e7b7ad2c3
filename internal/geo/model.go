package geo

import "errors"

var (
	// ErrNotFound é devolvido quando o registo não existe.
	ErrNotFound = errors.New("registo não encontrado")
	// ErrFormatoInvalido indica um código postal que não reduz a 7 dígitos.
	ErrFormatoInvalido = errors.New("código postal inválido")
	// ErrPossuiDependentes bloqueia a eliminação de registos com filhos.
	ErrPossuiDependentes = errors.New("registo possui dependentes")
)

// Distrito agrupa concelhos.
type Distrito struct {
	ID   int64  `json:"id"`
	Nome string `json:"nome"`
}

// Zinf é uma zona de coordenação que agrupa concelhos e voluntários.
type Zinf struct {
	ID   int64  `json:"id"`
	Nome string `json:"nome"`
}

// Concelho pertence a um distrito e, opcionalmente, a uma zona.
type Concelho struct {
	ID         int64  `json:"id"`
	Nome       string `json:"nome"`
	DistritoID int64  `json:"distrito_id"`
	ZinfID     *int64 `json:"zinf_id,omitempty"`
}

// CodigoPostal tem como chave primária o próprio número de 7 dígitos.
type CodigoPostal struct {
	Numero     int    `json:"numero"`
	Freguesia  string `json:"freguesia"`
	ConcelhoID int64  `json:"concelho_id"`
}

// UserZinf associa um utilizador do diretório a uma zona.
type UserZinf struct {
	UserPrincipalName string `json:"user_principal_name"`
	ZinfID            int64  `json:"zinf_id"`
}

// Localizacao é o resultado autoritativo da resolução de um código postal.
type Localizacao struct {
	Numero     int     `json:"numero"`
	Freguesia  string  `json:"freguesia"`
	ConcelhoID int64   `json:"concelho_id"`
	Concelho   string  `json:"concelho"`
	DistritoID int64   `json:"distrito_id"`
	Distrito   string  `json:"distrito"`
	ZinfID     *int64  `json:"zinf_id,omitempty"`
	ZinfNome   *string `json:"zinf_nome,omitempty"`
}
