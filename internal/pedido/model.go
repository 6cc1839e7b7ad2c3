package pedido

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Estados e sentinelas do ciclo de vida.
const (
	// EstadoInicialPadrao é usado quando o workflow não define estado inicial.
	EstadoInicialPadrao = "NOVO"
	// EstadoSentinela marca "sem estado anterior" no primeiro registo do log.
	EstadoSentinela = "SEM_ESTADO"
	// AtorSistema identifica transições de origem sistémica.
	AtorSistema = "Sistema"

	// TableNamePedidosBens identifica o payload de apoio em bens.
	TableNamePedidosBens = "PedidosBens"
)

var (
	// ErrNotFound é devolvido quando o pedido (ou tipo) não existe.
	ErrNotFound = errors.New("pedido não encontrado")
	// ErrTipoNotFound é devolvido quando o tipo de pedido não existe.
	ErrTipoNotFound = errors.New("tipo de pedido não encontrado")
	// ErrTipoEmUso indica um tipo com pedidos associados.
	ErrTipoEmUso = errors.New("tipo de pedido com pedidos associados")
	// ErrConfiguracao indica configuração de deployment em falta.
	ErrConfiguracao = errors.New("configuração em falta")
	// ErrZonaNaoAutorizada indica acesso a um pedido fora das zonas do utilizador.
	ErrZonaNaoAutorizada = errors.New("zona não autorizada")
	// ErrTransicaoInvalida indica uma mudança de estado fora do workflow.
	ErrTransicaoInvalida = errors.New("transição de estado inválida")
)

// TipoPedido é uma categoria de pedido ligada a uma definição de workflow e
// a uma tabela de payload.
type TipoPedido struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Workflow  string    `json:"workflow"`
	TableName string    `json:"table_name"`
}

// Pedido é o envelope genérico de acompanhamento.
type Pedido struct {
	ID                int64     `json:"id"`
	PublicID          uuid.UUID `json:"public_id"`
	CreatedAt         time.Time `json:"created_at"`
	State             string    `json:"state"`
	ExternalRequestID int64     `json:"external_request_id"`
	TipoPedidoID      int64     `json:"tipo_pedido_id"`
	ZinfID            *int64    `json:"zinf_id,omitempty"`
}

// PedidoResumo acrescenta o nome do tipo para listagens.
type PedidoResumo struct {
	Pedido
	TipoPedidoName      string `json:"tipo_pedido_name"`
	TipoPedidoTableName string `json:"tipo_pedido_table_name"`
}

// EstadoLog é uma entrada do histórico de estados, append-only.
type EstadoLog struct {
	ID        int64     `json:"id"`
	PedidoID  int64     `json:"pedido_id"`
	ChangedAt time.Time `json:"changed_at"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	ChangedBy string    `json:"changed_by"`
}

// PedidoBem é o payload de apoio em bens. Freguesia e Concelho são cópias
// desnormalizadas resolvidas do código postal na submissão.
type PedidoBem struct {
	ID                             int64     `json:"id"`
	FullName                       string    `json:"full_name"`
	PhoneNumber                    string    `json:"phone_number"`
	Email                          string    `json:"email"`
	Address                        string    `json:"address"`
	PostalCode                     string    `json:"postal_code"`
	Localidade                     string    `json:"localidade"`
	Freguesia                      string    `json:"freguesia"`
	Concelho                       string    `json:"concelho"`
	IdentificationNumber           string    `json:"identification_number"`
	Age                            int       `json:"age"`
	HouseholdSize                  int       `json:"household_size"`
	ChildrenUnder12                int       `json:"children_under_12"`
	Youth13To17                    int       `json:"youth_13_to_17"`
	Adults18Plus                   int       `json:"adults_18_plus"`
	Seniors65Plus                  int       `json:"seniors_65_plus"`
	ReceivesFoodSupport            bool      `json:"receives_food_support"`
	FoodSupportInstitutionName     *string   `json:"food_support_institution_name,omitempty"`
	CanPickUpNearby                bool      `json:"can_pick_up_nearby"`
	NeededProductTypes             string    `json:"needed_product_types"`
	OtherNeededProductTypesDetails *string   `json:"other_needed_product_types_details,omitempty"`
	Suggestions                    *string   `json:"suggestions,omitempty"`
	CreatedAt                      time.Time `json:"created_at"`
}
