package pedido

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/entrajuda/emergencia/internal/auth"
	"github.com/entrajuda/emergencia/internal/geo"
	"github.com/entrajuda/emergencia/internal/settings"
	"github.com/entrajuda/emergencia/internal/workflow"
)

// Store é o subconjunto do repositório usado pelo serviço.
type Store interface {
	CreateTipoPedido(ctx context.Context, t *TipoPedido) error
	UpdateTipoPedido(ctx context.Context, t *TipoPedido) error
	GetTipoPedido(ctx context.Context, id int64) (*TipoPedido, error)
	GetTipoPedidoByTableName(ctx context.Context, tableName string) (*TipoPedido, error)
	DeleteTipoPedido(ctx context.Context, id int64) error
	ListTiposPedido(ctx context.Context) ([]TipoPedido, error)
	CreateSubmissaoBens(ctx context.Context, bem *PedidoBem, p *Pedido, changedBy string) error
	GetPedidoByPublicID(ctx context.Context, publicID uuid.UUID) (*Pedido, error)
	GetPedido(ctx context.Context, id int64) (*Pedido, error)
	ListPedidos(ctx context.Context, f ListFilter) ([]PedidoResumo, error)
	GetPedidoBem(ctx context.Context, id int64) (*PedidoBem, error)
	ListEstadoLogs(ctx context.Context, pedidoID int64) ([]EstadoLog, error)
	UpdateEstado(ctx context.Context, pedidoID int64, fromState, toState, changedBy string) error
}

// Resolver traduz códigos postais na cadeia geográfica.
type Resolver interface {
	Resolver(ctx context.Context, raw string) (*geo.Localizacao, error)
}

// Notifier dispara emails após a criação de um pedido. Falhas nunca
// propagam para o chamador.
type Notifier interface {
	PedidoCriado(ctx context.Context, p *Pedido, bem *PedidoBem)
}

// Service orquestra submissão pública, consulta e encaminhamento.
type Service struct {
	store    Store
	geo      Resolver
	config   *settings.Service
	notifier Notifier
}

// NewService cria o serviço de pedidos. notifier pode ser nil.
func NewService(store Store, resolver Resolver, config *settings.Service, notifier Notifier) *Service {
	return &Service{store: store, geo: resolver, config: config, notifier: notifier}
}

// SubmissaoBens é a entrada pública do formulário de apoio em bens.
type SubmissaoBens struct {
	FullName                       string   `json:"full_name"`
	PhoneNumber                    string   `json:"phone_number"`
	Email                          string   `json:"email"`
	Address                        string   `json:"address"`
	PostalCode                     string   `json:"postal_code"`
	Localidade                     string   `json:"localidade"`
	IdentificationNumber           string   `json:"identification_number"`
	Age                            int      `json:"age"`
	HouseholdSize                  int      `json:"household_size"`
	ChildrenUnder12                int      `json:"children_under_12"`
	Youth13To17                    int      `json:"youth_13_to_17"`
	Adults18Plus                   int      `json:"adults_18_plus"`
	Seniors65Plus                  int      `json:"seniors_65_plus"`
	ReceivesFoodSupport            bool     `json:"receives_food_support"`
	FoodSupportInstitutionName     *string  `json:"food_support_institution_name"`
	CanPickUpNearby                bool     `json:"can_pick_up_nearby"`
	NeededProductTypes             []string `json:"needed_product_types"`
	OtherNeededProductTypesDetails *string  `json:"other_needed_product_types_details"`
	Suggestions                    *string  `json:"suggestions"`
}

// Validate aplica as regras do formulário público.
func (s SubmissaoBens) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.FullName, validation.Required, validation.Length(2, 200)),
		validation.Field(&s.PhoneNumber, validation.Required, validation.Length(6, 30)),
		validation.Field(&s.Email, validation.Required, is.EmailFormat),
		validation.Field(&s.Address, validation.Required, validation.Length(3, 300)),
		validation.Field(&s.PostalCode, validation.Required),
		validation.Field(&s.Localidade, validation.Required, validation.Length(2, 120)),
		validation.Field(&s.Age, validation.Required, validation.Min(16), validation.Max(130)),
		validation.Field(&s.HouseholdSize, validation.Required, validation.Min(1), validation.Max(30)),
		validation.Field(&s.ChildrenUnder12, validation.Min(0)),
		validation.Field(&s.Youth13To17, validation.Min(0)),
		validation.Field(&s.Adults18Plus, validation.Min(1)),
		validation.Field(&s.Seniors65Plus, validation.Min(0)),
		validation.Field(&s.NeededProductTypes, validation.Required, validation.Length(1, 0)),
	)
	if err != nil {
		return err
	}

	if s.ChildrenUnder12+s.Youth13To17+s.Adults18Plus != s.HouseholdSize {
		return validation.Errors{
			"household_size": errors.New("a soma por faixa etária tem de igualar a dimensão do agregado"),
		}
	}
	if s.Seniors65Plus > s.Adults18Plus {
		return validation.Errors{
			"seniors_65_plus": errors.New("os maiores de 65 não podem exceder os adultos do agregado"),
		}
	}
	return nil
}

// SubmeterBens valida, resolve a localização, cria o pedido e dispara as
// notificações. Freguesia e concelho vêm sempre da resolução do código
// postal, nunca do formulário.
func (s *Service) SubmeterBens(ctx context.Context, in SubmissaoBens) (*Pedido, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	loc, err := s.geo.Resolver(ctx, in.PostalCode)
	if err != nil {
		return nil, err
	}

	tipo, err := s.store.GetTipoPedidoByTableName(ctx, TableNamePedidosBens)
	if errors.Is(err, ErrTipoNotFound) {
		return nil, fmt.Errorf("%w: tipo de pedido %q não registado", ErrConfiguracao, TableNamePedidosBens)
	}
	if err != nil {
		return nil, err
	}

	initial := workflow.InitialState(tipo.Workflow)
	if initial == "" {
		log.Warn().Int64("tipo_pedido_id", tipo.ID).
			Msg("workflow sem estado inicial utilizável, a usar o padrão")
		initial = EstadoInicialPadrao
	}

	bem := &PedidoBem{
		FullName:                       strings.TrimSpace(in.FullName),
		PhoneNumber:                    strings.TrimSpace(in.PhoneNumber),
		Email:                          strings.TrimSpace(in.Email),
		Address:                        strings.TrimSpace(in.Address),
		PostalCode:                     strings.TrimSpace(in.PostalCode),
		Localidade:                     strings.TrimSpace(in.Localidade),
		Freguesia:                      loc.Freguesia,
		Concelho:                       loc.Concelho,
		IdentificationNumber:           strings.TrimSpace(in.IdentificationNumber),
		Age:                            in.Age,
		HouseholdSize:                  in.HouseholdSize,
		ChildrenUnder12:                in.ChildrenUnder12,
		Youth13To17:                    in.Youth13To17,
		Adults18Plus:                   in.Adults18Plus,
		Seniors65Plus:                  in.Seniors65Plus,
		ReceivesFoodSupport:            in.ReceivesFoodSupport,
		FoodSupportInstitutionName:     in.FoodSupportInstitutionName,
		CanPickUpNearby:                in.CanPickUpNearby,
		NeededProductTypes:             strings.Join(in.NeededProductTypes, ";"),
		OtherNeededProductTypesDetails: in.OtherNeededProductTypesDetails,
		Suggestions:                    in.Suggestions,
	}

	p := &Pedido{
		PublicID:     uuid.New(),
		State:        initial,
		TipoPedidoID: tipo.ID,
		ZinfID:       loc.ZinfID,
	}

	changedBy := ResolveChangedBy(nil, bem.Email)
	if err := s.store.CreateSubmissaoBens(ctx, bem, p, changedBy); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.PedidoCriado(ctx, p, bem)
	}
	return p, nil
}

// ResolveChangedBy escolhe o autor de uma transição: identidade do token,
// senão o email do requerente, senão o sistema.
func ResolveChangedBy(claims *auth.Claims, submitterEmail string) string {
	if claims != nil {
		if id := claims.Identity(); id != "" {
			return id
		}
	}
	if v := strings.TrimSpace(submitterEmail); v != "" {
		return v
	}
	return AtorSistema
}

// EstadoPublico é a vista devolvida na consulta pública por public_id.
type EstadoPublico struct {
	PublicID  uuid.UUID `json:"public_id"`
	CreatedAt string    `json:"created_at"`
	State     string    `json:"state"`
	StateName string    `json:"state_name"`
	Tipo      string    `json:"tipo"`
}

// ConsultarPorPublicID devolve apenas o essencial para o requerente
// acompanhar o pedido, sem dados pessoais.
func (s *Service) ConsultarPorPublicID(ctx context.Context, publicID uuid.UUID) (*EstadoPublico, error) {
	p, err := s.store.GetPedidoByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	tipo, err := s.store.GetTipoPedido(ctx, p.TipoPedidoID)
	if err != nil {
		return nil, err
	}

	out := &EstadoPublico{
		PublicID:  p.PublicID,
		CreatedAt: p.CreatedAt.Format("2006-01-02"),
		State:     p.State,
		StateName: p.State,
		Tipo:      tipo.Name,
	}
	if def, err := workflow.Parse(tipo.Workflow); err == nil {
		if st, ok := def.State(p.State); ok && st.Label != "" {
			out.StateName = st.Label
		}
	}
	return out, nil
}

// Scope delimita que zonas um utilizador autenticado pode consultar.
// Admin vê tudo; os restantes só as zonas a que pertencem.
type Scope struct {
	Admin   bool
	ZinfIDs []int64
}

// Allows indica se o pedido com a zona dada está dentro do âmbito.
func (sc Scope) Allows(zinfID *int64) bool {
	if sc.Admin {
		return true
	}
	if zinfID == nil {
		return false
	}
	for _, id := range sc.ZinfIDs {
		if id == *zinfID {
			return true
		}
	}
	return false
}

// Listar devolve os pedidos dentro do âmbito do utilizador, com filtros
// opcionais de tipo e estado. Fora do perfil de administração a lista
// fica restrita às zonas atribuídas e ao formulário de bens.
func (s *Service) Listar(ctx context.Context, scope Scope, f ListFilter) ([]PedidoResumo, error) {
	if !scope.Admin {
		// Lista vazia (não nil) garante resultado vazio para quem não
		// tem zonas atribuídas.
		f.ZinfIDs = scope.ZinfIDs
		if f.ZinfIDs == nil {
			f.ZinfIDs = []int64{}
		}
		f.TableName = TableNamePedidosBens
	}
	return s.store.ListPedidos(ctx, f)
}

// Detalhe agrega pedido, payload e histórico de estados.
type Detalhe struct {
	Pedido      *Pedido      `json:"pedido"`
	Tipo        *TipoPedido  `json:"tipo"`
	Bem         *PedidoBem   `json:"bem,omitempty"`
	Historico   []EstadoLog  `json:"historico"`
	Transicoes  []string     `json:"transicoes"`
	EstadoFinal bool         `json:"estado_final"`
}

// ObterDetalhe devolve a vista completa de um pedido, o histórico e os
// estados de destino possíveis. Pedido fora do âmbito é recusado, não
// escondido.
func (s *Service) ObterDetalhe(ctx context.Context, scope Scope, pedidoID int64) (*Detalhe, error) {
	p, err := s.store.GetPedido(ctx, pedidoID)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(p.ZinfID) {
		return nil, ErrZonaNaoAutorizada
	}

	tipo, err := s.store.GetTipoPedido(ctx, p.TipoPedidoID)
	if err != nil {
		return nil, err
	}
	if !scope.Admin && tipo.TableName != TableNamePedidosBens {
		// Outros formulários não existem para o encaminhamento.
		return nil, ErrNotFound
	}

	d := &Detalhe{Pedido: p, Tipo: tipo}

	if tipo.TableName == TableNamePedidosBens {
		bem, err := s.store.GetPedidoBem(ctx, p.ExternalRequestID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		d.Bem = bem
	}

	d.Historico, err = s.store.ListEstadoLogs(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	if def, err := workflow.Parse(tipo.Workflow); err == nil {
		if st, ok := def.State(p.State); ok {
			d.EstadoFinal = def.IsTerminal(st.Key)
			for _, t := range st.Transitions {
				d.Transicoes = append(d.Transicoes, t.To)
			}
		}
	}
	return d, nil
}

// AlterarEstado move um pedido para outro estado, registando quem mudou.
// Por omissão a transição tem de existir no workflow do tipo; em modo
// permissivo uma transição desconhecida passa com aviso no log.
func (s *Service) AlterarEstado(ctx context.Context, scope Scope, pedidoID int64, toState, changedBy string) error {
	toState = strings.TrimSpace(toState)
	if toState == "" {
		return ErrTransicaoInvalida
	}

	p, err := s.store.GetPedido(ctx, pedidoID)
	if err != nil {
		return err
	}
	if !scope.Allows(p.ZinfID) {
		return ErrZonaNaoAutorizada
	}
	if p.State == toState {
		return nil
	}

	tipo, err := s.store.GetTipoPedido(ctx, p.TipoPedidoID)
	if err != nil {
		return err
	}

	def, err := workflow.Parse(tipo.Workflow)
	if err != nil {
		log.Warn().Err(err).Int64("tipo_pedido_id", tipo.ID).
			Msg("workflow ilegível, transição aceite sem verificação")
	} else if !def.CanTransition(p.State, toState) {
		strict := s.config == nil ||
			s.config.GetBool(ctx, settings.KeyWorkflowStrictTransitions, true)
		if strict {
			return fmt.Errorf("%w: %s -> %s", ErrTransicaoInvalida, p.State, toState)
		}
		log.Warn().Int64("pedido_id", p.ID).
			Str("from", p.State).Str("to", toState).
			Msg("transição fora do workflow aceite em modo permissivo")
	}

	if changedBy == "" {
		changedBy = AtorSistema
	}
	return s.store.UpdateEstado(ctx, p.ID, p.State, toState, changedBy)
}

// --- Gestão de tipos de pedido ---

// TipoPedidoInput é a entrada de criação e atualização de tipos.
type TipoPedidoInput struct {
	Name      string `json:"name"`
	Workflow  string `json:"workflow"`
	TableName string `json:"table_name"`
}

// Validate garante nome, tabela e um workflow coerente. Workflows
// inválidos são recusados na escrita, nunca tolerados na leitura.
func (in TipoPedidoInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(2, 120)),
		validation.Field(&in.Workflow, validation.Required),
		validation.Field(&in.TableName, validation.Required, validation.Length(2, 80)),
	)
	if err != nil {
		return err
	}
	_, err = workflow.Parse(in.Workflow)
	return err
}

// CriarTipo regista um novo tipo de pedido.
func (s *Service) CriarTipo(ctx context.Context, in TipoPedidoInput) (*TipoPedido, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	t := &TipoPedido{Name: in.Name, Workflow: in.Workflow, TableName: in.TableName}
	if err := s.store.CreateTipoPedido(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// AtualizarTipo substitui nome e workflow. A tabela de payload é imutável
// depois da criação.
func (s *Service) AtualizarTipo(ctx context.Context, id int64, in TipoPedidoInput) (*TipoPedido, error) {
	existing, err := s.store.GetTipoPedido(ctx, id)
	if err != nil {
		return nil, err
	}
	in.TableName = existing.TableName
	if err := in.Validate(); err != nil {
		return nil, err
	}

	existing.Name = in.Name
	existing.Workflow = in.Workflow
	if err := s.store.UpdateTipoPedido(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// EliminarTipo remove um tipo sem pedidos associados.
func (s *Service) EliminarTipo(ctx context.Context, id int64) error {
	return s.store.DeleteTipoPedido(ctx, id)
}

// ListarTipos devolve todos os tipos registados.
func (s *Service) ListarTipos(ctx context.Context) ([]TipoPedido, error) {
	return s.store.ListTiposPedido(ctx)
}

// ObterTipo devolve um tipo por id.
func (s *Service) ObterTipo(ctx context.Context, id int64) (*TipoPedido, error) {
	return s.store.GetTipoPedido(ctx, id)
}
