package pedido

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entrajuda/emergencia/internal/db"
)

// Repository concentra o acesso SQL a pedidos, tipos e logs de estado.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria o repositório de pedidos.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// --- Tipos de pedido ---

// CreateTipoPedido insere um tipo de pedido.
func (r *Repository) CreateTipoPedido(ctx context.Context, t *TipoPedido) error {
	const query = `
        INSERT INTO tipos_pedido (name, workflow, table_name, created_at)
        VALUES ($1, $2, $3, now())
        RETURNING id, created_at
    `

	return r.pool.QueryRow(ctx, query, t.Name, t.Workflow, t.TableName).
		Scan(&t.ID, &t.CreatedAt)
}

// UpdateTipoPedido substitui nome e workflow de um tipo existente.
func (r *Repository) UpdateTipoPedido(ctx context.Context, t *TipoPedido) error {
	const query = `
        UPDATE tipos_pedido
           SET name = $2, workflow = $3
         WHERE id = $1
    `

	tag, err := r.pool.Exec(ctx, query, t.ID, t.Name, t.Workflow)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTipoNotFound
	}
	return nil
}

// GetTipoPedido devolve um tipo por identificador.
func (r *Repository) GetTipoPedido(ctx context.Context, id int64) (*TipoPedido, error) {
	const query = `
        SELECT id, name, created_at, workflow, table_name
          FROM tipos_pedido
         WHERE id = $1
    `

	return scanTipo(r.pool.QueryRow(ctx, query, id))
}

// GetTipoPedidoByTableName devolve o tipo associado a uma tabela de payload.
func (r *Repository) GetTipoPedidoByTableName(ctx context.Context, tableName string) (*TipoPedido, error) {
	const query = `
        SELECT id, name, created_at, workflow, table_name
          FROM tipos_pedido
         WHERE table_name = $1
    `

	return scanTipo(r.pool.QueryRow(ctx, query, tableName))
}

// DeleteTipoPedido remove um tipo sem pedidos associados.
func (r *Repository) DeleteTipoPedido(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tipos_pedido WHERE id = $1`, id)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrTipoEmUso
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTipoNotFound
	}
	return nil
}

// ListTiposPedido devolve todos os tipos por ordem de criação.
func (r *Repository) ListTiposPedido(ctx context.Context) ([]TipoPedido, error) {
	const query = `
        SELECT id, name, created_at, workflow, table_name
          FROM tipos_pedido
         ORDER BY created_at
    `

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tipos []TipoPedido
	for rows.Next() {
		var t TipoPedido
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.Workflow, &t.TableName); err != nil {
			return nil, err
		}
		tipos = append(tipos, t)
	}
	return tipos, rows.Err()
}

func scanTipo(row pgx.Row) (*TipoPedido, error) {
	var t TipoPedido
	err := row.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.Workflow, &t.TableName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTipoNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// --- Pedidos ---

// CreateSubmissaoBens grava payload, pedido e primeiro registo de estado
// numa única transação. Ou fica tudo, ou não fica nada.
func (r *Repository) CreateSubmissaoBens(ctx context.Context, bem *PedidoBem, p *Pedido, changedBy string) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		const insertBem = `
            INSERT INTO pedidos_bens (
                full_name, phone_number, email, address, postal_code,
                localidade, freguesia, concelho, identification_number, age,
                household_size, children_under_12, youth_13_to_17,
                adults_18_plus, seniors_65_plus, receives_food_support,
                food_support_institution_name, can_pick_up_nearby,
                needed_product_types, other_needed_product_types_details,
                suggestions, created_at
            )
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
                    $13, $14, $15, $16, $17, $18, $19, $20, $21, now())
            RETURNING id, created_at
        `

		err := tx.QueryRow(ctx, insertBem,
			bem.FullName, bem.PhoneNumber, bem.Email, bem.Address, bem.PostalCode,
			bem.Localidade, bem.Freguesia, bem.Concelho, bem.IdentificationNumber, bem.Age,
			bem.HouseholdSize, bem.ChildrenUnder12, bem.Youth13To17,
			bem.Adults18Plus, bem.Seniors65Plus, bem.ReceivesFoodSupport,
			bem.FoodSupportInstitutionName, bem.CanPickUpNearby,
			bem.NeededProductTypes, bem.OtherNeededProductTypesDetails,
			bem.Suggestions,
		).Scan(&bem.ID, &bem.CreatedAt)
		if err != nil {
			return err
		}

		const insertPedido = `
            INSERT INTO pedidos (public_id, created_at, state, external_request_id, tipo_pedido_id, zinf_id)
            VALUES ($1, now(), $2, $3, $4, $5)
            RETURNING id, created_at
        `

		p.ExternalRequestID = bem.ID
		if p.PublicID == uuid.Nil {
			p.PublicID = uuid.New()
		}
		err = tx.QueryRow(ctx, insertPedido,
			p.PublicID, p.State, p.ExternalRequestID, p.TipoPedidoID, p.ZinfID,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return err
		}

		const insertLog = `
            INSERT INTO pedido_estado_logs (pedido_id, changed_at, from_state, to_state, changed_by)
            VALUES ($1, now(), $2, $3, $4)
        `

		_, err = tx.Exec(ctx, insertLog, p.ID, EstadoSentinela, p.State, changedBy)
		return err
	})
}

// GetPedidoByPublicID devolve o pedido pelo identificador público.
func (r *Repository) GetPedidoByPublicID(ctx context.Context, publicID uuid.UUID) (*Pedido, error) {
	const query = `
        SELECT id, public_id, created_at, state, external_request_id, tipo_pedido_id, zinf_id
          FROM pedidos
         WHERE public_id = $1
    `

	return scanPedido(r.pool.QueryRow(ctx, query, publicID))
}

// GetPedido devolve o pedido pelo identificador interno.
func (r *Repository) GetPedido(ctx context.Context, id int64) (*Pedido, error) {
	const query = `
        SELECT id, public_id, created_at, state, external_request_id, tipo_pedido_id, zinf_id
          FROM pedidos
         WHERE id = $1
    `

	return scanPedido(r.pool.QueryRow(ctx, query, id))
}

func scanPedido(row pgx.Row) (*Pedido, error) {
	var p Pedido
	err := row.Scan(&p.ID, &p.PublicID, &p.CreatedAt, &p.State,
		&p.ExternalRequestID, &p.TipoPedidoID, &p.ZinfID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListFilter limita a listagem de pedidos.
type ListFilter struct {
	// ZinfIDs restringe às zonas indicadas quando não nil. Lista vazia
	// não devolve nada.
	ZinfIDs []int64
	// TipoPedidoID filtra por tipo quando > 0.
	TipoPedidoID int64
	// Estado filtra por estado quando não vazio.
	Estado string
	// TableName filtra pelo tipo de formulário quando não vazio.
	TableName string
}

// ListPedidos devolve pedidos (mais recentes primeiro) com o filtro dado.
func (r *Repository) ListPedidos(ctx context.Context, f ListFilter) ([]PedidoResumo, error) {
	const query = `
        SELECT p.id, p.public_id, p.created_at, p.state,
               p.external_request_id, p.tipo_pedido_id, p.zinf_id,
               t.name, t.table_name
          FROM pedidos p
          JOIN tipos_pedido t ON t.id = p.tipo_pedido_id
         WHERE ($1::bigint[] IS NULL OR p.zinf_id = ANY($1))
           AND ($2::bigint = 0 OR p.tipo_pedido_id = $2)
           AND ($3::text = '' OR p.state = $3)
           AND ($4::text = '' OR t.table_name = $4)
         ORDER BY p.created_at DESC
    `

	rows, err := r.pool.Query(ctx, query, f.ZinfIDs, f.TipoPedidoID, f.Estado, f.TableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pedidos []PedidoResumo
	for rows.Next() {
		var p PedidoResumo
		err := rows.Scan(&p.ID, &p.PublicID, &p.CreatedAt, &p.State,
			&p.ExternalRequestID, &p.TipoPedidoID, &p.ZinfID,
			&p.TipoPedidoName, &p.TipoPedidoTableName)
		if err != nil {
			return nil, err
		}
		pedidos = append(pedidos, p)
	}
	return pedidos, rows.Err()
}

// GetPedidoBem devolve o payload de bens pelo identificador.
func (r *Repository) GetPedidoBem(ctx context.Context, id int64) (*PedidoBem, error) {
	const query = `
        SELECT id, full_name, phone_number, email, address, postal_code,
               localidade, freguesia, concelho, identification_number, age,
               household_size, children_under_12, youth_13_to_17,
               adults_18_plus, seniors_65_plus, receives_food_support,
               food_support_institution_name, can_pick_up_nearby,
               needed_product_types, other_needed_product_types_details,
               suggestions, created_at
          FROM pedidos_bens
         WHERE id = $1
    `

	var b PedidoBem
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.FullName, &b.PhoneNumber, &b.Email, &b.Address, &b.PostalCode,
		&b.Localidade, &b.Freguesia, &b.Concelho, &b.IdentificationNumber, &b.Age,
		&b.HouseholdSize, &b.ChildrenUnder12, &b.Youth13To17,
		&b.Adults18Plus, &b.Seniors65Plus, &b.ReceivesFoodSupport,
		&b.FoodSupportInstitutionName, &b.CanPickUpNearby,
		&b.NeededProductTypes, &b.OtherNeededProductTypesDetails,
		&b.Suggestions, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListEstadoLogs devolve o histórico de estados por ordem cronológica.
func (r *Repository) ListEstadoLogs(ctx context.Context, pedidoID int64) ([]EstadoLog, error) {
	const query = `
        SELECT id, pedido_id, changed_at, from_state, to_state, changed_by
          FROM pedido_estado_logs
         WHERE pedido_id = $1
         ORDER BY changed_at, id
    `

	rows, err := r.pool.Query(ctx, query, pedidoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []EstadoLog
	for rows.Next() {
		var l EstadoLog
		if err := rows.Scan(&l.ID, &l.PedidoID, &l.ChangedAt, &l.FromState, &l.ToState, &l.ChangedBy); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// UpdateEstado muda o estado do pedido e acrescenta o registo de log na
// mesma transação.
func (r *Repository) UpdateEstado(ctx context.Context, pedidoID int64, fromState, toState, changedBy string) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		const update = `
            UPDATE pedidos
               SET state = $2
             WHERE id = $1 AND state = $3
        `

		tag, err := tx.Exec(ctx, update, pedidoID, toState, fromState)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		const insertLog = `
            INSERT INTO pedido_estado_logs (pedido_id, changed_at, from_state, to_state, changed_by)
            VALUES ($1, now(), $2, $3, $4)
        `

		_, err = tx.Exec(ctx, insertLog, pedidoID, fromState, toState, changedBy)
		return err
	})
}
