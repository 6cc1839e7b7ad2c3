package geo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provê acesso ao armazenamento da hierarquia geográfica.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório geográfico.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListDistritos devolve os distritos ordenados por nome.
func (r *Repository) ListDistritos(ctx context.Context) ([]Distrito, error) {
	const query = `SELECT id, nome FROM distritos ORDER BY nome`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Distrito
	for rows.Next() {
		var d Distrito
		if err := rows.Scan(&d.ID, &d.Nome); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// GetDistrito busca distrito pelo identificador.
func (r *Repository) GetDistrito(ctx context.Context, id int64) (*Distrito, error) {
	const query = `SELECT id, nome FROM distritos WHERE id = $1`

	var d Distrito
	if err := r.pool.QueryRow(ctx, query, id).Scan(&d.ID, &d.Nome); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// CreateDistrito insere um novo distrito.
func (r *Repository) CreateDistrito(ctx context.Context, nome string) (*Distrito, error) {
	const query = `INSERT INTO distritos (nome) VALUES ($1) RETURNING id, nome`

	var d Distrito
	if err := r.pool.QueryRow(ctx, query, nome).Scan(&d.ID, &d.Nome); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDistrito altera o nome de um distrito.
func (r *Repository) UpdateDistrito(ctx context.Context, id int64, nome string) error {
	const query = `UPDATE distritos SET nome = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, nome)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDistrito remove um distrito sem filhos.
func (r *Repository) DeleteDistrito(ctx context.Context, id int64) error {
	const query = `DELETE FROM distritos WHERE id = $1`
	return r.deleteOne(ctx, query, id)
}

// CountConcelhosByDistrito conta os concelhos associados a um distrito.
func (r *Repository) CountConcelhosByDistrito(ctx context.Context, distritoID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM concelhos WHERE distrito_id = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, distritoID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListZinfs devolve as zonas ordenadas por nome.
func (r *Repository) ListZinfs(ctx context.Context) ([]Zinf, error) {
	const query = `SELECT id, nome FROM zinfs ORDER BY nome`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Zinf
	for rows.Next() {
		var z Zinf
		if err := rows.Scan(&z.ID, &z.Nome); err != nil {
			return nil, err
		}
		items = append(items, z)
	}
	return items, rows.Err()
}

// GetZinf busca zona pelo identificador.
func (r *Repository) GetZinf(ctx context.Context, id int64) (*Zinf, error) {
	const query = `SELECT id, nome FROM zinfs WHERE id = $1`

	var z Zinf
	if err := r.pool.QueryRow(ctx, query, id).Scan(&z.ID, &z.Nome); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &z, nil
}

// CreateZinf insere uma nova zona.
func (r *Repository) CreateZinf(ctx context.Context, nome string) (*Zinf, error) {
	const query = `INSERT INTO zinfs (nome) VALUES ($1) RETURNING id, nome`

	var z Zinf
	if err := r.pool.QueryRow(ctx, query, nome).Scan(&z.ID, &z.Nome); err != nil {
		return nil, err
	}
	return &z, nil
}

// UpdateZinf altera o nome de uma zona.
func (r *Repository) UpdateZinf(ctx context.Context, id int64, nome string) error {
	const query = `UPDATE zinfs SET nome = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, nome)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteZinf remove uma zona; as associações user_zinfs caem em cascata.
func (r *Repository) DeleteZinf(ctx context.Context, id int64) error {
	const query = `DELETE FROM zinfs WHERE id = $1`
	return r.deleteOne(ctx, query, id)
}

// CountConcelhosByZinf conta os concelhos associados a uma zona.
func (r *Repository) CountConcelhosByZinf(ctx context.Context, zinfID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM concelhos WHERE zinf_id = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, zinfID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListConcelhos devolve os concelhos, opcionalmente filtrados por distrito.
func (r *Repository) ListConcelhos(ctx context.Context, distritoID *int64) ([]Concelho, error) {
	const query = `
        SELECT id, nome, distrito_id, zinf_id
        FROM concelhos
        WHERE ($1::bigint IS NULL OR distrito_id = $1)
        ORDER BY nome
    `

	rows, err := r.pool.Query(ctx, query, distritoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Concelho
	for rows.Next() {
		var c Concelho
		if err := rows.Scan(&c.ID, &c.Nome, &c.DistritoID, &c.ZinfID); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// GetConcelho busca concelho pelo identificador.
func (r *Repository) GetConcelho(ctx context.Context, id int64) (*Concelho, error) {
	const query = `SELECT id, nome, distrito_id, zinf_id FROM concelhos WHERE id = $1`

	var c Concelho
	if err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Nome, &c.DistritoID, &c.ZinfID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateConcelho insere um novo concelho.
func (r *Repository) CreateConcelho(ctx context.Context, nome string, distritoID int64, zinfID *int64) (*Concelho, error) {
	const query = `
        INSERT INTO concelhos (nome, distrito_id, zinf_id)
        VALUES ($1, $2, $3)
        RETURNING id, nome, distrito_id, zinf_id
    `

	var c Concelho
	if err := r.pool.QueryRow(ctx, query, nome, distritoID, zinfID).Scan(&c.ID, &c.Nome, &c.DistritoID, &c.ZinfID); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateConcelho altera nome, distrito e zona de um concelho.
func (r *Repository) UpdateConcelho(ctx context.Context, id int64, nome string, distritoID int64, zinfID *int64) error {
	const query = `
        UPDATE concelhos
        SET nome = $2, distrito_id = $3, zinf_id = $4
        WHERE id = $1
    `

	tag, err := r.pool.Exec(ctx, query, id, nome, distritoID, zinfID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConcelho remove um concelho sem códigos postais.
func (r *Repository) DeleteConcelho(ctx context.Context, id int64) error {
	const query = `DELETE FROM concelhos WHERE id = $1`
	return r.deleteOne(ctx, query, id)
}

// CountCodigosPostaisByConcelho conta códigos postais de um concelho.
func (r *Repository) CountCodigosPostaisByConcelho(ctx context.Context, concelhoID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM codigos_postais WHERE concelho_id = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, concelhoID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListCodigosPostais devolve códigos postais, opcionalmente por concelho.
func (r *Repository) ListCodigosPostais(ctx context.Context, concelhoID *int64, limit, offset int) ([]CodigoPostal, error) {
	const query = `
        SELECT numero, freguesia, concelho_id
        FROM codigos_postais
        WHERE ($1::bigint IS NULL OR concelho_id = $1)
        ORDER BY numero
        LIMIT $2 OFFSET $3
    `

	rows, err := r.pool.Query(ctx, query, concelhoID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CodigoPostal
	for rows.Next() {
		var cp CodigoPostal
		if err := rows.Scan(&cp.Numero, &cp.Freguesia, &cp.ConcelhoID); err != nil {
			return nil, err
		}
		items = append(items, cp)
	}
	return items, rows.Err()
}

// UpsertCodigoPostal insere ou atualiza um código postal. O CHECK da tabela
// rejeita números fora do intervalo [1000000, 9999999].
func (r *Repository) UpsertCodigoPostal(ctx context.Context, cp CodigoPostal) error {
	const query = `
        INSERT INTO codigos_postais (numero, freguesia, concelho_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (numero) DO UPDATE SET freguesia = EXCLUDED.freguesia, concelho_id = EXCLUDED.concelho_id
    `

	_, err := r.pool.Exec(ctx, query, cp.Numero, cp.Freguesia, cp.ConcelhoID)
	return err
}

// DeleteCodigoPostal remove um código postal.
func (r *Repository) DeleteCodigoPostal(ctx context.Context, numero int) error {
	const query = `DELETE FROM codigos_postais WHERE numero = $1`
	return r.deleteOne(ctx, query, numero)
}

// ResolveCodigoPostal devolve a cadeia autoritativa para um número já
// normalizado.
func (r *Repository) ResolveCodigoPostal(ctx context.Context, numero int) (*Localizacao, error) {
	const query = `
        SELECT cp.numero, cp.freguesia,
               c.id, c.nome,
               d.id, d.nome,
               z.id, z.nome
        FROM codigos_postais cp
        JOIN concelhos c ON c.id = cp.concelho_id
        JOIN distritos d ON d.id = c.distrito_id
        LEFT JOIN zinfs z ON z.id = c.zinf_id
        WHERE cp.numero = $1
    `

	var loc Localizacao
	if err := r.pool.QueryRow(ctx, query, numero).Scan(
		&loc.Numero,
		&loc.Freguesia,
		&loc.ConcelhoID,
		&loc.Concelho,
		&loc.DistritoID,
		&loc.Distrito,
		&loc.ZinfID,
		&loc.ZinfNome,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &loc, nil
}

// ListZinfIDsForUser devolve as zonas associadas a qualquer grafia do
// utilizador.
func (r *Repository) ListZinfIDsForUser(ctx context.Context, candidates []string) ([]int64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	const query = `
        SELECT DISTINCT zinf_id
        FROM user_zinfs
        WHERE LOWER(user_principal_name) = ANY($1)
        ORDER BY zinf_id
    `

	lowered := make([]string, len(candidates))
	for i, c := range candidates {
		lowered[i] = strings.ToLower(c)
	}

	rows, err := r.pool.Query(ctx, query, lowered)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListUserPrincipalNamesByZinf devolve os utilizadores associados a uma zona.
func (r *Repository) ListUserPrincipalNamesByZinf(ctx context.Context, zinfID int64) ([]string, error) {
	const query = `
        SELECT DISTINCT user_principal_name
        FROM user_zinfs
        WHERE zinf_id = $1
        ORDER BY user_principal_name
    `

	rows, err := r.pool.Query(ctx, query, zinfID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var upns []string
	for rows.Next() {
		var upn string
		if err := rows.Scan(&upn); err != nil {
			return nil, err
		}
		upns = append(upns, upn)
	}
	return upns, rows.Err()
}

// ListZinfIDsByUPN devolve as associações atuais de uma grafia exata.
func (r *Repository) ListZinfIDsByUPN(ctx context.Context, upn string) ([]int64, error) {
	const query = `SELECT zinf_id FROM user_zinfs WHERE user_principal_name = $1 ORDER BY zinf_id`

	rows, err := r.pool.Query(ctx, query, upn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceUserZinfs substitui o conjunto de zonas de um utilizador.
func (r *Repository) ReplaceUserZinfs(ctx context.Context, upn string, zinfIDs []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_zinfs WHERE user_principal_name = $1`, upn); err != nil {
		return err
	}
	for _, id := range zinfIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_zinfs (user_principal_name, zinf_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			upn, id,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// DeleteUserZinfsByCandidates remove associações para todas as grafias do
// utilizador. Devolve o número de linhas removidas.
func (r *Repository) DeleteUserZinfsByCandidates(ctx context.Context, candidates []string) (int64, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	const query = `DELETE FROM user_zinfs WHERE LOWER(user_principal_name) = ANY($1)`

	lowered := make([]string, len(candidates))
	for i, c := range candidates {
		lowered[i] = strings.ToLower(c)
	}

	tag, err := r.pool.Exec(ctx, query, lowered)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) deleteOne(ctx context.Context, query string, arg any) error {
	tag, err := r.pool.Exec(ctx, query, arg)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503: violação de chave estrangeira
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrPossuiDependentes
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
