// Package instituicao gere o registo de instituições parceiras,
// incluindo a importação em massa a partir de folhas de cálculo.
package instituicao

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound é devolvido quando a instituição não existe.
	ErrNotFound = errors.New("instituição não encontrada")
	// ErrCodigoDuplicado indica um código EA já registado.
	ErrCodigoDuplicado = errors.New("código EA já registado")
)

// Instituicao é uma entidade parceira identificada pelo código EA.
type Instituicao struct {
	ID           int64     `json:"id"`
	CodigoEA     string    `json:"codigo_ea"`
	Nome         string    `json:"nome"`
	Distrito     string    `json:"distrito"`
	Concelho     string    `json:"concelho"`
	Morada       string    `json:"morada"`
	CodigoPostal string    `json:"codigo_postal"`
	Email        string    `json:"email"`
	Telefone     string    `json:"telefone"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Repository provê acesso SQL às instituições.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria o repositório de instituições.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List devolve todas as instituições ordenadas por nome.
func (r *Repository) List(ctx context.Context) ([]Instituicao, error) {
	const query = `
        SELECT id, codigo_ea, nome, distrito, concelho, morada,
               codigo_postal, email, telefone, created_at, updated_at
          FROM instituicoes
         ORDER BY nome
    `

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Instituicao
	for rows.Next() {
		var i Instituicao
		err := rows.Scan(&i.ID, &i.CodigoEA, &i.Nome, &i.Distrito, &i.Concelho,
			&i.Morada, &i.CodigoPostal, &i.Email, &i.Telefone, &i.CreatedAt, &i.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// Get devolve uma instituição por id.
func (r *Repository) Get(ctx context.Context, id int64) (*Instituicao, error) {
	const query = `
        SELECT id, codigo_ea, nome, distrito, concelho, morada,
               codigo_postal, email, telefone, created_at, updated_at
          FROM instituicoes
         WHERE id = $1
    `

	var i Instituicao
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&i.ID, &i.CodigoEA, &i.Nome, &i.Distrito, &i.Concelho,
		&i.Morada, &i.CodigoPostal, &i.Email, &i.Telefone, &i.CreatedAt, &i.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// Create insere uma instituição nova.
func (r *Repository) Create(ctx context.Context, i *Instituicao) error {
	const query = `
        INSERT INTO instituicoes (codigo_ea, nome, distrito, concelho, morada,
                                  codigo_postal, email, telefone, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
        RETURNING id, created_at, updated_at
    `

	err := r.pool.QueryRow(ctx, query, i.CodigoEA, i.Nome, i.Distrito, i.Concelho,
		i.Morada, i.CodigoPostal, i.Email, i.Telefone).
		Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrCodigoDuplicado
	}
	return err
}

// Update substitui os dados de uma instituição existente.
func (r *Repository) Update(ctx context.Context, i *Instituicao) error {
	const query = `
        UPDATE instituicoes
           SET nome = $2, distrito = $3, concelho = $4, morada = $5,
               codigo_postal = $6, email = $7, telefone = $8, updated_at = now()
         WHERE id = $1
    `

	tag, err := r.pool.Exec(ctx, query, i.ID, i.Nome, i.Distrito, i.Concelho,
		i.Morada, i.CodigoPostal, i.Email, i.Telefone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete remove uma instituição.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM instituicoes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertByCodigoEA insere ou atualiza pelo código EA. Devolve true quando
// a linha foi inserida de novo.
func (r *Repository) UpsertByCodigoEA(ctx context.Context, i *Instituicao) (bool, error) {
	const query = `
        INSERT INTO instituicoes (codigo_ea, nome, distrito, concelho, morada,
                                  codigo_postal, email, telefone, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
        ON CONFLICT (codigo_ea) DO UPDATE
           SET nome = EXCLUDED.nome, distrito = EXCLUDED.distrito,
               concelho = EXCLUDED.concelho, morada = EXCLUDED.morada,
               codigo_postal = EXCLUDED.codigo_postal, email = EXCLUDED.email,
               telefone = EXCLUDED.telefone, updated_at = now()
        RETURNING id, (created_at = updated_at)
    `

	var inserted bool
	err := r.pool.QueryRow(ctx, query, i.CodigoEA, i.Nome, i.Distrito, i.Concelho,
		i.Morada, i.CodigoPostal, i.Email, i.Telefone).
		Scan(&i.ID, &inserted)
	return inserted, err
}
