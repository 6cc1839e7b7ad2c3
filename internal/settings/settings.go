package settings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound é devolvido quando a chave não existe.
var ErrNotFound = errors.New("configuração não encontrada")

// Chaves reconhecidas pela aplicação.
const (
	KeySendEmailToPedidoCreator     = "SendEmailToPedidoCreator"
	KeySendNovoPedidoEmailZinfUsers = "SendNovoPedidoEmailToZinfUsers"
	KeyPedidoBensEmailTemplate      = "PedidoBensEmailTemplate"
	KeyNovoPedidoTemplate           = "NovoPedidoTemplate"
	KeyEmailFrom                    = "EmailFrom"
	KeyEmailDryRunEnabled           = "EmailDryRunEnabled"
	KeyEmailDryRunRecipient         = "EmailDryRunRecipient"
	KeyWorkflowStrictTransitions    = "WorkflowStrictTransitions"
)

const cacheTTL = 2 * time.Minute

// Setting é um par chave/valor de configuração de runtime.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository provê acesso ao armazenamento de configurações.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório de configurações.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get devolve o valor associado à chave.
func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM app_settings WHERE key = $1`

	var value string
	if err := r.pool.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set insere ou atualiza o valor da chave.
func (r *Repository) Set(ctx context.Context, key, value string) error {
	const query = `
        INSERT INTO app_settings (key, value, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
    `

	_, err := r.pool.Exec(ctx, query, key, value)
	return err
}

// List devolve todas as configurações ordenadas por chave.
func (r *Repository) List(ctx context.Context) ([]Setting, error) {
	const query = `SELECT key, value, updated_at FROM app_settings ORDER BY key`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// Store é o subconjunto do repositório de que o serviço depende.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]Setting, error)
}

// Service expõe configurações de runtime com cache de leitura.
type Service struct {
	store Store
	cache *redis.Client
}

// NewService cria o serviço; cache pode ser nil.
func NewService(store Store, cache *redis.Client) *Service {
	return &Service{store: store, cache: cache}
}

// Get devolve o valor da chave, passando pelo cache quando disponível.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)

	cacheKey := "settings:" + key
	if s.cache != nil {
		if value, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			return value, nil
		}
	}

	value, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, value, cacheTTL).Err()
	}

	return value, nil
}

// GetBool interpreta a chave como booleano, com default quando ausente.
func (s *Service) GetBool(ctx context.Context, key string, def bool) bool {
	value, err := s.Get(ctx, key)
	if err != nil || strings.TrimSpace(value) == "" {
		return def
	}
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

// Set grava o valor e invalida o cache.
func (s *Service) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	if key == "" {
		return errors.New("chave obrigatória")
	}

	if err := s.store.Set(ctx, key, value); err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.Del(ctx, "settings:"+key).Err()
	}

	return nil
}

// List devolve todas as configurações.
func (s *Service) List(ctx context.Context) ([]Setting, error) {
	return s.store.List(ctx)
}
