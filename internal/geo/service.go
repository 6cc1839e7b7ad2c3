package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	codigoPostalMin = 1000000
	codigoPostalMax = 9999999

	resolveCacheTTL = 10 * time.Minute
)

// Store é o subconjunto do repositório de que o serviço depende.
type Store interface {
	ResolveCodigoPostal(ctx context.Context, numero int) (*Localizacao, error)
	CountConcelhosByDistrito(ctx context.Context, distritoID int64) (int64, error)
	CountCodigosPostaisByConcelho(ctx context.Context, concelhoID int64) (int64, error)
	CountConcelhosByZinf(ctx context.Context, zinfID int64) (int64, error)
	DeleteDistrito(ctx context.Context, id int64) error
	DeleteConcelho(ctx context.Context, id int64) error
	DeleteZinf(ctx context.Context, id int64) error
	UpsertCodigoPostal(ctx context.Context, cp CodigoPostal) error
	DeleteCodigoPostal(ctx context.Context, numero int) error
	ListZinfIDsForUser(ctx context.Context, candidates []string) ([]int64, error)
}

// Service contém as regras de resolução geográfica e de curadoria.
type Service struct {
	store Store
	cache *redis.Client
}

// NewService cria o serviço; cache pode ser nil.
func NewService(store Store, cache *redis.Client) *Service {
	return &Service{store: store, cache: cache}
}

// NormalizarCodigoPostal remove espaços e hífens e exige exatamente 7
// dígitos. Entrada que não reduz a 7 dígitos é ErrFormatoInvalido, nunca
// "não encontrado".
func NormalizarCodigoPostal(raw string) (int, error) {
	digits := strings.TrimSpace(raw)
	digits = strings.ReplaceAll(digits, "-", "")
	digits = strings.ReplaceAll(digits, " ", "")

	if len(digits) != 7 {
		return 0, ErrFormatoInvalido
	}

	numero, err := strconv.Atoi(digits)
	if err != nil {
		return 0, ErrFormatoInvalido
	}
	if numero < codigoPostalMin || numero > codigoPostalMax {
		return 0, ErrFormatoInvalido
	}

	return numero, nil
}

// Resolver transforma a entrada do utilizador na cadeia autoritativa
// (freguesia, concelho, distrito, zona).
func (s *Service) Resolver(ctx context.Context, raw string) (*Localizacao, error) {
	numero, err := NormalizarCodigoPostal(raw)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("geo:cp:%d", numero)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var loc Localizacao
			if json.Unmarshal(data, &loc) == nil {
				return &loc, nil
			}
		}
	}

	loc, err := s.store.ResolveCodigoPostal(ctx, numero)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(loc); err == nil {
			_ = s.cache.Set(ctx, key, payload, resolveCacheTTL).Err()
		}
	}

	return loc, nil
}

// EliminarDistrito remove um distrito, bloqueando quando existem concelhos.
func (s *Service) EliminarDistrito(ctx context.Context, id int64) error {
	count, err := s.store.CountConcelhosByDistrito(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrPossuiDependentes
	}
	return s.store.DeleteDistrito(ctx, id)
}

// EliminarConcelho remove um concelho, bloqueando quando existem códigos
// postais.
func (s *Service) EliminarConcelho(ctx context.Context, id int64) error {
	count, err := s.store.CountCodigosPostaisByConcelho(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrPossuiDependentes
	}
	return s.store.DeleteConcelho(ctx, id)
}

// EliminarZinf remove uma zona, bloqueando quando existem concelhos
// associados. As associações de utilizadores caem em cascata.
func (s *Service) EliminarZinf(ctx context.Context, id int64) error {
	count, err := s.store.CountConcelhosByZinf(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrPossuiDependentes
	}
	return s.store.DeleteZinf(ctx, id)
}

// GuardarCodigoPostal valida o intervalo e faz upsert, invalidando o cache.
func (s *Service) GuardarCodigoPostal(ctx context.Context, cp CodigoPostal) error {
	if cp.Numero < codigoPostalMin || cp.Numero > codigoPostalMax {
		return ErrFormatoInvalido
	}
	if strings.TrimSpace(cp.Freguesia) == "" {
		return fmt.Errorf("%w: freguesia obrigatória", ErrFormatoInvalido)
	}

	if err := s.store.UpsertCodigoPostal(ctx, cp); err != nil {
		return err
	}
	s.invalidate(ctx, cp.Numero)
	return nil
}

// EliminarCodigoPostal remove um código postal e invalida o cache.
func (s *Service) EliminarCodigoPostal(ctx context.Context, numero int) error {
	if err := s.store.DeleteCodigoPostal(ctx, numero); err != nil {
		return err
	}
	s.invalidate(ctx, numero)
	return nil
}

// ZinfIDsDoUtilizador expande as grafias candidatas e devolve as zonas
// atribuídas.
func (s *Service) ZinfIDsDoUtilizador(ctx context.Context, candidates []string) ([]int64, error) {
	return s.store.ListZinfIDsForUser(ctx, candidates)
}

func (s *Service) invalidate(ctx context.Context, numero int) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, fmt.Sprintf("geo:cp:%d", numero)).Err()
}
