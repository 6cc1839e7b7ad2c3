package geo

import (
	"context"
	"errors"
	"testing"
)

type stubStore struct {
	resolvidos map[int]*Localizacao
	concelhos  int64
	codigos    int64
	zonas      int64
	deleted    []int64
}

func (s *stubStore) ResolveCodigoPostal(ctx context.Context, numero int) (*Localizacao, error) {
	if loc, ok := s.resolvidos[numero]; ok {
		return loc, nil
	}
	return nil, ErrNotFound
}
func (s *stubStore) CountConcelhosByDistrito(ctx context.Context, id int64) (int64, error) {
	return s.concelhos, nil
}
func (s *stubStore) CountCodigosPostaisByConcelho(ctx context.Context, id int64) (int64, error) {
	return s.codigos, nil
}
func (s *stubStore) CountConcelhosByZinf(ctx context.Context, id int64) (int64, error) {
	return s.zonas, nil
}
func (s *stubStore) DeleteDistrito(ctx context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}
func (s *stubStore) DeleteConcelho(ctx context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}
func (s *stubStore) DeleteZinf(ctx context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}
func (s *stubStore) UpsertCodigoPostal(ctx context.Context, cp CodigoPostal) error { return nil }
func (s *stubStore) DeleteCodigoPostal(ctx context.Context, numero int) error      { return nil }
func (s *stubStore) ListZinfIDsForUser(ctx context.Context, candidates []string) ([]int64, error) {
	return nil, nil
}

func TestNormalizarCodigoPostal(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1000-001", 1000001, false},
		{"1000 001", 1000001, false},
		{"1000001", 1000001, false},
		{"  1000-001  ", 1000001, false},
		{"1000-00", 0, true},
		{"1000-0011", 0, true},
		{"abcdefg", 0, true},
		{"", 0, true},
		{"0999-999", 0, true},
	}

	for _, tc := range tests {
		got, err := NormalizarCodigoPostal(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrFormatoInvalido) {
				t.Errorf("NormalizarCodigoPostal(%q) err = %v, esperado ErrFormatoInvalido", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizarCodigoPostal(%q) err = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizarCodigoPostal(%q) = %d, esperado %d", tc.in, got, tc.want)
		}
	}
}

func TestResolverFormatosEquivalentes(t *testing.T) {
	zinfID := int64(3)
	zinfNome := "ZINF Lisboa"
	store := &stubStore{resolvidos: map[int]*Localizacao{
		1000001: {
			Numero:     1000001,
			Freguesia:  "Santa Maria Maior",
			ConcelhoID: 7,
			Concelho:   "Lisboa",
			DistritoID: 11,
			Distrito:   "Lisboa",
			ZinfID:     &zinfID,
			ZinfNome:   &zinfNome,
		},
	}}
	svc := NewService(store, nil)

	for _, input := range []string{"1000-001", "1000 001", "1000001"} {
		loc, err := svc.Resolver(context.Background(), input)
		if err != nil {
			t.Fatalf("Resolver(%q) err = %v", input, err)
		}
		if loc.Freguesia != "Santa Maria Maior" || loc.Concelho != "Lisboa" || loc.Distrito != "Lisboa" {
			t.Errorf("Resolver(%q) devolveu cadeia errada: %+v", input, loc)
		}
		if loc.ZinfID == nil || *loc.ZinfID != zinfID {
			t.Errorf("Resolver(%q) não herdou a zona do concelho", input)
		}
	}
}

func TestResolverDistingueInvalidoDeInexistente(t *testing.T) {
	svc := NewService(&stubStore{resolvidos: map[int]*Localizacao{}}, nil)

	if _, err := svc.Resolver(context.Background(), "12-34"); !errors.Is(err, ErrFormatoInvalido) {
		t.Errorf("entrada malformada: err = %v, esperado ErrFormatoInvalido", err)
	}
	if _, err := svc.Resolver(context.Background(), "1000-001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("código desconhecido: err = %v, esperado ErrNotFound", err)
	}
}

func TestEliminarDistritoBloqueiaComFilhos(t *testing.T) {
	store := &stubStore{concelhos: 2}
	svc := NewService(store, nil)

	if err := svc.EliminarDistrito(context.Background(), 1); !errors.Is(err, ErrPossuiDependentes) {
		t.Fatalf("err = %v, esperado ErrPossuiDependentes", err)
	}
	if len(store.deleted) != 0 {
		t.Fatal("delete não deveria ter sido chamado")
	}

	store.concelhos = 0
	if err := svc.EliminarDistrito(context.Background(), 1); err != nil {
		t.Fatalf("err = %v, esperado sucesso sem filhos", err)
	}
	if len(store.deleted) != 1 {
		t.Fatal("delete deveria ter sido chamado uma vez")
	}
}

func TestGuardarCodigoPostalValidaIntervalo(t *testing.T) {
	svc := NewService(&stubStore{}, nil)

	for _, numero := range []int{0, 999999, 10000000} {
		err := svc.GuardarCodigoPostal(context.Background(), CodigoPostal{Numero: numero, Freguesia: "X", ConcelhoID: 1})
		if !errors.Is(err, ErrFormatoInvalido) {
			t.Errorf("GuardarCodigoPostal(%d) err = %v, esperado ErrFormatoInvalido", numero, err)
		}
	}

	if err := svc.GuardarCodigoPostal(context.Background(), CodigoPostal{Numero: 1000001, Freguesia: "X", ConcelhoID: 1}); err != nil {
		t.Errorf("número válido: err = %v", err)
	}
}
