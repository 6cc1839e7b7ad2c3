package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/entrajuda/emergencia/internal/auth"
	"github.com/entrajuda/emergencia/internal/config"
	"github.com/entrajuda/emergencia/internal/geo"
	"github.com/entrajuda/emergencia/internal/pedido"
	"github.com/entrajuda/emergencia/internal/settings"
)

const testWorkflow = `{
  "initialState": "NOVO",
  "states": [
    {"key": "NOVO", "label": "Novo", "type": "normal",
     "transitions": [{"to": "RESOLVIDO", "event": "resolver"}]},
    {"key": "RESOLVIDO", "label": "Resolvido", "type": "terminal"}
  ]
}`

// fakePedidoStore guarda tudo em memória para os testes de rotas.
type fakePedidoStore struct {
	tipos   map[int64]*pedido.TipoPedido
	pedidos map[int64]*pedido.Pedido
	bens    map[int64]*pedido.PedidoBem
	logs    []pedido.EstadoLog
}

func newFakePedidoStore() *fakePedidoStore {
	return &fakePedidoStore{
		tipos:   map[int64]*pedido.TipoPedido{},
		pedidos: map[int64]*pedido.Pedido{},
		bens:    map[int64]*pedido.PedidoBem{},
	}
}

func (s *fakePedidoStore) CreateTipoPedido(_ context.Context, t *pedido.TipoPedido) error {
	t.ID = int64(len(s.tipos) + 1)
	s.tipos[t.ID] = t
	return nil
}

func (s *fakePedidoStore) UpdateTipoPedido(_ context.Context, t *pedido.TipoPedido) error {
	if _, ok := s.tipos[t.ID]; !ok {
		return pedido.ErrTipoNotFound
	}
	s.tipos[t.ID] = t
	return nil
}

func (s *fakePedidoStore) GetTipoPedido(_ context.Context, id int64) (*pedido.TipoPedido, error) {
	t, ok := s.tipos[id]
	if !ok {
		return nil, pedido.ErrTipoNotFound
	}
	return t, nil
}

func (s *fakePedidoStore) GetTipoPedidoByTableName(_ context.Context, tableName string) (*pedido.TipoPedido, error) {
	for _, t := range s.tipos {
		if t.TableName == tableName {
			return t, nil
		}
	}
	return nil, pedido.ErrTipoNotFound
}

func (s *fakePedidoStore) DeleteTipoPedido(_ context.Context, id int64) error {
	for _, p := range s.pedidos {
		if p.TipoPedidoID == id {
			return pedido.ErrTipoEmUso
		}
	}
	if _, ok := s.tipos[id]; !ok {
		return pedido.ErrTipoNotFound
	}
	delete(s.tipos, id)
	return nil
}

func (s *fakePedidoStore) ListTiposPedido(_ context.Context) ([]pedido.TipoPedido, error) {
	var out []pedido.TipoPedido
	for _, t := range s.tipos {
		out = append(out, *t)
	}
	return out, nil
}

func (s *fakePedidoStore) CreateSubmissaoBens(_ context.Context, bem *pedido.PedidoBem, p *pedido.Pedido, changedBy string) error {
	bem.ID = int64(len(s.bens) + 1)
	s.bens[bem.ID] = bem
	p.ID = int64(len(s.pedidos) + 1)
	p.ExternalRequestID = bem.ID
	s.pedidos[p.ID] = p
	s.logs = append(s.logs, pedido.EstadoLog{
		PedidoID: p.ID, FromState: pedido.EstadoSentinela, ToState: p.State, ChangedBy: changedBy,
	})
	return nil
}

func (s *fakePedidoStore) GetPedidoByPublicID(_ context.Context, publicID uuid.UUID) (*pedido.Pedido, error) {
	for _, p := range s.pedidos {
		if p.PublicID == publicID {
			return p, nil
		}
	}
	return nil, pedido.ErrNotFound
}

func (s *fakePedidoStore) GetPedido(_ context.Context, id int64) (*pedido.Pedido, error) {
	p, ok := s.pedidos[id]
	if !ok {
		return nil, pedido.ErrNotFound
	}
	return p, nil
}

func (s *fakePedidoStore) ListPedidos(_ context.Context, f pedido.ListFilter) ([]pedido.PedidoResumo, error) {
	var out []pedido.PedidoResumo
	for _, p := range s.pedidos {
		if f.ZinfIDs != nil {
			match := false
			for _, id := range f.ZinfIDs {
				if p.ZinfID != nil && *p.ZinfID == id {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		tipo := s.tipos[p.TipoPedidoID]
		if f.TableName != "" && tipo.TableName != f.TableName {
			continue
		}
		out = append(out, pedido.PedidoResumo{
			Pedido: *p, TipoPedidoName: tipo.Name, TipoPedidoTableName: tipo.TableName,
		})
	}
	return out, nil
}

func (s *fakePedidoStore) GetPedidoBem(_ context.Context, id int64) (*pedido.PedidoBem, error) {
	b, ok := s.bens[id]
	if !ok {
		return nil, pedido.ErrNotFound
	}
	return b, nil
}

func (s *fakePedidoStore) ListEstadoLogs(_ context.Context, pedidoID int64) ([]pedido.EstadoLog, error) {
	var out []pedido.EstadoLog
	for _, l := range s.logs {
		if l.PedidoID == pedidoID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *fakePedidoStore) UpdateEstado(_ context.Context, pedidoID int64, fromState, toState, changedBy string) error {
	p, ok := s.pedidos[pedidoID]
	if !ok || p.State != fromState {
		return pedido.ErrNotFound
	}
	p.State = toState
	s.logs = append(s.logs, pedido.EstadoLog{
		PedidoID: pedidoID, FromState: fromState, ToState: toState, ChangedBy: changedBy,
	})
	return nil
}

// fakeGeoStore resolve um único código postal e associa zonas a um UPN.
type fakeGeoStore struct {
	loc       *geo.Localizacao
	userZinfs map[string][]int64
}

func (s *fakeGeoStore) ResolveCodigoPostal(_ context.Context, numero int) (*geo.Localizacao, error) {
	if s.loc == nil || s.loc.Numero != numero {
		return nil, geo.ErrNotFound
	}
	return s.loc, nil
}

func (s *fakeGeoStore) CountConcelhosByDistrito(_ context.Context, _ int64) (int64, error) {
	return 0, nil
}

func (s *fakeGeoStore) CountCodigosPostaisByConcelho(_ context.Context, _ int64) (int64, error) {
	return 0, nil
}

func (s *fakeGeoStore) CountConcelhosByZinf(_ context.Context, _ int64) (int64, error) {
	return 0, nil
}

func (s *fakeGeoStore) DeleteDistrito(_ context.Context, _ int64) error { return nil }
func (s *fakeGeoStore) DeleteConcelho(_ context.Context, _ int64) error { return nil }
func (s *fakeGeoStore) DeleteZinf(_ context.Context, _ int64) error     { return nil }

func (s *fakeGeoStore) UpsertCodigoPostal(_ context.Context, _ geo.CodigoPostal) error { return nil }
func (s *fakeGeoStore) DeleteCodigoPostal(_ context.Context, _ int) error              { return nil }

func (s *fakeGeoStore) ListZinfIDsForUser(_ context.Context, candidates []string) ([]int64, error) {
	var out []int64
	seen := map[int64]bool{}
	for _, c := range candidates {
		for _, id := range s.userZinfs[c] {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out, nil
}

type fakeSettingsStore struct {
	values map[string]string
}

func (s *fakeSettingsStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", settings.ErrNotFound
	}
	return v, nil
}

func (s *fakeSettingsStore) Set(_ context.Context, key, value string) error {
	s.values[key] = value
	return nil
}

func (s *fakeSettingsStore) List(_ context.Context) ([]settings.Setting, error) {
	return nil, nil
}

type testEnv struct {
	router     http.Handler
	store      *fakePedidoStore
	geoStore   *fakeGeoStore
	jwtManager *auth.JWTManager
	cfg        *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		AdminRole:       "BackofficeAdmin",
		VolunteerRole:   "Volunteer",
		GuestSuffix:     "#EXT#@entrajuda.onmicrosoft.com",
		RateLimitPublic: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		RateLimitStaff:  config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}

	zinf := int64(7)
	geoStore := &fakeGeoStore{
		loc: &geo.Localizacao{
			Numero: 1000001, Freguesia: "Arroios", Concelho: "Lisboa",
			Distrito: "Lisboa", ZinfID: &zinf,
		},
		userZinfs: map[string][]int64{},
	}
	geoSvc := geo.NewService(geoStore, nil)

	store := newFakePedidoStore()
	tipo := &pedido.TipoPedido{Name: "Apoio em Bens", Workflow: testWorkflow, TableName: pedido.TableNamePedidosBens}
	if err := store.CreateTipoPedido(context.Background(), tipo); err != nil {
		t.Fatal(err)
	}

	cfgSvc := settings.NewService(&fakeSettingsStore{values: map[string]string{}}, nil)
	pedidos := pedido.NewService(store, geoSvc, cfgSvc, nil)

	jwtManager := auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)

	router := NewRouter(Deps{
		Cfg:        cfg,
		JWTManager: jwtManager,
		Normalizer: auth.NewNormalizer(cfg.GuestSuffix),
		Pedidos:    pedidos,
		GeoService: geoSvc,
		Settings:   cfgSvc,
	})

	return &testEnv{router: router, store: store, geoStore: geoStore, jwtManager: jwtManager, cfg: cfg}
}

func (e *testEnv) token(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	token, err := e.jwtManager.GenerateAccessToken(subject, subject, subject, roles)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func submissaoBody() map[string]any {
	return map[string]any{
		"full_name":            "Maria Exemplo",
		"phone_number":         "912345678",
		"email":                "maria@example.com",
		"address":              "Rua das Flores 1",
		"postal_code":          "1000-001",
		"localidade":           "Lisboa",
		"age":                  42,
		"household_size":       3,
		"children_under_12":    1,
		"youth_13_to_17":       0,
		"adults_18_plus":       2,
		"seniors_65_plus":      0,
		"needed_product_types": []string{"Alimentos"},
	}
}

func TestSubmissaoPublicaDevolvePublicID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/apoio_bens", "", submissaoBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Data struct {
			PublicID string `json:"public_id"`
			State    string `json:"state"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(out.Data.PublicID); err != nil {
		t.Errorf("public_id inválido: %q", out.Data.PublicID)
	}
	if out.Data.State != "NOVO" {
		t.Errorf("state = %q", out.Data.State)
	}
}

func TestSubmissaoCodigoPostalDesconhecido(t *testing.T) {
	env := newTestEnv(t)

	body := submissaoBody()
	body["postal_code"] = "9999-999"

	rec := env.do(t, http.MethodPost, "/apoio_bens", "", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestSubmissaoCodigoPostalMalFormado(t *testing.T) {
	env := newTestEnv(t)

	body := submissaoBody()
	body["postal_code"] = "12-34"

	rec := env.do(t, http.MethodPost, "/apoio_bens", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Error.Code != "FORMATO_INVALIDO" {
		t.Errorf("code = %q", out.Error.Code)
	}
}

func TestConsultaPublicaPorPublicID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/apoio_bens", "", submissaoBody())
	var created struct {
		Data struct {
			PublicID string `json:"public_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = env.do(t, http.MethodGet, "/pedido/"+created.Data.PublicID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/pedido/"+uuid.NewString(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("pedido inexistente: status = %d", rec.Code)
	}
}

func TestEncaminhamentoExigeAutenticacao(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/encaminhamento/pedidos", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}

	token := env.token(t, "alguem@example.com")
	rec = env.do(t, http.MethodGet, "/encaminhamento/pedidos", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("sem papel: status = %d", rec.Code)
	}
}

func TestEncaminhamentoVoluntarioLimitadoAZona(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/apoio_bens", "", submissaoBody())

	// Voluntário sem zonas atribuídas não vê nada.
	token := env.token(t, "vol@example.com", "Volunteer")
	rec := env.do(t, http.MethodGet, "/encaminhamento/pedidos", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Data) != 0 {
		t.Errorf("voluntário sem zonas viu %d pedidos", len(out.Data))
	}

	// Com a zona 7 atribuída passa a ver o pedido.
	env.geoStore.userZinfs["vol@example.com"] = []int64{7}
	rec = env.do(t, http.MethodGet, "/encaminhamento/pedidos", token, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Data) != 1 {
		t.Errorf("voluntário com zona viu %d pedidos", len(out.Data))
	}
}

func TestDetalheForaDaZonaDevolve403(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/apoio_bens", "", submissaoBody())

	token := env.token(t, "vol@example.com", "Volunteer")
	env.geoStore.userZinfs["vol@example.com"] = []int64{99}

	rec := env.do(t, http.MethodGet, "/encaminhamento/pedidos/1", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Error.Code != "ZONA_NAO_AUTORIZADA" {
		t.Errorf("code = %q", out.Error.Code)
	}
}

func TestAlterarEstadoViaAPI(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/apoio_bens", "", submissaoBody())

	token := env.token(t, "admin@example.com", "BackofficeAdmin")

	rec := env.do(t, http.MethodPost, "/encaminhamento/pedidos/1/estado", token,
		map[string]string{"estado": "RESOLVIDO"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if env.store.pedidos[1].State != "RESOLVIDO" {
		t.Errorf("estado = %q", env.store.pedidos[1].State)
	}

	// Transição fora do workflow é recusada em modo estrito.
	rec = env.do(t, http.MethodPost, "/encaminhamento/pedidos/1/estado", token,
		map[string]string{"estado": "NOVO"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCriarTipoComWorkflowInvalido(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "admin@example.com", "BackofficeAdmin")

	rec := env.do(t, http.MethodPost, "/backoffice/tipos-pedido/", token, map[string]string{
		"name":       "Outro",
		"table_name": "PedidosOutro",
		"workflow":   `{"initialState": "X", "states": [{"key": "A", "type": "normal"}]}`,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Error.Code != "WORKFLOW_INVALIDO" {
		t.Errorf("code = %q", out.Error.Code)
	}
}
