package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/entrajuda/emergencia/internal/auth"
	"github.com/entrajuda/emergencia/internal/config"
	"github.com/entrajuda/emergencia/internal/directory"
	"github.com/entrajuda/emergencia/internal/geo"
	httpmiddleware "github.com/entrajuda/emergencia/internal/http/middleware"
	"github.com/entrajuda/emergencia/internal/instituicao"
	"github.com/entrajuda/emergencia/internal/mailer"
	"github.com/entrajuda/emergencia/internal/pedido"
	"github.com/entrajuda/emergencia/internal/settings"
	"github.com/entrajuda/emergencia/internal/workflow"
)

// UserZinfStore gere as associações entre utilizadores e zonas.
type UserZinfStore interface {
	ReplaceUserZinfs(ctx context.Context, upn string, zinfIDs []int64) error
	DeleteUserZinfsByCandidates(ctx context.Context, candidates []string) (int64, error)
}

// Handler agrega as dependências dos endpoints HTTP.
type Handler struct {
	cfg           *config.Config
	jwtManager    *auth.JWTManager
	normalizer    *auth.Normalizer
	pedidos       *pedido.Service
	geoSvc        *geo.Service
	geoRepo       *geo.Repository
	userZinfs     UserZinfStore
	config        *settings.Service
	instituicoes  *instituicao.Service
	instRepo      *instituicao.Repository
	mail          *mailer.Service
	emailLogs     *mailer.LogRepository
	directory     directory.Service
	publicLimiter *httpmiddleware.RateLimiter
	staffLimiter  *httpmiddleware.RateLimiter
}

// Deps lista o que o roteador precisa receber montado.
type Deps struct {
	Cfg          *config.Config
	JWTManager   *auth.JWTManager
	Normalizer   *auth.Normalizer
	Pedidos      *pedido.Service
	GeoService   *geo.Service
	GeoRepo      *geo.Repository
	UserZinfs    UserZinfStore
	Settings     *settings.Service
	Instituicoes *instituicao.Service
	InstRepo     *instituicao.Repository
	Mailer       *mailer.Service
	EmailLogs    *mailer.LogRepository
	Directory    directory.Service
}

// NewRouter devolve o roteador configurado.
func NewRouter(d Deps) http.Handler {
	h := &Handler{
		cfg:          d.Cfg,
		jwtManager:   d.JWTManager,
		normalizer:   d.Normalizer,
		pedidos:      d.Pedidos,
		geoSvc:       d.GeoService,
		geoRepo:      d.GeoRepo,
		userZinfs:    d.UserZinfs,
		config:       d.Settings,
		instituicoes: d.Instituicoes,
		instRepo:     d.InstRepo,
		mail:         d.Mailer,
		emailLogs:    d.EmailLogs,
		directory:    d.Directory,
		publicLimiter: httpmiddleware.NewRateLimiter(
			d.Cfg.RateLimitPublic.RequestsPerSecond, d.Cfg.RateLimitPublic.Burst),
		staffLimiter: httpmiddleware.NewRateLimiter(
			d.Cfg.RateLimitStaff.RequestsPerSecond, d.Cfg.RateLimitStaff.Burst),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(d.Cfg.AllowOrigins))
	r.Use(httpmiddleware.Logging)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Superfície pública: formulário de apoio, consulta de estado e
	// resolução de código postal, tudo com rate limit por IP.
	r.Group(func(r chi.Router) {
		r.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		r.Post("/apoio_bens", h.handleSubmeterBens)
		r.Get("/apoio_bens/codigo-postal", h.handleResolverCodigoPostal)
		r.Get("/pedido/{publicId}", h.handleConsultarPedido)
	})

	// Encaminhamento: voluntários e administradores, delimitado por zona
	// e com rate limit por utilizador autenticado.
	r.Route("/encaminhamento", func(r chi.Router) {
		r.Use(httpmiddleware.Auth(h.jwtManager))
		r.Use(httpmiddleware.RequireAnyRole(d.Cfg.VolunteerRole, d.Cfg.AdminRole))
		r.Use(httpmiddleware.UserRateLimit(h.staffLimiter))

		r.Get("/pedidos", h.handleListarPedidos)
		r.Get("/pedidos/{id}", h.handleDetalhePedido)
		r.Post("/pedidos/{id}/estado", h.handleAlterarEstado)
	})

	// Backoffice: só administradores, com rate limit por utilizador.
	r.Route("/backoffice", func(r chi.Router) {
		r.Use(httpmiddleware.Auth(h.jwtManager))
		r.Use(httpmiddleware.RequireAnyRole(d.Cfg.AdminRole))
		r.Use(httpmiddleware.UserRateLimit(h.staffLimiter))

		r.Route("/distritos", func(r chi.Router) {
			r.Get("/", h.handleListDistritos)
			r.Post("/", h.handleCreateDistrito)
			r.Put("/{id}", h.handleUpdateDistrito)
			r.Delete("/{id}", h.handleDeleteDistrito)
		})

		r.Route("/zinfs", func(r chi.Router) {
			r.Get("/", h.handleListZinfs)
			r.Post("/", h.handleCreateZinf)
			r.Put("/{id}", h.handleUpdateZinf)
			r.Delete("/{id}", h.handleDeleteZinf)
			r.Get("/{id}/utilizadores", h.handleListZinfUtilizadores)
		})

		r.Route("/concelhos", func(r chi.Router) {
			r.Get("/", h.handleListConcelhos)
			r.Post("/", h.handleCreateConcelho)
			r.Put("/{id}", h.handleUpdateConcelho)
			r.Delete("/{id}", h.handleDeleteConcelho)
		})

		r.Route("/codigos-postais", func(r chi.Router) {
			r.Get("/", h.handleListCodigosPostais)
			r.Put("/", h.handleUpsertCodigoPostal)
			r.Delete("/{numero}", h.handleDeleteCodigoPostal)
		})

		r.Route("/tipos-pedido", func(r chi.Router) {
			r.Get("/", h.handleListTipos)
			r.Post("/", h.handleCreateTipo)
			r.Get("/{id}", h.handleGetTipo)
			r.Put("/{id}", h.handleUpdateTipo)
			r.Delete("/{id}", h.handleDeleteTipo)
		})

		r.Route("/instituicoes", func(r chi.Router) {
			r.Get("/", h.handleListInstituicoes)
			r.Post("/", h.handleCreateInstituicao)
			r.Put("/{id}", h.handleUpdateInstituicao)
			r.Delete("/{id}", h.handleDeleteInstituicao)
			r.Post("/importar", h.handleImportInstituicoes)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.handleListSettings)
			r.Put("/{key}", h.handleSetSetting)
			r.Post("/emails/teste", h.handleTestEmail)
		})

		r.Get("/email-logs", h.handleListEmailLogs)

		r.Route("/utilizadores", func(r chi.Router) {
			r.Get("/", h.handleListUtilizadores)
			r.Put("/{upn}/papeis", h.handleAssignRoles)
			r.Delete("/{upn}/papeis", h.handleRemoveRoles)
			r.Put("/{upn}/zinfs", h.handleSetUserZinfs)
		})
	})

	return r
}

// writeServiceError traduz erros de domínio para o envelope HTTP.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr validation.Errors
	if errors.As(err, &verr) {
		WriteError(w, http.StatusBadRequest, "VALIDACAO", "dados inválidos", verr)
		return
	}

	switch {
	case errors.Is(err, geo.ErrFormatoInvalido):
		WriteError(w, http.StatusBadRequest, "FORMATO_INVALIDO", "código postal inválido", nil)
	case errors.Is(err, workflow.ErrDefinicaoVazia), errors.Is(err, workflow.ErrDefinicaoInvalida):
		WriteError(w, http.StatusBadRequest, "WORKFLOW_INVALIDO", err.Error(), nil)
	case errors.Is(err, pedido.ErrZonaNaoAutorizada):
		WriteError(w, http.StatusForbidden, "ZONA_NAO_AUTORIZADA", "pedido fora das zonas atribuídas", nil)
	case errors.Is(err, pedido.ErrTransicaoInvalida):
		WriteError(w, http.StatusUnprocessableEntity, "TRANSICAO_INVALIDA", err.Error(), nil)
	case errors.Is(err, pedido.ErrConfiguracao), errors.Is(err, directory.ErrNaoConfigurado):
		WriteError(w, http.StatusServiceUnavailable, "CONFIG", err.Error(), nil)
	case errors.Is(err, pedido.ErrTipoEmUso):
		WriteError(w, http.StatusConflict, "TIPO_EM_USO", err.Error(), nil)
	case errors.Is(err, geo.ErrPossuiDependentes):
		WriteError(w, http.StatusConflict, "POSSUI_DEPENDENTES", "registo com dependentes não pode ser removido", nil)
	case errors.Is(err, instituicao.ErrCodigoDuplicado):
		WriteError(w, http.StatusConflict, "CODIGO_DUPLICADO", err.Error(), nil)
	case errors.Is(err, geo.ErrNotFound),
		errors.Is(err, pedido.ErrNotFound),
		errors.Is(err, pedido.ErrTipoNotFound),
		errors.Is(err, instituicao.ErrNotFound),
		errors.Is(err, settings.ErrNotFound),
		errors.Is(err, directory.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NAO_ENCONTRADO", "registo não encontrado", nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}
