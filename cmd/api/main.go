package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/entrajuda/emergencia/internal/auth"
	"github.com/entrajuda/emergencia/internal/config"
	"github.com/entrajuda/emergencia/internal/db"
	"github.com/entrajuda/emergencia/internal/directory"
	"github.com/entrajuda/emergencia/internal/geo"
	internalhttp "github.com/entrajuda/emergencia/internal/http"
	"github.com/entrajuda/emergencia/internal/instituicao"
	"github.com/entrajuda/emergencia/internal/mailer"
	"github.com/entrajuda/emergencia/internal/pedido"
	"github.com/entrajuda/emergencia/internal/settings"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	// Redis é opcional: sem ele os serviços operam sem cache.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis parse: %w", err)
		}
		redisClient = redis.NewClient(redisOpts)
		defer redisClient.Close()
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, time.Hour)
	normalizer := auth.NewNormalizer(cfg.GuestSuffix)

	geoRepo := geo.NewRepository(pool)
	geoSvc := geo.NewService(geoRepo, redisClient)

	settingsSvc := settings.NewService(settings.NewRepository(pool), redisClient)
	emailLogs := mailer.NewLogRepository(pool)

	// Sem SMTP completo a API sobe na mesma, só sem notificações.
	var mailSvc *mailer.Service
	if cfg.SMTP.IsComplete() {
		sender, err := mailer.NewSMTPSender(cfg.SMTP)
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		mailSvc = mailer.NewService(sender, settingsSvc, emailLogs)
	} else {
		log.Warn().Msg("SMTP não configurado, notificações por email desativadas")
	}

	var dirSvc directory.Service
	if cfg.Directory.IsComplete() {
		dirSvc, err = directory.NewGraphClient(cfg.Directory, normalizer, cfg.AdminRole, cfg.VolunteerRole)
		if err != nil {
			return fmt.Errorf("diretório: %w", err)
		}
	} else {
		log.Warn().Msg("diretório não configurado, gestão de utilizadores desativada")
	}

	pedidoRepo := pedido.NewRepository(pool)

	var notifier pedido.Notifier
	if mailSvc != nil {
		notifier = pedido.NewEmailNotifier(mailSvc, settingsSvc, geoRepo, dirSvc)
	}
	pedidoSvc := pedido.NewService(pedidoRepo, geoSvc, settingsSvc, notifier)

	instRepo := instituicao.NewRepository(pool)
	instSvc := instituicao.NewService(instRepo)

	handler := internalhttp.NewRouter(internalhttp.Deps{
		Cfg:          cfg,
		JWTManager:   jwtManager,
		Normalizer:   normalizer,
		Pedidos:      pedidoSvc,
		GeoService:   geoSvc,
		GeoRepo:      geoRepo,
		UserZinfs:    geoRepo,
		Settings:     settingsSvc,
		Instituicoes: instSvc,
		InstRepo:     instRepo,
		Mailer:       mailSvc,
		EmailLogs:    emailLogs,
		Directory:    dirSvc,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
