package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	DBDSN           string
	RedisURL        string
	JWTSecret       string
	AllowOrigins    []string
	BaseURL         string
	AdminRole       string
	VolunteerRole   string
	GuestSuffix     string
	RateLimitPublic RateLimitConfig
	RateLimitStaff  RateLimitConfig
	SMTP            SMTPConfig
	Directory       DirectoryConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// SMTPConfig descreve o servidor usado para envio de notificações.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	FromAddr   string
	FromName   string
	Encryption string
}

// IsComplete indica se há configuração suficiente para enviar emails.
func (c SMTPConfig) IsComplete() bool {
	return c.Host != "" && c.Port > 0 && c.FromAddr != ""
}

// DirectoryConfig descreve as credenciais do diretório externo.
type DirectoryConfig struct {
	TenantID        string
	ClientID        string
	ClientSecret    string
	APIBase         string
	AppObjectID     string
	AdminRoleID     string
	VolunteerRoleID string
}

// IsComplete indica se o cliente do diretório pode ser construído.
func (c DirectoryConfig) IsComplete() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}

	// Redis é opcional: sem ele os serviços funcionam sem cache.
	cfg.RedisURL = getEnv("REDIS_URL", "")

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	allowOrigins := strings.Split(getEnv("ALLOW_ORIGINS", ""), ",")
	cfg.AllowOrigins = nil
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(getEnv("BASE_URL", "http://localhost:8080")), "/")

	cfg.AdminRole = strings.TrimSpace(getEnv("ROLE_ADMIN", "BackofficeAdmin"))
	cfg.VolunteerRole = strings.TrimSpace(getEnv("ROLE_VOLUNTEER", "Volunteer"))

	cfg.GuestSuffix = strings.TrimSpace(getEnv("GUEST_UPN_SUFFIX", "#EXT#@entrajuda.onmicrosoft.com"))
	if cfg.GuestSuffix == "" {
		return nil, errors.New("GUEST_UPN_SUFFIX obrigatório")
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 5, Burst: 10}
	cfg.RateLimitStaff = RateLimitConfig{RequestsPerSecond: 20, Burst: 40}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil || smtpPort <= 0 {
		return nil, errors.New("SMTP_PORT inválida")
	}
	cfg.SMTP = SMTPConfig{
		Host:       strings.TrimSpace(getEnv("SMTP_HOST", "")),
		Port:       smtpPort,
		Username:   getEnv("SMTP_USERNAME", ""),
		Password:   getEnv("SMTP_PASSWORD", ""),
		FromAddr:   strings.TrimSpace(getEnv("SMTP_FROM_ADDR", "")),
		FromName:   strings.TrimSpace(getEnv("SMTP_FROM_NAME", "Rede de Emergência Alimentar")),
		Encryption: strings.TrimSpace(getEnv("SMTP_ENCRYPTION", "STARTTLS")),
	}

	cfg.Directory = DirectoryConfig{
		TenantID:        strings.TrimSpace(getEnv("DIRECTORY_TENANT_ID", "")),
		ClientID:        strings.TrimSpace(getEnv("DIRECTORY_CLIENT_ID", "")),
		ClientSecret:    strings.TrimSpace(getEnv("DIRECTORY_CLIENT_SECRET", "")),
		APIBase:         strings.TrimSpace(getEnv("DIRECTORY_API_BASE", "")),
		AppObjectID:     strings.TrimSpace(getEnv("DIRECTORY_APP_OBJECT_ID", "")),
		AdminRoleID:     strings.TrimSpace(getEnv("DIRECTORY_ADMIN_ROLE_ID", "")),
		VolunteerRoleID: strings.TrimSpace(getEnv("DIRECTORY_VOLUNTEER_ROLE_ID", "")),
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}
