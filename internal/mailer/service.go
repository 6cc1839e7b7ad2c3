package mailer

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/entrajuda/emergencia/internal/settings"
)

// ErrDryRunSemDestino indica dry-run ativo sem destinatário de override.
var ErrDryRunSemDestino = errors.New("dry-run ativo sem destinatário configurado")

// AuditLog é o destino de auditoria dos envios.
type AuditLog interface {
	Append(ctx context.Context, recipients, subject string) error
}

// Service envia emails respeitando o modo dry-run e registando auditoria.
type Service struct {
	sender Sender
	config *settings.Service
	audit  AuditLog
}

// NewService cria o serviço de email.
func NewService(sender Sender, config *settings.Service, audit AuditLog) *Service {
	return &Service{sender: sender, config: config, audit: audit}
}

// Send entrega um email. O remetente vem da configuração EmailFrom
// quando definida, com fallback no endereço da configuração SMTP. Com
// dry-run ativo todo o correio é redirecionado para o destinatário de
// override. Cada tentativa fica no log de auditoria.
func (s *Service) Send(ctx context.Context, recipient, subject, body string, isHTML bool) error {
	target, err := s.resolveRecipient(ctx, recipient)
	if err != nil {
		return err
	}

	msg := Message{From: s.resolveSender(ctx), To: target, Subject: subject, Body: body, HTML: isHTML}
	if err := s.sender.Send(ctx, msg); err != nil {
		return err
	}

	if s.audit != nil {
		if err := s.audit.Append(ctx, target, strings.TrimSpace(subject)); err != nil {
			log.Error().Err(err).Str("recipient", target).Msg("falha a registar email no log de auditoria")
		}
	}

	return nil
}

func (s *Service) resolveSender(ctx context.Context) string {
	from, err := s.config.Get(ctx, settings.KeyEmailFrom)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(from)
}

func (s *Service) resolveRecipient(ctx context.Context, recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)

	if !s.config.GetBool(ctx, settings.KeyEmailDryRunEnabled, false) {
		return recipient, nil
	}

	override, err := s.config.Get(ctx, settings.KeyEmailDryRunRecipient)
	if err != nil || strings.TrimSpace(override) == "" {
		return "", ErrDryRunSemDestino
	}

	return strings.TrimSpace(override), nil
}
