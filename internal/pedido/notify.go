package pedido

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/entrajuda/emergencia/internal/settings"
)

// Mailer é o subconjunto do serviço de email usado nas notificações.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string, isHTML bool) error
}

// ZoneUsers devolve os utilizadores associados a uma zona.
type ZoneUsers interface {
	ListUserPrincipalNamesByZinf(ctx context.Context, zinfID int64) ([]string, error)
}

// EmailResolver traduz um user principal name num endereço de email.
type EmailResolver interface {
	ResolveUserEmail(ctx context.Context, upn string) (string, error)
}

const (
	assuntoConfirmacao = "Pedido de apoio recebido"
	assuntoNovoPedido  = "Novo pedido de apoio na sua zona"

	corpoConfirmacaoPadrao = "O seu pedido de apoio foi registado com o número {GuidPedido}. " +
		"Guarde este número para acompanhar o estado do pedido."
	corpoNovoPedidoPadrao = "Foi registado um novo pedido de apoio ({GuidPedido}) na sua zona de intervenção."
)

// EmailNotifier envia as notificações de criação de pedido. Todos os
// envios são best-effort: falhas ficam no log e nunca afetam a submissão.
// Sem configuração explícita, ambas as notificações estão ativas.
type EmailNotifier struct {
	mailer   Mailer
	config   *settings.Service
	zones    ZoneUsers
	resolver EmailResolver
}

// NewEmailNotifier cria o notificador. zones e resolver podem ser nil,
// caso em que as notificações de zona ficam desativadas.
func NewEmailNotifier(mailer Mailer, config *settings.Service, zones ZoneUsers, resolver EmailResolver) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, config: config, zones: zones, resolver: resolver}
}

// PedidoCriado notifica o requerente e os utilizadores da zona.
func (n *EmailNotifier) PedidoCriado(ctx context.Context, p *Pedido, bem *PedidoBem) {
	n.notificarRequerente(ctx, p, bem)
	n.notificarZona(ctx, p)
}

func (n *EmailNotifier) notificarRequerente(ctx context.Context, p *Pedido, bem *PedidoBem) {
	if !n.config.GetBool(ctx, settings.KeySendEmailToPedidoCreator, true) {
		return
	}
	if bem == nil || strings.TrimSpace(bem.Email) == "" {
		return
	}

	body := n.template(ctx, settings.KeyPedidoBensEmailTemplate, corpoConfirmacaoPadrao, p)
	if err := n.mailer.Send(ctx, bem.Email, assuntoConfirmacao, body, true); err != nil {
		log.Error().Err(err).Str("public_id", p.PublicID.String()).
			Msg("falha a enviar confirmação ao requerente")
	}
}

func (n *EmailNotifier) notificarZona(ctx context.Context, p *Pedido) {
	if n.zones == nil || n.resolver == nil || p.ZinfID == nil {
		return
	}
	if !n.config.GetBool(ctx, settings.KeySendNovoPedidoEmailZinfUsers, true) {
		return
	}

	upns, err := n.zones.ListUserPrincipalNamesByZinf(ctx, *p.ZinfID)
	if err != nil {
		log.Error().Err(err).Int64("zinf_id", *p.ZinfID).
			Msg("falha a listar utilizadores da zona para notificação")
		return
	}

	body := n.template(ctx, settings.KeyNovoPedidoTemplate, corpoNovoPedidoPadrao, p)
	for _, upn := range upns {
		email, err := n.resolver.ResolveUserEmail(ctx, upn)
		if err != nil || strings.TrimSpace(email) == "" {
			log.Warn().Err(err).Str("upn", upn).
				Msg("utilizador de zona sem email resolvível, notificação ignorada")
			continue
		}
		if err := n.mailer.Send(ctx, email, assuntoNovoPedido, body, true); err != nil {
			log.Error().Err(err).Str("recipient", email).
				Msg("falha a notificar utilizador da zona")
		}
	}
}

// template carrega um corpo de email das configurações (com fallback) e
// substitui o marcador {GuidPedido}.
func (n *EmailNotifier) template(ctx context.Context, key, fallback string, p *Pedido) string {
	body, err := n.config.Get(ctx, key)
	if err != nil || strings.TrimSpace(body) == "" {
		body = fallback
	}
	return strings.ReplaceAll(body, "{GuidPedido}", p.PublicID.String())
}
