package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/entrajuda/emergencia/internal/config"
)

// Message é um email pronto a enviar. From vazio usa o remetente da
// configuração SMTP.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
	HTML    bool
}

// Sender abstrai o transporte de email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Modos de criptografia suportados.
const (
	EncNone     = "NONE"
	EncStartTLS = "STARTTLS"
	EncSSLTLS   = "SSL/TLS"
)

// SMTPSender envia emails por SMTP com suporte a SSL/TLS e STARTTLS.
type SMTPSender struct {
	cfg config.SMTPConfig
	enc string
}

// NewSMTPSender cria o transporte a partir da configuração.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if !cfg.IsComplete() {
		return nil, errors.New("smtp: configuração incompleta")
	}

	enc := strings.ToUpper(strings.TrimSpace(cfg.Encryption))
	if enc != EncNone && enc != EncStartTLS && enc != EncSSLTLS {
		enc = EncStartTLS
	}

	return &SMTPSender{cfg: cfg, enc: enc}, nil
}

// Send entrega a mensagem a um único destinatário.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("smtp: destinatário ausente")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var (
		conn net.Conn
		err  error
	)

	dialer := &net.Dialer{Timeout: 15 * time.Second}
	if s.enc == EncSSLTLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp: ligação: %w", err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp: handshake: %w", err)
	}
	defer client.Close()

	if s.enc == EncStartTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return fmt.Errorf("smtp: starttls: %w", err)
			}
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp: auth: %w", err)
			}
		}
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = s.cfg.FromAddr
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp: rcpt to: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data: %w", err)
	}
	if _, err := wc.Write(buildMIME(s.cfg, msg)); err != nil {
		wc.Close()
		return fmt.Errorf("smtp: escrita: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp: fecho de data: %w", err)
	}

	return client.Quit()
}

func buildMIME(cfg config.SMTPConfig, msg Message) []byte {
	contentType := "text/plain; charset=UTF-8"
	if msg.HTML {
		contentType = "text/html; charset=UTF-8"
	}

	fromAddr := strings.TrimSpace(msg.From)
	if fromAddr == "" {
		fromAddr = cfg.FromAddr
	}
	from := fromAddr
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", cfg.FromName), fromAddr)
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: " + contentType + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
