package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	netmail "net/mail"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/xavierca1/prospect-pipeline/internal/infra/queue"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message é um apelido para facilitar o stub de envio nos testes.
type Message = gomail.Message

var _ queue.Deliverer = (*EmailSender)(nil)

func NewEmailSender(host string, port int, user, password, from string) (*EmailSender, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("erro ao ler templates de email: %w", err)
	}
	s := &EmailSender{
		Host:      host,
		Port:      port,
		User:      user,
		Password:  password,
		From:      from,
		templates: t,
	}
	s.send = func(m *Message) error {
		d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
		return d.DialAndSend(m)
	}
	return s, nil
}

func templateFor(kind queue.MessageKind) string {
	switch kind {
	case queue.KindHumanAlert, queue.KindBillingAlert:
		return "alert.html"
	default:
		return "outreach.html"
	}
}

// Deliver implementa queue.Deliverer. Destinatário inválido é definitivo.
func (s *EmailSender) Deliver(ctx context.Context, p queue.OutreachPayload) error {
	addr, err := netmail.ParseAddress(strings.TrimSpace(p.To))
	if err != nil {
		return fmt.Errorf("%w: destinatário %q", queue.ErrUndeliverable, p.To)
	}

	m, err := s.compose(addr.Address, p)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(m); err != nil {
		return fmt.Errorf("erro ao enviar email SMTP: %w", err)
	}
	return nil
}

func (s *EmailSender) compose(to string, p queue.OutreachPayload) (*Message, error) {
	var body bytes.Buffer
	data := messageData{
		Name:       p.Name,
		Paragraphs: paragraphs(p.Body),
		LandingURL: p.LandingURL,
	}
	if err := s.templates.ExecuteTemplate(&body, templateFor(p.Kind), data); err != nil {
		return nil, fmt.Errorf("erro ao processar template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", p.Subject)
	m.SetBody("text/plain", plainText(p))
	m.AddAlternative("text/html", body.String())
	return m, nil
}

func paragraphs(body string) []string {
	var out []string
	for _, part := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func plainText(p queue.OutreachPayload) string {
	text := strings.TrimSpace(p.Body)
	if p.LandingURL != "" {
		text += "\n\n" + p.LandingURL
	}
	return text
}
