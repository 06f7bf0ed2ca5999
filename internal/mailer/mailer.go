// Package mailer sends the conclave's transactional email over SMTP.
package mailer

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"

	"github.com/wneessen/go-mail"
)

const (
	brochureSubject  = "Welcome to the SMEC Global Innovators Conclave!"
	brochureFileName = "SMEC_Conclave_Brochure.pdf"
	resetSubject     = "Reset your SMEC Conclave password"
)

//go:embed templates/*.html
var templateFS embed.FS

type Config struct {
	Host         string
	Port         int
	Username     string
	Password     string
	FromName     string
	FromAddress  string
	BrochurePath string
}

// Sender delivers built messages. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Mailer struct {
	cfg       Config
	sender    Sender
	templates *template.Template
}

type brochureData struct {
	Event    string
	Dates    string
	Location string
}

type resetData struct {
	Event string
	Link  string
}

func NewSMTPClient(cfg Config) (*mail.Client, error) {
	return mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
}

func New(cfg Config, sender Sender) (*Mailer, error) {
	if cfg.FromAddress == "" {
		cfg.FromAddress = cfg.Username
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Mailer{cfg: cfg, sender: sender, templates: tmpl}, nil
}

// SendBrochure mails the fixed welcome message with the brochure attached.
// A missing brochure file fails before anything is sent.
func (m *Mailer) SendBrochure(ctx context.Context, to string) error {
	if _, err := os.Stat(m.cfg.BrochurePath); err != nil {
		return fmt.Errorf("brochure attachment: %w", err)
	}
	msg, err := m.newMessage(to, brochureSubject)
	if err != nil {
		return err
	}
	data := brochureData{
		Event:    "SMEC Global Innovators Conclave 2026",
		Dates:    "Feb 27-28, 2026",
		Location: "Hyderabad, India",
	}
	if err := msg.SetBodyHTMLTemplate(m.templates.Lookup("brochure.html"), data); err != nil {
		return fmt.Errorf("render brochure email: %w", err)
	}
	msg.AttachFile(m.cfg.BrochurePath, mail.WithFileName(brochureFileName))
	return m.sender.DialAndSendWithContext(ctx, msg)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, link string) error {
	msg, err := m.newMessage(to, resetSubject)
	if err != nil {
		return err
	}
	data := resetData{Event: "SMEC Global Innovators Conclave", Link: link}
	if err := msg.SetBodyHTMLTemplate(m.templates.Lookup("reset.html"), data); err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}
	return m.sender.DialAndSendWithContext(ctx, msg)
}

func (m *Mailer) newMessage(to, subject string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.FromAddress); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(subject)
	return msg, nil
}
