package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"go.uber.org/zap"
)

// Template names understood by TemplateMailer.
const (
	TemplateCreation   = "creation"
	TemplateInProgress = "inprogress"
	TemplateResolution = "resolution"
	TemplateClosure    = "closure"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message is a rendered outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer renders a named template for a recipient and sends it.
type Mailer interface {
	SendTemplate(ctx context.Context, to, name string, data TemplateData) error
}

// TemplateData is the context available to every template.
type TemplateData struct {
	ContactName     string
	Code            string
	Subject         string
	Status          string
	ResolutionDueAt string
	FeedbackURL     string
}

// TemplateMailer renders the embedded lifecycle templates.
type TemplateMailer struct {
	sender    Sender
	templates map[string]*template.Template
}

// NewTemplateMailer parses the embedded templates.
func NewTemplateMailer(sender Sender) (*TemplateMailer, error) {
	names := []string{TemplateCreation, TemplateInProgress, TemplateResolution, TemplateClosure}
	templates := make(map[string]*template.Template, len(names))
	for _, name := range names {
		tmpl, err := template.ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		templates[name] = tmpl
	}
	return &TemplateMailer{sender: sender, templates: templates}, nil
}

// SendTemplate renders template name with data and sends it to the recipient.
func (m *TemplateMailer) SendTemplate(ctx context.Context, to, name string, data TemplateData) error {
	if to == "" {
		return fmt.Errorf("email template %s: empty recipient", name)
	}
	msg, err := m.Render(to, name, data)
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, msg)
}

// Render produces the message without sending it.
func (m *TemplateMailer) Render(to, name string, data TemplateData) (Message, error) {
	tmpl, ok := m.templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", name)
	}
	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", name, err)
	}
	return Message{To: to, Subject: subject.String(), HTML: body.String()}, nil
}

// LogSender logs messages instead of delivering them. Used when SMTP is not configured.
type LogSender struct {
	Logger *zap.Logger
}

// Send logs the message envelope.
func (s LogSender) Send(ctx context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("email not delivered, smtp disabled", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
