package email

import (
	"context"
	"strings"
	"testing"
)

type captureSender struct {
	sent []Message
}

func (c *captureSender) Send(ctx context.Context, msg Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

func TestTemplateMailerRendersLifecycleTemplates(t *testing.T) {
	sender := &captureSender{}
	mailer, err := NewTemplateMailer(sender)
	if err != nil {
		t.Fatalf("NewTemplateMailer: %v", err)
	}
	data := TemplateData{ContactName: "Ada", Code: "TCK-7", Subject: "Printer <on fire>", FeedbackURL: "https://example.com/feedback?t=TCK-7"}

	tests := []struct {
		name        string
		wantSubject string
		wantBody    string
	}{
		{name: TemplateCreation, wantSubject: "[TCK-7] We received your request", wantBody: "has been received"},
		{name: TemplateInProgress, wantSubject: "[TCK-7] Your request is being handled", wantBody: "picked up"},
		{name: TemplateResolution, wantSubject: "[TCK-7] Your request has been resolved", wantBody: "marked as resolved"},
		{name: TemplateClosure, wantSubject: "[TCK-7] Your request has been closed", wantBody: "https://example.com/feedback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := mailer.SendTemplate(context.Background(), "ada@example.com", tt.name, data); err != nil {
				t.Fatalf("SendTemplate: %v", err)
			}
			msg := sender.sent[len(sender.sent)-1]
			if msg.Subject != tt.wantSubject {
				t.Errorf("subject = %q, want %q", msg.Subject, tt.wantSubject)
			}
			if !strings.Contains(msg.HTML, tt.wantBody) {
				t.Errorf("body missing %q: %s", tt.wantBody, msg.HTML)
			}
			if !strings.Contains(msg.HTML, "Printer &lt;on fire&gt;") {
				t.Errorf("subject not escaped in body: %s", msg.HTML)
			}
		})
	}
}

func TestTemplateMailerRejectsUnknownTemplateAndRecipient(t *testing.T) {
	sender := &captureSender{}
	mailer, err := NewTemplateMailer(sender)
	if err != nil {
		t.Fatal(err)
	}
	if err := mailer.SendTemplate(context.Background(), "a@example.com", "welcome", TemplateData{}); err == nil {
		t.Error("expected unknown template error")
	}
	if err := mailer.SendTemplate(context.Background(), "", TemplateCreation, TemplateData{}); err == nil {
		t.Error("expected empty recipient error")
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d messages", len(sender.sent))
	}
}

func TestBuildMIMEHeaders(t *testing.T) {
	raw := string(buildMIME("support@example.com", Message{To: "a@example.com", Subject: "Hi", HTML: "<p>x</p>"}))
	for _, want := range []string{"From: support@example.com\r\n", "To: a@example.com\r\n", "Content-Type: text/html", "\r\n\r\n<p>x</p>"} {
		if !strings.Contains(raw, want) {
			t.Errorf("missing %q in %q", want, raw)
		}
	}
}
