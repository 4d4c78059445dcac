package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var welcomeTmpl = template.Must(template.ParseFS(templateFS, "templates/welcome.html"))

func NewEmailSender(host string, port int, user, password, from string) *EmailSender {
	return &EmailSender{
		From:   from,
		dialer: gomail.NewDialer(host, port, user, password),
	}
}

// NewEmailSenderWithDialer is used when the SMTP transport is provided by the caller.
func NewEmailSenderWithDialer(d Dialer, from string) *EmailSender {
	return &EmailSender{From: from, dialer: d}
}

func (s *EmailSender) SendWelcome(to, name string) error {
	m, err := s.welcomeMessage(to, name)
	if err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("sending welcome email: %w", err)
	}
	return nil
}

func (s *EmailSender) welcomeMessage(to, name string) (*gomail.Message, error) {
	var body bytes.Buffer
	if err := welcomeTmpl.Execute(&body, WelcomeEmailData{Name: name}); err != nil {
		return nil, fmt.Errorf("rendering welcome template: %w", err)
	}

	subject := "Welcome!"
	if name != "" {
		subject = fmt.Sprintf("Welcome, %s!", name)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body.String())
	return m, nil
}
