package mail

import "gopkg.in/gomail.v2"

type WelcomeEmailData struct {
	Name string
}

// Dialer sends composed messages; *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailSender struct {
	From   string
	dialer Dialer
}
