package mail

import "html/template"

// messageData é o que os templates enxergam.
type messageData struct {
	Name       string
	Paragraphs []string
	LandingURL string
}

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	templates *template.Template
	send      func(m *Message) error
}
