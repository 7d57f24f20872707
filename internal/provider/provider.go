package provider

import "context"

// Message is one outbound email.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Mailer is the outbound email delivery port.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
