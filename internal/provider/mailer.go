package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultMailTimeout = 10 * time.Second

type mailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// HTTPMailer delivers email through an HTTP mail relay (JSON POST).
type HTTPMailer struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	from     string
}

func NewHTTPMailer(endpoint, apiKey, from string) (*HTTPMailer, error) {
	client := resty.New()
	client.SetTimeout(defaultMailTimeout)
	client.SetRetryCount(0)

	return NewHTTPMailerWithClient(endpoint, apiKey, from, client)
}

func NewHTTPMailerWithClient(endpoint, apiKey, from string, client *resty.Client) (*HTTPMailer, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("mail relay endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid mail relay endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultMailTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPMailer{
		client:   client,
		endpoint: trimmedEndpoint,
		apiKey:   strings.TrimSpace(apiKey),
		from:     strings.TrimSpace(from),
	}, nil
}

func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	if m == nil || m.client == nil {
		return fmt.Errorf("mailer is not initialized")
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return fmt.Errorf("subject is required")
	}

	req := m.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(mailRequest{
			From:    m.from,
			To:      msg.To,
			Subject: msg.Subject,
			HTML:    msg.HTML,
			Text:    msg.Text,
		})
	if m.apiKey != "" {
		req.SetAuthToken(m.apiKey)
	}

	response, err := req.Post(m.endpoint)
	if err != nil {
		return &MailError{Message: "mail relay request failed", Cause: err}
	}
	if response == nil {
		return &MailError{Message: "mail relay returned empty response"}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(response.String())
	msgText := fmt.Sprintf("mail relay returned status %d", statusCode)
	if body != "" {
		msgText = fmt.Sprintf("%s: %s", msgText, body)
	}

	return &MailError{StatusCode: statusCode, Message: msgText}
}

// NoopMailer logs and discards messages. Used when no relay is configured.
type NoopMailer struct {
	logger *zap.Logger
}

func NewNoopMailer(logger *zap.Logger) *NoopMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopMailer{logger: logger}
}

func (m *NoopMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail relay not configured, discarding email",
		zap.Int("recipients", len(msg.To)),
		zap.String("subject", msg.Subject),
	)
	return nil
}
