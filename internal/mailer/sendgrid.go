package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/justestif/muse/internal/logger"
)

// DefaultSendGridURL is the SendGrid API host.
const DefaultSendGridURL = "https://api.sendgrid.com"

// SendGridConfig configures a SendGridMailer.
type SendGridConfig struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	cfg        SendGridConfig
	httpClient *http.Client
	delays     []time.Duration
	log        *logger.Logger
}

// SendGridOption configures a SendGridMailer.
type SendGridOption func(*SendGridMailer)

// WithRetryDelays sets the waits between attempts.
func WithRetryDelays(delays ...time.Duration) SendGridOption {
	return func(m *SendGridMailer) {
		m.delays = delays
	}
}

// NewSendGridMailer validates cfg and creates a mailer.
func NewSendGridMailer(cfg SendGridConfig, log *logger.Logger, opts ...SendGridOption) (*SendGridMailer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sendgrid: missing API key")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, errors.New("sendgrid: missing from email")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultSendGridURL
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	m := &SendGridMailer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		delays:     []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		log:        log.With("client", "sendgrid"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             Address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

type personalization struct {
	To []Address `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type errorResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// HTTPError is a non-2xx SendGrid response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Send implements Mailer.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To.Email) == "" {
		return errors.New("sendgrid: recipient required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return errors.New("sendgrid: subject required")
	}

	var content []mailContent
	if t := strings.TrimSpace(msg.Text); t != "" {
		content = append(content, mailContent{Type: "text/plain", Value: t})
	}
	if h := strings.TrimSpace(msg.HTML); h != "" {
		content = append(content, mailContent{Type: "text/html", Value: h})
	}
	if len(content) == 0 {
		return errors.New("sendgrid: text or html content required")
	}

	body, err := json.Marshal(mailSendRequest{
		Personalizations: []personalization{{To: []Address{msg.To}}},
		From:             Address{Email: m.cfg.FromEmail, Name: m.cfg.FromName},
		Subject:          msg.Subject,
		Content:          content,
	})
	if err != nil {
		return fmt.Errorf("encoding mail: %w", err)
	}

	for attempt := 0; ; attempt++ {
		err := m.doOnce(ctx, body)
		if err == nil {
			return nil
		}
		var he *HTTPError
		if !errors.As(err, &he) || !he.retryable() || attempt >= len(m.delays) {
			return err
		}

		m.log.Warn("sendgrid request retrying",
			"attempt", attempt+1,
			"sleep", m.delays[attempt].String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delays[attempt]):
		}
	}
}

func (m *SendGridMailer) doOnce(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil && len(er.Errors) > 0 {
			he.Message = er.Errors[0].Message
		}
		return he
	}
	return nil
}
