package mailer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nkiryanov/netcraft/internal/logger"
)

const (
	DefaultMailgunBaseURL = "https://api.mailgun.net"

	defaultSendTimeout = 10 * time.Second
)

type MailgunConfig struct {
	APIKey string
	Domain string

	// https://api.mailgun.net by default; EU accounts use https://api.eu.mailgun.net
	BaseURL string
}

func (c MailgunConfig) Configured() bool {
	return c.APIKey != "" && c.Domain != ""
}

// Sends emails through Mailgun HTTP API
type MailgunSender struct {
	cfg    MailgunConfig
	client *http.Client
	logger logger.Logger
}

func NewMailgunSender(cfg MailgunConfig, l logger.Logger) *MailgunSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultMailgunBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &MailgunSender{
		cfg:    cfg,
		client: &http.Client{},
		logger: l.With("component", "mailer"),
	}
}

func (s *MailgunSender) SendResetCode(ctx context.Context, msg ResetCodeMessage) error {
	text, html, err := render(msg)
	if err != nil {
		return fmt.Errorf("failed to render message: %w", err)
	}

	form := url.Values{}
	form.Set("from", fmt.Sprintf("NETCRAFT API <noreply@%s>", s.cfg.Domain))
	form.Set("to", msg.To)
	form.Set("subject", resetSubject)
	form.Set("text", text)
	form.Set("html", html)

	ctx, cancel := context.WithTimeout(ctx, defaultSendTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v3/%s/messages", s.cfg.BaseURL, url.PathEscape(s.cfg.Domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("Failed to send email", "to", msg.To, "error", err.Error())
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		s.logger.Info("Reset code email sent", "to", msg.To)
		return nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.logger.Error("Failed to send email", "to", msg.To, "status_code", resp.StatusCode, "body", string(body))
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
}
