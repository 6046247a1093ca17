package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Message is one rendered notification ready for a transport.
type Message struct {
	Kind      string `json:"kind"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"message"`
	Link      string `json:"link,omitempty"`
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

var ErrProviderFailure = errors.New("provider failure")

type ProviderConfig struct {
	Kind         string
	WebhookURL   string
	WebhookToken string
}

// NewProvider picks a transport for one channel. Unknown kinds and a webhook without a URL fall
// back to logging.
func NewProvider(channel string, cfg ProviderConfig, logger zerolog.Logger) Provider {
	switch cfg.Kind {
	case "", "stub", "log":
		return logProvider{channel: channel, logger: logger}
	case "noop":
		return noopProvider{}
	case "fail":
		return failProvider{}
	case "webhook":
		if cfg.WebhookURL == "" {
			return logProvider{channel: channel, logger: logger}
		}
		return newWebhookProvider(channel, cfg.WebhookURL, cfg.WebhookToken)
	default:
		if strings.HasPrefix(cfg.Kind, "http://") || strings.HasPrefix(cfg.Kind, "https://") {
			return newWebhookProvider(channel, cfg.Kind, cfg.WebhookToken)
		}
		return logProvider{channel: channel, logger: logger}
	}
}

type logProvider struct {
	channel string
	logger  zerolog.Logger
}

func (p logProvider) Send(ctx context.Context, msg Message) error {
	p.logger.Info().
		Str("channel", p.channel).
		Str("kind", msg.Kind).
		Str("recipient", msg.Recipient).
		Str("message", msg.Body).
		Msg("notification sent")
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, msg Message) error {
	return nil
}

type failProvider struct{}

func (failProvider) Send(ctx context.Context, msg Message) error {
	return ErrProviderFailure
}

type webhookProvider struct {
	channel string
	url     string
	token   string
	client  *http.Client
}

func newWebhookProvider(channel, url, token string) webhookProvider {
	return webhookProvider{
		channel: channel,
		url:     url,
		token:   token,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (p webhookProvider) Send(ctx context.Context, msg Message) error {
	msg.Channel = p.channel
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: webhook returned %d", ErrProviderFailure, resp.StatusCode)
	}
	return nil
}
