package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Afonso75/QZeroN-sub002/internal/models"

	"github.com/rs/zerolog"
)

// Delivery is the outcome of one intent. Err is nil when the provider accepted the message.
type Delivery struct {
	Intent models.NotificationIntent
	Err    error
}

type Dispatcher struct {
	providers     map[string]Provider
	publicBaseURL string
	logger        zerolog.Logger
}

func NewDispatcher(providers map[string]Provider, publicBaseURL string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		providers:     providers,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

// Deliver sends every intent and reports each outcome. It never fails as a whole.
func (d *Dispatcher) Deliver(ctx context.Context, intents []models.NotificationIntent) []Delivery {
	deliveries := make([]Delivery, 0, len(intents))
	for _, intent := range intents {
		err := d.deliver(ctx, intent)
		if err != nil {
			d.logger.Warn().Err(err).
				Str("kind", intent.Kind).
				Str("channel", intent.Channel).
				Str("ticket_id", intent.TicketID).
				Msg("notification delivery failed")
		}
		deliveries = append(deliveries, Delivery{Intent: intent, Err: err})
	}
	return deliveries
}

func (d *Dispatcher) deliver(ctx context.Context, intent models.NotificationIntent) error {
	provider, ok := d.providers[intent.Channel]
	if !ok {
		return fmt.Errorf("no provider for channel %q", intent.Channel)
	}
	tmpl, ok := defaultTemplate(intent.Kind)
	if !ok {
		return fmt.Errorf("no template for %q", intent.Kind)
	}

	payload := make(map[string]string, len(intent.Payload)+1)
	for k, v := range intent.Payload {
		payload[k] = v
	}
	link := d.TicketLink(intent.TicketID)
	payload[KeyTicketLink] = link

	return provider.Send(ctx, Message{
		Kind:      intent.Kind,
		Channel:   intent.Channel,
		Recipient: intent.Recipient,
		Subject:   renderTemplate(tmpl.subject, payload),
		Body:      renderTemplate(tmpl.body, payload),
		Link:      link,
	})
}

// TicketLink is the public page where a customer follows their ticket.
func (d *Dispatcher) TicketLink(ticketID string) string {
	if d.publicBaseURL == "" || ticketID == "" {
		return ""
	}
	return d.publicBaseURL + "/tickets/" + ticketID
}

// AllSent reports whether at least one delivery happened and none failed.
func AllSent(deliveries []Delivery) bool {
	if len(deliveries) == 0 {
		return false
	}
	for _, d := range deliveries {
		if d.Err != nil {
			return false
		}
	}
	return true
}
