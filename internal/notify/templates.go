package notify

import (
	"strings"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
)

// Payload keys understood by the templates.
const (
	KeyTicketNumber     = "ticket_number"
	KeyQueueName        = "queue_name"
	KeyTicketsAhead     = "tickets_ahead"
	KeyToleranceMinutes = "tolerance_minutes"
	KeyTicketLink       = "ticket_link"
)

var templateKeys = []string{KeyTicketNumber, KeyQueueName, KeyTicketsAhead, KeyToleranceMinutes, KeyTicketLink}

type template struct {
	subject string
	body    string
}

func defaultTemplate(kind string) (template, bool) {
	switch kind {
	case models.IntentTicketConfirmed:
		return template{
			subject: "Ticket {ticket_number} confirmed",
			body:    "Your ticket {ticket_number} for {queue_name} is confirmed. Follow your place in line at {ticket_link}",
		}, true
	case models.IntentAlmostYourTurn:
		return template{
			subject: "Almost your turn",
			body:    "{queue_name}: ticket {ticket_number} is almost up, {tickets_ahead} ahead of you.",
		}, true
	case models.IntentYourTurn:
		return template{
			subject: "It's your turn",
			body:    "{queue_name}: ticket {ticket_number} is being called. Please come within {tolerance_minutes} minutes.",
		}, true
	case models.IntentQueuePaused:
		return template{
			subject: "Queue paused",
			body:    "{queue_name} is paused for now. Ticket {ticket_number} keeps its place.",
		}, true
	}
	return template{}, false
}

func renderTemplate(text string, payload map[string]string) string {
	result := text
	for _, key := range templateKeys {
		placeholder := "{" + key + "}"
		if !strings.Contains(result, placeholder) {
			continue
		}
		result = strings.ReplaceAll(result, placeholder, payload[key])
	}
	return result
}
