package queue

import (
	"strconv"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/notify"
)

type target struct {
	channel   string
	recipient string
}

// settingsTargets maps the queue's channel flags onto the contact data the ticket carries.
// Push is addressed by the account email.
func settingsTargets(settings models.NotificationSettings, ticket models.Ticket) []target {
	var targets []target
	if settings.Email && ticket.UserEmail != "" {
		targets = append(targets, target{models.ChannelEmail, ticket.UserEmail})
	}
	if settings.SMS && ticket.UserPhone != "" {
		targets = append(targets, target{models.ChannelSMS, ticket.UserPhone})
	}
	if settings.Push && ticket.UserEmail != "" {
		targets = append(targets, target{models.ChannelPush, ticket.UserEmail})
	}
	return targets
}

func intentsFor(kind string, queue models.Queue, ticket models.Ticket, targets []target, payload map[string]string) []models.NotificationIntent {
	intents := make([]models.NotificationIntent, 0, len(targets))
	for _, t := range targets {
		p := map[string]string{
			notify.KeyTicketNumber: strconv.Itoa(ticket.TicketNumber),
			notify.KeyQueueName:    queue.Name,
		}
		for k, v := range payload {
			p[k] = v
		}
		intents = append(intents, models.NotificationIntent{
			Kind:      kind,
			Channel:   t.channel,
			Recipient: t.recipient,
			TicketID:  ticket.ID,
			QueueID:   queue.ID,
			Payload:   p,
		})
	}
	return intents
}

// TicketsAhead counts the numbers still to be called before ticket.
func TicketsAhead(queue models.Queue, ticket models.Ticket) int {
	return ticket.TicketNumber - (queue.CurrentNumber + 1)
}

// ConfirmationIntents goes to whatever contact the holder gave, regardless of the queue's
// notification switches.
func ConfirmationIntents(queue models.Queue, ticket models.Ticket) []models.NotificationIntent {
	var targets []target
	if ticket.UserEmail != "" {
		targets = append(targets, target{models.ChannelEmail, ticket.UserEmail})
	}
	if ticket.UserPhone != "" {
		targets = append(targets, target{models.ChannelSMS, ticket.UserPhone})
	}
	return intentsFor(models.IntentTicketConfirmed, queue, ticket, targets, map[string]string{
		notify.KeyTicketsAhead: strconv.Itoa(TicketsAhead(queue, ticket)),
	})
}

// AdvanceNoticeIntents emits "almost your turn" for waiting tickets exactly advance_notice
// numbers away from being called.
func AdvanceNoticeIntents(queue models.Queue, tickets []models.Ticket) []models.NotificationIntent {
	if !queue.NotificationsEnabled {
		return nil
	}
	notice := queue.NotificationSettings.AdvanceNoticeOrDefault()
	var intents []models.NotificationIntent
	for _, ticket := range tickets {
		if ticket.Status != models.StatusWaiting {
			continue
		}
		ahead := TicketsAhead(queue, ticket)
		if ahead != notice {
			continue
		}
		intents = append(intents, intentsFor(models.IntentAlmostYourTurn, queue, ticket,
			settingsTargets(queue.NotificationSettings, ticket),
			map[string]string{notify.KeyTicketsAhead: strconv.Itoa(ahead)})...)
	}
	return intents
}

// CallIntents covers one call-next round: "your turn" for the called ticket and an early
// warning for the ticket two numbers further on. Either may be nil.
func CallIntents(queue models.Queue, called, twoAhead *models.Ticket) []models.NotificationIntent {
	if !queue.NotificationsEnabled {
		return nil
	}
	var intents []models.NotificationIntent
	if called != nil {
		intents = append(intents, intentsFor(models.IntentYourTurn, queue, *called,
			settingsTargets(queue.NotificationSettings, *called),
			map[string]string{notify.KeyToleranceMinutes: strconv.Itoa(queue.ToleranceMinutes())})...)
	}
	if twoAhead != nil {
		intents = append(intents, intentsFor(models.IntentAlmostYourTurn, queue, *twoAhead,
			settingsTargets(queue.NotificationSettings, *twoAhead),
			map[string]string{notify.KeyTicketsAhead: strconv.Itoa(TicketsAhead(queue, *twoAhead))})...)
	}
	return intents
}

func PausedIntents(queue models.Queue, tickets []models.Ticket) []models.NotificationIntent {
	if !queue.NotificationsEnabled {
		return nil
	}
	var intents []models.NotificationIntent
	for _, ticket := range tickets {
		if !ticket.IsActive() {
			continue
		}
		intents = append(intents, intentsFor(models.IntentQueuePaused, queue, ticket,
			settingsTargets(queue.NotificationSettings, ticket), nil)...)
	}
	return intents
}
