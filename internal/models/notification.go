package models

const (
	IntentTicketConfirmed = "ticket_confirmed"
	IntentAlmostYourTurn  = "almost_your_turn"
	IntentYourTurn        = "your_turn"
	IntentQueuePaused     = "queue_paused"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
)

// NotificationIntent asks a delivery collaborator to notify one recipient on one channel.
type NotificationIntent struct {
	Kind      string            `json:"kind"`
	Channel   string            `json:"channel"`
	Recipient string            `json:"recipient"`
	TicketID  string            `json:"ticket_id"`
	QueueID   string            `json:"queue_id"`
	Payload   map[string]string `json:"payload"`
}
