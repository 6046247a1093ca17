package models

import "time"

type Ticket struct {
	ID                 string     `json:"id"`
	QueueID            string     `json:"queue_id"`
	BusinessID         string     `json:"business_id"`
	TicketNumber       int        `json:"ticket_number"`
	Status             string     `json:"status"`
	UserEmail          string     `json:"user_email,omitempty"`
	UserPhone          string     `json:"user_phone,omitempty"`
	IsManual           bool       `json:"is_manual"`
	ManualName         string     `json:"manual_name,omitempty"`
	Position           int        `json:"position"`
	EstimatedTime      int        `json:"estimated_time"`
	CreatedDate        time.Time  `json:"created_date"`
	CalledAt           *time.Time `json:"called_at,omitempty"`
	AttendingStartedAt *time.Time `json:"attending_started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

const (
	StatusWaiting   = "aguardando"
	StatusCalled    = "chamado"
	StatusServing   = "atendendo"
	StatusCompleted = "concluido"
	StatusCancelled = "cancelado"
)

// ActiveStatuses are the states a ticket holds while it still occupies a place in the line.
var ActiveStatuses = []string{StatusWaiting, StatusCalled}

// OpenStatuses are all non-terminal states.
var OpenStatuses = []string{StatusWaiting, StatusCalled, StatusServing}

func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

func (t Ticket) IsActive() bool {
	return t.Status == StatusWaiting || t.Status == StatusCalled
}
