package store

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
)

const (
	TicketEventCreated = "ticket.created"
	TicketEventUpdated = "ticket.updated"
)

var ErrBrokenEventChain = errors.New("ticket event chain broken")

type TicketEvent struct {
	TicketID  string          `json:"ticket_id"`
	TicketSeq int             `json:"ticket_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

type eventPayload struct {
	TicketID           string     `json:"ticket_id,omitempty"`
	QueueID            string     `json:"queue_id,omitempty"`
	BusinessID         string     `json:"business_id,omitempty"`
	TicketNumber       int        `json:"ticket_number,omitempty"`
	Status             string     `json:"status,omitempty"`
	IsManual           *bool      `json:"is_manual,omitempty"`
	ManualName         string     `json:"manual_name,omitempty"`
	Position           int        `json:"position,omitempty"`
	EstimatedTime      int        `json:"estimated_time,omitempty"`
	CreatedAt          *time.Time `json:"created_at,omitempty"`
	CalledAt           *time.Time `json:"called_at,omitempty"`
	AttendingStartedAt *time.Time `json:"attending_started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// CreatedEventPayload snapshots a new ticket. Contact details stay out of the audit trail.
func CreatedEventPayload(ticket models.Ticket) (json.RawMessage, error) {
	createdAt := ticket.CreatedDate
	manual := ticket.IsManual
	return json.Marshal(eventPayload{
		TicketID:      ticket.ID,
		QueueID:       ticket.QueueID,
		BusinessID:    ticket.BusinessID,
		TicketNumber:  ticket.TicketNumber,
		Status:        ticket.Status,
		IsManual:      &manual,
		ManualName:    ticket.ManualName,
		Position:      ticket.Position,
		EstimatedTime: ticket.EstimatedTime,
		CreatedAt:     &createdAt,
	})
}

// UpdatedEventPayload records only the fields an update touched.
func UpdatedEventPayload(ticketID string, update TicketUpdate) (json.RawMessage, error) {
	payload := eventPayload{
		TicketID:           ticketID,
		CalledAt:           update.CalledAt,
		AttendingStartedAt: update.AttendingStartedAt,
		CompletedAt:        update.CompletedAt,
	}
	if update.Status != nil {
		payload.Status = *update.Status
	}
	return json.Marshal(payload)
}

func ComputeTicketEventHash(prevHash, ticketID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, ticketID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// VerifyTicketEvents recomputes every hash in order and checks each link to its predecessor.
func VerifyTicketEvents(events []TicketEvent) error {
	prev := ""
	for i, event := range events {
		if event.TicketSeq != i+1 {
			return fmt.Errorf("%w: seq %d at position %d", ErrBrokenEventChain, event.TicketSeq, i)
		}
		if event.PrevHash != prev {
			return fmt.Errorf("%w: prev hash mismatch at seq %d", ErrBrokenEventChain, event.TicketSeq)
		}
		want := ComputeTicketEventHash(prev, event.TicketID, event.Type, event.Payload, event.CreatedAt, event.TicketSeq)
		if event.Hash != want {
			return fmt.Errorf("%w: hash mismatch at seq %d", ErrBrokenEventChain, event.TicketSeq)
		}
		prev = event.Hash
	}
	return nil
}

func RehydrateTicket(events []TicketEvent) (models.Ticket, error) {
	var ticket models.Ticket
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload eventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Ticket{}, err
		}
		if payload.TicketID != "" {
			ticket.ID = payload.TicketID
		}
		if payload.QueueID != "" {
			ticket.QueueID = payload.QueueID
		}
		if payload.BusinessID != "" {
			ticket.BusinessID = payload.BusinessID
		}
		if payload.TicketNumber != 0 {
			ticket.TicketNumber = payload.TicketNumber
		}
		if payload.Status != "" {
			ticket.Status = payload.Status
		}
		if payload.IsManual != nil {
			ticket.IsManual = *payload.IsManual
		}
		if payload.ManualName != "" {
			ticket.ManualName = payload.ManualName
		}
		if payload.Position != 0 {
			ticket.Position = payload.Position
		}
		if payload.EstimatedTime != 0 {
			ticket.EstimatedTime = payload.EstimatedTime
		}
		if payload.CreatedAt != nil {
			ticket.CreatedDate = *payload.CreatedAt
		}
		if payload.CalledAt != nil {
			ticket.CalledAt = payload.CalledAt
		}
		if payload.AttendingStartedAt != nil {
			ticket.AttendingStartedAt = payload.AttendingStartedAt
		}
		if payload.CompletedAt != nil {
			ticket.CompletedAt = payload.CompletedAt
		}
	}
	return ticket, nil
}
