package queue

import (
	"context"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type CallResult struct {
	Queue   models.Queue                `json:"queue"`
	Called  *models.Ticket              `json:"called,omitempty"`
	Skipped []models.Ticket             `json:"skipped"`
	Intents []models.NotificationIntent `json:"-"`
}

// CallNext advances the queue pointer by one. Active tickets numbered below the new pointer
// are cancelled as skipped, the waiting ticket holding the new number is called, and the
// pointer moves even when no such ticket exists.
func (s *Service) CallNext(ctx context.Context, queueID string) (result CallResult, err error) {
	ctx, span := s.tracer.Start(ctx, "queue.CallNext")
	span.SetAttributes(attribute.String("queue.id", queueID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	queue, err := s.getQueue(ctx, queueID)
	if err != nil {
		return CallResult{}, err
	}
	now := s.now()
	next := queue.CurrentNumber + 1

	tickets, err := s.store.FilterTickets(ctx, store.TicketFilter{
		QueueID:  queue.ID,
		Statuses: models.ActiveStatuses,
		Sort:     store.SortTicketNumber,
	})
	if err != nil {
		return CallResult{}, &PersistenceError{Op: "list active tickets", Err: err}
	}

	result.Skipped = []models.Ticket{}
	var candidate, twoAhead *models.Ticket
	for i := range tickets {
		ticket := tickets[i]
		switch {
		case ticket.TicketNumber < next && store.ValidTransition(store.ActionSkip, ticket.Status):
			cancelled := models.StatusCancelled
			updated, err := s.store.UpdateTicket(ctx, ticket.ID, store.TicketUpdate{Status: &cancelled, CompletedAt: &now})
			if err != nil {
				return CallResult{}, &PersistenceError{Op: "cancel skipped ticket", Err: err}
			}
			s.forget(ticket.ID)
			result.Skipped = append(result.Skipped, updated)
		case ticket.TicketNumber == next && store.ValidTransition(store.ActionCall, ticket.Status):
			candidate = &tickets[i]
		case ticket.TicketNumber == next+2 && ticket.Status == models.StatusWaiting:
			twoAhead = &tickets[i]
		}
	}

	if candidate != nil {
		calledStatus := models.StatusCalled
		called, err := s.store.UpdateTicket(ctx, candidate.ID, store.TicketUpdate{Status: &calledStatus, CalledAt: &now})
		if err != nil {
			return CallResult{}, &PersistenceError{Op: "call ticket", Err: err}
		}
		result.Called = &called
	}

	queue, err = s.store.UpdateQueue(ctx, queue.ID, store.QueueUpdate{CurrentNumber: &next})
	if err != nil {
		return CallResult{}, &PersistenceError{Op: "advance queue", Err: err}
	}
	result.Queue = queue

	event := s.logger.Info().
		Str("queue_id", queue.ID).
		Int("current_number", queue.CurrentNumber).
		Int("skipped", len(result.Skipped))
	if result.Called != nil {
		event = event.Str("ticket_id", result.Called.ID)
		span.SetAttributes(attribute.String("ticket.id", result.Called.ID))
	}
	event.Msg("queue advanced")

	result.Intents = CallIntents(queue, result.Called, twoAhead)
	s.deliver(ctx, result.Intents)
	return result, nil
}

// StartService marks a ticket as being served. Staff actions only require the ticket to exist.
func (s *Service) StartService(ctx context.Context, ticketID string) (models.Ticket, error) {
	now := s.now()
	status := models.StatusServing
	return s.manualUpdate(ctx, ticketID, "start service", store.TicketUpdate{Status: &status, AttendingStartedAt: &now})
}

func (s *Service) CompleteTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	now := s.now()
	status := models.StatusCompleted
	return s.manualUpdate(ctx, ticketID, "complete ticket", store.TicketUpdate{Status: &status, CompletedAt: &now})
}

func (s *Service) CancelTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	now := s.now()
	status := models.StatusCancelled
	return s.manualUpdate(ctx, ticketID, "cancel ticket", store.TicketUpdate{Status: &status, CompletedAt: &now})
}

func (s *Service) manualUpdate(ctx context.Context, ticketID, op string, update store.TicketUpdate) (models.Ticket, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return models.Ticket{}, err
	}
	ticket, err := s.store.UpdateTicket(ctx, ticketID, update)
	if err != nil {
		return models.Ticket{}, &PersistenceError{Op: op, Err: err}
	}
	if models.IsTerminal(ticket.Status) {
		s.forget(ticket.ID)
	}
	s.logger.Info().Str("ticket_id", ticket.ID).Str("status", ticket.Status).Msg(op)
	return ticket, nil
}
