package queue

import (
	"context"
	"errors"
	"strings"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/notify"
	"github.com/Afonso75/QZeroN-sub002/internal/schedule"
	"github.com/Afonso75/QZeroN-sub002/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type IssueResult struct {
	Ticket                models.Ticket `json:"ticket"`
	NotificationAttempted bool          `json:"notification_attempted"`
	NotificationSent      bool          `json:"notification_sent"`
}

func (s *Service) IssueTicket(ctx context.Context, queueID string, holder models.Holder) (result IssueResult, err error) {
	ctx, span := s.tracer.Start(ctx, "queue.IssueTicket")
	span.SetAttributes(attribute.String("queue.id", queueID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	holder, err = s.normalizeHolder(holder)
	if err != nil {
		return IssueResult{}, err
	}

	queue, err := s.getQueue(ctx, queueID)
	if err != nil {
		return IssueResult{}, err
	}

	if self, ok := holder.(models.SelfService); ok {
		existing, err := s.store.FilterTickets(ctx, store.TicketFilter{
			QueueID:   queue.ID,
			UserEmail: self.Email,
			Statuses:  models.OpenStatuses,
		})
		if err != nil {
			return IssueResult{}, &PersistenceError{Op: "check active tickets", Err: err}
		}
		if len(existing) > 0 {
			return IssueResult{}, ErrActiveTicketExists
		}
	}

	status := schedule.Evaluate(queue, s.now(), s.loc)
	if !status.Operating {
		return IssueResult{}, &NotOperatingError{Case: status.Case, Reason: status.Reason}
	}

	queue = s.ResetIfNewDay(ctx, queue)
	next := queue.LastIssuedNumber + 1

	active, err := s.store.FilterTickets(ctx, store.TicketFilter{QueueID: queue.ID, Statuses: models.ActiveStatuses})
	if err != nil {
		return IssueResult{}, &PersistenceError{Op: "count active tickets", Err: err}
	}
	position := len(active) + 1

	input := store.CreateTicketInput{
		QueueID:       queue.ID,
		BusinessID:    queue.BusinessID,
		TicketNumber:  next,
		Status:        models.StatusWaiting,
		Position:      position,
		EstimatedTime: position * queue.ServiceMinutes(),
		CreatedAt:     s.now(),
	}
	switch h := holder.(type) {
	case models.SelfService:
		input.UserEmail = h.Email
		input.UserPhone = h.Phone
	case models.Manual:
		input.IsManual = true
		input.ManualName = h.Name
		input.UserEmail = h.Email
		input.UserPhone = h.Phone
	}

	ticket, err := s.store.CreateTicket(ctx, input)
	if err != nil {
		return IssueResult{}, &PersistenceError{Op: "create ticket", Err: err}
	}

	if _, err := s.store.UpdateQueue(ctx, queue.ID, store.QueueUpdate{LastIssuedNumber: &next}); err != nil {
		if delErr := s.store.DeleteTicket(ctx, ticket.ID); delErr != nil && !errors.Is(delErr, store.ErrTicketNotFound) {
			s.logger.Error().Err(delErr).Str("ticket_id", ticket.ID).Msg("orphan ticket left after failed counter update")
		}
		return IssueResult{}, &PersistenceError{Op: "update queue counter", Err: err}
	}
	queue.LastIssuedNumber = next

	span.SetAttributes(attribute.Int("ticket.number", ticket.TicketNumber))
	s.logger.Info().
		Str("queue_id", queue.ID).
		Str("ticket_id", ticket.ID).
		Int("ticket_number", ticket.TicketNumber).
		Bool("manual", ticket.IsManual).
		Msg("ticket issued")

	result = IssueResult{Ticket: ticket}
	intents := ConfirmationIntents(queue, ticket)
	if len(intents) > 0 && s.notifier != nil {
		result.NotificationAttempted = true
		result.NotificationSent = notify.AllSent(s.deliver(ctx, intents))
	}
	return result, nil
}

func (s *Service) normalizeHolder(holder models.Holder) (models.Holder, error) {
	switch h := holder.(type) {
	case models.SelfService:
		h.Email = strings.ToLower(strings.TrimSpace(h.Email))
		h.Phone = strings.TrimSpace(h.Phone)
		if err := s.validate.Struct(h); err != nil {
			return nil, validationError(err)
		}
		return h, nil
	case models.Manual:
		h.Name = strings.TrimSpace(h.Name)
		h.Email = strings.ToLower(strings.TrimSpace(h.Email))
		h.Phone = strings.TrimSpace(h.Phone)
		if err := s.validate.Struct(h); err != nil {
			return nil, validationError(err)
		}
		if h.Name == "" {
			h.Name = models.DefaultManualName
		}
		return h, nil
	}
	return nil, &ValidationError{Field: "holder", Reason: "required"}
}
