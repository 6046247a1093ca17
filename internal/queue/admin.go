package queue

import (
	"context"
	"errors"
	"strings"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/schedule"
	"github.com/Afonso75/QZeroN-sub002/internal/store"
)

type CreateQueueInput struct {
	BusinessID           string                      `json:"business_id" validate:"required,max=128"`
	Name                 string                      `json:"name" validate:"required,max=120"`
	WorkingHours         models.WorkingHours         `json:"working_hours"`
	AverageServiceTime   int                         `json:"average_service_time" validate:"min=0,max=480"`
	ToleranceTime        int                         `json:"tolerance_time" validate:"min=0,max=240"`
	NotificationsEnabled bool                        `json:"notifications_enabled"`
	NotificationSettings models.NotificationSettings `json:"notification_settings"`
}

// SettingsInput is a partial settings change. Nil fields keep their stored value.
type SettingsInput struct {
	AverageServiceTime   *int                         `json:"average_service_time" validate:"omitempty,min=1,max=480"`
	ToleranceTime        *int                         `json:"tolerance_time" validate:"omitempty,min=1,max=240"`
	NotificationsEnabled *bool                        `json:"notifications_enabled"`
	NotificationSettings *models.NotificationSettings `json:"notification_settings"`
	WorkingHours         *models.WorkingHours         `json:"working_hours"`
}

type QueueStatus struct {
	Queue    models.Queue    `json:"queue"`
	Schedule schedule.Result `json:"schedule"`
	Waiting  int             `json:"waiting"`
}

type History struct {
	Events   []store.TicketEvent `json:"events"`
	Verified bool                `json:"verified"`
}

func (s *Service) CreateQueue(ctx context.Context, input CreateQueueInput) (models.Queue, error) {
	input.BusinessID = strings.TrimSpace(input.BusinessID)
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return models.Queue{}, validationError(err)
	}
	if err := s.validateSettings(input.NotificationSettings); err != nil {
		return models.Queue{}, err
	}

	avg := input.AverageServiceTime
	if avg <= 0 {
		avg = models.DefaultAverageServiceTime
	}
	tol := input.ToleranceTime
	if tol <= 0 {
		tol = models.DefaultToleranceTime
	}
	settings := input.NotificationSettings
	settings.AdvanceNotice = settings.AdvanceNoticeOrDefault()

	queue, err := s.store.CreateQueue(ctx, store.CreateQueueInput{
		BusinessID:           input.BusinessID,
		Name:                 input.Name,
		Status:               models.QueueOpen,
		WorkingHours:         input.WorkingHours,
		AverageServiceTime:   avg,
		ToleranceTime:        tol,
		LastResetDate:        s.today(),
		NotificationsEnabled: input.NotificationsEnabled,
		NotificationSettings: settings,
		CreatedAt:            s.now(),
	})
	if err != nil {
		return models.Queue{}, &PersistenceError{Op: "create queue", Err: err}
	}
	s.logger.Info().Str("queue_id", queue.ID).Str("business_id", queue.BusinessID).Msg("queue created")
	return queue, nil
}

func (s *Service) GetQueue(ctx context.Context, queueID string) (models.Queue, error) {
	return s.getQueue(ctx, queueID)
}

// Status evaluates the schedule for a queue without touching it.
func (s *Service) Status(ctx context.Context, queueID string) (QueueStatus, error) {
	queue, err := s.getQueue(ctx, queueID)
	if err != nil {
		return QueueStatus{}, err
	}
	waiting, err := s.store.FilterTickets(ctx, store.TicketFilter{QueueID: queue.ID, Statuses: models.ActiveStatuses})
	if err != nil {
		return QueueStatus{}, &PersistenceError{Op: "count active tickets", Err: err}
	}
	return QueueStatus{
		Queue:    queue,
		Schedule: schedule.Evaluate(queue, s.now(), s.loc),
		Waiting:  len(waiting),
	}, nil
}

// SetStatus opens, pauses or closes a queue. Moving into pausada tells every active ticket.
func (s *Service) SetStatus(ctx context.Context, queueID, status string) (models.Queue, error) {
	switch status {
	case models.QueueOpen, models.QueuePaused, models.QueueClosed:
	default:
		return models.Queue{}, &ValidationError{Field: "status", Reason: "oneof aberta pausada fechada"}
	}

	current, err := s.getQueue(ctx, queueID)
	if err != nil {
		return models.Queue{}, err
	}
	queue, err := s.store.UpdateQueue(ctx, current.ID, store.QueueUpdate{Status: &status})
	if err != nil {
		return models.Queue{}, &PersistenceError{Op: "update queue status", Err: err}
	}
	s.logger.Info().Str("queue_id", queue.ID).Str("from", current.Status).Str("to", status).Msg("queue status changed")

	if status == models.QueuePaused && current.Status != models.QueuePaused {
		tickets, err := s.store.FilterTickets(ctx, store.TicketFilter{QueueID: queue.ID, Statuses: models.ActiveStatuses})
		if err != nil {
			s.logger.Warn().Err(err).Str("queue_id", queue.ID).Msg("pause notice skipped")
			return queue, nil
		}
		s.deliver(ctx, PausedIntents(queue, tickets))
	}
	return queue, nil
}

func (s *Service) UpdateSettings(ctx context.Context, queueID string, input SettingsInput) (models.Queue, error) {
	if err := s.validate.Struct(input); err != nil {
		return models.Queue{}, validationError(err)
	}
	if input.NotificationSettings != nil {
		if err := s.validateSettings(*input.NotificationSettings); err != nil {
			return models.Queue{}, err
		}
	}
	if _, err := s.getQueue(ctx, queueID); err != nil {
		return models.Queue{}, err
	}

	queue, err := s.store.UpdateQueue(ctx, queueID, store.QueueUpdate{
		AverageServiceTime:   input.AverageServiceTime,
		ToleranceTime:        input.ToleranceTime,
		NotificationsEnabled: input.NotificationsEnabled,
		NotificationSettings: input.NotificationSettings,
		WorkingHours:         input.WorkingHours,
	})
	if err != nil {
		return models.Queue{}, &PersistenceError{Op: "update queue settings", Err: err}
	}
	return queue, nil
}

func (s *Service) validateSettings(settings models.NotificationSettings) error {
	if settings.AdvanceNotice < 0 || settings.AdvanceNotice > 50 {
		return &ValidationError{Field: "advance_notice", Reason: "max"}
	}
	return nil
}

// ClearHistory deletes the finished tickets of a queue and returns how many went. Deletion
// carries on past individual failures; the first one is returned.
func (s *Service) ClearHistory(ctx context.Context, queueID string) (int, error) {
	queue, err := s.getQueue(ctx, queueID)
	if err != nil {
		return 0, err
	}
	finished, err := s.store.FilterTickets(ctx, store.TicketFilter{
		QueueID:  queue.ID,
		Statuses: []string{models.StatusCompleted, models.StatusCancelled},
	})
	if err != nil {
		return 0, &PersistenceError{Op: "list finished tickets", Err: err}
	}

	deleted := 0
	var firstErr error
	for _, ticket := range finished {
		if err := s.store.DeleteTicket(ctx, ticket.ID); err != nil && !errors.Is(err, store.ErrTicketNotFound) {
			s.logger.Warn().Err(err).Str("ticket_id", ticket.ID).Msg("clear history: delete failed")
			if firstErr == nil {
				firstErr = &PersistenceError{Op: "delete ticket", Err: err}
			}
			continue
		}
		s.forget(ticket.ID)
		deleted++
	}
	s.logger.Info().Str("queue_id", queue.ID).Int("deleted", deleted).Msg("history cleared")
	return deleted, firstErr
}

func (s *Service) DeleteTicket(ctx context.Context, ticketID string) error {
	if err := s.store.DeleteTicket(ctx, ticketID); err != nil {
		if errors.Is(err, store.ErrTicketNotFound) {
			return err
		}
		return &PersistenceError{Op: "delete ticket", Err: err}
	}
	s.forget(ticketID)
	return nil
}

func (s *Service) GetTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	return s.getTicket(ctx, ticketID)
}

// ListTickets returns a queue's tickets in number order, optionally narrowed to statuses.
func (s *Service) ListTickets(ctx context.Context, queueID string, statuses []string) ([]models.Ticket, error) {
	queue, err := s.getQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.FilterTickets(ctx, store.TicketFilter{
		QueueID:  queue.ID,
		Statuses: statuses,
		Sort:     store.SortTicketNumber,
	})
	if err != nil {
		return nil, &PersistenceError{Op: "list tickets", Err: err}
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, nil
}

func (s *Service) TicketHistory(ctx context.Context, ticketID string) (History, error) {
	events, err := s.store.ListTicketEvents(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrTicketNotFound) {
			return History{}, err
		}
		return History{}, &PersistenceError{Op: "list ticket events", Err: err}
	}
	if len(events) == 0 {
		return History{}, store.ErrTicketNotFound
	}
	verifyErr := store.VerifyTicketEvents(events)
	if verifyErr != nil {
		s.logger.Error().Err(verifyErr).Str("ticket_id", ticketID).Msg("ticket audit chain does not verify")
	}
	return History{Events: events, Verified: verifyErr == nil}, nil
}
