package queue

import (
	"context"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ExpiryRule string

const (
	RuleCalledTimeout  ExpiryRule = "called_timeout"
	RulePassedOver     ExpiryRule = "passed_over"
	RuleServiceOverrun ExpiryRule = "service_overrun"
)

type Expiry struct {
	TicketID string
	Rule     ExpiryRule
}

// EvaluateExpiry lists the tickets that should be cancelled at now.
func EvaluateExpiry(queue models.Queue, tickets []models.Ticket, now time.Time) []Expiry {
	tolerance := queue.ToleranceDuration()
	budget := queue.ServiceDuration() + tolerance

	var out []Expiry
	for _, ticket := range tickets {
		if !store.ValidTransition(store.ActionExpire, ticket.Status) {
			continue
		}
		switch ticket.Status {
		case models.StatusCalled:
			if ticket.CalledAt != nil && now.Sub(*ticket.CalledAt) > tolerance {
				out = append(out, Expiry{TicketID: ticket.ID, Rule: RuleCalledTimeout})
			}
		case models.StatusWaiting:
			if ticket.TicketNumber < queue.CurrentNumber {
				out = append(out, Expiry{TicketID: ticket.ID, Rule: RulePassedOver})
			}
		case models.StatusServing:
			// Measured from the call, not from the start of service.
			if ticket.CalledAt != nil && now.Sub(*ticket.CalledAt) > budget {
				out = append(out, Expiry{TicketID: ticket.ID, Rule: RuleServiceOverrun})
			}
		}
	}
	return out
}

type AutoCompletePlan struct {
	Backfill []string
	Complete []string
}

// EvaluateAutoComplete picks serving tickets whose service time has run out. Tickets without a
// start timestamp get one backfilled first and become eligible on a later round.
func EvaluateAutoComplete(queue models.Queue, tickets []models.Ticket, now time.Time) AutoCompletePlan {
	service := queue.ServiceDuration()
	var plan AutoCompletePlan
	for _, ticket := range tickets {
		if !store.ValidTransition(store.ActionAutoComplete, ticket.Status) {
			continue
		}
		if ticket.AttendingStartedAt == nil {
			plan.Backfill = append(plan.Backfill, ticket.ID)
			continue
		}
		if now.Sub(*ticket.AttendingStartedAt) >= service {
			plan.Complete = append(plan.Complete, ticket.ID)
		}
	}
	return plan
}

type SweepReport struct {
	Queues       int `json:"queues"`
	Checked      int `json:"checked"`
	Transitioned int `json:"transitioned"`
	Backfilled   int `json:"backfilled"`
	Failed       int `json:"failed"`
}

// ExpireTickets cancels overdue tickets across every active queue. A failed ticket or queue is
// logged and left for the next round.
func (s *Service) ExpireTickets(ctx context.Context) (report SweepReport, err error) {
	ctx, span := s.tracer.Start(ctx, "queue.ExpireTickets")
	defer func() { s.endSweepSpan(span, report, err) }()

	queues, err := s.store.ListQueues(ctx, store.QueueFilter{ActiveOnly: true})
	if err != nil {
		return SweepReport{}, &PersistenceError{Op: "list queues", Err: err}
	}

	for _, queue := range queues {
		report.Queues++
		tickets, err := s.store.FilterTickets(ctx, store.TicketFilter{QueueID: queue.ID, Statuses: models.OpenStatuses})
		if err != nil {
			report.Failed++
			s.logger.Warn().Err(err).Str("queue_id", queue.ID).Msg("expiry sweep: list tickets failed")
			continue
		}
		report.Checked += len(tickets)

		now := s.now()
		cancelled := models.StatusCancelled
		for _, expiry := range EvaluateExpiry(queue, tickets, now) {
			if _, err := s.store.UpdateTicket(ctx, expiry.TicketID, store.TicketUpdate{Status: &cancelled, CompletedAt: &now}); err != nil {
				report.Failed++
				s.logger.Warn().Err(err).
					Str("queue_id", queue.ID).
					Str("ticket_id", expiry.TicketID).
					Str("rule", string(expiry.Rule)).
					Msg("expiry sweep: cancel failed")
				continue
			}
			s.forget(expiry.TicketID)
			report.Transitioned++
			s.logger.Info().
				Str("queue_id", queue.ID).
				Str("ticket_id", expiry.TicketID).
				Str("rule", string(expiry.Rule)).
				Msg("ticket expired")
		}
	}
	return report, nil
}

// AutoComplete completes serving tickets that used up the average service time.
func (s *Service) AutoComplete(ctx context.Context) (report SweepReport, err error) {
	ctx, span := s.tracer.Start(ctx, "queue.AutoComplete")
	defer func() { s.endSweepSpan(span, report, err) }()

	queues, err := s.store.ListQueues(ctx, store.QueueFilter{ActiveOnly: true})
	if err != nil {
		return SweepReport{}, &PersistenceError{Op: "list queues", Err: err}
	}

	for _, queue := range queues {
		report.Queues++
		tickets, err := s.store.FilterTickets(ctx, store.TicketFilter{QueueID: queue.ID, Statuses: []string{models.StatusServing}})
		if err != nil {
			report.Failed++
			s.logger.Warn().Err(err).Str("queue_id", queue.ID).Msg("auto-complete: list tickets failed")
			continue
		}
		report.Checked += len(tickets)

		now := s.now()
		plan := EvaluateAutoComplete(queue, tickets, now)
		for _, id := range plan.Backfill {
			if _, err := s.store.UpdateTicket(ctx, id, store.TicketUpdate{AttendingStartedAt: &now}); err != nil {
				report.Failed++
				s.logger.Warn().Err(err).Str("ticket_id", id).Msg("auto-complete: backfill failed")
				continue
			}
			report.Backfilled++
		}

		completed := models.StatusCompleted
		for _, id := range plan.Complete {
			if _, err := s.store.UpdateTicket(ctx, id, store.TicketUpdate{Status: &completed, CompletedAt: &now}); err != nil {
				report.Failed++
				s.logger.Warn().Err(err).Str("ticket_id", id).Msg("auto-complete: complete failed")
				continue
			}
			s.forget(id)
			report.Transitioned++
			s.logger.Info().Str("queue_id", queue.ID).Str("ticket_id", id).Msg("ticket auto-completed")
		}
	}
	return report, nil
}

func (s *Service) endSweepSpan(span trace.Span, report SweepReport, err error) {
	span.SetAttributes(
		attribute.Int("sweep.queues", report.Queues),
		attribute.Int("sweep.transitioned", report.Transitioned),
		attribute.Int("sweep.failed", report.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
