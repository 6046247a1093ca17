package queue

import (
	"context"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/notify"
	"github.com/Afonso75/QZeroN-sub002/internal/store"
)

type AdvanceReport struct {
	Queues     int `json:"queues"`
	Intents    int `json:"intents"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
}

// NotifyAdvance sends "almost your turn" to waiting tickets that reached the advance notice
// distance. Intents already in the ledger are skipped.
func (s *Service) NotifyAdvance(ctx context.Context) (AdvanceReport, error) {
	ctx, span := s.tracer.Start(ctx, "queue.NotifyAdvance")
	defer span.End()

	queues, err := s.store.ListQueues(ctx, store.QueueFilter{ActiveOnly: true})
	if err != nil {
		span.RecordError(err)
		return AdvanceReport{}, &PersistenceError{Op: "list queues", Err: err}
	}

	var report AdvanceReport
	for _, queue := range queues {
		if !queue.NotificationsEnabled {
			continue
		}
		report.Queues++
		tickets, err := s.store.FilterTickets(ctx, store.TicketFilter{
			QueueID:  queue.ID,
			Statuses: []string{models.StatusWaiting},
		})
		if err != nil {
			report.Failed++
			s.logger.Warn().Err(err).Str("queue_id", queue.ID).Msg("advance notice: list tickets failed")
			continue
		}

		var pending []models.NotificationIntent
		for _, intent := range AdvanceNoticeIntents(queue, tickets) {
			if s.ledger != nil && s.ledger.Seen(notify.LedgerKey(intent)) {
				report.Suppressed++
				continue
			}
			pending = append(pending, intent)
		}
		for _, d := range s.deliver(ctx, pending) {
			report.Intents++
			if d.Err != nil {
				report.Failed++
			}
		}
	}
	return report, nil
}
