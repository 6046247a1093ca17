package queue

import (
	"context"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/store"
)

// ResetIfNewDay zeroes the counters the first time a queue is touched on a new local date.
// When the write fails the reset copy is still returned so issuance can go ahead; the stored
// row stays stale until a later call succeeds.
func (s *Service) ResetIfNewDay(ctx context.Context, queue models.Queue) models.Queue {
	today := s.today()
	if queue.LastResetDate == today {
		return queue
	}

	zero := 0
	updated, err := s.store.UpdateQueue(ctx, queue.ID, store.QueueUpdate{
		CurrentNumber:    &zero,
		LastIssuedNumber: &zero,
		LastResetDate:    &today,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("queue_id", queue.ID).
			Str("last_reset_date", queue.LastResetDate).
			Msg("daily reset not persisted, continuing with in-memory reset")
		queue.CurrentNumber = 0
		queue.LastIssuedNumber = 0
		queue.LastResetDate = today
		return queue
	}
	s.logger.Info().Str("queue_id", queue.ID).Str("date", today).Msg("queue counters reset")
	return updated
}
