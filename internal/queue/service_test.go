package queue

import (
	"testing"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/clock"
	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/notify"

	"github.com/rs/zerolog"
)

// 2026-03-02 is a Monday.
func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func weekdayHours(start, end string) models.WorkingHours {
	var hours models.WorkingHours
	for day := time.Monday; day <= time.Friday; day++ {
		hours.SetDay(day, &models.DaySchedule{Enabled: true, Start: start, End: end})
	}
	return hours
}

func openQueue() models.Queue {
	return models.Queue{
		BusinessID:           "biz-1",
		Name:                 "Pharmacy",
		Status:               models.QueueOpen,
		WorkingHours:         weekdayHours("09:00", "18:00"),
		AverageServiceTime:   10,
		ToleranceTime:        15,
		LastResetDate:        "2026-03-02",
		IsActive:             true,
		NotificationsEnabled: true,
		NotificationSettings: models.NotificationSettings{Email: true, SMS: true, AdvanceNotice: 2},
	}
}

type harness struct {
	svc      *Service
	store    *memStore
	clock    *clock.FakeClock
	notifier *recordingNotifier
	ledger   *notify.Ledger
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	st := newMemStore()
	clk := clock.Fake(now)
	notifier := &recordingNotifier{}
	ledger := notify.NewLedger(clk, time.Hour)
	svc := New(st, Options{
		Clock:    clk,
		Location: time.UTC,
		Notifier: notifier,
		Ledger:   ledger,
		Logger:   zerolog.Nop(),
	})
	return &harness{svc: svc, store: st, clock: clk, notifier: notifier, ledger: ledger}
}

func ptrTime(t time.Time) *time.Time { return &t }

func mustLoadFixed(hours int) *time.Location {
	return time.FixedZone("fixed", hours*60*60)
}
