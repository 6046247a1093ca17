package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/schedule"
	"github.com/Afonso75/QZeroN-sub002/internal/store"
)

func TestIssueTicketNumbersAreMonotonic(t *testing.T) {
	h := newHarness(t, at(9, 5))
	q := h.store.putQueue(openQueue())

	prev := 0
	for i := 0; i < 5; i++ {
		res, err := h.svc.IssueTicket(context.Background(), q.ID, models.Manual{})
		if err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
		if res.Ticket.TicketNumber <= prev {
			t.Fatalf("ticket number %d not greater than previous %d", res.Ticket.TicketNumber, prev)
		}
		prev = res.Ticket.TicketNumber
		if stored := h.store.queue(q.ID); stored.LastIssuedNumber != prev {
			t.Fatalf("last_issued_number=%d, want %d", stored.LastIssuedNumber, prev)
		}
	}
	if prev != 5 {
		t.Fatalf("expected 5 issued tickets, last=%d", prev)
	}
}

func TestIssueTicketPositionAndEstimate(t *testing.T) {
	h := newHarness(t, at(9, 5))
	q := h.store.putQueue(openQueue())
	h.store.putTicket(models.Ticket{QueueID: q.ID, TicketNumber: 1, Status: models.StatusCalled})
	h.store.putTicket(models.Ticket{QueueID: q.ID, TicketNumber: 2, Status: models.StatusWaiting})
	h.store.putTicket(models.Ticket{QueueID: q.ID, TicketNumber: 3, Status: models.StatusServing})
	h.store.putTicket(models.Ticket{QueueID: q.ID, TicketNumber: 4, Status: models.StatusCancelled})

	res, err := h.svc.IssueTicket(context.Background(), q.ID, models.SelfService{Email: "Ana@Example.com "})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if res.Ticket.Position != 3 || res.Ticket.EstimatedTime != 30 {
		t.Fatalf("position=%d estimate=%d, want 3 and 30", res.Ticket.Position, res.Ticket.EstimatedTime)
	}
	if res.Ticket.Status != models.StatusWaiting || res.Ticket.UserEmail != "ana@example.com" {
		t.Fatalf("unexpected ticket: %+v", res.Ticket)
	}
}

func TestIssueTicketRejectsClosedQueue(t *testing.T) {
	h := newHarness(t, at(8, 0))
	q := h.store.putQueue(openQueue())

	_, err := h.svc.IssueTicket(context.Background(), q.ID, models.Manual{})
	var notOperating *NotOperatingError
	if !errors.As(err, &notOperating) {
		t.Fatalf("err=%v, want NotOperatingError", err)
	}
	if notOperating.Case != schedule.CaseBeforeOpening {
		t.Fatalf("case=%q, want before_opening", notOperating.Case)
	}
	if len(h.store.tickets) != 0 {
		t.Fatalf("no ticket should be created")
	}
}

func TestIssueTicketValidatesHolder(t *testing.T) {
	h := newHarness(t, at(9, 5))
	q := h.store.putQueue(openQueue())

	cases := []struct {
		name   string
		holder models.Holder
		field  string
	}{
		{"missing email", models.SelfService{}, "email"},
		{"bad email", models.SelfService{Email: "not-an-email"}, "email"},
		{"bad phone", models.SelfService{Email: "a@b.co", Phone: "12ab"}, "phone"},
		{"manual bad email", models.Manual{Name: "Rui", Email: "rui@"}, "email"},
		{"nil holder", nil, "holder"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.IssueTicket(context.Background(), q.ID, tt.holder)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err=%v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("field=%q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestIssueTicketRejectsSecondActiveTicket(t *testing.T) {
	h := newHarness(t, at(9, 5))
	q := h.store.putQueue(openQueue())
	holder := models.SelfService{Email: "ana@example.com"}

	if _, err := h.svc.IssueTicket(context.Background(), q.ID, holder); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	if _, err := h.svc.IssueTicket(context.Background(), q.ID, holder); !errors.Is(err, ErrActiveTicketExists) {
		t.Fatalf("err=%v, want ErrActiveTicketExists", err)
	}
	// Walk-ins are not deduplicated.
	if _, err := h.svc.IssueTicket(context.Background(), q.ID, models.Manual{Email: "ana@example.com"}); err != nil {
		t.Fatalf("manual issue: %v", err)
	}
}

func TestIssueTicketCounterFailureRemovesTicket(t *testing.T) {
	h := newHarness(t, at(9, 5))
	q := h.store.putQueue(openQueue())
	h.store.failUpdateQueue = func(u store.QueueUpdate) error {
		if u.LastIssuedNumber != nil {
			return errInjected
		}
		return nil
	}

	_, err := h.svc.IssueTicket(context.Background(), q.ID, models.Manual{})
	var perr *PersistenceError
	if !errors.As(err, &perr) || !errors.Is(err, errInjected) {
		t.Fatalf("err=%v, want PersistenceError wrapping the store error", err)
	}
	if len(h.store.tickets) != 0 || len(h.store.deleted) != 1 {
		t.Fatalf("expected the created ticket to be removed, tickets=%d deleted=%d", len(h.store.tickets), len(h.store.deleted))
	}
}

func TestIssueTicketCreateFailure(t *testing.T) {
	h := newHarness(t, at(9, 5))
	q := h.store.putQueue(openQueue())
	h.store.failCreateTicket = errInjected

	_, err := h.svc.IssueTicket(context.Background(), q.ID, models.Manual{})
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err=%v, want PersistenceError", err)
	}
	if h.store.queue(q.ID).LastIssuedNumber != 0 {
		t.Fatalf("counter moved despite failed create")
	}
}

func TestIssueTicketNotificationFailureKeepsTicket(t *testing.T) {
	h := newHarness(t, at(9, 5))
	h.notifier.fail = true
	q := h.store.putQueue(openQueue())

	res, err := h.svc.IssueTicket(context.Background(), q.ID, models.SelfService{Email: "ana@example.com", Phone: "11999990000"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !res.NotificationAttempted || res.NotificationSent {
		t.Fatalf("attempted=%v sent=%v, want true/false", res.NotificationAttempted, res.NotificationSent)
	}
	if _, ok := h.store.tickets[res.Ticket.ID]; !ok {
		t.Fatalf("ticket rolled back after notification failure")
	}
	kinds := h.notifier.kinds()
	if len(kinds) != 2 || kinds[0] != models.IntentTicketConfirmed {
		t.Fatalf("expected confirmations on email and sms, got %v", kinds)
	}
}

func TestIssueTicketConfirmationIgnoresNotificationSwitch(t *testing.T) {
	h := newHarness(t, at(9, 5))
	q := openQueue()
	q.NotificationsEnabled = false
	q = h.store.putQueue(q)

	res, err := h.svc.IssueTicket(context.Background(), q.ID, models.SelfService{Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !res.NotificationAttempted || !res.NotificationSent {
		t.Fatalf("confirmation should still be sent: %+v", res)
	}
}

func TestIssueManualTicketDefaults(t *testing.T) {
	h := newHarness(t, at(9, 5))
	q := h.store.putQueue(openQueue())

	res, err := h.svc.IssueTicket(context.Background(), q.ID, models.Manual{Name: "  "})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !res.Ticket.IsManual || res.Ticket.ManualName != models.DefaultManualName {
		t.Fatalf("unexpected manual ticket: %+v", res.Ticket)
	}
	if res.NotificationAttempted {
		t.Fatalf("no contact given, nothing to notify")
	}
}

func TestIssueTicketResetsOnNewDay(t *testing.T) {
	h := newHarness(t, at(9, 5))
	q := openQueue()
	q.LastResetDate = "2026-02-27"
	q.CurrentNumber = 38
	q.LastIssuedNumber = 40
	q = h.store.putQueue(q)

	res, err := h.svc.IssueTicket(context.Background(), q.ID, models.Manual{})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if res.Ticket.TicketNumber != 1 {
		t.Fatalf("ticket number=%d, want 1 after reset", res.Ticket.TicketNumber)
	}
	stored := h.store.queue(q.ID)
	if stored.CurrentNumber != 0 || stored.LastIssuedNumber != 1 || stored.LastResetDate != "2026-03-02" {
		t.Fatalf("unexpected queue after reset: %+v", stored)
	}
}

func TestIssueTicketUnknownQueue(t *testing.T) {
	h := newHarness(t, at(9, 5))
	if _, err := h.svc.IssueTicket(context.Background(), "missing", models.Manual{}); !errors.Is(err, store.ErrQueueNotFound) {
		t.Fatalf("err=%v, want ErrQueueNotFound", err)
	}
}
