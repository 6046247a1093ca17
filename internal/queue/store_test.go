package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/notify"
	"github.com/Afonso75/QZeroN-sub002/internal/store"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory store.Store. The fail* hooks let a test reject individual writes.
type memStore struct {
	mu      sync.Mutex
	seq     int
	queues  map[string]models.Queue
	tickets map[string]models.Ticket
	events  map[string][]store.TicketEvent

	queueUpdates  []store.QueueUpdate
	ticketUpdates []string
	deleted       []string

	failUpdateQueue  func(update store.QueueUpdate) error
	failUpdateTicket func(ticketID string, update store.TicketUpdate) error
	failCreateTicket error
	failFilter       func(filter store.TicketFilter) error
	failListQueues   error
}

func newMemStore() *memStore {
	return &memStore{
		queues:  map[string]models.Queue{},
		tickets: map[string]models.Ticket{},
		events:  map[string][]store.TicketEvent{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) putQueue(q models.Queue) models.Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == "" {
		q.ID = m.nextID("q")
	}
	m.queues[q.ID] = q
	return q
}

func (m *memStore) putTicket(t models.Ticket) models.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = m.nextID("t")
	}
	m.tickets[t.ID] = t
	return t
}

func (m *memStore) queue(id string) models.Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queues[id]
}

func (m *memStore) ticket(id string) models.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[id]
}

func (m *memStore) CreateQueue(ctx context.Context, input store.CreateQueueInput) (models.Queue, error) {
	return m.putQueue(models.Queue{
		BusinessID:           input.BusinessID,
		Name:                 input.Name,
		Status:               input.Status,
		WorkingHours:         input.WorkingHours,
		AverageServiceTime:   input.AverageServiceTime,
		ToleranceTime:        input.ToleranceTime,
		LastResetDate:        input.LastResetDate,
		IsActive:             true,
		NotificationsEnabled: input.NotificationsEnabled,
		NotificationSettings: input.NotificationSettings,
		CreatedDate:          input.CreatedAt,
		UpdatedDate:          input.CreatedAt,
	}), nil
}

func (m *memStore) GetQueue(ctx context.Context, queueID string) (models.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[queueID]
	if !ok {
		return models.Queue{}, store.ErrQueueNotFound
	}
	return q, nil
}

func (m *memStore) UpdateQueue(ctx context.Context, queueID string, update store.QueueUpdate) (models.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueUpdates = append(m.queueUpdates, update)
	if m.failUpdateQueue != nil {
		if err := m.failUpdateQueue(update); err != nil {
			return models.Queue{}, err
		}
	}
	q, ok := m.queues[queueID]
	if !ok {
		return models.Queue{}, store.ErrQueueNotFound
	}
	if update.CurrentNumber != nil {
		q.CurrentNumber = *update.CurrentNumber
	}
	if update.LastIssuedNumber != nil {
		q.LastIssuedNumber = *update.LastIssuedNumber
	}
	if update.LastResetDate != nil {
		q.LastResetDate = *update.LastResetDate
	}
	if update.Status != nil {
		q.Status = *update.Status
	}
	if update.AverageServiceTime != nil {
		q.AverageServiceTime = *update.AverageServiceTime
	}
	if update.ToleranceTime != nil {
		q.ToleranceTime = *update.ToleranceTime
	}
	if update.NotificationsEnabled != nil {
		q.NotificationsEnabled = *update.NotificationsEnabled
	}
	if update.NotificationSettings != nil {
		q.NotificationSettings = *update.NotificationSettings
	}
	if update.WorkingHours != nil {
		q.WorkingHours = *update.WorkingHours
	}
	m.queues[queueID] = q
	return q, nil
}

func (m *memStore) ListQueues(ctx context.Context, filter store.QueueFilter) ([]models.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failListQueues != nil {
		return nil, m.failListQueues
	}
	var out []models.Queue
	for _, q := range m.queues {
		if filter.BusinessID != "" && q.BusinessID != filter.BusinessID {
			continue
		}
		if filter.ActiveOnly && !q.IsActive {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, error) {
	if m.failCreateTicket != nil {
		return models.Ticket{}, m.failCreateTicket
	}
	t := m.putTicket(models.Ticket{
		QueueID:       input.QueueID,
		BusinessID:    input.BusinessID,
		TicketNumber:  input.TicketNumber,
		Status:        input.Status,
		UserEmail:     input.UserEmail,
		UserPhone:     input.UserPhone,
		IsManual:      input.IsManual,
		ManualName:    input.ManualName,
		Position:      input.Position,
		EstimatedTime: input.EstimatedTime,
		CreatedDate:   input.CreatedAt,
	})
	payload, err := store.CreatedEventPayload(t)
	if err != nil {
		return models.Ticket{}, err
	}
	m.appendEvent(t.ID, store.TicketEventCreated, payload, input.CreatedAt)
	return t, nil
}

func (m *memStore) appendEvent(ticketID, eventType string, payload []byte, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.events[ticketID]
	prev := ""
	if len(events) > 0 {
		prev = events[len(events)-1].Hash
	}
	seq := len(events) + 1
	m.events[ticketID] = append(events, store.TicketEvent{
		TicketID:  ticketID,
		TicketSeq: seq,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: at,
		PrevHash:  prev,
		Hash:      store.ComputeTicketEventHash(prev, ticketID, eventType, payload, at, seq),
	})
}

func (m *memStore) GetTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return t, nil
}

func (m *memStore) UpdateTicket(ctx context.Context, ticketID string, update store.TicketUpdate) (models.Ticket, error) {
	m.mu.Lock()
	if m.failUpdateTicket != nil {
		if err := m.failUpdateTicket(ticketID, update); err != nil {
			m.mu.Unlock()
			return models.Ticket{}, err
		}
	}
	t, ok := m.tickets[ticketID]
	if !ok {
		m.mu.Unlock()
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.CalledAt != nil {
		at := *update.CalledAt
		t.CalledAt = &at
	}
	if update.AttendingStartedAt != nil {
		at := *update.AttendingStartedAt
		t.AttendingStartedAt = &at
	}
	if update.CompletedAt != nil {
		at := *update.CompletedAt
		t.CompletedAt = &at
	}
	m.tickets[ticketID] = t
	m.ticketUpdates = append(m.ticketUpdates, ticketID)
	m.mu.Unlock()

	payload, err := store.UpdatedEventPayload(ticketID, update)
	if err != nil {
		return models.Ticket{}, err
	}
	m.appendEvent(ticketID, store.TicketEventUpdated, payload, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	return t, nil
}

func (m *memStore) FilterTickets(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFilter != nil {
		if err := m.failFilter(filter); err != nil {
			return nil, err
		}
	}
	var out []models.Ticket
	for _, t := range m.tickets {
		if filter.BusinessID != "" && t.BusinessID != filter.BusinessID {
			continue
		}
		if filter.QueueID != "" && t.QueueID != filter.QueueID {
			continue
		}
		if filter.UserEmail != "" && t.UserEmail != filter.UserEmail {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, t.Status) {
			continue
		}
		out = append(out, t)
	}
	if filter.Sort == store.SortNewestFirst {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedDate.After(out[j].CreatedDate) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber < out[j].TicketNumber })
	}
	return out, nil
}

func (m *memStore) DeleteTicket(ctx context.Context, ticketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[ticketID]; !ok {
		return store.ErrTicketNotFound
	}
	delete(m.tickets, ticketID)
	m.deleted = append(m.deleted, ticketID)
	return nil
}

func (m *memStore) ListTicketEvents(ctx context.Context, ticketID string) ([]store.TicketEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.TicketEvent(nil), m.events[ticketID]...), nil
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

type recordingNotifier struct {
	mu      sync.Mutex
	intents []models.NotificationIntent
	fail    bool
}

func (n *recordingNotifier) Deliver(ctx context.Context, intents []models.NotificationIntent) []notify.Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Delivery, 0, len(intents))
	for _, intent := range intents {
		n.intents = append(n.intents, intent)
		var err error
		if n.fail {
			err = notify.ErrProviderFailure
		}
		out = append(out, notify.Delivery{Intent: intent, Err: err})
	}
	return out
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var kinds []string
	for _, intent := range n.intents {
		kinds = append(kinds, intent.Kind)
	}
	return kinds
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = nil
}
