package store

import (
	"context"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
)

type CreateQueueInput struct {
	BusinessID           string
	Name                 string
	Status               string
	WorkingHours         models.WorkingHours
	AverageServiceTime   int
	ToleranceTime        int
	LastResetDate        string
	NotificationsEnabled bool
	NotificationSettings models.NotificationSettings
	CreatedAt            time.Time
}

// QueueUpdate is a partial write. Nil fields are left untouched.
type QueueUpdate struct {
	CurrentNumber        *int
	LastIssuedNumber     *int
	LastResetDate        *string
	Status               *string
	AverageServiceTime   *int
	ToleranceTime        *int
	NotificationsEnabled *bool
	NotificationSettings *models.NotificationSettings
	WorkingHours         *models.WorkingHours
}

func (u QueueUpdate) Empty() bool {
	return u.CurrentNumber == nil && u.LastIssuedNumber == nil && u.LastResetDate == nil &&
		u.Status == nil && u.AverageServiceTime == nil && u.ToleranceTime == nil &&
		u.NotificationsEnabled == nil && u.NotificationSettings == nil && u.WorkingHours == nil
}

type QueueFilter struct {
	BusinessID string
	ActiveOnly bool
}

type CreateTicketInput struct {
	QueueID       string
	BusinessID    string
	TicketNumber  int
	Status        string
	UserEmail     string
	UserPhone     string
	IsManual      bool
	ManualName    string
	Position      int
	EstimatedTime int
	CreatedAt     time.Time
}

type TicketUpdate struct {
	Status             *string
	CalledAt           *time.Time
	AttendingStartedAt *time.Time
	CompletedAt        *time.Time
}

const (
	SortTicketNumber = "ticket_number"
	SortNewestFirst  = "-created_date"
)

// TicketFilter matches on equality for the string fields and set membership for Statuses.
// Empty fields do not constrain the result.
type TicketFilter struct {
	BusinessID string
	QueueID    string
	Statuses   []string
	UserEmail  string
	Sort       string
}

type QueueStore interface {
	CreateQueue(ctx context.Context, input CreateQueueInput) (models.Queue, error)
	GetQueue(ctx context.Context, queueID string) (models.Queue, error)
	UpdateQueue(ctx context.Context, queueID string, update QueueUpdate) (models.Queue, error)
	ListQueues(ctx context.Context, filter QueueFilter) ([]models.Queue, error)
}

type TicketStore interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (models.Ticket, error)
	UpdateTicket(ctx context.Context, ticketID string, update TicketUpdate) (models.Ticket, error)
	FilterTickets(ctx context.Context, filter TicketFilter) ([]models.Ticket, error)
	DeleteTicket(ctx context.Context, ticketID string) error
	ListTicketEvents(ctx context.Context, ticketID string) ([]TicketEvent, error)
}

type Store interface {
	QueueStore
	TicketStore
}
