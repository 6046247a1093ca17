// Package queue runs the ticket lifecycle: numbering, calling, staff actions, the expiry and
// auto-complete sweeps, and the notifications they trigger.
package queue

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/clock"
	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/notify"
	"github.com/Afonso75/QZeroN-sub002/internal/schedule"
	"github.com/Afonso75/QZeroN-sub002/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const dateLayout = "2006-01-02"

type Notifier interface {
	Deliver(ctx context.Context, intents []models.NotificationIntent) []notify.Delivery
}

// SentLedger records delivered intents between polling rounds.
type SentLedger interface {
	Seen(key string) bool
	Mark(key string)
	ForgetTicket(ticketID string)
}

type Options struct {
	Clock    clock.Clock
	Location *time.Location
	Notifier Notifier
	Ledger   SentLedger
	Logger   zerolog.Logger
}

type Service struct {
	store    store.Store
	clock    clock.Clock
	loc      *time.Location
	notifier Notifier
	ledger   SentLedger
	logger   zerolog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

func New(st store.Store, opts Options) *Service {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:    st,
		clock:    clk,
		loc:      loc,
		notifier: opts.Notifier,
		ledger:   opts.Ledger,
		logger:   opts.Logger.With().Str("component", "queue").Logger(),
		validate: newValidator(),
		tracer:   otel.Tracer("github.com/Afonso75/QZeroN-sub002/internal/queue"),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, ok := schedule.ParseClock(fl.Field().String())
		return ok
	})
	return v
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}

func (s *Service) today() string {
	return s.clock.Now().In(s.loc).Format(dateLayout)
}

// validationError converts the first validator failure into a ValidationError.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Reason: fe.Tag()}
	}
	return &ValidationError{Field: "input", Reason: err.Error()}
}

func (s *Service) getQueue(ctx context.Context, queueID string) (models.Queue, error) {
	queue, err := s.store.GetQueue(ctx, queueID)
	if err != nil {
		if errors.Is(err, store.ErrQueueNotFound) {
			return models.Queue{}, err
		}
		return models.Queue{}, &PersistenceError{Op: "get queue", Err: err}
	}
	return queue, nil
}

func (s *Service) getTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrTicketNotFound) {
			return models.Ticket{}, err
		}
		return models.Ticket{}, &PersistenceError{Op: "get ticket", Err: err}
	}
	return ticket, nil
}

// deliver hands intents to the notifier and records the successful ones in the ledger.
func (s *Service) deliver(ctx context.Context, intents []models.NotificationIntent) []notify.Delivery {
	if len(intents) == 0 || s.notifier == nil {
		return nil
	}
	deliveries := s.notifier.Deliver(ctx, intents)
	if s.ledger != nil {
		for _, d := range deliveries {
			if d.Err == nil {
				s.ledger.Mark(notify.LedgerKey(d.Intent))
			}
		}
	}
	return deliveries
}

func (s *Service) forget(ticketID string) {
	if s.ledger != nil {
		s.ledger.ForgetTicket(ticketID)
	}
}
