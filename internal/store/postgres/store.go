package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	queueColumns  = `queue_id, business_id, name, current_number, last_issued_number, working_hours, status, average_service_time, tolerance_time, last_reset_date, is_active, notifications_enabled, notification_settings, created_date, updated_date`
	ticketColumns = `ticket_id, queue_id, business_id, ticket_number, status, user_email, user_phone, is_manual, manual_name, position, estimated_time, created_date, called_at, attending_started_at, completed_at`
)

const (
	pgInsufficientPrivilege = "42501"
	pgInvalidTextRepr       = "22P02"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateQueue(ctx context.Context, input store.CreateQueueInput) (models.Queue, error) {
	hours, err := json.Marshal(input.WorkingHours)
	if err != nil {
		return models.Queue{}, err
	}
	settings, err := json.Marshal(input.NotificationSettings)
	if err != nil {
		return models.Queue{}, err
	}
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	status := input.Status
	if status == "" {
		status = models.QueueOpen
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO queues (
			queue_id, business_id, name, working_hours, status, average_service_time, tolerance_time,
			last_reset_date, notifications_enabled, notification_settings, created_date, updated_date
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		RETURNING `+queueColumns,
		uuid.NewString(), input.BusinessID, input.Name, hours, status, input.AverageServiceTime, input.ToleranceTime,
		nullIfEmpty(input.LastResetDate), input.NotificationsEnabled, settings, createdAt)
	queue, err := scanQueue(row)
	if err != nil {
		return models.Queue{}, mapError(err)
	}
	return queue, nil
}

func (s *Store) GetQueue(ctx context.Context, queueID string) (models.Queue, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+queueColumns+` FROM queues WHERE queue_id = $1`, queueID)
	queue, err := scanQueue(row)
	if err != nil {
		return models.Queue{}, lookupError(err, store.ErrQueueNotFound)
	}
	return queue, nil
}

func (s *Store) UpdateQueue(ctx context.Context, queueID string, update store.QueueUpdate) (models.Queue, error) {
	if update.Empty() {
		return s.GetQueue(ctx, queueID)
	}

	query := `UPDATE queues SET updated_date = now()`
	var args []interface{}
	argPos := 1
	set := func(column string, value interface{}) {
		query += fmt.Sprintf(", %s = $%d", column, argPos)
		args = append(args, value)
		argPos++
	}

	if update.CurrentNumber != nil {
		set("current_number", *update.CurrentNumber)
	}
	if update.LastIssuedNumber != nil {
		set("last_issued_number", *update.LastIssuedNumber)
	}
	if update.LastResetDate != nil {
		set("last_reset_date", *update.LastResetDate)
	}
	if update.Status != nil {
		set("status", *update.Status)
	}
	if update.AverageServiceTime != nil {
		set("average_service_time", *update.AverageServiceTime)
	}
	if update.ToleranceTime != nil {
		set("tolerance_time", *update.ToleranceTime)
	}
	if update.NotificationsEnabled != nil {
		set("notifications_enabled", *update.NotificationsEnabled)
	}
	if update.NotificationSettings != nil {
		raw, err := json.Marshal(update.NotificationSettings)
		if err != nil {
			return models.Queue{}, err
		}
		set("notification_settings", raw)
	}
	if update.WorkingHours != nil {
		raw, err := json.Marshal(update.WorkingHours)
		if err != nil {
			return models.Queue{}, err
		}
		set("working_hours", raw)
	}

	query += fmt.Sprintf(" WHERE queue_id = $%d RETURNING %s", argPos, queueColumns)
	args = append(args, queueID)

	queue, err := scanQueue(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return models.Queue{}, lookupError(err, store.ErrQueueNotFound)
	}
	return queue, nil
}

func (s *Store) ListQueues(ctx context.Context, filter store.QueueFilter) ([]models.Queue, error) {
	query := `SELECT ` + queueColumns + ` FROM queues WHERE TRUE`
	var args []interface{}
	if filter.BusinessID != "" {
		args = append(args, filter.BusinessID)
		query += fmt.Sprintf(" AND business_id = $%d", len(args))
	}
	if filter.ActiveOnly {
		query += " AND is_active"
	}
	query += " ORDER BY created_date ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var queues []models.Queue
	for rows.Next() {
		queue, err := scanQueue(rows)
		if err != nil {
			return nil, err
		}
		queues = append(queues, queue)
	}
	return queues, mapError(rows.Err())
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (ticket models.Ticket, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, mapError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	status := input.Status
	if status == "" {
		status = models.StatusWaiting
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO tickets (
			ticket_id, queue_id, business_id, ticket_number, status, user_email, user_phone,
			is_manual, manual_name, position, estimated_time, created_date
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING `+ticketColumns,
		uuid.NewString(), input.QueueID, input.BusinessID, input.TicketNumber, status,
		nullIfEmpty(input.UserEmail), nullIfEmpty(input.UserPhone), input.IsManual, nullIfEmpty(input.ManualName),
		input.Position, input.EstimatedTime, createdAt)
	if ticket, err = scanTicket(row); err != nil {
		return models.Ticket{}, mapError(err)
	}

	payload, err := store.CreatedEventPayload(ticket)
	if err != nil {
		return models.Ticket{}, err
	}
	if err = insertTicketEvent(ctx, tx, ticket.ID, store.TicketEventCreated, payload); err != nil {
		return models.Ticket{}, mapError(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, mapError(err)
	}
	return ticket, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		return models.Ticket{}, lookupError(err, store.ErrTicketNotFound)
	}
	return ticket, nil
}

func (s *Store) UpdateTicket(ctx context.Context, ticketID string, update store.TicketUpdate) (ticket models.Ticket, err error) {
	if update == (store.TicketUpdate{}) {
		return s.GetTicket(ctx, ticketID)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, mapError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var assignments []string
	var args []interface{}
	argPos := 1
	set := func(column string, value interface{}) {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}
	if update.Status != nil {
		set("status", *update.Status)
	}
	if update.CalledAt != nil {
		set("called_at", *update.CalledAt)
	}
	if update.AttendingStartedAt != nil {
		set("attending_started_at", *update.AttendingStartedAt)
	}
	if update.CompletedAt != nil {
		set("completed_at", *update.CompletedAt)
	}

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE ticket_id = $%d RETURNING %s`,
		strings.Join(assignments, ", "), argPos, ticketColumns)
	args = append(args, ticketID)

	if ticket, err = scanTicket(tx.QueryRow(ctx, query, args...)); err != nil {
		return models.Ticket{}, lookupError(err, store.ErrTicketNotFound)
	}

	payload, err := store.UpdatedEventPayload(ticketID, update)
	if err != nil {
		return models.Ticket{}, err
	}
	if err = insertTicketEvent(ctx, tx, ticketID, store.TicketEventUpdated, payload); err != nil {
		return models.Ticket{}, mapError(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, mapError(err)
	}
	return ticket, nil
}

func (s *Store) FilterTickets(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE TRUE`
	var args []interface{}
	if filter.BusinessID != "" {
		args = append(args, filter.BusinessID)
		query += fmt.Sprintf(" AND business_id = $%d", len(args))
	}
	if filter.QueueID != "" {
		args = append(args, filter.QueueID)
		query += fmt.Sprintf(" AND queue_id = $%d", len(args))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if filter.UserEmail != "" {
		args = append(args, filter.UserEmail)
		query += fmt.Sprintf(" AND user_email = $%d", len(args))
	}
	switch filter.Sort {
	case store.SortNewestFirst:
		query += " ORDER BY created_date DESC"
	default:
		query += " ORDER BY ticket_number ASC, created_date ASC"
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, mapError(rows.Err())
}

func (s *Store) DeleteTicket(ctx context.Context, ticketID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tickets WHERE ticket_id = $1`, ticketID)
	if err != nil {
		return lookupError(err, store.ErrTicketNotFound)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrTicketNotFound
	}
	return nil
}

func (s *Store) ListTicketEvents(ctx context.Context, ticketID string) ([]store.TicketEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticket_id, ticket_seq, type, payload, created_at, prev_hash, hash
		FROM ticket_events
		WHERE ticket_id = $1
		ORDER BY ticket_seq ASC
	`, ticketID)
	if err != nil {
		return nil, lookupError(err, store.ErrTicketNotFound)
	}
	defer rows.Close()

	var events []store.TicketEvent
	for rows.Next() {
		var event store.TicketEvent
		var payload []byte
		if err := rows.Scan(&event.TicketID, &event.TicketSeq, &event.Type, &payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		event.Payload = json.RawMessage(payload)
		events = append(events, event)
	}
	return events, mapError(rows.Err())
}

func insertTicketEvent(ctx context.Context, tx pgx.Tx, ticketID, eventType string, payload []byte) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ticketID); err != nil {
		return err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT ticket_seq, hash
		FROM ticket_events
		WHERE ticket_id = $1
		ORDER BY ticket_seq DESC
		LIMIT 1
	`, ticketID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := ""
	if prevHash.Valid {
		prev = prevHash.String
	}
	// timestamptz keeps microseconds; hash what will be read back.
	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	hash := store.ComputeTicketEventHash(prev, ticketID, eventType, payload, createdAt, nextSeq)

	_, err := tx.Exec(ctx, `
		INSERT INTO ticket_events (ticket_id, ticket_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ticketID, nextSeq, eventType, string(payload), createdAt, prev, hash)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueue(row rowScanner) (models.Queue, error) {
	var queue models.Queue
	var hours, settings []byte
	var lastReset sql.NullString
	if err := row.Scan(&queue.ID, &queue.BusinessID, &queue.Name, &queue.CurrentNumber, &queue.LastIssuedNumber,
		&hours, &queue.Status, &queue.AverageServiceTime, &queue.ToleranceTime, &lastReset, &queue.IsActive,
		&queue.NotificationsEnabled, &settings, &queue.CreatedDate, &queue.UpdatedDate); err != nil {
		return models.Queue{}, err
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &queue.WorkingHours); err != nil {
			return models.Queue{}, fmt.Errorf("decode working_hours: %w", err)
		}
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &queue.NotificationSettings); err != nil {
			return models.Queue{}, fmt.Errorf("decode notification_settings: %w", err)
		}
	}
	if lastReset.Valid {
		queue.LastResetDate = lastReset.String
	}
	return queue, nil
}

func scanTicket(row rowScanner) (models.Ticket, error) {
	var ticket models.Ticket
	var email, phone, manualName sql.NullString
	var calledAt, startedAt, completedAt sql.NullTime
	if err := row.Scan(&ticket.ID, &ticket.QueueID, &ticket.BusinessID, &ticket.TicketNumber, &ticket.Status,
		&email, &phone, &ticket.IsManual, &manualName, &ticket.Position, &ticket.EstimatedTime,
		&ticket.CreatedDate, &calledAt, &startedAt, &completedAt); err != nil {
		return models.Ticket{}, err
	}
	ticket.UserEmail = email.String
	ticket.UserPhone = phone.String
	ticket.ManualName = manualName.String
	ticket.CalledAt = nullTimePtr(calledAt)
	ticket.AttendingStartedAt = nullTimePtr(startedAt)
	ticket.CompletedAt = nullTimePtr(completedAt)
	return ticket, nil
}

// mapError folds row-level security rejections into store.ErrPermissionDenied.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInsufficientPrivilege {
		return fmt.Errorf("%w: %s", store.ErrPermissionDenied, pgErr.Message)
	}
	return err
}

// lookupError reports a missing row, or an id that is not a valid uuid, as notFound.
func lookupError(err, notFound error) error {
	var pgErr *pgconn.PgError
	if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepr) {
		return notFound
	}
	return mapError(err)
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}
