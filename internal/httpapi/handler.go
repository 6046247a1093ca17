package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/queue"
	"github.com/Afonso75/QZeroN-sub002/internal/store"

	"github.com/rs/zerolog"
)

// Service is the slice of the queue engine exposed over HTTP.
type Service interface {
	CreateQueue(ctx context.Context, input queue.CreateQueueInput) (models.Queue, error)
	GetQueue(ctx context.Context, queueID string) (models.Queue, error)
	Status(ctx context.Context, queueID string) (queue.QueueStatus, error)
	SetStatus(ctx context.Context, queueID, status string) (models.Queue, error)
	UpdateSettings(ctx context.Context, queueID string, input queue.SettingsInput) (models.Queue, error)
	CallNext(ctx context.Context, queueID string) (queue.CallResult, error)
	IssueTicket(ctx context.Context, queueID string, holder models.Holder) (queue.IssueResult, error)
	ListTickets(ctx context.Context, queueID string, statuses []string) ([]models.Ticket, error)
	ClearHistory(ctx context.Context, queueID string) (int, error)
	GetTicket(ctx context.Context, ticketID string) (models.Ticket, error)
	TicketHistory(ctx context.Context, ticketID string) (queue.History, error)
	DeleteTicket(ctx context.Context, ticketID string) error
	StartService(ctx context.Context, ticketID string) (models.Ticket, error)
	CompleteTicket(ctx context.Context, ticketID string) (models.Ticket, error)
	CancelTicket(ctx context.Context, ticketID string) (models.Ticket, error)
}

type Handler struct {
	svc    Service
	logger zerolog.Logger
}

type issueTicketRequest struct {
	Manual bool   `json:"manual"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Case    string `json:"case,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

var queueActions = map[string]string{
	"open":  models.QueueOpen,
	"pause": models.QueuePaused,
	"close": models.QueueClosed,
}

func NewHandler(svc Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)

	mux.HandleFunc("POST /api/queues", h.handleCreateQueue)
	mux.HandleFunc("GET /api/queues/{queueID}", h.handleGetQueue)
	mux.HandleFunc("GET /api/queues/{queueID}/status", h.handleQueueStatus)
	mux.HandleFunc("PATCH /api/queues/{queueID}/settings", h.handleUpdateSettings)
	mux.HandleFunc("POST /api/queues/{queueID}/actions/call-next", h.handleCallNext)
	mux.HandleFunc("POST /api/queues/{queueID}/actions/{action}", h.handleQueueAction)
	mux.HandleFunc("POST /api/queues/{queueID}/tickets", h.handleIssueTicket)
	mux.HandleFunc("GET /api/queues/{queueID}/tickets", h.handleListTickets)
	mux.HandleFunc("DELETE /api/queues/{queueID}/tickets/history", h.handleClearHistory)

	mux.HandleFunc("GET /api/tickets/{ticketID}", h.handleGetTicket)
	mux.HandleFunc("GET /api/tickets/{ticketID}/events", h.handleTicketEvents)
	mux.HandleFunc("DELETE /api/tickets/{ticketID}", h.handleDeleteTicket)
	mux.HandleFunc("POST /api/tickets/{ticketID}/actions/{action}", h.handleTicketAction)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCreateQueue(w http.ResponseWriter, r *http.Request) {
	var input queue.CreateQueueInput
	if !decodeRequest(w, r, &input) {
		return
	}
	if input.BusinessID == "" {
		input.BusinessID = strings.TrimSpace(r.Header.Get(businessHeader))
	}
	created, err := h.svc.CreateQueue(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.GetQueue(r.Context(), r.PathValue("queueID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context(), r.PathValue("queueID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var input queue.SettingsInput
	if !decodeRequest(w, r, &input) {
		return
	}
	q, err := h.svc.UpdateSettings(r.Context(), r.PathValue("queueID"), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleQueueAction(w http.ResponseWriter, r *http.Request) {
	status, ok := queueActions[r.PathValue("action")]
	if !ok {
		writeError(w, requestID(r), http.StatusNotFound, "unknown_action", "unknown queue action")
		return
	}
	q, err := h.svc.SetStatus(r.Context(), r.PathValue("queueID"), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.CallNext(r.Context(), r.PathValue("queueID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleIssueTicket(w http.ResponseWriter, r *http.Request) {
	var req issueTicketRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	var holder models.Holder
	if req.Manual {
		holder = models.Manual{Name: req.Name, Email: req.Email, Phone: req.Phone}
	} else {
		holder = models.SelfService{Email: req.Email, Phone: req.Phone}
	}
	result, err := h.svc.IssueTicket(r.Context(), r.PathValue("queueID"), holder)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.svc.ListTickets(r.Context(), r.PathValue("queueID"), statusFilter(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tickets": tickets})
}

func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.ClearHistory(r.Context(), r.PathValue("queueID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.svc.GetTicket(r.Context(), r.PathValue("ticketID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketEvents(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.TicketHistory(r.Context(), r.PathValue("ticketID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTicket(r.Context(), r.PathValue("ticketID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTicketAction(w http.ResponseWriter, r *http.Request) {
	var action func(context.Context, string) (models.Ticket, error)
	switch r.PathValue("action") {
	case "start":
		action = h.svc.StartService
	case "complete":
		action = h.svc.CompleteTicket
	case "cancel":
		action = h.svc.CancelTicket
	default:
		writeError(w, requestID(r), http.StatusNotFound, "unknown_action", "unknown ticket action")
		return
	}
	ticket, err := action(r.Context(), r.PathValue("ticketID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// statusFilter accepts ?status=a&status=b as well as ?status=a,b.
func statusFilter(r *http.Request) []string {
	var statuses []string
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, part)
			}
		}
	}
	return statuses
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("request_id", requestID(r)).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{RequestID: requestID(r), Error: body})
}

func mapError(err error) (int, responseError) {
	var validation *queue.ValidationError
	var notOperating *queue.NotOperatingError
	var persistence *queue.PersistenceError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, responseError{Code: "invalid_request", Message: validation.Error()}
	case errors.As(err, &notOperating):
		return http.StatusConflict, responseError{
			Code:    "queue_not_operating",
			Message: "queue is not accepting tickets",
			Case:    string(notOperating.Case),
			Reason:  notOperating.Reason,
		}
	case errors.Is(err, queue.ErrActiveTicketExists):
		return http.StatusConflict, responseError{Code: "active_ticket_exists", Message: err.Error()}
	case errors.Is(err, store.ErrQueueNotFound):
		return http.StatusNotFound, responseError{Code: "queue_not_found", Message: "queue not found"}
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, responseError{Code: "ticket_not_found", Message: "ticket not found"}
	case errors.Is(err, store.ErrPermissionDenied):
		return http.StatusForbidden, responseError{Code: "access_denied", Message: "access denied"}
	case errors.As(err, &persistence):
		return http.StatusServiceUnavailable, responseError{Code: "persistence_error", Message: "storage unavailable, try again"}
	default:
		return http.StatusInternalServerError, responseError{Code: "internal_error", Message: "internal server error"}
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
