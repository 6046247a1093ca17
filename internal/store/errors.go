package store

import "errors"

var (
	ErrQueueNotFound    = errors.New("queue not found")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrPermissionDenied = errors.New("permission denied")
)
