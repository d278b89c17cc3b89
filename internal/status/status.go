package status

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidInput        = errors.New("ledger: invalid input")
	ErrNotFound            = errors.New("ledger: not found")
	ErrSoldOut             = errors.New("ledger: event sold out")
	ErrAlreadyUsed         = errors.New("ledger: ticket already used")
	ErrEventMismatch       = errors.New("ledger: ticket belongs to another event")
	ErrEventExpired        = errors.New("ledger: event check-in window has passed")
	ErrEventEnded          = errors.New("ledger: event already started")
	ErrEventCancelled      = errors.New("ledger: event cancelled")
	ErrForbidden           = errors.New("ledger: principal not allowed")
	ErrIdempotencyConflict = errors.New("ledger: idempotency key reused with different request")
	ErrDecode              = errors.New("payload: invalid code")
	ErrStorageUnavailable  = errors.New("storage: unavailable")
)

type kind struct {
	err    error
	code   string
	status int
}

// Ordered so that a wrapped business error wins over a storage wrapper.
var kinds = []kind{
	{ErrInvalidInput, "invalid_input", http.StatusBadRequest},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrSoldOut, "sold_out", http.StatusConflict},
	{ErrAlreadyUsed, "already_used", http.StatusConflict},
	{ErrEventMismatch, "event_mismatch", http.StatusConflict},
	{ErrEventExpired, "event_expired", http.StatusGone},
	{ErrEventEnded, "event_ended", http.StatusGone},
	{ErrEventCancelled, "event_cancelled", http.StatusGone},
	{ErrForbidden, "forbidden", http.StatusForbidden},
	{ErrIdempotencyConflict, "idempotency_conflict", http.StatusConflict},
	{ErrDecode, "decode_error", http.StatusBadRequest},
	{ErrStorageUnavailable, "storage_unavailable", http.StatusServiceUnavailable},
}

// Code returns the stable snake_case code of err's taxonomy case, or
// "internal_error" when err is not one of the ledger errors.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal_error"
}

// HTTPStatus maps err to the status code reported to HTTP callers.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the caller may retry the same request.
// Only storage failures qualify; everything else is a terminal rejection.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
