package handlers

import (
	"net/http"
	"strconv"
	"unicode/utf8"

	"ticket-ledger/internal/status"
	"ticket-ledger/logger"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

const (
	PrincipalHeader   = "X-Principal"
	IdempotencyHeader = "Idempotency-Key"
	CorrelationHeader = "X-Correlation-Id"
)

// ErrorBody is the JSON shape of every ledger rejection.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// respondError writes err with the status and code of its taxonomy case.
func respondError(e *core.RequestEvent, err error) error {
	code := status.Code(err)
	httpStatus := status.HTTPStatus(err)
	msg := err.Error()

	switch {
	case code == "internal_error":
		logger.Errorf(e.Request.Context(), "%s %s: %v", e.Request.Method, e.Request.URL.Path, err)
		msg = "internal error"
	case status.Retryable(err):
		logger.Errorf(e.Request.Context(), "%s %s: %v", e.Request.Method, e.Request.URL.Path, err)
	case code == "decode_error":
		msg = "invalid code"
	}

	return e.JSON(httpStatus, ErrorBody{
		Code:      code,
		Message:   msg,
		Retryable: status.Retryable(err),
	})
}

// principal returns the caller identity set by the auth layer in front of
// the ledger, or the pocketbase auth record.
func principal(e *core.RequestEvent) (string, error) {
	if p := e.Request.Header.Get(PrincipalHeader); p != "" {
		if !utf8.ValidString(p) {
			return "", apis.NewBadRequestError("Invalid "+PrincipalHeader+" header.", nil)
		}
		return p, nil
	}
	if e.Auth != nil && e.Auth.Id != "" {
		return e.Auth.Id, nil
	}
	return "", apis.NewUnauthorizedError("Unauthorized", nil)
}

func pathEventID(e *core.RequestEvent) (uint64, error) {
	raw := e.Request.PathValue("eventId")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apis.NewBadRequestError("Invalid event id", nil)
	}
	return id, nil
}

func dedupToken(e *core.RequestEvent) string {
	return e.Request.Header.Get(IdempotencyHeader)
}

func badRequest(e *core.RequestEvent, err error) error {
	return e.JSON(http.StatusBadRequest, ErrorBody{Code: "invalid_input", Message: err.Error()})
}
