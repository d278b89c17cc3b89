package handlers

import (
	"ticket-ledger/logger"

	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase/core"
)

// Correlation tags the request context with the caller's correlation id, or
// a fresh one, and echoes it back in the response.
func Correlation(e *core.RequestEvent) error {
	id := e.Request.Header.Get(CorrelationHeader)
	if id == "" || len(id) > 128 {
		id = uuid.NewString()
	}
	e.Response.Header().Set(CorrelationHeader, id)
	e.Request = e.Request.WithContext(logger.WithCorrelationID(e.Request.Context(), id))
	return e.Next()
}
