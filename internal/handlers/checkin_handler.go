package handlers

import (
	"errors"
	"net/http"

	"ticket-ledger/internal/services"
	"ticket-ledger/internal/status"
	"ticket-ledger/logger"
	"ticket-ledger/models"

	"github.com/pocketbase/pocketbase/core"
)

type checkInRequest struct {
	EventID uint64 `json:"event_id"`
	Payload string `json:"payload"`
}

type checkInResponse struct {
	Ticket models.Ticket `json:"ticket"`
	Event  models.Event  `json:"event"`
}

// CheckIn admits the holder of a scanned code at the gate of an event.
// The decoded payload is pre-filtered offline; the ledger then makes the
// authoritative transition.
func (h *LedgerHandler) CheckIn(e *core.RequestEvent) error {
	if _, err := principal(e); err != nil {
		return err
	}

	var req checkInRequest
	if err := e.BindBody(&req); err != nil {
		return badRequest(e, err)
	}

	ctx := e.Request.Context()
	p, err := h.codec.Decode([]byte(req.Payload))
	if err != nil {
		return respondError(e, err)
	}

	// The payload's used flag is a stale snapshot; the ledger decides.
	err = h.codec.ValidateForCheckIn(p, req.EventID, h.clock.Now())
	if errors.Is(err, status.ErrAlreadyUsed) {
		logger.Debugf(ctx, "checkin: payload of %s already marked used", p.TicketID)
	} else if err != nil {
		return respondError(e, err)
	}

	t, ev, err := h.ledger.CheckIn(ctx, services.CheckInRequest{
		TicketID:        p.TicketID,
		ExpectedEventID: req.EventID,
		DedupToken:      dedupToken(e),
	})
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, checkInResponse{Ticket: t, Event: ev})
}
