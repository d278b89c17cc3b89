package handlers

import (
	"net/http"

	"ticket-ledger/internal/payload"
	"ticket-ledger/internal/services"
	"ticket-ledger/models"

	"github.com/pocketbase/pocketbase/core"
)

type ticketResponse struct {
	Ticket  models.Ticket   `json:"ticket"`
	Payload payload.Payload `json:"payload"`
	// Code is the text block to render as a QR code.
	Code string `json:"code"`
}

type ownerTicketsResponse struct {
	Owner     string   `json:"owner"`
	Count     uint64   `json:"count"`
	TicketIDs []string `json:"ticket_ids"`
}

// IssueTicket sells one ticket of the event to the calling principal.
func (h *LedgerHandler) IssueTicket(e *core.RequestEvent) error {
	buyer, err := principal(e)
	if err != nil {
		return err
	}
	eventID, err := pathEventID(e)
	if err != nil {
		return err
	}

	ctx := e.Request.Context()
	t, err := h.ledger.IssueTicket(ctx, services.IssueTicketRequest{
		EventID:    eventID,
		Buyer:      buyer,
		DedupToken: dedupToken(e),
	})
	if err != nil {
		return respondError(e, err)
	}

	return h.writeTicket(e, http.StatusCreated, t)
}

func (h *LedgerHandler) GetTicket(e *core.RequestEvent) error {
	t, err := h.ledger.GetTicket(e.Request.Context(), e.Request.PathValue("ticketId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, t)
}

// GetTicketPayload renders the scannable credential of a ticket.
func (h *LedgerHandler) GetTicketPayload(e *core.RequestEvent) error {
	t, err := h.ledger.GetTicket(e.Request.Context(), e.Request.PathValue("ticketId"))
	if err != nil {
		return respondError(e, err)
	}
	return h.writeTicket(e, http.StatusOK, t)
}

func (h *LedgerHandler) writeTicket(e *core.RequestEvent, code int, t models.Ticket) error {
	ev, err := h.ledger.GetEvent(e.Request.Context(), t.EventID)
	if err != nil {
		return respondError(e, err)
	}

	p := h.codec.Encode(t, ev)
	raw, err := h.codec.Marshal(p)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(code, ticketResponse{Ticket: t, Payload: p, Code: string(raw)})
}

func (h *LedgerHandler) GetOwnerTickets(e *core.RequestEvent) error {
	rec, err := h.ledger.GetOwner(e.Request.Context(), e.Request.PathValue("principal"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, ownerTicketsResponse{
		Owner:     rec.Owner,
		Count:     rec.Count,
		TicketIDs: rec.IDs(),
	})
}
