package handlers

import (
	"ticket-ledger/internal/clock"
	"ticket-ledger/internal/payload"
	"ticket-ledger/internal/services"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
)

type LedgerHandler struct {
	ledger *services.Ledger
	codec  *payload.Codec
	clock  clock.Clock
}

func NewLedgerHandler(ledger *services.Ledger, codec *payload.Codec, clk clock.Clock) *LedgerHandler {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &LedgerHandler{ledger: ledger, codec: codec, clock: clk}
}

// Register mounts the ledger API under /api/v1. scanLimit guards the
// check-in endpoint and may be nil; guards run on every route.
func (h *LedgerHandler) Register(r *router.Router[*core.RequestEvent], scanLimit func(*core.RequestEvent) error, guards ...func(*core.RequestEvent) error) {
	v1 := r.Group("/api/v1")
	v1.BindFunc(Correlation)
	for _, g := range guards {
		v1.BindFunc(g)
	}

	v1.POST("/events", h.CreateEvent)
	v1.GET("/events/{eventId}", h.GetEvent)
	v1.POST("/events/{eventId}/cancel", h.CancelEvent)
	v1.GET("/organizers/{principal}/events", h.GetOrganizerEvents)

	v1.POST("/events/{eventId}/tickets", h.IssueTicket)
	v1.GET("/tickets/{ticketId}", h.GetTicket)
	v1.GET("/tickets/{ticketId}/payload", h.GetTicketPayload)
	v1.GET("/owners/{principal}/tickets", h.GetOwnerTickets)

	checkIn := v1.POST("/checkin", h.CheckIn)
	if scanLimit != nil {
		checkIn.BindFunc(scanLimit)
	}
}
