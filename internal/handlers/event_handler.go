package handlers

import (
	"net/http"

	"ticket-ledger/internal/services"
	"ticket-ledger/models"

	"github.com/pocketbase/pocketbase/core"
)

type createEventRequest struct {
	Title     string `json:"title"`
	Location  string `json:"location"`
	StartTime int64  `json:"start_time"`
	Price     uint64 `json:"price"`
	Capacity  uint64 `json:"capacity"`
}

type organizerEventsResponse struct {
	Organizer string   `json:"organizer"`
	Count     uint64   `json:"count"`
	EventIDs  []uint64 `json:"event_ids"`
}

// CreateEvent registers an event owned by the calling principal.
func (h *LedgerHandler) CreateEvent(e *core.RequestEvent) error {
	organizer, err := principal(e)
	if err != nil {
		return err
	}

	var req createEventRequest
	if err := e.BindBody(&req); err != nil {
		return badRequest(e, err)
	}

	ctx := e.Request.Context()
	id, err := h.ledger.CreateEvent(ctx, services.CreateEventRequest{
		Organizer:  organizer,
		Title:      req.Title,
		Location:   req.Location,
		StartTime:  req.StartTime,
		Price:      req.Price,
		Capacity:   req.Capacity,
		DedupToken: dedupToken(e),
	})
	if err != nil {
		return respondError(e, err)
	}

	ev, err := h.ledger.GetEvent(ctx, id)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusCreated, eventView(ev))
}

func (h *LedgerHandler) GetEvent(e *core.RequestEvent) error {
	id, err := pathEventID(e)
	if err != nil {
		return err
	}

	ev, err := h.ledger.GetEvent(e.Request.Context(), id)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, eventView(ev))
}

// CancelEvent lets the organizer withdraw an event from sale and entry.
func (h *LedgerHandler) CancelEvent(e *core.RequestEvent) error {
	organizer, err := principal(e)
	if err != nil {
		return err
	}
	id, err := pathEventID(e)
	if err != nil {
		return err
	}

	ev, err := h.ledger.CancelEvent(e.Request.Context(), organizer, id)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, eventView(ev))
}

func (h *LedgerHandler) GetOrganizerEvents(e *core.RequestEvent) error {
	rec, err := h.ledger.GetOrganizer(e.Request.Context(), e.Request.PathValue("principal"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, organizerEventsResponse{
		Organizer: rec.Organizer,
		Count:     rec.Count,
		EventIDs:  rec.IDs(),
	})
}

type eventResponse struct {
	models.Event
	Remaining uint64 `json:"remaining"`
}

func eventView(ev models.Event) eventResponse {
	return eventResponse{Event: ev, Remaining: ev.Remaining()}
}
