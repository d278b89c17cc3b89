package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"ticket-ledger/internal/status"
	"ticket-ledger/internal/store"
	"ticket-ledger/models"
)

type CheckInRequest struct {
	TicketID        string
	ExpectedEventID uint64
	DedupToken      string
}

// CheckIn moves a ticket from unused to used at the gate of its event.
//
// Only the ticket record is held for the transition. The event is read
// beforehand: its start time never changes, and tickets of one event must
// not queue behind each other.
func (l *Ledger) CheckIn(ctx context.Context, req CheckInRequest) (t models.Ticket, ev models.Event, err error) {
	defer func() { l.finish(ctx, OpCheckIn, err) }()

	if err := validTicketID(req.TicketID); err != nil {
		return models.Ticket{}, models.Event{}, err
	}
	if err := validateToken(req.DedupToken); err != nil {
		return models.Ticket{}, models.Event{}, err
	}

	eventFound, err := store.GetRecord(ctx, l.store, eventKey(req.ExpectedEventID), &ev)
	if err != nil {
		return models.Ticket{}, models.Event{}, err
	}

	now := l.clock.Now()
	tKey := ticketKey(req.TicketID)
	dk := dedupKey(OpCheckIn, req.DedupToken)
	fp := fingerprint(OpCheckIn, req.TicketID, strconv.FormatUint(req.ExpectedEventID, 10))

	replayed := false
	err = l.apply(ctx, OpCheckIn, []string{tKey, dk}, func(current map[string][]byte) (map[string][]byte, error) {
		t, replayed = models.Ticket{}, false

		_, hit, err := replay(current, dk, fp)
		if err != nil {
			return nil, err
		}
		if hit {
			replayed = true
			return nil, nil
		}

		found, err := decodeRecord(current, tKey, &t)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: ticket %s", status.ErrNotFound, req.TicketID)
		}
		if t.EventID != req.ExpectedEventID {
			return nil, fmt.Errorf("%w: ticket %s is for event %d, not %d", status.ErrEventMismatch, t.ID, t.EventID, req.ExpectedEventID)
		}

		next, err := t.State.CheckIn()
		if errors.Is(err, models.ErrTicketUsed) {
			return nil, fmt.Errorf("%w: ticket %s checked in at %d", status.ErrAlreadyUsed, t.ID, t.CheckedInAt)
		}
		if err != nil {
			return nil, err
		}

		switch {
		case !eventFound:
			return nil, fmt.Errorf("%w: event %d", status.ErrNotFound, req.ExpectedEventID)
		case ev.Cancelled():
			return nil, fmt.Errorf("%w: event %d", status.ErrEventCancelled, ev.ID)
		case now.Sub(ev.Start()) > l.grace:
			return nil, fmt.Errorf("%w: event %d started at %s", status.ErrEventExpired, ev.ID, ev.Start().Format("2006-01-02 15:04"))
		}

		t.State = next
		t.CheckedInAt = now.Unix()

		writes := make(map[string][]byte, 2)
		if err := putRecord(writes, tKey, t); err != nil {
			return nil, err
		}
		if err := putDedup(writes, dk, OpCheckIn, fp, t.ID, now); err != nil {
			return nil, err
		}
		return writes, nil
	})
	if err != nil {
		return models.Ticket{}, models.Event{}, err
	}

	if replayed {
		t, err = l.GetTicket(ctx, req.TicketID)
		if err != nil {
			return models.Ticket{}, models.Event{}, err
		}
		return t, ev, nil
	}

	l.notifier.TicketCheckedIn(ctx, t, ev)
	return t, ev, nil
}
