package services

import (
	"context"
	"fmt"
	"strconv"

	"ticket-ledger/internal/status"
	"ticket-ledger/internal/store"
	"ticket-ledger/models"
)

type IssueTicketRequest struct {
	EventID    uint64
	Buyer      string
	DedupToken string
}

// IssueTicket sells one ticket of an event to buyer. The capacity check, the
// sold increment, the new ticket and the buyer's index entry commit together.
func (l *Ledger) IssueTicket(ctx context.Context, req IssueTicketRequest) (t models.Ticket, err error) {
	defer func() { l.finish(ctx, OpIssueTicket, err) }()

	if err := validPrincipal("buyer", req.Buyer); err != nil {
		return models.Ticket{}, err
	}
	if err := validateToken(req.DedupToken); err != nil {
		return models.Ticket{}, err
	}

	now := l.clock.Now()
	evKey := eventKey(req.EventID)
	ownKey := ownerKey(req.Buyer)
	dk := dedupKey(OpIssueTicket, req.DedupToken)
	fp := fingerprint(OpIssueTicket, strconv.FormatUint(req.EventID, 10), req.Buyer)

	var (
		ev       models.Event
		replayed string
	)
	err = l.apply(ctx, OpIssueTicket, []string{evKey, ownKey, dk}, func(current map[string][]byte) (map[string][]byte, error) {
		ev, t, replayed = models.Event{}, models.Ticket{}, ""

		result, hit, err := replay(current, dk, fp)
		if err != nil {
			return nil, err
		}
		if hit {
			replayed = result
			return nil, nil
		}

		found, err := decodeRecord(current, evKey, &ev)
		if err != nil {
			return nil, err
		}
		switch {
		case !found:
			return nil, fmt.Errorf("%w: event %d", status.ErrNotFound, req.EventID)
		case ev.Cancelled():
			return nil, fmt.Errorf("%w: event %d", status.ErrEventCancelled, ev.ID)
		case ev.SoldOut():
			return nil, fmt.Errorf("%w: event %d has %d of %d tickets sold", status.ErrSoldOut, ev.ID, ev.Sold, ev.Capacity)
		case ev.StartTime < now.Unix():
			return nil, fmt.Errorf("%w: event %d started at %s", status.ErrEventEnded, ev.ID, ev.Start().Format("2006-01-02 15:04"))
		}

		var owner models.OwnerRecord
		if _, err := decodeRecord(current, ownKey, &owner); err != nil {
			return nil, err
		}

		ev.Sold++
		t = models.Ticket{
			ID:       models.TicketID(ev.ID, ev.Sold),
			EventID:  ev.ID,
			Owner:    req.Buyer,
			State:    models.TicketUnused,
			IssuedAt: now.Unix(),
		}
		owner.Owner = req.Buyer
		owner.Append(t.ID)

		writes := make(map[string][]byte, 4)
		if err := putRecord(writes, evKey, ev); err != nil {
			return nil, err
		}
		if err := putRecord(writes, ticketKey(t.ID), t); err != nil {
			return nil, err
		}
		if err := putRecord(writes, ownKey, owner); err != nil {
			return nil, err
		}
		if err := putDedup(writes, dk, OpIssueTicket, fp, t.ID, now); err != nil {
			return nil, err
		}
		return writes, nil
	})
	if err != nil {
		return models.Ticket{}, err
	}

	if replayed != "" {
		return l.GetTicket(ctx, replayed)
	}

	l.recorder.SetTicketsSold(ev.ID, ev.Sold)
	l.notifier.TicketIssued(ctx, t, ev)
	return t, nil
}

func validTicketID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: ticket id is required", status.ErrInvalidInput)
	}
	if _, _, err := models.ParseTicketID(id); err != nil {
		return fmt.Errorf("%w: %v", status.ErrInvalidInput, err)
	}
	return nil
}

func (l *Ledger) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	if err := validTicketID(id); err != nil {
		return models.Ticket{}, err
	}
	var t models.Ticket
	found, err := store.GetRecord(ctx, l.store, ticketKey(id), &t)
	if err != nil {
		return models.Ticket{}, err
	}
	if !found {
		return models.Ticket{}, fmt.Errorf("%w: ticket %s", status.ErrNotFound, id)
	}
	return t, nil
}

// GetOwner returns the owner's ticket index; empty for unknown principals.
func (l *Ledger) GetOwner(ctx context.Context, owner string) (models.OwnerRecord, error) {
	rec := models.OwnerRecord{Owner: owner, TicketIDs: []string{}}
	if owner == "" {
		return rec, nil
	}
	if _, err := store.GetRecord(ctx, l.store, ownerKey(owner), &rec); err != nil {
		return models.OwnerRecord{}, err
	}
	rec.TicketIDs = rec.IDs()
	return rec, nil
}

func (l *Ledger) GetOwnerTickets(ctx context.Context, owner string) ([]string, error) {
	rec, err := l.GetOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	return rec.TicketIDs, nil
}
