package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"ticket-ledger/internal/status"
	"ticket-ledger/internal/store"
	"ticket-ledger/models"
)

type CreateEventRequest struct {
	Organizer string
	Title     string
	Location  string
	StartTime int64 // unix seconds
	Price     uint64
	Capacity  uint64

	// DedupToken makes retries of the same request safe. Optional.
	DedupToken string
}

func (l *Ledger) validateCreate(req CreateEventRequest) error {
	if err := validPrincipal("organizer", req.Organizer); err != nil {
		return err
	}
	if err := validText("title", req.Title); err != nil {
		return err
	}
	if err := validText("location", req.Location); err != nil {
		return err
	}
	switch {
	case strings.TrimSpace(req.Title) == "":
		return fmt.Errorf("%w: title is required", status.ErrInvalidInput)
	case strings.TrimSpace(req.Location) == "":
		return fmt.Errorf("%w: location is required", status.ErrInvalidInput)
	case req.Capacity == 0:
		return fmt.Errorf("%w: capacity must be positive", status.ErrInvalidInput)
	case req.StartTime < l.clock.Now().Unix():
		return fmt.Errorf("%w: start time is in the past", status.ErrInvalidInput)
	case req.StartTime > l.latest:
		return fmt.Errorf("%w: start time is after year 9999", status.ErrInvalidInput)
	}
	return validateToken(req.DedupToken)
}

// CreateEvent registers a new event and appends it to the organizer's index
// in the same commit.
func (l *Ledger) CreateEvent(ctx context.Context, req CreateEventRequest) (id uint64, err error) {
	defer func() { l.finish(ctx, OpCreateEvent, err) }()

	if err := l.validateCreate(req); err != nil {
		return 0, err
	}

	now := l.clock.Now()
	orgKey := organizerKey(req.Organizer)
	dk := dedupKey(OpCreateEvent, req.DedupToken)
	fp := fingerprint(OpCreateEvent, req.Organizer, req.Title, req.Location,
		strconv.FormatInt(req.StartTime, 10),
		strconv.FormatUint(req.Price, 10),
		strconv.FormatUint(req.Capacity, 10))

	err = l.apply(ctx, OpCreateEvent, []string{eventSeqKey, orgKey, dk}, func(current map[string][]byte) (map[string][]byte, error) {
		id = 0

		result, hit, err := replay(current, dk, fp)
		if err != nil {
			return nil, err
		}
		if hit {
			id, err = strconv.ParseUint(result, 10, 64)
			return nil, err
		}

		var seq sequence
		if _, err := decodeRecord(current, eventSeqKey, &seq); err != nil {
			return nil, err
		}
		var org models.OrganizerRecord
		if _, err := decodeRecord(current, orgKey, &org); err != nil {
			return nil, err
		}

		seq.Last++
		ev := models.Event{
			ID:        seq.Last,
			Organizer: req.Organizer,
			Title:     strings.TrimSpace(req.Title),
			Location:  strings.TrimSpace(req.Location),
			StartTime: req.StartTime,
			Price:     req.Price,
			Capacity:  req.Capacity,
			Status:    models.EventActive,
			CreatedAt: now.Unix(),
		}
		org.Organizer = req.Organizer
		org.Append(ev.ID)

		writes := make(map[string][]byte, 4)
		if err := putRecord(writes, eventSeqKey, seq); err != nil {
			return nil, err
		}
		if err := putRecord(writes, eventKey(ev.ID), ev); err != nil {
			return nil, err
		}
		if err := putRecord(writes, orgKey, org); err != nil {
			return nil, err
		}
		if err := putDedup(writes, dk, OpCreateEvent, fp, ev.IDString(), now); err != nil {
			return nil, err
		}

		id = ev.ID
		return writes, nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (l *Ledger) GetEvent(ctx context.Context, id uint64) (models.Event, error) {
	var ev models.Event
	found, err := store.GetRecord(ctx, l.store, eventKey(id), &ev)
	if err != nil {
		return models.Event{}, err
	}
	if !found {
		return models.Event{}, fmt.Errorf("%w: event %d", status.ErrNotFound, id)
	}
	return ev, nil
}

// GetOrganizer returns the organizer's index record. Every principal has
// one; an organizer without events gets an empty record.
func (l *Ledger) GetOrganizer(ctx context.Context, organizer string) (models.OrganizerRecord, error) {
	rec := models.OrganizerRecord{Organizer: organizer, EventIDs: []uint64{}}
	if organizer == "" {
		return rec, nil
	}
	if _, err := store.GetRecord(ctx, l.store, organizerKey(organizer), &rec); err != nil {
		return models.OrganizerRecord{}, err
	}
	rec.EventIDs = rec.IDs()
	return rec, nil
}

func (l *Ledger) GetOrganizerEventIDs(ctx context.Context, organizer string) ([]uint64, error) {
	rec, err := l.GetOrganizer(ctx, organizer)
	if err != nil {
		return nil, err
	}
	return rec.EventIDs, nil
}

func (l *Ledger) GetOrganizerEventCount(ctx context.Context, organizer string) (uint64, error) {
	rec, err := l.GetOrganizer(ctx, organizer)
	if err != nil {
		return 0, err
	}
	return rec.Count, nil
}

// CancelEvent flags an event as cancelled. Only its organizer may do so;
// cancelling twice is a no-op.
func (l *Ledger) CancelEvent(ctx context.Context, organizer string, id uint64) (ev models.Event, err error) {
	defer func() { l.finish(ctx, OpCancelEvent, err) }()

	if err := validPrincipal("organizer", organizer); err != nil {
		return models.Event{}, err
	}

	key := eventKey(id)
	err = l.apply(ctx, OpCancelEvent, []string{key}, func(current map[string][]byte) (map[string][]byte, error) {
		ev = models.Event{}
		found, err := decodeRecord(current, key, &ev)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: event %d", status.ErrNotFound, id)
		}
		if ev.Organizer != organizer {
			return nil, fmt.Errorf("%w: event %d belongs to another organizer", status.ErrForbidden, id)
		}
		if ev.Cancelled() {
			return nil, nil
		}

		ev.Status = models.EventCancelled
		writes := make(map[string][]byte, 1)
		if err := putRecord(writes, key, ev); err != nil {
			return nil, err
		}
		return writes, nil
	})
	if err != nil {
		return models.Event{}, err
	}
	return ev, nil
}
