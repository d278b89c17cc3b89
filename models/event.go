package models

import (
	"strconv"
	"time"
)

type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventCancelled EventStatus = "cancelled"
)

// Event is a ledger entry for something tickets can be sold for.
// StartTime, Price and Capacity never change after creation.
type Event struct {
	ID        uint64      `json:"id"`
	Organizer string      `json:"organizer"`
	Title     string      `json:"title"`
	Location  string      `json:"location"`
	StartTime int64       `json:"start_time"` // unix seconds
	Price     uint64      `json:"price"`      // smallest currency unit
	Capacity  uint64      `json:"capacity"`
	Sold      uint64      `json:"sold"`
	Status    EventStatus `json:"status"`
	CreatedAt int64       `json:"created_at"`
}

func (e Event) IDString() string {
	return strconv.FormatUint(e.ID, 10)
}

func (e Event) Start() time.Time {
	return time.Unix(e.StartTime, 0).UTC()
}

func (e Event) Remaining() uint64 {
	if e.Sold >= e.Capacity {
		return 0
	}
	return e.Capacity - e.Sold
}

func (e Event) SoldOut() bool {
	return e.Sold >= e.Capacity
}

func (e Event) Cancelled() bool {
	return e.Status == EventCancelled
}

// OrganizerRecord indexes the events an organizer created, in creation order.
// The zero value is the record of an organizer with no events.
type OrganizerRecord struct {
	Organizer string   `json:"organizer"`
	EventIDs  []uint64 `json:"event_ids"`
	Count     uint64   `json:"count"`
}

// Append records a newly created event and keeps Count in step with EventIDs.
func (r *OrganizerRecord) Append(id uint64) {
	r.EventIDs = append(r.EventIDs, id)
	r.Count = uint64(len(r.EventIDs))
}

// IDs returns the event ids, never nil.
func (r OrganizerRecord) IDs() []uint64 {
	if r.EventIDs == nil {
		return []uint64{}
	}
	return r.EventIDs
}
