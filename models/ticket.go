package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TicketState is the check-in state of a ticket. The only transition is
// Unused -> Used; see CheckIn.
type TicketState uint8

const (
	TicketUnused TicketState = iota
	TicketUsed
)

func (s TicketState) String() string {
	switch s {
	case TicketUnused:
		return "unused"
	case TicketUsed:
		return "used"
	}
	return fmt.Sprintf("TicketState(%d)", uint8(s))
}

func (s TicketState) MarshalText() ([]byte, error) {
	switch s {
	case TicketUnused, TicketUsed:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("ticket state: unknown value %d", uint8(s))
}

func (s *TicketState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unused":
		*s = TicketUnused
	case "used":
		*s = TicketUsed
	default:
		return fmt.Errorf("ticket state: unknown value %q", text)
	}
	return nil
}

// ErrTicketUsed is returned by CheckIn for a ticket that is already used.
var ErrTicketUsed = errors.New("ticket state: already used")

// CheckIn is the state machine's transition function.
func (s TicketState) CheckIn() (TicketState, error) {
	switch s {
	case TicketUnused:
		return TicketUsed, nil
	case TicketUsed:
		return TicketUsed, ErrTicketUsed
	}
	return s, fmt.Errorf("ticket state: cannot check in from %s", s)
}

// Ticket is the permanent proof of entitlement to one event.
type Ticket struct {
	ID          string      `json:"id"`
	EventID     uint64      `json:"event_id"`
	Owner       string      `json:"owner"`
	State       TicketState `json:"state"`
	IssuedAt    int64       `json:"issued_at"`
	CheckedInAt int64       `json:"checked_in_at,omitempty"`
}

func (t Ticket) Used() bool {
	return t.State == TicketUsed
}

// TicketID builds the id of the seq-th ticket of an event.
func TicketID(eventID, seq uint64) string {
	return fmt.Sprintf("%d-%d", eventID, seq)
}

// ParseTicketID splits a ticket id into event id and sequence.
func ParseTicketID(id string) (eventID, seq uint64, err error) {
	ev, sq, ok := strings.Cut(id, "-")
	if !ok {
		return 0, 0, fmt.Errorf("ticket id %q: missing separator", id)
	}
	if eventID, err = strconv.ParseUint(ev, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("ticket id %q: %w", id, err)
	}
	if seq, err = strconv.ParseUint(sq, 10, 64); err != nil || seq == 0 {
		return 0, 0, fmt.Errorf("ticket id %q: bad sequence", id)
	}
	return eventID, seq, nil
}

// OwnerRecord indexes the tickets a principal holds, in issuance order.
type OwnerRecord struct {
	Owner     string   `json:"owner"`
	TicketIDs []string `json:"ticket_ids"`
	Count     uint64   `json:"count"`
}

func (r *OwnerRecord) Append(id string) {
	r.TicketIDs = append(r.TicketIDs, id)
	r.Count = uint64(len(r.TicketIDs))
}

func (r OwnerRecord) IDs() []string {
	if r.TicketIDs == nil {
		return []string{}
	}
	return r.TicketIDs
}
