// Package payload renders a ticket into the portable credential carried in
// a QR code and parses it back on the scanner side. Nothing here touches
// the ledger.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"

	"github.com/shopspring/decimal"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Payload is a snapshot of a ticket and its event. Field order is the wire
// order.
type Payload struct {
	TicketID     string `json:"ticketId"`
	EventID      string `json:"eventId"`
	EventTitle   string `json:"eventTitle"`
	Location     string `json:"location"`
	EventDate    string `json:"eventDate"`
	EventTime    string `json:"eventTime"`
	Price        string `json:"price"`
	OwnerAddress string `json:"ownerAddress"`
	Used         bool   `json:"used"`
}

// Codec holds the rendering settings shared by issuers and scanners.
type Codec struct {
	Currency string
	Decimals int32
	Location *time.Location
}

func NewCodec(currency string, decimals int32, loc *time.Location) *Codec {
	if loc == nil {
		loc = time.UTC
	}
	return &Codec{Currency: currency, Decimals: decimals, Location: loc}
}

// Encode projects a ticket and its event into a payload.
func (c *Codec) Encode(t models.Ticket, e models.Event) Payload {
	start := e.Start().In(c.Location)
	return Payload{
		TicketID:     t.ID,
		EventID:      strconv.FormatUint(t.EventID, 10),
		EventTitle:   e.Title,
		Location:     e.Location,
		EventDate:    start.Format(DateLayout),
		EventTime:    start.Format(TimeLayout),
		Price:        c.FormatPrice(e.Price),
		OwnerAddress: t.Owner,
		Used:         t.Used(),
	}
}

// Marshal produces the text block placed in the QR code.
func (c *Codec) Marshal(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("payload: encoding: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses a scanned text block. Every field is required and must have
// its wire type; dates, times, prices and the event id must parse.
func (c *Codec) Decode(raw []byte) (Payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(raw), &fields); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", status.ErrDecode, err)
	}

	var p Payload
	strs := []struct {
		name string
		dst  *string
	}{
		{"ticketId", &p.TicketID},
		{"eventId", &p.EventID},
		{"eventTitle", &p.EventTitle},
		{"location", &p.Location},
		{"eventDate", &p.EventDate},
		{"eventTime", &p.EventTime},
		{"price", &p.Price},
		{"ownerAddress", &p.OwnerAddress},
	}
	for _, f := range strs {
		if err := field(fields, f.name, f.dst); err != nil {
			return Payload{}, err
		}
	}
	if err := field(fields, "used", &p.Used); err != nil {
		return Payload{}, err
	}

	if p.TicketID == "" {
		return Payload{}, fmt.Errorf("%w: empty ticketId", status.ErrDecode)
	}
	if _, err := p.EventNumber(); err != nil {
		return Payload{}, err
	}
	if _, err := c.StartTime(p); err != nil {
		return Payload{}, err
	}
	if _, err := c.PriceMinor(p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func field(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: missing %s", status.ErrDecode, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s has the wrong type", status.ErrDecode, name)
	}
	return nil
}

// ValidateForCheckIn is the scanner's offline pre-filter. It does not replace
// the ledger's check-in, which re-reads the authoritative state.
func (c *Codec) ValidateForCheckIn(p Payload, expectedEventID uint64, now time.Time) error {
	id, err := p.EventNumber()
	if err != nil {
		return err
	}
	if id != expectedEventID {
		return fmt.Errorf("%w: payload is for event %d, not %d", status.ErrEventMismatch, id, expectedEventID)
	}
	if p.Used {
		return fmt.Errorf("%w: payload marks ticket %s as used", status.ErrAlreadyUsed, p.TicketID)
	}
	if today := now.In(c.Location).Format(DateLayout); p.EventDate < today {
		return fmt.Errorf("%w: event date %s is before %s", status.ErrEventExpired, p.EventDate, today)
	}
	return nil
}

// EventNumber parses the payload's event id.
func (p Payload) EventNumber() (uint64, error) {
	id, err := strconv.ParseUint(p.EventID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad eventId %q", status.ErrDecode, p.EventID)
	}
	return id, nil
}

// StartTime recovers the event start, to the minute, from date and time.
func (c *Codec) StartTime(p Payload) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, p.EventDate+" "+p.EventTime, c.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad event date or time", status.ErrDecode)
	}
	return t, nil
}

// FormatPrice renders an amount in minor units, e.g. 2500 -> "$25.00".
func (c *Codec) FormatPrice(minor uint64) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(minor), -c.Decimals)
	return c.Currency + d.StringFixed(c.Decimals)
}

// PriceMinor parses the payload's price back into minor units.
func (c *Codec) PriceMinor(p Payload) (uint64, error) {
	amount, ok := strings.CutPrefix(p.Price, c.Currency)
	if !ok {
		return 0, fmt.Errorf("%w: price %q is not in %s", status.ErrDecode, p.Price, c.Currency)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil || d.IsNegative() {
		return 0, fmt.Errorf("%w: bad price %q", status.ErrDecode, p.Price)
	}
	minor := d.Shift(c.Decimals)
	if !minor.IsInteger() || !minor.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: price %q does not fit %d decimals", status.ErrDecode, p.Price, c.Decimals)
	}
	return minor.BigInt().Uint64(), nil
}
