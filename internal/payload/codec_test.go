package payload

import (
	"strings"
	"testing"
	"time"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec() *Codec {
	return NewCodec("$", 2, time.UTC)
}

func sample() (models.Ticket, models.Event) {
	ev := models.Event{
		ID:        12,
		Organizer: "org",
		Title:     "Jazz & Blues <Night>",
		Location:  "That Luang, Vientiane",
		StartTime: time.Date(2025, 7, 14, 19, 30, 0, 0, time.UTC).Unix(),
		Price:     2500,
		Capacity:  100,
	}
	tk := models.Ticket{ID: models.TicketID(12, 3), EventID: 12, Owner: "0xabc"}
	return tk, ev
}

func TestEncode(t *testing.T) {
	tk, ev := sample()
	p := testCodec().Encode(tk, ev)

	assert.Equal(t, Payload{
		TicketID:     "12-3",
		EventID:      "12",
		EventTitle:   "Jazz & Blues <Night>",
		Location:     "That Luang, Vientiane",
		EventDate:    "2025-07-14",
		EventTime:    "19:30",
		Price:        "$25.00",
		OwnerAddress: "0xabc",
		Used:         false,
	}, p)
}

func TestMarshal_FieldOrder(t *testing.T) {
	c := testCodec()
	tk, ev := sample()
	raw, err := c.Marshal(c.Encode(tk, ev))
	require.NoError(t, err)

	assert.Equal(t,
		`{"ticketId":"12-3","eventId":"12","eventTitle":"Jazz & Blues <Night>","location":"That Luang, Vientiane",`+
			`"eventDate":"2025-07-14","eventTime":"19:30","price":"$25.00","ownerAddress":"0xabc","used":false}`,
		string(raw))
}

func TestRoundTrip(t *testing.T) {
	codecs := []*Codec{
		testCodec(),
		NewCodec("₭", 0, time.FixedZone("ICT", 7*3600)),
		NewCodec("€", 3, time.UTC),
	}
	starts := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC),
		time.Date(2030, 2, 28, 17, 5, 0, 0, time.UTC),
	}
	prices := []uint64{0, 1, 99, 2500, 1_000_000_007}

	for _, c := range codecs {
		latest := time.Date(9999, time.December, 31, 23, 59, 0, 0, c.Location)
		for _, start := range append(starts, latest) {
			for _, price := range prices {
				for _, used := range []bool{false, true} {
					ev := models.Event{ID: 7, Title: "t", Location: "l", StartTime: start.Unix(), Price: price}
					tk := models.Ticket{ID: "7-1", EventID: 7, Owner: "o"}
					if used {
						tk.State = models.TicketUsed
					}

					raw, err := c.Marshal(c.Encode(tk, ev))
					require.NoError(t, err)
					p, err := c.Decode(raw)
					require.NoError(t, err)

					assert.Equal(t, tk.ID, p.TicketID)
					assert.Equal(t, tk.Owner, p.OwnerAddress)
					assert.Equal(t, used, p.Used)
					assert.Equal(t, ev.Title, p.EventTitle)
					assert.Equal(t, ev.Location, p.Location)

					id, err := p.EventNumber()
					require.NoError(t, err)
					assert.Equal(t, ev.ID, id)

					gotStart, err := c.StartTime(p)
					require.NoError(t, err)
					assert.True(t, start.Equal(gotStart), "%s != %s", start, gotStart)

					gotPrice, err := c.PriceMinor(p)
					require.NoError(t, err)
					assert.Equal(t, price, gotPrice)

					again, err := c.Marshal(p)
					require.NoError(t, err)
					assert.Equal(t, raw, again)
				}
			}
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	valid := `{"ticketId":"1-1","eventId":"1","eventTitle":"t","location":"l","eventDate":"2025-07-14","eventTime":"19:30","price":"$1.00","ownerAddress":"o","used":false}`

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "hello"},
		{"empty", ""},
		{"array", "[]"},
		{"missing field", strings.Replace(valid, `"ownerAddress":"o",`, "", 1)},
		{"null field", strings.Replace(valid, `"location":"l"`, `"location":null`, 1)},
		{"used as string", strings.Replace(valid, `"used":false`, `"used":"false"`, 1)},
		{"eventId as number", strings.Replace(valid, `"eventId":"1"`, `"eventId":1`, 1)},
		{"eventId not numeric", strings.Replace(valid, `"eventId":"1"`, `"eventId":"one"`, 1)},
		{"empty ticket id", strings.Replace(valid, `"ticketId":"1-1"`, `"ticketId":""`, 1)},
		{"bad date", strings.Replace(valid, "2025-07-14", "14/07/2025", 1)},
		{"bad time", strings.Replace(valid, "19:30", "7pm", 1)},
		{"wrong currency", strings.Replace(valid, "$1.00", "€1.00", 1)},
		{"too many decimals", strings.Replace(valid, "$1.00", "$1.005", 1)},
		{"negative price", strings.Replace(valid, "$1.00", "$-1.00", 1)},
	}

	c := testCodec()
	_, err := c.Decode([]byte(valid))
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode([]byte(tt.raw))
			assert.ErrorIs(t, err, status.ErrDecode)
			assert.Equal(t, "decode_error", status.Code(err))
		})
	}
}

func TestValidateForCheckIn(t *testing.T) {
	c := testCodec()
	tk, ev := sample()
	p := c.Encode(tk, ev)
	eventDay := time.Date(2025, 7, 14, 22, 0, 0, 0, time.UTC)

	assert.NoError(t, c.ValidateForCheckIn(p, 12, eventDay))
	assert.NoError(t, c.ValidateForCheckIn(p, 12, eventDay.AddDate(0, 0, -3)))

	assert.ErrorIs(t, c.ValidateForCheckIn(p, 13, eventDay), status.ErrEventMismatch)
	assert.ErrorIs(t, c.ValidateForCheckIn(p, 12, eventDay.AddDate(0, 0, 1)), status.ErrEventExpired)

	used := p
	used.Used = true
	assert.ErrorIs(t, c.ValidateForCheckIn(used, 12, eventDay), status.ErrAlreadyUsed)

	// Mismatch is reported before the advisory used flag.
	assert.ErrorIs(t, c.ValidateForCheckIn(used, 13, eventDay), status.ErrEventMismatch)
}

func TestValidateForCheckIn_UsesCodecZone(t *testing.T) {
	c := NewCodec("$", 2, time.FixedZone("ICT", 7*3600))
	tk, ev := sample()
	p := c.Encode(tk, ev) // 19:30 UTC is 02:30 on the 15th in ICT
	require.Equal(t, "2025-07-15", p.EventDate)

	// 20:00 UTC on the 14th is already the 15th at the venue.
	now := time.Date(2025, 7, 14, 20, 0, 0, 0, time.UTC)
	assert.NoError(t, c.ValidateForCheckIn(p, 12, now))
	assert.ErrorIs(t, c.ValidateForCheckIn(p, 12, now.Add(24*time.Hour)), status.ErrEventExpired)
}
