package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ticket-ledger/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, "A", 2)
	tk := f.ticket(t, ev.ID, "holder")

	got, gotEv, err := f.ledger.CheckIn(ctx, CheckInRequest{TicketID: tk.ID, ExpectedEventID: ev.ID})
	require.NoError(t, err)
	assert.True(t, got.Used())
	assert.Equal(t, epoch.Unix(), got.CheckedInAt)
	assert.Equal(t, ev.ID, gotEv.ID)
	assert.Equal(t, ev.Title, gotEv.Title)

	_, _, err = f.ledger.CheckIn(ctx, CheckInRequest{TicketID: tk.ID, ExpectedEventID: ev.ID})
	assert.ErrorIs(t, err, status.ErrAlreadyUsed)

	stored, err := f.ledger.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, stored.Used())
	assert.Equal(t, epoch.Unix(), stored.CheckedInAt)

	assert.Equal(t, []string{tk.ID}, f.notifier.checkedIn)
}

func TestCheckIn_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, "A", 5)
	other := f.event(t, "B", 5)
	tk := f.ticket(t, ev.ID, "holder")

	_, _, err := f.ledger.CheckIn(ctx, CheckInRequest{TicketID: "1-99", ExpectedEventID: ev.ID})
	assert.ErrorIs(t, err, status.ErrNotFound)

	_, _, err = f.ledger.CheckIn(ctx, CheckInRequest{ExpectedEventID: ev.ID})
	assert.ErrorIs(t, err, status.ErrInvalidInput)

	_, _, err = f.ledger.CheckIn(ctx, CheckInRequest{TicketID: "holder\xff", ExpectedEventID: ev.ID})
	assert.ErrorIs(t, err, status.ErrInvalidInput)

	_, _, err = f.ledger.CheckIn(ctx, CheckInRequest{TicketID: tk.ID, ExpectedEventID: other.ID})
	assert.ErrorIs(t, err, status.ErrEventMismatch)

	stored, err := f.ledger.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, stored.Used())
}

func TestCheckIn_GraceWindow(t *testing.T) {
	f := newFixture(t, WithCheckInGrace(6*time.Hour))
	ctx := context.Background()
	ev := f.event(t, "A", 5)
	early := f.ticket(t, ev.ID, "early")
	late := f.ticket(t, ev.ID, "late")

	// Event starts 24h after epoch; 6h after start is still inside the window.
	f.clock.Advance(30 * time.Hour)
	_, _, err := f.ledger.CheckIn(ctx, CheckInRequest{TicketID: early.ID, ExpectedEventID: ev.ID})
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	_, _, err = f.ledger.CheckIn(ctx, CheckInRequest{TicketID: late.ID, ExpectedEventID: ev.ID})
	assert.ErrorIs(t, err, status.ErrEventExpired)

	// AlreadyUsed is reported before expiry.
	_, _, err = f.ledger.CheckIn(ctx, CheckInRequest{TicketID: early.ID, ExpectedEventID: ev.ID})
	assert.ErrorIs(t, err, status.ErrAlreadyUsed)
}

func TestCheckIn_DefaultGrace(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, DefaultCheckInGrace, f.ledger.CheckInGrace())
}

func TestCheckIn_DoubleCheckInRace(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "A", 1)
	tk := f.ticket(t, ev.ID, "holder")

	for round := 0; round < 20; round++ {
		if round > 0 {
			ev = f.event(t, "A", 1)
			tk = f.ticket(t, ev.ID, "holder")
		}

		var (
			wg   sync.WaitGroup
			errs = make([]error, 2)
		)
		start := make(chan struct{})
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, _, errs[i] = f.ledger.CheckIn(context.Background(), CheckInRequest{TicketID: tk.ID, ExpectedEventID: ev.ID})
			}(i)
		}
		close(start)
		wg.Wait()

		codes := []string{status.Code(errs[0]), status.Code(errs[1])}
		assert.ElementsMatch(t, []string{"ok", "already_used"}, codes, "round %d", round)
	}
}

func TestCheckIn_DedupToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, "A", 2)
	tk := f.ticket(t, ev.ID, "holder")
	req := CheckInRequest{TicketID: tk.ID, ExpectedEventID: ev.ID, DedupToken: "scan-1"}

	first, _, err := f.ledger.CheckIn(ctx, req)
	require.NoError(t, err)

	// A scanner retrying after a timeout gets the same answer, not AlreadyUsed.
	again, againEv, err := f.ledger.CheckIn(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, ev.ID, againEv.ID)
	assert.Len(t, f.notifier.checkedIn, 1)

	// Without the token the second scan is a genuine duplicate.
	_, _, err = f.ledger.CheckIn(ctx, CheckInRequest{TicketID: tk.ID, ExpectedEventID: ev.ID})
	assert.ErrorIs(t, err, status.ErrAlreadyUsed)

	other := f.ticket(t, ev.ID, "guest")
	_, _, err = f.ledger.CheckIn(ctx, CheckInRequest{TicketID: other.ID, ExpectedEventID: ev.ID, DedupToken: "scan-1"})
	assert.ErrorIs(t, err, status.ErrIdempotencyConflict)
}

func TestCheckIn_TicketsOfOneEventDoNotBlock(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "A", 50)

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = f.ticket(t, ev.ID, "holder").ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, err := f.ledger.CheckIn(context.Background(), CheckInRequest{TicketID: id, ExpectedEventID: ev.ID})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	owned, err := f.ledger.GetOwnerTickets(context.Background(), "holder")
	require.NoError(t, err)
	assert.Len(t, owned, 50)
}
