package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ticket-ledger/internal/clock"
	"ticket-ledger/internal/status"
	"ticket-ledger/internal/store"
	"ticket-ledger/models"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu        sync.Mutex
	issued    []string
	checkedIn []string
}

func (n *recordingNotifier) TicketIssued(_ context.Context, t models.Ticket, _ models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.issued = append(n.issued, t.ID)
}

func (n *recordingNotifier) TicketCheckedIn(_ context.Context, t models.Ticket, _ models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.checkedIn = append(n.checkedIn, t.ID)
}

type recordingRecorder struct {
	mu       sync.Mutex
	outcomes map[string][]string
	sold     map[uint64]uint64
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{outcomes: map[string][]string{}, sold: map[uint64]uint64{}}
}

func (r *recordingRecorder) TrackOperation(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[op] = append(r.outcomes[op], status.Code(err))
}

func (r *recordingRecorder) ObserveDuration(string, time.Duration) {}

func (r *recordingRecorder) SetTicketsSold(eventID, sold uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sold > r.sold[eventID] {
		r.sold[eventID] = sold
	}
}

type fixture struct {
	ledger   *Ledger
	store    *store.MemoryStore
	clock    *clock.Fixed
	notifier *recordingNotifier
	recorder *recordingRecorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.NewMemoryStore(),
		clock:    clock.NewFixed(epoch),
		notifier: &recordingNotifier{},
		recorder: newRecordingRecorder(),
	}
	opts = append([]Option{
		WithClock(f.clock),
		WithNotifier(f.notifier),
		WithRecorder(f.recorder),
	}, opts...)
	f.ledger = NewLedger(f.store, opts...)
	return f
}

// event creates an event starting a day after the fixture clock.
func (f *fixture) event(t *testing.T, organizer string, capacity uint64) models.Event {
	t.Helper()
	ctx := context.Background()
	id, err := f.ledger.CreateEvent(ctx, CreateEventRequest{
		Organizer: organizer,
		Title:     fmt.Sprintf("Show by %s", organizer),
		Location:  "Vientiane",
		StartTime: f.clock.Now().Add(24 * time.Hour).Unix(),
		Price:     2500,
		Capacity:  capacity,
	})
	require.NoError(t, err)
	ev, err := f.ledger.GetEvent(ctx, id)
	require.NoError(t, err)
	return ev
}

func (f *fixture) ticket(t *testing.T, eventID uint64, buyer string) models.Ticket {
	t.Helper()
	tk, err := f.ledger.IssueTicket(context.Background(), IssueTicketRequest{EventID: eventID, Buyer: buyer})
	require.NoError(t, err)
	return tk
}

// brokenStore fails every call like an unreachable backend.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("%w: connection refused", status.ErrStorageUnavailable)
}

func (brokenStore) Apply(context.Context, []string, store.Mutation) error {
	return fmt.Errorf("%w: connection refused", status.ErrStorageUnavailable)
}

func (brokenStore) Ping(context.Context) error { return nil }
func (brokenStore) Close() error { return nil }
