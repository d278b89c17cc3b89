// Package services implements the ticket ledger: the event registry and its
// organizer index, ticket issuance with the owner index, and the check-in
// state machine. Every state change is one store.Apply over the records it
// touches.
package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"ticket-ledger/internal/clock"
	"ticket-ledger/internal/status"
	"ticket-ledger/internal/store"
	"ticket-ledger/logger"
	"ticket-ledger/models"
)

const (
	OpCreateEvent = "create_event"
	OpCancelEvent = "cancel_event"
	OpIssueTicket = "issue_ticket"
	OpCheckIn     = "check_in"
)

// DefaultCheckInGrace is how long after an event starts its tickets can
// still be checked in.
const DefaultCheckInGrace = 24 * time.Hour

// Notifier is told about committed ledger changes. It must not fail the
// operation that triggered it.
type Notifier interface {
	TicketIssued(ctx context.Context, t models.Ticket, e models.Event)
	TicketCheckedIn(ctx context.Context, t models.Ticket, e models.Event)
}

// Recorder receives operation metrics.
type Recorder interface {
	TrackOperation(op string, err error)
	ObserveDuration(op string, d time.Duration)
	SetTicketsSold(eventID, sold uint64)
}

type Ledger struct {
	store    store.Store
	clock    clock.Clock
	notifier Notifier
	recorder Recorder
	grace    time.Duration
	latest   int64
}

type Option func(*Ledger)

func WithClock(c clock.Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

func WithNotifier(n Notifier) Option {
	return func(l *Ledger) {
		if n != nil {
			l.notifier = n
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(l *Ledger) {
		if r != nil {
			l.recorder = r
		}
	}
}

// WithCheckInGrace sets the check-in window after an event's start time.
func WithCheckInGrace(d time.Duration) Option {
	return func(l *Ledger) {
		if d >= 0 {
			l.grace = d
		}
	}
}

// WithLocation sets the zone event dates are rendered in. Start times whose
// date needs more than four year digits there are rejected.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.latest = latestStart(loc)
		}
	}
}

func latestStart(loc *time.Location) int64 {
	return time.Date(9999, time.December, 31, 23, 59, 59, 0, loc).Unix()
}

func NewLedger(st store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    st,
		clock:    clock.NewSystem(),
		notifier: nopNotifier{},
		recorder: nopRecorder{},
		grace:    DefaultCheckInGrace,
		latest:   latestStart(time.UTC),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckInGrace reports the configured check-in window.
func (l *Ledger) CheckInGrace() time.Duration {
	return l.grace
}

// apply runs one atomic store mutation and records how long it took.
func (l *Ledger) apply(ctx context.Context, op string, keys []string, fn store.Mutation) error {
	start := time.Now()
	err := l.store.Apply(ctx, keys, fn)
	l.recorder.ObserveDuration(op, time.Since(start))
	return err
}

// finish records the outcome of a write operation and logs failures by class.
func (l *Ledger) finish(ctx context.Context, op string, err error) {
	l.recorder.TrackOperation(op, err)
	switch {
	case err == nil:
	case status.Code(err) == "internal_error" || status.Retryable(err):
		logger.Errorf(ctx, "%s failed: %v", op, err)
	default:
		logger.Debugf(ctx, "%s rejected: %v", op, err)
	}
}

// validPrincipal rejects principals that cannot be stored as record text.
func validPrincipal(field, p string) error {
	if p == "" {
		return fmt.Errorf("%w: %s is required", status.ErrInvalidInput, field)
	}
	return validText(field, p)
}

func validText(field, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s is not valid UTF-8", status.ErrInvalidInput, field)
	}
	return nil
}

func decodeRecord(current map[string][]byte, key string, v any) (bool, error) {
	raw, ok := current[key]
	if !ok {
		return false, nil
	}
	if err := store.Decode(raw, v); err != nil {
		return false, fmt.Errorf("record %s: %w", key, err)
	}
	return true, nil
}

func putRecord(writes map[string][]byte, key string, v any) error {
	data, err := store.Encode(v)
	if err != nil {
		return err
	}
	writes[key] = data
	return nil
}

type nopNotifier struct{}

func (nopNotifier) TicketIssued(context.Context, models.Ticket, models.Event) {}
func (nopNotifier) TicketCheckedIn(context.Context, models.Ticket, models.Event) {}

type nopRecorder struct{}

func (nopRecorder) TrackOperation(string, error) {}
func (nopRecorder) ObserveDuration(string, time.Duration) {}
func (nopRecorder) SetTicketsSold(uint64, uint64) {}
