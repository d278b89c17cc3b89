// Package notify pushes committed ledger changes to the affected principals
// over PubNub, one channel per principal.
package notify

import (
	"context"
	"fmt"

	"ticket-ledger/logger"
	"ticket-ledger/models"

	pubnub "github.com/pubnub/go/v7"
)

// Publisher sends one message to a channel.
type Publisher interface {
	Publish(channel string, message any) error
}

// PubNubPublisher publishes through a PubNub client.
type PubNubPublisher struct {
	pn *pubnub.PubNub
}

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

func NewPubNubPublisher(cfg PubNubConfig) *PubNubPublisher {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	return &PubNubPublisher{pn: pubnub.NewPubNub(pnCfg)}
}

func (p *PubNubPublisher) Publish(channel string, message any) error {
	_, st, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish to %s (status %d): %w", channel, st.StatusCode, err)
	}
	return nil
}

// Notifier turns ledger changes into user channel messages. Publish failures
// are logged and dropped; the ledger result stands either way.
type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

// UserChannel is the channel a principal's clients subscribe to.
func UserChannel(principal string) string {
	return "user-" + principal
}

func (n *Notifier) TicketIssued(ctx context.Context, t models.Ticket, e models.Event) {
	n.send(ctx, UserChannel(t.Owner), map[string]any{
		"type":        "ticket_issued",
		"ticket_id":   t.ID,
		"event_id":    e.ID,
		"event_title": e.Title,
		"start_time":  e.StartTime,
	})
	n.send(ctx, UserChannel(e.Organizer), map[string]any{
		"type":      "event_sales",
		"event_id":  e.ID,
		"sold":      e.Sold,
		"remaining": e.Remaining(),
	})
}

func (n *Notifier) TicketCheckedIn(ctx context.Context, t models.Ticket, e models.Event) {
	n.send(ctx, UserChannel(t.Owner), map[string]any{
		"type":          "ticket_checked_in",
		"ticket_id":     t.ID,
		"event_id":      e.ID,
		"checked_in_at": t.CheckedInAt,
	})
}

func (n *Notifier) send(ctx context.Context, channel string, msg map[string]any) {
	if err := n.pub.Publish(channel, msg); err != nil {
		logger.Warnf(ctx, "notify: %v", err)
	}
}
