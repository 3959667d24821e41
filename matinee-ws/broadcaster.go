package matineews

import (
	"context"
	"fmt"
	"time"

	matineecli "github.com/matinee-live/matinee-go-push/matinee-cli"
	"github.com/matinee-live/matinee-go-push/matinee-ws/subscriptiondao"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Broadcaster fans one event out to every subscribed session. Delivery is
// best-effort: a recipient that fails transiently is skipped, a recipient
// the transport reports gone is deregistered on the spot, and nothing is
// retried or replayed.
type Broadcaster struct {
	Index       *Index
	Registry    *Registry
	Pusher      Pusher
	Logger      zerolog.Logger
	Metrics     *matineecli.Metrics
	Concurrency int // max concurrent pushes (default 50)
}

// Broadcast resolves the subscriber set, stamps the event, and delivers it
// concurrently. The subscriber set is snapshotted before fan-out begins, so
// deregistrations triggered by this same broadcast cannot change which
// sessions are attempted or double-count any of them. Returns the number of
// distinct sessions delivery was attempted to.
func (b *Broadcaster) Broadcast(ctx context.Context, ev Event) (int, error) {
	if err := ev.Validate(); err != nil {
		return 0, err
	}

	snapshot, err := b.Index.LookupSubscribers(ctx, ev.Topic())
	if err != nil {
		return 0, err
	}
	if len(snapshot) == 0 {
		return 0, nil
	}

	ev.Timestamp = time.Now().UTC()
	msg, err := UpdateMessage(ev)
	if err != nil {
		return 0, err
	}

	b.Logger.Debug().
		Str("topic", ev.Topic().Key()).
		Str("event_type", ev.EventType).
		Int("subscribers", len(snapshot)).
		Msg("dispatching event")

	concurrency := b.Concurrency
	if concurrency <= 0 {
		concurrency = 50
	}

	began := time.Now()
	var g errgroup.Group
	g.SetLimit(concurrency)

	for _, sub := range snapshot {
		sub := sub
		g.Go(func() error {
			b.deliver(ctx, sub, msg)
			return nil
		})
	}
	g.Wait()

	if b.Metrics != nil {
		dims := map[matineecli.DimensionName]string{matineecli.ChannelDimension: ev.Channel}
		b.Metrics.Gauge(ctx, matineecli.BroadcastRecipientsMetric, float64(len(snapshot)), dims)
		b.Metrics.Timing(ctx, matineecli.FanoutTimeMetric, began, dims)
	}

	return len(snapshot), nil
}

// deliver attempts one recipient. Failures are classified here and never
// propagate to other recipients.
func (b *Broadcaster) deliver(ctx context.Context, sub subscriptiondao.Subscription, msg []byte) {
	err := b.Pusher.Push(ctx, sub.Endpoint, sub.ConnectionID, msg)
	if err == nil {
		return
	}

	if IsGone(err) {
		b.Logger.Info().
			Str("connection_id", sub.ConnectionID).
			Msg("connection gone, cleaning up")
		if err := b.Registry.Deregister(ctx, sub.ConnectionID); err != nil {
			b.Logger.Error().Err(err).
				Str("connection_id", sub.ConnectionID).
				Msg("failed to deregister gone connection")
		}
		return
	}

	b.Logger.Warn().Err(fmt.Errorf("posting to connection %v: %w", sub.ConnectionID, err)).
		Str("connection_id", sub.ConnectionID).
		Msg("transient delivery failure, skipping recipient")
}
