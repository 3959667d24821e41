package matineews

import (
	"context"
	"fmt"
	"time"

	"github.com/matinee-live/matinee-go-push/matinee-ws/subscriptiondao"
)

// Index maintains the topic → session mapping at two granularities: coarse
// (all entities of a type within a channel) and fine (one specific entity).
type Index struct {
	Registry *Registry
	Subs     SubscriptionStore
	TTL      time.Duration // record TTL (default 24 hours)
}

func (ix *Index) ttl() time.Duration {
	if ix.TTL > 0 {
		return ix.TTL
	}
	return DefaultTTL
}

// Subscribe records the session's interest in the topic. It fails with
// NotConnectedError when the connection was never registered or has already
// been deregistered, so the index can never hold orphaned entries.
func (ix *Index) Subscribe(ctx context.Context, connectionID, endpoint, userID string, topic Topic) error {
	ok, err := ix.Registry.Exists(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("failed to check connection %v: %w", connectionID, err)
	}
	if !ok {
		return &NotConnectedError{ConnectionID: connectionID}
	}

	sub := subscriptiondao.Subscription{
		Topic:        topic.Key(),
		ConnectionID: connectionID,
		UserID:       userID,
		Endpoint:     endpoint,
		SubscribedAt: time.Now().Unix(),
		TTL:          time.Now().Add(ix.ttl()).Unix(),
	}
	if err := ix.Subs.Put(ctx, sub); err != nil {
		return fmt.Errorf("failed to store subscription for connection %v: %w", connectionID, err)
	}
	return nil
}

// Unsubscribe removes the session's interest in the topic. It carries the
// same connected guard as Subscribe; removing an absent subscription is a
// no-op.
func (ix *Index) Unsubscribe(ctx context.Context, connectionID string, topic Topic) error {
	ok, err := ix.Registry.Exists(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("failed to check connection %v: %w", connectionID, err)
	}
	if !ok {
		return &NotConnectedError{ConnectionID: connectionID}
	}

	if err := ix.Subs.Delete(ctx, topic.Key(), connectionID); err != nil {
		return fmt.Errorf("failed to delete subscription for connection %v: %w", connectionID, err)
	}
	return nil
}

// LookupSubscribers resolves the sessions subscribed to the topic. When the
// topic names a specific entity, both the fine and the coarse key are
// queried and the union is deduplicated by connection id, so a session
// subscribed at both granularities appears exactly once. The returned slice
// is a fresh snapshot; mutations after the call do not affect it.
func (ix *Index) LookupSubscribers(ctx context.Context, topic Topic) ([]subscriptiondao.Subscription, error) {
	keys := []string{topic.CoarseKey()}
	if topic.EntityID != "" {
		keys = append(keys, topic.FineKey())
	}

	var (
		seen     = make(map[string]struct{})
		snapshot []subscriptiondao.Subscription
	)
	for _, key := range keys {
		subs, err := ix.Subs.QueryByTopic(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to look up subscribers for %v: %w", key, err)
		}
		for _, sub := range subs {
			if _, ok := seen[sub.ConnectionID]; ok {
				continue
			}
			seen[sub.ConnectionID] = struct{}{}
			snapshot = append(snapshot, sub)
		}
	}
	return snapshot, nil
}
