package matineews

import (
	"context"
	"fmt"
	"time"

	"github.com/matinee-live/matinee-go-push/matinee-ws/connectiondao"
	"github.com/matinee-live/matinee-go-push/matinee-ws/subscriptiondao"
	"github.com/rs/zerolog"
)

// DefaultTTL bounds how long connection and subscription records outlive a
// lost disconnect signal.
const DefaultTTL = 24 * time.Hour

// ConnectionStore is the durable store behind the connection registry. The
// connectiondao DAO satisfies it.
type ConnectionStore interface {
	Put(ctx context.Context, conn connectiondao.Connection) error
	Exists(ctx context.Context, connectionID string) (bool, error)
	Delete(ctx context.Context, connectionID string) error
}

// SubscriptionStore is the durable store behind the subscription index. The
// subscriptiondao DAO satisfies it.
type SubscriptionStore interface {
	Put(ctx context.Context, sub subscriptiondao.Subscription) error
	Delete(ctx context.Context, topic, connectionID string) error
	QueryByTopic(ctx context.Context, topic string) ([]subscriptiondao.Subscription, error)
	DeleteByConnection(ctx context.Context, connectionID string) error
}

// Registry tracks which sessions are currently reachable and who they belong
// to.
type Registry struct {
	Connections ConnectionStore
	Subs        SubscriptionStore
	Logger      zerolog.Logger
	TTL         time.Duration // record TTL (default 24 hours)
}

func (r *Registry) ttl() time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return DefaultTTL
}

// Register upserts the connection record. Re-registering an existing id
// overwrites it.
func (r *Registry) Register(ctx context.Context, connectionID, endpoint, userID, userRole string) error {
	conn := connectiondao.Connection{
		ConnectionID: connectionID,
		UserID:       userID,
		UserRole:     userRole,
		Endpoint:     endpoint,
		ConnectedAt:  time.Now().Unix(),
		TTL:          time.Now().Add(r.ttl()).Unix(),
	}
	if err := r.Connections.Put(ctx, conn); err != nil {
		return fmt.Errorf("failed to register connection %v: %w", connectionID, err)
	}
	return nil
}

// Deregister removes the connection record and cascades deletion of its
// subscriptions. Subscriptions go first so that a failure can never leave
// index entries pointing at a deleted connection; if the connection delete
// then fails, the stranded record is logged as a repair condition.
func (r *Registry) Deregister(ctx context.Context, connectionID string) error {
	if err := r.Subs.DeleteByConnection(ctx, connectionID); err != nil {
		return fmt.Errorf("failed to delete subscriptions for connection %v: %w", connectionID, err)
	}
	if err := r.Connections.Delete(ctx, connectionID); err != nil {
		r.Logger.Error().Err(err).
			Str("connection_id", connectionID).
			Str("repair", "orphaned connection record").
			Msg("subscriptions removed but connection delete failed")
		return fmt.Errorf("failed to delete connection %v: %w", connectionID, err)
	}
	return nil
}

// Exists reports whether the connection is currently registered.
func (r *Registry) Exists(ctx context.Context, connectionID string) (bool, error) {
	return r.Connections.Exists(ctx, connectionID)
}
