package matineews

import (
	"context"
	"fmt"
	"time"

	matineecli "github.com/matinee-live/matinee-go-push/matinee-cli"
	"github.com/matinee-live/matinee-go-push/matinee-ws/connectiondao"
	"github.com/rs/zerolog"
)

// ExpiredLister finds connection records whose TTL has passed. The
// connectiondao DAO satisfies it.
type ExpiredLister interface {
	ExpiredBefore(ctx context.Context, cutoff time.Time) ([]connectiondao.Connection, error)
}

// Sweeper deregisters connections whose TTL has lapsed without an explicit
// disconnect. DynamoDB eventually expires the records on its own, but the
// sweep keeps the subscription cascade timely.
type Sweeper struct {
	Connections ExpiredLister
	Registry    *Registry
	Logger      zerolog.Logger
	Metrics     *matineecli.Metrics
}

// Run performs one sweep. A connection that fails to deregister is logged
// and left for the next sweep; the rest of the batch still completes.
func (s *Sweeper) Run(ctx context.Context) error {
	expired, err := s.Connections.ExpiredBefore(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("listing expired connections: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	s.Logger.Info().Int("count", len(expired)).Msg("sweeping expired connections")

	var swept int
	for _, conn := range expired {
		if err := s.Registry.Deregister(ctx, conn.ConnectionID); err != nil {
			s.Logger.Error().Err(err).
				Str("connection_id", conn.ConnectionID).
				Msg("failed to sweep connection")
			continue
		}
		swept++
	}

	if s.Metrics != nil {
		s.Metrics.Gauge(ctx, matineecli.StaleConnectionsMetric, float64(swept))
	}
	return nil
}
