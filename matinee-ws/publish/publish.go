// Package publish is the producer side of the push broker: business-logic
// handlers call Send after a committed state change, fire-and-forget. The
// dispatcher consumes the stream and fans the event out to subscribers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
)

// Envelope is the message format published to the push events stream.
type Envelope struct {
	Channel    string          `json:"channel"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId,omitempty"`
	EventType  string          `json:"eventType"`
	Payload    json.RawMessage `json:"payload"`
}

// PartitionKey groups records by coarse topic so ordering holds within a
// channel/entity-type pair (recipients still get no cross-recipient ordering
// guarantee).
func (e Envelope) PartitionKey() string {
	return e.Channel + ":" + e.EntityType
}

// Publisher publishes broadcast events to the push Kinesis stream.
type Publisher struct {
	client     kinesisiface.KinesisAPI
	streamName string
}

// New creates a new Publisher.
func New(client kinesisiface.KinesisAPI, streamName string) *Publisher {
	return &Publisher{
		client:     client,
		streamName: streamName,
	}
}

// Build creates a new Publisher using the standard stream name for the given
// environment.
func Build(env string) *Publisher {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	client := kinesis.New(sess)
	return New(client, StreamName(env))
}

// StreamName returns the Kinesis stream name for the given environment.
func StreamName(env string) string {
	return env + "-matinee-push-events"
}

// Send publishes a broadcast event to the push events stream.
func (p *Publisher) Send(ctx context.Context, envelope Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshalling envelope: %w", err)
	}

	_, err = p.client.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(p.streamName),
		PartitionKey: aws.String(envelope.PartitionKey()),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("publishing to kinesis stream %v: %w", p.streamName, err)
	}

	return nil
}
