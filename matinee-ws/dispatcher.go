package matineews

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	consumer "github.com/harlow/kinesis-consumer"
	matineecli "github.com/matinee-live/matinee-go-push/matinee-cli"
	"github.com/matinee-live/matinee-go-push/matinee-ws/publish"
	"github.com/rs/zerolog"
)

// Dispatcher feeds broadcast envelopes from the push events stream into the
// Broadcaster.
type Dispatcher struct {
	Broadcaster *Broadcaster
	Logger      zerolog.Logger
	StreamName  string // console mode only; defaults to the env stream
}

// Start runs as a Lambda consumer of the stream, or tails the live stream
// directly in console mode.
func (d *Dispatcher) Start() error {
	switch {
	case matineecli.CommonOpts.Console:
		return d.handleRealtime()

	default:
		lambda.Start(d.HandleKinesisEvent)
	}
	return nil
}

// HandleKinesisEvent processes a batch of Kinesis records, fanning each one
// out to matching subscribers. A record that fails is logged and skipped so
// one bad envelope never wedges the batch.
func (d *Dispatcher) HandleKinesisEvent(ctx context.Context, event events.KinesisEvent) error {
	for _, record := range event.Records {
		if err := d.processRecord(ctx, record); err != nil {
			d.Logger.Error().Err(err).
				Str("event_id", record.EventID).
				Msg("failed to process kinesis record")
		}
	}
	return nil
}

func (d *Dispatcher) processRecord(ctx context.Context, record events.KinesisEventRecord) error {
	var envelope publish.Envelope
	if err := json.Unmarshal(record.Kinesis.Data, &envelope); err != nil {
		return fmt.Errorf("unmarshalling kinesis record: %w", err)
	}

	ev := Event{
		Channel:    envelope.Channel,
		EntityType: envelope.EntityType,
		EntityID:   envelope.EntityID,
		EventType:  envelope.EventType,
		Payload:    envelope.Payload,
	}
	if err := ev.Validate(); err != nil {
		d.Logger.Warn().Err(err).Msg("dropping malformed broadcast envelope")
		return nil
	}

	recipients, err := d.Broadcaster.Broadcast(ctx, ev)
	if err != nil {
		return fmt.Errorf("broadcasting %v: %w", ev.Topic().Key(), err)
	}

	d.Logger.Debug().
		Str("topic", ev.Topic().Key()).
		Int("recipients", recipients).
		Msg("dispatched event")
	return nil
}

func (d *Dispatcher) handleRealtime() error {
	streamName := d.StreamName
	if streamName == "" {
		streamName = publish.StreamName(matineecli.CommonOpts.Env)
	}

	c, err := consumer.New(streamName, consumer.WithShardIteratorType("LATEST"))
	if err != nil {
		return err
	}

	ctx := d.Logger.WithContext(context.Background())
	callback := func(record *consumer.Record) error {
		er := events.KinesisEventRecord{
			Kinesis: events.KinesisRecord{Data: record.Data},
		}
		if err := d.processRecord(ctx, er); err != nil {
			d.Logger.Error().Err(err).Msg("failed to process record")
		}
		return nil
	}
	fmt.Println("Listening...")
	return c.Scan(ctx, callback)
}
