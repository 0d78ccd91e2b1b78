// Package kafka feeds domain events from Kafka topics into the dispatch runner.
package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/tuition-notify/internal/application/dispatch"
	"github.com/tuition-notify/internal/config"
)

const queueFullWait = 200 * time.Millisecond

type submitter interface {
	Submit(job dispatch.Job) error
}

// Consumer wraps the franz-go client.
type Consumer struct {
	client *kgo.Client
	runner submitter
}

// New creates a Consumer for the configured brokers, group and topics.
func New(cfg config.Kafka, runner submitter) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{client: client, runner: runner}, nil
}

// Start polls until ctx is cancelled. Offsets are committed only after every
// record of a fetch has been queued or skipped as malformed; a fetch with an
// unqueued record is left uncommitted and the consumer stops.
func (c *Consumer) Start(ctx context.Context) {
	log.Info().Msg("kafka consumer started")

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			break
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("kafka fetch error")
		})

		if !handleAll(ctx, c.runner, fetches.Records()) {
			log.Warn().Msg("leaving kafka fetch uncommitted")
			break
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			log.Error().Err(err).Msg("kafka commit error")
		}
	}

	c.client.Close()
	log.Info().Msg("kafka consumer stopped")
}

// handleAll handles records in order and stops at the first one left unqueued.
func handleAll(ctx context.Context, runner submitter, records []*kgo.Record) bool {
	for _, r := range records {
		if !handle(ctx, runner, r) {
			return false
		}
	}
	return true
}

// handle submits one record and reports whether its offset may be committed:
// true once queued or skipped as malformed. A full queue is retried until ctx ends.
func handle(ctx context.Context, runner submitter, r *kgo.Record) bool {
	job, err := dispatch.ParseEnvelope(r.Value)
	if err != nil {
		log.Warn().Err(err).Str("topic", r.Topic).Str("key", string(r.Key)).Msg("skipping malformed event")
		return true
	}

	for {
		err := runner.Submit(job)
		if err == nil {
			log.Debug().Str("topic", r.Topic).Str("event_id", job.Event.ID).Str("kind", string(job.Event.Kind)).Msg("event queued")
			return true
		}
		if !errors.Is(err, dispatch.ErrQueueFull) {
			log.Error().Err(err).Str("event_id", job.Event.ID).Msg("event not queued")
			return false
		}
		select {
		case <-ctx.Done():
			log.Error().Err(ctx.Err()).Str("event_id", job.Event.ID).Msg("event not queued")
			return false
		case <-time.After(queueFullWait):
		}
	}
}
