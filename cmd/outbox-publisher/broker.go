package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/geodirectory-backend/pkg/config"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/nats"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox"
	"github.com/angelmondragon/geodirectory-backend/pkg/pubsub"
)

// newBroker returns the broker selected by GEODIR_EVENTS_BACKEND together
// with the topic every listing event is routed to.
func newBroker(ctx context.Context, cfg *config.Config, logg *logger.Logger) (outbox.Broker, string, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Events.Backend)) {
	case config.EventsBackendPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap pubsub: %w", err)
		}
		return client, cfg.PubSub.ListingTopic, nil
	case config.EventsBackendNATS:
		pub, err := nats.NewPublisher(ctx, cfg.NATS, logg)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap nats: %w", err)
		}
		return pub, "listings", nil
	default:
		return &logBroker{logg: logg}, "listings", nil
	}
}

// logBroker acknowledges every message after logging it. It backs the
// "none" events backend used in local development.
type logBroker struct {
	logg *logger.Logger
}

func (b *logBroker) Ping(context.Context) error { return nil }

func (b *logBroker) Publish(ctx context.Context, topic string, msg outbox.Message) error {
	fields := map[string]any{"topic": topic, "bytes": len(msg.Data)}
	for k, v := range msg.Attributes {
		fields[k] = v
	}
	b.logg.Debug(b.logg.WithFields(ctx, fields), "outbox event dropped by log broker")
	return nil
}

func (b *logBroker) Close() error { return nil }
