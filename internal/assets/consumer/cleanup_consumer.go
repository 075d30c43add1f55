// Package consumer removes listing assets in response to published listing
// events, picking up cleanups the API could not finish inline.
package consumer

import (
	"context"
	"errors"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox/payloads"
)

const (
	attrEventID     = outbox.AttrEventID
	attrEventType   = outbox.AttrEventType
	attrAggregateID = outbox.AttrAggregateID
)

// AssetCleaner deletes everything stored for a listing. Deleting a listing
// with no assets must succeed.
type AssetCleaner interface {
	DeleteAllAssets(ctx context.Context, listingID uuid.UUID) error
}

// CleanupConsumer listens for listing_deleted events and purges the listing's
// asset namespace.
type CleanupConsumer struct {
	assets       AssetCleaner
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

type processResult struct {
	ack  bool
	nack bool
}

// NewCleanupConsumer wires the asset store to a subscription on the listing topic.
func NewCleanupConsumer(assets AssetCleaner, subscription *pubsub.Subscriber, logg *logger.Logger) (*CleanupConsumer, error) {
	if assets == nil {
		return nil, errors.New("asset cleaner is required")
	}
	if subscription == nil {
		return nil, errors.New("assets subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &CleanupConsumer{assets: assets, subscription: subscription, logg: logg}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *CleanupConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *CleanupConsumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_id":   msg.Attributes[attrEventID],
		"event_type": msg.Attributes[attrEventType],
	})

	if msg.Attributes[attrEventType] != string(enums.EventListingDeleted) {
		c.logg.Debug(logCtx, "skipping non-delete listing event")
		return processResult{ack: true}
	}

	listingID, err := listingIDFrom(msg)
	if err != nil {
		c.logg.Error(logCtx, "listing deleted event without a usable listing id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithListingID(logCtx, listingID.String())

	if err := c.assets.DeleteAllAssets(logCtx, listingID); err != nil {
		c.logg.Error(logCtx, "listing asset cleanup failed", err)
		if isRetryable(err) {
			return processResult{nack: true}
		}
		return processResult{ack: true}
	}

	c.logg.Info(logCtx, "listing assets removed")
	return processResult{ack: true}
}

// listingIDFrom prefers the aggregate attribute and falls back to the event
// payload for messages republished without attributes.
func listingIDFrom(msg *pubsub.Message) (uuid.UUID, error) {
	if raw := strings.TrimSpace(msg.Attributes[attrAggregateID]); raw != "" {
		return uuid.Parse(raw)
	}
	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		return uuid.Nil, err
	}
	var event payloads.ListingDeletedEvent
	if err := envelope.DecodeData(&event); err != nil {
		return uuid.Nil, err
	}
	if event.ListingID == uuid.Nil {
		return uuid.Nil, errors.New("listing_id missing from payload")
	}
	return event.ListingID, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return pkgerrors.CodeOf(err) == pkgerrors.CodeStorage
}
