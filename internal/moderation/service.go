package moderation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/geodirectory-backend/internal/listings"
	"github.com/angelmondragon/geodirectory-backend/pkg/db"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/geodirectory-backend/pkg/pagination"
	"github.com/angelmondragon/geodirectory-backend/pkg/redis"
)

// Service exposes admin-only status changes and the pending queue.
type Service interface {
	ChangeStatus(ctx context.Context, actor listings.Actor, listingID uuid.UUID, status string) (*StatusChange, error)
	Publish(ctx context.Context, actor listings.Actor, listingID uuid.UUID) (*StatusChange, error)
	Reject(ctx context.Context, actor listings.Actor, listingID uuid.UUID) (*StatusChange, error)
	Unpublish(ctx context.Context, actor listings.Actor, listingID uuid.UUID) (*StatusChange, error)
	Queue(ctx context.Context, actor listings.Actor, params pagination.Params) (listings.QueuePage, error)
}

// StatusChange reports the transition that was applied.
type StatusChange struct {
	ListingID      uuid.UUID           `json:"listing_id"`
	PreviousStatus enums.ListingStatus `json:"previous_status"`
	Status         enums.ListingStatus `json:"status"`
}

type service struct {
	repo     *listings.Repository
	dbClient *db.Client
	events   outbox.Emitter
	cache    redis.ViewportCache
	logg     *logger.Logger
}

// NewService builds the moderation service. cache may be nil.
func NewService(repo *listings.Repository, dbClient *db.Client, events outbox.Emitter, cache redis.ViewportCache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, dbClient: dbClient, events: events, cache: cache, logg: logg}, nil
}

func (s *service) ChangeStatus(ctx context.Context, actor listings.Actor, listingID uuid.UUID, raw string) (*StatusChange, error) {
	if !CanChangeStatus(actor.Role) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators can change listing status")
	}
	status, err := enums.ParseListingStatus(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || !status.IsModerationTarget() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidStatus, "status must be published, rejected or pending").
			WithDetails(map[string]any{"status": raw})
	}

	ctx = s.logg.WithListingID(ctx, listingID.String())
	change := &StatusChange{ListingID: listingID, Status: status}
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, listingID)
		if err != nil {
			return err
		}
		change.PreviousStatus = current.Status
		if err := repo.SetStatus(ctx, listingID, status); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventListingStatusChanged,
			AggregateType: enums.AggregateListing,
			AggregateID:   listingID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: payloads.ListingStatusChangedEvent{
				ListingID:      listingID,
				PreviousStatus: current.Status,
				Status:         status,
				ModeratorID:    actor.UserID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if change.PreviousStatus.IsPublic() || status.IsPublic() {
		s.invalidateViewports(ctx)
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"previous_status": change.PreviousStatus.String(),
		"status":          status.String(),
		"moderator_id":    actor.UserID.String(),
	})
	s.logg.Info(logCtx, "listing status changed")
	return change, nil
}

func (s *service) Publish(ctx context.Context, actor listings.Actor, listingID uuid.UUID) (*StatusChange, error) {
	return s.ChangeStatus(ctx, actor, listingID, enums.ListingStatusPublished.String())
}

func (s *service) Reject(ctx context.Context, actor listings.Actor, listingID uuid.UUID) (*StatusChange, error) {
	return s.ChangeStatus(ctx, actor, listingID, enums.ListingStatusRejected.String())
}

// Unpublish sends a listing back to the pending queue.
func (s *service) Unpublish(ctx context.Context, actor listings.Actor, listingID uuid.UUID) (*StatusChange, error) {
	return s.ChangeStatus(ctx, actor, listingID, enums.ListingStatusPending.String())
}

// Queue lists pending listings, oldest first.
func (s *service) Queue(ctx context.Context, actor listings.Actor, params pagination.Params) (listings.QueuePage, error) {
	if !CanChangeStatus(actor.Role) {
		return listings.QueuePage{}, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators can review listings")
	}
	return s.repo.ListByStatus(ctx, enums.ListingStatusPending, params)
}

func (s *service) invalidateViewports(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateViewports(ctx); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "viewport cache invalidation failed")
	}
}
