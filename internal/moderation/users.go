package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/geodirectory-backend/internal/listings"
	"github.com/angelmondragon/geodirectory-backend/internal/users"
	"github.com/angelmondragon/geodirectory-backend/pkg/db"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/geodirectory-backend/pkg/pagination"
	"github.com/angelmondragon/geodirectory-backend/pkg/redis"
)

// UserService lets administrators list and remove accounts.
type UserService interface {
	ListUsers(ctx context.Context, actor listings.Actor, params pagination.Params) (users.Page, error)
	DeleteUser(ctx context.Context, actor listings.Actor, userID uuid.UUID) (*UserRemoval, error)
}

// UserRemoval reports what went with a deleted account.
type UserRemoval struct {
	UserID          uuid.UUID   `json:"user_id"`
	RemovedListings []uuid.UUID `json:"removed_listings"`
}

// AssetCleaner removes a listing's stored images.
type AssetCleaner interface {
	DeleteAllAssets(ctx context.Context, listingID uuid.UUID) error
}

type userService struct {
	users    *users.Repository
	listings *listings.Repository
	dbClient *db.Client
	assets   AssetCleaner
	events   outbox.Emitter
	cache    redis.ViewportCache
	logg     *logger.Logger
}

// UserServiceParams wires the account moderation service. Cache may be nil.
type UserServiceParams struct {
	Users    *users.Repository
	Listings *listings.Repository
	DB       *db.Client
	Assets   AssetCleaner
	Events   outbox.Emitter
	Cache    redis.ViewportCache
	Logger   *logger.Logger
}

func NewUserService(params UserServiceParams) (UserService, error) {
	switch {
	case params.Users == nil:
		return nil, fmt.Errorf("users repository required")
	case params.Listings == nil:
		return nil, fmt.Errorf("listing repository required")
	case params.DB == nil:
		return nil, fmt.Errorf("db client required")
	case params.Assets == nil:
		return nil, fmt.Errorf("asset store required")
	case params.Events == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &userService{
		users:    params.Users,
		listings: params.Listings,
		dbClient: params.DB,
		assets:   params.Assets,
		events:   params.Events,
		cache:    params.Cache,
		logg:     params.Logger,
	}, nil
}

// CanManageUsers gates the account endpoints.
func CanManageUsers(role enums.UserRole) bool {
	return role == enums.UserRoleAdmin
}

func (s *userService) ListUsers(ctx context.Context, actor listings.Actor, params pagination.Params) (users.Page, error) {
	if !CanManageUsers(actor.Role) {
		return users.Page{}, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators can manage users")
	}
	page, err := s.users.List(ctx, params)
	if errors.Is(err, pagination.ErrInvalidCursor) {
		return users.Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return page, err
}

// DeleteUser removes the account and, through the cascade, its listings.
// Listing ids are collected first so their images can be removed once the
// rows are gone; image cleanup failures are only logged.
func (s *userService) DeleteUser(ctx context.Context, actor listings.Actor, userID uuid.UUID) (*UserRemoval, error) {
	if !CanManageUsers(actor.Role) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators can manage users")
	}
	if userID == actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "administrators cannot delete their own account")
	}

	ctx = s.logg.WithField(ctx, "target_user_id", userID.String())
	removal := &UserRemoval{UserID: userID}
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		ids, err := s.listings.WithTx(tx).IDsOwnedBy(ctx, userID)
		if err != nil {
			return err
		}
		removed, err := s.users.WithTx(tx).Delete(ctx, userID)
		if err != nil {
			return err
		}
		if !removed {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		for _, listingID := range ids {
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventListingDeleted,
				AggregateType: enums.AggregateListing,
				AggregateID:   listingID,
				Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
				Data: payloads.ListingDeletedEvent{
					ListingID: listingID,
					OwnerID:   userID,
				},
			}); err != nil {
				return err
			}
		}
		removal.RemovedListings = ids
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, listingID := range removal.RemovedListings {
		if err := s.assets.DeleteAllAssets(ctx, listingID); err != nil {
			s.logg.Error(s.logg.WithListingID(ctx, listingID.String()), "user deleted but listing assets remain", err)
		}
	}
	if len(removal.RemovedListings) > 0 && s.cache != nil {
		if err := s.cache.InvalidateViewports(ctx); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "viewport cache invalidation failed")
		}
	}
	if removal.RemovedListings == nil {
		removal.RemovedListings = []uuid.UUID{}
	}

	logCtx := s.logg.WithField(ctx, "removed_listings", len(removal.RemovedListings))
	s.logg.Info(logCtx, "user deleted")
	return removal, nil
}
