package listings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/geodirectory-backend/pkg/db"
	"github.com/angelmondragon/geodirectory-backend/pkg/db/models"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/geodirectory-backend/pkg/redis"
	"github.com/angelmondragon/geodirectory-backend/pkg/types"
)

// Service exposes the listing lifecycle and the read paths built on it.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput, files FileChanges) (CreateResult, error)
	Update(ctx context.Context, actor Actor, listingID uuid.UUID, input UpdateInput, files FileChanges) error
	Delete(ctx context.Context, actor Actor, listingID uuid.UUID) error
	Summaries(ctx context.Context, query ViewportQuery) ([]Summary, error)
	Owned(ctx context.Context, actor Actor) ([]OwnedSummary, error)
	ForEdit(ctx context.Context, actor Actor, listingID uuid.UUID) (*ListingDTO, error)
}

// AssetStore is the subset of the asset store the lifecycle depends on.
type AssetStore interface {
	BeginStaging(ctx context.Context) (string, error)
	StageFile(ctx context.Context, stagingID string, role enums.AssetRole, data []byte, originalName string) (string, error)
	CommitStaging(ctx context.Context, stagingID string, listingID uuid.UUID) error
	DiscardStaging(ctx context.Context, stagingID string) error
	PutAsset(ctx context.Context, listingID uuid.UUID, role enums.AssetRole, data []byte, originalName string) (string, error)
	DeleteAsset(ctx context.Context, listingID uuid.UUID, role enums.AssetRole, filename string) error
	DeleteAllAssets(ctx context.Context, listingID uuid.UUID) error
	ListGalleryFiles(ctx context.Context, listingID uuid.UUID) ([]string, error)
}

// Config tunes the lifecycle service.
type Config struct {
	MaxGalleryFiles int
	ViewportTTL     time.Duration
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	assets   AssetStore
	events   outbox.Emitter
	cache    redis.ViewportCache
	cfg      Config
	logg     *logger.Logger
}

// NewService constructs the listing lifecycle service. cache may be nil, in
// which case every map query goes to the database.
func NewService(repo *Repository, dbClient *db.Client, assets AssetStore, events outbox.Emitter, cache redis.ViewportCache, cfg Config, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if assets == nil {
		return nil, fmt.Errorf("asset store required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		dbClient: dbClient,
		assets:   assets,
		events:   events,
		cache:    cache,
		cfg:      cfg,
		logg:     logg,
	}, nil
}

// Create validates the input, stages the uploads, inserts a pending row and
// then promotes the staged files. A failed promotion leaves the row in place
// and is reported as PARTIAL_SUCCESS.
func (s *service) Create(ctx context.Context, actor Actor, input CreateInput, files FileChanges) (CreateResult, error) {
	listing, err := s.buildListing(ctx, actor, input)
	if err != nil {
		return CreateResult{}, err
	}
	if err := s.checkGalleryCap(len(files.Gallery)); err != nil {
		return CreateResult{}, err
	}

	stagingID, coverName, err := s.stage(ctx, files)
	if err != nil {
		return CreateResult{}, err
	}
	if stagingID != "" {
		ctx = s.logg.WithStagingID(ctx, stagingID)
	}
	listing.CoverImage = coverName

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Insert(ctx, listing); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventListingCreated,
			AggregateType: enums.AggregateListing,
			AggregateID:   listing.ID,
			Actor:         actorRef(actor),
			Data: payloads.ListingCreatedEvent{
				ListingID:  listing.ID,
				OwnerID:    listing.UserID,
				CategoryID: listing.CategoryID,
				Title:      listing.Title,
				Location:   listing.Location,
				Status:     listing.Status,
			},
		})
	})
	if err != nil {
		s.discard(ctx, stagingID)
		return CreateResult{}, err
	}

	result := CreateResult{ListingID: listing.ID}
	ctx = s.logg.WithListingID(ctx, listing.ID.String())
	if err := s.assets.CommitStaging(ctx, stagingID, listing.ID); err != nil {
		s.logg.Error(ctx, "listing saved but staged images were not committed", err)
		return result, pkgerrors.Wrap(pkgerrors.CodePartialSuccess, err, "listing saved but images could not be stored").
			WithDetails(map[string]any{"listing_id": listing.ID.String()})
	}
	s.logg.Info(ctx, "listing created")
	return result, nil
}

// Update writes new files first, then the row, and only then removes the files
// the edit replaced or asked to delete.
func (s *service) Update(ctx context.Context, actor Actor, listingID uuid.UUID, input UpdateInput, files FileChanges) error {
	current, err := s.repo.FindForEdit(ctx, listingID, actor.UserID)
	if err != nil {
		return err
	}
	ctx = s.logg.WithListingID(ctx, listingID.String())

	updated := *current
	if err := s.applyUpdate(ctx, &updated, input); err != nil {
		return err
	}

	if len(files.Gallery) > 0 {
		existing, err := s.assets.ListGalleryFiles(ctx, listingID)
		if err != nil {
			return err
		}
		remaining := len(existing) - countPresent(existing, files.DeleteGallery)
		if err := s.checkGalleryCap(remaining + len(files.Gallery)); err != nil {
			return err
		}
	}

	written, coverName, err := s.writeNewFiles(ctx, listingID, files)
	if err != nil {
		return err
	}

	oldCover := current.CoverImage
	replaceCover := coverName != nil || files.DeleteCover
	if coverName != nil {
		updated.CoverImage = coverName
	} else if files.DeleteCover {
		updated.CoverImage = nil
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, &updated); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventListingUpdated,
			AggregateType: enums.AggregateListing,
			AggregateID:   listingID,
			Actor:         actorRef(actor),
			Data: payloads.ListingUpdatedEvent{
				ListingID:  listingID,
				OwnerID:    updated.UserID,
				CategoryID: updated.CategoryID,
				Title:      updated.Title,
				Location:   updated.Location,
			},
		})
	})
	if err != nil {
		s.rollbackFiles(ctx, listingID, written)
		return err
	}

	if replaceCover && oldCover != nil && *oldCover != "" {
		s.deleteQuietly(ctx, listingID, enums.AssetRoleCover, *oldCover)
	}
	for _, name := range files.DeleteGallery {
		s.deleteQuietly(ctx, listingID, enums.AssetRoleGallery, name)
	}

	if current.Status.IsPublic() {
		s.invalidateViewports(ctx)
	}
	s.logg.Info(ctx, "listing updated")
	return nil
}

// Delete removes the row first; the row is the source of truth, so asset
// cleanup failures are only logged.
func (s *service) Delete(ctx context.Context, actor Actor, listingID uuid.UUID) error {
	ctx = s.logg.WithListingID(ctx, listingID.String())
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		removed, err := s.repo.WithTx(tx).Delete(ctx, listingID, actor.UserID)
		if err != nil {
			return err
		}
		if !removed {
			return notFound()
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventListingDeleted,
			AggregateType: enums.AggregateListing,
			AggregateID:   listingID,
			Actor:         actorRef(actor),
			Data: payloads.ListingDeletedEvent{
				ListingID: listingID,
				OwnerID:   actor.UserID,
			},
		})
	})
	if err != nil {
		return err
	}

	if err := s.assets.DeleteAllAssets(ctx, listingID); err != nil {
		s.logg.Error(ctx, "listing deleted but assets remain", err)
	}
	s.invalidateViewports(ctx)
	s.logg.Info(ctx, "listing deleted")
	return nil
}

// Summaries serves the public map query, reading through the viewport cache
// when one is configured.
func (s *service) Summaries(ctx context.Context, query ViewportQuery) ([]Summary, error) {
	if s.cache == nil {
		return s.repo.FindPublishedInBounds(ctx, query)
	}

	fingerprint := query.Fingerprint()
	payload, generation, hit, err := s.cache.GetViewport(ctx, fingerprint)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "viewport cache read failed")
		return s.repo.FindPublishedInBounds(ctx, query)
	}
	if hit {
		var cached []Summary
		if err := json.Unmarshal([]byte(payload), &cached); err == nil {
			return cached, nil
		}
		s.logg.Warn(ctx, "discarding undecodable viewport cache entry")
	}

	summaries, err := s.repo.FindPublishedInBounds(ctx, query)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(summaries); err == nil {
		if err := s.cache.SetViewport(ctx, generation, fingerprint, string(encoded), s.cfg.ViewportTTL); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "viewport cache write failed")
		}
	}
	return summaries, nil
}

func (s *service) Owned(ctx context.Context, actor Actor) ([]OwnedSummary, error) {
	return s.repo.FindOwned(ctx, actor.UserID)
}

func (s *service) ForEdit(ctx context.Context, actor Actor, listingID uuid.UUID) (*ListingDTO, error) {
	listing, err := s.repo.FindForEdit(ctx, listingID, actor.UserID)
	if err != nil {
		return nil, err
	}
	gallery, err := s.assets.ListGalleryFiles(ctx, listingID)
	if err != nil {
		return nil, err
	}
	dto := NewListingDTO(listing, gallery)
	return &dto, nil
}

func (s *service) buildListing(ctx context.Context, actor Actor, input CreateInput) (*models.Listing, error) {
	fields := map[string]string{}
	required := map[string]string{
		"title":       input.Title,
		"category_id": input.CategoryID,
		"address":     input.Address,
		"province_id": input.ProvinceID,
		"locality_id": input.LocalityID,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			fields[field] = "required"
		}
	}
	if input.Latitude == nil {
		fields["lat"] = "required"
	}
	if input.Longitude == nil {
		fields["lng"] = "required"
	}

	var categoryID uuid.UUID
	if _, missing := fields["category_id"]; !missing {
		parsed, err := uuid.Parse(strings.TrimSpace(input.CategoryID))
		if err != nil {
			fields["category_id"] = "must be a uuid"
		}
		categoryID = parsed
	}

	var location types.GeographyPoint
	if input.Latitude != nil && input.Longitude != nil {
		point, err := types.NewGeographyPoint(*input.Latitude, *input.Longitude)
		if err != nil {
			fields["location"] = err.Error()
		}
		location = point
	}
	if len(fields) > 0 {
		return nil, validationError(fields)
	}

	listingTypeID, err := s.repo.ResolveListingType(ctx, input.ListingType)
	if err != nil {
		return nil, err
	}

	details := input.Details
	if details == nil {
		details = types.Details{}
	}
	details = details.Merge(map[string]any{
		"provincia_id":  strings.TrimSpace(input.ProvinceID),
		"localidad_id":  strings.TrimSpace(input.LocalityID),
		"province_name": strings.TrimSpace(input.ProvinceName),
		"city_name":     strings.TrimSpace(input.CityName),
	})

	return &models.Listing{
		UserID:        actor.UserID,
		Title:         strings.TrimSpace(input.Title),
		CategoryID:    categoryID,
		ListingTypeID: listingTypeID,
		Location:      location,
		Address:       strings.TrimSpace(input.Address),
		City:          optionalString(input.CityName),
		Province:      optionalString(input.ProvinceName),
		Details:       details,
		Status:        enums.ListingStatusPending,
	}, nil
}

func (s *service) applyUpdate(ctx context.Context, listing *models.Listing, input UpdateInput) error {
	fields := map[string]string{}
	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			fields["title"] = "must not be blank"
		}
		listing.Title = strings.TrimSpace(*input.Title)
	}
	if input.Address != nil {
		if strings.TrimSpace(*input.Address) == "" {
			fields["address"] = "must not be blank"
		}
		listing.Address = strings.TrimSpace(*input.Address)
	}
	if input.CategoryID != nil {
		parsed, err := uuid.Parse(strings.TrimSpace(*input.CategoryID))
		if err != nil {
			fields["category_id"] = "must be a uuid"
		}
		listing.CategoryID = parsed
	}
	switch {
	case input.Latitude != nil && input.Longitude != nil:
		point, err := types.NewGeographyPoint(*input.Latitude, *input.Longitude)
		if err != nil {
			fields["location"] = err.Error()
		}
		listing.Location = point
	case input.Latitude != nil || input.Longitude != nil:
		fields["location"] = "lat and lng must be supplied together"
	}
	if len(fields) > 0 {
		return validationError(fields)
	}

	if input.ListingType != nil {
		listingTypeID, err := s.repo.ResolveListingType(ctx, *input.ListingType)
		if err != nil {
			return err
		}
		listing.ListingTypeID = listingTypeID
	}
	if input.CityName != nil {
		listing.City = optionalString(*input.CityName)
	}
	if input.ProvinceName != nil {
		listing.Province = optionalString(*input.ProvinceName)
	}

	details := listing.Details
	if details == nil {
		details = types.Details{}
	}
	if input.Details != nil {
		details = input.Details.Merge(regionExtras(details))
	}
	listing.Details = details.Merge(map[string]any{
		"provincia_id":  trimmedOrEmpty(input.ProvinceID),
		"localidad_id":  trimmedOrEmpty(input.LocalityID),
		"province_name": trimmedOrEmpty(input.ProvinceName),
		"city_name":     trimmedOrEmpty(input.CityName),
	})
	return nil
}

var regionKeys = []string{"provincia_id", "localidad_id", "province_name", "city_name"}

// regionExtras returns the region keys of details. They are owned by the
// service and survive a client replacing the rest of the blob.
func regionExtras(details types.Details) map[string]any {
	out := make(map[string]any, len(regionKeys))
	for _, key := range regionKeys {
		if v, ok := details[key]; ok {
			out[key] = v
		}
	}
	return out
}

func (s *service) checkGalleryCap(total int) error {
	if s.cfg.MaxGalleryFiles > 0 && total > s.cfg.MaxGalleryFiles {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d gallery images are allowed", s.cfg.MaxGalleryFiles)).
			WithDetails(map[string]any{"gallery_images": total})
	}
	return nil
}

// stage copies the uploads into a fresh staging area. Nothing is staged, and
// no staging area is created, when there are no uploads.
func (s *service) stage(ctx context.Context, files FileChanges) (string, *string, error) {
	if files.Cover == nil && len(files.Gallery) == 0 {
		return "", nil, nil
	}
	stagingID, err := s.assets.BeginStaging(ctx)
	if err != nil {
		return "", nil, err
	}

	var coverName *string
	if files.Cover != nil {
		name, err := s.assets.StageFile(ctx, stagingID, enums.AssetRoleCover, files.Cover.Data, files.Cover.Name)
		if err != nil {
			s.discard(ctx, stagingID)
			return "", nil, err
		}
		coverName = &name
	}
	for _, upload := range files.Gallery {
		if _, err := s.assets.StageFile(ctx, stagingID, enums.AssetRoleGallery, upload.Data, upload.Name); err != nil {
			s.discard(ctx, stagingID)
			return "", nil, err
		}
	}
	return stagingID, coverName, nil
}

type writtenFile struct {
	role enums.AssetRole
	name string
}

func (s *service) writeNewFiles(ctx context.Context, listingID uuid.UUID, files FileChanges) ([]writtenFile, *string, error) {
	var written []writtenFile
	var coverName *string
	if files.Cover != nil {
		name, err := s.assets.PutAsset(ctx, listingID, enums.AssetRoleCover, files.Cover.Data, files.Cover.Name)
		if err != nil {
			return nil, nil, err
		}
		written = append(written, writtenFile{role: enums.AssetRoleCover, name: name})
		coverName = &name
	}
	for _, upload := range files.Gallery {
		name, err := s.assets.PutAsset(ctx, listingID, enums.AssetRoleGallery, upload.Data, upload.Name)
		if err != nil {
			s.rollbackFiles(ctx, listingID, written)
			return nil, nil, err
		}
		written = append(written, writtenFile{role: enums.AssetRoleGallery, name: name})
	}
	return written, coverName, nil
}

func (s *service) rollbackFiles(ctx context.Context, listingID uuid.UUID, written []writtenFile) {
	for _, file := range written {
		s.deleteQuietly(ctx, listingID, file.role, file.name)
	}
}

func (s *service) deleteQuietly(ctx context.Context, listingID uuid.UUID, role enums.AssetRole, name string) {
	if err := s.assets.DeleteAsset(ctx, listingID, role, name); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"file": name, "role": role.String(), "error": err.Error()})
		s.logg.Warn(logCtx, "asset cleanup failed")
	}
}

func (s *service) discard(ctx context.Context, stagingID string) {
	if stagingID == "" {
		return
	}
	if err := s.assets.DiscardStaging(ctx, stagingID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "staging discard failed")
	}
}

func (s *service) invalidateViewports(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateViewports(ctx); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "viewport cache invalidation failed")
	}
}

func actorRef(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}

func validationError(fields map[string]string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid listing").WithDetails(fields)
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func trimmedOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func countPresent(existing, names []string) int {
	set := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		set[name] = struct{}{}
	}
	count := 0
	for _, name := range names {
		if _, ok := set[name]; ok {
			count++
			delete(set, name)
		}
	}
	return count
}
