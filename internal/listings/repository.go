package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/geodirectory-backend/pkg/db"
	"github.com/angelmondragon/geodirectory-backend/pkg/db/models"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/pagination"
	"github.com/angelmondragon/geodirectory-backend/pkg/types"
)

// Repository persists listings. Owner-scoped methods return NOT_FOUND for rows
// that exist but belong to someone else.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Insert stores a new listing. The status is always pending regardless of
// what the caller set.
func (r *Repository) Insert(ctx context.Context, listing *models.Listing) (uuid.UUID, error) {
	listing.Status = enums.ListingStatusPending
	if listing.Details == nil {
		listing.Details = types.Details{}
	}
	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		return uuid.Nil, mapWriteError(err)
	}
	return listing.ID, nil
}

// Update writes every owner-editable column of listing. The status column is
// never part of the statement.
func (r *Repository) Update(ctx context.Context, listing *models.Listing) error {
	if listing.Details == nil {
		listing.Details = types.Details{}
	}
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND user_id = ?", listing.ID, listing.UserID).
		Updates(map[string]any{
			"title":            listing.Title,
			"category_id":      listing.CategoryID,
			"listing_type_id":  listing.ListingTypeID,
			"location":         listing.Location,
			"address":          listing.Address,
			"city":             listing.City,
			"province":         listing.Province,
			"details":          listing.Details,
			"cover_image_path": listing.CoverImage,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return mapWriteError(res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound()
	}
	return nil
}

type summaryRow struct {
	ID             uuid.UUID
	Title          string
	Location       types.GeographyPoint
	MarkerIconSlug string
}

// FindPublishedInBounds runs the public map query: published rows only,
// optionally narrowed by viewport and title search, capped at MapResultLimit.
func (r *Repository) FindPublishedInBounds(ctx context.Context, query ViewportQuery) ([]Summary, error) {
	q := r.db.WithContext(ctx).
		Table("listings").
		Select("listings.id, listings.title, listings.location, COALESCE(categories.marker_icon_slug, ?) AS marker_icon_slug", models.DefaultMarkerIcon).
		Joins("LEFT JOIN categories ON categories.id = listings.category_id").
		Where("listings.status = ?", enums.ListingStatusPublished)

	if query.BBox != nil {
		predicate, args := db.BBoxPredicate(r.db, "listings.location", *query.BBox)
		q = q.Where(predicate, args...)
	}
	if query.Search != "" {
		q = q.Where(`LOWER(listings.title) LIKE ? ESCAPE '\'`, containsPattern(query.Search))
	}

	var rows []summaryRow
	if err := q.Order("listings.id ASC").Limit(MapResultLimit).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, Summary{
			ID:             row.ID,
			Title:          row.Title,
			Latitude:       row.Location.Lat,
			Longitude:      row.Location.Lng,
			MarkerIconSlug: row.MarkerIconSlug,
		})
	}
	return out, nil
}

// FindOwned returns every listing of the owner, newest first.
func (r *Repository) FindOwned(ctx context.Context, ownerID uuid.UUID) ([]OwnedSummary, error) {
	var rows []OwnedSummary
	err := r.db.WithContext(ctx).
		Table("listings").
		Select("listings.id, listings.title, listings.address, listings.city, categories.name AS category_name, listings.status, listings.created_at").
		Joins("JOIN categories ON categories.id = listings.category_id").
		Where("listings.user_id = ?", ownerID).
		Order("listings.created_at DESC, listings.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []OwnedSummary{}
	}
	return rows, nil
}

// FindForEdit loads a listing only when ownerID owns it.
func (r *Repository) FindForEdit(ctx context.Context, listingID, ownerID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).First(&listing, "id = ? AND user_id = ?", listingID, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound()
		}
		return nil, err
	}
	return &listing, nil
}

// FindByID loads a listing regardless of owner.
func (r *Repository) FindByID(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound()
		}
		return nil, err
	}
	return &listing, nil
}

// SetStatus moves a listing to one of the moderation targets.
func (r *Repository) SetStatus(ctx context.Context, listingID uuid.UUID, status enums.ListingStatus) error {
	if !status.IsModerationTarget() {
		return pkgerrors.New(pkgerrors.CodeInvalidStatus, "status must be published, rejected or pending").
			WithDetails(map[string]any{"status": string(status)})
	}
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", listingID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound()
	}
	return nil
}

// Delete removes the owner's listing and reports whether a row was removed.
func (r *Repository) Delete(ctx context.Context, listingID, ownerID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", listingID, ownerID).
		Delete(&models.Listing{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IDsOwnedBy returns the ids of every listing ownerID holds, whatever the
// status.
func (r *Repository) IDsOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("user_id = ?", ownerID).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListByStatus pages through listings in status, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status enums.ListingStatus, params pagination.Params) (QueuePage, error) {
	limit, cursor, err := params.Window()
	if err != nil {
		return QueuePage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	q := r.db.WithContext(ctx).
		Table("listings").
		Select("listings.id, listings.user_id AS owner_id, listings.title, listings.address, listings.city, categories.name AS category_name, listings.status, listings.created_at").
		Joins("JOIN categories ON categories.id = listings.category_id").
		Where("listings.status = ?", status)
	if cursor != nil {
		q = q.Where("(listings.created_at > ?) OR (listings.created_at = ? AND listings.id > ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []QueueItem
	if err := q.Order("listings.created_at ASC, listings.id ASC").
		Limit(limit + 1).
		Scan(&rows).Error; err != nil {
		return QueuePage{}, err
	}

	items, more := pagination.Split(rows, limit)
	page := QueuePage{Items: items}
	if more {
		last := items[len(items)-1]
		page.NextCursor = pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	if page.Items == nil {
		page.Items = []QueueItem{}
	}
	return page, nil
}

// ResolveListingType accepts a listing type id or slug. Blank input resolves
// to no type.
func (r *Repository) ResolveListingType(ctx context.Context, idOrSlug string) (*uuid.UUID, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, nil
	}

	var lt models.ListingType
	q := r.db.WithContext(ctx)
	var err error
	if id, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		err = q.First(&lt, "id = ?", id).Error
	} else {
		err = q.First(&lt, "slug = ?", strings.ToLower(idOrSlug)).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown listing type").
				WithDetails(map[string]any{"listingTypeId": idOrSlug})
		}
		return nil, err
	}
	return &lt.ID, nil
}

func notFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
}

// mapWriteError turns referential failures into validation errors so an
// unknown category reads as bad input rather than a server fault.
func mapWriteError(err error) error {
	if db.IsForeignKeyViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "referenced category or listing type does not exist")
	}
	return err
}
