package listings

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/geodirectory-backend/pkg/db/models"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	"github.com/angelmondragon/geodirectory-backend/pkg/types"
)

// Summary is the marker payload returned by the public map query.
type Summary struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	MarkerIconSlug string    `json:"marker_icon_slug"`
}

// OwnedSummary is a row of the owner's dashboard.
type OwnedSummary struct {
	ID           uuid.UUID           `json:"id"`
	Title        string              `json:"title"`
	Address      string              `json:"address"`
	City         *string             `json:"city,omitempty"`
	CategoryName string              `json:"category_name"`
	Status       enums.ListingStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
}

// QueueItem is a row of the moderation queue.
type QueueItem struct {
	ID           uuid.UUID           `json:"id"`
	OwnerID      uuid.UUID           `json:"owner_id"`
	Title        string              `json:"title"`
	Address      string              `json:"address"`
	City         *string             `json:"city,omitempty"`
	CategoryName string              `json:"category_name"`
	Status       enums.ListingStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
}

// QueuePage is one page of the moderation queue.
type QueuePage struct {
	Items      []QueueItem `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// ListingDTO is the full listing as shown on the owner's edit form.
type ListingDTO struct {
	ID            uuid.UUID           `json:"id"`
	Title         string              `json:"title"`
	CategoryID    uuid.UUID           `json:"category_id"`
	ListingTypeID *uuid.UUID          `json:"listing_type_id,omitempty"`
	Latitude      float64             `json:"latitude"`
	Longitude     float64             `json:"longitude"`
	Address       string              `json:"address"`
	City          *string             `json:"city,omitempty"`
	Province      *string             `json:"province,omitempty"`
	Details       types.Details       `json:"details"`
	CoverImage    *string             `json:"cover_image,omitempty"`
	GalleryImages []string            `json:"gallery_images"`
	Status        enums.ListingStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// NewListingDTO maps a stored listing plus its gallery listing into the edit payload.
func NewListingDTO(listing *models.Listing, gallery []string) ListingDTO {
	if gallery == nil {
		gallery = []string{}
	}
	details := listing.Details
	if details == nil {
		details = types.Details{}
	}
	return ListingDTO{
		ID:            listing.ID,
		Title:         listing.Title,
		CategoryID:    listing.CategoryID,
		ListingTypeID: listing.ListingTypeID,
		Latitude:      listing.Location.Lat,
		Longitude:     listing.Location.Lng,
		Address:       listing.Address,
		City:          listing.City,
		Province:      listing.Province,
		Details:       details,
		CoverImage:    listing.CoverImage,
		GalleryImages: gallery,
		Status:        listing.Status,
		CreatedAt:     listing.CreatedAt,
		UpdatedAt:     listing.UpdatedAt,
	}
}

// Upload is one file received from a client.
type Upload struct {
	Name string
	Data []byte
}

// CreateInput carries the fields of a new listing. Pointers distinguish absent
// numeric fields from zero.
type CreateInput struct {
	Title        string
	CategoryID   string
	ListingType  string
	Latitude     *float64
	Longitude    *float64
	Address      string
	ProvinceID   string
	LocalityID   string
	ProvinceName string
	CityName     string
	Details      types.Details
}

// CreateResult is returned on success and on partial success.
type CreateResult struct {
	ListingID uuid.UUID `json:"listing_id"`
}

// UpdateInput carries an owner edit. Nil fields are left untouched.
type UpdateInput struct {
	Title        *string
	CategoryID   *string
	ListingType  *string
	Latitude     *float64
	Longitude    *float64
	Address      *string
	ProvinceID   *string
	LocalityID   *string
	ProvinceName *string
	CityName     *string
	Details      types.Details
}

// FileChanges describes the asset side of an update.
type FileChanges struct {
	Cover         *Upload
	DeleteCover   bool
	Gallery       []Upload
	DeleteGallery []string
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}
