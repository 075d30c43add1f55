package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	"github.com/angelmondragon/geodirectory-backend/pkg/types"
)

// Listing is a geolocated directory entry. Location is always written through
// types.GeographyPoint so the spatial index stays usable.
type Listing struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	Title         string               `gorm:"column:title;not null"`
	CategoryID    uuid.UUID            `gorm:"column:category_id;type:uuid;not null"`
	ListingTypeID *uuid.UUID           `gorm:"column:listing_type_id;type:uuid"`
	Location      types.GeographyPoint `gorm:"column:location;type:geography(Point,4326);not null"`
	Address       string               `gorm:"column:address;not null"`
	City          *string              `gorm:"column:city"`
	Province      *string              `gorm:"column:province"`
	Details       types.Details        `gorm:"column:details;type:jsonb;not null"`
	CoverImage    *string              `gorm:"column:cover_image_path"`
	Status        enums.ListingStatus  `gorm:"column:status;not null;default:pending"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *Listing) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Details == nil {
		l.Details = types.Details{}
	}
	return nil
}
