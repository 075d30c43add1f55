package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultMarkerIcon is used when a category has no icon of its own.
const DefaultMarkerIcon = "default-pin"

// Category is a map tag. Top-level categories have no parent; children point
// at exactly one top-level category and block its deletion.
type Category struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name           string     `gorm:"column:name;not null"`
	Slug           string     `gorm:"column:slug;not null;uniqueIndex"`
	ParentID       *uuid.UUID `gorm:"column:parent_id;type:uuid"`
	MarkerIconSlug string     `gorm:"column:marker_icon_slug;not null;default:default-pin"`
	IconWidth      *int       `gorm:"column:icon_width"`
	IconHeight     *int       `gorm:"column:icon_height"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.MarkerIconSlug == "" {
		c.MarkerIconSlug = DefaultMarkerIcon
	}
	return nil
}

// ListingType selects which shape a listing's details follow.
type ListingType struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name string    `gorm:"column:name;not null"`
	Slug string    `gorm:"column:slug;not null;uniqueIndex"`
}

func (t *ListingType) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
