package categories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/geodirectory-backend/pkg/db/models"
)

// CategoryDTO is the public shape of a map category.
type CategoryDTO struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	ParentID       *uuid.UUID `json:"parent_id,omitempty"`
	MarkerIconSlug string     `json:"marker_icon_slug"`
	IconWidth      *int       `json:"icon_width,omitempty"`
	IconHeight     *int       `json:"icon_height,omitempty"`
}

// ListingTypeDTO is the public shape of a listing type.
type ListingTypeDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// Repository reads the category and listing type lookup tables.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListCategories returns every category ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	var rows []models.Category
	if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		marker := row.MarkerIconSlug
		if marker == "" {
			marker = models.DefaultMarkerIcon
		}
		out = append(out, CategoryDTO{
			ID:             row.ID,
			Name:           row.Name,
			Slug:           row.Slug,
			ParentID:       row.ParentID,
			MarkerIconSlug: marker,
			IconWidth:      row.IconWidth,
			IconHeight:     row.IconHeight,
		})
	}
	return out, nil
}

// ListListingTypes returns every listing type ordered by name.
func (r *Repository) ListListingTypes(ctx context.Context) ([]ListingTypeDTO, error) {
	var rows []models.ListingType
	if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ListingTypeDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ListingTypeDTO{ID: row.ID, Name: row.Name, Slug: row.Slug})
	}
	return out, nil
}
