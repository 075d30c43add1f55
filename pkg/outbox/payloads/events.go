package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	"github.com/angelmondragon/geodirectory-backend/pkg/types"
)

// ListingCreatedEvent is emitted when a listing row is first inserted.
type ListingCreatedEvent struct {
	ListingID  uuid.UUID            `json:"listing_id"`
	OwnerID    uuid.UUID            `json:"owner_id"`
	CategoryID uuid.UUID            `json:"category_id"`
	Title      string               `json:"title"`
	Location   types.GeographyPoint `json:"location"`
	Status     enums.ListingStatus  `json:"status"`
}

// ListingUpdatedEvent is emitted after an owner edit.
type ListingUpdatedEvent struct {
	ListingID  uuid.UUID            `json:"listing_id"`
	OwnerID    uuid.UUID            `json:"owner_id"`
	CategoryID uuid.UUID            `json:"category_id"`
	Title      string               `json:"title"`
	Location   types.GeographyPoint `json:"location"`
}

// ListingStatusChangedEvent is emitted by moderation.
type ListingStatusChangedEvent struct {
	ListingID      uuid.UUID           `json:"listing_id"`
	PreviousStatus enums.ListingStatus `json:"previous_status"`
	Status         enums.ListingStatus `json:"status"`
	ModeratorID    uuid.UUID           `json:"moderator_id"`
}

// ListingDeletedEvent is emitted when the owner removes a listing.
type ListingDeletedEvent struct {
	ListingID uuid.UUID `json:"listing_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
}
