package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateListing OutboxAggregateType = "listing"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateListing,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType names a domain event emitted through the outbox.
type OutboxEventType string

const (
	EventListingCreated       OutboxEventType = "listing_created"
	EventListingUpdated       OutboxEventType = "listing_updated"
	EventListingStatusChanged OutboxEventType = "listing_status_changed"
	EventListingDeleted       OutboxEventType = "listing_deleted"
)

var validEventTypes = []OutboxEventType{
	EventListingCreated,
	EventListingUpdated,
	EventListingStatusChanged,
	EventListingDeleted,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
