package enums

import "fmt"

// ListingStatus tracks a listing through moderation.
type ListingStatus string

const (
	ListingStatusDraft     ListingStatus = "draft"
	ListingStatusPending   ListingStatus = "pending"
	ListingStatusPublished ListingStatus = "published"
	ListingStatusRejected  ListingStatus = "rejected"
)

var validListingStatuses = []ListingStatus{
	ListingStatusDraft,
	ListingStatusPending,
	ListingStatusPublished,
	ListingStatusRejected,
}

// moderationTargets are the statuses an admin may set. Draft is never a target.
var moderationTargets = []ListingStatus{
	ListingStatusPublished,
	ListingStatusRejected,
	ListingStatusPending,
}

// String implements fmt.Stringer.
func (s ListingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ListingStatus.
func (s ListingStatus) IsValid() bool {
	for _, candidate := range validListingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsModerationTarget reports whether the status can be set through moderation.
func (s ListingStatus) IsModerationTarget() bool {
	for _, candidate := range moderationTargets {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsPublic reports whether listings in this status are visible anonymously.
func (s ListingStatus) IsPublic() bool {
	return s == ListingStatusPublished
}

// ParseListingStatus converts raw input into a ListingStatus.
func ParseListingStatus(value string) (ListingStatus, error) {
	for _, candidate := range validListingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing status %q", value)
}
