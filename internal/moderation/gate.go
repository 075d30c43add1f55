package moderation

import "github.com/angelmondragon/geodirectory-backend/pkg/enums"

// CanChangeStatus is the single authorization check for status mutation and
// for reading the moderation queue.
func CanChangeStatus(role enums.UserRole) bool {
	return role == enums.UserRoleAdmin
}
