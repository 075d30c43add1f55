package enums

import "fmt"

// AssetRole is the slot an image occupies on a listing. The value doubles as
// the directory segment under the listing's namespace.
type AssetRole string

const (
	AssetRoleCover   AssetRole = "coverImage"
	AssetRoleGallery AssetRole = "galleryImages"
)

var validAssetRoles = []AssetRole{
	AssetRoleCover,
	AssetRoleGallery,
}

// AssetRoles lists every role in a stable order.
func AssetRoles() []AssetRole {
	out := make([]AssetRole, len(validAssetRoles))
	copy(out, validAssetRoles)
	return out
}

func (r AssetRole) String() string {
	return string(r)
}

func (r AssetRole) IsValid() bool {
	for _, candidate := range validAssetRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAssetRole converts raw input into an AssetRole.
func ParseAssetRole(value string) (AssetRole, error) {
	for _, candidate := range validAssetRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid asset role %q", value)
}
