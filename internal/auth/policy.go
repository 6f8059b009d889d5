package auth

import "errors"

var ErrPermissionDenied = errors.New("permission denied")

// CanVerify reports whether u may set verification outcomes and open the
// reports-management view.
func CanVerify(u *User) bool {
	if u == nil {
		return false
	}
	switch u.Role {
	case RoleResearcher, RoleAdministrator, RoleGovernmentOfficial:
		return true
	case RoleCitizen:
		return false
	default:
		return false
	}
}

// IsAdmin gates the admin activity view.
func IsAdmin(u *User) bool {
	if u == nil {
		return false
	}
	switch u.Role {
	case RoleAdministrator:
		return true
	case RoleCitizen, RoleResearcher, RoleGovernmentOfficial:
		return false
	default:
		return false
	}
}
