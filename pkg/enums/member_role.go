package enums

import "fmt"

// MemberRole is the role carried in access tokens. Admins may terminate any
// store's shift; every other role works inside its active store.
type MemberRole string

const (
	MemberRoleOwner   MemberRole = "owner"
	MemberRoleAdmin   MemberRole = "admin"
	MemberRoleManager MemberRole = "manager"
	MemberRoleCashier MemberRole = "cashier"
)

var validMemberRoles = []MemberRole{
	MemberRoleOwner,
	MemberRoleAdmin,
	MemberRoleManager,
	MemberRoleCashier,
}

// String implements fmt.Stringer.
func (m MemberRole) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MemberRole.
func (m MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsBackOffice reports whether the role may read store books such as the
// ledger mirror. Cashiers only run their own till.
func (m MemberRole) IsBackOffice() bool {
	return m == MemberRoleOwner || m == MemberRoleAdmin || m == MemberRoleManager
}

// BackOfficeRoleNames lists the back-office roles as token strings.
func BackOfficeRoleNames() []string {
	names := []string{}
	for _, role := range validMemberRoles {
		if role.IsBackOffice() {
			names = append(names, string(role))
		}
	}
	return names
}

// ParseMemberRole converts raw input into a MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}
