package enums

import "slices"

// Role is the platform-level role carried in access tokens.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
	RoleCourier    Role = "courier"
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleSupport    Role = "support"
	RoleAccounting Role = "accounting"
	RoleDeveloper  Role = "developer"
)

var validRoles = []Role{
	RoleCustomer,
	RoleRestaurant,
	RoleCourier,
	RoleAdmin,
	RoleSupervisor,
	RoleSupport,
	RoleAccounting,
	RoleDeveloper,
}

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return known(r, validRoles)
}

var staffRoles = []Role{RoleAdmin, RoleSupervisor, RoleSupport, RoleAccounting, RoleDeveloper}

// IsStaff reports whether the role belongs to the back office.
func (r Role) IsStaff() bool {
	return known(r, staffRoles)
}

// WithStaff returns roles followed by every back-office role, for route
// guards that let staff step in on a party's behalf.
func WithStaff(roles ...Role) []Role {
	return append(slices.Clone(roles), staffRoles...)
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	return parse("role", value, validRoles)
}
