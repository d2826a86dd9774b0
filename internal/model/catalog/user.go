package catalog

// RoleAdmin marks back-office users.
const RoleAdmin = "admin"

// User is the authenticated storefront user attached to a session.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// IsAdmin reports whether u may see system-wide statistics.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// AdminStats are system-wide figures only admins may read.
type AdminStats struct {
	TotalUsers    int     `json:"totalUsers"`
	TotalBookings int     `json:"totalBookings"`
	TotalRevenue  float64 `json:"totalRevenue"`
}
