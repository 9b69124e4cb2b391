package entity

import "time"

// User is a person acting on documents. Read-only to the workflow core.
type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Password   string    `json:"-"`
	Role       Role      `json:"role"`
	ManagerID  *int64    `json:"manager_id,omitempty"`
	LarkOpenID string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (u *User) IsManager() bool { return u.Role == RoleManager }
func (u *User) IsFinance() bool { return u.Role == RoleFinance }
func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }

// HasManager reports whether the user reports to someone
func (u *User) HasManager() bool {
	return u.ManagerID != nil
}

// Manages reports whether u is the manager referenced by managerID
func (u *User) Manages(managerID *int64) bool {
	return managerID != nil && *managerID == u.ID
}
