package entity

// Role is the organisational role of a user
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleFinance Role = "finance"
	RoleAdmin   Role = "admin"
)

// IsValid returns true for the four known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleManager, RoleFinance, RoleAdmin:
		return true
	}
	return false
}

// ActionTag labels a transition record
type ActionTag string

const (
	ActionSubmitted         ActionTag = "submitted"
	ActionApprovedByManager ActionTag = "approved_by_manager" // manager approved, routed to finance
	ActionApproved          ActionTag = "approved"            // manager approved below the finance threshold
	ActionRejectedByManager ActionTag = "rejected_by_manager"
	ActionApprovedByFinance ActionTag = "approved_by_finance"
	ActionRejectedByFinance ActionTag = "rejected_by_finance"
)

// NotificationKind classifies an in-app notification
type NotificationKind string

const (
	NotificationPendingApproval NotificationKind = "pending_approval"
	NotificationApproved        NotificationKind = "approved"
	NotificationRejected        NotificationKind = "rejected"
)

// Pagination defaults for listings
const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// Draft field limits
const (
	MaxTitleLength   = 255
	MaxContentLength = 5000
)
