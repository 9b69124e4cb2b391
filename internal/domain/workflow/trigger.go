package workflow

// Trigger represents an action that can cause a status transition
type Trigger string

const (
	TriggerSubmit           Trigger = "submit"
	TriggerApproveByManager Trigger = "approve_by_manager"
	TriggerRejectByManager  Trigger = "reject_by_manager"
	TriggerApproveByFinance Trigger = "approve_by_finance"
	TriggerRejectByFinance  Trigger = "reject_by_finance"
)

// IsValid returns true for the five known actions
func (t Trigger) IsValid() bool {
	switch t {
	case TriggerSubmit, TriggerApproveByManager, TriggerRejectByManager,
		TriggerApproveByFinance, TriggerRejectByFinance:
		return true
	}
	return false
}

// IsRejection reports whether the trigger rejects the document.
// Rejections must carry a comment.
func (t Trigger) IsRejection() bool {
	return t == TriggerRejectByManager || t == TriggerRejectByFinance
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
