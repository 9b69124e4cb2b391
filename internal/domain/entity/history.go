package entity

import (
	"time"

	"github.com/garyjia/doc-approval/internal/domain/workflow"
)

// TransitionRecord is one immutable audit trail entry
type TransitionRecord struct {
	ID         int64          `json:"id"`
	DocumentID int64          `json:"document_id"`
	UserID     int64          `json:"user_id"`
	Action     ActionTag      `json:"action"`
	OldStatus  workflow.State `json:"old_status"`
	NewStatus  workflow.State `json:"new_status"`
	Comment    string         `json:"comment,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`

	ActorName string `json:"actor_name,omitempty"`
}

// ActionTagFor returns the audit tag for trigger landing on target
func ActionTagFor(trigger workflow.Trigger, target workflow.State) ActionTag {
	switch trigger {
	case workflow.TriggerSubmit:
		return ActionSubmitted
	case workflow.TriggerApproveByManager:
		if target == workflow.StatePendingFinanceApproval {
			return ActionApprovedByManager
		}
		return ActionApproved
	case workflow.TriggerRejectByManager:
		return ActionRejectedByManager
	case workflow.TriggerApproveByFinance:
		return ActionApprovedByFinance
	case workflow.TriggerRejectByFinance:
		return ActionRejectedByFinance
	}
	return ActionTag(trigger)
}
