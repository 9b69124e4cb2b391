// Package policy decides what an actor may do with a document.
// Decisions are pure functions of the actor and the document as loaded.
package policy

import (
	"fmt"

	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/workflow"
)

// Permission names an operation on a document
type Permission string

const (
	PermView             Permission = "view"
	PermCreate           Permission = "create"
	PermUpdate           Permission = "update"
	PermDelete           Permission = "delete"
	PermSubmit           Permission = "submit"
	PermApproveAsManager Permission = "approve_as_manager"
	PermRejectAsManager  Permission = "reject_as_manager"
	PermApproveAsFinance Permission = "approve_as_finance"
	PermRejectAsFinance  Permission = "reject_as_finance"
	PermDownloadFile     Permission = "download_file"
)

// Decision is the outcome of a permission check
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...interface{}) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// PermissionFor maps a workflow action to the permission guarding it
func PermissionFor(action workflow.Trigger) (Permission, bool) {
	switch action {
	case workflow.TriggerSubmit:
		return PermSubmit, true
	case workflow.TriggerApproveByManager:
		return PermApproveAsManager, true
	case workflow.TriggerRejectByManager:
		return PermRejectAsManager, true
	case workflow.TriggerApproveByFinance:
		return PermApproveAsFinance, true
	case workflow.TriggerRejectByFinance:
		return PermRejectAsFinance, true
	}
	return "", false
}

// Authorize evaluates perm for actor against doc. doc may be nil only for PermCreate.
func Authorize(actor *entity.User, doc *entity.Document, perm Permission) Decision {
	if actor == nil {
		return deny("no authenticated actor")
	}
	if perm == PermCreate {
		return allow()
	}
	if doc == nil {
		return deny("no document")
	}

	switch perm {
	case PermView, PermDownloadFile:
		return canView(actor, doc)
	case PermUpdate, PermDelete:
		return ownerDraft(actor, doc)
	case PermSubmit:
		if d := ownerDraft(actor, doc); !d.Allowed {
			return d
		}
		if !actor.HasManager() {
			return deny("submitting requires an assigned manager")
		}
		return allow()
	case PermApproveAsManager, PermRejectAsManager:
		return asManager(actor, doc)
	case PermApproveAsFinance, PermRejectAsFinance:
		return asFinance(actor, doc)
	}
	return deny("unknown permission %q", perm)
}

// Can is a boolean shorthand for Authorize
func Can(actor *entity.User, doc *entity.Document, perm Permission) bool {
	return Authorize(actor, doc, perm).Allowed
}

func canView(actor *entity.User, doc *entity.Document) Decision {
	if doc.IsOwnedBy(actor.ID) || actor.Manages(doc.OwnerManagerID) {
		return allow()
	}
	if actor.IsFinance() || actor.IsAdmin() {
		return allow()
	}
	return deny("only the owner, the owner's manager, finance or admin may view")
}

func ownerDraft(actor *entity.User, doc *entity.Document) Decision {
	if !doc.IsOwnedBy(actor.ID) {
		return deny("only the owner may change the document")
	}
	if !doc.Status.IsEditable() {
		return deny("document is %s, only drafts can be changed", doc.Status)
	}
	return allow()
}

func asManager(actor *entity.User, doc *entity.Document) Decision {
	if !actor.IsManager() {
		return deny("requires role %s", entity.RoleManager)
	}
	if !actor.Manages(doc.OwnerManagerID) {
		return deny("requires being the owner's manager")
	}
	if doc.Status != workflow.StatePendingManagerApproval {
		return deny("document is %s, expected %s", doc.Status, workflow.StatePendingManagerApproval)
	}
	return allow()
}

func asFinance(actor *entity.User, doc *entity.Document) Decision {
	if !actor.IsFinance() {
		return deny("requires role %s", entity.RoleFinance)
	}
	if doc.Status != workflow.StatePendingFinanceApproval {
		return deny("document is %s, expected %s", doc.Status, workflow.StatePendingFinanceApproval)
	}
	return allow()
}

// Hints are per-document flags for front ends
type Hints struct {
	CanEdit     bool `json:"can_edit"`
	CanDelete   bool `json:"can_delete"`
	CanSubmit   bool `json:"can_submit"`
	CanApprove  bool `json:"can_approve"`
	CanReject   bool `json:"can_reject"`
	CanDownload bool `json:"can_download"`
	IsFinal     bool `json:"is_final"`
}

// HintsFor computes the flags actor has on doc
func HintsFor(actor *entity.User, doc *entity.Document) Hints {
	return Hints{
		CanEdit:     Can(actor, doc, PermUpdate),
		CanDelete:   Can(actor, doc, PermDelete),
		CanSubmit:   Can(actor, doc, PermSubmit),
		CanApprove:  Can(actor, doc, PermApproveAsManager) || Can(actor, doc, PermApproveAsFinance),
		CanReject:   Can(actor, doc, PermRejectAsManager) || Can(actor, doc, PermRejectAsFinance),
		CanDownload: doc.HasAttachment() && Can(actor, doc, PermDownloadFile),
		IsFinal:     doc.Status.IsFinal(),
	}
}
