package workflow

import (
	"context"

	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/event"
	domainwf "github.com/garyjia/doc-approval/internal/domain/workflow"
)

// WorkflowEngine applies approval actions to documents
type WorkflowEngine interface {
	// Apply performs action on doc as actor. The status change and its audit
	// record commit together; one status_changed event is published after commit.
	Apply(ctx context.Context, doc *entity.Document, actor *entity.User, action domainwf.Trigger, comment string) (*entity.Document, error)

	// AvailableActions lists the actions actor may currently take on doc
	AvailableActions(ctx context.Context, doc *entity.Document, actor *entity.User) []domainwf.Trigger
}

// AuditRecorder appends the audit record of a transition inside the caller's transaction
type AuditRecorder interface {
	Record(ctx context.Context, t *event.Transition) (*entity.TransitionRecord, error)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
