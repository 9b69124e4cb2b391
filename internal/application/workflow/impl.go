package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/doc-approval/internal/application/dispatcher"
	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/event"
	"github.com/garyjia/doc-approval/internal/domain/policy"
	domainwf "github.com/garyjia/doc-approval/internal/domain/workflow"
)

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	docs       port.DocumentRepository
	audit      AuditRecorder
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
	onFailure  func(action, kind string)
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithFailureObserver is called with the action and error kind of every refused Apply
func WithFailureObserver(fn func(action, kind string)) EngineOption {
	return func(e *engineImpl) {
		e.onFailure = fn
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	docs port.DocumentRepository,
	audit AuditRecorder,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		docs:      docs,
		audit:     audit,
		txManager: txManager,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Apply implements WorkflowEngine
func (e *engineImpl) Apply(ctx context.Context, doc *entity.Document, actor *entity.User, action domainwf.Trigger, comment string) (*entity.Document, error) {
	if doc == nil {
		return nil, e.fail(action, &entity.WorkflowError{Kind: entity.ErrNotFound, Action: action, Reason: "no document"})
	}
	if !action.IsValid() {
		return nil, e.fail(action, entity.NewWorkflowError(entity.ErrIllegalTransition, doc, action, "unknown action"))
	}
	perm, _ := policy.PermissionFor(action)
	comment = strings.TrimSpace(comment)

	var (
		updated    *entity.Document
		transition *event.Transition
	)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.docs.GetByID(txCtx, doc.ID)
		if err != nil {
			return storageFailure(err)
		}
		if current == nil {
			return entity.NewWorkflowError(entity.ErrNotFound, doc, action, "document no longer exists")
		}

		if doc.Status != "" && current.Status != doc.Status {
			return entity.NewWorkflowError(entity.ErrIllegalTransition, current, action,
				fmt.Sprintf("document changed from %s since it was loaded", doc.Status))
		}
		if current.Status.IsFinal() {
			return entity.NewWorkflowError(entity.ErrIllegalTransition, current, action, "document is final")
		}

		if d := policy.Authorize(actor, current, perm); !d.Allowed {
			return entity.NewWorkflowError(entity.ErrUnauthorized, current, action, d.Reason)
		}

		needsFinance := func(context.Context) bool { return current.RequiresFinanceApproval() }
		target, err := domainwf.Resolve(txCtx, current.Status, action, needsFinance)
		if err != nil || !domainwf.CanTransition(current.Status, target) {
			return entity.NewWorkflowError(entity.ErrIllegalTransition, current, action,
				fmt.Sprintf("%s is not allowed from %s", action, current.Status))
		}

		if action.IsRejection() && comment == "" {
			return entity.NewWorkflowError(entity.ErrCommentRequired, current, action, "a rejection needs a comment")
		}

		now := time.Now().UTC()
		swapped, err := e.docs.CompareAndSwapStatus(txCtx, current.ID, current.Status, current.Version, target, now)
		if err != nil {
			return storageFailure(err)
		}
		if !swapped {
			return entity.NewWorkflowError(entity.ErrIllegalTransition, current, action, "document was modified concurrently")
		}

		next := *current
		next.Status = target
		next.Version++
		next.UpdatedAt = now

		transition = &event.Transition{
			Document:  next,
			Actor:     *actor,
			Action:    action,
			Tag:       entity.ActionTagFor(action, target),
			OldStatus: current.Status,
			NewStatus: target,
			Comment:   comment,
		}
		if _, err := e.audit.Record(txCtx, transition); err != nil {
			return storageFailure(err)
		}

		updated = &next
		return nil
	})
	if err != nil {
		if !isKnownKind(err) {
			err = storageFailure(err)
		}
		return nil, e.fail(action, err)
	}

	if e.logger != nil {
		e.logger.Info("Document transitioned",
			"document_id", updated.ID,
			"action", action.String(),
			"from", transition.OldStatus.String(),
			"to", transition.NewStatus.String(),
			"actor_id", actor.ID,
		)
	}

	if e.dispatcher != nil {
		e.dispatcher.Publish(ctx, event.NewStatusChanged(transition))
	}

	return updated, nil
}

// AvailableActions implements WorkflowEngine
func (e *engineImpl) AvailableActions(ctx context.Context, doc *entity.Document, actor *entity.User) []domainwf.Trigger {
	if doc == nil || actor == nil || !doc.Status.IsValid() {
		return nil
	}

	var actions []domainwf.Trigger
	for _, trigger := range domainwf.NewDocumentMachine(doc.Status, nil).PermittedTriggers() {
		perm, ok := policy.PermissionFor(trigger)
		if ok && policy.Can(actor, doc, perm) {
			actions = append(actions, trigger)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

func (e *engineImpl) fail(action domainwf.Trigger, err error) error {
	if e.onFailure != nil {
		e.onFailure(action.String(), kindOf(err))
	}
	if e.logger != nil {
		e.logger.Error("Transition refused", "action", action.String(), "error", err)
	}
	return err
}

var knownKinds = []error{
	entity.ErrUnauthorized,
	entity.ErrIllegalTransition,
	entity.ErrCommentRequired,
	entity.ErrNotFound,
	entity.ErrStorageFailure,
	entity.ErrValidation,
}

func isKnownKind(err error) bool {
	return kindOf(err) != "unknown"
}

func kindOf(err error) string {
	for _, k := range knownKinds {
		if errors.Is(err, k) {
			return strings.ReplaceAll(k.Error(), " ", "_")
		}
	}
	return "unknown"
}

func storageFailure(err error) error {
	if errors.Is(err, entity.ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
}
