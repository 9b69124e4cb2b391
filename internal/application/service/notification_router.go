package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/event"
	"github.com/garyjia/doc-approval/internal/domain/workflow"
)

// NotificationRouter turns committed transitions into notifications for the
// people who have to act on them or are waiting for the outcome.
type NotificationRouter struct {
	users       port.UserRepository
	delivery    port.NotificationDelivery
	logger      Logger
	onDelivered func(kind string, err error)
}

// RouterOption configures a NotificationRouter
type RouterOption func(*NotificationRouter)

// WithDeliveryObserver is called once per recipient with the delivery outcome
func WithDeliveryObserver(fn func(kind string, err error)) RouterOption {
	return func(r *NotificationRouter) {
		r.onDelivered = fn
	}
}

// NewNotificationRouter creates a new NotificationRouter
func NewNotificationRouter(users port.UserRepository, delivery port.NotificationDelivery, logger Logger, opts ...RouterOption) *NotificationRouter {
	r := &NotificationRouter{
		users:    users,
		delivery: delivery,
		logger:   orNop(logger),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle is the dispatcher handler for document.status_changed.
// It never returns delivery errors; they are logged and counted.
func (r *NotificationRouter) Handle(ctx context.Context, evt *event.Event) error {
	if evt.Type != event.TypeDocumentStatusChanged || evt.Transition == nil {
		return nil
	}
	t := evt.Transition

	recipients, err := r.Recipients(ctx, t)
	if err != nil {
		r.logger.Error("Failed to resolve notification recipients",
			"document_id", t.Document.ID,
			"status", t.NewStatus.String(),
			"error", err,
		)
		return nil
	}
	if len(recipients) == 0 {
		return nil
	}

	n := Compose(t)
	for _, recipient := range recipients {
		err := r.delivery.Deliver(ctx, recipient, n)
		if r.onDelivered != nil {
			r.onDelivered(string(n.Kind), err)
		}
		if err != nil {
			r.logger.Error("Failed to deliver notification",
				"document_id", t.Document.ID,
				"recipient_id", recipient.ID,
				"kind", string(n.Kind),
				"error", err,
			)
			continue
		}
		r.logger.Info("Notification delivered",
			"document_id", t.Document.ID,
			"recipient_id", recipient.ID,
			"kind", string(n.Kind),
		)
	}
	return nil
}

// Recipients returns who is notified about t
func (r *NotificationRouter) Recipients(ctx context.Context, t *event.Transition) ([]*entity.User, error) {
	switch t.NewStatus {
	case workflow.StatePendingManagerApproval:
		if t.Document.OwnerManagerID == nil {
			return nil, nil
		}
		return r.one(ctx, *t.Document.OwnerManagerID)
	case workflow.StatePendingFinanceApproval:
		users, err := r.users.ListByRole(ctx, entity.RoleFinance)
		if err != nil {
			return nil, fmt.Errorf("list finance users: %w", err)
		}
		return users, nil
	case workflow.StateApproved, workflow.StateRejected:
		return r.one(ctx, t.Document.UserID)
	}
	return nil, nil
}

func (r *NotificationRouter) one(ctx context.Context, id int64) ([]*entity.User, error) {
	u, err := r.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	if u == nil {
		return nil, nil
	}
	return []*entity.User{u}, nil
}

// Compose builds the notification for t. UserID is filled in per recipient on delivery.
func Compose(t *event.Transition) *entity.Notification {
	doc := &t.Document
	n := &entity.Notification{
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		ActorName:     t.Actor.Name,
		CreatedAt:     time.Now().UTC(),
	}

	switch t.NewStatus {
	case workflow.StatePendingManagerApproval, workflow.StatePendingFinanceApproval:
		n.Kind = entity.NotificationPendingApproval
		n.Message = fmt.Sprintf("Document %q is waiting for your approval. Amount: %s. Created by: %s.",
			doc.Title, doc.FormattedAmount(), doc.OwnerName)
	case workflow.StateApproved:
		n.Kind = entity.NotificationApproved
		n.Message = fmt.Sprintf("Your document %q was approved by %s. Amount: %s.",
			doc.Title, t.Actor.Name, doc.FormattedAmount())
	case workflow.StateRejected:
		n.Kind = entity.NotificationRejected
		n.Message = fmt.Sprintf("Your document %q was rejected by %s.", doc.Title, t.Actor.Name)
		n.Comment = t.Comment
	}
	return n
}
