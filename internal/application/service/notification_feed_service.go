package service

import (
	"context"
	"fmt"

	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/garyjia/doc-approval/internal/domain/entity"
)

// DefaultFeedLimit is the number of notifications returned when no limit is given
const DefaultFeedLimit = 50

// Feed is a user's notification list with the unread count
type Feed struct {
	Items  []*entity.Notification `json:"items"`
	Unread int                    `json:"unread"`
}

// NotificationFeedService reads and acknowledges in-app notifications
type NotificationFeedService interface {
	List(ctx context.Context, actor *entity.User, unreadOnly bool, limit int) (*Feed, error)
	MarkRead(ctx context.Context, actor *entity.User, id int64) error
}

type notificationFeedServiceImpl struct {
	repo   port.NotificationRepository
	logger Logger
}

// NewNotificationFeedService creates a new NotificationFeedService
func NewNotificationFeedService(repo port.NotificationRepository, logger Logger) NotificationFeedService {
	return &notificationFeedServiceImpl{repo: repo, logger: orNop(logger)}
}

// List returns the actor's notifications, newest first
func (s *notificationFeedServiceImpl) List(ctx context.Context, actor *entity.User, unreadOnly bool, limit int) (*Feed, error) {
	if limit <= 0 || limit > entity.MaxPerPage {
		limit = DefaultFeedLimit
	}

	items, err := s.repo.ListByUser(ctx, actor.ID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
	}
	unread, err := s.repo.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
	}

	if items == nil {
		items = []*entity.Notification{}
	}
	return &Feed{Items: items, Unread: unread}, nil
}

// MarkRead acknowledges one of the actor's notifications
func (s *notificationFeedServiceImpl) MarkRead(ctx context.Context, actor *entity.User, id int64) error {
	ok, err := s.repo.MarkRead(ctx, id, actor.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
	}
	if !ok {
		return fmt.Errorf("%w: notification %d", entity.ErrNotFound, id)
	}
	s.logger.Info("Notification read", "notification_id", id, "user_id", actor.ID)
	return nil
}
