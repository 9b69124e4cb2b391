package service

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationFeedService(t *testing.T) {
	ctx := context.Background()

	t.Run("lists with unread count", func(t *testing.T) {
		var gotLimit int
		repo := &mockNotificationRepo{
			unread: 2,
			listFunc: func(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*entity.Notification, error) {
				gotLimit = limit
				assert.Equal(t, owner.ID, userID)
				assert.True(t, unreadOnly)
				return []*entity.Notification{{ID: 1}, {ID: 2}}, nil
			},
		}
		svc := NewNotificationFeedService(repo, nil)

		feed, err := svc.List(ctx, owner, true, 0)
		require.NoError(t, err)
		assert.Len(t, feed.Items, 2)
		assert.Equal(t, 2, feed.Unread)
		assert.Equal(t, DefaultFeedLimit, gotLimit)
	})

	t.Run("empty feed is not nil", func(t *testing.T) {
		svc := NewNotificationFeedService(&mockNotificationRepo{}, nil)

		feed, err := svc.List(ctx, owner, false, 10)
		require.NoError(t, err)
		assert.NotNil(t, feed.Items)
	})

	t.Run("mark read of someone else's entry", func(t *testing.T) {
		repo := &mockNotificationRepo{
			markReadFunc: func(ctx context.Context, id, userID int64) (bool, error) { return false, nil },
		}
		svc := NewNotificationFeedService(repo, nil)

		assert.ErrorIs(t, svc.MarkRead(ctx, owner, 7), entity.ErrNotFound)
	})

	t.Run("mark read storage failure", func(t *testing.T) {
		repo := &mockNotificationRepo{
			markReadFunc: func(ctx context.Context, id, userID int64) (bool, error) { return false, errors.New("locked") },
		}
		svc := NewNotificationFeedService(repo, nil)

		assert.ErrorIs(t, svc.MarkRead(ctx, owner, 7), entity.ErrStorageFailure)
	})
}
