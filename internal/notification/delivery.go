// Package notification holds the delivery channels notifications fan out to.
package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"go.uber.org/zap"
)

// FeedDelivery stores notifications in the in-app feed
type FeedDelivery struct {
	repo port.NotificationRepository
}

// NewFeedDelivery creates a feed channel backed by repo
func NewFeedDelivery(repo port.NotificationRepository) *FeedDelivery {
	return &FeedDelivery{repo: repo}
}

// Deliver persists a copy of n addressed to recipient
func (d *FeedDelivery) Deliver(ctx context.Context, recipient *entity.User, n *entity.Notification) error {
	cp := *n
	cp.UserID = recipient.ID
	if err := d.repo.Create(ctx, &cp); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	return nil
}

// LarkDelivery sends notifications as Lark IM text messages.
// Recipients are addressed by open id when known, otherwise by email.
type LarkDelivery struct {
	sender port.LarkMessageSender
}

// NewLarkDelivery creates a Lark channel
func NewLarkDelivery(sender port.LarkMessageSender) *LarkDelivery {
	return &LarkDelivery{sender: sender}
}

// Deliver sends the rendered message
func (d *LarkDelivery) Deliver(ctx context.Context, recipient *entity.User, n *entity.Notification) error {
	idType, id := "open_id", recipient.LarkOpenID
	if id == "" {
		idType, id = "email", recipient.Email
	}
	if id == "" {
		return fmt.Errorf("lark: user %d has neither open id nor email", recipient.ID)
	}
	if err := d.sender.SendText(ctx, idType, id, Render(n)); err != nil {
		return fmt.Errorf("lark: %w", err)
	}
	return nil
}

// LogDelivery writes notifications to the log. Used when no transport is configured.
type LogDelivery struct {
	logger *zap.Logger
}

// NewLogDelivery creates a log channel
func NewLogDelivery(logger *zap.Logger) *LogDelivery {
	return &LogDelivery{logger: logger}
}

// Deliver logs n
func (d *LogDelivery) Deliver(ctx context.Context, recipient *entity.User, n *entity.Notification) error {
	d.logger.Info("Notification",
		zap.Int64("recipient_id", recipient.ID),
		zap.String("recipient_email", recipient.Email),
		zap.String("kind", string(n.Kind)),
		zap.Int64("document_id", n.DocumentID),
		zap.String("message", n.Message))
	return nil
}

// MultiDelivery fans a notification out to every channel.
// A failing channel does not stop the others.
type MultiDelivery struct {
	channels []port.NotificationDelivery
}

// NewMultiDelivery combines channels
func NewMultiDelivery(channels ...port.NotificationDelivery) *MultiDelivery {
	return &MultiDelivery{channels: channels}
}

// Deliver calls every channel and joins their errors
func (d *MultiDelivery) Deliver(ctx context.Context, recipient *entity.User, n *entity.Notification) error {
	var errs []error
	for _, ch := range d.channels {
		if err := ch.Deliver(ctx, recipient, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Verify interface compliance
var (
	_ port.NotificationDelivery = (*FeedDelivery)(nil)
	_ port.NotificationDelivery = (*LarkDelivery)(nil)
	_ port.NotificationDelivery = (*LogDelivery)(nil)
	_ port.NotificationDelivery = (*MultiDelivery)(nil)
)
