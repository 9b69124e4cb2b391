package port

import (
	"context"

	"github.com/garyjia/doc-approval/internal/domain/entity"
)

// NotificationDelivery hands a notification to one transport
type NotificationDelivery interface {
	Deliver(ctx context.Context, recipient *entity.User, n *entity.Notification) error
}

// DeliveryFunc adapts a function to NotificationDelivery
type DeliveryFunc func(ctx context.Context, recipient *entity.User, n *entity.Notification) error

func (f DeliveryFunc) Deliver(ctx context.Context, recipient *entity.User, n *entity.Notification) error {
	return f(ctx, recipient, n)
}

// LarkMessageSender sends Lark IM messages
type LarkMessageSender interface {
	SendText(ctx context.Context, receiveIDType, receiveID, text string) error
}
