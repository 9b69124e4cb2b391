package dispatcher

import (
	"context"

	"github.com/garyjia/doc-approval/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// subscriber is a named handler bound to one event type
type subscriber struct {
	name    string
	handler Handler
}
