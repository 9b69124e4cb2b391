package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/event"
	"github.com/garyjia/doc-approval/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	level string
	msg   string
	kv    map[string]interface{}
}

// memLogger records log lines for assertions
type memLogger struct {
	mu      sync.Mutex
	entries []entry
}

func (m *memLogger) add(level, msg string, kv []interface{}) {
	e := entry{level: level, msg: msg, kv: map[string]interface{}{}}
	for i := 0; i+1 < len(kv); i += 2 {
		e.kv[fmt.Sprint(kv[i])] = kv[i+1]
	}
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
}

func (m *memLogger) Info(msg string, kv ...interface{})  { m.add("info", msg, kv) }
func (m *memLogger) Error(msg string, kv ...interface{}) { m.add("error", msg, kv) }

func (m *memLogger) errors() []entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entry
	for _, e := range m.entries {
		if e.level == "error" {
			out = append(out, e)
		}
	}
	return out
}

func statusChanged(id int64, from, to workflow.State) *event.Event {
	return event.NewStatusChanged(&event.Transition{
		Document:  entity.Document{ID: id, Status: to},
		Action:    workflow.TriggerSubmit,
		OldStatus: from,
		NewStatus: to,
	})
}

func TestPublish_RoutesByType(t *testing.T) {
	d := NewDispatcher()

	var routed, counted, lifecycle []int64
	d.SubscribeNamed(event.TypeDocumentStatusChanged, "notification-router", func(ctx context.Context, evt *event.Event) error {
		routed = append(routed, evt.Transition.Document.ID)
		return nil
	})
	d.SubscribeNamed(event.TypeDocumentStatusChanged, "metrics", func(ctx context.Context, evt *event.Event) error {
		counted = append(counted, evt.DocumentID)
		return nil
	})
	for _, typ := range []event.Type{event.TypeDocumentCreated, event.TypeDocumentUpdated, event.TypeDocumentDeleted} {
		d.SubscribeNamed(typ, "lifecycle-log", func(ctx context.Context, evt *event.Event) error {
			lifecycle = append(lifecycle, evt.DocumentID)
			return nil
		})
	}

	d.Publish(context.Background(), statusChanged(7, workflow.StateDraft, workflow.StatePendingManagerApproval))
	d.Publish(context.Background(), event.NewEvent(event.TypeDocumentCreated, 8, nil))
	d.Publish(context.Background(), event.NewEvent(event.TypeDocumentDeleted, 9, nil))

	assert.Equal(t, []int64{7}, routed)
	assert.Equal(t, []int64{7}, counted)
	assert.Equal(t, []int64{8, 9}, lifecycle)
}

func TestPublish_NoSubscribers(t *testing.T) {
	d := NewDispatcher()
	assert.NotPanics(t, func() {
		d.Publish(context.Background(), event.NewEvent(event.TypeDocumentUpdated, 1, nil))
	})
}

func TestSubscribeNamed_ReplacesSameName(t *testing.T) {
	d := NewDispatcher()

	var first, second int
	d.SubscribeNamed(event.TypeDocumentStatusChanged, "metrics", func(ctx context.Context, evt *event.Event) error {
		first++
		return nil
	})
	d.SubscribeNamed(event.TypeDocumentStatusChanged, "metrics", func(ctx context.Context, evt *event.Event) error {
		second++
		return nil
	})

	d.Publish(context.Background(), statusChanged(1, workflow.StateDraft, workflow.StatePendingManagerApproval))

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestPublish_FailuresStayInside(t *testing.T) {
	for _, async := range []bool{false, true} {
		t.Run(fmt.Sprintf("async=%v", async), func(t *testing.T) {
			logger := &memLogger{}
			d := NewDispatcher(WithLogger(logger), WithAsync(async))

			var delivered atomic.Int32
			d.SubscribeNamed(event.TypeDocumentStatusChanged, "notification-router", func(ctx context.Context, evt *event.Event) error {
				return errors.New("lark unavailable")
			})
			d.SubscribeNamed(event.TypeDocumentStatusChanged, "broken", func(ctx context.Context, evt *event.Event) error {
				panic("nil map")
			})
			d.SubscribeNamed(event.TypeDocumentStatusChanged, "metrics", func(ctx context.Context, evt *event.Event) error {
				delivered.Add(1)
				return nil
			})

			evt := statusChanged(42, workflow.StatePendingManagerApproval, workflow.StateApproved)
			d.Publish(context.Background(), evt)
			require.NoError(t, d.Close())

			assert.Equal(t, int32(1), delivered.Load())

			errs := logger.errors()
			require.Len(t, errs, 2)
			bySubscriber := map[interface{}]entry{}
			for _, e := range errs {
				assert.Equal(t, int64(42), e.kv["document_id"])
				assert.Equal(t, evt.CorrelationID, e.kv["correlation_id"])
				bySubscriber[e.kv["subscriber"]] = e
			}
			assert.Equal(t, "Subscriber failed", bySubscriber["notification-router"].msg)
			assert.Equal(t, "Subscriber panicked", bySubscriber["broken"].msg)
		})
	}
}

func TestPublish_AsyncOutlivesRequest(t *testing.T) {
	d := NewDispatcher(WithAsync(true))

	release := make(chan struct{})
	var sawCancel atomic.Bool
	d.SubscribeNamed(event.TypeDocumentStatusChanged, "notification-router", func(ctx context.Context, evt *event.Event) error {
		<-release
		sawCancel.Store(ctx.Err() != nil)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	d.Publish(ctx, statusChanged(1, workflow.StateDraft, workflow.StatePendingManagerApproval))
	cancel()
	close(release)

	require.NoError(t, d.Close())
	assert.False(t, sawCancel.Load())
}

func TestClose_DrainsInflight(t *testing.T) {
	d := NewDispatcher(WithAsync(true))

	var done atomic.Int32
	for i := 0; i < 3; i++ {
		d.SubscribeNamed(event.TypeDocumentStatusChanged, fmt.Sprintf("slow-%d", i), func(ctx context.Context, evt *event.Event) error {
			time.Sleep(20 * time.Millisecond)
			done.Add(1)
			return nil
		})
	}

	d.Publish(context.Background(), statusChanged(1, workflow.StateDraft, workflow.StatePendingManagerApproval))
	require.NoError(t, d.Close())

	assert.Equal(t, int32(3), done.Load())
}

func TestClose_DropsLaterEvents(t *testing.T) {
	logger := &memLogger{}
	d := NewDispatcher(WithLogger(logger))

	var calls int
	d.SubscribeNamed(event.TypeDocumentCreated, "lifecycle-log", func(ctx context.Context, evt *event.Event) error {
		calls++
		return nil
	})

	require.NoError(t, d.Close())
	assert.Error(t, d.Close())

	d.Publish(context.Background(), event.NewEvent(event.TypeDocumentCreated, 5, nil))
	assert.Equal(t, 0, calls)

	errs := logger.errors()
	require.Len(t, errs, 1)
	assert.Equal(t, int64(5), errs[0].kv["document_id"])
}

func TestPublish_ConcurrentPublishers(t *testing.T) {
	d := NewDispatcher(WithAsync(true))

	var total atomic.Int32
	d.SubscribeNamed(event.TypeDocumentStatusChanged, "metrics", func(ctx context.Context, evt *event.Event) error {
		total.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			d.Publish(context.Background(), statusChanged(id, workflow.StateDraft, workflow.StatePendingManagerApproval))
		}(int64(i))
	}
	wg.Wait()
	require.NoError(t, d.Close())

	assert.Equal(t, int32(20), total.Load())
}
