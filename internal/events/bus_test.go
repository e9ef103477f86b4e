package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jobmarket/marketplace-client/pkg/model"
)

func TestBus_PublishAsyncAndDrain(t *testing.T) {
	bus := NewBus()
	var count atomic.Int32
	bus.Subscribe(func(context.Context, model.SessionEvent) { count.Add(1) })
	bus.Subscribe(func(context.Context, model.SessionEvent) { count.Add(1) })

	bus.Publish(context.Background(), model.NewSessionEvent(model.SessionLogin, nil))
	bus.Drain()
	assert.EqualValues(t, 2, count.Load())
}

func TestBus_TypeFilter(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	var got []model.SessionEventType
	bus.Subscribe(func(_ context.Context, ev model.SessionEvent) {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
	}, model.SessionExpired, model.SessionLogout)

	for _, typ := range []model.SessionEventType{model.SessionLogin, model.SessionExpired, model.SessionRefreshed, model.SessionLogout} {
		bus.Publish(context.Background(), model.NewSessionEvent(typ, nil))
		bus.Drain()
	}
	assert.Equal(t, []model.SessionEventType{model.SessionExpired, model.SessionLogout}, got)
	assert.Len(t, bus.matching(model.SessionExpired), 1)
	assert.Empty(t, bus.matching(model.SessionLogin))
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	var count int
	cancel := bus.Subscribe(func(context.Context, model.SessionEvent) { count++ })

	bus.Publish(context.Background(), model.NewSessionEvent(model.SessionLogin, nil))
	bus.Drain()
	cancel()
	bus.Publish(context.Background(), model.NewSessionEvent(model.SessionLogin, nil))
	bus.Drain()

	assert.Equal(t, 1, count)
	assert.Empty(t, bus.matching(model.SessionLogin))
}

func TestBus_NotifyDetachesCancellation(t *testing.T) {
	bus := NewBus()
	var sawErr atomic.Value
	bus.Subscribe(func(ctx context.Context, _ model.SessionEvent) {
		sawErr.Store(ctx.Err() == nil)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Notify(ctx, model.NewSessionEvent(model.SessionExpired, nil))
	bus.Drain()
	assert.Equal(t, true, sawErr.Load())
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "marketplace.session.login.v1", Subject("marketplace", model.SessionLogin))
	assert.Equal(t, "marketplace.notification.received.v1", Subject("marketplace", model.NotificationReceived))
	assert.Equal(t, "marketplace.session.expired", RoutingKey("marketplace", model.SessionExpired))
}
