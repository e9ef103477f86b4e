package events

import (
	"context"
	"sync"

	"github.com/jobmarket/marketplace-client/pkg/model"
)

// Handler receives a session event.
type Handler func(ctx context.Context, ev model.SessionEvent)

type subscription struct {
	id      int
	types   map[model.SessionEventType]bool // nil means every type
	handler Handler
}

// Bus provides in-process pub/sub for session events. It satisfies api.SessionNotifier.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID int
	wg     sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for the given event types, or for all types when none
// are given. The returned func removes the subscription.
func (b *Bus) Subscribe(handler Handler, types ...model.SessionEventType) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := subscription{id: b.nextID, handler: handler}
	b.nextID++
	if len(types) > 0 {
		s.types = make(map[model.SessionEventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
	b.subs = append(b.subs, s)

	return func() { b.unsubscribe(s.id) }
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) matching(t model.SessionEventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Handler
	for _, s := range b.subs {
		if s.types == nil || s.types[t] {
			out = append(out, s.handler)
		}
	}
	return out
}

// Publish delivers ev to every matching handler, each on its own goroutine.
// Handlers see a context detached from the caller's cancellation.
func (b *Bus) Publish(ctx context.Context, ev model.SessionEvent) {
	ctx = context.WithoutCancel(ctx)
	for _, h := range b.matching(ev.Type) {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			h(ctx, ev)
		}(h)
	}
}

// Notify publishes asynchronously so slow sinks never hold up a request.
func (b *Bus) Notify(ctx context.Context, ev model.SessionEvent) {
	b.Publish(ctx, ev)
}

// Drain waits for handlers started by Publish to return.
func (b *Bus) Drain() {
	b.wg.Wait()
}
