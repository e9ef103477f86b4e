package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/internal/api"
	"github.com/jobmarket/marketplace-client/pkg/model"
)

// NotificationSource is the subset of api.Client the poller needs.
type NotificationSource interface {
	IsAuthenticated() bool
	Notifications(ctx context.Context) ([]model.Notification, error)
	User(ctx context.Context) (*model.User, error)
}

// EventPublisher receives one event per newly seen unread notification. *events.Bus satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.SessionEvent)
}

// NotificationPoller periodically fetches notifications and publishes the
// unread ones it has not reported before.
type NotificationPoller struct {
	logger   *zap.Logger
	source   NotificationSource
	bus      EventPublisher
	interval time.Duration

	mu   sync.Mutex
	seen map[int64]struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewNotificationPoller(logger *zap.Logger, source NotificationSource, bus EventPublisher, interval time.Duration) *NotificationPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationPoller{
		logger:   logger,
		source:   source,
		bus:      bus,
		interval: interval,
		seen:     make(map[int64]struct{}),
		stopCh:   make(chan struct{}),
	}
}

// Start polls immediately and then every interval. It returns when the
// context is cancelled, Stop is called, or the session expires.
func (p *NotificationPoller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("notification_poller.started", zap.Duration("interval", p.interval))

	for {
		if _, err := p.RunOnce(ctx); errors.Is(err, api.ErrSessionExpired) {
			p.logger.Warn("notification_poller.stopped (session expired)")
			return
		}

		select {
		case <-ticker.C:
		case <-p.stopCh:
			p.logger.Info("notification_poller.stopped (manual stop)")
			return
		case <-ctx.Done():
			p.logger.Info("notification_poller.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the poller. Safe to call more than once.
func (p *NotificationPoller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// RunOnce executes one poll cycle and returns how many events it published.
// It does nothing while signed out.
func (p *NotificationPoller) RunOnce(ctx context.Context) (int, error) {
	if !p.source.IsAuthenticated() {
		return 0, nil
	}
	start := time.Now()

	items, err := p.source.Notifications(ctx)
	if err != nil {
		p.logger.Warn("notification_poller.fetch_failed", zap.Error(err))
		return 0, err
	}

	fresh := p.unseen(items)
	if len(fresh) == 0 {
		return 0, nil
	}

	user, err := p.source.User(ctx)
	if err != nil {
		p.logger.Debug("notification_poller.user_unreadable", zap.Error(err))
	}

	published := 0
	for _, n := range fresh {
		detail, err := json.Marshal(n)
		if err != nil {
			p.logger.Warn("notification_poller.encode_failed", zap.Int64("notification_id", n.ID), zap.Error(err))
			continue
		}
		ev := model.NewSessionEvent(model.NotificationReceived, user)
		ev.Detail = detail
		p.bus.Publish(ctx, ev)
		published++
	}

	p.logger.Info("notification_poller.published",
		zap.Int("count", published),
		zap.Duration("duration", time.Since(start)))
	return published, nil
}

// unseen returns the unread notifications not reported yet and marks them seen.
func (p *NotificationPoller) unseen(items []model.Notification) []model.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []model.Notification
	for _, n := range items {
		if n.IsRead {
			continue
		}
		if _, ok := p.seen[n.ID]; ok {
			continue
		}
		p.seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}
