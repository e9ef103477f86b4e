package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/internal/jobs"
	"github.com/jobmarket/marketplace-client/internal/portal"
	"github.com/jobmarket/marketplace-client/pkg/logger"
	"github.com/jobmarket/marketplace-client/pkg/model"
)

// serve runs the session portal and the notification poller until ctx ends.
func (a *app) serve(ctx context.Context) error {
	poller := jobs.NewNotificationPoller(logger.Named("poller"), a.client, a.bus, a.cfg.NotificationPollInterval)

	// The poller exits on session expiry; a later portal login restarts it.
	var polling atomic.Bool
	startPoller := func() {
		if polling.CompareAndSwap(false, true) {
			go func() {
				defer polling.Store(false)
				poller.Start(ctx)
			}()
		}
	}
	if a.cfg.NotificationPoller {
		unsubscribe := a.bus.Subscribe(func(context.Context, model.SessionEvent) { startPoller() }, model.SessionLogin)
		defer unsubscribe()
		if a.client.IsAuthenticated() {
			startPoller()
		}
	} else {
		a.log.Info("notification_poller.disabled")
	}

	checks := map[string]portal.HealthChecker{}
	if hc, ok := a.store.(portal.HealthChecker); ok {
		checks["credstore"] = hc
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: a.cfg.HTTPTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	})
	portal.RegisterRoutes(app, portal.NewHandler(logger.Named("portal"), a.client), checks)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("portal.listening", zap.Int("port", a.cfg.PortalPort))
		errCh <- app.Listen(fmt.Sprintf(":%d", a.cfg.PortalPort))
	}()

	select {
	case err := <-errCh:
		poller.Stop()
		return fmt.Errorf("portal listen: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("marketplace_cli.shutting_down")
	poller.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		a.log.Warn("fiber.shutdown_failed", zap.Error(err))
	}
	return nil
}
