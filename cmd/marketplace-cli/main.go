package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/internal/api"
	"github.com/jobmarket/marketplace-client/internal/config"
	"github.com/jobmarket/marketplace-client/internal/credstore"
	"github.com/jobmarket/marketplace-client/internal/events"
	"github.com/jobmarket/marketplace-client/internal/httpclient"
	"github.com/jobmarket/marketplace-client/internal/navigation"
	"github.com/jobmarket/marketplace-client/internal/rate"
	"github.com/jobmarket/marketplace-client/pkg/logger"
	"github.com/jobmarket/marketplace-client/pkg/utils"
)

const usage = `usage: marketplace-cli <command> [flags]

commands:
  login          sign in (-email/-password or -secret; -list-secrets)
  logout         sign out and clear stored credentials
  whoami         show the signed-in user and token expiry
  jobs           list jobs (-q key=value, repeatable)
  notifications  list notifications
  track          record an analytics event (-type name)
  serve          run the session portal and notification poller
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.S().Fatalw("invalid configuration", "error", err)
	}

	if err := run(ctx, cfg, os.Args[1], os.Args[2:]); err != nil {
		msg, code := exitMessage(err)
		fmt.Fprint(os.Stderr, msg)
		os.Exit(code)
	}
}

var errUsage = errors.New("usage")

// exitMessage turns a command error into the text for stderr and the exit code.
func exitMessage(err error) (string, int) {
	switch {
	case errors.Is(err, errUsage):
		return usage, 2
	case errors.Is(err, api.ErrSessionExpired):
		return fmt.Sprintf("%v (see %s)\n", err, navigation.SessionExpiredView()), 1
	case api.IsStatus(err, http.StatusUnauthorized):
		return fmt.Sprintf("error: %v (not logged in? run: marketplace-cli login)\n", err), 1
	default:
		return fmt.Sprintf("error: %v\n", err), 1
	}
}

var commands = map[string]bool{
	"login": true, "logout": true, "whoami": true, "jobs": true,
	"notifications": true, "track": true, "serve": true,
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	if !commands[cmd] {
		return errUsage
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "jobs":
		return a.jobs(ctx, args)
	case "notifications":
		return a.notifications(ctx)
	case "track":
		return a.track(ctx, args)
	case "serve":
		return a.serve(ctx)
	default:
		return errUsage
	}
}

// app holds the wired collaborators shared by every command.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	store  credstore.Store
	bus    *events.Bus
	client *api.Client

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.L()
	a := &app{cfg: cfg, log: log, bus: events.NewBus()}

	log.Info("marketplace_cli.starting",
		zap.String("api", cfg.APIBaseURL),
		zap.String("credential_store", cfg.CredentialStore),
		zap.String("dsn", utils.MaskDSN(cfg.DatabaseURL)))

	st, err := credstore.Open(ctx, cfg.Store(), logger.Named("credstore"))
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, func() {
		if err := st.Close(); err != nil {
			log.Warn("credstore.close_failed", zap.Error(err))
		}
	})

	a.attachForwarders()

	exec := httpclient.New(logger.Named("http"), rate.NewManager(cfg.RateLimit()), &http.Client{Timeout: cfg.HTTPTimeout}, "marketplace")
	client, err := api.NewClient(ctx, logger.Named("api"), cfg.APIBaseURL, exec, st, a.bus)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init api client: %w", err)
	}
	a.client = client
	return a, nil
}

// attachForwarders mirrors bus events to NATS and RabbitMQ when configured.
// Broker failures are logged; the CLI works without them.
func (a *app) attachForwarders() {
	if a.cfg.NATSURL != "" {
		np, err := events.ConnectNATS(a.cfg.NATSURL, a.cfg.NATSSubjectPrefix, a.cfg.ServiceName, logger.Named("nats"))
		if err != nil {
			a.log.Warn("nats.connect_failed", zap.Error(err))
		} else {
			detach := np.Attach(a.bus)
			a.closers = append(a.closers, func() {
				detach()
				np.Close()
			})
		}
	}
	if a.cfg.RabbitMQURL != "" {
		ap, err := events.DialAMQP(a.cfg.RabbitMQURL, "marketplace", logger.Named("amqp"))
		if err != nil {
			a.log.Warn("amqp.dial_failed", zap.Error(err))
		} else {
			detach := ap.Attach(a.bus)
			a.closers = append(a.closers, func() {
				detach()
				if err := ap.Close(); err != nil {
					a.log.Warn("amqp.close_failed", zap.Error(err))
				}
			})
		}
	}
}

// close drains pending events before tearing down forwarders and the store.
func (a *app) close() {
	a.bus.Drain()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
