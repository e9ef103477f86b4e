package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/internal/api"
	internalsecrets "github.com/jobmarket/marketplace-client/internal/secrets"
	"github.com/jobmarket/marketplace-client/internal/validation"
	"github.com/jobmarket/marketplace-client/pkg/logger"
	"github.com/jobmarket/marketplace-client/pkg/model"
	"github.com/jobmarket/marketplace-client/pkg/secrets"
	"github.com/jobmarket/marketplace-client/pkg/utils"
)

// kvFlag collects repeated key=value flags.
type kvFlag url.Values

func (f kvFlag) String() string { return url.Values(f).Encode() }

func (f kvFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	url.Values(f).Add(k, v)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	secret := fs.String("secret", a.cfg.LoginSecretName, "secret holding {email, password}")
	role := fs.String("role", "", "expected account role (freelancer|recruiter)")
	list := fs.Bool("list-secrets", false, "list the login secrets available for -secret and exit")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *list {
		resolver, err := a.loginResolver(ctx)
		if err != nil {
			return err
		}
		names, err := resolver.Discover(ctx)
		if err != nil {
			return err
		}
		return printJSON(names)
	}

	creds := model.LoginCredentials{Email: strings.TrimSpace(*email), Password: *password}
	if creds.Email == "" && *secret != "" {
		var err error
		if creds, err = a.resolveLogin(ctx, *secret); err != nil {
			return err
		}
	}
	if !validation.Email(creds.Email) || creds.Password == "" {
		return fmt.Errorf("a valid -email and -password (or -secret) are required")
	}

	out, err := a.client.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return err
	}
	if want := model.Role(*role); want != "" && out.User != nil && out.User.Role != want {
		if err := a.client.Logout(ctx); err != nil {
			a.log.Warn("marketplace_cli.logout_failed", zap.Error(err))
		}
		return fmt.Errorf("this account is registered as a %s, not a %s", out.User.Role, want)
	}

	access, _ := a.client.Tokens()
	a.log.Info("marketplace_cli.logged_in", zap.String("access_token", utils.MaskToken(access)))
	return printJSON(out.User)
}

func (a *app) loginResolver(ctx context.Context) (*internalsecrets.LoginResolver, error) {
	provider, err := secrets.NewAWSProvider(ctx, a.cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("secrets provider: %w", err)
	}
	return internalsecrets.NewLoginResolver(
		logger.Named("secrets"),
		a.cfg.Env,
		provider,
		secrets.NewCache[model.LoginCredentials](a.cfg.SecretCacheTTL),
	), nil
}

func (a *app) resolveLogin(ctx context.Context, name string) (model.LoginCredentials, error) {
	resolver, err := a.loginResolver(ctx)
	if err != nil {
		return model.LoginCredentials{}, err
	}
	return resolver.Resolve(ctx, name)
}

func (a *app) logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

type whoamiOutput struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user,omitempty"`
	AccessToken   string      `json:"access_token,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
}

func (a *app) whoami(ctx context.Context) error {
	out := whoamiOutput{Authenticated: a.client.IsAuthenticated()}
	if !out.Authenticated {
		return printJSON(out)
	}

	user, err := a.client.User(ctx)
	if err != nil || user == nil {
		if user, err = a.client.CurrentUser(ctx); err != nil {
			return err
		}
	}
	out.User = user

	access, _ := a.client.Tokens()
	out.AccessToken = utils.MaskToken(access)
	if exp, err := a.client.AccessTokenExpiry(); err == nil {
		out.ExpiresAt = &exp
	} else if !errors.Is(err, api.ErrNoExpiry) {
		a.log.Debug("marketplace_cli.token_unparseable", zap.Error(err))
	}
	return printJSON(out)
}

func (a *app) jobs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	q := kvFlag{}
	fs.Var(q, "q", "query parameter key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	page, err := a.client.Jobs(ctx, url.Values(q))
	if err != nil {
		return err
	}
	return printJSON(page)
}

func (a *app) notifications(ctx context.Context) error {
	items, err := a.client.Notifications(ctx)
	if err != nil {
		return err
	}
	return printJSON(items)
}

func (a *app) track(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("track", flag.ContinueOnError)
	eventType := fs.String("type", "", "event type, e.g. page_view")
	meta := kvFlag{}
	fs.Var(meta, "meta", "metadata key=value (repeatable)")
	if err := fs.Parse(args); err != nil || *eventType == "" {
		return errUsage
	}

	metadata := make(map[string]any, len(meta))
	for k, vs := range meta {
		metadata[k] = vs[len(vs)-1]
	}
	if err := a.client.TrackEvent(ctx, *eventType, metadata); err != nil {
		return err
	}
	fmt.Println("tracked", *eventType)
	return nil
}
