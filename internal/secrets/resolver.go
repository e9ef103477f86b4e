package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/internal/validation"
	"github.com/jobmarket/marketplace-client/pkg/model"
	pkgsecrets "github.com/jobmarket/marketplace-client/pkg/secrets"
)

// LoginResolver resolves marketplace login credentials from a secret store,
// caching results locally to reduce API calls.
//
// Secret naming convention: {env}/marketplace/{name}
type LoginResolver struct {
	logger   *zap.Logger
	env      string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[model.LoginCredentials]
}

func NewLoginResolver(
	logger *zap.Logger,
	env string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[model.LoginCredentials],
) *LoginResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginResolver{
		logger:   logger,
		env:      env,
		provider: provider,
		cache:    cache,
	}
}

// SecretName builds the secret key for name. A name that already contains a
// slash is taken as a full secret path.
func (r *LoginResolver) SecretName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return strings.ToLower(fmt.Sprintf("%s/marketplace/%s", r.env, name))
}

// Resolve fetches or returns cached credentials for name.
func (r *LoginResolver) Resolve(ctx context.Context, name string) (model.LoginCredentials, error) {
	secretName := r.SecretName(name)

	if creds, ok := r.cache.Get(secretName); ok {
		return creds, nil
	}

	secretMap, err := r.provider.GetSecret(ctx, secretName)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("key", secretName),
			zap.Error(err))
		return model.LoginCredentials{}, fmt.Errorf("resolve login secret %q: %w", name, err)
	}

	creds, err := parseLogin(secretMap)
	if err != nil {
		return model.LoginCredentials{}, fmt.Errorf("parse secret %q: %w", secretName, err)
	}

	r.cache.Put(secretName, creds)

	r.logger.Info("secrets.login_resolved",
		zap.String("key", secretName),
		zap.String("email", creds.Email))
	return creds, nil
}

// Discover lists the login secret names available under {env}/marketplace/.
func (r *LoginResolver) Discover(ctx context.Context) ([]string, error) {
	prefix := strings.ToLower(fmt.Sprintf("%s/marketplace/", r.env))

	names, err := r.provider.ListSecrets(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("discover login secrets: %w", err)
	}

	var out []string
	for _, name := range names {
		trimmed := strings.TrimPrefix(strings.ToLower(name), prefix)
		if trimmed != "" && !strings.Contains(trimmed, "/") {
			out = append(out, trimmed)
		}
	}

	r.logger.Info("secrets.logins_discovered", zap.Int("count", len(out)))
	return out, nil
}

func parseLogin(m map[string]string) (model.LoginCredentials, error) {
	creds := model.LoginCredentials{
		Email:    strings.TrimSpace(m["email"]),
		Password: m["password"],
	}
	if creds.Email == "" || creds.Password == "" {
		return model.LoginCredentials{}, fmt.Errorf("secret must contain email and password")
	}
	if !validation.Email(creds.Email) {
		return model.LoginCredentials{}, fmt.Errorf("secret email %q is not a valid address", creds.Email)
	}
	return creds, nil
}
