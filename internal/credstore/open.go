package credstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/pkg/utils"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Backend     string
	FilePath    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	RedisPrefix string
	DatabaseURL string
}

// Open builds the store selected by cfg.Backend. An empty backend means memory.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "", BackendMemory:
		logger.Info("credstore.opened", zap.String("backend", BackendMemory))
		return NewMemoryStore(), nil
	case BackendFile:
		s, err := NewFileStore(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		logger.Info("credstore.opened", zap.String("backend", BackendFile), zap.String("path", cfg.FilePath))
		return s, nil
	case BackendRedis:
		s, err := NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, cfg.RedisPrefix, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("credstore.opened", zap.String("backend", BackendRedis), zap.String("addr", cfg.RedisAddr))
		return s, nil
	case BackendPostgres:
		s, err := NewPostgresStore(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("credstore.opened", zap.String("backend", BackendPostgres), zap.String("dsn", utils.MaskDSN(cfg.DatabaseURL)))
		return s, nil
	default:
		return nil, fmt.Errorf("credstore: unknown backend %q", cfg.Backend)
	}
}
