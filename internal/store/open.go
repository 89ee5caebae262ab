package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizmap/internal/config"
)

// Open connects the backend named by cfg.Driver and prepares it for use.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	log := zap.L().With(zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case "sqlite", "":
		s, err := NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		log.Debug("store: opened", zap.String("path", cfg.DatabaseURL))
		return s, nil

	case "postgres":
		s, err := NewPostgres(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		log.Debug("store: opened")
		return s, nil

	case "redis":
		s, err := NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		log.Debug("store: opened", zap.String("addr", cfg.Redis.Addr))
		return s, nil

	case "s3":
		s, err := NewS3(ctx, S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		log.Debug("store: opened", zap.String("bucket", cfg.S3.Bucket))
		return s, nil

	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}
