// Package app wires the configured components together for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tyburd/mangabot/internal/config"
	"github.com/tyburd/mangabot/internal/export"
	"github.com/tyburd/mangabot/internal/notify"
	"github.com/tyburd/mangabot/internal/registry"
	"github.com/tyburd/mangabot/internal/transport"
)

// Sources is the shared transport plus the adapters built on it
type Sources struct {
	Transport *transport.Client
	Registry  *registry.Registry

	closers []func() error
}

// Close releases the cache connection and idle HTTP connections
func (s *Sources) Close() error {
	s.Transport.CloseIdleConnections()
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewSources builds the response cache, the transport client and every
// adapter listed in CLIENTS
func NewSources(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Sources, error) {
	specs, err := registry.ParseSpecs(cfg.Clients)
	if err != nil {
		return nil, err
	}

	src := &Sources{}

	var cache transport.Cache
	if cfg.RedisURL != "" {
		rc, err := transport.NewRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		src.closers = append(src.closers, rc.Close)
		cache = rc
		logger.Info("cache_ready", "backend", "redis", "ttl", cfg.CacheTTL)
	} else {
		cache = transport.NewMemoryCache(cfg.CacheTTL)
		logger.Info("cache_ready", "backend", "memory", "ttl", cfg.CacheTTL)
	}

	src.Transport = transport.NewClient(transport.Options{
		Timeout:   cfg.FetchTimeout,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Cache:     cache,
	})

	reg, err := registry.Build(specs, registry.Deps{Fetcher: src.Transport, Logger: logger})
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	src.Registry = reg

	names := make([]string, 0, len(reg.Clients()))
	for _, c := range reg.Clients() {
		names = append(names, c.Name())
	}
	logger.Info("clients_ready", "clients", names)
	return src, nil
}

// NewPublisher returns the chapter page publisher selected by EXPORT_BACKEND
func NewPublisher(cfg *config.Config, poster export.FormPoster) (export.Publisher, error) {
	switch cfg.ExportBackend {
	case "s3":
		return export.NewS3Publisher(export.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
	case "", "telegraph":
		return export.NewTelegraphPublisher(poster, export.TelegraphOptions{
			ShortName:  cfg.TelegraphShortName,
			AuthorName: cfg.TelegraphAuthorName,
			AuthorURL:  cfg.TelegraphAuthorURL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown export backend %q", cfg.ExportBackend)
	}
}

// NewNotifier posts deliveries to WEBHOOK_URL, or only logs them
func NewNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	if cfg.WebhookURL == "" {
		return notify.NewLogNotifier(logger)
	}
	return notify.NewWebhookNotifier(cfg.WebhookURL, logger)
}
