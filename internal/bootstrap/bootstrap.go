// Package bootstrap assembles the moderation engine from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/notify"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/scalecache"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/services"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Engine is a fully wired moderation service plus the resources it owns.
type Engine struct {
	Service  *services.ModerationService
	Scale    *services.SiteScaleEstimator
	Notifier notify.Notifier
	Redis    *redis.Client
	Policy   *config.Policy
}

// Build loads the policy and wires the service. Without REDIS_URL the site
// scale is cached in-process and notifications go to the log.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB) (*Engine, error) {
	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("load moderation policy: %w", err)
	}

	e := &Engine{Policy: policy}
	var store scalecache.Store = scalecache.NewMemStore()
	e.Notifier = notify.LogNotifier{}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		e.Redis = redis.NewClient(opts)
		store = scalecache.NewRedisStore(e.Redis, policy.SiteScale.CacheTTL())

		n, err := notify.NewRedisNotifier(ctx, e.Redis, cfg.NotificationChannel)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.Notifier = n
		slog.Info("redis connected", "channel", cfg.NotificationChannel)
	}

	e.Scale = services.NewSiteScaleEstimator(policy, services.GormReportVolume{DB: db}, store, nil)
	e.Service, err = services.NewModerationService(db, policy, services.Options{
		Scale:    e.Scale,
		Notifier: e.Notifier,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) Close() {
	if e.Redis != nil {
		if err := e.Redis.Close(); err != nil {
			slog.Warn("redis close failed", "error", err)
		}
	}
}
