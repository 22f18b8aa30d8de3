// Package app wires configuration into a running service. Both the
// long-running server and the serverless entry point build through here.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/mehfil/internal/access"
	"github.com/lalith-99/mehfil/internal/api"
	"github.com/lalith-99/mehfil/internal/auth"
	"github.com/lalith-99/mehfil/internal/chat/streamchat"
	"github.com/lalith-99/mehfil/internal/config"
	"github.com/lalith-99/mehfil/internal/db"
	"github.com/lalith-99/mehfil/internal/events"
	"github.com/lalith-99/mehfil/internal/repository"
	"github.com/lalith-99/mehfil/internal/repository/postgres"
	"github.com/lalith-99/mehfil/internal/repository/redis"
	"github.com/lalith-99/mehfil/internal/usersync"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type App struct {
	Router *gin.Engine
	// Consumer is nil unless AMQP_URL is set.
	Consumer *events.Consumer

	closers []func() error
}

// Build connects to every configured backing service. On error, whatever
// was already opened is closed again.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close())
		}
	}()

	verifier, err := newVerifier(cfg)
	if err != nil {
		return nil, err
	}

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, func() error { database.Close(); return nil })
	if err := database.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	users := postgres.NewUserStore(database.Pool())

	var ledger repository.EventLedger = redis.NopLedger{}
	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		ledger = redis.NewLedger(client)
	} else {
		logger.Warn("REDIS_URL not set, identity events are not deduplicated")
	}

	gateway, err := streamchat.New(cfg.StreamAPIKey, cfg.StreamAPISecret, logger)
	if err != nil {
		return nil, fmt.Errorf("create chat gateway: %w", err)
	}

	boundary := access.NewBoundary(gateway, cfg.TokenTTL, logger)
	dispatcher := usersync.NewDispatcher(users, gateway, ledger, logger)

	var webhook *api.WebhookHandler
	if cfg.WebhookSecret != "" {
		sigVerifier, err := usersync.NewSignatureVerifier(cfg.WebhookSecret)
		if err != nil {
			return nil, err
		}
		webhook = api.NewWebhookHandler(sigVerifier, dispatcher, logger)
	} else {
		logger.Warn("WEBHOOK_SECRET not set, identity webhook disabled")
	}

	if cfg.AMQPURL != "" {
		retry := events.RetryPolicy{
			MaxAttempts: cfg.IdentityEventsMaxAttempts,
			Delay:       cfg.IdentityEventsRetryDelay,
		}
		consumer, err := events.Dial(cfg.AMQPURL, cfg.IdentityEventsQueue, retry, dispatcher, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, consumer.Close)
		a.Consumer = consumer
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	a.Router = api.NewRouter(api.RouterDeps{
		Logger:   logger,
		Verifier: verifier,
		Boundary: boundary,
		Users:    users,
		Webhook:  webhook,
		Health:   database.Health,
	})
	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}

func newVerifier(cfg *config.Config) (*auth.Verifier, error) {
	if cfg.IdentityJWTPublicKey != "" {
		v, err := auth.NewRSAVerifier(cfg.IdentityJWTPublicKey, cfg.IdentityIssuer)
		if err != nil {
			return nil, fmt.Errorf("identity public key: %w", err)
		}
		return v, nil
	}
	v, err := auth.NewHMACVerifier(cfg.IdentityJWTSecret, cfg.IdentityIssuer)
	if err != nil {
		return nil, fmt.Errorf("identity secret: %w", err)
	}
	return v, nil
}
