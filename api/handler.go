// Package handler is the entry point for serverless platforms that own the
// HTTP listener and invoke a plain http.HandlerFunc per request.
package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/lalith-99/mehfil/internal/app"
	"github.com/lalith-99/mehfil/internal/config"
	"github.com/lalith-99/mehfil/internal/observ"
	"go.uber.org/zap"
)

var (
	once    sync.Once
	router  http.Handler
	initErr error
)

// build runs once per cold start. Connections stay open for the life of
// the instance.
func build() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		initErr = err
		return
	}
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		initErr = err
		return
	}
	if _, err := observ.SetupTracing(context.Background(), cfg.OTelEndpoint); err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	a, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("cold start failed", zap.Error(err))
		initErr = err
		return
	}
	router = a.Router
}

func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(build)
	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"service unavailable"}`))
		return
	}
	router.ServeHTTP(w, r)
}
