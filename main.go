package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	handlers "HibiscusGuard/internal/handler"
	"HibiscusGuard/internal/session"
	"HibiscusGuard/internal/surface"
	"HibiscusGuard/pkg/config"
	"HibiscusGuard/pkg/logger"
	"HibiscusGuard/pkg/metrics"
	"HibiscusGuard/pkg/middleware"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := config.GlobalConfig

	if err := logger.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	metrics.InitGlobal(registry)

	sfc := surface.NewSSESurface(30 * time.Second)

	sess, err := session.New(cfg, sfc)
	if err != nil {
		logger.Error("session setup failed", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		logger.Error("session start failed", zap.Error(err))
		os.Exit(1)
	}

	gin.SetMode(cfg.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog())
	handlers.New(sess, sfc).RegisterRoutes(engine, registry)

	srv := &http.Server{Addr: cfg.Addr, Handler: engine}
	go func() {
		logger.Info("observation server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("observation server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sess.Stop()
}
