package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/adapter/handler"
	"github.com/technirvor/storefront/internal/adapter/llm"
	"github.com/technirvor/storefront/internal/adapter/mail"
	"github.com/technirvor/storefront/internal/adapter/storage"
	"github.com/technirvor/storefront/internal/core/service"
	"github.com/technirvor/storefront/internal/jobs"
	"github.com/technirvor/storefront/internal/port"
)

func runServe(parent context.Context) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MySQL
	db, err := storage.OpenMySQL(ctx, cfg.MySQL.DSN, cfg.MySQL.MaxOpenConns, cfg.MySQL.MaxIdleConns, cfg.ConnMaxLifetime())
	if err != nil {
		return err
	}
	defer db.Close()
	repo := storage.NewMySQLAdapter(db)
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer rdb.Close()
	cache := storage.NewRedisAdapter(rdb)
	if err := cache.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	logger.Info("connected to redis")

	var mailer port.Mailer
	if cfg.Mail.Enabled() {
		mailer = mail.NewSMTPMailer(cfg.Mail)
	}
	notifier := service.NewNotifier(repo, repo, mailer, cfg.Notifier.AdminEmails, cfg.Notifier.QueueSize, logger)
	notifier.Start(cfg.Notifier.Workers)

	catalog := service.NewCatalogService(repo, repo, repo, repo, repo)
	orders := service.NewOrderService(repo, repo, repo, repo, cache, notifier, logger)
	admin := service.NewAdminService(repo, repo, repo, repo, repo, logger)
	svc := handler.Services{
		Catalog: catalog,
		Orders:  orders,
		Admin:   admin,
		Auth: service.NewAuthService(repo, cache, service.AuthConfig{
			Secret:        []byte(cfg.Auth.JWTSecret),
			TokenTTL:      cfg.TokenTTL(),
			MaxFailures:   cfg.Auth.MaxFailures,
			LockoutWindow: cfg.LockoutWindow(),
		}, logger),
		Engagement: service.NewEngagementService(repo, repo, repo, repo, repo, logger),
		Analytics:  service.NewAnalyticsService(repo),
	}
	if cfg.ChatEnabled() {
		model, err := llm.NewGemini(ctx, llm.GeminiConfig{APIKey: cfg.Chat.APIKey, Model: cfg.Chat.Model, Temperature: cfg.Chat.Temperature})
		if err != nil {
			return err
		}
		svc.Chat = service.NewChatService(model, catalog, orders, logger, service.WithChatRetry(cfg.Chat.Retries, cfg.ChatBackoff()))
	} else {
		logger.Warn("GEMINI_API_KEY not set, chat assistant disabled")
	}

	sched := jobs.NewScheduler(logger)
	if err := sched.AddFlashSaleExpiry(cfg.Jobs.ExpireFlashSales, admin); err != nil {
		return err
	}
	sched.Start()

	// gRPC
	grpcServer := handler.NewGRPCServer(handler.NewGRPCHandler(orders, logger), handler.GRPCConfig{
		APIKeys:    cfg.Auth.APIKeys,
		RateLimit:  cfg.RateLimit.Requests,
		RateWindow: cfg.RateWindow(),
	}, cache, svc.Auth, logger)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPC.Addr, err)
	}
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// HTTP
	api := handler.NewHTTPHandler(svc, cache, handler.Config{
		APIKeys:    cfg.Auth.APIKeys,
		RateLimit:  cfg.RateLimit.Requests,
		RateWindow: cfg.RateWindow(),
		BodyLimit:  cfg.HTTP.BodyLimit,
	}, map[string]handler.Pinger{"mysql": repo, "redis": cache}, logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Echo(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	sched.Stop()
	notifier.Close()
	logger.Info("notifier drained")
	return nil
}
