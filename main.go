package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/events"
	"messaging-service/internal/fanout"
	"messaging-service/internal/grpcserver"
	"messaging-service/internal/handlers"
	"messaging-service/internal/logging"
	"messaging-service/internal/messaging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/tracing"
	"messaging-service/internal/ws"
)

const (
	auditRoutingKey     = "audit.messaging"
	healthCheckInterval = 15 * time.Second
	shutdownTimeout     = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "messaging-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint, logger)
	if err != nil {
		return err
	}

	store, pinger, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer func() { _ = publisher.Close() }()
	logger.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))
	observability.SetPublisher(publisher)
	auditEmitter := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.ServiceName, cfg.Env, logger)

	hub := ws.NewHub(logger)
	var broadcaster events.Broadcaster = hub
	var limiter *middleware.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()

		relay := fanout.NewRedisRelay(rdb, cfg.RedisChannel, hub, logger)
		broadcaster = relay
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("redis relay stopped", zap.Error(err))
			}
		}()

		if cfg.RateLimit.Limit > 0 {
			limiter, err = middleware.NewFixedWindowLimiter(rdb, "messaging:ratelimit", cfg.RateLimit.Limit, cfg.RateLimit.Window)
			if err != nil {
				return err
			}
		}
	} else {
		logger.Info("redis disabled, websocket fan-out is local and message writes are not rate limited")
	}

	dispatcher := events.NewDispatcher(publisher, broadcaster, logger)
	service := messaging.NewService(store, dispatcher, logger, messaging.WithMaxThreadDepth(cfg.MaxThreadDepth))
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		otelgin.Middleware(cfg.ServiceName),
		observability.HTTPMetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if pinger != nil {
			if err := pinger.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	wsHandler := ws.NewConversationWebSocketHandler(ctx, hub, verifier, service, logger)
	router.GET("/ws/conversations/:conversation_id", wsHandler.Handle)

	api := router.Group("/", middleware.AuthMiddleware(verifier))
	handlers.Routes{
		Service:    service,
		Audit:      auditEmitter,
		Logger:     logger,
		WriteLimit: middleware.RateLimit(limiter),
	}.Register(api)
	handlers.RegisterDebugRoutes(api, auditEmitter, cfg.DebugRoutes)

	grpcSrv := grpcserver.New(logger)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	grpcSrv.CheckDependency(ctx, pinger)
	go watchHealth(ctx, grpcSrv, pinger)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() { errCh <- grpcSrv.Serve(lis) }()
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	return runErr
}

// openStore picks Postgres when a DSN is configured and the in-memory store
// otherwise. The returned pinger is nil for the in-memory store.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Store, grpcserver.Pinger, func(), error) {
	if cfg.DatabaseDSN == "" {
		logger.Warn("DB_DSN not set, using the in-memory store")
		return repositories.NewMemoryStore(), nil, func() {}, nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect db: %w", err)
	}
	return repositories.NewSQLStore(database), database, func() { _ = database.Close() }, nil
}

func watchHealth(ctx context.Context, srv *grpcserver.Server, pinger grpcserver.Pinger) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.CheckDependency(ctx, pinger)
		}
	}
}
