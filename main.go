package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront-svc/cache"
	"storefront-svc/checkout"
	"storefront-svc/config"
	"storefront-svc/database"
	"storefront-svc/gateway"
	"storefront-svc/handlers"
	"storefront-svc/kafka"
	"storefront-svc/middleware"
	"storefront-svc/reconciler"
	"storefront-svc/threads"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	grpcLib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const serviceName = "storefront-service"

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	// Initialize database
	db, err := database.InitDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Redis only caches brand configuration; run without it if unreachable
	var brandCache redis.Cmdable
	redisClient, err := cache.InitRedis(cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis unavailable, brand cache disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		brandCache = redisClient
	}

	// Initialize Kafka producer
	saramaProducer, err := kafka.InitProducer(cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer saramaProducer.Close()
	producer := kafka.NewProducer(saramaProducer, cfg.Kafka.Topic, logger)

	// Initialize OpenTelemetry
	shutdownTracing, err := middleware.InitTracing(serviceName, cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	orderStore := database.NewOrderStore(db)
	brandStore := database.NewBrandStore(db, brandCache, cfg.Redis.BrandCacheTTL, logger)
	catalog := database.NewCatalog(db)
	threadStore := database.NewThreadStore(db)

	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, logger)
	spawner := threads.NewSpawner(threadStore, producer, logger)
	checkoutService := checkout.NewService(brandStore, catalog, orderStore, gatewayClient, producer, checkout.Options{
		Currency:      cfg.Gateway.Currency,
		PublicBaseURL: cfg.PublicBaseURL,
		StorefrontURL: cfg.StorefrontURL,
	}, logger)
	paymentReconciler := reconciler.New(brandStore, gatewayClient, orderStore, spawner, producer, logger)

	// Start Kafka consumer in background for thread spawn retries
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	saramaConsumer, err := kafka.InitConsumer(cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
	}
	defer saramaConsumer.Close()

	go func() {
		consumer := kafka.NewConsumer(orderStore, spawner, logger)
		if err := consumer.Start(consumerCtx, saramaConsumer, cfg.Kafka.Topic); err != nil {
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	auth := middleware.AuthMiddleware([]byte(cfg.AuthJWTSecret))

	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, logger)
	router.POST("/checkout/quote", checkoutHandler.Quote)
	router.POST("/checkout/preference", auth, checkoutHandler.CreatePreference)

	orderHandler := handlers.NewOrderHandler(orderStore, logger)
	router.GET("/orders/:id", auth, orderHandler.GetOrder)

	webhookHandler := handlers.NewWebhookHandler(paymentReconciler, logger)
	router.GET("/webhooks/gateway", webhookHandler.Ping)
	router.POST("/webhooks/gateway", webhookHandler.Notify)

	// Start REST server
	restSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := restSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Storefront Service REST API started", zap.String("port", cfg.Port))

	// Start gRPC server exposing the standard health service
	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Fatal("Failed to listen on gRPC port", zap.Error(err))
	}

	grpcServer := grpcLib.NewServer(
		grpcLib.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	logger.Info("Storefront Service gRPC server started", zap.String("port", cfg.GRPCPort))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down servers...")
	healthServer.Shutdown()
	stopConsumer()

	// Shutdown REST server
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := restSrv.Shutdown(ctx); err != nil {
		logger.Error("REST server forced to shutdown", zap.Error(err))
	}

	// Shutdown gRPC server
	grpcServer.GracefulStop()

	logger.Info("Servers exited")
}
