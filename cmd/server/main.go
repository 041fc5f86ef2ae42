package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"storefront-service/config"
	"storefront-service/internal/api"
	"storefront-service/internal/broker"
	"storefront-service/internal/gateway"
	"storefront-service/internal/models"
	"storefront-service/internal/notify"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/service"
	"storefront-service/internal/snapshot"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	dispatcher := worker.NewDispatcher(cfg.Worker.QueueSize)
	dispatcher.Start(context.Background(), cfg.Worker.Workers)
	defer dispatcher.Stop()

	// Backend selection happens once here; everything downstream sees only
	// the repository contracts.
	var (
		orderRepo    store.OrderRepository
		settingsRepo store.SettingsRepository
	)
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		orderRepo, settingsRepo = pg, pg
		log.Println("Using Postgres storage backend")
	} else {
		var snapshotter store.Snapshotter
		if cfg.FileStore.SnapshotEnabled {
			snapshotter = snapshot.NewGitSnapshotter(
				cfg.FileStore.Dir, cfg.FileStore.SnapshotRemote, cfg.FileStore.SnapshotBranch, dispatcher)
		}
		fs, err := store.NewFileStore(cfg.FileStore.Dir, snapshotter)
		if err != nil {
			log.Fatalf("Failed to open file store: %v", err)
		}
		orderRepo, settingsRepo = fs, fs
		log.Printf("Using file storage backend at %s", cfg.FileStore.Dir)
	}

	var redisClient *redisclient.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	var eventPublisher *broker.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrders)
		defer producer.Close()
		eventPublisher = broker.NewEventPublisher(producer)
		log.Println("Kafka producer initialized")
	}

	seed := seedSettings(cfg)
	settingsService, err := service.NewSettingsService(context.Background(), settingsRepo, seed)
	if err != nil {
		log.Fatalf("Failed to load site settings: %v", err)
	}

	base := strings.TrimRight(cfg.Server.PublicBaseURL, "/")
	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, gateway.CallbackConfig{
		SuccessURL:      base + "/checkout/success",
		FailureURL:      base + "/checkout/failure",
		PendingURL:      base + "/checkout/pending",
		NotificationURL: base + "/webhooks/payments",
	}, gateway.WithPhoneRules(cfg.Gateway.PhoneCountryCode, cfg.Gateway.PhoneLocalLen))

	notifier := notify.NewWhatsAppNotifier(cfg.Notify.Endpoint)

	orderService := service.NewOrderService(
		orderRepo, settingsService, gatewayClient, notifier,
		eventPublisher, redisClient, dispatcher)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, settingsService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// seedSettings builds the initial site settings from the environment, or
// nil when nothing is configured.
func seedSettings(cfg *config.Config) *models.SiteConfig {
	s := cfg.Seed
	if s.WhatsAppNumber == "" && s.ContactEmail == "" &&
		s.GatewayAccessToken == "" && s.GatewayPublicKey == "" {
		return nil
	}
	return &models.SiteConfig{
		WhatsAppNumber:     s.WhatsAppNumber,
		ContactEmail:       s.ContactEmail,
		GatewayAccessToken: s.GatewayAccessToken,
		GatewayPublicKey:   s.GatewayPublicKey,
	}
}
