package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/jobhub/backend/docs"
	"github.com/jobhub/backend/internal/audit"
	"github.com/jobhub/backend/internal/config"
	"github.com/jobhub/backend/internal/database"
	"github.com/jobhub/backend/internal/gateway"
	"github.com/jobhub/backend/internal/handlers"
	mW "github.com/jobhub/backend/internal/middleware"
	"github.com/jobhub/backend/internal/notify"
	"github.com/jobhub/backend/internal/scheduler"
	"github.com/jobhub/backend/internal/services"
)

// @title JobHub Billing Backend API
// @version 1.0
// @description Payment reconciliation and additional hours billing
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	docs.SwaggerInfo.Host = "localhost:" + cfg.ServerPort
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db := database.InitDatabase(cfg)
	defer db.Close()

	redisClient := database.InitRedis(cfg.RedisURL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	notifier := notify.NewNotifier(cfg.RabbitMQURL, cfg.NotificationExchange)
	defer notifier.Close()

	auditLogger := audit.NewAuditLogger()
	stripeGateway := gateway.NewStripeGateway(cfg.StripeSecretKey)
	limiter := services.NewErrorLogLimiter(redisClient, cfg.ErrorLogCooldown)

	ledgerService := services.NewLedgerService(db)
	payoutService := services.NewPayoutService(cfg, db, stripeGateway, ledgerService, auditLogger)
	billingService := services.NewBillingService(cfg, db, stripeGateway, ledgerService, payoutService, auditLogger)
	approvalService := services.NewApprovalService(db, auditLogger, cfg.TxMaxRetries)
	materializer := services.NewOrderMaterializer(db, notifier, auditLogger, services.NewOrderPolicy(cfg), cfg.TxMaxRetries)
	subscriptionService := services.NewSubscriptionService(db)
	clearingService := services.NewClearingService(db)

	eventGate := services.NewEventGate(cfg.StripeWebhookSecret, cfg.WebhookTolerance, limiter)
	eventRouter := services.NewEventRouter(services.NewVariantParser(), materializer, billingService, subscriptionService, limiter)

	webhookHandler := handlers.NewWebhookHandler(eventGate, eventRouter)
	approvalHandler := handlers.NewApprovalHandler(approvalService, billingService)

	jobs := scheduler.NewScheduler(scheduler.NewJobs(payoutService, clearingService), cfg)
	jobs.Start()

	mW.InitAuthMiddleware(cfg.JWTSecretKey)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := db.PingContext(r.Context()); err != nil {
			status, code = "database unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Signed by the gateway, not by a user token.
	r.Post("/webhooks/stripe", webhookHandler.HandleStripeEvent)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mW.AuthMiddleware)
		approvalHandler.Routes(r)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	select {
	case <-jobs.Stop().Done():
	case <-ctx.Done():
		log.Println("Background jobs did not finish before shutdown deadline")
	}

	log.Println("Server stopped")
}
