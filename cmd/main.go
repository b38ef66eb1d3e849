package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/Vovarama1992/ebeef-copilot/internal/ai"
	"github.com/Vovarama1992/ebeef-copilot/internal/auth"
	"github.com/Vovarama1992/ebeef-copilot/internal/cache"
	"github.com/Vovarama1992/ebeef-copilot/internal/config"
	"github.com/Vovarama1992/ebeef-copilot/internal/copilot"
	"github.com/Vovarama1992/ebeef-copilot/internal/health"
	"github.com/Vovarama1992/ebeef-copilot/internal/metrics"
	"github.com/Vovarama1992/ebeef-copilot/internal/realtime"
	"github.com/Vovarama1992/ebeef-copilot/internal/whatsapp"
)

func main() {
	defaultConfig := os.Getenv("CONFIG_FILE")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	configPath := flag.String("config", defaultConfig, "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, closeLog := config.SetupLogger(cfg.Log.File, cfg.LogLevel())
	defer closeLog()
	slog.SetDefault(logger)

	// --- DB ---
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("db open error", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Error("db ping error", "error", err)
		os.Exit(1)
	}

	// --- Redis (optional) ---
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable, catalog cache disabled", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	m := metrics.New()
	authn := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.AuthEnabled())
	aiClient := ai.NewOpenAIClient(ai.OpenAIOptions{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout(),
	}, logger, m)

	// --- Copilot module wiring ---
	var (
		copilotRepo copilot.Repo = copilot.NewRepo(db)
		refresher   copilot.Refresher
	)
	if rdb != nil {
		cached := copilot.NewCachedRepo(copilotRepo, cache.NewRedis(rdb, "ebeef"))
		copilotRepo, refresher = cached, cached
	}
	copilotService := copilot.NewService(copilotRepo, aiClient, copilot.Options{
		Rules: copilot.PromotionRules{
			WelcomeCodes:  cfg.Copilot.WelcomeCodes,
			BulkCodes:     cfg.Copilot.BulkCodes,
			BulkThreshold: cfg.Copilot.BulkThreshold,
		},
		ReorderAfterDays: cfg.Copilot.ReorderAfterDays,
	}, logger)
	copilotHandler := copilot.NewHandler(copilotService, refresher, logger)

	// --- Realtime ---
	hub := realtime.NewHub(logger)
	wsHandler := realtime.NewHandler(hub, authn, copilotService, cfg.Server.CORSOrigins, logger)

	// --- WhatsApp module wiring ---
	outbound := whatsapp.NewWhatsAppOutbound(cfg.WhatsApp.APIBaseURL, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.Token, logger)
	waService := whatsapp.NewService(whatsapp.NewRepo(db), aiClient, outbound, hub, copilotService, whatsapp.Options{
		HandoffKeywords: cfg.Copilot.HandoffKeywords,
		Advisor:         copilotService,
		Metrics:         m,
		Logger:          logger,
	})
	waHandler := whatsapp.NewHandler(waService, whatsapp.WebhookOptions{
		VerifyToken:     cfg.WhatsApp.VerifyToken,
		AppSecret:       cfg.WhatsApp.AppSecret,
		VerifySignature: cfg.IsProduction(),
	}, logger)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Hub-Signature-256"},
		AllowCredentials: true,
	}))

	// --- health ---
	var redisPing health.PingFunc
	if rdb != nil {
		redisPing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	checker := health.NewChecker(cfg.Server.Mode, db.PingContext, redisPing)
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	r.Get("/health", checker.Health)
	r.Get("/live", checker.Live)
	r.Get("/ready", checker.Ready)
	r.Handle("/metrics", m.Handler())

	whatsapp.RegisterWebhookRoutes(r, waHandler)
	realtime.RegisterRoutes(r, wsHandler)

	r.Group(func(r chi.Router) {
		r.Use(authn.Middleware)
		ai.RegisterRoutes(r, ai.NewHandler(aiClient, logger))
		copilot.RegisterRoutes(r, copilotHandler)
		whatsapp.RegisterRoutes(r, waHandler)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", cfg.Server.Port, "mode", cfg.Server.Mode, "ai", aiClient.Available())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	// open websockets are hijacked and not waited on by Shutdown
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
