package main

import (
	"log"
	"net/http"

	"github.com/gpng/edge-relay/cmd/relay/config"
	"github.com/gpng/edge-relay/cmd/relay/handlers"
	"github.com/gpng/edge-relay/services/backend"
	"github.com/gpng/edge-relay/services/health"
	"github.com/gpng/edge-relay/services/logger"
	"github.com/gpng/edge-relay/services/postgres"
	"github.com/gpng/edge-relay/services/telegram"
	"github.com/gpng/edge-relay/services/telemetry"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load env vars: %v", err)
	}

	// initialise services
	l := logger.New(cfg.Debug)
	defer l.Sync()

	client := &http.Client{Timeout: cfg.HTTPTimeout}

	if cfg.BotToken == "" {
		l.Warn("TELEGRAM_BOT_TOKEN not configured, replies are disabled")
	}
	bot := telegram.New(l, client, cfg.BotToken, cfg.TelegramAPI)

	engine := backend.New(client, cfg.BackendEndpoint, cfg.RelayOrigin)
	if cfg.BackendEndpoint == backend.DefaultEndpoint {
		l.Warn("AWS_N8N_ENDPOINT not configured, using placeholder", zap.String("endpoint", engine.Endpoint()))
	}

	prober := health.New(l, client, health.Config{
		BackendURL:   cfg.BackendHealthURL,
		AnalyticsURL: cfg.SupabaseURL,
		AnalyticsKey: cfg.SupabaseAnonKey,
		Timeout:      cfg.ProbeTimeout,
	})

	sink := telemetrySink(l, client, cfg)

	api := handlers.New(l, bot, engine, prober, sink)

	// initialise main router with basic middlewares
	router := mainRouter()

	// mount services
	router.Mount("/", api.Routes())

	addr := ":" + cfg.Port
	l.Info("listening", zap.String("addr", addr), zap.String("webhook", handlers.WebhookPath))
	err = http.ListenAndServe(addr, router)
	if err != nil {
		l.Error("server stopped", zap.Error(err))
	}
}

// telemetrySink writes to every analytics destination that is configured
func telemetrySink(l *zap.Logger, client *http.Client, cfg config.Config) telemetry.Sink {
	var sinks telemetry.Tee

	rest := telemetry.NewREST(l, client, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.PlatformTag)
	if rest.Enabled() {
		sinks = append(sinks, rest)
	} else {
		l.Warn("SUPABASE_URL or SUPABASE_ANON_KEY not configured, REST telemetry disabled")
	}

	if cfg.SupabaseDBURL != "" {
		db, err := postgres.New(l, cfg.SupabaseDBURL)
		if err != nil {
			l.Warn("analytics database unavailable, direct telemetry disabled", zap.Error(err))
		} else {
			sinks = append(sinks, telemetry.NewPostgres(l, db, cfg.PlatformTag))
		}
	}

	if len(sinks) == 0 {
		return telemetry.Nop{}
	}
	return sinks
}

func mainRouter() chi.Router {
	router := chi.NewRouter()

	// A good base middleware stack
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// stop crawlers
	router.Get("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /"))
	})

	return router
}
