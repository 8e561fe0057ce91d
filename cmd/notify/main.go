package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/skaisay/capycode-frontend-sub002/internal/authclient"
	"github.com/skaisay/capycode-frontend-sub002/internal/config"
	"github.com/skaisay/capycode-frontend-sub002/internal/events"
	"github.com/skaisay/capycode-frontend-sub002/internal/handlers"
	"github.com/skaisay/capycode-frontend-sub002/internal/logging"
	"github.com/skaisay/capycode-frontend-sub002/internal/ratelimit"
	"github.com/skaisay/capycode-frontend-sub002/internal/registry"
	"github.com/skaisay/capycode-frontend-sub002/internal/relay"
	"github.com/skaisay/capycode-frontend-sub002/internal/server"

	natsclient "github.com/skaisay/capycode-frontend-sub002/internal/messaging/nats"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format).With(logging.Service("notify"))
	logging.SetDefault(logger)

	slog.Info("Starting notify service",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("auth_url", cfg.Auth.URL),
		slog.Duration("liveness_interval", cfg.Relay.LivenessInterval),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	// Rate limiter for authentication attempts
	var limiter ratelimit.Limiter
	if cfg.Redis.Enabled && cfg.RateLimit.Enabled {
		limiter, err = ratelimit.NewRedisLimiter(cfg.Redis.URL, cfg.RateLimit.Attempts, cfg.RateLimit.Window)
		if err != nil {
			slog.Warn("Failed to initialize Redis rate limiter, continuing without rate limiting",
				slog.String("error", err.Error()))
			limiter = ratelimit.NoOpLimiter{}
		} else {
			slog.Info("Auth rate limiting enabled",
				slog.Int("attempts", cfg.RateLimit.Attempts),
				slog.Duration("window", cfg.RateLimit.Window),
			)
		}
	} else {
		limiter = ratelimit.NoOpLimiter{}
		slog.Info("Auth rate limiting disabled")
	}
	defer limiter.Close()

	// Identity provider client
	resolver := authclient.New(cfg.Auth.URL, cfg.Auth.Timeout, cfg.Auth.CacheTTL)

	// Relay core
	reg := registry.New(logger)
	relayServer := relay.NewServer(reg, resolver, limiter, logger, relay.Options{
		AllowedOrigins:  cfg.Relay.AllowedOrigins,
		SendBuffer:      cfg.Relay.SendBuffer,
		MaxMessageBytes: cfg.Relay.MaxMessageBytes,
		AuthTimeout:     cfg.Auth.Timeout,
	})

	monitor := relay.NewLivenessMonitor(reg, cfg.Relay.LivenessInterval, logger)
	monitor.Start()
	defer monitor.Stop()

	// Producer event subscription
	var busClient *natsclient.Client
	var subscriber *events.Subscriber
	if cfg.NATS.Enabled && cfg.NATS.URL != "" {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Name = cfg.NATS.Name

		busClient, err = natsclient.NewClient(natsCfg)
		if err != nil {
			slog.Warn("Failed to connect to NATS, bus producers disabled",
				slog.String("url", cfg.NATS.URL),
				slog.String("error", err.Error()),
			)
		} else {
			slog.Info("Connected to NATS", slog.String("url", cfg.NATS.URL))
			subscriber = events.NewSubscriber(busClient, reg, logger)
			if err := subscriber.Start(); err != nil {
				slog.Warn("Failed to start event subscriber", slog.String("error", err.Error()))
			}
		}
	} else {
		slog.Info("NATS disabled, bus producers unavailable")
	}

	if cfg.Relay.ServiceToken == "" {
		slog.Warn("No service token configured, HTTP producer endpoint disabled")
	}

	notifyHandler := handlers.NewNotifyHandler(reg, cfg.Relay.ServiceToken, logger)
	router := server.NewRouter(relayServer, notifyHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Notify service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")

	if subscriber != nil {
		if err := subscriber.Stop(); err != nil {
			slog.Warn("Error stopping event subscriber", slog.String("error", err.Error()))
		}
	}
	if busClient != nil {
		if err := busClient.Drain(); err != nil {
			slog.Warn("Error draining NATS connection", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	slog.Info("Server stopped")
}
