package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/watchdesk-systems/watchdesk/internal/correlation"
	"github.com/watchdesk-systems/watchdesk/internal/handlers"
	"github.com/watchdesk-systems/watchdesk/internal/logging"
	"github.com/watchdesk-systems/watchdesk/internal/notify"
	"github.com/watchdesk-systems/watchdesk/internal/policy"
	"github.com/watchdesk-systems/watchdesk/internal/ratelimit"
	"github.com/watchdesk-systems/watchdesk/internal/reputation"
	"github.com/watchdesk-systems/watchdesk/internal/scheduler"
	"github.com/watchdesk-systems/watchdesk/internal/server"
	"github.com/watchdesk-systems/watchdesk/internal/service"
	"github.com/watchdesk-systems/watchdesk/internal/store"
	"github.com/watchdesk-systems/watchdesk/internal/summary"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the alert triage service",
	Long:  `Starts the webhook listener, correlation pipeline, and periodic summary scheduler.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Initialize structured logging
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).With("service", "watchdesk")
	logging.SetDefault(logger)

	logger.Info("starting watchdesk",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"retention_ttl", cfg.Alerts.RetentionTTL.String(),
	)
	if cfgFile != "" {
		logger.Info("loaded configuration", "config_path", cfgFile)
	}
	if cfg.Server.APIKey == "" {
		logger.Warn("server.api_key is not set, every webhook request will be rejected with 401")
	}

	// Alert store
	alertStore, err := store.NewRedisStore(cfg.Redis.URL, cfg.Alerts.RetentionTTL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer alertStore.Close()

	// Rate limiter shares the alert store's Redis
	var limiter ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rl, err := ratelimit.NewRedisRateLimiter(cfg.Redis.URL, cfg.RateLimit.Requests, cfg.RateLimit.Window, false)
		if err != nil {
			logger.Warn("failed to initialize rate limiter, continuing without", "error", err)
			limiter = &ratelimit.NoOpRateLimiter{}
		} else {
			limiter = rl
			logger.Info("rate limiting enabled", "requests", cfg.RateLimit.Requests, "window", cfg.RateLimit.Window.String())
		}
	} else {
		limiter = &ratelimit.NoOpRateLimiter{}
		logger.Info("rate limiting disabled in configuration")
	}
	defer limiter.Close()

	// Reputation gateway
	gateway, err := buildGateway(logger)
	if err != nil {
		return err
	}

	// Notification channels
	channel, closers := buildChannels(logger)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	// Core pipeline
	engine := correlation.NewEngine(alertStore)
	polEngine := policy.NewEngine(gateway, cfg.Alerts.NotifyThreshold, logger)
	pipeline := service.NewPipeline(engine, polEngine, gateway, channel, logger)
	compiler := summary.NewCompiler(alertStore)

	// Periodic summary digests
	sched := scheduler.NewScheduler(compiler, channel, scheduler.Config{
		Interval: cfg.Summary.Interval,
		Window:   cfg.Summary.Window,
	}, logger)
	if err := sched.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start summary scheduler: %w", err)
	}
	defer sched.Stop()

	// HTTP surface
	handler := handlers.NewAlertHandler(pipeline, compiler, limiter, cfg.Server.APIKey, cfg.Summary.Window, logger)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("webhook listener started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// buildGateway wires both reputation providers behind a single verdict
// surface. Providers without an API key are left out.
func buildGateway(logger *logging.Logger) (*reputation.Gateway, error) {
	classifier, err := reputation.NewClassifier()
	if err != nil {
		return nil, fmt.Errorf("failed to load category table: %w", err)
	}

	var abuse *reputation.AbuseClient
	var ioc *reputation.IOCClient

	if cfg.Reputation.AbuseAPIKey != "" {
		abuse = reputation.NewAbuseClient(cfg.Reputation.AbuseURL, cfg.Reputation.AbuseAPIKey, cfg.Reputation.Timeout, cfg.Reputation.MaxRetries)
		logger.Info("abuse reputation provider enabled", "url", cfg.Reputation.AbuseURL)
	} else {
		logger.Warn("abuse provider disabled, no API key configured")
	}
	if cfg.Reputation.IOCAPIKey != "" {
		ioc = reputation.NewIOCClient(cfg.Reputation.IOCURL, cfg.Reputation.IOCAPIKey, cfg.Reputation.Timeout, cfg.Reputation.MaxRetries)
		logger.Info("ioc reputation provider enabled", "url", cfg.Reputation.IOCURL)
	} else {
		logger.Warn("ioc provider disabled, no API key configured")
	}

	gwCfg := reputation.Config{
		ConfidenceThreshold: cfg.Reputation.ConfidenceThreshold,
		PreferIOC:           cfg.Reputation.PreferIOC,
	}

	var abuseChecker, iocChecker reputation.Checker
	var reporter reputation.Reporter
	if abuse != nil {
		abuseChecker = abuse
		reporter = abuse
	}
	if ioc != nil {
		iocChecker = ioc
	}

	return reputation.NewGateway(abuseChecker, iocChecker, reporter, classifier, gwCfg, logger), nil
}

// buildChannels assembles the configured notification channels into one
// multi-channel. Returned closers tear down connection-holding channels.
func buildChannels(logger *logging.Logger) (notify.Channel, []func()) {
	var channels []notify.Channel
	var closers []func()

	if cfg.Notify.WebhookURL != "" {
		channels = append(channels, notify.NewWebhookChannel(cfg.Notify.WebhookURL, cfg.Notify.Timeout))
		logger.Info("webhook notification channel enabled")
	}
	if cfg.Notify.SlackWebhook != "" {
		channels = append(channels, notify.NewSlackChannel(cfg.Notify.SlackWebhook, cfg.Notify.Timeout))
		logger.Info("slack notification channel enabled")
	}
	if cfg.Notify.NATSURL != "" {
		natsCfg := notify.DefaultNATSConfig()
		natsCfg.URL = cfg.Notify.NATSURL
		natsCfg.SubjectRoot = cfg.Notify.NATSSubject
		nc, err := notify.NewNATSChannel(natsCfg)
		if err != nil {
			logger.Warn("failed to connect NATS channel, continuing without", "error", err)
		} else {
			channels = append(channels, nc)
			closers = append(closers, func() { nc.Close() })
			logger.Info("nats notification channel enabled", "subject", cfg.Notify.NATSSubject)
		}
	}
	if len(channels) == 0 {
		logger.Warn("no notification channels configured, falling back to log channel")
		channels = append(channels, notify.NewLogChannel(log.Printf))
	}

	return notify.NewMultiChannel(channels...), closers
}
