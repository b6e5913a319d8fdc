package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/api"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/events"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/screens"
	"fintrack/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel)})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	principal, err := initialPrincipal(ctx, cfg)
	if err != nil {
		logger.Error("Failed to establish principal",
			log.FieldErrorType, log.ErrorTypeAuth,
			"auth_mode", cfg.AuthMode,
			log.FieldError, err)
		os.Exit(1)
	}
	watcher := auth.NewWatcher(principal)

	client := api.New(cfg.APIBaseURL,
		api.WithTimeout(cfg.APITimeout),
		api.WithLogger(logger))

	caches := cache.NewManager(logger)
	var categorizer api.Categorizer = client
	if cfg.CategorizeCacheSize > 0 {
		suggestions := cache.NewLRUCache[string](cfg.CategorizeCacheSize, cfg.CategorizeCacheTTL)
		caches.Register(suggestions)
		categorizer = api.NewCachingCategorizer(client, suggestions)
	}
	caches.StartCleanup(5 * time.Minute)

	var (
		publisher events.Publisher = events.NoopPublisher{}
		ready     func(context.Context) error
	)
	if cfg.AMQPURL != "" {
		ec, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable at startup, transactions will not be exported",
				log.FieldErrorType, log.ErrorTypeRemote,
				log.FieldError, err)
		} else {
			publisher = ec
			ready = ec.Ready
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := services.NewTransactionService(client, categorizer, publisher, logger)

	session := screens.NewSession(watcher, client, cfg.Fire, logger)
	session.Start(ctx)

	var signIn func(context.Context, string) (*auth.Principal, error)
	if cfg.AuthMode == config.AuthModeLogin {
		signIn = func(_ context.Context, token string) (*auth.Principal, error) {
			return auth.NewStaticPrincipal(token)
		}
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Currency:           cfg.CurrencySymbol,
		Location:           cfg.Location(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		FireDefaults:       cfg.Fire,
		RefreshTimeout:     cfg.APITimeout,
	}, apphttp.Dependencies{
		Watcher:      watcher,
		Session:      session,
		Transactions: svc,
		SignIn:       signIn,
		Caches:       caches,
		Ready:        ready,
	}, logger)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting fintrack server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"api", cfg.APIBaseURL,
		"auth_mode", cfg.AuthMode)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cancel()
	}

	<-stopped
	session.Stop()
	caches.Stop()
	if err := svc.Close(); err != nil {
		logger.Warn("Failed closing publisher", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}

// initialPrincipal resolves the principal for AUTH_MODE. In login mode nobody
// is signed in until a token is pasted on /login.
func initialPrincipal(ctx context.Context, cfg *config.Config) (*auth.Principal, error) {
	switch cfg.AuthMode {
	case config.AuthModeStatic:
		return auth.NewStaticPrincipal(cfg.AuthToken)
	case config.AuthModeClientCredentials:
		return auth.NewClientCredentialsPrincipal(ctx, auth.ClientCredentials{
			TokenURL:     cfg.OAuthTokenURL,
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			Scopes:       cfg.OAuthScopes,
		})
	default:
		return nil, nil
	}
}
