package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/markjakearzadon/paygate-gobackend/internal/config"
	"github.com/markjakearzadon/paygate-gobackend/internal/db"
	"github.com/markjakearzadon/paygate-gobackend/internal/events"
	"github.com/markjakearzadon/paygate-gobackend/internal/gateway"
	"github.com/markjakearzadon/paygate-gobackend/internal/handlers"
	"github.com/markjakearzadon/paygate-gobackend/internal/notify"
	"github.com/markjakearzadon/paygate-gobackend/internal/services"
	"github.com/markjakearzadon/paygate-gobackend/internal/signature"
	"github.com/markjakearzadon/paygate-gobackend/internal/store"
)

func setupLogger(level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, *mongo.Client, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil, nil
	}
	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	st := store.NewMongoStore(client.Database(cfg.MongoDB))
	if err := st.EnsureIndexes(ctx); err != nil {
		db.Disconnect(client)
		return nil, nil, err
	}
	return st, client, nil
}

func main() {
	cfg := config.Load()
	setupLogger(cfg.LogLevel, cfg.LogPretty)
	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// run owns every resource it opens, so its deferred cleanup runs before main exits.
func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, client, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	if client != nil {
		defer db.Disconnect(client)
	}

	scheme := signature.Scheme{IncludeDigest: cfg.DokuSignatureDigest}
	gw, err := gateway.New(cfg.Gateway,
		gateway.DokuOptions{
			BaseURL:  cfg.DokuBaseURL,
			ClientID: cfg.DokuClientID,
			Secret:   cfg.DokuSecretKey,
			Scheme:   scheme,
			Timeout:  cfg.GatewayTimeout,
			BankCode: cfg.DokuVABank,
		},
		gateway.XenditOptions{
			BaseURL:     cfg.XenditBaseURL,
			SecretKey:   cfg.XenditSecretKey,
			RedirectURL: cfg.PublicBaseURL,
			Timeout:     cfg.GatewayTimeout,
		})
	if err != nil {
		return fmt.Errorf("failed to configure payment gateway: %w", err)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.TwilioEnabled() {
		notifier = notify.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsappFrom)
	} else {
		log.Warn().Msg("twilio not configured, whatsapp notifications disabled")
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.RabbitURL != "" {
		rabbit, err := events.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		defer rabbit.Close()
		publisher = rabbit
	}

	reconciler := services.NewReconciler(st, notifier, publisher, cfg.TwilioTemplateSID)
	checkoutService := services.NewCheckoutService(st, gw, cfg.PublicBaseURL+"/api/webhook", cfg.DueMinutes)
	userService := services.NewUserService(st, cfg.JWTSecret)
	orderService := services.NewOrderService(st)

	verifier := &signature.Verifier{SecretKey: cfg.DokuSecretKey, Scheme: scheme, ClientID: cfg.DokuClientID}
	webhookHandler, err := handlers.NewWebhookHandler(reconciler, verifier, cfg.XenditWebhookToken, cfg.ReplayCacheSize)
	if err != nil {
		return fmt.Errorf("failed to create webhook handler: %w", err)
	}
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, cfg.CheckoutRateRPS, cfg.CheckoutRateBurst)
	adminHandler := handlers.NewAdminHandler(userService, reconciler, orderService)

	router := handlers.NewRouter(webhookHandler, checkoutHandler, adminHandler, userService)
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("port", cfg.Port).Str("gateway", gw.Name()).Str("store", cfg.StoreDriver).Msg("server running")
	return serve(ctx, server, 15*time.Second)
}

// serve runs server until ctx is cancelled or the listener fails, then shuts it down. A
// listener failure is returned.
func serve(ctx context.Context, server *http.Server, grace time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	var listenErr error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			listenErr = fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	return listenErr
}
