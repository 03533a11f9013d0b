package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-console/internal/apiclient"
	"github.com/capitalize-ai/support-console/internal/autoresponse"
	"github.com/capitalize-ai/support-console/internal/backend"
	"github.com/capitalize-ai/support-console/internal/config"
	"github.com/capitalize-ai/support-console/internal/customer"
	"github.com/capitalize-ai/support-console/internal/fulfillment"
	"github.com/capitalize-ai/support-console/internal/handler"
	"github.com/capitalize-ai/support-console/internal/intent"
	"github.com/capitalize-ai/support-console/internal/llm"
	"github.com/capitalize-ai/support-console/internal/middleware"
	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/internal/reconcile"
	"github.com/capitalize-ai/support-console/internal/service"
	"github.com/capitalize-ai/support-console/internal/store"
	"github.com/capitalize-ai/support-console/internal/transport"
	"github.com/capitalize-ai/support-console/pkg/logger"
	"github.com/capitalize-ai/support-console/pkg/tracing"
)

const reconnectInterval = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console API and live channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	if cfg.LogDevelopment {
		return logger.NewDevelopment()
	}
	return logger.New(cfg.LogLevel)
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting support console")

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "support-console", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Collaborators
	backendClient := backend.NewClient(apiclient.New(apiclient.Config{
		Name: "backend", BaseURL: cfg.BackendURL, Token: cfg.APIToken, Timeout: cfg.CollaboratorTimeout,
	}), log.Named("backend"))

	var customers customer.Source
	if cfg.CustomerURL != "" {
		customers = customer.NewClient(apiclient.New(apiclient.Config{
			Name: "customer_context", BaseURL: cfg.CustomerURL, Token: cfg.APIToken, Timeout: cfg.CollaboratorTimeout,
		}))
	}

	var status *fulfillment.CachedProvider
	if cfg.FulfillmentURL != "" {
		cache, closeCache, err := newStatusCache(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeCache()
		status = fulfillment.NewCachedProvider(fulfillment.NewClient(apiclient.New(apiclient.Config{
			Name: "fulfillment", BaseURL: cfg.FulfillmentURL, Token: cfg.APIToken, Timeout: cfg.CollaboratorTimeout,
		})), cache, log.Named("fulfillment"))
	}

	// Assistant pipeline
	genOpts := []autoresponse.Option{}
	if polisher := newPolisher(cfg, log); polisher != nil {
		genOpts = append(genOpts, autoresponse.WithPolisher(polisher))
	}
	var statusProvider fulfillment.Provider
	if status != nil {
		statusProvider = status
	}
	generator := autoresponse.New(cfg.AutoResponse(), statusProvider, log.Named("autoresponse"), genOpts...)

	assistantOpts := []service.Option{service.WithConcurrency(cfg.AssistantConcurrency)}
	if status != nil {
		assistantOpts = append(assistantOpts, service.WithStatusSink(status))
	}
	assistant := service.New(intent.New(), customers, generator, log, assistantOpts...)
	defer assistant.Close()

	// Live channel
	profile := middleware.AgentProfile(cfg.AgentToken, cfg.JWTSecret)
	adapter := transport.New(transport.Config{
		Prefix:      cfg.NATSPrefix,
		Profile:     profile,
		EventBuffer: cfg.EventBuffer,
	}, transport.NewDialer(transport.ClientConfig{
		URL:       cfg.NATSURL,
		Name:      "support-console",
		CAFile:    cfg.NATSCAFile,
		CertFile:  cfg.NATSCertFile,
		KeyFile:   cfg.NATSKeyFile,
		Token:     cfg.NATSToken,
		JetStream: cfg.JetStreamEnabled,
	}, cfg.NATSPrefix, log), log.Named("transport"))
	defer adapter.Close()

	agent := adapter.Agent()
	log.Info("agent identity resolved",
		zap.String("agent_id", agent.ID),
		zap.Bool("fallback", agent.Fallback),
	)

	// Reconciliation
	st := store.New()
	defer st.Close()
	engine := reconcile.New(st, adapter, backendClient, log.Named("reconcile"),
		reconcile.WithObserver(assistant),
		reconcile.WithHistoryTimeout(cfg.HistoryTimeout),
	)
	defer engine.Close()

	go engine.Run(ctx, adapter.Events())
	go adapter.Maintain(ctx, reconnectInterval)
	if _, err := engine.LoadConversations(ctx, model.FilterAll); err != nil {
		log.Warn("initial conversation load failed", zap.Error(err))
	}

	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		CORSOrigins:       cfg.CORSOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Heartbeat:         cfg.SSEHeartbeat,
	}, engine, assistant, adapter, log)

	// No write timeout: the event stream stays open.
	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: cfg.ServerReadTimeout,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	stop()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

func newStatusCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (fulfillment.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		return fulfillment.NewMemoryCache(cfg.StatusCacheTTL), func() {}, nil
	}
	cache, err := fulfillment.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.StatusCacheTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("fulfillment status cache on redis", zap.String("addr", cfg.RedisAddr))
	return cache, func() {
		if err := cache.Close(); err != nil {
			log.Warn("failed to close redis", zap.Error(err))
		}
	}, nil
}

func newPolisher(cfg *config.Config, log *logger.Logger) *llm.Polisher {
	if cfg.LLMProvider == "" {
		return nil
	}
	client, err := llm.NewClient(llm.Config{
		Provider: llm.Provider(cfg.LLMProvider),
		APIKey:   cfg.LLMAPIKey(),
		BaseURL:  cfg.LLMBaseURL,
		Model:    cfg.LLMModel,
	})
	if err != nil {
		log.Warn("suggestion polishing disabled", zap.Error(err))
		return nil
	}
	return llm.NewPolisher(client, cfg.PolishTimeout, log.Named("llm"))
}
