package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/blockfinder/internal/adapters/blockprovider"
	"github.com/Amund211/blockfinder/internal/adapters/cache"
	"github.com/Amund211/blockfinder/internal/adapters/sightingrepository"
	"github.com/Amund211/blockfinder/internal/app"
	"github.com/Amund211/blockfinder/internal/config"
	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/Amund211/blockfinder/internal/jobqueue"
	"github.com/Amund211/blockfinder/internal/logging"
	"github.com/Amund211/blockfinder/internal/ports"
	"github.com/Amund211/blockfinder/internal/reporting"
	"github.com/Amund211/blockfinder/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "golang.org/x/crypto/x509roots/fallback"
)

// TODO: Put in config
const PROD_DOMAIN_SUFFIX = "blockfinder.app"
const STAGING_DOMAIN_SUFFIX = "blockfinder-web.pages.dev"

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instanceID := uuid.New().String()
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, nil)

	config, err := config.ConfigFromEnv()
	if err != nil {
		slog.New(handler).Error("Failed to load config", "error", err.Error())
		os.Exit(1)
	}

	handler = logging.NewCloudTraceHandler(handler, config.GoogleCloudProject())
	logger := slog.New(handler).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	logger.Info("Loaded config", "config", config.NonSensitiveString())

	if !config.IsDevelopment() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, "blockfinder")
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownOTel(shutdownCtx); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	sightingRepo, err := sightingrepository.NewPostgresOrStub(ctx, config, logger)
	if err != nil {
		fail("Failed to initialize SightingRepository", "error", err.Error())
	}
	logger.Info("Initialized SightingRepository")

	httpClient := blockprovider.NewRetryingHTTPClient(logger.With("component", "httpclient"), 10*time.Second)
	provider, err := blockprovider.NewBlockProviderOrMock(config, httpClient, time.Now, time.After)
	if err != nil {
		fail("Failed to initialize block provider", "error", err.Error())
	}
	logger.Info("Initialized block provider")

	entryStore, err := cache.NewTTLEntryStore[domain.BlockLocation](config.FreshTTL(), config.StaleTTL(), time.Now)
	if err != nil {
		fail("Failed to initialize entry store", "error", err.Error())
	}
	if config.EntrySweep() {
		stopJanitor := entryStore.StartJanitor()
		defer stopJanitor()
	}

	queue, err := jobqueue.New(config.MaxConcurrentJobs())
	if err != nil {
		fail("Failed to initialize job queue", "error", err.Error())
	}

	blockCache, err := app.NewFastResultCache(
		entryStore,
		queue,
		app.BuildRefreshAndArchiveBlock(provider, sightingRepo),
		app.FastResultCacheConfig{
			MaxSyncWait:     config.MaxSyncWait(),
			RetryAfter:      config.RetryAfter(),
			JobTimeout:      config.JobTimeout(),
			FailureCooldown: config.FailureCooldown(),
			NowFunc:         time.Now,
			AfterFunc:       time.After,
		},
	)
	if err != nil {
		fail("Failed to initialize block cache", "error", err.Error())
	}

	allowedOrigins, err := ports.NewDomainSuffixes(PROD_DOMAIN_SUFFIX, STAGING_DOMAIN_SUFFIX)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	lookupBlock := app.BuildLookupBlock(blockCache)
	pollBlockStatus := app.BuildPollBlockStatus(blockCache)
	getHealth := app.BuildGetHealth(blockCache)
	getBlockHistory := app.BuildGetBlockHistory(sightingRepo)

	mux := http.NewServeMux()

	mux.HandleFunc(
		"OPTIONS /v1/blocks/{block}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/blocks/{block}",
		ports.MakeLookupBlockHandler(
			lookupBlock,
			allowedOrigins,
			logger.With("port", "lookupblock"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/blocks/{block}/status",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/blocks/{block}/status",
		ports.MakePollBlockStatusHandler(
			pollBlockStatus,
			allowedOrigins,
			logger.With("port", "pollblockstatus"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/blocks/{block}/history",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/blocks/{block}/history",
		ports.MakeGetBlockHistoryHandler(
			getBlockHistory,
			allowedOrigins,
			logger.With("port", "history"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"GET /v1/health",
		ports.MakeHealthHandler(
			getHealth,
			logger.With("port", "health"),
			sentryMiddleware,
		),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           otelhttp.NewHandler(mux, "blockfinder"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	logger.Info("Init complete", "port", config.Port())

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			fail("Server error", "error", err.Error())
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}

	logger.Info("Server shutdown", "health", fmt.Sprintf("%+v", getHealth(context.Background())))
}
