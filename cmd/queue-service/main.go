package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/clock"
	"github.com/Afonso75/QZeroN-sub002/internal/config"
	"github.com/Afonso75/QZeroN-sub002/internal/httpapi"
	"github.com/Afonso75/QZeroN-sub002/internal/logging"
	"github.com/Afonso75/QZeroN-sub002/internal/models"
	"github.com/Afonso75/QZeroN-sub002/internal/notify"
	"github.com/Afonso75/QZeroN-sub002/internal/queue"
	"github.com/Afonso75/QZeroN-sub002/internal/store/postgres"
	"github.com/Afonso75/QZeroN-sub002/internal/telemetry"
	"github.com/Afonso75/QZeroN-sub002/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const serviceName = "queue-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("prod", "", serviceName)
		fallback.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, serviceName)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("queue-service stopped with error")
	}
	logger.Info().Msg("queue-service stopped")
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	}, logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	clk := clock.Real()
	providers := map[string]notify.Provider{
		models.ChannelEmail: notify.NewProvider(models.ChannelEmail, notify.ProviderConfig{
			Kind: cfg.EmailProvider, WebhookURL: cfg.EmailWebhookURL, WebhookToken: cfg.EmailWebhookToken,
		}, logger),
		models.ChannelSMS: notify.NewProvider(models.ChannelSMS, notify.ProviderConfig{
			Kind: cfg.SMSProvider, WebhookURL: cfg.SMSWebhookURL, WebhookToken: cfg.SMSWebhookToken,
		}, logger),
		models.ChannelPush: notify.NewProvider(models.ChannelPush, notify.ProviderConfig{
			Kind: cfg.PushProvider, WebhookURL: cfg.PushWebhookURL, WebhookToken: cfg.PushWebhookToken,
		}, logger),
	}
	ledger := notify.NewLedger(clk, cfg.LedgerTTL)

	svc := queue.New(postgres.NewStore(pool), queue.Options{
		Clock:    clk,
		Location: cfg.Location(),
		Notifier: notify.NewDispatcher(providers, cfg.PublicBaseURL, logger),
		Ledger:   ledger,
		Logger:   logger,
	})

	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:       cfg.RateLimitPerMinute,
		IPBurst:           cfg.RateLimitBurst,
		BusinessPerMinute: cfg.BusinessRateLimitPerMinute,
		BusinessBurst:     cfg.BusinessRateLimitBurst,
	}, clk)
	routes := httpapi.NewHandler(svc, logger).Routes()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(logger, limiter.Middleware(routes)), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	jobs := []worker.Job{
		{
			Name:     "expire-tickets",
			Interval: cfg.ExpirySweepInterval,
			Timeout:  cfg.SweepTimeout,
			Run: func(ctx context.Context) error {
				report, err := svc.ExpireTickets(ctx)
				logSweep(logger, "expire-tickets", report)
				return err
			},
		},
		{
			Name:     "auto-complete",
			Interval: cfg.AutoCompleteInterval,
			Timeout:  cfg.SweepTimeout,
			Run: func(ctx context.Context) error {
				report, err := svc.AutoComplete(ctx)
				logSweep(logger, "auto-complete", report)
				return err
			},
		},
		{
			Name:     "advance-notice",
			Interval: cfg.AdvanceNoticeInterval,
			Timeout:  cfg.SweepTimeout,
			Run: func(ctx context.Context) error {
				report, err := svc.NotifyAdvance(ctx)
				if report.Intents > 0 {
					logger.Debug().Int("sent", report.Intents-report.Failed).Int("failed", report.Failed).Int("suppressed", report.Suppressed).Msg("advance notices")
				}
				return err
			},
		},
		{
			Name:     "housekeeping",
			Interval: 10 * time.Minute,
			Run: func(ctx context.Context) error {
				if purged := ledger.Purge(); purged > 0 {
					logger.Debug().Int("purged", purged).Msg("notification ledger purged")
				}
				limiter.Prune()
				return nil
			},
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("queue-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	for _, job := range jobs {
		g.Go(func() error {
			worker.Start(gctx, clk, job, logger)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func logSweep(logger zerolog.Logger, name string, report queue.SweepReport) {
	if report.Transitioned == 0 && report.Backfilled == 0 && report.Failed == 0 {
		return
	}
	logger.Info().
		Str("job", name).
		Int("queues", report.Queues).
		Int("checked", report.Checked).
		Int("transitioned", report.Transitioned).
		Int("backfilled", report.Backfilled).
		Int("failed", report.Failed).
		Msg("sweep finished")
}
