// Package bootstrap wires the booking pipeline from configuration. Both the
// API server and the CLI build their orchestrator here.
package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/expert-call-booker/internal/artifacts"
	"github.com/wolfman30/expert-call-booker/internal/booking"
	"github.com/wolfman30/expert-call-booker/internal/browser"
	appconfig "github.com/wolfman30/expert-call-booker/internal/config"
	"github.com/wolfman30/expert-call-booker/internal/marketplace"
	"github.com/wolfman30/expert-call-booker/internal/notify"
	"github.com/wolfman30/expert-call-booker/internal/observability/metrics"
	"github.com/wolfman30/expert-call-booker/internal/runlock"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

// Runtime holds the wired orchestrator and the clients it owns.
type Runtime struct {
	Orchestrator *booking.Orchestrator
	Redis        *redis.Client
}

// Close releases clients opened by Build.
func (r *Runtime) Close() error {
	if r == nil || r.Redis == nil {
		return nil
	}
	return r.Redis.Close()
}

// Build wires the orchestrator with its browser, marketplace client, run lock,
// screenshot archive and run summary e-mail. reg may be nil.
func Build(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, reg prometheus.Registerer, logger *logging.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.HasCallerIdentity() {
		// Runs will fail with a configuration error until this is fixed.
		logger.Warn("caller identity not configured", "caller_name_set", cfg.CallerName != "", "caller_email_set", cfg.CallerEmail != "")
	}

	store := artifacts.NewStore(nil, "", logger)
	if strings.TrimSpace(cfg.ScreenshotBucket) != "" {
		store = artifacts.NewStore(s3.NewFromConfig(awsCfg), cfg.ScreenshotBucket, logger)
		logger.Info("run artifacts enabled", "bucket", cfg.ScreenshotBucket)
	}

	launcherOpts := []browser.Option{browser.WithLogger(logger)}
	if store.Enabled() {
		launcherOpts = append(launcherOpts, browser.WithScreenshotSink(store))
	}
	launcher, err := browser.NewLauncher(browser.Config{
		BaseURL:              cfg.MarketplaceBaseURL,
		Headless:             cfg.BrowserHeadless,
		ExecPath:             cfg.BrowserExecPath,
		UserAgent:            cfg.BrowserUserAgent,
		NavigationsPerSecond: cfg.NavigationsPerSecond,
		MaxResults:           cfg.SearchMaxResults,
		DryRun:               cfg.DryRun,
	}, launcherOpts...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: browser: %w", err)
	}

	apiBase := cfg.MarketplaceAPIBaseURL
	if apiBase == "" {
		apiBase = cfg.MarketplaceBaseURL + "/api"
	}
	profiles := marketplace.NewClient(apiBase, marketplace.WithLogger(logger))

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	locker := BuildRunLocker(redisClient, cfg, logger)

	notifiers := notify.Multi{notify.NewService(BuildEmailSender(cfg, awsCfg, logger), logger)}
	if store.Enabled() {
		notifiers = append(notifiers, store)
	}

	var bookingMetrics *metrics.BookingMetrics
	if reg != nil {
		bookingMetrics = metrics.NewBookingMetrics(reg)
	}

	orch := booking.NewOrchestrator(booking.Config{
		Caller: booking.CallerDetails{
			Name:  cfg.CallerName,
			Email: cfg.CallerEmail,
			Phone: cfg.CallerPhone,
		},
		NavigationTimeout: cfg.NavigationTimeout,
		APITimeout:        cfg.APITimeout,
	}, launcher, profiles,
		booking.WithLogger(logger),
		booking.WithRunLocker(locker),
		booking.WithNotifier(notifiers),
		booking.WithMetrics(bookingMetrics),
	)

	return &Runtime{Orchestrator: orch, Redis: redisClient}, nil
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildRunLocker uses Redis when available and an in-process lock otherwise.
func BuildRunLocker(client *redis.Client, cfg *appconfig.Config, logger *logging.Logger) booking.RunLocker {
	if logger == nil {
		logger = logging.Default()
	}
	if client == nil {
		logger.Info("run lock is process-local")
		return runlock.NewMemoryLocker()
	}
	logger.Info("run lock backed by redis", "ttl", cfg.RunLockTTL)
	return runlock.NewRedisLocker(client, cfg.RunLockTTL)
}

// BuildEmailSender picks the summary e-mail provider. "auto" prefers SendGrid
// when a key is set, then SES when a sender address is set, then the stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	provider := cfg.NotifyProvider
	if provider == "" || provider == "auto" {
		switch {
		case cfg.SendGridAPIKey != "":
			provider = "sendgrid"
		case cfg.EmailFrom != "":
			provider = "ses"
		default:
			provider = "stub"
		}
	}

	switch provider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			logger.Info("summary e-mail via sendgrid")
			return sender
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; using stub sender")
	case "ses":
		logger.Info("summary e-mail via ses", "region", awsCfg.Region)
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
	case "stub", "none":
	default:
		logger.Warn("unknown NOTIFY_PROVIDER; using stub sender", "provider", provider)
	}
	return notify.NewStubEmailSender(logger)
}
