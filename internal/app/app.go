// Package app builds the outreach object graph shared by cmd/api and
// cmd/outreachctl.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"voice-outreach/internal/audit"
	"voice-outreach/internal/auth"
	"voice-outreach/internal/calls"
	"voice-outreach/internal/campaigns"
	"voice-outreach/internal/compliance"
	"voice-outreach/internal/config"
	"voice-outreach/internal/dispatch"
	"voice-outreach/internal/metrics"
	"voice-outreach/internal/outcome"
	"voice-outreach/internal/reporting"
	"voice-outreach/internal/schedule"
	"voice-outreach/internal/telephony"
	"voice-outreach/pkg/logger"
	"voice-outreach/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Store is every persistence operation the outreach services use.
// calls.PostgresStore and calls.MemoryStore implement it.
type Store interface {
	dispatch.Store
	compliance.Store
	outcome.Store
	schedule.RetryStore
	reporting.Repository
	campaigns.Store

	ListCampaignIDsByStatus(ctx context.Context, status calls.CampaignStatus) ([]string, error)
}

// Deps are the already-opened infrastructure handles.
type Deps struct {
	Store     Store
	AuditRepo audit.Repository

	// Redis is optional; without it dispatch locks are process-local.
	Redis redis.UniversalClient

	Registerer prometheus.Registerer
	Provider   telephony.Provider
	Registry   compliance.Registry
}

type App struct {
	Config config.Config
	Log    *slog.Logger

	Store   Store
	Metrics *metrics.Metrics
	Audit   *audit.Service
	Auth    *auth.Manager

	Reporting  *reporting.Service
	Campaigns  *campaigns.Service
	Screener   *compliance.Screener
	Retrier    *schedule.Retrier
	Dispatcher *dispatch.Dispatcher
	Recorder   *outcome.Recorder
	Webhook    telephony.VoiceWebhookHandler

	db     *sql.DB
	redis  redis.UniversalClient
	closes []func() error
}

// Open connects to Postgres (and Redis when configured) and builds the graph.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (*App, error) {
	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	closes := []func() error{db.Close}

	var rdb redis.UniversalClient
	if cfg.RedisEnabled() {
		client, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		rdb = client
		closes = append(closes, client.Close)
	} else {
		log.Warn("REDIS_HOST not set; dispatch locks are process-local")
	}

	a, err := Build(cfg, log, Deps{
		Store:      calls.NewPostgresStore(db),
		AuditRepo:  audit.NewPostgresRepo(db),
		Redis:      rdb,
		Registerer: reg,
	})
	if err != nil {
		for _, c := range closes {
			_ = c()
		}
		return nil, err
	}
	a.db = db
	a.closes = closes
	return a, nil
}

// Build wires services over the given dependencies. Nil Provider and
// Registry are derived from cfg.
func Build(cfg config.Config, log *slog.Logger, deps Deps) (*App, error) {
	if deps.Store == nil {
		return nil, errors.New("app: store is required")
	}
	if log == nil {
		log = slog.Default()
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		Store:   deps.Store,
		Metrics: metrics.New(deps.Registerer),
		Auth:    authManager,
		redis:   deps.Redis,
	}
	if deps.AuditRepo != nil {
		a.Audit = audit.NewService(deps.AuditRepo)
	}
	var recorder audit.Recorder
	if a.Audit != nil {
		recorder = a.Audit
	}

	a.Reporting = reporting.NewService(deps.Store)
	a.Reporting.Audit = recorder
	a.Reporting.Metrics = a.Metrics

	a.Campaigns = campaigns.NewService(deps.Store)
	a.Campaigns.Audit = recorder

	registry := deps.Registry
	if registry == nil {
		registry = newRegistry(cfg.CTPS, log)
	}
	a.Screener = compliance.NewScreener(deps.Store, registry)
	a.Screener.Audit = recorder
	a.Screener.Metrics = a.Metrics
	a.Screener.LookupTimeout = cfg.CTPS.Timeout

	a.Retrier = schedule.NewRetrier(deps.Store, nil)
	a.Retrier.Audit = recorder
	a.Retrier.Metrics = a.Metrics

	provider := deps.Provider
	if provider == nil {
		provider = telephony.NewVapiProvider(cfg.Voice.APIBaseURL, cfg.Voice.Timeout)
	}
	a.Dispatcher = dispatch.NewDispatcher(deps.Store, provider, a.Reporting)
	a.Dispatcher.Audit = recorder
	a.Dispatcher.Metrics = a.Metrics
	if cfg.Dispatch.Pacing > 0 {
		a.Dispatcher.Pacing = cfg.Dispatch.Pacing
	}
	if deps.Redis != nil {
		a.Dispatcher.Locker = dispatch.RedisLocker{Client: deps.Redis, TTL: cfg.Dispatch.LockTTL}
	}

	a.Recorder = outcome.NewRecorder(deps.Store, a.Retrier, a.Reporting)
	a.Recorder.Audit = recorder
	a.Recorder.Metrics = a.Metrics

	a.Webhook = telephony.VoiceWebhookHandler{Sink: a.Recorder, Secret: cfg.Voice.WebhookSecret}
	return a, nil
}

func newRegistry(cfg config.CTPSConfig, log *slog.Logger) compliance.Registry {
	if cfg.BaseURL == "" {
		log.Warn("CTPS_BASE_URL not set; every number is treated as not registered")
		return compliance.NotRegistered{}
	}
	lookup := compliance.NewHTTPRegistry(compliance.HTTPRegistryConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
	if cfg.CacheMB <= 0 || cfg.CacheTTL <= 0 {
		return lookup
	}
	return compliance.NewCachedRegistry(lookup, cfg.CacheMB*1024*1024, cfg.CacheTTL)
}

// NewMetricsRegistry returns a registry with the Go runtime and process
// collectors already registered.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Health pings Postgres and, when configured, Redis.
func (a *App) Health(ctx context.Context) error {
	if a.db != nil {
		if err := utils.HealthCheck(ctx, a.db, 2*time.Second); err != nil {
			return err
		}
	}
	if a.redis != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closes) - 1; i >= 0; i-- {
		if err := a.closes[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closes = nil
	return errors.Join(errs...)
}

// DispatchResult is the outcome of one campaign inside DispatchAll.
type DispatchResult struct {
	CampaignID string `json:"campaign_id"`
	Dispatched int    `json:"dispatched"`
	Error      string `json:"error,omitempty"`
}

// DispatchAll runs one batch for every CALLING campaign, at most
// Dispatch.CampaignParallelism at a time. A failing campaign is reported in
// its result and does not stop the others.
func (a *App) DispatchAll(ctx context.Context, maxConcurrent int, skipWindow bool) ([]DispatchResult, error) {
	ids, err := a.Store.ListCampaignIDsByStatus(ctx, calls.CampaignStatusCalling)
	if err != nil {
		return nil, fmt.Errorf("list calling campaigns: %w", err)
	}

	limit := a.Config.Dispatch.CampaignParallelism
	if limit <= 0 {
		limit = 1
	}

	var (
		mu  sync.Mutex
		out = make([]DispatchResult, 0, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, id := range ids {
		g.Go(func() error {
			n, err := a.Dispatcher.ProcessNextCalls(gctx, id, maxConcurrent, skipWindow)
			res := DispatchResult{CampaignID: id, Dispatched: n}
			if err != nil {
				res.Error = err.Error()
				logger.From(ctx).Error("campaign dispatch failed", "campaign_id", id, "err", err)
			}
			mu.Lock()
			out = append(out, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].CampaignID < out[j].CampaignID })
	return out, ctx.Err()
}
