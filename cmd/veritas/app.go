package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"veritas/internal/admin"
	"veritas/internal/admin/adapters"
	"veritas/internal/admin/store/accounts"
	"veritas/internal/admin/store/roles"
	"veritas/internal/analysis"
	analysisclient "veritas/internal/analysis/client"
	"veritas/internal/analysis/gateway"
	"veritas/internal/analysis/scripted"
	"veritas/internal/catalog"
	jwttoken "veritas/internal/jwt_token"
	"veritas/internal/notify"
	"veritas/internal/platform/config"
	"veritas/internal/platform/database"
	"veritas/internal/platform/health"
	"veritas/internal/platform/kafka"
	"veritas/internal/platform/kafka/consumer"
	"veritas/internal/platform/kafka/producer"
	platformmetrics "veritas/internal/platform/metrics"
	"veritas/internal/platform/redis"
	"veritas/internal/platform/tracer"
	prefhandler "veritas/internal/preferences/handler"
	prefservice "veritas/internal/preferences/service"
	prefstore "veritas/internal/preferences/store"
	scanhandler "veritas/internal/scan/handler"
	scanmetrics "veritas/internal/scan/metrics"
	scanservice "veritas/internal/scan/service"
	scanstore "veritas/internal/scan/store"
	"veritas/internal/scan/workers/cleanup"
	httptransport "veritas/internal/transport/http"
	"veritas/pkg/platform/audit"
	"veritas/pkg/platform/audit/publisher"
	auditmemory "veritas/pkg/platform/audit/store/memory"
	auditpostgres "veritas/pkg/platform/audit/store/postgres"
	"veritas/pkg/platform/circuit"
	"veritas/pkg/platform/middleware/auth"
	"veritas/pkg/platform/middleware/metadata"
	"veritas/pkg/platform/middleware/request"
)

// app is the assembled server. Optional infrastructure (Postgres, Redis,
// Kafka, push URLs) falls back to in-process implementations when it is not
// configured.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	handler http.Handler

	scans    *scanservice.Service
	hub      *notify.Hub
	sink     *notify.ShoutrrrSink
	cleaner  *cleanup.CleanupService
	consumer *consumer.Consumer
	redis    *redis.Client

	closers []func() error
}

// metricSet groups registrations so tests can build the app repeatedly
// against a private registry.
type metricSet struct {
	platform *platformmetrics.Metrics
	scan     *scanmetrics.Metrics
	notify   *notify.Metrics
	latency  *request.Metrics
	audit    *publisher.Metrics
	reg      prometheus.Registerer
	handler  http.Handler
}

func defaultMetrics() metricSet {
	return metricSet{
		platform: platformmetrics.New(),
		scan:     scanmetrics.New(),
		notify:   notify.NewMetrics(),
		latency:  request.NewMetrics(),
		audit:    publisher.NewMetrics(nil),
		reg:      prometheus.DefaultRegisterer,
		handler:  platformmetrics.Handler(),
	}
}

func metricsFor(reg *prometheus.Registry) metricSet {
	return metricSet{
		platform: platformmetrics.NewWithRegistry(reg),
		scan:     scanmetrics.NewWithRegistry(reg),
		notify:   notify.NewMetricsWithRegistry(reg),
		latency:  request.NewMetricsWithRegistry(reg),
		audit:    publisher.NewMetrics(reg),
		reg:      reg,
	}
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger, m metricSet) (_ *app, err error) {
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	m.platform.SetBuildInfo(health.Version, cfg.Server.Environment)
	healthHandler := health.New(cfg.Server.Environment, m.platform)

	pool, err := database.New(ctx, database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if pool != nil {
		a.closers = append(a.closers, pool.Close)
		healthHandler.RegisterCheck("postgres", pool.Check)
		if err := pool.RegisterMetrics(m.reg); err != nil {
			return nil, fmt.Errorf("register database metrics: %w", err)
		}
	} else {
		log.WarnContext(ctx, "database not configured, using in-memory stores")
	}

	a.redis, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if a.redis != nil {
		a.closers = append(a.closers, a.redis.Close)
		healthHandler.RegisterCheck("redis", a.redis.Check)
	}

	// Audit
	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if pool != nil {
		auditStore = auditpostgres.New(pool.DB())
	}
	auditPublisher := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(256),
		publisher.WithPublisherLogger(log),
		publisher.WithPublisherMetrics(m.audit),
	)
	a.closers = append(a.closers, func() error { auditPublisher.Close(); return nil })
	auditor := audit.NewLogger(log, auditPublisher)

	// Catalog
	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		if cat, err = catalog.Load(cfg.Catalog.Path); err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
	}

	// Analysis
	tr := tracer.NewOTel()
	analyzer, err := buildAnalyzer(cfg.Analysis, cat, tr, log)
	if err != nil {
		return nil, err
	}

	// Preferences
	var prefStore prefstore.Store = prefstore.NewInMemory()
	if a.redis != nil {
		prefStore = prefstore.NewRedis(a.redis.Client, cfg.Redis.PreferencesTTL)
	}
	prefs := prefservice.New(prefStore, prefservice.WithAuditor(auditor), prefservice.WithLogger(log))

	// Realtime feed
	a.hub = notify.NewHub(notify.WithHubLogger(log), notify.WithHubMetrics(m.notify))
	var recordPublisher scanservice.RecordPublisher = a.hub
	kafkaCfg := kafka.Config{
		Brokers:         cfg.Kafka.Brokers,
		Topic:           cfg.Kafka.Topic,
		GroupID:         cfg.Kafka.GroupID,
		Acks:            cfg.Kafka.Acks,
		Retries:         kafka.DefaultConfig().Retries,
		DeliveryTimeout: kafka.DefaultConfig().DeliveryTimeout,
	}
	if kafkaCfg.Enabled() {
		prod, err := producer.New(kafkaCfg, log)
		if err != nil {
			return nil, fmt.Errorf("create kafka producer: %w", err)
		}
		a.closers = append(a.closers, prod.Close)
		feed := notify.NewKafkaFeed(prod, kafkaCfg.Topic, a.hub, log)
		if a.consumer, err = consumer.New(consumer.FromPlatform(kafkaCfg), feed, log); err != nil {
			return nil, fmt.Errorf("create kafka consumer: %w", err)
		}
		recordPublisher = feed
		checker := kafka.NewHealthChecker(prod)
		healthHandler.RegisterCheck(checker.Name(), checker.Check)
	}
	if len(cfg.Notify.URLs) > 0 {
		if a.sink, err = notify.NewShoutrrrSink(cfg.Notify.URLs, cfg.Notify.Timeout, cfg.Notify.Buffer, log); err != nil {
			return nil, fmt.Errorf("configure push notifications: %w", err)
		}
		a.sink.SetMetrics(m.notify)
		a.hub.AddListener(a.sink.Listen)
	}

	// Scans
	var records scanservice.Store
	var adminScans adapters.ScanContractStore
	if pool != nil {
		st := scanstore.NewPostgres(pool.DB())
		records, adminScans = st, st
	} else {
		st := scanstore.NewInMemory()
		records, adminScans = st, st
	}
	a.scans = scanservice.New(records, analyzer, prefs, cat.DisplayItems(),
		scanservice.WithLogger(log),
		scanservice.WithMetrics(m.scan),
		scanservice.WithAuditor(auditor),
		scanservice.WithPublisher(recordPublisher),
		scanservice.WithDwell(cfg.Dwell.Threshold, cfg.Dwell.Tick),
		scanservice.WithIdleTTL(cfg.Session.IdleTTL),
		scanservice.WithHistorySize(cfg.Session.HistorySize),
	)
	prefs.OnChange(a.scans.PreferencesChanged)
	if a.cleaner, err = cleanup.New(a.scans,
		cleanup.WithCleanupInterval(cfg.Session.SweepInterval),
		cleanup.WithCleanupLogger(log),
	); err != nil {
		return nil, err
	}

	// Admin
	var accountStore admin.AccountStore = accounts.NewInMemory()
	var roleStore admin.RoleStore = roles.NewInMemory()
	if pool != nil {
		accountStore = accounts.NewPostgres(pool.DB())
		roleStore = roles.NewPostgres(pool.DB())
	}
	adminSvc := admin.NewService(adapters.NewScanStoreAdapter(adminScans), accountStore, roleStore,
		admin.WithAuditor(auditor),
		admin.WithAuditReader(auditStore),
		admin.WithLogger(log),
		admin.WithListLimit(cfg.Admin.ListLimit),
		admin.WithRoleCacheTTL(cfg.Admin.RoleCacheTTL),
	)

	// HTTP
	proxies, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}
	jwt := jwttoken.NewJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)
	scanHTTP := scanhandler.New(a.scans, log, scanhandler.WithAllowedOrigins(cfg.Server.AllowedOrigins...))
	routes := httptransport.Routes{
		Health:    healthHandler,
		Metrics:   m.handler,
		Validator: jwttoken.NewJWTServiceAdapter(jwt),
		API: []httptransport.Registrar{
			scanHTTP,
			prefhandler.New(prefs, log),
			admin.New(adminSvc, log),
		},
		Streaming: []httptransport.Registrar{
			httptransport.RegistrarFunc(scanHTTP.RegisterStreaming),
			notify.NewAlertStream(a.hub, prefs, log,
				notify.WithHeartbeat(cfg.Notify.Heartbeat),
				notify.WithStreamMetrics(m.notify),
			),
		},
	}
	if cfg.Analysis.GatewayAPIKey != "" {
		llm := analysis.NewBounded(gateway.New(gateway.Config{
			BaseURL: cfg.Analysis.GatewayBaseURL,
			APIKey:  cfg.Analysis.GatewayAPIKey,
			Model:   cfg.Analysis.Model,
			Tracer:  tr,
			Logger:  log,
		}), cfg.Analysis.Timeout, cfg.Analysis.MaxConcurrent)
		routes.Service = append(routes.Service, gateway.NewHandler(llm, log))
	}
	a.handler = httptransport.NewRouter(httptransport.Config{
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		TrustedProxies: proxies,
		Auth: auth.Config{
			LoginURL:        cfg.Auth.LoginURL,
			CookieName:      cfg.Auth.CookieName,
			AllowQueryToken: cfg.Auth.AllowQueryToken,
		},
		ServiceToken: cfg.Auth.ServiceToken,
	}, routes, m.latency, log)

	return a, nil
}

// buildAnalyzer selects the analyzer for the configured mode. Every mode is
// wrapped in the same timeout and concurrency bound.
func buildAnalyzer(cfg config.Analysis, cat *catalog.Catalog, tr tracer.Tracer, log *slog.Logger) (analysis.Analyzer, error) {
	var next analysis.Analyzer
	switch cfg.Mode {
	case config.ModeDirect:
		next = gateway.New(gateway.Config{
			BaseURL: cfg.GatewayBaseURL,
			APIKey:  cfg.GatewayAPIKey,
			Model:   cfg.Model,
			Tracer:  tr,
			Logger:  log,
		})
	case config.ModeRemote:
		next = analysisclient.New(analysisclient.Config{
			URL:     cfg.EndpointURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
			Breaker: circuit.New("analysis"),
			Tracer:  tr,
			Logger:  log,
		})
	case config.ModeDemo:
		next = scripted.New(cat, cfg.DemoLatency)
	default:
		return nil, fmt.Errorf("unknown analysis mode %q", cfg.Mode)
	}
	return analysis.NewBounded(next, cfg.Timeout, cfg.MaxConcurrent), nil
}

// run serves HTTP and the background workers until ctx is cancelled, then
// shuts everything down.
func (a *app) run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.InfoContext(gctx, "starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.cleaner.Start(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if a.sink != nil {
		g.Go(func() error { return a.sink.Run(gctx) })
	}
	if a.redis != nil {
		g.Go(func() error { return a.redis.RunPoolStats(gctx, 15*time.Second) })
	}
	if a.consumer != nil {
		g.Go(func() error { return a.consumer.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		a.scans.Close()
		a.hub.Close()
		return err
	})

	err := g.Wait()
	a.close()
	if err != nil {
		return err
	}
	a.log.Info("server stopped")
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error("close failed", "error", err)
		}
	}
	a.closers = nil
}
