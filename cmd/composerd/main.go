// Command composerd runs the cross-chain vault composer: one engine and
// service per local chain from the topology file, sharing a store, a
// delivery transport, and the admin plane.
package main

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/omnivault/crosschain-composer/internal/admin"
	"github.com/omnivault/crosschain-composer/internal/advisory"
	"github.com/omnivault/crosschain-composer/internal/alert"
	"github.com/omnivault/crosschain-composer/internal/auth"
	"github.com/omnivault/crosschain-composer/internal/composer"
	"github.com/omnivault/crosschain-composer/internal/config"
	"github.com/omnivault/crosschain-composer/internal/custody"
	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/metrics"
	"github.com/omnivault/crosschain-composer/internal/quoter"
	"github.com/omnivault/crosschain-composer/internal/ratelimit"
	"github.com/omnivault/crosschain-composer/internal/reconciliation"
	"github.com/omnivault/crosschain-composer/internal/store"
	"github.com/omnivault/crosschain-composer/internal/store/memory"
	"github.com/omnivault/crosschain-composer/internal/store/postgres"
	redisstream "github.com/omnivault/crosschain-composer/internal/store/redis"
	"github.com/omnivault/crosschain-composer/internal/tracing"
	"github.com/omnivault/crosschain-composer/internal/txindex"
	"github.com/omnivault/crosschain-composer/internal/validator"
)

const (
	serviceName     = "composerd"
	shutdownTimeout = 5 * time.Second

	// dbPoolLabel is the single pool these gauges describe.
	dbPoolLabel = "composer"

	// dbPoolAlertUtilization is the in-use fraction above which the pool
	// pump raises an alert.
	dbPoolAlertUtilization = 0.8

	defaultReconcileInterval = 10 * time.Minute
)

// Stream construction goes through factory vars so tests can substitute
// backends without a running Redis.
var (
	newRedisStream  = redisstream.NewStream
	newMemoryStream = func() redisstream.MessageTransport { return redisstream.NewInMemoryStream() }
)

// storeBundle presents one view over either store backend.
type storeBundle struct {
	tx            store.TxBeginner
	peers         store.PeerRepository
	ledger        store.TransactionLedger
	journal       store.EventJournal
	runtimeConfig store.RuntimeConfigRepository
}

func newPostgresBundle(s *postgres.Store) storeBundle {
	return storeBundle{
		tx:            s,
		peers:         s.Peers,
		ledger:        s.Ledger,
		journal:       s.Journal,
		runtimeConfig: s.RuntimeConfig,
	}
}

func newMemoryBundle(s *memory.Store) storeBundle {
	return storeBundle{tx: s, peers: s, ledger: s, journal: s, runtimeConfig: s}
}

// chainRuntime bundles everything wired for one local chain.
type chainRuntime struct {
	identity model.ChainIdentity
	engine   *composer.Engine
	service  *composer.Service
	quoter   *quoter.Quoter
	ledger   *custody.MemoryLedger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("composerd starting",
		"store_backend", cfg.Store.Backend,
		"transport_backend", cfg.Transport.Backend,
		"topology", cfg.Topology.Path,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.Init(ctx, tracing.Config{
			ServiceName: serviceName,
			Endpoint:    cfg.Tracing.Endpoint,
			Insecure:    cfg.Tracing.Insecure,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			logger.Error("tracing init failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancelShutdown()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Error("tracing shutdown failed", "error", err)
			}
		}()
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint, "sample_ratio", cfg.Tracing.SampleRatio)
	}

	topo, err := config.LoadTopology(cfg.Topology.Path)
	if err != nil {
		logger.Error("topology load failed", "error", err, "path", cfg.Topology.Path)
		os.Exit(1)
	}

	var (
		bundle storeBundle
		db     *postgres.DB
	)
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		db, err = postgres.New(postgres.Config{
			URL:                cfg.DB.URL,
			MaxOpenConns:       cfg.DB.MaxOpenConns,
			MaxIdleConns:       cfg.DB.MaxIdleConns,
			ConnMaxLifetime:    cfg.DB.ConnMaxLifetime,
			StatementTimeoutMS: cfg.DB.StatementTimeoutMS,
		})
		if err != nil {
			logger.Error("database connect failed", "error", err, "url", maskCredentials(cfg.DB.URL))
			os.Exit(1)
		}
		defer db.Close()

		if os.Getenv("RUN_MIGRATIONS") == "true" {
			dir := os.Getenv("MIGRATIONS_DIR")
			if dir == "" {
				dir = "internal/store/postgres/migrations"
			}
			if err := db.RunMigrations(dir); err != nil {
				logger.Error("migrations failed", "error", err, "dir", dir)
				os.Exit(1)
			}
		}

		bundle = newPostgresBundle(postgres.NewStore(db))
		logger.Info("store ready", "backend", "postgres", "url", maskCredentials(cfg.DB.URL))
	case config.StoreBackendMemory:
		bundle = newMemoryBundle(memory.NewStore())
		logger.Warn("using in-memory store, processed transfers do not survive restart")
	}

	transport, err := resolveTransport(cfg, logger)
	if err != nil {
		logger.Error("transport setup failed", "error", err)
		os.Exit(1)
	}
	defer transport.Close()

	alerter := buildAlerter(cfg.Alert, logger)

	capability, err := resolveCapability(cfg.Server.AdminToken, logger)
	if err != nil {
		logger.Error("capability setup failed", "error", err)
		os.Exit(1)
	}

	if err := syncTopologyPeers(ctx, bundle.peers, topo, logger); err != nil {
		logger.Error("topology peer sync failed", "error", err)
		os.Exit(1)
	}

	runtimes, err := buildChainRuntimes(ctx, cfg, topo, bundle, transport, alerter, capability, logger)
	if err != nil {
		logger.Error("chain runtime setup failed", "error", err)
		os.Exit(1)
	}

	if err := validateRuntimeWiring(runtimes, topo); err != nil {
		logger.Error("runtime wiring validation failed", "error", err)
		os.Exit(1)
	}

	registry := composer.NewRegistry()
	for _, rt := range runtimes {
		registry.Register(rt.service)
	}

	recon := reconciliation.NewService(bundle.journal, logger, reconciliation.WithAlerter(alerter))
	for _, rt := range runtimes {
		recon.RegisterChain(rt.identity.Name, rt.identity.EndpointID, rt.ledger)
	}

	adminOpts := []admin.ServerOption{
		admin.WithReconcileRequester(recon),
	}
	if cfg.Server.AdminToken != "" {
		adminOpts = append(adminOpts, admin.WithCapability(capability))
	}
	for _, rt := range runtimes {
		adminOpts = append(adminOpts, admin.WithFeeModeler(rt.identity.Name, rt.quoter))
	}
	adminSrv := admin.NewServer(registry, bundle.peers, bundle.ledger, bundle.journal, bundle.runtimeConfig, logger, adminOpts...)

	rateLimiter := admin.NewRateLimitMiddleware(logger)
	defer rateLimiter.Stop()
	adminHandler := admin.AuditMiddleware(logger, rateLimiter.Wrap(adminSrv.Handler()))

	g, gctx := errgroup.WithContext(ctx)

	checker := healthChecker{}
	if db != nil {
		checker.db = db
	}
	g.Go(func() error {
		return runHealthServer(gctx, cfg.Server.HealthPort, checker,
			os.Getenv("METRICS_BASIC_AUTH_USER"), os.Getenv("METRICS_BASIC_AUTH_PASS"), logger)
	})
	g.Go(func() error {
		return runAdminServer(gctx, cfg.Server.AdminPort, adminHandler, logger)
	})

	for _, rt := range runtimes {
		rt := rt
		g.Go(func() error {
			return rt.service.Run(gctx)
		})
	}

	g.Go(func() error {
		recon.RunPeriodic(gctx, reconcileInterval())
		return nil
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if db != nil {
		startDBPoolStatsPump(gctx, db, alerter, cfg.DB.PoolStatsIntervalMS, logger)
	}

	logger.Info("composerd running",
		"chains", len(runtimes),
		"health_port", cfg.Server.HealthPort,
		"admin_port", cfg.Server.AdminPort,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("composerd exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("composerd stopped")
}

// buildChainRuntimes wires a verifier gateway, fee quoter, custody ledger,
// duplicate index, engine, and service for every local identity in the
// topology. One quorum verifier is shared; gateways keep per-chain caches
// and breakers.
func buildChainRuntimes(
	ctx context.Context,
	cfg *config.Config,
	topo *config.Topology,
	bundle storeBundle,
	transport redisstream.MessageTransport,
	alerter alert.Alerter,
	capability auth.Capability,
	logger *slog.Logger,
) ([]*chainRuntime, error) {
	verifier := validator.NewQuorumVerifier(topo.Keysets())
	costModels := topo.CostModels()

	locals := topo.LocalIdentities()
	runtimes := make([]*chainRuntime, 0, len(locals))
	for _, id := range locals {
		gateway := validator.NewGateway(verifier, validator.GatewayConfig{
			Chain:        id.Name,
			HealthAddr:   cfg.Attester.HealthAddr,
			ProbeTimeout: cfg.Attester.Timeout,
		}, logger)

		q := quoter.New(id.Name, costModels, gateway, logger)
		ledger := custody.NewMemoryLedger()

		dupIndex := txindex.NewTieredIndex(bundle.ledger, txindex.TieredIndexConfig{
			BloomExpectedItems: cfg.Composer.DupIndexBloomItems,
			LRUCapacity:        cfg.Composer.DupIndexLRUCapacity,
		})
		if err := dupIndex.Warm(ctx, id.EndpointID); err != nil {
			logger.Warn("duplicate index warmup failed, starting cold", "chain", id.Name, "error", err)
		}

		limiter := ratelimit.NewLimiter(cfg.Composer.SendRateLimit, cfg.Composer.SendRateBurst, id.Name)

		engine := composer.NewEngine(
			composer.EngineConfig{Local: id, LocalAddress: localAddressFor(topo, id.EndpointID)},
			bundle.tx, bundle.peers, gateway, ledger, q, transport, logger,
			composer.WithDupIndex(dupIndex),
			composer.WithRateLimiter(limiter),
			composer.WithAlerter(alerter),
			composer.WithCapability(capability),
		)

		svcOpts := []composer.ServiceOption{composer.WithServiceAlerter(alerter)}
		if id.IsHub() {
			// The hub broadcasts advisory syncs; harnesses and the real
			// generator both feed this queue behind the same interface.
			svcOpts = append(svcOpts, composer.WithAdvisorySource(advisory.NewStaticGenerator()))
		}
		svc := composer.NewService(composer.ServiceConfig{
			Local:                 id,
			BroadcastInterval:     time.Duration(cfg.Composer.BroadcastIntervalMs) * time.Millisecond,
			ConfigWatcherInterval: time.Duration(cfg.Composer.RuntimeConfigPollMs) * time.Millisecond,
			ChannelBufferSize:     cfg.Composer.ChannelBufferSize,
		}, engine, transport, &composer.Repos{
			Peers:         bundle.peers,
			RuntimeConfig: bundle.runtimeConfig,
		}, logger, svcOpts...)

		runtimes = append(runtimes, &chainRuntime{
			identity: id,
			engine:   engine,
			service:  svc,
			quoter:   q,
			ledger:   ledger,
		})
	}
	return runtimes, nil
}

// localAddressFor returns the address remote chains whitelist for eid, which
// is the address this chain's engine claims as sender.
func localAddressFor(topo *config.Topology, eid uint32) string {
	for _, p := range topo.ResolvedPeers() {
		if p.RemoteEid == eid {
			return p.RemoteAddress
		}
	}
	return ""
}

// validateRuntimeWiring fails fast on wiring gaps that would otherwise
// surface as per-message errors at runtime. All problems are reported in
// one pass.
func validateRuntimeWiring(runtimes []*chainRuntime, topo *config.Topology) error {
	var problems []string
	if len(runtimes) == 0 {
		problems = append(problems, "no local chains resolved from topology")
	}
	seen := make(map[string]bool, len(runtimes))
	for _, rt := range runtimes {
		if seen[rt.identity.Name] {
			problems = append(problems, fmt.Sprintf("duplicate runtime for chain %s", rt.identity.Name))
		}
		seen[rt.identity.Name] = true
		if err := rt.identity.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
		for _, p := range topo.ResolvedPeers() {
			if p.LocalEid != rt.identity.EndpointID {
				continue
			}
			if _, ok := rt.quoter.Model(p.RemoteEid); !ok {
				problems = append(problems, fmt.Sprintf("chain %s has no fee model for peer eid %d", rt.identity.Name, p.RemoteEid))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("runtime wiring: %s", strings.Join(problems, "; "))
	}
	return nil
}

// syncTopologyPeers pushes the topology's peer declarations into the store
// so file-declared and admin-registered peers share one table. File entries
// win for the rows they name; admin rows for other remotes are untouched.
func syncTopologyPeers(ctx context.Context, repo store.PeerRepository, topo *config.Topology, logger *slog.Logger) error {
	peers := topo.ResolvedPeers()
	for i := range peers {
		p := peers[i]
		if err := repo.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("sync peer %d->%d: %w", p.LocalEid, p.RemoteEid, err)
		}
	}
	logger.Info("topology peers synced", "count", len(peers))
	return nil
}

func resolveTransport(cfg *config.Config, logger *slog.Logger) (redisstream.MessageTransport, error) {
	switch cfg.Transport.Backend {
	case config.TransportBackendRedis:
		s, err := newRedisStream(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis transport: %w", err)
		}
		logger.Info("transport ready", "backend", "redis", "url", maskCredentials(cfg.Redis.URL))
		return s, nil
	case config.TransportBackendMemory:
		logger.Warn("using in-memory transport, deliveries do not survive restart")
		return newMemoryStream(), nil
	default:
		return nil, fmt.Errorf("unknown transport backend %q", cfg.Transport.Backend)
	}
}

// resolveCapability parses the shared admin token when configured and mints
// a process-local capability otherwise. Without a shared token only this
// process can authorize its own sends.
func resolveCapability(adminToken string, logger *slog.Logger) (auth.Capability, error) {
	if adminToken != "" {
		c, err := auth.Parse(adminToken)
		if err != nil {
			return auth.Capability{}, err
		}
		return c, nil
	}
	c := auth.Mint()
	logger.Warn("ADMIN_TOKEN not set, minted process-local capability", "capability", c.String())
	return c, nil
}

func buildAlerter(cfg config.AlertConfig, logger *slog.Logger) alert.Alerter {
	m := alert.NewMultiAlerter(cfg.Cooldown, logger)
	if cfg.SlackWebhookURL != "" {
		m.AddChannel("slack", alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		m.AddChannel("webhook", alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	if m.ChannelCount() == 0 {
		return &alert.NoopAlerter{}
	}
	return m
}

func reconcileInterval() time.Duration {
	if v := os.Getenv("RECONCILE_INTERVAL_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return defaultReconcileInterval
}

type dbPinger interface {
	PingContext(ctx context.Context) error
}

// healthChecker reports process liveness. With a database wired the check
// round-trips a ping so a wedged pool turns the probe red.
type healthChecker struct {
	db dbPinger
}

func (h healthChecker) check(ctx context.Context) error {
	if h.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

func runHealthServer(ctx context.Context, port int, checker healthChecker, metricsUser, metricsPass string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := checker.check(r.Context()); err != nil {
			logger.Error("health check failed", "error", err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var metricsHandler http.Handler = promhttp.Handler()
	if metricsUser != "" {
		metricsHandler = basicAuthMiddleware(metricsUser, metricsPass, metricsHandler)
	}
	mux.Handle("/metrics", metricsHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("health server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

func runAdminServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("admin server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

// basicAuthMiddleware guards the metrics endpoint when credentials are
// configured. Both fields are compared in constant time.
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, ok := r.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(gotUser), []byte(user)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(gotPass), []byte(pass)) == 1
		if !ok || !userMatch || !passMatch {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// maskCredentials hides the userinfo of a connection URL for logging.
func maskCredentials(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		if strings.Contains(raw, "@") {
			return "***"
		}
		return raw
	}
	if u.User == nil {
		return raw
	}
	u.User = url.User("***")
	return u.String()
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type dbStatsProvider interface {
	Stats() sql.DBStats
}

// collectDBPoolStats exports one pool snapshot. A panicking provider is
// converted to an error so the pump survives driver bugs.
func collectDBPoolStats(provider dbStatsProvider, database string) (stats sql.DBStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("db pool stats: %v", r)
		}
	}()
	stats = provider.Stats()
	metrics.DBPoolOpen.WithLabelValues(database).Set(float64(stats.OpenConnections))
	metrics.DBPoolInUse.WithLabelValues(database).Set(float64(stats.InUse))
	metrics.DBPoolIdle.WithLabelValues(database).Set(float64(stats.Idle))
	metrics.DBPoolWaitCount.WithLabelValues(database).Set(float64(stats.WaitCount))
	metrics.DBPoolWaitDurationSeconds.WithLabelValues(database).Set(stats.WaitDuration.Seconds())
	return stats, nil
}

// checkDBPoolPressure raises an alert when the pool runs above the
// utilization threshold. Pools without a cap cannot saturate and are
// skipped. Reports whether an alert was sent.
func checkDBPoolPressure(ctx context.Context, stats sql.DBStats, database string, alerter alert.Alerter) bool {
	if stats.MaxOpenConnections <= 0 {
		return false
	}
	utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections)
	if utilization <= dbPoolAlertUtilization {
		return false
	}
	_ = alerter.Send(ctx, alert.Alert{
		Type:    alert.AlertTypeDBPool,
		Chain:   database,
		Title:   "Connection pool near exhaustion",
		Message: fmt.Sprintf("%d of %d connections in use", stats.InUse, stats.MaxOpenConnections),
		Fields: map[string]string{
			"in_use":     strconv.Itoa(stats.InUse),
			"max_open":   strconv.Itoa(stats.MaxOpenConnections),
			"wait_count": strconv.FormatInt(stats.WaitCount, 10),
		},
	})
	return true
}

func startDBPoolStatsPump(ctx context.Context, provider dbStatsProvider, alerter alert.Alerter, intervalMS int, logger *slog.Logger) {
	if provider == nil || intervalMS <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Duration(intervalMS) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats, err := collectDBPoolStats(provider, dbPoolLabel)
				if err != nil {
					logger.Error("db pool stats collection failed", "error", err)
					continue
				}
				checkDBPoolPressure(ctx, stats, dbPoolLabel, alerter)
			}
		}
	}()
}
