package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Composer stage counters and histograms, partitioned by chain.

var (
	// Engine
	EngineMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "engine",
		Name:      "messages_total",
		Help:      "Total inbound messages handled by the engine",
	}, []string{"chain", "kind"})

	EngineAcceptedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "engine",
		Name:      "accepted_total",
		Help:      "Total messages that committed a state transition",
	}, []string{"chain", "kind"})

	EngineRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "engine",
		Name:      "rejected_total",
		Help:      "Total messages rejected, by reason",
	}, []string{"chain", "reason"})

	EngineDuplicatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "engine",
		Name:      "duplicates_total",
		Help:      "Total redelivered messages dropped by the dedup claim",
	}, []string{"chain", "kind"})

	EngineProcessLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "composer",
		Subsystem: "engine",
		Name:      "process_duration_seconds",
		Help:      "Inbound message processing duration (gates, claim, custody, commit)",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"chain", "kind"})

	// Outbound dispatch
	OutboundDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "outbound",
		Name:      "dispatched_total",
		Help:      "Total outbound messages handed to the transport",
	}, []string{"chain", "kind"})

	OutboundDispatchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "outbound",
		Name:      "dispatch_errors_total",
		Help:      "Total outbound dispatch failures (after retry exhaustion)",
	}, []string{"chain", "kind"})

	OutboundSendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "composer",
		Subsystem: "outbound",
		Name:      "send_duration_seconds",
		Help:      "Outbound transport publish duration",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"chain"})

	OutboundRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "outbound",
		Name:      "rate_limit_waits_total",
		Help:      "Total times outbound sends waited for the per-destination limiter",
	}, []string{"chain"})

	// Transport consumer
	TransportDeliveriesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "transport",
		Name:      "deliveries_read_total",
		Help:      "Total deliveries read from the inbound stream",
	}, []string{"chain"})

	TransportReadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "transport",
		Name:      "read_errors_total",
		Help:      "Total inbound stream read failures",
	}, []string{"chain"})

	TransportCheckpointsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "transport",
		Name:      "checkpoints_total",
		Help:      "Total consumer checkpoints written",
	}, []string{"chain"})

	TransportPendingEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "composer",
		Subsystem: "transport",
		Name:      "pending_entries",
		Help:      "Current number of stream entries past the checkpoint",
	}, []string{"chain"})

	// Validator
	ValidatorVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "validator",
		Name:      "verifications_total",
		Help:      "Total attestation quorum checks performed",
	}, []string{"chain"})

	ValidatorFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "validator",
		Name:      "failures_total",
		Help:      "Total attestation quorum checks that failed",
	}, []string{"chain"})

	ValidatorCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "validator",
		Name:      "cache_hits_total",
		Help:      "Total verification results served from cache",
	}, []string{"chain"})

	ValidatorCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "validator",
		Name:      "cache_misses_total",
		Help:      "Total verification cache misses",
	}, []string{"chain"})

	ValidatorProbeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "validator",
		Name:      "probe_failures_total",
		Help:      "Total remote verifier probe failures",
	}, []string{"chain"})

	ValidatorBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "composer",
		Subsystem: "validator",
		Name:      "breaker_state",
		Help:      "Verifier circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"chain"})

	VerifyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "composer",
		Subsystem: "validator",
		Name:      "verify_duration_seconds",
		Help:      "Attestation verification duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"chain"})

	// Quoter
	QuoterQuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "quoter",
		Name:      "quotes_total",
		Help:      "Total fee quotes computed",
	}, []string{"chain"})

	QuoterUnsupportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "quoter",
		Name:      "unsupported_total",
		Help:      "Total quote requests for destinations without a cost model",
	}, []string{"chain"})

	QuoterMemoHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "quoter",
		Name:      "memo_hits_total",
		Help:      "Total quotes served from the memo cache",
	}, []string{"chain"})

	QuoterMemoMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "quoter",
		Name:      "memo_misses_total",
		Help:      "Total quote memo cache misses",
	}, []string{"chain"})

	// Custody
	CustodyCreditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "custody",
		Name:      "credits_total",
		Help:      "Total deposit credits applied to the vault ledger",
	}, []string{"chain"})

	CustodyDebitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "custody",
		Name:      "debits_total",
		Help:      "Total withdrawal debits applied to the vault ledger",
	}, []string{"chain"})

	CustodyFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "custody",
		Name:      "failures_total",
		Help:      "Total custody operations that failed and rolled back",
	}, []string{"chain"})

	CustodyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "composer",
		Subsystem: "custody",
		Name:      "operation_duration_seconds",
		Help:      "Custody credit/debit duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"chain"})

	// Advisory
	AdvisoryAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "advisory",
		Name:      "applied_total",
		Help:      "Total advisory recommendations applied on spokes",
	}, []string{"chain"})

	AdvisoryLowConfidenceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "advisory",
		Name:      "low_confidence_total",
		Help:      "Total recommendations dropped below the confidence floor",
	}, []string{"chain"})

	AdvisoryBroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "advisory",
		Name:      "broadcasts_total",
		Help:      "Total advisory sync messages broadcast from the hub",
	}, []string{"chain"})

	AdvisoryBroadcastErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "advisory",
		Name:      "broadcast_errors_total",
		Help:      "Total advisory broadcast failures",
	}, []string{"chain"})

	// Duplicate index
	DupIndexBloomSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "dupindex",
		Name:      "bloom_skips_total",
		Help:      "Total lookups answered by the bloom tier (definitely new)",
	}, []string{"eid"})

	DupIndexLRUHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "dupindex",
		Name:      "lru_hits_total",
		Help:      "Total duplicate index LRU hits",
	}, []string{"eid"})

	DupIndexLRUMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "dupindex",
		Name:      "lru_misses_total",
		Help:      "Total duplicate index LRU misses",
	}, []string{"eid"})

	DupIndexDBLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "dupindex",
		Name:      "db_lookups_total",
		Help:      "Total duplicate index lookups that reached the ledger",
	}, []string{"eid"})

	// Composer-level
	ComposerChannelDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "composer",
		Subsystem: "runtime",
		Name:      "channel_depth",
		Help:      "Current depth of composer channel buffers",
	}, []string{"chain", "stage"})

	ComposerHealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "composer",
		Subsystem: "runtime",
		Name:      "health_status",
		Help:      "Composer health status (0=UNKNOWN, 1=HEALTHY, 2=UNHEALTHY, 3=INACTIVE, 4=DEGRADED)",
	}, []string{"chain"})

	ComposerConsecutiveFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "composer",
		Subsystem: "runtime",
		Name:      "consecutive_failures",
		Help:      "Number of consecutive processing failures",
	}, []string{"chain"})

	ConfigWatcherErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "runtime",
		Name:      "config_watcher_errors_total",
		Help:      "Total runtime config poll failures",
	}, []string{"chain"})

	// Database pool
	DBPoolOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "composer",
		Subsystem: "postgres",
		Name:      "db_pool_open",
		Help:      "Current number of open PostgreSQL connections in the pool",
	}, []string{"database"})

	DBPoolInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "composer",
		Subsystem: "postgres",
		Name:      "db_pool_in_use",
		Help:      "Current number of in-use PostgreSQL connections in the pool",
	}, []string{"database"})

	DBPoolIdle = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "composer",
		Subsystem: "postgres",
		Name:      "db_pool_idle",
		Help:      "Current number of idle PostgreSQL connections in the pool",
	}, []string{"database"})

	DBPoolWaitCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "composer",
		Subsystem: "postgres",
		Name:      "db_pool_wait_count",
		Help:      "Cumulative count of waits for PostgreSQL connections from pool",
	}, []string{"database"})

	DBPoolWaitDurationSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "composer",
		Subsystem: "postgres",
		Name:      "db_pool_wait_duration_seconds",
		Help:      "Latest PostgreSQL pool wait duration in seconds",
	}, []string{"database"})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent",
	}, []string{"channel", "alert_type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts skipped due to cooldown",
	}, []string{"channel", "alert_type"})

	// Reconciliation
	ReconciliationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "reconciliation",
		Name:      "runs_total",
		Help:      "Total reconciliation runs executed",
	}, []string{"chain"})

	ReconciliationDriftTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "composer",
		Subsystem: "reconciliation",
		Name:      "drift_total",
		Help:      "Total journal/custody drifts detected during reconciliation",
	}, []string{"chain"})

	ReconciliationCheckLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "composer",
		Subsystem: "reconciliation",
		Name:      "check_duration_seconds",
		Help:      "Reconciliation run duration",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"chain"})
)
