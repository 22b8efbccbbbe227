package validator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/omnivault/crosschain-composer/internal/cache"
	"github.com/omnivault/crosschain-composer/internal/circuitbreaker"
	"github.com/omnivault/crosschain-composer/internal/metrics"
	"github.com/omnivault/crosschain-composer/internal/tracing"
)

// ErrProbeUnavailable means no attester health endpoint is configured, so
// dry-run liveness cannot be confirmed.
var ErrProbeUnavailable = errors.New("attester probe not configured")

const (
	defaultCacheCapacity = 4096
	defaultCacheTTL      = 5 * time.Minute
)

// Prober reports whether the remote attestation service is live. Used by
// dry-run fee quotes.
type Prober interface {
	Probe(ctx context.Context) error
}

// GatewayConfig configures one chain's verification gateway.
type GatewayConfig struct {
	// Chain labels metrics and log lines.
	Chain string
	// HealthAddr is the attester's gRPC health endpoint. Empty disables
	// probing.
	HealthAddr string
	// ProbeTimeout bounds a single health check.
	ProbeTimeout time.Duration
	// CacheCapacity and CacheTTL size the verdict cache. Zero values
	// apply defaults.
	CacheCapacity int
	CacheTTL      time.Duration

	Breaker circuitbreaker.Config
}

// Gateway wraps a Verifier with a verdict cache, metrics and an attester
// liveness probe behind a circuit breaker. Redelivered envelopes are the
// common case on an at-least-once transport, so successful verdicts are
// cached; failures are always re-checked.
type Gateway struct {
	chain    string
	verifier Verifier
	verdicts *cache.LRU[string, struct{}]
	breaker  *circuitbreaker.Breaker
	logger   *slog.Logger

	healthAddr   string
	probeTimeout time.Duration

	connMu sync.Mutex
	conn   *grpc.ClientConn
}

func NewGateway(verifier Verifier, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = defaultCacheCapacity
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}

	g := &Gateway{
		chain:        cfg.Chain,
		verifier:     verifier,
		verdicts:     cache.NewLRU[string, struct{}](cfg.CacheCapacity, cfg.CacheTTL),
		logger:       logger.With("component", "validator", "chain", cfg.Chain),
		healthAddr:   cfg.HealthAddr,
		probeTimeout: cfg.ProbeTimeout,
	}

	breakerCfg := cfg.Breaker
	userCallback := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(from, to circuitbreaker.State) {
		metrics.ValidatorBreakerState.WithLabelValues(g.chain).Set(float64(to))
		g.logger.Warn("attester breaker state change", "from", from.String(), "to", to.String())
		if userCallback != nil {
			userCallback(from, to)
		}
	}
	g.breaker = circuitbreaker.New(breakerCfg)
	metrics.ValidatorBreakerState.WithLabelValues(g.chain).Set(float64(circuitbreaker.StateClosed))

	return g
}

// Verify authenticates one envelope. The verdict cache is keyed over both
// the envelope digest and the attestation bytes, so a different
// attestation for a known envelope is still verified.
func (g *Gateway) Verify(ctx context.Context, sourceEid uint32, envelope, attestation []byte) error {
	spanCtx, span := tracing.Tracer("validator").Start(ctx, "validator.verify",
		otelTrace.WithAttributes(
			attribute.String("chain", g.chain),
			attribute.Int("source_eid", int(sourceEid)),
		),
	)
	defer span.End()

	start := time.Now()
	metrics.ValidatorVerificationsTotal.WithLabelValues(g.chain).Inc()

	key := verdictKey(envelope, attestation)
	if _, ok := g.verdicts.Get(key); ok {
		metrics.ValidatorCacheHits.WithLabelValues(g.chain).Inc()
		metrics.VerifyLatency.WithLabelValues(g.chain).Observe(time.Since(start).Seconds())
		return nil
	}
	metrics.ValidatorCacheMisses.WithLabelValues(g.chain).Inc()

	err := g.verifier.Verify(spanCtx, sourceEid, envelope, attestation)
	metrics.VerifyLatency.WithLabelValues(g.chain).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ValidatorFailuresTotal.WithLabelValues(g.chain).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	g.verdicts.Put(key, struct{}{})
	return nil
}

// Probe checks attester liveness through the circuit breaker. When the
// breaker is open the probe fails fast without a network call.
func (g *Gateway) Probe(ctx context.Context) error {
	if g.healthAddr == "" {
		return ErrProbeUnavailable
	}
	return g.breaker.Execute(func() error {
		err := g.checkHealth(ctx)
		if err != nil {
			metrics.ValidatorProbeFailures.WithLabelValues(g.chain).Inc()
			g.logger.Warn("attester probe failed", "addr", g.healthAddr, "error", err)
		}
		return err
	})
}

func (g *Gateway) checkHealth(ctx context.Context) error {
	conn, err := g.healthConn()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.probeTimeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("attester health check: %w", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("attester not serving: %s", resp.Status)
	}
	return nil
}

// healthConn lazily creates the client connection and reuses it across
// probes. grpc.NewClient does not dial until the first RPC.
func (g *Gateway) healthConn() (*grpc.ClientConn, error) {
	g.connMu.Lock()
	defer g.connMu.Unlock()
	if g.conn != nil {
		return g.conn, nil
	}
	conn, err := grpc.NewClient(
		g.healthAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect attester: %w", err)
	}
	g.conn = conn
	return conn, nil
}

// Close releases the probe connection.
func (g *Gateway) Close() error {
	g.connMu.Lock()
	defer g.connMu.Unlock()
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	return err
}

func verdictKey(envelope, attestation []byte) string {
	h := sha256.New()
	h.Write(envelope)
	h.Write(attestation)
	return hex.EncodeToString(h.Sum(nil))
}
