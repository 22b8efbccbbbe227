package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omnivault/crosschain-composer/internal/advisory"
	"github.com/omnivault/crosschain-composer/internal/alert"
	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/metrics"
	"github.com/omnivault/crosschain-composer/internal/store"
	redisstream "github.com/omnivault/crosschain-composer/internal/store/redis"
)

const gaugeSampleInterval = 5 * time.Second

// ServiceConfig carries the per-chain runtime knobs.
type ServiceConfig struct {
	Local                 model.ChainIdentity
	BroadcastInterval     time.Duration
	ConfigWatcherInterval time.Duration
	ChannelBufferSize     int
	RetryMaxAttempts      int
	RetryDelayInitial     time.Duration
	RetryDelayMax         time.Duration
	UnhealthyThreshold    int
}

// Repos bundles the repositories the service runtime touches directly.
// The engine carries its own.
type Repos struct {
	Peers         store.PeerRepository
	RuntimeConfig store.RuntimeConfigRepository
}

// Service is the per-chain composer runtime: it supervises the consumer,
// the hub-side broadcaster, the config watcher, and the metric samplers,
// and supports runtime deactivation and reactivation without a process
// restart.
type Service struct {
	cfg            ServiceConfig
	engine         *Engine
	stream         DeliveryStream
	repos          *Repos
	advisorySource advisory.Generator
	alerter        alert.Alerter
	logger         *slog.Logger
	health         *Health

	// Activation control: uses sync.Cond to avoid signal loss.
	active    atomic.Bool
	activeMu  sync.Mutex
	stateCond *sync.Cond
	// stateFlag: 0=inactive, 1=active
	stateFlag  atomic.Int32
	deactiveCh chan struct{} // signaled when deactivated
}

type ServiceOption func(*Service)

// WithAdvisorySource wires the hub-side recommendation feed. Ignored on
// spoke chains.
func WithAdvisorySource(g advisory.Generator) ServiceOption {
	return func(s *Service) {
		s.advisorySource = g
	}
}

func WithServiceAlerter(a alert.Alerter) ServiceOption {
	return func(s *Service) {
		s.alerter = a
	}
}

func NewService(
	cfg ServiceConfig,
	engine *Engine,
	stream DeliveryStream,
	repos *Repos,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	health := NewHealth(cfg.Local.Name, string(cfg.Local.Role))
	if cfg.UnhealthyThreshold > 0 {
		health.unhealthyThreshold = cfg.UnhealthyThreshold
	}
	s := &Service{
		cfg:        cfg,
		engine:     engine,
		stream:     stream,
		repos:      repos,
		logger:     logger.With("component", "service"),
		health:     health,
		deactiveCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.stateCond = sync.NewCond(&s.activeMu)
	s.active.Store(true)
	s.stateFlag.Store(1)
	return s
}

// Chain returns the service's chain name.
func (s *Service) Chain() string { return s.cfg.Local.Name }

// Local returns the chain identity the service operates.
func (s *Service) Local() model.ChainIdentity { return s.cfg.Local }

// Engine returns the service's message engine.
func (s *Service) Engine() *Engine { return s.engine }

// Health returns the service's health tracker.
func (s *Service) Health() *Health { return s.health }

// Deactivate stops the service gracefully. It can be reactivated later.
func (s *Service) Deactivate() {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if !s.active.Load() {
		return
	}
	s.active.Store(false)
	s.stateFlag.Store(0)
	s.health.SetStatus(HealthStatusInactive)
	select {
	case s.deactiveCh <- struct{}{}:
	default:
	}
	s.stateCond.Broadcast()
}

// Activate reactivates a deactivated service.
func (s *Service) Activate() {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.active.Load() {
		return
	}
	s.active.Store(true)
	s.stateFlag.Store(1)
	s.stateCond.Broadcast()
}

// IsActive returns whether the service is currently active.
func (s *Service) IsActive() bool {
	return s.active.Load()
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Wait if the service is deactivated. sync.Cond avoids losing an
		// Activate that lands between the check and the wait.
		if !s.active.Load() {
			s.logger.Info("composer is deactivated, waiting for reactivation",
				"chain", s.cfg.Local.Name)

			// The waiter also watches ctx so the final Broadcast on
			// shutdown releases it instead of parking it forever.
			activated := make(chan struct{})
			go func() {
				s.activeMu.Lock()
				for s.stateFlag.Load() == 0 && ctx.Err() == nil {
					s.stateCond.Wait()
				}
				s.activeMu.Unlock()
				close(activated)
			}()

			select {
			case <-activated:
				s.logger.Info("composer reactivated", "chain", s.cfg.Local.Name)
				s.health.SetStatus(HealthStatusHealthy)
				continue
			case <-ctx.Done():
				s.stateCond.Broadcast() // unblock waiting goroutine
				return ctx.Err()
			}
		}

		s.health.SetStatus(HealthStatusHealthy)

		// Each iteration creates a fresh context, consumer, and errgroup.
		runCtx, runCancel := context.WithCancel(ctx)
		errCh := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					errCh <- fmt.Errorf("composer panic: %v\n%s", r, debug.Stack())
				}
			}()
			errCh <- s.runService(runCtx)
		}()

		select {
		case err := <-errCh:
			// Runtime terminated normally or with error.
			runCancel()
			if err != nil && !errors.Is(err, context.Canceled) {
				s.health.RecordFailure()
				return err
			}
			return nil

		case <-s.deactiveCh:
			// Deactivation requested: stop the runtime and loop back to wait.
			s.logger.Warn("composer deactivated via runtime config",
				"chain", s.cfg.Local.Name)
			runCancel()
			<-errCh
			continue

		case <-ctx.Done():
			runCancel()
			<-errCh
			return ctx.Err()
		}
	}
}

// runService contains one activation's worth of runtime. The consumer and
// broadcaster are created fresh on each invocation so a restart starts
// clean.
func (s *Service) runService(ctx context.Context) error {
	consumerOpts := []ConsumerOption{
		WithConsumerBuffer(s.cfg.ChannelBufferSize),
	}
	if s.cfg.RetryMaxAttempts > 0 {
		consumerOpts = append(consumerOpts, WithConsumerRetryConfig(
			s.cfg.RetryMaxAttempts,
			s.cfg.RetryDelayInitial,
			s.cfg.RetryDelayMax,
		))
	}
	if s.alerter != nil {
		consumerOpts = append(consumerOpts, WithConsumerAlerter(s.alerter))
	}
	consumer := NewConsumer(s.engine, s.stream, s.health, s.logger, consumerOpts...)

	s.logger.Info("composer starting",
		"chain", s.cfg.Local.Name,
		"eid", s.cfg.Local.EndpointID,
		"role", s.cfg.Local.Role,
		"broadcast_interval", s.cfg.BroadcastInterval,
	)

	g, gCtx := errgroup.WithContext(ctx)

	// Periodic gauge sampling: queue depth, stream backlog, health.
	chainLabel := s.cfg.Local.Name
	inboundStream := redisstream.InboundStream(s.cfg.Local.EndpointID)
	g.Go(func() error {
		ticker := time.NewTicker(gaugeSampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				metrics.ComposerChannelDepth.WithLabelValues(chainLabel, "inbound").Set(float64(consumer.QueueDepth()))
				if n, err := s.stream.Len(gCtx, inboundStream); err == nil {
					metrics.TransportPendingEntries.WithLabelValues(chainLabel).Set(float64(n))
				}
				snap := s.health.Snapshot()
				metrics.ComposerHealthStatus.WithLabelValues(chainLabel).Set(statusGauge(HealthStatus(snap.Status)))
				metrics.ComposerConsecutiveFailures.WithLabelValues(chainLabel).Set(float64(snap.ConsecutiveFailures))
			}
		}
	})

	// The broadcaster only runs where recommendations originate.
	var bcast *Broadcaster
	if s.advisorySource != nil && s.cfg.Local.IsHub() {
		bcast = NewBroadcaster(s.engine, s.repos.Peers, s.advisorySource, s.cfg.BroadcastInterval, s.logger)
		g.Go(func() error {
			return bcast.Run(gCtx)
		})
	}

	// Start config watcher if runtime config repository is available.
	if s.repos.RuntimeConfig != nil {
		var updater BroadcastUpdater
		if bcast != nil {
			updater = bcast
		}
		watcher := NewConfigWatcher(
			s.cfg.Local.Name,
			s.repos.RuntimeConfig,
			updater,
			s.engine.Limiter(),
			s.logger,
			s.cfg.ConfigWatcherInterval,
		).WithActivationController(s)
		g.Go(func() error {
			return watcher.Run(gCtx)
		})
	}

	g.Go(func() error {
		return consumer.Run(gCtx)
	})

	return g.Wait()
}
