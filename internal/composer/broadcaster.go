package composer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/omnivault/crosschain-composer/internal/advisory"
	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/metrics"
	"github.com/omnivault/crosschain-composer/internal/protocol"
	"github.com/omnivault/crosschain-composer/internal/store"
)

const defaultBroadcastInterval = 15 * time.Second

// Broadcaster fans pending hub recommendations out to every whitelisted
// spoke. It only runs on the hub chain. Delivery is best effort: a spoke
// that misses a broadcast converges on the next one, so per-spoke send
// failures are counted and logged but never halt the loop.
type Broadcaster struct {
	engine *Engine
	peers  store.PeerRepository
	source advisory.Generator
	logger *slog.Logger

	mu       sync.Mutex
	interval time.Duration
}

func NewBroadcaster(
	engine *Engine,
	peers store.PeerRepository,
	source advisory.Generator,
	interval time.Duration,
	logger *slog.Logger,
) *Broadcaster {
	if interval <= 0 {
		interval = defaultBroadcastInterval
	}
	return &Broadcaster{
		engine:   engine,
		peers:    peers,
		source:   source,
		interval: interval,
		logger:   logger.With("component", "broadcaster", "chain", engine.Local().Name),
	}
}

// UpdateInterval updates the broadcast interval at runtime.
// Returns true if the ticker should be reset.
func (b *Broadcaster) UpdateInterval(newInterval time.Duration) bool {
	if newInterval <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.interval
	b.interval = newInterval
	if old != newInterval {
		b.logger.Info("broadcast interval updated", "old", old, "new", newInterval)
		return true
	}
	return false
}

func (b *Broadcaster) currentInterval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interval
}

// Run starts the broadcast loop. It blocks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	interval := b.currentInterval()
	b.logger.Info("broadcaster started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Drain anything pending from before the start.
	b.broadcast(ctx)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("broadcaster stopping")
			return ctx.Err()
		case <-ticker.C:
			b.broadcast(ctx)
			if cur := b.currentInterval(); cur != interval {
				interval = cur
				ticker.Reset(interval)
			}
		}
	}
}

func (b *Broadcaster) broadcast(ctx context.Context) {
	chainLabel := b.engine.Local().Name

	recs, err := b.source.Pending(ctx)
	if err != nil {
		metrics.AdvisoryBroadcastErrors.WithLabelValues(chainLabel).Inc()
		b.logger.Warn("fetch pending recommendations failed", "error", err)
		return
	}
	if len(recs) == 0 {
		return
	}

	spokes, err := b.peers.GetWhitelisted(ctx, b.engine.Local().EndpointID)
	if err != nil {
		metrics.AdvisoryBroadcastErrors.WithLabelValues(chainLabel).Inc()
		b.logger.Warn("list whitelisted spokes failed", "error", err)
		return
	}
	if len(spokes) == 0 {
		b.logger.Debug("no whitelisted spokes; dropping pending recommendations", "count", len(recs))
		return
	}

	for i := range recs {
		rec := &recs[i]
		if err := rec.Validate(); err != nil {
			b.logger.Warn("skipping invalid recommendation", "recommendation_id", rec.RecommendationID, "error", err)
			continue
		}
		// The confidence floor applies before any spoke sees the payload,
		// same check the engine applies per send.
		if rec.Confidence < model.MinSyncConfidence {
			metrics.AdvisoryLowConfidenceTotal.WithLabelValues(chainLabel).Inc()
			b.logger.Debug("skipping low-confidence recommendation",
				"recommendation_id", rec.RecommendationID,
				"confidence", rec.Confidence,
			)
			continue
		}

		payload, err := protocol.EncodeRecommendation(rec)
		if err != nil {
			metrics.AdvisoryBroadcastErrors.WithLabelValues(chainLabel).Inc()
			b.logger.Warn("encode recommendation failed", "recommendation_id", rec.RecommendationID, "error", err)
			continue
		}

		for _, spoke := range spokes {
			_, err := b.engine.Send(ctx, b.engine.InvokeCapability(), SendRequest{
				Kind:      model.KindAdvisorySyncFromHub,
				TargetEid: spoke.RemoteEid,
				User:      rec.User,
				Payload:   payload,
				SenderRef: rec.RecommendationID.String(),
			})
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				metrics.AdvisoryBroadcastErrors.WithLabelValues(chainLabel).Inc()
				b.logger.Warn("broadcast to spoke failed",
					"recommendation_id", rec.RecommendationID,
					"target_eid", spoke.RemoteEid,
					"error", err,
				)
				continue
			}
			metrics.AdvisoryBroadcastsTotal.WithLabelValues(chainLabel).Inc()
		}

		b.logger.Info("recommendation broadcast",
			"recommendation_id", rec.RecommendationID,
			"action", rec.Action.String(),
			"confidence", rec.Confidence,
			"spokes", len(spokes),
		)
	}
}
