package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omnivault/crosschain-composer/internal/alert"
	"github.com/omnivault/crosschain-composer/internal/domain/event"
	"github.com/omnivault/crosschain-composer/internal/metrics"
	"github.com/omnivault/crosschain-composer/internal/retry"
	redisstream "github.com/omnivault/crosschain-composer/internal/store/redis"
)

const (
	defaultProcessRetryMaxAttempts = 3
	defaultRetryDelayInitial       = 100 * time.Millisecond
	defaultRetryDelayMax           = 1 * time.Second
	defaultChannelBuffer           = 64

	// readFailureBackoff paces reconnect attempts after a transport read
	// error so a dead broker does not spin the loop.
	readFailureBackoff = 2 * time.Second
)

// DeliveryStream is the inbound transport surface the consumer needs.
// Satisfied by the Redis stream and its in-process variant.
type DeliveryStream interface {
	ReadJSON(ctx context.Context, stream, lastID string, dst any) (string, error)
	PersistStreamCheckpoint(ctx context.Context, key, id string) error
	LoadStreamCheckpoint(ctx context.Context, key string) (string, error)
	Len(ctx context.Context, stream string) (int64, error)
}

// inboundEntry pairs a delivery with its stream entry id so the processor
// can checkpoint once the engine is done with it.
type inboundEntry struct {
	id       string
	delivery event.Delivery
}

// Consumer drains one endpoint's inbound stream into the engine: a reader
// goroutine pulls entries off the stream and a processor goroutine drives
// them through Receive. Message rejections advance the checkpoint (the
// engine journaled them, retrying cannot change the outcome);
// infrastructure failures retry in place so no delivery is skipped.
//
// The durable checkpoint only moves after the engine has finished with an
// entry. Everything read but unprocessed at a crash is redelivered, and the
// dedup claim absorbs the replay.
type Consumer struct {
	engine  *Engine
	stream  DeliveryStream
	health  *Health
	logger  *slog.Logger
	entryCh chan inboundEntry

	alerter          alert.Alerter
	retryMaxAttempts int
	retryDelayStart  time.Duration
	retryDelayMax    time.Duration
	sleepFn          func(context.Context, time.Duration) error
}

type ConsumerOption func(*Consumer)

func WithConsumerRetryConfig(maxAttempts int, delayInitial, delayMax time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.retryMaxAttempts = maxAttempts
		c.retryDelayStart = delayInitial
		c.retryDelayMax = delayMax
	}
}

func WithConsumerAlerter(a alert.Alerter) ConsumerOption {
	return func(c *Consumer) {
		c.alerter = a
	}
}

// WithConsumerBuffer sizes the reader-to-processor channel.
func WithConsumerBuffer(size int) ConsumerOption {
	return func(c *Consumer) {
		if size > 0 {
			c.entryCh = make(chan inboundEntry, size)
		}
	}
}

func NewConsumer(engine *Engine, stream DeliveryStream, health *Health, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		engine:           engine,
		stream:           stream,
		health:           health,
		logger:           logger.With("component", "consumer", "chain", engine.Local().Name),
		entryCh:          make(chan inboundEntry, defaultChannelBuffer),
		retryMaxAttempts: defaultProcessRetryMaxAttempts,
		retryDelayStart:  defaultRetryDelayInitial,
		retryDelayMax:    defaultRetryDelayMax,
		sleepFn:          sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// QueueDepth reports how many read-but-unprocessed deliveries are queued.
func (c *Consumer) QueueDepth() int {
	return len(c.entryCh)
}

func (c *Consumer) Run(ctx context.Context) error {
	local := c.engine.Local()
	streamName := redisstream.InboundStream(local.EndpointID)
	checkpointKey := redisstream.CheckpointKey(local.EndpointID)

	lastID, err := c.stream.LoadStreamCheckpoint(ctx, checkpointKey)
	if err != nil {
		return fmt.Errorf("load checkpoint %s: %w", checkpointKey, err)
	}
	c.logger.Info("consumer started", "stream", streamName, "resume_from", lastID)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.runReader(gCtx, streamName, lastID)
	})
	g.Go(func() error {
		return c.runProcessor(gCtx, checkpointKey)
	})
	return g.Wait()
}

func (c *Consumer) runReader(ctx context.Context, streamName, lastID string) error {
	local := c.engine.Local()
	for {
		if ctx.Err() != nil {
			c.logger.Info("consumer reader stopping")
			return ctx.Err()
		}

		var d event.Delivery
		entryID, err := c.stream.ReadJSON(ctx, streamName, lastID, &d)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer reader stopping")
				return ctx.Err()
			}
			metrics.TransportReadErrors.WithLabelValues(local.Name).Inc()
			c.recordFailure(ctx, err)
			c.logger.Error("stream read failed", "stream", streamName, "error", err)
			if err := c.sleepFn(ctx, readFailureBackoff); err != nil {
				return err
			}
			continue
		}
		metrics.TransportDeliveriesRead.WithLabelValues(local.Name).Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case c.entryCh <- inboundEntry{id: entryID, delivery: d}:
			lastID = entryID
		}
	}
}

func (c *Consumer) runProcessor(ctx context.Context, checkpointKey string) error {
	local := c.engine.Local()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer processor stopping")
			return ctx.Err()
		case entry := <-c.entryCh:
			start := time.Now()
			if err := c.processWithRetry(ctx, &entry.delivery); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.recordFailure(ctx, err)
				c.logger.Error("process delivery failed", "entry_id", entry.id, "error", err)
				// Fail-fast without advancing the checkpoint: the runtime
				// restarts and redelivers, and the dedup claim absorbs any
				// entries that did land.
				return fmt.Errorf("consumer process delivery failed: entry=%s: %w", entry.id, err)
			}

			if err := c.stream.PersistStreamCheckpoint(ctx, checkpointKey, entry.id); err != nil {
				// Position is advisory; a stale checkpoint redelivers and dedups.
				c.logger.Warn("persist checkpoint failed", "entry_id", entry.id, "error", err)
			} else {
				metrics.TransportCheckpointsTotal.WithLabelValues(local.Name).Inc()
			}

			c.recordSuccess(ctx)
			c.health.RecordLatency(time.Since(start))
		}
	}
}

// processWithRetry drives one delivery to a final outcome. Rejections from
// the message taxonomy are final by definition; anything else is classified
// and transient failures are retried with jittered backoff.
func (c *Consumer) processWithRetry(ctx context.Context, d *event.Delivery) error {
	const stage = "consumer.process_delivery"

	var lastErr error
	lastDecision := retry.Decision{
		Class:  retry.ClassTerminal,
		Reason: "unset",
	}

	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		receipt, err := c.engine.Receive(ctx, d)
		if err == nil {
			c.logger.Debug("delivery accepted",
				"transaction_id", receipt.TransactionID,
				"kind", receipt.Kind.String(),
				"outbound", len(receipt.Outbound),
			)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if reason, ok := RejectReason(err); ok {
			if errors.Is(err, ErrAlreadyProcessed) {
				c.logger.Debug("duplicate delivery skipped", "error", err)
			} else {
				c.logger.Warn("delivery rejected", "reason", reason, "error", err)
			}
			return nil
		}

		lastErr = err
		lastDecision = retry.Classify(err)
		if !lastDecision.IsTransient() {
			return fmt.Errorf("terminal_failure stage=%s attempt=%d reason=%s: %w", stage, attempt, lastDecision.Reason, err)
		}
		if attempt == c.retryMaxAttempts {
			break
		}

		c.logger.Warn("process delivery attempt failed; retrying",
			"stage", stage,
			"classification", lastDecision.Class,
			"classification_reason", lastDecision.Reason,
			"attempt", attempt,
			"max_attempts", c.retryMaxAttempts,
			"error", err,
		)
		if err := c.sleepFn(ctx, c.retryDelay(attempt)); err != nil {
			return err
		}
	}

	return fmt.Errorf("transient_recovery_exhausted stage=%s attempts=%d reason=%s: %w", stage, c.retryMaxAttempts, lastDecision.Reason, lastErr)
}

func (c *Consumer) retryDelay(attempt int) time.Duration {
	delay := c.retryDelayStart
	if delay <= 0 {
		return 0
	}
	if attempt > 1 {
		for i := 1; i < attempt; i++ {
			delay *= 2
			if c.retryDelayMax > 0 && delay >= c.retryDelayMax {
				delay = c.retryDelayMax
				break
			}
		}
	} else if c.retryDelayMax > 0 && delay > c.retryDelayMax {
		delay = c.retryDelayMax
	}

	// Add 0-25% random jitter to avoid thundering herd.
	if delay > 0 {
		jitter := time.Duration(rand.Int64N(int64(delay) / 4))
		delay += jitter
	}

	return delay
}

func (c *Consumer) recordSuccess(ctx context.Context) {
	if !c.health.RecordSuccessWithRecovery() {
		return
	}
	c.logger.Info("composer recovered")
	if c.alerter != nil {
		_ = c.alerter.Send(ctx, alert.Alert{
			Type:    alert.AlertTypeRecovery,
			Chain:   c.engine.Local().Name,
			Title:   "Composer recovered",
			Message: "Deliveries are processing again after an unhealthy period",
		})
	}
}

func (c *Consumer) recordFailure(ctx context.Context, cause error) {
	if !c.health.RecordFailure() {
		return
	}
	snap := c.health.Snapshot()
	c.logger.Error("composer transitioned to unhealthy", "consecutive_failures", snap.ConsecutiveFailures)
	if c.alerter != nil {
		_ = c.alerter.Send(ctx, alert.Alert{
			Type:    alert.AlertTypeUnhealthy,
			Chain:   c.engine.Local().Name,
			Title:   "Composer unhealthy",
			Message: cause.Error(),
			Fields: map[string]string{
				"consecutive_failures": fmt.Sprintf("%d", snap.ConsecutiveFailures),
			},
		})
	}
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
