package composer

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/omnivault/crosschain-composer/internal/metrics"
	"github.com/omnivault/crosschain-composer/internal/ratelimit"
	"github.com/omnivault/crosschain-composer/internal/store"
)

const (
	configWatcherDefaultInterval = 30 * time.Second

	// Known runtime config keys.
	ConfigKeyBroadcastInterval = "broadcast_interval_ms"
	ConfigKeyIsActive          = "is_active"
	ConfigKeySendRateLimit     = "send_rate_limit"
	ConfigKeySendRateBurst     = "send_rate_burst"
)

// BroadcastUpdater is the interface the config watcher uses to push
// interval changes to a running broadcaster.
type BroadcastUpdater interface {
	UpdateInterval(newInterval time.Duration) bool
}

// ActivationController allows the config watcher to activate/deactivate
// a composer at runtime without restarting the process.
type ActivationController interface {
	Deactivate()
	Activate()
	IsActive() bool
}

// ConfigWatcher polls the runtime_configs table and applies changes
// to the running composer without requiring a restart.
type ConfigWatcher struct {
	chain      string
	repo       store.RuntimeConfigRepository
	broadcast  BroadcastUpdater
	limiter    *ratelimit.Limiter
	activation ActivationController
	logger     *slog.Logger
	interval   time.Duration

	// Track last-seen values to avoid redundant updates.
	lastSeen map[string]string
}

func NewConfigWatcher(
	chain string,
	repo store.RuntimeConfigRepository,
	broadcast BroadcastUpdater,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
	interval time.Duration,
) *ConfigWatcher {
	if interval <= 0 {
		interval = configWatcherDefaultInterval
	}
	return &ConfigWatcher{
		chain:     chain,
		repo:      repo,
		broadcast: broadcast,
		limiter:   limiter,
		logger:    logger.With("component", "config_watcher"),
		interval:  interval,
		lastSeen:  make(map[string]string),
	}
}

// WithActivationController sets the activation controller on the watcher.
func (w *ConfigWatcher) WithActivationController(ac ActivationController) *ConfigWatcher {
	w.activation = ac
	return w
}

// Run starts the config watcher loop. It blocks until the context is cancelled.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	w.logger.Info("config watcher started",
		"chain", w.chain,
		"poll_interval", w.interval,
	)

	// Initial load.
	w.poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopping")
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *ConfigWatcher) poll(ctx context.Context) {
	configs, err := w.repo.GetActive(ctx, w.chain)
	if err != nil {
		w.logger.Warn("config watcher poll failed", "error", err)
		metrics.ConfigWatcherErrors.WithLabelValues(w.chain).Inc()
		return
	}

	// Clean up orphan keys that no longer exist in the active config set.
	for key := range w.lastSeen {
		if _, exists := configs[key]; !exists {
			delete(w.lastSeen, key)
		}
	}

	for key, value := range configs {
		if w.lastSeen[key] == value {
			continue
		}

		w.logger.Info("runtime config changed",
			"key", key,
			"old_value", w.lastSeen[key],
			"new_value", value,
		)

		w.applyConfig(key, value)
		w.lastSeen[key] = value
	}
}

func (w *ConfigWatcher) applyConfig(key, value string) {
	switch strings.TrimSpace(key) {
	case ConfigKeyBroadcastInterval:
		if w.broadcast == nil {
			w.logger.Debug("broadcast_interval_ms config received but no broadcaster runs here")
			return
		}
		if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
			w.broadcast.UpdateInterval(time.Duration(v) * time.Millisecond)
		} else {
			w.logger.Warn("invalid broadcast_interval_ms value", "value", value)
		}

	case ConfigKeySendRateLimit:
		if w.limiter == nil {
			w.logger.Debug("send_rate_limit config received but no rate limiter set")
			return
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && v > 0 {
			_, burst := w.limiter.Rate()
			w.limiter.SetRate(v, burst)
		} else {
			w.logger.Warn("invalid send_rate_limit value (must be > 0)", "value", value)
		}

	case ConfigKeySendRateBurst:
		if w.limiter == nil {
			w.logger.Debug("send_rate_burst config received but no rate limiter set")
			return
		}
		if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
			rps, _ := w.limiter.Rate()
			w.limiter.SetRate(rps, v)
		} else {
			w.logger.Warn("invalid send_rate_burst value (must be > 0)", "value", value)
		}

	case ConfigKeyIsActive:
		if w.activation == nil {
			w.logger.Debug("is_active config received but no activation controller set")
			return
		}
		trimmed := strings.ToLower(strings.TrimSpace(value))
		switch trimmed {
		case "false", "0", "no", "off":
			if w.activation.IsActive() {
				w.logger.Warn("deactivating composer via runtime config", "chain", w.chain)
				w.activation.Deactivate()
			}
		case "true", "1", "yes", "on":
			if !w.activation.IsActive() {
				w.logger.Info("reactivating composer via runtime config", "chain", w.chain)
				w.activation.Activate()
			}
		default:
			w.logger.Warn("invalid is_active value", "value", value)
		}

	default:
		w.logger.Debug("unhandled runtime config key", "key", key, "value", value)
	}
}
