// Package quoter estimates the delivery cost of outbound messages. Each
// destination endpoint carries a cost model seeded from the topology file
// and adjustable at runtime through the admin API.
package quoter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/omnivault/crosschain-composer/internal/cache"
	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/metrics"
	"github.com/omnivault/crosschain-composer/internal/protocol"
	"github.com/omnivault/crosschain-composer/internal/validator"
)

// ErrUnsupportedDestination means the destination endpoint has no cost
// model, so nothing can be quoted toward it.
var ErrUnsupportedDestination = errors.New("unsupported destination endpoint")

const (
	// Encoded sizes are rounded up to the next bucket boundary before
	// pricing, so one memo entry is exact for every size in its bucket.
	sizeBucket = 32

	defaultMemoCapacity = 1024
)

type feePair struct {
	native    uint64
	secondary uint64
}

// Quoter prices outbound deliveries. Quotes are memoized per
// (destination, size bucket, delivery options); the memo is dropped
// whenever a cost model changes.
type Quoter struct {
	chain  string
	prober validator.Prober
	logger *slog.Logger

	mu     sync.RWMutex
	models map[uint32]model.CostModel

	memo *cache.LRU[string, feePair]
}

func New(chain string, models map[uint32]model.CostModel, prober validator.Prober, logger *slog.Logger) *Quoter {
	owned := make(map[uint32]model.CostModel, len(models))
	for eid, m := range models {
		owned[eid] = m
	}
	return &Quoter{
		chain:  chain,
		prober: prober,
		logger: logger.With("component", "quoter", "chain", chain),
		models: owned,
		memo:   cache.NewLRU[string, feePair](defaultMemoCapacity, 0),
	}
}

// Quote prices one message toward its target endpoint. With
// requireValidatorCheck the quote also reports whether a dry-run attester
// probe currently passes; probe failure or an open breaker flips Valid to
// false without affecting the fee fields.
func (q *Quoter) Quote(ctx context.Context, msg *model.Message, opts model.DeliveryOptions, requireValidatorCheck bool) (model.FeeQuote, error) {
	metrics.QuoterQuotesTotal.WithLabelValues(q.chain).Inc()

	cm, ok := q.Model(msg.TargetEid)
	if !ok {
		metrics.QuoterUnsupportedTotal.WithLabelValues(q.chain).Inc()
		return model.FeeQuote{}, fmt.Errorf("target eid %d: %w", msg.TargetEid, ErrUnsupportedDestination)
	}

	encoded, err := protocol.Encode(msg)
	if err != nil {
		return model.FeeQuote{}, fmt.Errorf("encode for quote: %w", err)
	}
	size := bucketCeil(len(encoded))

	key := memoKey(msg.TargetEid, size, opts)
	fees, hit := q.memo.Get(key)
	if hit {
		metrics.QuoterMemoHits.WithLabelValues(q.chain).Inc()
	} else {
		metrics.QuoterMemoMisses.WithLabelValues(q.chain).Inc()
		fees = price(cm, uint64(size), opts)
		q.memo.Put(key, fees)
	}

	quote := model.FeeQuote{
		NativeFee:         fees.native,
		SecondaryTokenFee: fees.secondary,
		Valid:             true,
	}
	if requireValidatorCheck {
		if q.prober == nil {
			quote.Valid = false
		} else if err := q.prober.Probe(ctx); err != nil {
			q.logger.Debug("dry-run probe failed", "target_eid", msg.TargetEid, "error", err)
			quote.Valid = false
		}
	}
	return quote, nil
}

// Model returns the cost model currently configured for an endpoint.
func (q *Quoter) Model(eid uint32) (model.CostModel, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	cm, ok := q.models[eid]
	return cm, ok
}

// Models returns a snapshot of every configured cost model.
func (q *Quoter) Models() map[uint32]model.CostModel {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make(map[uint32]model.CostModel, len(q.models))
	for eid, m := range q.models {
		out[eid] = m
	}
	return out
}

// SetModel installs or replaces the cost model for an endpoint and drops
// memoized quotes priced under the old model.
func (q *Quoter) SetModel(eid uint32, cm model.CostModel) {
	q.mu.Lock()
	q.models[eid] = cm
	q.mu.Unlock()
	q.memo.Purge()
	q.logger.Info("cost model updated", "target_eid", eid,
		"base_fee", cm.BaseFee, "per_byte_fee", cm.PerByteFee)
}

func price(cm model.CostModel, size uint64, opts model.DeliveryOptions) feePair {
	fees := feePair{
		native: cm.BaseFee + cm.PerByteFee*size + cm.GasPriceNative*opts.GasLimit,
	}
	if opts.PayInSecondaryToken {
		fees.secondary = cm.SecondaryFlatFee + cm.SecondaryPerByteFee*size
	}
	return fees
}

func bucketCeil(n int) int {
	return (n + sizeBucket - 1) / sizeBucket * sizeBucket
}

func memoKey(eid uint32, size int, opts model.DeliveryOptions) string {
	return fmt.Sprintf("%d:%d:%d:%t", eid, size, opts.GasLimit, opts.PayInSecondaryToken)
}
