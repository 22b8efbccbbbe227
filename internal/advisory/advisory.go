// Package advisory defines the composer's contract with the external
// recommendation generator. How a recommendation is computed is out of
// scope; the composer consumes tuples and enforces only the confidence
// threshold.
package advisory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/omnivault/crosschain-composer/internal/domain/model"
)

// Generator produces the next batch of recommendations to broadcast. An
// empty batch is a normal outcome (nothing to recommend this interval).
type Generator interface {
	Pending(ctx context.Context) ([]model.Recommendation, error)
}

// StaticGenerator serves a fixed queue of recommendations, draining it as
// the broadcaster consumes them. Used in development topologies and
// harnesses; production wires the real generator behind the same interface.
type StaticGenerator struct {
	mu    sync.Mutex
	queue []model.Recommendation
}

func NewStaticGenerator(recs ...model.Recommendation) *StaticGenerator {
	g := &StaticGenerator{}
	g.Push(recs...)
	return g
}

// Push enqueues recommendations, assigning ids to any without one.
func (g *StaticGenerator) Push(recs ...model.Recommendation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, rec := range recs {
		if rec.RecommendationID == uuid.Nil {
			rec.RecommendationID = uuid.New()
		}
		g.queue = append(g.queue, rec)
	}
}

func (g *StaticGenerator) Pending(ctx context.Context) ([]model.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) == 0 {
		return nil, nil
	}
	batch := g.queue
	g.queue = nil
	return batch, nil
}
