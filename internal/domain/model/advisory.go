package model

import (
	"fmt"

	"github.com/google/uuid"
)

// RecommendationAction is the advisory action enum carried on the wire.
type RecommendationAction uint8

const (
	ActionHold             RecommendationAction = 1
	ActionIncreaseExposure RecommendationAction = 2
	ActionReduceExposure   RecommendationAction = 3
	ActionRebalance        RecommendationAction = 4
)

func (a RecommendationAction) String() string {
	switch a {
	case ActionHold:
		return "HOLD"
	case ActionIncreaseExposure:
		return "INCREASE_EXPOSURE"
	case ActionReduceExposure:
		return "REDUCE_EXPOSURE"
	case ActionRebalance:
		return "REBALANCE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(a))
	}
}

func (a RecommendationAction) Known() bool {
	return a >= ActionHold && a <= ActionRebalance
}

// MinSyncConfidence is the confidence floor for advisory syncs. The gate is
// symmetric: sends below it fail LowConfidence, receives below it are
// dropped and journaled as rejected.
const MinSyncConfidence = 70

// Recommendation is the advisory tuple produced by the external generator
// and carried verbatim inside an AdvisorySyncFromHub payload. The composer
// enforces only the confidence threshold, never the business meaning.
type Recommendation struct {
	RecommendationID  uuid.UUID            `json:"recommendation_id"`
	User              string               `json:"user"`
	Action            RecommendationAction `json:"action"`
	Confidence        uint8                `json:"confidence"`
	ExpectedReturnBps int32                `json:"expected_return_bps"`
}

// Validate checks structural validity only; the confidence gate is applied
// separately so a rejected sync can still be journaled with its fields.
func (r *Recommendation) Validate() error {
	if r.RecommendationID == uuid.Nil {
		return fmt.Errorf("recommendation: id is nil")
	}
	if r.User == "" {
		return fmt.Errorf("recommendation %s: user is empty", r.RecommendationID)
	}
	if len(r.User) > MaxUserLen {
		return fmt.Errorf("recommendation %s: user exceeds %d bytes", r.RecommendationID, MaxUserLen)
	}
	if !r.Action.Known() {
		return fmt.Errorf("recommendation %s: unknown action %d", r.RecommendationID, uint8(r.Action))
	}
	if r.Confidence > 100 {
		return fmt.Errorf("recommendation %s: confidence %d out of range", r.RecommendationID, r.Confidence)
	}
	return nil
}
