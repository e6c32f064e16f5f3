package model

import (
	"time"

	"github.com/leorifa93/desires-backend/internal/domain/enums"
)

// InteractionRecord is one side of the decision ledger: the actor decided
// on the target. At most one record exists per (actor, target) pair.
type InteractionRecord struct {
	ActorID   int64          `json:"actor_id"`
	TargetID  int64          `json:"target_id"`
	Decision  enums.Decision `json:"decision"`
	CreatedAt time.Time      `json:"created_at"`
}
