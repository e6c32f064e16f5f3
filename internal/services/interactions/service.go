package interactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leorifa93/desires-backend/internal/domain/enums"
	"github.com/leorifa93/desires-backend/internal/domain/model"
	pgrepo "github.com/leorifa93/desires-backend/internal/repo/postgres"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrUnsupportedDecision = errors.New("unsupported decision")
)

type Store interface {
	Get(ctx context.Context, tx pgx.Tx, actorID, targetID int64) (pgrepo.InteractionRecord, error)
	Upsert(ctx context.Context, tx pgx.Tx, actorID, targetID int64, decision string, now time.Time) (pgrepo.InteractionRecord, error)
	AdjustReceivedLikes(ctx context.Context, tx pgx.Tx, targetID int64, delta int, now time.Time) error
	ListSentTargetIDs(ctx context.Context, actorID int64) ([]int64, error)
	ListReceived(ctx context.Context, targetID int64, limit int) ([]pgrepo.InteractionRecord, error)
	GetReceivedLikeCount(ctx context.Context, targetID int64) (int, error)
}

// Service owns the decision ledger: every like and dislike a user has sent
// or received. Writes are idempotent upserts keyed by (actor, target); the
// badge counter on the receiving side moves in the same transaction.
type Service struct {
	pool  *pgxpool.Pool
	store Store
	runTx func(context.Context, *pgxpool.Pool, func(context.Context, pgx.Tx) error) error
	now   func() time.Time
}

func NewService(pool *pgxpool.Pool, store Store) *Service {
	return &Service{
		pool:  pool,
		store: store,
		runTx: pgrepo.WithTx,
		now:   time.Now,
	}
}

// RecordDecision upserts the pair's ledger row. A repeat call with any
// decision overwrites the prior one; it never produces a second record.
func (s *Service) RecordDecision(ctx context.Context, actorID, targetID int64, decision enums.Decision) error {
	if actorID <= 0 || targetID <= 0 || actorID == targetID {
		return ErrValidation
	}
	if !decision.Valid() {
		return ErrUnsupportedDecision
	}
	if s.store == nil {
		return fmt.Errorf("interaction store is not configured")
	}

	now := s.now().UTC()
	err := s.runTx(ctx, s.pool, func(txCtx context.Context, tx pgx.Tx) error {
		prior, err := s.store.Get(txCtx, tx, actorID, targetID)
		hadPrior := true
		if err != nil {
			if !errors.Is(err, pgrepo.ErrInteractionNotFound) {
				return err
			}
			hadPrior = false
		}

		if _, err := s.store.Upsert(txCtx, tx, actorID, targetID, string(decision), now); err != nil {
			return err
		}

		delta := receivedLikeDelta(hadPrior, prior.Decision, decision)
		if delta != 0 {
			if err := s.store.AdjustReceivedLikes(txCtx, tx, targetID, delta, now); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("record decision %d->%d: %w", actorID, targetID, err)
	}

	return nil
}

// ListSentTargetIDs returns every target the actor has decided on; the deck
// manager builds its exclude set from this.
func (s *Service) ListSentTargetIDs(ctx context.Context, actorID int64) ([]int64, error) {
	if actorID <= 0 {
		return nil, ErrValidation
	}
	if s.store == nil {
		return nil, fmt.Errorf("interaction store is not configured")
	}

	ids, err := s.store.ListSentTargetIDs(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("list sent targets for %d: %w", actorID, err)
	}

	return ids, nil
}

// ListReceived returns the newest incoming likes for the target.
func (s *Service) ListReceived(ctx context.Context, targetID int64, limit int) ([]model.InteractionRecord, error) {
	if targetID <= 0 {
		return nil, ErrValidation
	}
	if s.store == nil {
		return nil, fmt.Errorf("interaction store is not configured")
	}

	records, err := s.store.ListReceived(ctx, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list received for %d: %w", targetID, err)
	}

	out := make([]model.InteractionRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, model.InteractionRecord{
			ActorID:   rec.ActorID,
			TargetID:  rec.TargetID,
			Decision:  enums.Decision(rec.Decision),
			CreatedAt: rec.CreatedAt,
		})
	}

	return out, nil
}

func (s *Service) ReceivedLikeCount(ctx context.Context, targetID int64) (int, error) {
	if targetID <= 0 {
		return 0, ErrValidation
	}
	if s.store == nil {
		return 0, fmt.Errorf("interaction store is not configured")
	}

	count, err := s.store.GetReceivedLikeCount(ctx, targetID)
	if err != nil {
		return 0, fmt.Errorf("received like count for %d: %w", targetID, err)
	}

	return count, nil
}

func receivedLikeDelta(hadPrior bool, prior string, next enums.Decision) int {
	wasLike := hadPrior && enums.Decision(prior) == enums.DecisionLike
	isLike := next == enums.DecisionLike

	switch {
	case isLike && !wasLike:
		return 1
	case !isLike && wasLike:
		return -1
	default:
		return 0
	}
}
