package swipes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leorifa93/desires-backend/internal/domain/enums"
	"github.com/leorifa93/desires-backend/internal/services/accounts"
)

var (
	ErrValidation = errors.New("validation error")

	// ErrQuotaExceeded is a business rejection. The client shows the
	// upgrade prompt; nothing retries this automatically.
	ErrQuotaExceeded = errors.New("like quota exceeded")
)

// TooFastError means the actor tripped the like rate gate. Quota and the
// ledger are untouched when this is returned.
type TooFastError struct {
	RetryAfterSec int64
}

func (e *TooFastError) Error() string {
	return fmt.Sprintf("too many likes, retry in %ds", e.RetryAfterSec)
}

// LedgerWriteError reports a decision that was accepted (rate gate passed,
// quota spent) but could not be persisted. It carries enough to retry the
// write later.
type LedgerWriteError struct {
	ActorID  int64
	TargetID int64
	Decision enums.Decision
	Err      error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("ledger write failed for %d -> %d (%s): %v", e.ActorID, e.TargetID, e.Decision, e.Err)
}

func (e *LedgerWriteError) Unwrap() error {
	return e.Err
}

type Ledger interface {
	RecordDecision(ctx context.Context, actorID, targetID int64, decision enums.Decision) error
}

type Quota interface {
	ConsumeLike(ctx context.Context, userID int64) error
}

type RateGate interface {
	AllowLike(ctx context.Context, userID int64) (int64, bool, error)
}

type Notifier interface {
	NotifyLikeReceived(ctx context.Context, targetID int64) error
}

type Service struct {
	ledger   Ledger
	quota    Quota
	gate     RateGate
	notifier Notifier
	logger   *zap.Logger

	notifyTimeout time.Duration
}

func NewService(ledger Ledger, quota Quota, gate RateGate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		ledger:        ledger,
		quota:         quota,
		gate:          gate,
		logger:        logger,
		notifyTimeout: 5 * time.Second,
	}
}

// AttachNotifier enables best-effort like notifications. Without one the
// processor is silent, which tests and the bot-less deployments rely on.
func (s *Service) AttachNotifier(notifier Notifier) {
	s.notifier = notifier
}

// Process settles one swipe decision. Likes pass the rate gate and spend
// quota before the ledger write; dislikes skip straight to the ledger.
// Order matters: a gate or quota rejection must leave no ledger trace, and
// a ledger failure after a spent like is surfaced as a retryable
// LedgerWriteError rather than refunded.
func (s *Service) Process(ctx context.Context, actorID, targetID int64, decision enums.Decision) error {
	if actorID <= 0 || targetID <= 0 || actorID == targetID {
		return ErrValidation
	}
	if !decision.Valid() {
		return ErrValidation
	}

	if decision == enums.DecisionLike {
		retryAfter, allowed, err := s.gate.AllowLike(ctx, actorID)
		if err != nil {
			return fmt.Errorf("like rate gate: %w", err)
		}
		if !allowed {
			return &TooFastError{RetryAfterSec: retryAfter}
		}

		if err := s.quota.ConsumeLike(ctx, actorID); err != nil {
			if errors.Is(err, accounts.ErrQuotaExceeded) {
				return ErrQuotaExceeded
			}
			return fmt.Errorf("consume like quota: %w", err)
		}
	}

	if err := s.ledger.RecordDecision(ctx, actorID, targetID, decision); err != nil {
		return &LedgerWriteError{
			ActorID:  actorID,
			TargetID: targetID,
			Decision: decision,
			Err:      err,
		}
	}

	if decision == enums.DecisionLike && s.notifier != nil {
		go s.notify(targetID)
	}

	return nil
}

func (s *Service) notify(targetID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.NotifyLikeReceived(ctx, targetID); err != nil {
		s.logger.Warn("like notification failed",
			zap.Int64("target_id", targetID),
			zap.Error(err),
		)
	}
}
