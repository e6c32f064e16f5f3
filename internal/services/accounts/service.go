package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/leorifa93/desires-backend/internal/domain/enums"
	"github.com/leorifa93/desires-backend/internal/domain/model"
	"github.com/leorifa93/desires-backend/internal/domain/rules"
	pgrepo "github.com/leorifa93/desires-backend/internal/repo/postgres"
)

var (
	ErrAccountNotFound = errors.New("account not found")

	// ErrQuotaExceeded means the counter is at zero and the account's
	// tier does not bypass the quota.
	ErrQuotaExceeded = errors.New("like quota exceeded")
)

type Store interface {
	GetByID(ctx context.Context, userID int64) (pgrepo.AccountRecord, error)
	DecrementLikes(ctx context.Context, userID int64) (bool, error)
	GrantLikes(ctx context.Context, userID int64, n int) (int, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) GetQuota(ctx context.Context, userID int64) (model.QuotaState, error) {
	rec, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrAccountNotFound) {
			return model.QuotaState{}, ErrAccountNotFound
		}
		return model.QuotaState{}, fmt.Errorf("load quota: %w", err)
	}

	return model.QuotaState{
		UserID:         rec.UserID,
		AvailableLikes: rec.AvailableLikes,
		Tier:           enums.Tier(rec.Tier),
	}, nil
}

// ConsumeLike spends one unit of the actor's like quota. Quota-exempt tiers
// pass through untouched. A zero counter yields ErrQuotaExceeded and leaves
// the account unmodified.
func (s *Service) ConsumeLike(ctx context.Context, userID int64) error {
	rec, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("load account: %w", err)
	}

	if rules.QuotaExempt(enums.Tier(rec.Tier)) {
		return nil
	}

	ok, err := s.store.DecrementLikes(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("consume like: %w", err)
	}
	if !ok {
		return ErrQuotaExceeded
	}

	return nil
}

func (s *Service) GrantLikes(ctx context.Context, userID int64, n int) (int, error) {
	total, err := s.store.GrantLikes(ctx, userID, n)
	if err != nil {
		if errors.Is(err, pgrepo.ErrAccountNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("grant likes: %w", err)
	}
	return total, nil
}
