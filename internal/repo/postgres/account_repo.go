package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountRepo fronts the account subsystem's quota fields. The decrement is
// a single conditional UPDATE so the counter can never race below zero.
type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

type AccountRecord struct {
	UserID         int64
	AvailableLikes int
	Tier           int
}

func (r *AccountRepo) GetByID(ctx context.Context, userID int64) (AccountRecord, error) {
	if userID <= 0 {
		return AccountRecord{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return AccountRecord{}, ErrAccountNotFound
	}

	var rec AccountRecord
	err := r.pool.QueryRow(ctx, `
SELECT user_id, available_likes, tier
FROM accounts
WHERE user_id = $1
LIMIT 1
`, userID).Scan(&rec.UserID, &rec.AvailableLikes, &rec.Tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountRecord{}, ErrAccountNotFound
		}
		return AccountRecord{}, fmt.Errorf("get account: %w", err)
	}

	return rec, nil
}

// DecrementLikes atomically consumes one like if any remain. ok=false means
// the quota is exhausted; no row is touched in that case.
func (r *AccountRepo) DecrementLikes(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var remaining int
	err := r.pool.QueryRow(ctx, `
UPDATE accounts
SET
	available_likes = available_likes - 1,
	updated_at = NOW()
WHERE user_id = $1 AND available_likes > 0
RETURNING available_likes
`, userID).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, lookupErr := r.GetByID(ctx, userID); lookupErr != nil {
				return false, lookupErr
			}
			return false, nil
		}
		return false, fmt.Errorf("decrement like quota: %w", err)
	}

	return true, nil
}

// GrantLikes replenishes the counter; the purchase flow upstream calls this.
func (r *AccountRepo) GrantLikes(ctx context.Context, userID int64, n int) (int, error) {
	if userID <= 0 || n <= 0 {
		return 0, fmt.Errorf("invalid like grant payload")
	}
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var total int
	err := r.pool.QueryRow(ctx, `
UPDATE accounts
SET
	available_likes = available_likes + $2,
	updated_at = NOW()
WHERE user_id = $1
RETURNING available_likes
`, userID, n).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("grant likes: %w", err)
	}

	return total, nil
}
