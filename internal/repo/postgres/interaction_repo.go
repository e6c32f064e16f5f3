package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInteractionNotFound = errors.New("interaction not found")

// InteractionRepo persists the decision ledger. One row per (actor, target)
// pair; the unique key serves the "sent" view and the target_id index
// serves the "received" view, so one upsert writes both atomically.
type InteractionRepo struct {
	pool *pgxpool.Pool
}

func NewInteractionRepo(pool *pgxpool.Pool) *InteractionRepo {
	return &InteractionRepo{pool: pool}
}

type InteractionRecord struct {
	ActorID   int64
	TargetID  int64
	Decision  string
	CreatedAt time.Time
}

func (r *InteractionRepo) Get(ctx context.Context, tx pgx.Tx, actorID, targetID int64) (InteractionRecord, error) {
	if actorID <= 0 || targetID <= 0 {
		return InteractionRecord{}, fmt.Errorf("invalid interaction lookup payload")
	}
	if tx == nil {
		return InteractionRecord{}, fmt.Errorf("transaction is required")
	}

	var rec InteractionRecord
	err := tx.QueryRow(ctx, `
SELECT actor_id, target_id, decision, created_at
FROM interactions
WHERE actor_id = $1 AND target_id = $2
FOR UPDATE
`, actorID, targetID).Scan(
		&rec.ActorID,
		&rec.TargetID,
		&rec.Decision,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InteractionRecord{}, ErrInteractionNotFound
		}
		return InteractionRecord{}, fmt.Errorf("get interaction: %w", err)
	}

	return rec, nil
}

// Upsert writes the pair's single ledger row. A repeat write overwrites the
// decision and keeps the original created_at; it never creates a second row.
func (r *InteractionRepo) Upsert(ctx context.Context, tx pgx.Tx, actorID, targetID int64, decision string, now time.Time) (InteractionRecord, error) {
	if actorID <= 0 || targetID <= 0 || strings.TrimSpace(decision) == "" {
		return InteractionRecord{}, fmt.Errorf("invalid interaction payload")
	}
	if tx == nil {
		return InteractionRecord{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec InteractionRecord
	err := tx.QueryRow(ctx, `
INSERT INTO interactions (
	actor_id,
	target_id,
	decision,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (actor_id, target_id) DO UPDATE SET
	decision = EXCLUDED.decision,
	updated_at = $4
RETURNING actor_id, target_id, decision, created_at
`, actorID, targetID, strings.ToUpper(strings.TrimSpace(decision)), now.UTC()).Scan(
		&rec.ActorID,
		&rec.TargetID,
		&rec.Decision,
		&rec.CreatedAt,
	)
	if err != nil {
		return InteractionRecord{}, fmt.Errorf("upsert interaction: %w", err)
	}

	return rec, nil
}

// AdjustReceivedLikes moves the target's incoming-like badge counter.
func (r *InteractionRepo) AdjustReceivedLikes(ctx context.Context, tx pgx.Tx, targetID int64, delta int, now time.Time) error {
	if targetID <= 0 || delta == 0 {
		return fmt.Errorf("invalid received-likes adjustment")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO interaction_counters (
	target_id,
	received_likes,
	updated_at
) VALUES ($1, GREATEST($2, 0), $3)
ON CONFLICT (target_id) DO UPDATE SET
	received_likes = GREATEST(interaction_counters.received_likes + $2, 0),
	updated_at = $3
`, targetID, delta, now.UTC()); err != nil {
		return fmt.Errorf("adjust received likes: %w", err)
	}

	return nil
}

func (r *InteractionRepo) ListSentTargetIDs(ctx context.Context, actorID int64) ([]int64, error) {
	if actorID <= 0 {
		return nil, fmt.Errorf("invalid actor id")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT target_id
FROM interactions
WHERE actor_id = $1
`, actorID)
	if err != nil {
		return nil, fmt.Errorf("list sent target ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, 64)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sent target id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sent target ids: %w", err)
	}

	return ids, nil
}

func (r *InteractionRepo) ListReceived(ctx context.Context, targetID int64, limit int) ([]InteractionRecord, error) {
	if targetID <= 0 {
		return nil, fmt.Errorf("invalid target id")
	}
	if limit <= 0 {
		limit = 50
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT actor_id, target_id, decision, created_at
FROM interactions
WHERE target_id = $1 AND decision = 'LIKE'
ORDER BY created_at DESC
LIMIT $2
`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list received interactions: %w", err)
	}
	defer rows.Close()

	out := make([]InteractionRecord, 0, limit)
	for rows.Next() {
		var rec InteractionRecord
		if err := rows.Scan(&rec.ActorID, &rec.TargetID, &rec.Decision, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan received interaction: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate received interactions: %w", err)
	}

	return out, nil
}

func (r *InteractionRepo) GetReceivedLikeCount(ctx context.Context, targetID int64) (int, error) {
	if targetID <= 0 {
		return 0, fmt.Errorf("invalid target id")
	}
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var count int
	err := r.pool.QueryRow(ctx, `
SELECT received_likes
FROM interaction_counters
WHERE target_id = $1
LIMIT 1
`, targetID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get received like count: %w", err)
	}

	return count, nil
}
