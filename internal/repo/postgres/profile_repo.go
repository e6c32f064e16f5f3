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

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepo reads the geohash-indexed profile store. Profiles are owned
// by the profile subsystem; this repo only reads them for discovery and
// records location updates.
type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

type ProfileRecord struct {
	UserID           int64
	DisplayName      string
	Lat              float64
	Lon              float64
	Geohash          string
	Gender           string
	LookingFor       string
	Tier             int
	Status           string
	HasApprovedPhoto bool
	PhotoKey         string
	BoostedAt        *time.Time
	CreatedAt        time.Time
}

const profileColumns = `
	user_id,
	display_name,
	lat,
	lon,
	geohash,
	gender,
	looking_for,
	tier,
	status,
	has_approved_photo,
	COALESCE(photo_key, ''),
	boosted_at,
	created_at`

func (r *ProfileRepo) GetByID(ctx context.Context, userID int64) (ProfileRecord, error) {
	if userID <= 0 {
		return ProfileRecord{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return ProfileRecord{}, ErrProfileNotFound
	}

	row := r.pool.QueryRow(ctx, `
SELECT`+profileColumns+`
FROM profiles
WHERE user_id = $1
LIMIT 1
`, userID)

	rec, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProfileRecord{}, ErrProfileNotFound
		}
		return ProfileRecord{}, fmt.Errorf("get profile by id: %w", err)
	}

	return rec, nil
}

// ListByGeohashRange returns active, photo-approved profiles whose geohash
// falls in the half-open [start, end) key range. Finer eligibility filters
// (gender, tier, exact distance) belong to the caller.
func (r *ProfileRepo) ListByGeohashRange(ctx context.Context, start, end string, limit int) ([]ProfileRecord, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" || start >= end {
		return nil, fmt.Errorf("invalid geohash range [%q, %q)", start, end)
	}
	if limit <= 0 {
		limit = 200
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+profileColumns+`
FROM profiles
WHERE geohash >= $1
  AND geohash < $2
  AND status = 'ACTIVE'
  AND has_approved_photo = TRUE
ORDER BY geohash
LIMIT $3
`, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("list profiles by geohash range: %w", err)
	}
	defer rows.Close()

	return collectProfiles(rows)
}

// ListRanked returns the fallback discovery set: active, photo-approved
// profiles ordered by tier, then most recent boost, then recency.
func (r *ProfileRepo) ListRanked(ctx context.Context, limit int) ([]ProfileRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid ranked limit")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+profileColumns+`
FROM profiles
WHERE status = 'ACTIVE'
  AND has_approved_photo = TRUE
ORDER BY tier DESC, boosted_at DESC NULLS LAST, created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list ranked profiles: %w", err)
	}
	defer rows.Close()

	return collectProfiles(rows)
}

func (r *ProfileRepo) SaveLocation(ctx context.Context, userID int64, lat, lon float64, hash string, at time.Time) error {
	if userID <= 0 || strings.TrimSpace(hash) == "" {
		return fmt.Errorf("invalid location payload")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	result, err := r.pool.Exec(ctx, `
UPDATE profiles
SET
	lat = $2,
	lon = $3,
	geohash = $4,
	updated_at = $5
WHERE user_id = $1
`, userID, lat, lon, hash, at.UTC())
	if err != nil {
		return fmt.Errorf("save profile location: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	return nil
}

func scanProfile(row pgx.Row) (ProfileRecord, error) {
	var rec ProfileRecord
	err := row.Scan(
		&rec.UserID,
		&rec.DisplayName,
		&rec.Lat,
		&rec.Lon,
		&rec.Geohash,
		&rec.Gender,
		&rec.LookingFor,
		&rec.Tier,
		&rec.Status,
		&rec.HasApprovedPhoto,
		&rec.PhotoKey,
		&rec.BoostedAt,
		&rec.CreatedAt,
	)
	return rec, err
}

func collectProfiles(rows pgx.Rows) ([]ProfileRecord, error) {
	out := make([]ProfileRecord, 0, 32)
	for rows.Next() {
		rec, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile rows: %w", err)
	}
	return out, nil
}
