package candidates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/leorifa93/desires-backend/internal/domain/enums"
	"github.com/leorifa93/desires-backend/internal/domain/model"
	"github.com/leorifa93/desires-backend/internal/domain/rules"
	"github.com/leorifa93/desires-backend/internal/geo"
	pgrepo "github.com/leorifa93/desires-backend/internal/repo/postgres"
)

// Distances this close to the radius edge count as inside; keeps the exact
// boundary candidate from flapping on float rounding.
const distanceToleranceKM = 1e-6

var ErrValidation = errors.New("validation error")

type ProfileStore interface {
	GetByID(ctx context.Context, userID int64) (pgrepo.ProfileRecord, error)
	ListByGeohashRange(ctx context.Context, start, end string, limit int) ([]pgrepo.ProfileRecord, error)
	ListRanked(ctx context.Context, limit int) ([]pgrepo.ProfileRecord, error)
}

type FallbackCache interface {
	GetRankedSet(ctx context.Context) ([]model.Profile, error)
	SetRankedSet(ctx context.Context, profiles []model.Profile, ttl time.Duration) error
}

type Config struct {
	DefaultRadiusKM   float64
	MaxRadiusKM       float64
	RangeQueryLimit   int
	FallbackBatchSize int
	FallbackCacheTTL  time.Duration
}

type Query struct {
	Origin     Origin
	RadiusKM   float64
	Preference enums.Preference
	ExcludeIDs map[int64]struct{}
}

type Origin struct {
	Lat float64
	Lon float64
}

// Service locates discovery candidates around a point: a coarse geohash
// range prune against the profile store, then an exact haversine filter,
// because geohash cells over-approximate a circle by up to ~1.5x the radius
// at the corners.
type Service struct {
	store ProfileStore
	cache FallbackCache
	cfg   Config
}

func NewService(store ProfileStore, cfg Config) *Service {
	if cfg.DefaultRadiusKM <= 0 {
		cfg.DefaultRadiusKM = 25
	}
	if cfg.MaxRadiusKM <= 0 {
		cfg.MaxRadiusKM = 100
	}
	if cfg.RangeQueryLimit <= 0 {
		cfg.RangeQueryLimit = 200
	}
	if cfg.FallbackBatchSize <= 0 {
		cfg.FallbackBatchSize = 30
	}
	if cfg.FallbackCacheTTL <= 0 {
		cfg.FallbackCacheTTL = time.Minute
	}

	return &Service{
		store: store,
		cfg:   cfg,
	}
}

func (s *Service) AttachFallbackCache(cache FallbackCache) {
	s.cache = cache
}

// FetchForUser resolves the requester's own profile into a query: their
// last location as origin and their stated preference as the gender filter.
// Requesters without a usable location go straight to the ranked fallback.
func (s *Service) FetchForUser(ctx context.Context, userID int64, radiusKM float64, excludeIDs map[int64]struct{}) ([]model.Profile, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.store == nil {
		return nil, fmt.Errorf("profile store is not configured")
	}

	requester, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load requester profile %d: %w", userID, err)
	}

	exclude := make(map[int64]struct{}, len(excludeIDs)+1)
	for id := range excludeIDs {
		exclude[id] = struct{}{}
	}
	exclude[userID] = struct{}{}

	query := Query{
		Origin:     Origin{Lat: requester.Lat, Lon: requester.Lon},
		RadiusKM:   radiusKM,
		Preference: enums.Preference(requester.LookingFor),
		ExcludeIDs: exclude,
	}

	if requester.Geohash == "" {
		return s.fallback(ctx, query)
	}

	return s.FetchCandidates(ctx, query)
}

// FetchCandidates runs the two-phase radius query. An empty result falls
// back to the ranked set so a requester is never permanently starved.
func (s *Service) FetchCandidates(ctx context.Context, q Query) ([]model.Profile, error) {
	if s.store == nil {
		return nil, fmt.Errorf("profile store is not configured")
	}
	if err := geo.ValidateCoordinates(q.Origin.Lat, q.Origin.Lon); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	radius := s.clampRadius(q.RadiusKM)

	ranges, err := geo.CoverRadius(q.Origin.Lat, q.Origin.Lon, radius)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	merged := make(map[int64]pgrepo.ProfileRecord)
	for _, r := range ranges {
		records, err := s.store.ListByGeohashRange(ctx, r.Start, r.End, s.cfg.RangeQueryLimit)
		if err != nil {
			return nil, fmt.Errorf("geohash range [%s, %s): %w", r.Start, r.End, err)
		}
		for _, rec := range records {
			merged[rec.UserID] = rec
		}
	}

	type scored struct {
		profile  model.Profile
		distance float64
	}
	kept := make([]scored, 0, len(merged))
	for _, rec := range merged {
		if !s.eligible(rec, q) {
			continue
		}
		d := geo.HaversineKM(q.Origin.Lat, q.Origin.Lon, rec.Lat, rec.Lon)
		if d > radius+distanceToleranceKM {
			continue
		}
		kept = append(kept, scored{profile: mapRecord(rec), distance: d})
	}

	if len(kept) == 0 {
		return s.fallback(ctx, q)
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].distance != kept[j].distance {
			return kept[i].distance < kept[j].distance
		}
		return kept[i].profile.UserID < kept[j].profile.UserID
	})

	out := make([]model.Profile, 0, len(kept))
	for _, item := range kept {
		out = append(out, item.profile)
	}
	return out, nil
}

// fallback serves the ranked set: highest tier first, most recently boosted
// first. The pre-filter set is shared across requesters and cached.
func (s *Service) fallback(ctx context.Context, q Query) ([]model.Profile, error) {
	ranked, err := s.rankedSet(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.Profile, 0, len(ranked))
	for _, profile := range ranked {
		if !s.eligibleProfile(profile, q) {
			continue
		}
		out = append(out, profile)
		if len(out) >= s.cfg.FallbackBatchSize {
			break
		}
	}

	return out, nil
}

func (s *Service) rankedSet(ctx context.Context) ([]model.Profile, error) {
	if s.cache != nil {
		// a miss or a degraded cache both fall through to the store
		if cached, err := s.cache.GetRankedSet(ctx); err == nil {
			return cached, nil
		}
	}

	records, err := s.store.ListRanked(ctx, s.cfg.FallbackBatchSize*4)
	if err != nil {
		return nil, fmt.Errorf("list ranked fallback: %w", err)
	}

	profiles := make([]model.Profile, 0, len(records))
	for _, rec := range records {
		profiles = append(profiles, mapRecord(rec))
	}

	if s.cache != nil {
		_ = s.cache.SetRankedSet(ctx, profiles, s.cfg.FallbackCacheTTL)
	}

	return profiles, nil
}

func (s *Service) clampRadius(radiusKM float64) float64 {
	if radiusKM <= 0 {
		radiusKM = s.cfg.DefaultRadiusKM
	}
	if radiusKM > s.cfg.MaxRadiusKM {
		radiusKM = s.cfg.MaxRadiusKM
	}
	return radiusKM
}

func (s *Service) eligible(rec pgrepo.ProfileRecord, q Query) bool {
	return s.eligibleProfile(mapRecord(rec), q)
}

func (s *Service) eligibleProfile(profile model.Profile, q Query) bool {
	if _, excluded := q.ExcludeIDs[profile.UserID]; excluded {
		return false
	}
	if profile.Status != enums.ProfileStatusActive {
		return false
	}
	if !profile.HasApprovedPhoto {
		return false
	}
	if !rules.Discoverable(profile.Tier) {
		return false
	}
	return rules.PreferenceMatches(q.Preference, profile.Gender)
}

func mapRecord(rec pgrepo.ProfileRecord) model.Profile {
	return model.Profile{
		UserID:      rec.UserID,
		DisplayName: rec.DisplayName,
		Location: model.Location{
			Lat:     rec.Lat,
			Lon:     rec.Lon,
			Geohash: rec.Geohash,
		},
		Gender:           enums.Gender(rec.Gender),
		LookingFor:       enums.Preference(rec.LookingFor),
		Tier:             enums.Tier(rec.Tier),
		Status:           enums.ProfileStatus(rec.Status),
		HasApprovedPhoto: rec.HasApprovedPhoto,
		PhotoKey:         rec.PhotoKey,
		BoostedAt:        rec.BoostedAt,
		CreatedAt:        rec.CreatedAt,
	}
}
