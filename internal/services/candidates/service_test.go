package candidates

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/leorifa93/desires-backend/internal/domain/enums"
	"github.com/leorifa93/desires-backend/internal/domain/model"
	"github.com/leorifa93/desires-backend/internal/geo"
	pgrepo "github.com/leorifa93/desires-backend/internal/repo/postgres"
	redrepo "github.com/leorifa93/desires-backend/internal/repo/redis"
)

const (
	berlinLat = 52.5200
	berlinLon = 13.4050
)

type profileStoreStub struct {
	profiles    []pgrepo.ProfileRecord
	rankedCalls int
}

func (s *profileStoreStub) GetByID(_ context.Context, userID int64) (pgrepo.ProfileRecord, error) {
	for _, p := range s.profiles {
		if p.UserID == userID {
			return p, nil
		}
	}
	return pgrepo.ProfileRecord{}, pgrepo.ErrProfileNotFound
}

func (s *profileStoreStub) ListByGeohashRange(_ context.Context, start, end string, limit int) ([]pgrepo.ProfileRecord, error) {
	var out []pgrepo.ProfileRecord
	for _, p := range s.profiles {
		if p.Geohash >= start && p.Geohash < end && p.Status == "ACTIVE" && p.HasApprovedPhoto {
			out = append(out, p)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *profileStoreStub) ListRanked(_ context.Context, limit int) ([]pgrepo.ProfileRecord, error) {
	s.rankedCalls++
	var out []pgrepo.ProfileRecord
	for _, p := range s.profiles {
		if p.Status == "ACTIVE" && p.HasApprovedPhoto {
			out = append(out, p)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fallbackCacheStub struct {
	set  []model.Profile
	hits int
}

func (c *fallbackCacheStub) GetRankedSet(context.Context) ([]model.Profile, error) {
	if c.set == nil {
		return nil, redrepo.ErrCacheMiss
	}
	c.hits++
	return c.set, nil
}

func (c *fallbackCacheStub) SetRankedSet(_ context.Context, profiles []model.Profile, _ time.Duration) error {
	c.set = profiles
	return nil
}

func activeProfile(userID int64, lat, lon float64) pgrepo.ProfileRecord {
	return pgrepo.ProfileRecord{
		UserID:           userID,
		DisplayName:      fmt.Sprintf("user-%d", userID),
		Lat:              lat,
		Lon:              lon,
		Geohash:          geo.Encode(lat, lon),
		Gender:           string(enums.GenderFemale),
		LookingFor:       string(enums.PreferenceAny),
		Tier:             int(enums.TierFree),
		Status:           "ACTIVE",
		HasApprovedPhoto: true,
		CreatedAt:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// atDistance places a point the given number of km due north of the origin.
func atDistance(lat, lon, km float64) (float64, float64) {
	return lat + km/geo.EarthRadiusKM*180/math.Pi, lon
}

func TestFetchCandidatesRadiusBoundary(t *testing.T) {
	nearLat, nearLon := atDistance(berlinLat, berlinLon, 50.0)
	farLat, farLon := atDistance(berlinLat, berlinLon, 50.001)

	store := &profileStoreStub{profiles: []pgrepo.ProfileRecord{
		activeProfile(1, berlinLat, berlinLon+0.01),
		activeProfile(2, nearLat, nearLon),
		activeProfile(3, farLat, farLon),
	}}
	svc := NewService(store, Config{MaxRadiusKM: 100})

	got, err := svc.FetchCandidates(context.Background(), Query{
		Origin:     Origin{Lat: berlinLat, Lon: berlinLon},
		RadiusKM:   50,
		Preference: enums.PreferenceAny,
	})
	if err != nil {
		t.Fatalf("fetch candidates: %v", err)
	}

	ids := map[int64]bool{}
	for _, p := range got {
		ids[p.UserID] = true
		d := geo.HaversineKM(berlinLat, berlinLon, p.Location.Lat, p.Location.Lon)
		if d > 50+1e-3 {
			t.Fatalf("candidate %d at %.4f km exceeds the radius", p.UserID, d)
		}
	}
	if !ids[1] || !ids[2] {
		t.Fatalf("candidates inside the radius missing: %v", ids)
	}
	if ids[3] {
		t.Fatalf("candidate at 50.001 km must be excluded")
	}
}

func TestFetchCandidatesOrdersByDistance(t *testing.T) {
	lat10, lon10 := atDistance(berlinLat, berlinLon, 10)
	lat2, lon2 := atDistance(berlinLat, berlinLon, 2)
	lat30, lon30 := atDistance(berlinLat, berlinLon, 30)

	store := &profileStoreStub{profiles: []pgrepo.ProfileRecord{
		activeProfile(1, lat10, lon10),
		activeProfile(2, lat2, lon2),
		activeProfile(3, lat30, lon30),
	}}
	svc := NewService(store, Config{})

	got, err := svc.FetchCandidates(context.Background(), Query{
		Origin:   Origin{Lat: berlinLat, Lon: berlinLon},
		RadiusKM: 50,
	})
	if err != nil {
		t.Fatalf("fetch candidates: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].UserID != 2 || got[1].UserID != 1 || got[2].UserID != 3 {
		t.Fatalf("candidates not ordered by distance: %d, %d, %d", got[0].UserID, got[1].UserID, got[2].UserID)
	}
}

func TestFetchCandidatesAppliesEligibilityFilters(t *testing.T) {
	base := berlinLat + 0.01

	inactive := activeProfile(10, base, berlinLon)
	inactive.Status = "INACTIVE"
	noPhoto := activeProfile(11, base, berlinLon+0.01)
	noPhoto.HasApprovedPhoto = false
	incognito := activeProfile(12, base, berlinLon+0.02)
	incognito.Tier = int(enums.TierIncognito)
	male := activeProfile(13, base, berlinLon+0.03)
	male.Gender = string(enums.GenderMale)
	eligible := activeProfile(14, base, berlinLon+0.04)
	excluded := activeProfile(15, base, berlinLon+0.05)

	store := &profileStoreStub{profiles: []pgrepo.ProfileRecord{
		inactive, noPhoto, incognito, male, eligible, excluded,
	}}
	svc := NewService(store, Config{})

	got, err := svc.FetchCandidates(context.Background(), Query{
		Origin:     Origin{Lat: berlinLat, Lon: berlinLon},
		RadiusKM:   20,
		Preference: enums.PreferenceFemale,
		ExcludeIDs: map[int64]struct{}{15: {}},
	})
	if err != nil {
		t.Fatalf("fetch candidates: %v", err)
	}
	if len(got) != 1 || got[0].UserID != 14 {
		t.Fatalf("expected only the eligible candidate, got %+v", got)
	}
}

func TestFetchCandidatesFallsBackWhenRadiusIsEmpty(t *testing.T) {
	// all candidates far outside the requested radius
	boosted := activeProfile(20, 40.0, -74.0)
	boostedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	boosted.BoostedAt = &boostedAt
	boosted.Tier = int(enums.TierPremium)
	plain := activeProfile(21, 41.0, -75.0)

	store := &profileStoreStub{profiles: []pgrepo.ProfileRecord{boosted, plain}}
	svc := NewService(store, Config{FallbackBatchSize: 10})

	got, err := svc.FetchCandidates(context.Background(), Query{
		Origin:   Origin{Lat: berlinLat, Lon: berlinLon},
		RadiusKM: 50,
	})
	if err != nil {
		t.Fatalf("fetch candidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("fallback must return the ranked set, got %d entries", len(got))
	}
}

func TestFallbackExcludesLedgerKnownIDs(t *testing.T) {
	store := &profileStoreStub{profiles: []pgrepo.ProfileRecord{
		activeProfile(30, 40.0, -74.0),
		activeProfile(31, 41.0, -75.0),
	}}
	svc := NewService(store, Config{})

	got, err := svc.FetchCandidates(context.Background(), Query{
		Origin:     Origin{Lat: berlinLat, Lon: berlinLon},
		RadiusKM:   10,
		ExcludeIDs: map[int64]struct{}{30: {}},
	})
	if err != nil {
		t.Fatalf("fetch candidates: %v", err)
	}
	for _, p := range got {
		if p.UserID == 30 {
			t.Fatalf("fallback must honor the exclude set")
		}
	}
	if len(got) != 1 || got[0].UserID != 31 {
		t.Fatalf("expected only candidate 31 in fallback, got %+v", got)
	}
}

func TestFallbackUsesCache(t *testing.T) {
	store := &profileStoreStub{profiles: []pgrepo.ProfileRecord{
		activeProfile(40, 40.0, -74.0),
	}}
	cache := &fallbackCacheStub{}
	svc := NewService(store, Config{})
	svc.AttachFallbackCache(cache)

	query := Query{Origin: Origin{Lat: berlinLat, Lon: berlinLon}, RadiusKM: 10}

	if _, err := svc.FetchCandidates(context.Background(), query); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if store.rankedCalls != 1 {
		t.Fatalf("first fallback must hit the store, got %d calls", store.rankedCalls)
	}

	if _, err := svc.FetchCandidates(context.Background(), query); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if store.rankedCalls != 1 {
		t.Fatalf("second fallback must be served from cache, got %d store calls", store.rankedCalls)
	}
	if cache.hits != 1 {
		t.Fatalf("expected one cache hit, got %d", cache.hits)
	}
}

func TestFetchForUserExcludesSelfAndUsesPreference(t *testing.T) {
	requester := activeProfile(100, berlinLat, berlinLon)
	requester.Gender = string(enums.GenderFemale)
	requester.LookingFor = string(enums.PreferenceMale)

	match := activeProfile(101, berlinLat+0.01, berlinLon)
	match.Gender = string(enums.GenderMale)
	mismatch := activeProfile(102, berlinLat+0.02, berlinLon)
	mismatch.Gender = string(enums.GenderFemale)

	store := &profileStoreStub{profiles: []pgrepo.ProfileRecord{requester, match, mismatch}}
	svc := NewService(store, Config{})

	got, err := svc.FetchForUser(context.Background(), 100, 50, nil)
	if err != nil {
		t.Fatalf("fetch for user: %v", err)
	}
	if len(got) != 1 || got[0].UserID != 101 {
		t.Fatalf("expected only the preference-matching candidate, got %+v", got)
	}
}

func TestFetchForUserWithoutLocationFallsBack(t *testing.T) {
	requester := activeProfile(100, 0, 0)
	requester.Geohash = ""

	other := activeProfile(101, 40.0, -74.0)

	store := &profileStoreStub{profiles: []pgrepo.ProfileRecord{requester, other}}
	svc := NewService(store, Config{})

	got, err := svc.FetchForUser(context.Background(), 100, 50, nil)
	if err != nil {
		t.Fatalf("fetch for user: %v", err)
	}
	if len(got) != 1 || got[0].UserID != 101 {
		t.Fatalf("expected ranked fallback without requester, got %+v", got)
	}
}
