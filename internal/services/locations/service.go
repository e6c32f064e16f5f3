package locations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leorifa93/desires-backend/internal/geo"
)

var ErrValidation = errors.New("validation error")

type Saver interface {
	SaveLocation(ctx context.Context, userID int64, lat, lon float64, hash string, at time.Time) error
}

type Service struct {
	saver Saver
	now   func() time.Time
}

func NewService(saver Saver) *Service {
	return &Service{
		saver: saver,
		now:   time.Now,
	}
}

// UpdateLocation stores the reporting user's position together with its
// geohash, which is the key the discovery range queries scan on. The
// returned hash is what subsequent candidate lookups will see.
func (s *Service) UpdateLocation(ctx context.Context, userID int64, lat, lon float64) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("invalid user id: %w", ErrValidation)
	}
	if err := geo.ValidateCoordinates(lat, lon); err != nil {
		return "", fmt.Errorf("coordinates out of range: %w", ErrValidation)
	}

	hash := geo.Encode(lat, lon)
	if err := s.saver.SaveLocation(ctx, userID, lat, lon, hash, s.now()); err != nil {
		return "", fmt.Errorf("save location: %w", err)
	}

	return hash, nil
}
