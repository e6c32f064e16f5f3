package model

import (
	"time"

	"github.com/leorifa93/desires-backend/internal/domain/enums"
)

type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Geohash string  `json:"geohash"`
}

// Profile is the discovery-facing view of a user. It is owned by the profile
// subsystem and treated as immutable here.
type Profile struct {
	UserID           int64               `json:"user_id"`
	DisplayName      string              `json:"display_name"`
	Location         Location            `json:"location"`
	Gender           enums.Gender        `json:"gender"`
	LookingFor       enums.Preference    `json:"looking_for"`
	Tier             enums.Tier          `json:"tier"`
	Status           enums.ProfileStatus `json:"status"`
	HasApprovedPhoto bool                `json:"has_approved_photo"`
	PhotoKey         string              `json:"photo_key"`
	BoostedAt        *time.Time          `json:"boosted_at"`
	CreatedAt        time.Time           `json:"created_at"`
}
