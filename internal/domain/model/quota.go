package model

import "github.com/leorifa93/desires-backend/internal/domain/enums"

// QuotaState is owned by the accounts subsystem; this core reads it and
// requests atomic decrements.
type QuotaState struct {
	UserID         int64      `json:"user_id"`
	AvailableLikes int        `json:"available_likes"`
	Tier           enums.Tier `json:"tier"`
}
