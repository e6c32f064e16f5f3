package dto

type DeckEntryPayload struct {
	UserID       int64    `json:"user_id"`
	DisplayName  string   `json:"display_name"`
	Distance     *float64 `json:"distance,omitempty"`
	DistanceUnit string   `json:"distance_unit,omitempty"`
	PhotoURL     string   `json:"photo_url,omitempty"`
	Used         bool     `json:"used"`
}

type DeckSessionResponse struct {
	SessionID  string             `json:"session_id"`
	Ready      bool               `json:"ready"`
	LoadFailed bool               `json:"load_failed"`
	Entries    []DeckEntryPayload `json:"entries"`
}
