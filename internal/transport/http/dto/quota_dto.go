package dto

type QuotaResponse struct {
	AvailableLikes int  `json:"available_likes"`
	Tier           int  `json:"tier"`
	QuotaExempt    bool `json:"quota_exempt"`
}
