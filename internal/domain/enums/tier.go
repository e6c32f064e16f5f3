package enums

// Tier is an ordinal membership level. Higher tiers unlock more of the
// product; ordering matters for ranking and quota exemption.
type Tier int

const (
	TierFree Tier = iota
	TierPlus
	TierPremium
	TierIncognito
)
