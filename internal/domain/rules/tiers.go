package rules

import "github.com/leorifa93/desires-backend/internal/domain/enums"

// QuotaExempt reports whether a tier bypasses the like quota entirely.
func QuotaExempt(tier enums.Tier) bool {
	return tier >= enums.TierPlus
}

// Discoverable reports whether profiles of the tier may be returned by
// geospatial discovery. Incognito members opt out of being found.
func Discoverable(tier enums.Tier) bool {
	return tier != enums.TierIncognito
}

// PreferenceMatches reports whether a candidate's gender satisfies the
// requester's stated preference.
func PreferenceMatches(pref enums.Preference, gender enums.Gender) bool {
	switch pref {
	case enums.PreferenceAny, "":
		return true
	case enums.PreferenceMale:
		return gender == enums.GenderMale
	case enums.PreferenceFemale:
		return gender == enums.GenderFemale
	default:
		return false
	}
}
