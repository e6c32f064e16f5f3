package enums

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Preference is a requester's stated gender preference for discovery.
type Preference string

const (
	PreferenceMale   Preference = "MALE"
	PreferenceFemale Preference = "FEMALE"
	PreferenceAny    Preference = "ANY"
)
