package model

// DeckEntry wraps a candidate profile with its session-local used flag.
// Entries are never removed from a deck; marking in place keeps indices
// stable for the renderer.
type DeckEntry struct {
	Profile Profile `json:"profile"`
	Used    bool    `json:"used"`
}
