package domain

import "time"

// NameHistory is the append-only list of names a character has been seen with.
type NameHistory struct {
	CharacterID CharacterID `json:"character_id"`
	Names       []string    `json:"names"`
	LastUpdated time.Time   `json:"last_updated"`
}

// Latest returns the most recently recorded name, or "" for an empty history.
func (h *NameHistory) Latest() string {
	if h == nil || len(h.Names) == 0 {
		return ""
	}
	return h.Names[len(h.Names)-1]
}

type HistoryOp string

const (
	// HistorySeed records a first sighting. Applied to an existing history it
	// appends only when the name differs from the latest entry.
	HistorySeed HistoryOp = "seed"
	// HistoryAppend records a detected rename.
	HistoryAppend HistoryOp = "append"
)

// HistoryUpdate is one pending mutation of a character's NameHistory.
type HistoryUpdate struct {
	CharacterID CharacterID `json:"character_id"`
	Op          HistoryOp   `json:"op"`
	Name        string      `json:"name"`
	At          time.Time   `json:"at"`
}
