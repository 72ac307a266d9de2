package domain

// CharacterID is the externally assigned, stable identifier of a character.
type CharacterID string

func (id CharacterID) String() string {
	return string(id)
}

// Member is one roster entry at a point in time. Identity is ID; Name and
// Rank are tracked for change.
type Member struct {
	ID        CharacterID `json:"id" yaml:"id"`
	Name      string      `json:"name" yaml:"name"`
	Rank      string      `json:"rank" yaml:"rank"`
	AvatarURL string      `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`
}

// Snapshot is the persisted roster keyed by character ID.
type Snapshot map[CharacterID]*Member

// NewSnapshot builds a snapshot from a roster. A later duplicate ID replaces
// an earlier one so the result always has unique keys.
func NewSnapshot(members []*Member) Snapshot {
	snap := make(Snapshot, len(members))
	for _, m := range members {
		if m == nil {
			continue
		}
		snap[m.ID] = m
	}
	return snap
}
