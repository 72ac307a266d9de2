package domain

import "time"

// EventKind classifies a roster transition.
type EventKind string

const (
	EventJoined      EventKind = "Joined"
	EventLeft        EventKind = "Left"
	EventRenamed     EventKind = "Renamed"
	EventRankChanged EventKind = "RankChanged"
)

func (k EventKind) String() string {
	return string(k)
}

// Valid reports whether k is one of the four known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventJoined, EventLeft, EventRenamed, EventRankChanged:
		return true
	default:
		return false
	}
}

// ChangeEvent is an immutable record of one classified transition.
// Previous is only set for Renamed and RankChanged.
type ChangeEvent struct {
	CharacterID CharacterID `json:"character_id"`
	Kind        EventKind   `json:"kind"`
	Timestamp   time.Time   `json:"timestamp"`
	Previous    string      `json:"previous,omitempty"`
	Current     string      `json:"current,omitempty"`
	DisplayName string      `json:"display_name"`
	DisplayRank string      `json:"display_rank"`
	AvatarURL   string      `json:"avatar_url,omitempty"`
}

// NewJoinedEvent records m appearing in the roster.
func NewJoinedEvent(m *Member, at time.Time) *ChangeEvent {
	return &ChangeEvent{
		CharacterID: m.ID,
		Kind:        EventJoined,
		Timestamp:   at,
		Current:     m.Name,
		DisplayName: m.Name,
		DisplayRank: m.Rank,
		AvatarURL:   m.AvatarURL,
	}
}

// NewLeftEvent records m disappearing from the roster. The display fields
// come from the last known snapshot entry.
func NewLeftEvent(m *Member, at time.Time) *ChangeEvent {
	return &ChangeEvent{
		CharacterID: m.ID,
		Kind:        EventLeft,
		Timestamp:   at,
		DisplayName: m.Name,
		DisplayRank: m.Rank,
		AvatarURL:   m.AvatarURL,
	}
}

func NewRenamedEvent(old, current *Member, at time.Time) *ChangeEvent {
	return &ChangeEvent{
		CharacterID: current.ID,
		Kind:        EventRenamed,
		Timestamp:   at,
		Previous:    old.Name,
		Current:     current.Name,
		DisplayName: current.Name,
		DisplayRank: current.Rank,
		AvatarURL:   current.AvatarURL,
	}
}

func NewRankChangedEvent(old, current *Member, at time.Time) *ChangeEvent {
	return &ChangeEvent{
		CharacterID: current.ID,
		Kind:        EventRankChanged,
		Timestamp:   at,
		Previous:    old.Rank,
		Current:     current.Rank,
		DisplayName: current.Name,
		DisplayRank: current.Rank,
		AvatarURL:   current.AvatarURL,
	}
}
