// Package reconcile diffs a freshly fetched roster against the persisted
// snapshot. It performs no I/O.
package reconcile

import (
	"time"

	"github.com/kapu/fclog-bot-go/internal/domain"
)

// Result is everything a cycle must commit: the replacement snapshot, the
// ordered events and the name history mutations.
type Result struct {
	// Members is the new snapshot in fetched order, one entry per ID.
	Members        []*domain.Member
	Events         []*domain.ChangeEvent
	HistoryUpdates []domain.HistoryUpdate
}

// Snapshot returns Members keyed by character ID.
func (r *Result) Snapshot() domain.Snapshot {
	return domain.NewSnapshot(r.Members)
}

// Counts tallies events per kind.
func (r *Result) Counts() map[domain.EventKind]int {
	counts := make(map[domain.EventKind]int, 4)
	for _, ev := range r.Events {
		counts[ev.Kind]++
	}
	return counts
}

// Reconcile compares fetched against previous and classifies every change.
//
// previous is the persisted snapshot in its stored order. Joins, renames and
// rank changes come out in fetched order; leaves follow in previous order.
// Identity is the character ID only: a leave and a join with the same name
// are never folded into a rename.
//
// On a bootstrap run no Joined events are produced but every fetched member
// still gets a history seed.
func Reconcile(previous []*domain.Member, fetched []*domain.Member, isBootstrap bool, at time.Time) *Result {
	prior := domain.NewSnapshot(previous)

	result := &Result{
		Members:        make([]*domain.Member, 0, len(fetched)),
		Events:         make([]*domain.ChangeEvent, 0),
		HistoryUpdates: make([]domain.HistoryUpdate, 0),
	}
	current := make(map[domain.CharacterID]struct{}, len(fetched))

	for _, m := range fetched {
		if m == nil {
			continue
		}
		if _, dup := current[m.ID]; dup {
			// An ID listed twice in one roster is classified once.
			continue
		}
		current[m.ID] = struct{}{}
		result.Members = append(result.Members, m)

		old, known := prior[m.ID]
		if !known {
			result.HistoryUpdates = append(result.HistoryUpdates, domain.HistoryUpdate{
				CharacterID: m.ID,
				Op:          domain.HistorySeed,
				Name:        m.Name,
				At:          at,
			})
			if !isBootstrap {
				result.Events = append(result.Events, domain.NewJoinedEvent(m, at))
			}
			continue
		}

		if old.Name != m.Name {
			result.HistoryUpdates = append(result.HistoryUpdates, domain.HistoryUpdate{
				CharacterID: m.ID,
				Op:          domain.HistoryAppend,
				Name:        m.Name,
				At:          at,
			})
			result.Events = append(result.Events, domain.NewRenamedEvent(old, m, at))
		}
		if old.Rank != m.Rank {
			result.Events = append(result.Events, domain.NewRankChangedEvent(old, m, at))
		}
	}

	left := make(map[domain.CharacterID]struct{})
	for _, old := range previous {
		if old == nil {
			continue
		}
		if _, still := current[old.ID]; still {
			continue
		}
		if _, done := left[old.ID]; done {
			continue
		}
		left[old.ID] = struct{}{}
		// prior holds the last entry for a duplicated ID, matching NewSnapshot.
		result.Events = append(result.Events, domain.NewLeftEvent(prior[old.ID], at))
	}

	return result
}
