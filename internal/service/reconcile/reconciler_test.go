package reconcile

import (
	"testing"
	"time"

	"github.com/kapu/fclog-bot-go/internal/domain"
)

var cycleTime = time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC)

func member(id, name, rank string) *domain.Member {
	return &domain.Member{
		ID:        domain.CharacterID(id),
		Name:      name,
		Rank:      rank,
		AvatarURL: "https://img2.finalfantasyxiv.com/f/" + id + ".jpg",
	}
}

func kinds(events []*domain.ChangeEvent) []domain.EventKind {
	out := make([]domain.EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestRankChangeScenario(t *testing.T) {
	previous := []*domain.Member{member("1", "Tanaka", "Member")}
	fetched := []*domain.Member{member("1", "Tanaka", "Officer")}

	result := Reconcile(previous, fetched, false, cycleTime)

	if len(result.Events) != 1 {
		t.Fatalf("expected 1 event, got %v", kinds(result.Events))
	}
	ev := result.Events[0]
	if ev.Kind != domain.EventRankChanged || ev.Previous != "Member" || ev.Current != "Officer" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(result.HistoryUpdates) != 0 {
		t.Fatalf("rank change must not touch name history, got %v", result.HistoryUpdates)
	}
	snap := result.Snapshot()
	if len(snap) != 1 || snap["1"].Rank != "Officer" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestBootstrapScenario(t *testing.T) {
	fetched := []*domain.Member{member("1", "A", "Member"), member("2", "B", "Member")}

	result := Reconcile(nil, fetched, true, cycleTime)

	if len(result.Events) != 0 {
		t.Fatalf("bootstrap must not emit events, got %v", kinds(result.Events))
	}
	if len(result.Members) != 2 {
		t.Fatalf("expected both members in snapshot, got %d", len(result.Members))
	}
	if len(result.HistoryUpdates) != 2 {
		t.Fatalf("expected history seeds for both members, got %d", len(result.HistoryUpdates))
	}
	for i, id := range []domain.CharacterID{"1", "2"} {
		u := result.HistoryUpdates[i]
		if u.CharacterID != id || u.Op != domain.HistorySeed {
			t.Fatalf("unexpected history update %d: %+v", i, u)
		}
	}
}

func TestNewMemberOutsideBootstrapJoins(t *testing.T) {
	previous := []*domain.Member{member("1", "A", "Member")}
	fetched := []*domain.Member{member("1", "A", "Member"), member("2", "B", "Recruit")}

	result := Reconcile(previous, fetched, false, cycleTime)

	if len(result.Events) != 1 || result.Events[0].Kind != domain.EventJoined {
		t.Fatalf("expected one Joined event, got %v", kinds(result.Events))
	}
	joined := result.Events[0]
	if joined.CharacterID != "2" || joined.DisplayRank != "Recruit" || joined.Current != "B" {
		t.Fatalf("unexpected join event: %+v", joined)
	}
	if len(result.HistoryUpdates) != 1 || result.HistoryUpdates[0].Name != "B" {
		t.Fatalf("expected history seed for the new member, got %+v", result.HistoryUpdates)
	}
}

func TestLeaveProducesExactlyOneEvent(t *testing.T) {
	previous := []*domain.Member{member("1", "A", "Member"), member("2", "B", "Officer")}
	fetched := []*domain.Member{member("1", "A", "Member")}

	result := Reconcile(previous, fetched, false, cycleTime)

	if len(result.Events) != 1 {
		t.Fatalf("expected 1 event, got %v", kinds(result.Events))
	}
	left := result.Events[0]
	if left.Kind != domain.EventLeft || left.CharacterID != "2" || left.DisplayName != "B" || left.DisplayRank != "Officer" {
		t.Fatalf("unexpected leave event: %+v", left)
	}
	if _, ok := result.Snapshot()["2"]; ok {
		t.Fatalf("departed member must not be in the new snapshot")
	}
}

func TestRenameAppendsHistory(t *testing.T) {
	previous := []*domain.Member{member("7", "Old Name", "Member")}
	fetched := []*domain.Member{member("7", "New Name", "Member")}

	result := Reconcile(previous, fetched, false, cycleTime)

	if len(result.Events) != 1 || result.Events[0].Kind != domain.EventRenamed {
		t.Fatalf("expected a single Renamed event, got %v", kinds(result.Events))
	}
	if result.Events[0].Previous != "Old Name" || result.Events[0].Current != "New Name" {
		t.Fatalf("unexpected rename values: %+v", result.Events[0])
	}
	if len(result.HistoryUpdates) != 1 {
		t.Fatalf("expected one history update, got %d", len(result.HistoryUpdates))
	}
	u := result.HistoryUpdates[0]
	if u.Op != domain.HistoryAppend || u.Name != "New Name" {
		t.Fatalf("unexpected history update: %+v", u)
	}
}

func TestRenameAndRankChangeAreIndependent(t *testing.T) {
	previous := []*domain.Member{member("1", "Tanaka", "Member")}
	fetched := []*domain.Member{member("1", "Suzuki", "Officer")}

	result := Reconcile(previous, fetched, false, cycleTime)

	got := kinds(result.Events)
	if len(got) != 2 || got[0] != domain.EventRenamed || got[1] != domain.EventRankChanged {
		t.Fatalf("expected Renamed then RankChanged, got %v", got)
	}
}

func TestIdempotentSecondRun(t *testing.T) {
	previous := []*domain.Member{member("1", "A", "Member")}
	fetched := []*domain.Member{member("1", "A", "Officer"), member("2", "B", "Member")}

	first := Reconcile(previous, fetched, false, cycleTime)
	if len(first.Events) == 0 {
		t.Fatalf("expected events on the first run")
	}

	second := Reconcile(first.Members, fetched, false, cycleTime.Add(30*time.Minute))
	if len(second.Events) != 0 {
		t.Fatalf("expected no events on an identical second run, got %v", kinds(second.Events))
	}
	if len(second.HistoryUpdates) != 0 {
		t.Fatalf("expected no history updates on an identical second run, got %d", len(second.HistoryUpdates))
	}
}

func TestIdentityIsNeverInferredFromName(t *testing.T) {
	previous := []*domain.Member{member("100", "Shared Name", "Member")}
	fetched := []*domain.Member{member("200", "Shared Name", "Member")}

	result := Reconcile(previous, fetched, false, cycleTime)

	got := kinds(result.Events)
	if len(got) != 2 || got[0] != domain.EventJoined || got[1] != domain.EventLeft {
		t.Fatalf("expected Joined then Left, got %v", got)
	}
	for _, ev := range result.Events {
		if ev.Kind == domain.EventRenamed {
			t.Fatalf("a different character with the same name must not be a rename")
		}
	}
	if result.Events[0].CharacterID != "200" || result.Events[1].CharacterID != "100" {
		t.Fatalf("unexpected character ids: %s, %s", result.Events[0].CharacterID, result.Events[1].CharacterID)
	}
}

func TestEmptyFetchLeavesEveryone(t *testing.T) {
	previous := []*domain.Member{member("1", "A", "Member"), member("2", "B", "Member"), member("3", "C", "Master")}

	result := Reconcile(previous, []*domain.Member{}, false, cycleTime)

	if len(result.Events) != 3 {
		t.Fatalf("expected 3 Left events, got %v", kinds(result.Events))
	}
	for i, want := range []domain.CharacterID{"1", "2", "3"} {
		if result.Events[i].Kind != domain.EventLeft || result.Events[i].CharacterID != want {
			t.Fatalf("event %d: expected Left for %s, got %+v", i, want, result.Events[i])
		}
	}
	if len(result.Members) != 0 {
		t.Fatalf("expected empty snapshot, got %d members", len(result.Members))
	}
}

func TestLeavesAreEmittedAfterFetchedOrderEvents(t *testing.T) {
	previous := []*domain.Member{
		member("1", "A", "Member"),
		member("2", "B", "Member"),
		member("3", "C", "Member"),
	}
	fetched := []*domain.Member{
		member("4", "D", "Member"),
		member("3", "C2", "Member"),
	}

	result := Reconcile(previous, fetched, false, cycleTime)

	type entry struct {
		kind domain.EventKind
		id   domain.CharacterID
	}
	want := []entry{
		{domain.EventJoined, "4"},
		{domain.EventRenamed, "3"},
		{domain.EventLeft, "1"},
		{domain.EventLeft, "2"},
	}
	if len(result.Events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), kinds(result.Events))
	}
	for i, w := range want {
		if result.Events[i].Kind != w.kind || result.Events[i].CharacterID != w.id {
			t.Fatalf("event %d: expected %s/%s, got %s/%s", i, w.kind, w.id, result.Events[i].Kind, result.Events[i].CharacterID)
		}
	}
}

func TestBootstrapFlagDoesNotHideLeaves(t *testing.T) {
	previous := []*domain.Member{member("1", "A", "Member")}
	result := Reconcile(previous, []*domain.Member{member("2", "B", "Member")}, true, cycleTime)

	got := kinds(result.Events)
	if len(got) != 1 || got[0] != domain.EventLeft {
		t.Fatalf("expected only a Left event, got %v", got)
	}
}

func TestDuplicateFetchedIDIsClassifiedOnce(t *testing.T) {
	fetched := []*domain.Member{member("1", "A", "Member"), member("1", "A", "Member")}

	result := Reconcile(nil, fetched, false, cycleTime)

	if len(result.Events) != 1 || len(result.Members) != 1 {
		t.Fatalf("expected one join and one snapshot entry, got %d events, %d members", len(result.Events), len(result.Members))
	}
}

func TestCounts(t *testing.T) {
	previous := []*domain.Member{member("1", "A", "Member"), member("2", "B", "Member")}
	fetched := []*domain.Member{member("1", "A2", "Officer"), member("3", "C", "Member")}

	counts := Reconcile(previous, fetched, false, cycleTime).Counts()

	if counts[domain.EventJoined] != 1 || counts[domain.EventLeft] != 1 ||
		counts[domain.EventRenamed] != 1 || counts[domain.EventRankChanged] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
