package adapter

import (
	"strings"
	"testing"
	"time"

	"github.com/kapu/fclog-bot-go/internal/domain"
)

func TestFormatPayload(t *testing.T) {
	f := NewResponseFormatter("[FC]")
	at := time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC)

	got := f.FormatPayload(&domain.Payload{
		Kind:  domain.EventRenamed,
		Title: "Name Change: New Name",
		Fields: []domain.PayloadField{
			{Name: "Lodestone", Value: "[New Name](https://na.finalfantasyxiv.com/lodestone/character/7/)"},
			{Name: "Previous Name", Value: "Old Name"},
			{Name: "Current Name", Value: "New Name"},
			{Name: "Empty", Value: " "},
		},
		Timestamp: at,
	})

	want := "🟠 [FC] Name Change: New Name\nLodestone: https://na.finalfantasyxiv.com/lodestone/character/7/\nPrevious Name: Old Name\nCurrent Name: New Name\n2024-03-09 12:30 UTC"
	if got != want {
		t.Fatalf("unexpected output:\n%q\nwant\n%q", got, want)
	}
}

func TestFormatPayloadNil(t *testing.T) {
	if got := NewResponseFormatter("").FormatPayload(nil); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestFormatCycleReport(t *testing.T) {
	f := NewResponseFormatter("")
	started := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	got := f.FormatCycleReport("fc-1", &domain.CycleReport{
		CycleID:    "abc",
		Outcome:    domain.CycleCompleted,
		Fetched:    3,
		Events:     map[domain.EventKind]int{domain.EventJoined: 2},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	})

	for _, want := range []string{"ID: abc", "Outcome: completed", "Members fetched: 3", "Joined: 2", "(2s)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Left:") {
		t.Fatalf("zero counts should be omitted:\n%s", got)
	}

	if got := f.FormatCycleReport("fc-1", nil); !strings.Contains(got, "No cycle recorded") {
		t.Fatalf("unexpected output for nil report: %q", got)
	}
}

func TestFormatNameHistory(t *testing.T) {
	f := NewResponseFormatter("")
	at := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	got := f.FormatNameHistory("7", &domain.NameHistory{
		CharacterID: "7",
		Names:       []string{"Old", "New"},
		LastUpdated: at,
	}, []*domain.ChangeEvent{
		{CharacterID: "7", Kind: domain.EventRenamed, Previous: "Old", Current: "New", DisplayName: "New", Timestamp: at},
	})

	for _, want := range []string{"1. Old", "2. New", "Renamed New (Old → New)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}

	if got := f.FormatNameHistory("8", nil, nil); !strings.Contains(got, "No name history") {
		t.Fatalf("unexpected output: %q", got)
	}
}
