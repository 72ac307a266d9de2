package store

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/internal/service/database"
	"github.com/kapu/fclog-bot-go/pkg/errors"
	"go.uber.org/zap"
)

const testOrg = "9232379236109629819"

func newTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	postgres := database.NewPostgresServiceFromDB(db, zap.NewNop())
	return NewRepository(postgres, testOrg, zap.NewNop()), mock
}

func TestIsBootstrap(t *testing.T) {
	cases := []struct {
		name        string
		initialized bool
		want        bool
	}{
		{name: "empty store", initialized: false, want: true},
		{name: "initialized store", initialized: true, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newTestRepository(t)
			mock.ExpectQuery("FROM fc_tracker_state").
				WithArgs(testOrg).
				WillReturnRows(sqlmock.NewRows([]string{"initialized"}).AddRow(tc.initialized))

			got, err := repo.IsBootstrap(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected bootstrap=%v, got %v", tc.want, got)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestIsBootstrapReadFailureIsPersistenceError(t *testing.T) {
	repo, mock := newTestRepository(t)
	mock.ExpectQuery("FROM fc_tracker_state").WillReturnError(stderrors.New("connection refused"))

	_, err := repo.IsBootstrap(context.Background())
	if !errors.IsPersistenceError(err) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}

func TestLoadSnapshotKeepsStoredOrder(t *testing.T) {
	repo, mock := newTestRepository(t)
	mock.ExpectQuery("FROM fc_members").
		WithArgs(testOrg).
		WillReturnRows(sqlmock.NewRows([]string{"character_id", "name", "rank", "avatar_url"}).
			AddRow("2", "B", "Officer", "").
			AddRow("1", "A", "Member", "https://img/a.jpg"))

	members, err := repo.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(members) != 2 || members[0].ID != "2" || members[1].AvatarURL != "https://img/a.jpg" {
		t.Fatalf("unexpected members: %+v", members)
	}
}

func TestCommitRunsInOneTransaction(t *testing.T) {
	repo, mock := newTestRepository(t)
	at := time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC)

	req := CommitRequest{
		Members: []*domain.Member{
			{ID: "1", Name: "A", Rank: "Officer"},
			{ID: "2", Name: "B", Rank: "Member"},
		},
		Events: []*domain.ChangeEvent{
			{CharacterID: "1", Kind: domain.EventRankChanged, Previous: "Member", Current: "Officer", Timestamp: at},
			{CharacterID: "2", Kind: domain.EventJoined, Current: "B", Timestamp: at},
		},
		HistoryUpdates: []domain.HistoryUpdate{
			{CharacterID: "2", Op: domain.HistorySeed, Name: "B", At: at},
		},
		At: at,
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM fc_members").WithArgs(testOrg).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO fc_members").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO fc_name_history").WithArgs("2", "B", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO fc_events").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO fc_tracker_state").WithArgs(testOrg, at, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Commit(context.Background(), req); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCommitEmptyRosterSkipsInserts(t *testing.T) {
	repo, mock := newTestRepository(t)
	at := time.Date(2024, 3, 9, 13, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM fc_members").WithArgs(testOrg).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO fc_tracker_state").WithArgs(testOrg, at, 0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Commit(context.Background(), CommitRequest{At: at}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCommitRollsBackOnFailure(t *testing.T) {
	repo, mock := newTestRepository(t)
	at := time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM fc_members").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO fc_members").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO fc_events").WillReturnError(stderrors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Commit(context.Background(), CommitRequest{
		Members: []*domain.Member{{ID: "1", Name: "A", Rank: "Member"}},
		Events:  []*domain.ChangeEvent{{CharacterID: "9", Kind: domain.EventLeft, Timestamp: at}},
		At:      at,
	})
	if !errors.IsPersistenceError(err) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCommitFailureOnCommitIsPersistenceError(t *testing.T) {
	repo, mock := newTestRepository(t)
	at := time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM fc_members").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO fc_tracker_state").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(stderrors.New("serialization failure"))

	err := repo.Commit(context.Background(), CommitRequest{At: at})
	if !errors.IsPersistenceError(err) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}

func TestNameHistory(t *testing.T) {
	repo, mock := newTestRepository(t)
	updated := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM fc_name_history").
		WithArgs("7").
		WillReturnRows(sqlmock.NewRows([]string{"names", "last_updated"}).
			AddRow(`{"Old Name","New Name"}`, updated))

	history, err := repo.NameHistory(context.Background(), "7")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if history == nil || len(history.Names) != 2 || history.Latest() != "New Name" {
		t.Fatalf("unexpected history: %+v", history)
	}
	if !history.LastUpdated.Equal(updated) {
		t.Fatalf("unexpected last updated: %s", history.LastUpdated)
	}
}

func TestNameHistoryUnknownCharacter(t *testing.T) {
	repo, mock := newTestRepository(t)
	mock.ExpectQuery("FROM fc_name_history").
		WithArgs("404").
		WillReturnRows(sqlmock.NewRows([]string{"names", "last_updated"}))

	history, err := repo.NameHistory(context.Background(), "404")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if history != nil {
		t.Fatalf("expected nil history, got %+v", history)
	}
}

func TestRecentEvents(t *testing.T) {
	repo, mock := newTestRepository(t)
	at := time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC)

	mock.ExpectQuery("FROM fc_events").
		WithArgs(testOrg, "1", 5).
		WillReturnRows(sqlmock.NewRows([]string{
			"character_id", "kind", "previous", "current", "display_name", "display_rank", "avatar_url", "occurred_at",
		}).
			AddRow("1", "RankChanged", "Member", "Officer", "Tanaka", "Officer", "", at).
			AddRow("1", "Joined", "", "Tanaka", "Tanaka", "Member", "", at.Add(-time.Hour)))

	events, err := repo.RecentEvents(context.Background(), "1", 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(events) != 2 || events[0].Kind != domain.EventRankChanged || events[1].Kind != domain.EventJoined {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestRecentEventsFailsOnBadRow(t *testing.T) {
	at := time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC)
	columns := []string{
		"character_id", "kind", "previous", "current", "display_name", "display_rank", "avatar_url", "occurred_at",
	}

	cases := []struct {
		name string
		rows *sqlmock.Rows
	}{
		{
			name: "unscannable timestamp",
			rows: sqlmock.NewRows(columns).
				AddRow("1", "Joined", "", "Tanaka", "Tanaka", "Member", "", at).
				AddRow("1", "Left", "", "", "Tanaka", "Member", "", "not-a-time"),
		},
		{
			name: "unknown kind",
			rows: sqlmock.NewRows(columns).
				AddRow("1", "Promoted", "Member", "Officer", "Tanaka", "Officer", "", at),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newTestRepository(t)
			mock.ExpectQuery("FROM fc_events").WithArgs(testOrg, "1", 5).WillReturnRows(tc.rows)

			events, err := repo.RecentEvents(context.Background(), "1", 5)
			if !errors.IsPersistenceError(err) {
				t.Fatalf("expected PersistenceError, got %v", err)
			}
			if events != nil {
				t.Fatalf("expected no partial history, got %d events", len(events))
			}
		})
	}
}
